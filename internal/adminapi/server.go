// Package adminapi exposes the operator-facing HTTP surface the wire
// protocol deliberately has no room for: instrument registration,
// depth/stat inspection, and health/metrics endpoints. It never
// touches order submission or cancellation.
package adminapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	limiter "github.com/ulule/limiter/v3"
	limitergin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/ccyyhlg/matchcore/internal/diag"
	"github.com/ccyyhlg/matchcore/internal/engine"
	"github.com/ccyyhlg/matchcore/internal/stats"
)

// tickerCacheTTL bounds how long a ticker list response is served from
// cache before it is recomputed from the engine.
const tickerCacheTTL = 2 * time.Second

const tickerCacheKey = "tickers"

// Server is the admin HTTP surface. It holds no order-book state of
// its own; every response is derived from the Engine or the Tape.
type Server struct {
	engine *engine.Engine
	tape   *stats.Tape
	logger *zap.Logger
	cache  *gocache.Cache

	router *gin.Engine
}

// NewServer builds the admin router. createLimit bounds how many
// POST /instruments calls one client IP may make per second.
func NewServer(eng *engine.Engine, tape *stats.Tape, logger *zap.Logger, createLimit int) *Server {
	s := &Server{
		engine: eng,
		tape:   tape,
		logger: logger,
		cache:  gocache.New(tickerCacheTTL, 2*tickerCacheTTL),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	store := memorystore.NewStore()
	rate := limiter.Rate{Period: time.Second, Limit: int64(createLimit)}
	createLimiter := limitergin.NewMiddleware(limiter.New(store, rate))

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/instruments", s.handleListInstruments)
	r.POST("/instruments", createLimiter, s.handleCreateInstrument)
	r.GET("/instruments/:id/quote", s.handleQuote)
	r.GET("/instruments/:id/stats", s.handleStats)
	r.GET("/diag/snapshot", s.handleDiagSnapshot)

	s.router = r
	return s
}

// Handler returns the underlying http.Handler, for wrapping in an
// http.Server by cmd/matchcore.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type instrumentView struct {
	ID     uint32 `json:"id"`
	Ticker string `json:"ticker"`
}

func (s *Server) handleListInstruments(c *gin.Context) {
	if cached, ok := s.cache.Get(tickerCacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	instruments := s.engine.Instruments()
	out := make([]instrumentView, 0, len(instruments))
	for id, ticker := range instruments {
		out = append(out, instrumentView{ID: id, Ticker: ticker})
	}
	s.cache.Set(tickerCacheKey, out, gocache.DefaultExpiration)
	c.JSON(http.StatusOK, out)
}

type createInstrumentRequest struct {
	Ticker string `json:"ticker" binding:"required"`
}

func (s *Server) handleCreateInstrument(c *gin.Context) {
	var req createInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := s.engine.AddNewInstrument(req.Ticker)
	s.cache.Delete(tickerCacheKey)
	s.logger.Info("instrument registered", zap.Uint32("instrument_id", id), zap.String("ticker", req.Ticker))
	c.JSON(http.StatusCreated, instrumentView{ID: id, Ticker: req.Ticker})
}

type quoteView struct {
	InstrumentID uint32 `json:"instrument_id"`
	BidPrice     int64  `json:"bid_price,omitempty"`
	BidQty       int32  `json:"bid_qty,omitempty"`
	HasBid       bool   `json:"has_bid"`
	AskPrice     int64  `json:"ask_price,omitempty"`
	AskQty       int32  `json:"ask_qty,omitempty"`
	HasAsk       bool   `json:"has_ask"`
}

func (s *Server) handleQuote(c *gin.Context) {
	id, ok := parseInstrumentID(c)
	if !ok {
		return
	}

	bidPrice, bidQty, hasBid := s.engine.BestBid(id)
	askPrice, askQty, hasAsk := s.engine.BestAsk(id)
	if !hasBid && !hasAsk {
		if _, known := s.engine.Ticker(id); !known {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown instrument"})
			return
		}
	}

	c.JSON(http.StatusOK, quoteView{
		InstrumentID: id,
		BidPrice:     bidPrice, BidQty: bidQty, HasBid: hasBid,
		AskPrice: askPrice, AskQty: askQty, HasAsk: hasAsk,
	})
}

type statsView struct {
	InstrumentID uint32  `json:"instrument_id"`
	TradeCount   int     `json:"trade_count"`
	VWAP         float64 `json:"vwap"`
	PriceStdev   float64 `json:"price_stdev"`
	SMA          float64 `json:"sma"`
}

func (s *Server) handleStats(c *gin.Context) {
	id, ok := parseInstrumentID(c)
	if !ok {
		return
	}
	if _, known := s.engine.Ticker(id); !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instrument"})
		return
	}

	snap, _ := s.tape.Snapshot(id)
	c.JSON(http.StatusOK, statsView{
		InstrumentID: id,
		TradeCount:   snap.TradeCount,
		VWAP:         snap.VWAP,
		PriceStdev:   snap.PriceStdev,
		SMA:          snap.SMA,
	})
}

// handleDiagSnapshot is the operator trigger for internal/diag's
// point-in-time book export: it captures current depth across every
// registered instrument and streams it back as a zstd-compressed JSON
// body. The caller names the destination file, e.g.
// curl .../diag/snapshot -o snapshot.json.zst
func (s *Server) handleDiagSnapshot(c *gin.Context) {
	snap := diag.Capture(s.engine)
	c.Header("Content-Type", "application/zstd")
	c.Header("Content-Disposition", `attachment; filename="matchcore-snapshot.json.zst"`)
	if err := diag.Export(c.Writer, snap); err != nil {
		s.logger.Error("diag snapshot export failed", zap.Error(err))
	}
}

func parseInstrumentID(c *gin.Context) (uint32, bool) {
	idStr := c.Param("id")
	var id uint32
	if _, err := fmt.Sscan(idStr, &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instrument id"})
		return 0, false
	}
	return id, true
}
