package session

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ccyyhlg/matchcore/internal/engine"
	"github.com/ccyyhlg/matchcore/internal/stats"
)

// Config controls admission and pacing for a Server.
type Config struct {
	// PoolSize bounds the number of connections served concurrently.
	// Additional accepted connections queue for a free pool worker.
	PoolSize int
	// FrameRate and FrameBurst bound how many frames per second a
	// single connection may push at the engine.
	FrameRate  rate.Limit
	FrameBurst int
}

// DefaultConfig returns reasonable admission defaults.
func DefaultConfig() Config {
	return Config{PoolSize: 4096, FrameRate: 50000, FrameBurst: 1000}
}

// Server accepts connections on a transport listener and dispatches
// each through a bounded goroutine pool, per spec.md §6's "server
// listens on one endpoint, accepts many clients" transport contract.
type Server struct {
	listener net.Listener
	engine   *engine.Engine
	tape     *stats.Tape
	logger   *zap.Logger
	cfg      Config

	pool    *ants.Pool
	breaker *gobreaker.CircuitBreaker
}

// NewServer wraps an already-bound listener (TCP or Unix-domain, per
// spec.md §6) with the matching core's admission and dispatch machinery.
// tape may be nil to disable trade-tape recording for this server.
func NewServer(listener net.Listener, eng *engine.Engine, tape *stats.Tape, logger *zap.Logger, cfg Config) (*Server, error) {
	// A pooled worker that panics would otherwise be silently recovered
	// by ants, leaving the engine's internal state (possibly corrupted,
	// per an InvariantViolation out of internal/book) running behind
	// future requests. spec.md §7 treats InvariantViolation as fatal, so
	// this handler turns any such panic into process termination instead
	// of a swallowed log line.
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(false), ants.WithPanicHandler(func(v interface{}) {
		logger.Error("fatal panic in connection worker, aborting process", zap.Any("panic", v))
		os.Exit(1)
	}))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "matchcore-engine",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 20 && counts.ConsecutiveFailures >= 10
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("engine circuit breaker state change",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	return &Server{
		listener: listener,
		engine:   eng,
		tape:     tape,
		logger:   logger,
		cfg:      cfg,
		pool:     pool,
		breaker:  breaker,
	}, nil
}

// Serve accepts connections until ctx is cancelled or Accept fails.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		limiter := rate.NewLimiter(s.cfg.FrameRate, s.cfg.FrameBurst)
		d := NewDispatcher(conn, s.engine, s.tape, s.logger, limiter, s.breaker)
		if err := s.pool.Submit(func() { d.Run(ctx) }); err != nil {
			s.logger.Warn("dropping connection, admission pool rejected it", zap.Error(err))
			conn.Close()
		}
	}
}

// Close releases the admission pool. It does not close the listener.
func (s *Server) Close() {
	s.pool.Release()
}
