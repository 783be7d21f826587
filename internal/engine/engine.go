// Package engine implements §4.D of the matching core: instrument
// registration, exchange-order-id allocation, and the on_new/on_cancel
// state machine that turns wire requests into acks and trades.
package engine

import (
	"sync"
	"time"

	"github.com/ccyyhlg/matchcore/internal/book"
	"github.com/ccyyhlg/matchcore/internal/telemetry"
	"github.com/ccyyhlg/matchcore/internal/wire"
)

// Result bundles the ack and the trades produced by one on_new or
// on_cancel call, in the order the dispatcher must write them.
type Result struct {
	Ack    wire.AckBody
	Trades []wire.TradeBody
}

// Engine owns every instrument's order book. Every exported method
// takes the Engine's own mutex for its whole duration, so one Engine
// may be shared by many goroutines (internal/session's dispatchers):
// calls are serialized in the order they acquire the lock. The books
// themselves do no locking.
type Engine struct {
	mu sync.Mutex

	books       map[uint32]*book.OrderBook
	tickers     map[uint32]string
	nextExchID  uint64
	nextInstrID uint32

	metrics *telemetry.EngineMetrics
	now     func() uint64
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMetrics attaches a metrics sink. Without it, metrics calls are
// no-ops.
func WithMetrics(m *telemetry.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the monotonic clock used for ts_recv/ts_ack,
// nanoseconds since an unspecified epoch. Intended for deterministic
// tests; production code should leave this as the default.
func WithClock(now func() uint64) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine with no pre-registered instruments.
func New(opts ...Option) *Engine {
	e := &Engine{
		books:       make(map[uint32]*book.OrderBook),
		tickers:     make(map[uint32]string),
		nextExchID:  1,
		nextInstrID: 1,
		metrics:     telemetry.NoopEngineMetrics(),
		now:         monotonicNs,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var processStart = time.Now()

func monotonicNs() uint64 {
	return uint64(time.Since(processStart).Nanoseconds())
}

// AddNewInstrument registers a new, empty book and returns its id.
// Exchange-order-ids allocated afterward are unique across every
// instrument registered on this Engine. Not exposed on the wire; see
// internal/adminapi for the operator-facing surface.
func (e *Engine) AddNewInstrument(name string) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextInstrID
	e.nextInstrID++
	e.books[id] = book.New()
	e.tickers[id] = name
	return id
}

// Ticker returns the human-readable ticker for an instrument id, if
// registered.
func (e *Engine) Ticker(instrumentID uint32) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tickers[instrumentID]
	return t, ok
}

// Instruments returns a snapshot of every registered instrument id and
// its ticker.
func (e *Engine) Instruments() map[uint32]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[uint32]string, len(e.tickers))
	for k, v := range e.tickers {
		out[k] = v
	}
	return out
}

func (e *Engine) instrumentExists(id uint32) bool {
	_, ok := e.books[id]
	return ok
}

func makeAck(clientID, exchID uint64, status uint8, recvNs, ackNs uint64) wire.AckBody {
	return wire.AckBody{
		ClientOrderID:  clientID,
		ExchOrderID:    exchID,
		Status:         status,
		TsEngineRecvNs: recvNs,
		TsEngineAckNs:  ackNs,
	}
}

// OnNew implements spec.md §4.D's on_new contract: validate, match,
// optionally rest the residual, and ack.
func (e *Engine) OnNew(body wire.OrderNewBody, restLeftover bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	recvNs := e.now()

	if body.Qty <= 0 || body.PriceTicks < 0 || body.Side > 1 || !e.instrumentExists(body.InstrumentID) {
		e.metrics.OrderRejected()
		return Result{Ack: makeAck(body.ClientOrderID, 0, wire.AckNack, recvNs, e.now())}
	}

	ob := e.books[body.InstrumentID]
	exchID := e.nextExchID
	e.nextExchID++

	side := book.Bid
	liqFlag := wire.LiquidityAggressorBuy
	if body.Side == uint8(wire.SideAsk) {
		side = book.Ask
		liqFlag = wire.LiquidityAggressorSell
	}

	remaining := body.Qty
	filled, bookTrades := ob.MatchTaker(side, body.PriceTicks, remaining)
	remaining -= filled

	trades := make([]wire.TradeBody, 0, len(bookTrades))
	for _, t := range bookTrades {
		trades = append(trades, wire.TradeBody{
			PriceTicks:         t.PriceTicks,
			Qty:                t.Qty,
			LiquidityFlag:      liqFlag,
			RestingExchOrderID: t.RestingExchOrderID,
			TakingExchOrderID:  exchID,
			InstrumentID:       body.InstrumentID,
		})
	}
	e.metrics.TradesExecuted(len(trades))
	for _, t := range trades {
		e.metrics.QuantityMatched(t.Qty)
	}

	if restLeftover && remaining > 0 {
		ob.AddResting(exchID, side, body.PriceTicks, remaining)
	}

	ackNs := e.now()
	e.metrics.OrderAccepted()
	e.metrics.AckLatency(ackNs, recvNs)

	return Result{
		Ack:    makeAck(body.ClientOrderID, exchID, wire.AckOK, recvNs, ackNs),
		Trades: trades,
	}
}

// OnCancel implements spec.md §4.D's on_cancel contract.
func (e *Engine) OnCancel(body wire.OrderCancelBody) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	recvNs := e.now()

	if !e.instrumentExists(body.InstrumentID) {
		e.metrics.CancelRejected()
		return Result{Ack: makeAck(body.ClientOrderID, 0, wire.AckNack, recvNs, e.now())}
	}

	// exch_order_id == 0 means the client specified no (or only a client)
	// id; spec.md §9 leaves this case undesigned and instructs treating
	// it as NACK until a cancel-by-client-id flow is specified.
	ob := e.books[body.InstrumentID]
	ok := body.ExchOrderID != 0 && ob.CancelOrder(body.ExchOrderID)

	status := wire.AckNack
	if ok {
		status = wire.AckOK
		e.metrics.CancelAccepted()
	} else {
		e.metrics.CancelRejected()
	}

	return Result{Ack: makeAck(body.ClientOrderID, body.ExchOrderID, status, recvNs, e.now())}
}

// BestBid returns the best bid price and head-of-FIFO quantity for an
// instrument, or false if the instrument is unknown or has no bids.
func (e *Engine) BestBid(instrumentID uint32) (price int64, qty int32, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, found := e.books[instrumentID]
	if !found {
		return 0, 0, false
	}
	return ob.BestBid()
}

// BestAsk returns the best ask price and head-of-FIFO quantity for an
// instrument, or false if the instrument is unknown or has no asks.
func (e *Engine) BestAsk(instrumentID uint32) (price int64, qty int32, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, found := e.books[instrumentID]
	if !found {
		return 0, 0, false
	}
	return ob.BestAsk()
}

// Depth returns the best bid/ask for an instrument; it is a read-only
// diagnostic view, not part of the wire protocol.
func (e *Engine) Depth(instrumentID uint32) (exists bool, bidPrice, bidQty, askPrice, askQty int64, bidOK, askOK bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, found := e.books[instrumentID]
	if !found {
		return false, 0, 0, 0, 0, false, false
	}
	bp, bq, bok := ob.BestBid()
	ap, aq, aok := ob.BestAsk()
	return true, bp, int64(bq), ap, int64(aq), bok, aok
}

// DepthLevels returns every resting bid and ask price level for an
// instrument, used only by internal/diag's point-in-time export.
func (e *Engine) DepthLevels(instrumentID uint32) (bids, asks []book.PriceLevel, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, found := e.books[instrumentID]
	if !found {
		return nil, nil, false
	}
	return ob.DepthLevels(book.Bid), ob.DepthLevels(book.Ask), true
}
