// Package stats maintains a bounded trade tape per instrument and
// derives read-only statistics from it. It never feeds back into
// matching: the engine emits trades, this package only observes them.
package stats

import (
	"math"
	"sync"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/ccyyhlg/matchcore/internal/wire"
)

// TapeCapacity bounds how many recent trades are retained per
// instrument before the oldest is evicted.
const TapeCapacity = 512

// SMAWindow is the short window used for the simple moving average.
const SMAWindow = 20

// Snapshot is a read-only view of an instrument's recent trade tape.
type Snapshot struct {
	TradeCount int
	VWAP       float64
	PriceStdev float64
	SMA        float64 // 0 if fewer than SMAWindow trades are recorded
}

type tape struct {
	prices []float64
	qtys   []float64
}

// Tape tracks bounded, per-instrument trade history and computes
// VWAP/stddev/SMA views over it on demand.
type Tape struct {
	mu   sync.Mutex
	byID map[uint32]*tape
}

// New creates an empty trade tape tracker.
func New() *Tape {
	return &Tape{byID: make(map[uint32]*tape)}
}

// Record appends a trade to its instrument's tape, evicting the oldest
// entry once TapeCapacity is exceeded.
func (t *Tape) Record(trade wire.TradeBody) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tp, ok := t.byID[trade.InstrumentID]
	if !ok {
		tp = &tape{}
		t.byID[trade.InstrumentID] = tp
	}

	tp.prices = append(tp.prices, float64(trade.PriceTicks))
	tp.qtys = append(tp.qtys, float64(trade.Qty))
	if len(tp.prices) > TapeCapacity {
		tp.prices = tp.prices[1:]
		tp.qtys = tp.qtys[1:]
	}
}

// Snapshot computes the current statistics view for an instrument. The
// second return value is false if no trades have been recorded yet.
func (t *Tape) Snapshot(instrumentID uint32) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tp, ok := t.byID[instrumentID]
	if !ok || len(tp.prices) == 0 {
		return Snapshot{}, false
	}

	vwap := stat.Mean(tp.prices, tp.qtys)
	stdev := 0.0
	if len(tp.prices) > 1 {
		stdev = stat.StdDev(tp.prices, nil)
	}

	snap := Snapshot{
		TradeCount: len(tp.prices),
		VWAP:       vwap,
		PriceStdev: stdev,
	}

	if len(tp.prices) >= SMAWindow {
		sma := talib.Sma(tp.prices, SMAWindow)
		if last := sma[len(sma)-1]; !math.IsNaN(last) {
			snap.SMA = last
		}
	}
	return snap, true
}
