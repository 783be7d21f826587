// Package diag produces operator-triggered, point-in-time exports of
// book depth for offline inspection. This is a diagnostic dump, not
// persistence: there is no load path, and nothing here feeds back into
// the engine. Restarting the process always starts from an empty,
// pre-registered book set, per spec.md's Non-goals.
package diag

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/ccyyhlg/matchcore/internal/book"
	"github.com/ccyyhlg/matchcore/internal/engine"
)

// InstrumentDepth is one instrument's depth at export time.
type InstrumentDepth struct {
	InstrumentID uint32            `json:"instrument_id"`
	Ticker       string            `json:"ticker"`
	Bids         []book.PriceLevel `json:"bids"`
	Asks         []book.PriceLevel `json:"asks"`
}

// Snapshot is the full export: every registered instrument's depth,
// each read independently (no cross-instrument atomicity guarantee:
// Capture takes the engine's lock once per instrument, not once for the
// whole set).
type Snapshot struct {
	Instruments []InstrumentDepth `json:"instruments"`
}

// Capture walks every registered instrument and reads its current
// depth. Each instrument's read is atomic with respect to the engine;
// the set as a whole is not a single consistent point in time.
func Capture(eng *engine.Engine) Snapshot {
	tickers := eng.Instruments()
	snap := Snapshot{Instruments: make([]InstrumentDepth, 0, len(tickers))}
	for id, ticker := range tickers {
		bids, asks, ok := eng.DepthLevels(id)
		if !ok {
			continue
		}
		snap.Instruments = append(snap.Instruments, InstrumentDepth{
			InstrumentID: id,
			Ticker:       ticker,
			Bids:         bids,
			Asks:         asks,
		})
	}
	return snap
}

// Export writes a zstd-compressed JSON encoding of snap to w. The
// caller opens and names the destination file; this function only
// encodes and compresses.
func Export(w io.Writer, snap Snapshot) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("diag: open zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("diag: encode snapshot: %w", err)
	}
	return enc.Close()
}

// Import decodes a snapshot written by Export, for an operator or test
// inspecting a dump offline. It never touches an Engine: there is no
// load path back into matching state.
func Import(r io.Reader) (Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("diag: open zstd reader: %w", err)
	}
	defer dec.Close()

	var snap Snapshot
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("diag: decode snapshot: %w", err)
	}
	return snap, nil
}
