// Package session implements §4.E of the matching core: the
// per-connection framed dispatcher loop, plus the admission and
// overload-protection machinery a production listener needs around a
// single-threaded Engine shared by many connections.
package session

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ccyyhlg/matchcore/internal/codec"
	"github.com/ccyyhlg/matchcore/internal/engine"
	"github.com/ccyyhlg/matchcore/internal/stats"
	"github.com/ccyyhlg/matchcore/internal/wire"
)

// protocolError marks a failure that must close the connection, as
// opposed to a ValidationError that is reported in-band as a NACK.
type protocolError struct{ reason string }

func (e protocolError) Error() string { return "session: protocol error: " + e.reason }

// Dispatcher serves one connection per spec.md §4.E: a synchronous
// read-decode-call-reply loop terminated by EOF or a protocol error.
type Dispatcher struct {
	id      uuid.UUID
	conn    net.Conn
	engine  *engine.Engine
	tape    *stats.Tape
	logger  *zap.Logger
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	seqno uint64
}

// NewDispatcher builds a dispatcher for one accepted connection. limiter
// paces how fast this connection may push frames at the shared engine;
// breaker is shared across every connection on a Server, and while it
// is open requests are answered with a NACK instead of reaching the
// engine. The engine call is not timed and never returns an error, so
// the breaker counts a call as failed only when it panics. tape records every trade
// this connection's requests cause the engine to emit, feeding
// internal/adminapi's stats endpoint; it may be nil to disable that.
func NewDispatcher(conn net.Conn, eng *engine.Engine, tape *stats.Tape, logger *zap.Logger, limiter *rate.Limiter, breaker *gobreaker.CircuitBreaker) *Dispatcher {
	return &Dispatcher{
		id:      uuid.New(),
		conn:    conn,
		engine:  eng,
		tape:    tape,
		logger:  logger,
		limiter: limiter,
		breaker: breaker,
	}
}

// Run serves the connection until EOF or a protocol error, then closes
// it. It does not recover panics: InvariantViolation panics from the
// engine/book layer propagate past Run by design (spec.md §7 treats
// them as process-fatal); everything else is handled locally.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.conn.Close()
	logger := d.logger.With(zap.String("session_id", d.id.String()))

	for {
		if err := d.limiter.Wait(ctx); err != nil {
			logger.Info("session paced out, closing", zap.Error(err))
			return
		}

		hdr, err := d.readHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("connection closed cleanly")
				return
			}
			logger.Warn("closing connection on header read failure", zap.Error(err))
			return
		}

		if perr := validateHeader(hdr); perr != nil {
			logger.Warn("closing connection on protocol error", zap.Error(perr))
			return
		}

		body := make([]byte, int(hdr.Size)-wire.HeaderSize)
		if _, err := io.ReadFull(d.conn, body); err != nil {
			logger.Warn("closing connection on short body", zap.Error(err))
			return
		}

		if err := d.dispatch(wire.MsgType(hdr.Type), body, logger); err != nil {
			logger.Warn("closing connection", zap.Error(err))
			return
		}
	}
}

func (d *Dispatcher) readHeader() (wire.Header, error) {
	buf := make([]byte, wire.HeaderSize)
	n, err := io.ReadFull(d.conn, buf)
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return wire.Header{}, io.EOF
		}
		// Partial header: EOF or otherwise, both are protocol errors.
		return wire.Header{}, protocolError{reason: "short header: " + err.Error()}
	}
	var hdr wire.Header
	if err := hdr.UnmarshalBinary(buf); err != nil {
		return wire.Header{}, protocolError{reason: err.Error()}
	}
	return hdr, nil
}

func validateHeader(hdr wire.Header) error {
	if hdr.Version != wire.ProtocolVersion {
		return protocolError{reason: "unsupported protocol version"}
	}
	if int(hdr.Size) < wire.HeaderSize {
		return protocolError{reason: "size smaller than header"}
	}
	if int(hdr.Size)-wire.HeaderSize > wire.MaxFrameBody {
		return protocolError{reason: "oversize frame body"}
	}
	return nil
}

// dispatch handles one decoded frame. A non-nil error always means
// "close the connection"; application-level rejections are reported
// in-band as a NACK ack and never surface here.
func (d *Dispatcher) dispatch(msgType wire.MsgType, body []byte, logger *zap.Logger) error {
	switch msgType {
	case wire.MsgNew:
		req, err := codec.DecodeBody[wire.OrderNewBody](body)
		if err != nil {
			return protocolError{reason: err.Error()}
		}
		return d.handleNew(req)

	case wire.MsgCancel:
		req, err := codec.DecodeBody[wire.OrderCancelBody](body)
		if err != nil {
			return protocolError{reason: err.Error()}
		}
		return d.handleCancel(req)

	case wire.MsgAck, wire.MsgTrade, wire.MsgReserved:
		logger.Warn("ignoring server-direction message type from client", zap.Stringer("type", msgType))
		return nil

	default:
		logger.Warn("ignoring unknown message type", zap.Stringer("type", msgType))
		return nil
	}
}

func (d *Dispatcher) handleNew(req wire.OrderNewBody) error {
	res, err := d.callEngine(func() engine.Result {
		return d.engine.OnNew(req, req.Flags&wire.TIFIOC == 0)
	})
	if err != nil {
		return d.writeBreakerNack(req.ClientOrderID)
	}
	if err := d.writeAck(res.Ack); err != nil {
		return err
	}
	for _, tr := range res.Trades {
		if d.tape != nil {
			d.tape.Record(tr)
		}
		if err := d.writeTrade(tr); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleCancel(req wire.OrderCancelBody) error {
	res, err := d.callEngine(func() engine.Result {
		return d.engine.OnCancel(req)
	})
	if err != nil {
		return d.writeBreakerNack(req.ClientOrderID)
	}
	return d.writeAck(res.Ack)
}

// callEngine runs fn through the shared circuit breaker, which protects
// every connection's serialized hand-off into the same Engine instance.
// An engine rejection (NACK) is logged here before it is returned.
func (d *Dispatcher) callEngine(fn func() engine.Result) (engine.Result, error) {
	call := func() engine.Result {
		res := fn()
		if res.Ack.Status == wire.AckNack {
			d.logger.Warn("request rejected by engine",
				zap.String("session_id", d.id.String()),
				zap.Uint64("client_order_id", res.Ack.ClientOrderID),
				zap.Uint64("exch_order_id", res.Ack.ExchOrderID))
		}
		return res
	}
	if d.breaker == nil {
		return call(), nil
	}
	v, err := d.breaker.Execute(func() (interface{}, error) {
		return call(), nil
	})
	if err != nil {
		return engine.Result{}, err
	}
	return v.(engine.Result), nil
}

// writeBreakerNack replies with a synthetic NACK (exch_order_id=0) when
// the circuit breaker has shed the request rather than forwarding it to
// the engine. The connection is kept open: this is an application-level
// rejection, not a protocol error.
func (d *Dispatcher) writeBreakerNack(clientOrderID uint64) error {
	return d.writeAck(wire.AckBody{ClientOrderID: clientOrderID, Status: wire.AckNack})
}

func (d *Dispatcher) writeAck(ack wire.AckBody) error {
	hdr := wire.Header{Type: uint8(wire.MsgAck), Version: wire.ProtocolVersion, Seqno: 0}
	frame := codec.Pack[wire.AckBody](hdr, ack)
	_, err := d.conn.Write(frame)
	return err
}

func (d *Dispatcher) writeTrade(trade wire.TradeBody) error {
	d.seqno++
	hdr := wire.Header{Type: uint8(wire.MsgTrade), Version: wire.ProtocolVersion, Seqno: d.seqno}
	frame := codec.Pack[wire.TradeBody](hdr, trade)
	_, err := d.conn.Write(frame)
	return err
}
