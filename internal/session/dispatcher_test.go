package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ccyyhlg/matchcore/internal/codec"
	"github.com/ccyyhlg/matchcore/internal/engine"
	"github.com/ccyyhlg/matchcore/internal/stats"
	"github.com/ccyyhlg/matchcore/internal/wire"
)

func unlimited() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func newPipeDispatcher(t *testing.T, eng *engine.Engine) (*Dispatcher, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	d := NewDispatcher(server, eng, nil, zap.NewNop(), unlimited(), nil)
	return d, client
}

// TestDispatcherNewThenAckThenTrade exercises the ack-then-trade order
// end to end over the wire: a resting ask, then a crossing IOC bid that
// produces an ACK followed by one trade frame.
func TestDispatcherNewThenAckThenTrade(t *testing.T) {
	eng := engine.New()
	instr := eng.AddNewInstrument("AAPL")

	d, client := newPipeDispatcher(t, eng)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	defer client.Close()

	rest := wire.OrderNewBody{ClientOrderID: 1, Side: uint8(wire.SideAsk), PriceTicks: 100, Qty: 10, InstrumentID: instr}
	sendFrame(t, client, codec.Pack[wire.OrderNewBody](wire.Header{Type: uint8(wire.MsgNew), Version: wire.ProtocolVersion}, rest))
	restAck := readAck(t, client)
	require.Equal(t, wire.AckOK, restAck.Status)

	taker := wire.OrderNewBody{ClientOrderID: 2, Side: uint8(wire.SideBid), PriceTicks: 100, Qty: 10, InstrumentID: instr, Flags: wire.TIFIOC}
	sendFrame(t, client, codec.Pack[wire.OrderNewBody](wire.Header{Type: uint8(wire.MsgNew), Version: wire.ProtocolVersion}, taker))

	ack := readAck(t, client)
	require.Equal(t, wire.AckOK, ack.Status)

	trade := readTrade(t, client)
	require.Equal(t, int64(100), trade.PriceTicks)
	require.Equal(t, int32(10), trade.Qty)
	require.Equal(t, restAck.ExchOrderID, trade.RestingExchOrderID)
	require.Equal(t, ack.ExchOrderID, trade.TakingExchOrderID)
}

// TestDispatcherRecordsTradesOnTape checks that trades the engine
// emits while serving this connection reach the shared trade tape,
// which is what internal/adminapi's stats endpoint reads from.
func TestDispatcherRecordsTradesOnTape(t *testing.T) {
	eng := engine.New()
	instr := eng.AddNewInstrument("AAPL")
	tape := stats.New()

	server, client := net.Pipe()
	d := NewDispatcher(server, eng, tape, zap.NewNop(), unlimited(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	defer client.Close()

	rest := wire.OrderNewBody{ClientOrderID: 1, Side: uint8(wire.SideAsk), PriceTicks: 100, Qty: 10, InstrumentID: instr}
	sendFrame(t, client, codec.Pack[wire.OrderNewBody](wire.Header{Type: uint8(wire.MsgNew), Version: wire.ProtocolVersion}, rest))
	readAck(t, client)

	taker := wire.OrderNewBody{ClientOrderID: 2, Side: uint8(wire.SideBid), PriceTicks: 100, Qty: 10, InstrumentID: instr, Flags: wire.TIFIOC}
	sendFrame(t, client, codec.Pack[wire.OrderNewBody](wire.Header{Type: uint8(wire.MsgNew), Version: wire.ProtocolVersion}, taker))
	readAck(t, client)
	readTrade(t, client)

	snap, ok := tape.Snapshot(instr)
	require.True(t, ok)
	require.Equal(t, 1, snap.TradeCount)
	require.InDelta(t, 100, snap.VWAP, 1e-9)
}

// TestDispatcherCancelUnknownStaysOpen mirrors spec.md §8 scenario 1
// over the wire and checks the connection is not closed afterward.
func TestDispatcherCancelUnknownStaysOpen(t *testing.T) {
	eng := engine.New()
	instr := eng.AddNewInstrument("AAPL")

	d, client := newPipeDispatcher(t, eng)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	defer client.Close()

	cancelReq := wire.OrderCancelBody{ClientOrderID: 5001, ExchOrderID: 999999, InstrumentID: instr}
	sendFrame(t, client, codec.Pack[wire.OrderCancelBody](wire.Header{Type: uint8(wire.MsgCancel), Version: wire.ProtocolVersion}, cancelReq))

	ack := readAck(t, client)
	require.Equal(t, wire.AckNack, ack.Status)
	require.Equal(t, uint64(5001), ack.ClientOrderID)

	// connection should still be alive: a second request gets served.
	newReq := wire.OrderNewBody{ClientOrderID: 1, Side: uint8(wire.SideBid), PriceTicks: 1, Qty: 1, InstrumentID: instr}
	sendFrame(t, client, codec.Pack[wire.OrderNewBody](wire.Header{Type: uint8(wire.MsgNew), Version: wire.ProtocolVersion}, newReq))
	ack2 := readAck(t, client)
	require.Equal(t, wire.AckOK, ack2.Status)
}

// TestDispatcherClosesOnBadVersion covers the VersionMismatch row of
// spec.md §7's error taxonomy: close the connection.
func TestDispatcherClosesOnBadVersion(t *testing.T) {
	eng := engine.New()
	d, client := newPipeDispatcher(t, eng)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	defer client.Close()

	hdr := wire.Header{Type: uint8(wire.MsgNew), Version: 9}
	body := wire.OrderNewBody{ClientOrderID: 1, Side: 0, PriceTicks: 1, Qty: 1, InstrumentID: 1}
	frame := codec.Pack[wire.OrderNewBody](hdr, body)
	// The server rejects the frame on its header alone and closes without
	// reading the body, so only the header is sent: over net.Pipe a write
	// of body bytes nobody reads fails once the server side is closed.
	sendFrame(t, client, frame[:wire.HeaderSize])

	buf := make([]byte, 1)
	client.SetReadDeadline(time.Now().Add(time.Second))
	_, err := client.Read(buf)
	require.Error(t, err, "server must close the connection on a version mismatch")
}

// TestDispatcherIgnoresServerDirectionTypes covers §4.E step 4's
// "log and ignore, do not close" rule for ACK/TRADE/RESERVED frames
// arriving from a client.
func TestDispatcherIgnoresServerDirectionTypes(t *testing.T) {
	eng := engine.New()
	instr := eng.AddNewInstrument("AAPL")
	d, client := newPipeDispatcher(t, eng)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	defer client.Close()

	stray := wire.AckBody{ClientOrderID: 1}
	sendFrame(t, client, codec.Pack[wire.AckBody](wire.Header{Type: uint8(wire.MsgAck), Version: wire.ProtocolVersion}, stray))

	newReq := wire.OrderNewBody{ClientOrderID: 2, Side: uint8(wire.SideBid), PriceTicks: 1, Qty: 1, InstrumentID: instr}
	sendFrame(t, client, codec.Pack[wire.OrderNewBody](wire.Header{Type: uint8(wire.MsgNew), Version: wire.ProtocolVersion}, newReq))

	ack := readAck(t, client)
	require.Equal(t, wire.AckOK, ack.Status)
}

func sendFrame(t *testing.T, conn net.Conn, frame []byte) {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Write(frame)
	require.NoError(t, err)
}

func readFrame(t *testing.T, conn net.Conn) codec.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	hdrBuf := make([]byte, wire.HeaderSize)
	_, err := readFull(conn, hdrBuf)
	require.NoError(t, err)
	var hdr wire.Header
	require.NoError(t, hdr.UnmarshalBinary(hdrBuf))
	body := make([]byte, int(hdr.Size)-wire.HeaderSize)
	_, err = readFull(conn, body)
	require.NoError(t, err)
	return codec.Frame{Header: hdr, Body: body}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readAck(t *testing.T, conn net.Conn) wire.AckBody {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, wire.MsgAck, wire.MsgType(f.Header.Type))
	ack, err := codec.DecodeBody[wire.AckBody](f.Body)
	require.NoError(t, err)
	return ack
}

func readTrade(t *testing.T, conn net.Conn) wire.TradeBody {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, wire.MsgTrade, wire.MsgType(f.Header.Type))
	trade, err := codec.DecodeBody[wire.TradeBody](f.Body)
	require.NoError(t, err)
	return trade
}
