// Package wire defines the fixed-layout binary records carried over the
// matching core's request/response protocol, and how each one marshals
// to and from its exact on-wire byte layout.
//
// Every record's on-wire size is declared in the size constants below. Fields
// are written to and read from specific byte offsets in marshal.go, so
// the wire format is independent of how the Go compiler happens to lay
// out the struct in memory; the struct fields exist purely for a
// readable in-process API.
package wire

import "fmt"

// MsgType identifies the kind of body that follows a Header.
type MsgType uint8

const (
	MsgReserved MsgType = 0
	MsgNew      MsgType = 1
	MsgCancel   MsgType = 2
	MsgAck      MsgType = 3
	MsgTrade    MsgType = 4
)

func (t MsgType) String() string {
	switch t {
	case MsgReserved:
		return "RESERVED"
	case MsgNew:
		return "NEW"
	case MsgCancel:
		return "CANCEL"
	case MsgAck:
		return "ACK"
	case MsgTrade:
		return "TRADE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Side identifies which book a NEW order targets.
type Side uint8

const (
	SideBid Side = 0
	SideAsk Side = 1
)

// Time-in-force flag bits for OrderNewBody.Flags.
const (
	TIFIOC byte = 1 << 0 // Immediate-Or-Cancel
	TIFFOK byte = 1 << 1 // Fill-Or-Kill (reserved, see spec.md §9)
)

// AckStatus values for AckBody.Status.
const (
	AckOK   uint8 = 0
	AckNack uint8 = 1
)

// LiquidityFlag values for TradeBody.LiquidityFlag.
const (
	LiquidityAggressorBuy  uint8 = 0
	LiquidityAggressorSell uint8 = 1
)

// ProtocolVersion is the single supported wire version.
const ProtocolVersion uint8 = 1

// MaxFrameBody is the maximum allowed body length in a single frame.
const MaxFrameBody = 64 * 1024

// On-wire sizes, in bytes. See marshal.go for the byte-for-byte layout.
const (
	HeaderSize          = 24
	OrderNewBodySize    = 32
	OrderCancelBodySize = 24
	AckBodySize         = 40
	TradeBodySize       = 40
)

// Header precedes every body on the wire.
type Header struct {
	Type    uint8  // message type, see MsgType
	Version uint8  // protocol version, must equal ProtocolVersion
	Size    uint16 // total frame length: HeaderSize + len(body)
	Seqno   uint64 // ACKs always carry 0; trades increment per connection
	TsNs    uint64 // sender timestamp, nanoseconds
}

// OrderNewBody requests a new limit order. Reserved bits of Flags and the
// trailing padding must be zero on encode and are ignored on decode.
type OrderNewBody struct {
	ClientOrderID uint64 // client-supplied correlation id, echoed in the ack
	PriceTicks    int64  // limit price in ticks
	Qty           int32  // requested quantity, must be > 0
	InstrumentID  uint32
	Side          uint8 // 0=bid, 1=ask
	Flags         uint8 // bit0=IOC, bit1=FOK (reserved)
}

// OrderCancelBody requests cancellation of a resting order.
type OrderCancelBody struct {
	ExchOrderID   uint64 // 0 if unknown
	ClientOrderID uint64 // 0 if unused
	InstrumentID  uint32
	ReasonCode    uint8
}

// AckBody is the engine's reply to a NEW or CANCEL request.
type AckBody struct {
	ClientOrderID  uint64
	ExchOrderID    uint64 // 0 when rejected and no id was assigned
	Status         uint8  // 0=ACK, 1=NACK
	TsEngineRecvNs uint64
	TsEngineAckNs  uint64
}

// TradeBody is emitted once per maker consumed by a taker.
type TradeBody struct {
	PriceTicks         int64 // maker's resting price (price-improvement rule)
	Qty                int32
	LiquidityFlag      uint8 // 0=aggressor-buy, 1=aggressor-sell
	RestingExchOrderID uint64 // maker
	TakingExchOrderID  uint64 // taker
	InstrumentID       uint32
}
