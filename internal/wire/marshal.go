package wire

import "encoding/binary"

// Message is implemented by every wire record. WireSize reports the
// record's fixed on-wire length, independent of len(p) passed to
// UnmarshalBinary (which codec.DecodeBody validates separately).
type Message interface {
	WireSize() int
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

func (h *Header) WireSize() int { return HeaderSize }

func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	b[0] = h.Type
	b[1] = h.Version
	binary.LittleEndian.PutUint16(b[2:4], h.Size)
	// bytes 4:8 reserved, left zero
	binary.LittleEndian.PutUint64(b[8:16], h.Seqno)
	binary.LittleEndian.PutUint64(b[16:24], h.TsNs)
	return b, nil
}

func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return ErrShortBuffer
	}
	h.Type = b[0]
	h.Version = b[1]
	h.Size = binary.LittleEndian.Uint16(b[2:4])
	h.Seqno = binary.LittleEndian.Uint64(b[8:16])
	h.TsNs = binary.LittleEndian.Uint64(b[16:24])
	return nil
}

func (o *OrderNewBody) WireSize() int { return OrderNewBodySize }

func (o *OrderNewBody) MarshalBinary() ([]byte, error) {
	b := make([]byte, OrderNewBodySize)
	binary.LittleEndian.PutUint64(b[0:8], o.ClientOrderID)
	binary.LittleEndian.PutUint64(b[8:16], uint64(o.PriceTicks))
	binary.LittleEndian.PutUint32(b[16:20], uint32(o.Qty))
	binary.LittleEndian.PutUint32(b[20:24], o.InstrumentID)
	b[24] = o.Side
	b[25] = o.Flags
	// bytes 26:32 reserved, left zero
	return b, nil
}

func (o *OrderNewBody) UnmarshalBinary(b []byte) error {
	if len(b) < OrderNewBodySize {
		return ErrShortBuffer
	}
	o.ClientOrderID = binary.LittleEndian.Uint64(b[0:8])
	o.PriceTicks = int64(binary.LittleEndian.Uint64(b[8:16]))
	o.Qty = int32(binary.LittleEndian.Uint32(b[16:20]))
	o.InstrumentID = binary.LittleEndian.Uint32(b[20:24])
	o.Side = b[24]
	o.Flags = b[25]
	return nil
}

func (c *OrderCancelBody) WireSize() int { return OrderCancelBodySize }

func (c *OrderCancelBody) MarshalBinary() ([]byte, error) {
	b := make([]byte, OrderCancelBodySize)
	binary.LittleEndian.PutUint64(b[0:8], c.ExchOrderID)
	binary.LittleEndian.PutUint64(b[8:16], c.ClientOrderID)
	binary.LittleEndian.PutUint32(b[16:20], c.InstrumentID)
	b[20] = c.ReasonCode
	// bytes 21:24 reserved, left zero
	return b, nil
}

func (c *OrderCancelBody) UnmarshalBinary(b []byte) error {
	if len(b) < OrderCancelBodySize {
		return ErrShortBuffer
	}
	c.ExchOrderID = binary.LittleEndian.Uint64(b[0:8])
	c.ClientOrderID = binary.LittleEndian.Uint64(b[8:16])
	c.InstrumentID = binary.LittleEndian.Uint32(b[16:20])
	c.ReasonCode = b[20]
	return nil
}

func (a *AckBody) WireSize() int { return AckBodySize }

func (a *AckBody) MarshalBinary() ([]byte, error) {
	b := make([]byte, AckBodySize)
	binary.LittleEndian.PutUint64(b[0:8], a.ClientOrderID)
	binary.LittleEndian.PutUint64(b[8:16], a.ExchOrderID)
	b[16] = a.Status
	// bytes 17:24 reserved, left zero
	binary.LittleEndian.PutUint64(b[24:32], a.TsEngineRecvNs)
	binary.LittleEndian.PutUint64(b[32:40], a.TsEngineAckNs)
	return b, nil
}

func (a *AckBody) UnmarshalBinary(b []byte) error {
	if len(b) < AckBodySize {
		return ErrShortBuffer
	}
	a.ClientOrderID = binary.LittleEndian.Uint64(b[0:8])
	a.ExchOrderID = binary.LittleEndian.Uint64(b[8:16])
	a.Status = b[16]
	a.TsEngineRecvNs = binary.LittleEndian.Uint64(b[24:32])
	a.TsEngineAckNs = binary.LittleEndian.Uint64(b[32:40])
	return nil
}

func (t *TradeBody) WireSize() int { return TradeBodySize }

func (t *TradeBody) MarshalBinary() ([]byte, error) {
	b := make([]byte, TradeBodySize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(t.PriceTicks))
	binary.LittleEndian.PutUint32(b[8:12], uint32(t.Qty))
	b[12] = t.LiquidityFlag
	// bytes 13:16 reserved, left zero
	binary.LittleEndian.PutUint64(b[16:24], t.RestingExchOrderID)
	binary.LittleEndian.PutUint64(b[24:32], t.TakingExchOrderID)
	binary.LittleEndian.PutUint32(b[32:36], t.InstrumentID)
	// bytes 36:40 reserved, left zero
	return b, nil
}

func (t *TradeBody) UnmarshalBinary(b []byte) error {
	if len(b) < TradeBodySize {
		return ErrShortBuffer
	}
	t.PriceTicks = int64(binary.LittleEndian.Uint64(b[0:8]))
	t.Qty = int32(binary.LittleEndian.Uint32(b[8:12]))
	t.LiquidityFlag = b[12]
	t.RestingExchOrderID = binary.LittleEndian.Uint64(b[16:24])
	t.TakingExchOrderID = binary.LittleEndian.Uint64(b[24:32])
	t.InstrumentID = binary.LittleEndian.Uint32(b[32:36])
	return nil
}

var (
	_ Message = (*Header)(nil)
	_ Message = (*OrderNewBody)(nil)
	_ Message = (*OrderCancelBody)(nil)
	_ Message = (*AckBody)(nil)
	_ Message = (*TradeBody)(nil)
)
