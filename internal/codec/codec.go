// Package codec implements §4.B of the matching core's wire protocol:
// generic encode/decode of a single record, and pack/unpack of a
// complete frame (header + body).
package codec

import (
	"errors"
	"fmt"

	"github.com/ccyyhlg/matchcore/internal/wire"
)

var (
	// ErrShortFrame is returned when a byte slice is shorter than a header.
	ErrShortFrame = errors.New("codec: frame shorter than header size")
	// ErrSizeMismatch is returned when Header.Size disagrees with the
	// actual frame length handed to UnpackFrame.
	ErrSizeMismatch = errors.New("codec: header size does not match frame length")
	// ErrBodyLengthMismatch is returned when a body slice's length does
	// not exactly equal the target type's wire size.
	ErrBodyLengthMismatch = errors.New("codec: body length does not match target type size")
	// ErrOversizeFrame is returned when a header declares a body larger
	// than wire.MaxFrameBody.
	ErrOversizeFrame = errors.New("codec: frame body exceeds maximum size")
)

// msgPtr constrains T to a wire record type addressable as *T that
// implements wire.Message. It lets Encode/Decode be generic over the
// concrete struct type (e.g. wire.OrderNewBody) while operating through
// the pointer methods that actually do the marshaling.
type msgPtr[T any] interface {
	*T
	wire.Message
}

// Encode emits exactly T's wire size worth of bytes, in wire byte order.
func Encode[T any, PT msgPtr[T]](v T) []byte {
	p := PT(&v)
	b, _ := p.MarshalBinary() // fixed-layout records never fail to marshal
	return b
}

// Decode reads a T out of data. It fails with wire.ErrShortBuffer if
// data is shorter than T's wire size.
func Decode[T any, PT msgPtr[T]](data []byte) (T, error) {
	var v T
	p := PT(&v)
	if len(data) < p.WireSize() {
		return v, wire.ErrShortBuffer
	}
	if err := p.UnmarshalBinary(data); err != nil {
		return v, err
	}
	return v, nil
}

// Pack sets hdr.Size to HeaderSize+sizeof(body) and returns the
// concatenation of the encoded header and the encoded body.
func Pack[T any, PT msgPtr[T]](hdr wire.Header, body T) []byte {
	p := PT(&body)
	hdr.Size = uint16(wire.HeaderSize + p.WireSize())

	hb, _ := hdr.MarshalBinary()
	bb, _ := p.MarshalBinary()

	out := make([]byte, 0, len(hb)+len(bb))
	out = append(out, hb...)
	out = append(out, bb...)
	return out
}

// Frame is a decoded header plus the raw body bytes that follow it.
type Frame struct {
	Header wire.Header
	Body   []byte
}

// UnpackFrame validates and splits a complete frame buffer into its
// header and body sub-range. It fails with ErrShortFrame if the buffer
// is shorter than a header, or ErrSizeMismatch if Header.Size does not
// equal len(frame).
func UnpackFrame(frame []byte) (Frame, error) {
	if len(frame) < wire.HeaderSize {
		return Frame{}, ErrShortFrame
	}
	var h wire.Header
	if err := h.UnmarshalBinary(frame[:wire.HeaderSize]); err != nil {
		return Frame{}, fmt.Errorf("codec: decode header: %w", err)
	}
	if int(h.Size) != len(frame) {
		return Frame{}, ErrSizeMismatch
	}
	if len(frame)-wire.HeaderSize > wire.MaxFrameBody {
		return Frame{}, ErrOversizeFrame
	}
	return Frame{Header: h, Body: frame[wire.HeaderSize:]}, nil
}

// DecodeBody decodes a T from a body view, failing with
// ErrBodyLengthMismatch if the view's length is not exactly T's wire
// size (stricter than Decode, which only requires "at least").
func DecodeBody[T any, PT msgPtr[T]](body []byte) (T, error) {
	var v T
	p := PT(&v)
	if len(body) != p.WireSize() {
		return v, ErrBodyLengthMismatch
	}
	if err := p.UnmarshalBinary(body); err != nil {
		return v, err
	}
	return v, nil
}
