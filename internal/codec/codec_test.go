package codec_test

import (
	"testing"

	"github.com/ccyyhlg/matchcore/internal/codec"
	"github.com/ccyyhlg/matchcore/internal/wire"
	"github.com/stretchr/testify/require"
)

// TestPackRoundTrip exercises scenario 6 from spec.md §8: packing an
// OrderNewBody produces exactly 56 bytes, and unpacking reproduces the
// original header and body.
func TestPackRoundTrip(t *testing.T) {
	hdr := wire.Header{Type: uint8(wire.MsgNew), Version: wire.ProtocolVersion, Seqno: 0, TsNs: 123}
	body := wire.OrderNewBody{
		ClientOrderID: 42,
		PriceTicks:    10100,
		Qty:           25,
		InstrumentID:  1,
		Side:          uint8(wire.SideBid),
		Flags:         0,
	}

	frame := codec.Pack[wire.OrderNewBody](hdr, body)
	require.Len(t, frame, 56)

	fv, err := codec.UnpackFrame(frame)
	require.NoError(t, err)
	require.Equal(t, uint16(56), fv.Header.Size)
	require.Equal(t, hdr.Type, fv.Header.Type)
	require.Equal(t, hdr.TsNs, fv.Header.TsNs)

	decoded, err := codec.DecodeBody[wire.OrderNewBody](fv.Body)
	require.NoError(t, err)
	require.Equal(t, body, decoded)
}

func TestUnpackFrameShort(t *testing.T) {
	_, err := codec.UnpackFrame(make([]byte, wire.HeaderSize-1))
	require.ErrorIs(t, err, codec.ErrShortFrame)
}

func TestUnpackFrameSizeMismatch(t *testing.T) {
	hdr := wire.Header{Type: uint8(wire.MsgCancel)}
	body := wire.OrderCancelBody{ExchOrderID: 7}
	frame := codec.Pack[wire.OrderCancelBody](hdr, body)

	// Tamper with the frame so it no longer matches header.Size.
	truncated := frame[:len(frame)-1]
	_, err := codec.UnpackFrame(truncated)
	require.ErrorIs(t, err, codec.ErrSizeMismatch)
}

func TestDecodeBodyLengthMismatch(t *testing.T) {
	_, err := codec.DecodeBody[wire.AckBody](make([]byte, wire.AckBodySize-1))
	require.ErrorIs(t, err, codec.ErrBodyLengthMismatch)

	_, err = codec.DecodeBody[wire.AckBody](make([]byte, wire.AckBodySize+1))
	require.ErrorIs(t, err, codec.ErrBodyLengthMismatch)
}

// TestFramingStrictness covers P2: for all n, if header.Size != n +
// HeaderSize then UnpackFrame fails.
func TestFramingStrictness(t *testing.T) {
	for _, n := range []int{0, 1, 8, 24, 40, 100} {
		frame := make([]byte, wire.HeaderSize+n)
		hdr := wire.Header{Size: uint16(wire.HeaderSize + n + 1)} // deliberately wrong
		hb, _ := hdr.MarshalBinary()
		copy(frame, hb)

		_, err := codec.UnpackFrame(frame)
		require.ErrorIs(t, err, codec.ErrSizeMismatch, "n=%d", n)
	}
}
