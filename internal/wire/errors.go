package wire

import "errors"

// ErrShortBuffer is returned when a byte slice is too small to hold the
// wire record being decoded into.
var ErrShortBuffer = errors.New("wire: buffer too small for decode")
