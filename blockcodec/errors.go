package blockcodec

import "errors"

var (
	ErrInvalidFrame = errors.New("invalid lz4 frame")
	ErrUnsupported  = errors.New("unsupported lz4 frame feature")
	ErrChecksum     = errors.New("lz4 checksum mismatch")
	ErrDstTooSmall  = errors.New("destination buffer too small")
	ErrContextState = errors.New("invalid context state")
	ErrClosed       = errors.New("context is closed")
)
