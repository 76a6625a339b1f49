package compressor

import "fmt"

const (
	// never reorder, always append
	CompressionTypeNone     = iota
	CompressionTypeSnappy   = iota
	CompressionTypeZstd     = iota
	CompressionTypeS2       = iota
	CompressionTypeLZ4Frame = iota
)

type CompressionI interface {
	// compresses the given record of bytes
	Compress(record []byte) ([]byte, error)
	// decompresses the given byte buffer
	Decompress(buf []byte) ([]byte, error)
	// compresses the record into the given buffer, which is reallocated when too small
	CompressWithBuf(record []byte, destinationBuffer []byte) ([]byte, error)
	// decompresses the buffer into the given buffer, which is reallocated when too small
	DecompressWithBuf(buf []byte, destinationBuffer []byte) ([]byte, error)
}

// NewCompressorForType returns the record codec for one of the CompressionType* constants.
func NewCompressorForType(compType int) (CompressionI, error) {
	switch compType {
	case CompressionTypeNone:
		return &NoopCompressor{}, nil
	case CompressionTypeSnappy:
		return &SnappyCompressor{}, nil
	case CompressionTypeZstd:
		return NewZstdCompressor()
	case CompressionTypeS2:
		return &S2Compressor{}, nil
	case CompressionTypeLZ4Frame:
		return &LZ4FrameCompressor{}, nil
	}
	return nil, fmt.Errorf("unsupported compression type %d", compType)
}
