package compressor

import (
	"github.com/klauspost/compress/s2"
)

// S2Compressor uses the snappy compatible s2 block format.
type S2Compressor struct {
}

func (c *S2Compressor) Compress(record []byte) ([]byte, error) {
	return s2.Encode(nil, record), nil
}

func (c *S2Compressor) Decompress(buf []byte) ([]byte, error) {
	return s2.Decode(nil, buf)
}

func (c *S2Compressor) CompressWithBuf(record []byte, destinationBuffer []byte) ([]byte, error) {
	// s2 requires non-overlapping buffers and reuses the destination by capacity
	return s2.Encode(destinationBuffer, record), nil
}

func (c *S2Compressor) DecompressWithBuf(buf []byte, destinationBuffer []byte) ([]byte, error) {
	return s2.Decode(destinationBuffer, buf)
}
