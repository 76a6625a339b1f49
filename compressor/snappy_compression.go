package compressor

import (
	"github.com/golang/snappy"
)

// SnappyCompressor writes snappy blocks, which S2Compressor can read as well.
type SnappyCompressor struct {
}

func (c *SnappyCompressor) Compress(record []byte) ([]byte, error) {
	return snappy.Encode(nil, record), nil
}

func (c *SnappyCompressor) Decompress(buf []byte) ([]byte, error) {
	return snappy.Decode(nil, buf)
}

func (c *SnappyCompressor) CompressWithBuf(record []byte, destinationBuffer []byte) ([]byte, error) {
	// snappy only reuses dst by length, extend it to the full capacity first
	return snappy.Encode(destinationBuffer[:cap(destinationBuffer)], record), nil
}

func (c *SnappyCompressor) DecompressWithBuf(buf []byte, destinationBuffer []byte) ([]byte, error) {
	return snappy.Decode(destinationBuffer[:cap(destinationBuffer)], buf)
}
