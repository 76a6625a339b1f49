package compressor

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor keeps one encoder and decoder, both are safe for concurrent EncodeAll and DecodeAll calls.
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstdCompressor() (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder failed with %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("creating zstd decoder failed with %w", err)
	}
	return &ZstdCompressor{enc: enc, dec: dec}, nil
}

func (c *ZstdCompressor) Compress(record []byte) ([]byte, error) {
	return c.enc.EncodeAll(record, nil), nil
}

func (c *ZstdCompressor) Decompress(buf []byte) ([]byte, error) {
	return c.dec.DecodeAll(buf, nil)
}

func (c *ZstdCompressor) CompressWithBuf(record []byte, destinationBuffer []byte) ([]byte, error) {
	// EncodeAll appends, so the length is reset while keeping the capacity
	return c.enc.EncodeAll(record, destinationBuffer[:0]), nil
}

func (c *ZstdCompressor) DecompressWithBuf(buf []byte, destinationBuffer []byte) ([]byte, error) {
	return c.dec.DecodeAll(buf, destinationBuffer[:0])
}
