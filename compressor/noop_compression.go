package compressor

// NoopCompressor passes records through, the WithBuf variants still copy into the destination.
type NoopCompressor struct {
}

func (c *NoopCompressor) Compress(record []byte) ([]byte, error) {
	return record, nil
}

func (c *NoopCompressor) Decompress(buf []byte) ([]byte, error) {
	return buf, nil
}

func (c *NoopCompressor) CompressWithBuf(record []byte, destinationBuffer []byte) ([]byte, error) {
	return append(destinationBuffer[:0], record...), nil
}

func (c *NoopCompressor) DecompressWithBuf(buf []byte, destinationBuffer []byte) ([]byte, error) {
	return append(destinationBuffer[:0], buf...), nil
}
