package compressor

import (
	"bytes"

	"github.com/thomasjungblut/go-lz4stream/framestream"
)

// LZ4FrameCompressor writes every record as a standalone LZ4 frame through the streaming sessions.
type LZ4FrameCompressor struct {
	// Options are passed to both the writer and the reader sessions.
	Options []framestream.Option
}

func (c *LZ4FrameCompressor) Compress(record []byte) ([]byte, error) {
	return c.CompressWithBuf(record, nil)
}

func (c *LZ4FrameCompressor) Decompress(buf []byte) ([]byte, error) {
	return c.DecompressWithBuf(buf, nil)
}

func (c *LZ4FrameCompressor) CompressWithBuf(record []byte, destinationBuffer []byte) ([]byte, error) {
	// we have to set the length of the buffer (keeping capacity) to make sure the writer doesn't append
	buf := bytes.NewBuffer(destinationBuffer[:0])
	writer, err := framestream.NewWriter(buf, c.Options...)
	if err != nil {
		return nil, err
	}
	_, err = writer.Write(record)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	err = writer.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *LZ4FrameCompressor) DecompressWithBuf(buf []byte, destinationBuffer []byte) ([]byte, error) {
	reader, err := framestream.NewReader(bytes.NewReader(buf), c.Options...)
	if err != nil {
		return nil, err
	}
	resultBuffer := bytes.NewBuffer(destinationBuffer[:0])
	_, err = resultBuffer.ReadFrom(reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	err = reader.Close()
	if err != nil {
		return nil, err
	}
	return resultBuffer.Bytes(), nil
}
