package compressor

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestSimpleSnappyCompression(t *testing.T) {
	comp := SnappyCompressor{}
	data := "some data"

	compressedBytes, err := comp.Compress([]byte(data))
	assert.Nil(t, err)
	assert.Equal(t, 11, len(compressedBytes))

	decompressAndCheck(t, &comp, compressedBytes, data, 9)
}

func TestSimpleSnappyCompressionWithBuffers(t *testing.T) {
	comp := SnappyCompressor{}
	data := "some data"

	destBuf := make([]byte, 64)
	compressedBytes, err := comp.CompressWithBuf([]byte(data), destBuf)
	assert.Nil(t, err)
	assert.Equal(t, 11, len(compressedBytes))
	assert.Equal(t, &destBuf[0], &compressedBytes[0])

	decompressAndCheck(t, &comp, compressedBytes, data, 9)
}

func TestSnappyCompressionReusesBufferCapacity(t *testing.T) {
	comp := SnappyCompressor{}
	data := "some data"

	destBuf := make([]byte, 0, 64)
	compressedBytes, err := comp.CompressWithBuf([]byte(data), destBuf)
	assert.Nil(t, err)
	assert.Equal(t, 11, len(compressedBytes))
	assert.Equal(t, &destBuf[:1][0], &compressedBytes[0])

	decompressBuf := make([]byte, 0, 64)
	decompressed, err := comp.DecompressWithBuf(compressedBytes, decompressBuf)
	assert.Nil(t, err)
	assert.Equal(t, data, string(decompressed))
	assert.Equal(t, &decompressBuf[:1][0], &decompressed[0])
}
