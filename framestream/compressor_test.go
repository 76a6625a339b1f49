package framestream

import (
	"bytes"
	"io"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomasjungblut/go-lz4stream/blockcodec"
	"go.uber.org/zap/zaptest"
)

func TestCompressorHeaderFirst(t *testing.T) {
	c := newTestCompressor(t, WithLogger(zaptest.NewLogger(t)))
	defer func() { require.Nil(t, c.Close()) }()

	// the very first call ignores its input entirely
	header, err := c.Compress([]byte("payload that must not show up yet"))
	require.Nil(t, err)

	expected := make([]byte, blockcodec.HeaderMax)
	cctx, err := blockcodec.LZ4{}.NewCompressionContext(blockcodec.DefaultPreferences())
	require.Nil(t, err)
	n, err := cctx.Begin(expected)
	require.Nil(t, err)
	assert.Equal(t, expected[:n], header)
	assert.Equal(t, 7, len(header))

	out, err := c.Compress([]byte("payload"))
	require.Nil(t, err)
	assert.NotEmpty(t, out)
	assert.False(t, bytes.HasPrefix(out, header))
}

func TestCompressorHeaderFirstWithoutInput(t *testing.T) {
	c := newTestCompressor(t)
	defer func() { require.Nil(t, c.Close()) }()

	header, err := c.Compress(nil)
	require.Nil(t, err)
	assert.Equal(t, []byte{0x04, 0x22, 0x4d, 0x18}, header[:4])
	assert.True(t, c.headerEmitted)
}

func TestCompressorChunkSizeContract(t *testing.T) {
	c := newTestCompressor(t, MaxInputChunk(1024))
	defer func() { require.Nil(t, c.Close()) }()

	header, err := c.Compress(nil)
	require.Nil(t, err)
	stream := append([]byte{}, header...)

	_, err = c.Compress(make([]byte, 1025))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = c.Compress([]byte{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// the session stays usable after rejecting a chunk
	data := bytes.Repeat([]byte("still usable "), 78)
	out, err := c.Compress(data)
	require.Nil(t, err)
	stream = append(stream, out...)

	d := newTestDecompressor(t)
	defer func() { require.Nil(t, d.Close()) }()
	assert.Equal(t, data, decompressPieces(t, d, stream, 5))
}

func TestCompressorBufferAliasing(t *testing.T) {
	c := newTestCompressor(t)
	defer func() { require.Nil(t, c.Close()) }()

	_, err := c.Compress(nil)
	require.Nil(t, err)

	first, err := c.Compress(bytes.Repeat([]byte{'a'}, 5000))
	require.Nil(t, err)
	require.NotEmpty(t, first)
	snapshot := append([]byte{}, first...)

	second, err := c.Compress(bytes.Repeat([]byte{'b'}, 5000))
	require.Nil(t, err)
	require.NotEmpty(t, second)

	// both results live in the same scratch buffer, the first one got overwritten
	assert.Equal(t, &first[0], &second[0])
	assert.NotEqual(t, snapshot, first)
}

func TestCompressorBufferedMayProduceNothing(t *testing.T) {
	c := newTestCompressor(t, Buffered())
	defer func() { require.Nil(t, c.Close()) }()

	header, err := c.Compress(nil)
	require.Nil(t, err)

	out, err := c.Compress([]byte("small"))
	require.Nil(t, err)
	assert.Empty(t, out)

	footer, err := c.Finish()
	require.Nil(t, err)

	stream := append(append([]byte{}, header...), footer...)
	got, err := io.ReadAll(lz4.NewReader(bytes.NewReader(stream)))
	require.Nil(t, err)
	assert.Equal(t, []byte("small"), got)
}

func TestCompressorFinishReadableByLZ4Reader(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 20000)
	var chunks [][]byte
	for off := 0; off < len(data); off += 64 * 1024 {
		end := off + 64*1024
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}

	stream := compressChunks(t, chunks, BlockSize(blockcodec.BlockSize256KB), BlockChecksum(), ContentChecksum())
	got, err := io.ReadAll(lz4.NewReader(bytes.NewReader(stream)))
	require.Nil(t, err)
	assert.Equal(t, data, got)
}

func TestCompressorFinishStateChecks(t *testing.T) {
	c := newTestCompressor(t)
	defer func() { require.Nil(t, c.Close()) }()

	_, err := c.Compress(nil)
	require.Nil(t, err)
	_, err = c.Finish()
	require.Nil(t, err)

	_, err = c.Compress([]byte("late"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = c.Finish()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCompressorCloseIsIdempotent(t *testing.T) {
	alloc := NewPoolAllocator(0)
	c := newTestCompressor(t, WithAllocator(alloc))
	assert.True(t, alloc.Outstanding() > 0)

	require.Nil(t, c.Close())
	require.Nil(t, c.Close())
	assert.Equal(t, 0, alloc.Outstanding())

	_, err := c.Compress([]byte("x"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var nilCompressor *Compressor
	assert.Nil(t, nilCompressor.Close())
	_, err = nilCompressor.Compress(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCompressorScratchOutOfMemory(t *testing.T) {
	alloc := NewPoolAllocator(1024)
	_, err := NewCompressor(WithAllocator(alloc))
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, KindOutOfMemory, KindOf(err))
	assert.Equal(t, 0, alloc.Outstanding())
}

func TestCompressorCodecInitFailureReleasesScratch(t *testing.T) {
	alloc := NewPoolAllocator(0)
	codec := &fakeCodec{failCompressionContext: true}
	_, err := NewCompressor(WithAllocator(alloc), WithCodec(codec))
	assert.ErrorIs(t, err, ErrCodecInit)
	assert.Equal(t, 0, alloc.Outstanding())
}

func TestCompressorBeginFailureReleasesEverything(t *testing.T) {
	alloc := NewPoolAllocator(0)
	codec := &fakeCodec{failBegin: true}
	_, err := NewCompressor(WithAllocator(alloc), WithCodec(codec))
	assert.ErrorIs(t, err, ErrCodecInit)
	assert.Equal(t, KindCodecInit, KindOf(err))
	assert.Equal(t, 0, alloc.Outstanding())
	assert.Equal(t, 1, codec.closedContexts)
}

func TestCompressorInvalidOptions(t *testing.T) {
	_, err := NewCompressor(MaxInputChunk(0))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewCompressor(BlockSize(3))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewCompressor(CompressionLevel(42))
	assert.ErrorIs(t, err, ErrCodecInit)
}

func TestCompressorHighCompression(t *testing.T) {
	data := bytes.Repeat([]byte("high compression level "), 2000)
	fast := compressChunks(t, [][]byte{data})
	hc := compressChunks(t, [][]byte{data}, CompressionLevel(9))
	assert.True(t, len(hc) <= len(fast))

	d := newTestDecompressor(t)
	defer func() { require.Nil(t, d.Close()) }()
	assert.Equal(t, data, decompressPieces(t, d, hc, 1000))
}

func TestCompressorFinishPrependsMissingHeader(t *testing.T) {
	c := newTestCompressor(t, ContentChecksum())
	defer func() { require.Nil(t, c.Close()) }()

	frame, err := c.Finish()
	require.Nil(t, err)
	// 7 byte header, end mark and content checksum
	assert.Equal(t, 15, len(frame))
	assert.Equal(t, []byte{0x04, 0x22, 0x4d, 0x18}, frame[:4])
	assert.True(t, c.headerEmitted)

	got, err := io.ReadAll(lz4.NewReader(bytes.NewReader(frame)))
	require.Nil(t, err)
	assert.Empty(t, got)

	d := newTestDecompressor(t)
	defer func() { require.Nil(t, d.Close()) }()
	assert.Empty(t, decompressPieces(t, d, frame, 1))
	assert.True(t, d.frameComplete())

	_, err = c.Compress([]byte("late"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCompressorContentSize(t *testing.T) {
	data := bytes.Repeat([]byte("declared size "), 1000)
	stream := compressChunks(t, [][]byte{data}, ContentSize(uint64(len(data))))
	// the content size field makes the header 15 bytes
	assert.Equal(t, byte(0x08), stream[4]&0x08)

	got, err := io.ReadAll(lz4.NewReader(bytes.NewReader(stream)))
	require.Nil(t, err)
	assert.Equal(t, data, got)

	c := newTestCompressor(t, ContentSize(uint64(len(data)+1)))
	defer func() { require.Nil(t, c.Close()) }()
	_, err = c.Compress(nil)
	require.Nil(t, err)
	_, err = c.Compress(data)
	require.Nil(t, err)
	_, err = c.Finish()
	assert.ErrorIs(t, err, ErrCodecFailure)
	assert.ErrorIs(t, err, blockcodec.ErrInvalidFrame)
}
