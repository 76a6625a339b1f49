package framestream

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thomasjungblut/go-lz4stream/blockcodec"
)

// fakeCodec wraps the lz4 frame codec and injects failures.
type fakeCodec struct {
	blockcodec.LZ4
	failCompressionContext   bool
	failBegin                bool
	failDecompressionContext bool
	frameBlockSizeID         blockcodec.BlockSizeID
	headerPrefix             int

	closedContexts int
}

func (f *fakeCodec) HeaderPrefix() int {
	if f.headerPrefix > 0 {
		return f.headerPrefix
	}
	return f.LZ4.HeaderPrefix()
}

func (f *fakeCodec) NewCompressionContext(prefs blockcodec.Preferences) (blockcodec.CompressionContext, error) {
	if f.failCompressionContext {
		return nil, errors.New("no compression context today")
	}
	ctx, err := f.LZ4.NewCompressionContext(prefs)
	if err != nil {
		return nil, err
	}
	return &fakeCompressionContext{CompressionContext: ctx, codec: f}, nil
}

func (f *fakeCodec) NewDecompressionContext() (blockcodec.DecompressionContext, error) {
	if f.failDecompressionContext {
		return nil, errors.New("no decompression context today")
	}
	ctx, err := f.LZ4.NewDecompressionContext()
	if err != nil {
		return nil, err
	}
	return &fakeDecompressionContext{DecompressionContext: ctx, codec: f}, nil
}

type fakeCompressionContext struct {
	blockcodec.CompressionContext
	codec *fakeCodec
}

func (c *fakeCompressionContext) Begin(dst []byte) (int, error) {
	if c.codec.failBegin {
		return 0, errors.New("header refused")
	}
	return c.CompressionContext.Begin(dst)
}

func (c *fakeCompressionContext) Close() error {
	c.codec.closedContexts++
	return c.CompressionContext.Close()
}

type fakeDecompressionContext struct {
	blockcodec.DecompressionContext
	codec *fakeCodec
}

func (c *fakeDecompressionContext) FrameInfo(header []byte) (blockcodec.FrameInfo, int, error) {
	info, n, err := c.DecompressionContext.FrameInfo(header)
	if err == nil && c.codec.frameBlockSizeID != 0 {
		info.BlockSizeID = c.codec.frameBlockSizeID
	}
	return info, n, err
}

func (c *fakeDecompressionContext) Close() error {
	c.codec.closedContexts++
	return c.DecompressionContext.Close()
}

func newTestCompressor(t *testing.T, opts ...Option) *Compressor {
	c, err := NewCompressor(opts...)
	require.Nil(t, err)
	return c
}

func newTestDecompressor(t *testing.T, opts ...Option) *Decompressor {
	d, err := NewDecompressor(opts...)
	require.Nil(t, err)
	return d
}

// compressChunks runs every chunk through a fresh compressor and returns header, payload and footer.
func compressChunks(t *testing.T, chunks [][]byte, opts ...Option) []byte {
	c := newTestCompressor(t, opts...)
	defer func() { require.Nil(t, c.Close()) }()

	header, err := c.Compress(nil)
	require.Nil(t, err)
	stream := append([]byte{}, header...)
	for _, chunk := range chunks {
		out, err := c.Compress(chunk)
		require.Nil(t, err)
		stream = append(stream, out...)
	}
	footer, err := c.Finish()
	require.Nil(t, err)
	return append(stream, footer...)
}

// decompressPieces feeds the stream in the given piece sizes (cycled), splitting pieces the session
// cannot take at once and draining when its block buffer is full.
func decompressPieces(t *testing.T, d *Decompressor, stream []byte, pieces ...int) []byte {
	var out []byte
	for i := 0; len(stream) > 0; i++ {
		n := pieces[i%len(pieces)]
		if n > len(stream) {
			n = len(stream)
		}
		out = append(out, feed(t, d, stream[:n])...)
		stream = stream[n:]
	}
	for {
		o, err := d.Decompress(nil)
		require.Nil(t, err)
		if len(o) == 0 {
			return out
		}
		out = append(out, o...)
	}
}

func feed(t *testing.T, d *Decompressor, piece []byte) []byte {
	var out []byte
	for len(piece) > 0 {
		n := d.room()
		if n > len(piece) {
			n = len(piece)
		}
		o, err := d.Decompress(piece[:n])
		require.Nil(t, err)
		out = append(out, o...)
		piece = piece[n:]
	}
	return out
}

func randomChunks(r *rand.Rand, total, maxChunk int) ([][]byte, []byte) {
	words := []string{"archive ", "cache ", "build ", "target ", "frame ", "lz4 "}
	var all []byte
	var chunks [][]byte
	for len(all) < total {
		size := 1 + r.Intn(maxChunk)
		chunk := make([]byte, 0, size)
		for len(chunk) < size {
			if r.Intn(10) == 0 {
				chunk = append(chunk, byte(r.Intn(256)))
			} else {
				chunk = append(chunk, words[r.Intn(len(words))]...)
			}
		}
		chunk = chunk[:size]
		chunks = append(chunks, chunk)
		all = append(all, chunk...)
	}
	return chunks, all
}
