package framestream

import (
	"fmt"

	"github.com/thomasjungblut/go-lz4stream/blockcodec"
	"go.uber.org/zap"
)

const (
	DefaultMaxInputChunk    = 64 * 1024
	DefaultOutputBufferSize = 64 * 1024
)

type Options struct {
	codec            blockcodec.Codec
	prefs            blockcodec.Preferences
	maxInputChunk    int
	outputBufferSize int
	allocator        Allocator
	logger           *zap.Logger
}

type Option func(*Options)

// WithCodec replaces the block codec, by default the LZ4 frame codec is used.
func WithCodec(c blockcodec.Codec) Option {
	return func(args *Options) {
		args.codec = c
	}
}

// MaxInputChunk bounds the size of every chunk passed to Compressor.Compress, defaults to DefaultMaxInputChunk.
func MaxInputChunk(n int) Option {
	return func(args *Options) {
		args.maxInputChunk = n
	}
}

// BlockSize sets the block size id announced in the frame header, defaults to blockcodec.BlockSize64KB.
func BlockSize(id blockcodec.BlockSizeID) Option {
	return func(args *Options) {
		args.prefs.BlockSizeID = id
	}
}

// BlockChecksum appends a checksum to every compressed block.
func BlockChecksum() Option {
	return func(args *Options) {
		args.prefs.BlockChecksum = true
	}
}

// ContentChecksum appends a checksum over the uncompressed content when the frame is finished.
func ContentChecksum() Option {
	return func(args *Options) {
		args.prefs.ContentChecksum = true
	}
}

// ContentSize announces the total uncompressed size in the frame header, Finish fails when the
// compressed content does not add up to it.
func ContentSize(n uint64) Option {
	return func(args *Options) {
		args.prefs.ContentSize = n
	}
}

// Buffered lets the codec hold back input until a full block is available,
// Compress may then return no output for a chunk.
func Buffered() Option {
	return func(args *Options) {
		args.prefs.AutoFlush = false
	}
}

// CompressionLevel selects the high compression encoder for levels 1-9, 0 is the fast encoder.
func CompressionLevel(level int) Option {
	return func(args *Options) {
		args.prefs.CompressionLevel = level
	}
}

// OutputBufferSize sets the size of the buffer every Decompress call writes into.
func OutputBufferSize(n int) Option {
	return func(args *Options) {
		args.outputBufferSize = n
	}
}

// WithAllocator sets where session buffers come from, defaults to an unlimited PoolAllocator.
func WithAllocator(a Allocator) Option {
	return func(args *Options) {
		args.allocator = a
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(args *Options) {
		args.logger = l
	}
}

func newOptions(opts []Option) (*Options, error) {
	o := &Options{
		codec:            blockcodec.LZ4{},
		prefs:            blockcodec.DefaultPreferences(),
		maxInputChunk:    DefaultMaxInputChunk,
		outputBufferSize: DefaultOutputBufferSize,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.codec == nil {
		return nil, fmt.Errorf("no codec supplied: %w", ErrInvalidArgument)
	}
	if o.maxInputChunk <= 0 {
		return nil, fmt.Errorf("max input chunk must be positive, was %d: %w", o.maxInputChunk, ErrInvalidArgument)
	}
	if o.outputBufferSize <= 0 {
		return nil, fmt.Errorf("output buffer size must be positive, was %d: %w", o.outputBufferSize, ErrInvalidArgument)
	}
	if o.allocator == nil {
		o.allocator = NewPoolAllocator(0)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o, nil
}
