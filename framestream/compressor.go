package framestream

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/thomasjungblut/go-lz4stream/blockcodec"
	"go.uber.org/zap"
)

// Compressor turns a sequence of bounded input chunks into one frame: the header on the first
// call, then whatever compressed output the codec produces for every further chunk.
//
// Slices returned by Compress and Finish alias memory owned by the session and are only valid
// until the next call on the same Compressor, copy or write them out before calling again.
// A Compressor must not be used from multiple goroutines at once.
type Compressor struct {
	id   string
	opts *Options
	log  *zap.Logger

	cctx    blockcodec.CompressionContext
	scratch []byte

	header        []byte
	headerLen     int
	headerEmitted bool

	finished bool
	closed   bool
	err      error
}

// NewCompressor creates a session with its scratch buffer, codec context and frame header ready.
// On failure everything acquired so far is released again.
func NewCompressor(opts ...Option) (*Compressor, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	c := &Compressor{id: uuid.NewString(), opts: o}
	c.log = o.logger.With(zap.String("session", c.id), zap.String("codec", o.codec.Name()))

	bound := o.codec.CompressBound(o.maxInputChunk, o.prefs)
	if bound <= 0 {
		return nil, newError(ErrInvalidArgument, c.id, nil, "codec has no compress bound for block size id %d", o.prefs.BlockSizeID)
	}
	// room for the header in front of the footer when Finish is the first call
	bound += o.codec.HeaderMax()

	c.scratch, err = o.allocator.Allocate(bound)
	if err != nil {
		return nil, newError(ErrOutOfMemory, c.id, err, "allocating %d byte scratch buffer", bound)
	}

	c.cctx, err = o.codec.NewCompressionContext(o.prefs)
	if err != nil {
		_ = c.release()
		return nil, newError(ErrCodecInit, c.id, err, "creating compression context")
	}

	c.header = make([]byte, o.codec.HeaderMax())
	c.headerLen, err = c.cctx.Begin(c.header)
	if err != nil {
		_ = c.release()
		return nil, newError(ErrCodecInit, c.id, err, "writing frame header")
	}

	c.log.Debug("compression session created",
		zap.Int("maxInputChunk", o.maxInputChunk),
		zap.Int("scratchBytes", bound),
		zap.Int("headerBytes", c.headerLen))
	return c, nil
}

// Compress returns the frame header on the very first call, ignoring input. Every later call
// requires 0 < len(input) <= MaxInputChunk and returns the compressed bytes the codec emitted,
// which may be none when the codec holds input back.
func (c *Compressor) Compress(input []byte) ([]byte, error) {
	if err := c.usable("compress"); err != nil {
		return nil, err
	}

	if !c.headerEmitted {
		c.headerEmitted = true
		c.log.Debug("frame header emitted", zap.Int("bytes", c.headerLen))
		return c.header[:c.headerLen], nil
	}

	if len(input) == 0 || len(input) > c.opts.maxInputChunk {
		return nil, newError(ErrInvalidArgument, c.id, nil, "input chunk of %d bytes outside of (0, %d]", len(input), c.opts.maxInputChunk)
	}

	n, err := c.cctx.Update(c.scratch, input)
	if err != nil {
		return nil, c.fail(newError(ErrCodecFailure, c.id, err, "compressing chunk of %d bytes", len(input)))
	}
	return c.scratch[:n], nil
}

// Finish is the terminal call of a frame: it flushes input the codec still holds and returns the
// frame footer, preceded by the header if no Compress call emitted it yet. No Compress call is
// accepted afterwards.
func (c *Compressor) Finish() ([]byte, error) {
	if err := c.usable("finish"); err != nil {
		return nil, err
	}

	off := 0
	if !c.headerEmitted {
		off = copy(c.scratch, c.header[:c.headerLen])
		c.headerEmitted = true
	}

	n, err := c.cctx.End(c.scratch[off:])
	if err != nil {
		return nil, c.fail(newError(ErrCodecFailure, c.id, err, "ending frame"))
	}
	c.finished = true
	c.log.Debug("frame finished", zap.Int("headerBytes", off), zap.Int("footerBytes", n))
	return c.scratch[:off+n], nil
}

// Close releases the codec context and the scratch buffer. It is safe to call on a nil
// Compressor and more than once.
func (c *Compressor) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	err := c.release()
	c.log.Debug("compression session closed")
	if err != nil {
		return fmt.Errorf("closing compression session %s failed with %w", c.id, err)
	}
	return nil
}

// ID identifies the session in logs and errors.
func (c *Compressor) ID() string {
	return c.id
}

func (c *Compressor) usable(op string) error {
	if c == nil {
		return fmt.Errorf("%s on nil compressor: %w", op, ErrInvalidArgument)
	}
	if c.closed {
		return newError(ErrInvalidArgument, c.id, nil, "%s on closed session", op)
	}
	if c.err != nil {
		return c.err
	}
	if c.finished {
		return newError(ErrInvalidArgument, c.id, nil, "%s after the frame was finished", op)
	}
	return nil
}

func (c *Compressor) fail(err error) error {
	c.err = err
	c.log.Warn("compression session failed", zap.Error(err))
	return err
}

func (c *Compressor) release() error {
	var err error
	if c.cctx != nil {
		err = c.cctx.Close()
		c.cctx = nil
	}
	if c.scratch != nil {
		c.opts.allocator.Free(c.scratch)
		c.scratch = nil
	}
	return err
}
