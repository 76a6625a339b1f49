package framestream

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/thomasjungblut/go-lz4stream/blockcodec"
	"go.uber.org/zap"
)

// phase is either *headerPhase or *blockPhase.
type phase interface {
	name() string
}

// headerPhase accumulates the frame header, no block buffer exists yet.
type headerPhase struct {
	buf    []byte
	filled int
	// total header length once the codec could size it from the prefix, 0 before
	need int
}

func (*headerPhase) name() string { return "header" }

// blockPhase holds compressed bytes the codec has not consumed yet.
type blockPhase struct {
	info     blockcodec.FrameInfo
	capacity int
	pending  []byte
	size     int
}

func (*blockPhase) name() string { return "block" }

// Decompressor reassembles a frame from arbitrarily sized compressed chunks.
//
// The slice returned by Decompress aliases the session's output buffer and is overwritten by the
// next call, consume it before calling again. A Decompressor must not be used from multiple
// goroutines at once.
type Decompressor struct {
	id   string
	opts *Options
	log  *zap.Logger

	dctx   blockcodec.DecompressionContext
	output []byte
	phase  phase

	closed bool
	err    error
}

// NewDecompressor creates a session in the header phase. The block buffer is only allocated
// once the header announced the block size.
func NewDecompressor(opts ...Option) (*Decompressor, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	d := &Decompressor{id: uuid.NewString(), opts: o}
	d.log = o.logger.With(zap.String("session", d.id), zap.String("codec", o.codec.Name()))

	d.dctx, err = o.codec.NewDecompressionContext()
	if err != nil {
		return nil, newError(ErrCodecInit, d.id, err, "creating decompression context")
	}

	d.output, err = o.allocator.Allocate(o.outputBufferSize)
	if err != nil {
		_ = d.release()
		return nil, newError(ErrOutOfMemory, d.id, err, "allocating %d byte output buffer", o.outputBufferSize)
	}

	d.phase = &headerPhase{buf: make([]byte, o.codec.HeaderMax())}
	d.log.Debug("decompression session created", zap.Int("outputBytes", o.outputBufferSize))
	return d, nil
}

// Decompress pushes the next compressed chunk and returns the decompressed bytes that became
// available. An empty result without error means more input is needed. Once the header is parsed,
// an empty input drains output the codec could not fit into the previous call's buffer.
func (d *Decompressor) Decompress(input []byte) ([]byte, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}

	if hp, ok := d.phase.(*headerPhase); ok {
		n := copy(hp.buf[hp.filled:], input)
		hp.filled += n
		input = input[n:]

		complete, err := d.headerComplete(hp)
		if err != nil {
			return nil, d.fail(err)
		}
		if !complete {
			return nil, nil
		}

		bp, err := d.enterBlockPhase(hp)
		if err != nil {
			return nil, d.fail(err)
		}
		d.phase = bp
		if len(input) == 0 && bp.size == 0 {
			return nil, nil
		}
	}

	bp := d.phase.(*blockPhase)
	if bp.size+len(input) > bp.capacity {
		return nil, d.fail(newError(ErrBufferOverflow, d.id, nil,
			"%d pending plus %d new bytes exceed block capacity of %d", bp.size, len(input), bp.capacity))
	}
	bp.size += copy(bp.pending[bp.size:bp.capacity], input)

	consumed, produced, err := d.dctx.Decompress(d.output, bp.pending[:bp.size])
	if err != nil {
		return nil, d.fail(newError(ErrCodecFailure, d.id, err, "decompressing %d pending bytes", bp.size))
	}

	// keep the unconsumed tail at the front so a block may span several calls
	if consumed < bp.size {
		copy(bp.pending, bp.pending[consumed:bp.size])
	}
	bp.size -= consumed
	return d.output[:produced], nil
}

// Close releases the codec context and every buffer the session owns. It is safe in any phase,
// on a nil Decompressor and more than once.
func (d *Decompressor) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	err := d.release()
	d.log.Debug("decompression session closed")
	if err != nil {
		return fmt.Errorf("closing decompression session %s failed with %w", d.id, err)
	}
	return nil
}

// ID identifies the session in logs and errors.
func (d *Decompressor) ID() string {
	return d.id
}

// room returns how many bytes the next Decompress call accepts without overflowing.
func (d *Decompressor) room() int {
	switch p := d.phase.(type) {
	case *headerPhase:
		return len(p.buf) - p.filled
	case *blockPhase:
		return p.capacity - p.size
	}
	return 0
}

func (d *Decompressor) pendingBytes() int {
	if bp, ok := d.phase.(*blockPhase); ok {
		return bp.size
	}
	return 0
}

// frameComplete reports whether the codec stands between frames, codecs that cannot tell are
// trusted to have finished.
func (d *Decompressor) frameComplete() bool {
	if _, ok := d.phase.(*blockPhase); !ok {
		return false
	}
	if fc, ok := d.dctx.(interface{ FrameComplete() bool }); ok {
		return fc.FrameComplete() && d.pendingBytes() == 0
	}
	return true
}

func (d *Decompressor) headerComplete(hp *headerPhase) (bool, error) {
	if hp.need == 0 {
		if hp.filled < d.opts.codec.HeaderPrefix() && hp.filled < len(hp.buf) {
			return false, nil
		}
		need, err := d.dctx.HeaderSize(hp.buf[:hp.filled])
		if err != nil {
			return false, newError(ErrFormat, d.id, err, "sizing frame header")
		}
		if need <= 0 || need > len(hp.buf) {
			return false, newError(ErrFormat, d.id, nil, "frame header of %d bytes outside of (0, %d]", need, len(hp.buf))
		}
		hp.need = need
	}
	return hp.filled >= hp.need, nil
}

func (d *Decompressor) enterBlockPhase(hp *headerPhase) (*blockPhase, error) {
	info, used, err := d.dctx.FrameInfo(hp.buf[:hp.filled])
	if err != nil {
		return nil, newError(ErrFormat, d.id, err, "parsing frame header")
	}

	capacity := info.BlockSizeID.Size()
	if capacity == 0 {
		return nil, newError(ErrFormat, d.id, nil, "unknown block size id %d", info.BlockSizeID)
	}

	pending, err := d.opts.allocator.Allocate(capacity)
	if err != nil {
		return nil, newError(ErrOutOfMemory, d.id, err, "allocating %d byte block buffer", capacity)
	}

	bp := &blockPhase{info: info, capacity: capacity, pending: pending}
	// bytes past the header already belong to the first block
	bp.size = copy(bp.pending, hp.buf[used:hp.filled])

	d.log.Debug("frame header parsed",
		zap.Int("headerBytes", used),
		zap.Int("blockCapacity", capacity),
		zap.Bool("blockChecksum", info.BlockChecksum),
		zap.Bool("contentChecksum", info.ContentChecksum),
		zap.Int("carriedBytes", bp.size))
	return bp, nil
}

func (d *Decompressor) usable() error {
	if d == nil {
		return fmt.Errorf("decompress on nil decompressor: %w", ErrInvalidArgument)
	}
	if d.closed {
		return newError(ErrInvalidArgument, d.id, nil, "decompress on closed session")
	}
	return d.err
}

func (d *Decompressor) fail(err error) error {
	d.err = err
	d.log.Warn("decompression session failed", zap.String("phase", d.phase.name()), zap.Error(err))
	return err
}

func (d *Decompressor) release() error {
	var err error
	if d.dctx != nil {
		err = d.dctx.Close()
		d.dctx = nil
	}
	if bp, ok := d.phase.(*blockPhase); ok && bp.pending != nil {
		d.opts.allocator.Free(bp.pending)
		bp.pending = nil
	}
	if d.output != nil {
		d.opts.allocator.Free(d.output)
		d.output = nil
	}
	return err
}
