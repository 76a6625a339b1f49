package framestream

import (
	"fmt"
	"io"
)

// Reader decompresses a frame stream read from an underlying reader. It never pushes more
// compressed bytes into the session than it can take and drains the session when its block
// buffer is full.
type Reader struct {
	d   *Decompressor
	src io.Reader

	in  []byte
	out []byte

	seen   bool
	eof    bool
	err    error
	closed bool
}

func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	d, err := NewDecompressor(opts...)
	if err != nil {
		return nil, err
	}

	in, err := d.opts.allocator.Allocate(d.opts.maxInputChunk)
	if err != nil {
		_ = d.Close()
		return nil, newError(ErrOutOfMemory, d.id, err, "allocating %d byte input buffer", d.opts.maxInputChunk)
	}
	return &Reader{d: d, src: r, in: in}, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("read on closed reader: %w", ErrInvalidArgument)
	}
	for len(r.out) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.err = r.fill()
	}
	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}

// fill leaves either new output in r.out or returns an error, io.EOF once the stream ended
// cleanly.
func (r *Reader) fill() error {
	room := r.d.room()
	if room == 0 || r.eof {
		out, err := r.d.Decompress(nil)
		if err != nil {
			return err
		}
		if len(out) > 0 {
			r.out = out
			return nil
		}
		if !r.eof {
			return newError(ErrBufferOverflow, r.d.id, nil, "no progress with %d pending bytes", r.d.pendingBytes())
		}
		if !r.seen || r.d.frameComplete() {
			return io.EOF
		}
		return io.ErrUnexpectedEOF
	}

	if room > len(r.in) {
		room = len(r.in)
	}
	n, err := r.src.Read(r.in[:room])
	if n > 0 {
		r.seen = true
		out, derr := r.d.Decompress(r.in[:n])
		if derr != nil {
			return derr
		}
		r.out = out
	}
	if err == io.EOF {
		r.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading compressed input failed with %w", err)
	}
	return nil
}

// Close releases the session, the underlying reader is left open.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.d.opts.allocator.Free(r.in)
	r.in = nil
	return r.d.Close()
}
