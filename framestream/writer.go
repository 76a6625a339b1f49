package framestream

import (
	"fmt"
	"io"

	pool "github.com/libp2p/go-buffer-pool"
)

// Writer compresses everything written to it into a single frame on the underlying writer.
// Close must be called to write the frame footer, it does not close the underlying writer.
type Writer struct {
	c      *Compressor
	w      *pool.Writer
	closed bool
}

// NewWriter creates the compression session and writes the frame header right away.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	c, err := NewCompressor(opts...)
	if err != nil {
		return nil, err
	}

	zw := &Writer{c: c, w: &pool.Writer{W: w}}
	header, err := c.Compress(nil)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if _, err := zw.w.Write(header); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("writing frame header failed with %w", err)
	}
	return zw, nil
}

// Write splits p into chunks the session accepts and writes their compressed form.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write on closed writer: %w", ErrInvalidArgument)
	}

	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > w.c.opts.maxInputChunk {
			n = w.c.opts.maxInputChunk
		}
		out, err := w.c.Compress(p[:n])
		if err != nil {
			return written, err
		}
		// out is only valid until the next Compress call
		if _, err := w.w.Write(out); err != nil {
			return written, fmt.Errorf("writing %d compressed bytes failed with %w", len(out), err)
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

// Flush pushes buffered compressed bytes to the underlying writer. Input the codec holds back
// without AutoFlush stays there until Close.
func (w *Writer) Flush() error {
	if w.closed {
		return nil
	}
	return w.w.Flush()
}

// Close finishes the frame, flushes it and releases the session.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	footer, err := w.c.Finish()
	if err == nil {
		if _, werr := w.w.Write(footer); werr != nil {
			err = fmt.Errorf("writing frame footer failed with %w", werr)
		}
	}
	if ferr := w.w.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("flushing frame failed with %w", ferr)
	}
	if cerr := w.c.Close(); err == nil {
		err = cerr
	}
	return err
}
