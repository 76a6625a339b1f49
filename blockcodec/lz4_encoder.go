package blockcodec

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/pierrec/lz4/v4"
	"github.com/pierrec/xxHash/xxHash32"
)

type encoderState int

const (
	encoderNew encoderState = iota
	encoderStarted
	encoderEnded
	encoderClosed
)

type lz4Encoder struct {
	prefs Preferences
	bs    int
	state encoderState

	fast *lz4.Compressor
	hc   *lz4.CompressorHC

	// input held back until a full block is available, only used without AutoFlush
	buf  []byte
	zbuf []byte

	content hash.Hash32
	total   uint64
}

func newLZ4Encoder(prefs Preferences) (*lz4Encoder, error) {
	bs := prefs.BlockSizeID.Size()
	if bs == 0 {
		return nil, fmt.Errorf("block size id %d: %w", prefs.BlockSizeID, ErrUnsupported)
	}
	if prefs.CompressionLevel < 0 || prefs.CompressionLevel > MaxCompressionLevel {
		return nil, fmt.Errorf("compression level %d: %w", prefs.CompressionLevel, ErrUnsupported)
	}

	e := &lz4Encoder{
		prefs: prefs,
		bs:    bs,
		zbuf:  make([]byte, lz4.CompressBlockBound(bs)),
	}
	if prefs.CompressionLevel > 0 {
		e.hc = &lz4.CompressorHC{Level: lz4.CompressionLevel(1 << (8 + prefs.CompressionLevel))}
	} else {
		e.fast = &lz4.Compressor{}
	}
	if !prefs.AutoFlush {
		e.buf = make([]byte, 0, bs)
	}
	if prefs.ContentChecksum {
		e.content = xxHash32.New(0)
	}
	return e, nil
}

func (e *lz4Encoder) Begin(dst []byte) (int, error) {
	if e.state != encoderNew {
		return 0, fmt.Errorf("begin called twice: %w", ErrContextState)
	}
	n, err := writeHeader(dst, e.prefs)
	if err != nil {
		return 0, err
	}
	e.state = encoderStarted
	return n, nil
}

func (e *lz4Encoder) Update(dst, src []byte) (int, error) {
	if e.state != encoderStarted {
		return 0, fmt.Errorf("update outside of a started frame: %w", ErrContextState)
	}

	written := 0
	for len(src) > 0 {
		// full blocks bypass the staging buffer entirely
		if len(e.buf) == 0 && len(src) >= e.bs {
			n, err := e.writeBlock(dst[written:], src[:e.bs])
			if err != nil {
				return written, err
			}
			written += n
			src = src[e.bs:]
			continue
		}

		if e.buf == nil {
			e.buf = make([]byte, 0, e.bs)
		}
		take := e.bs - len(e.buf)
		if take > len(src) {
			take = len(src)
		}
		e.buf = append(e.buf, src[:take]...)
		src = src[take:]
		if len(e.buf) == e.bs {
			n, err := e.flushBuffered(dst[written:])
			if err != nil {
				return written, err
			}
			written += n
		}
	}

	if e.prefs.AutoFlush && len(e.buf) > 0 {
		n, err := e.flushBuffered(dst[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (e *lz4Encoder) End(dst []byte) (int, error) {
	if e.state != encoderStarted {
		return 0, fmt.Errorf("end outside of a started frame: %w", ErrContextState)
	}

	written, err := e.flushBuffered(dst)
	if err != nil {
		return written, err
	}

	footer := 4
	if e.content != nil {
		footer += 4
	}
	if len(dst)-written < footer {
		return written, fmt.Errorf("frame footer needs %d bytes: %w", footer, ErrDstTooSmall)
	}
	if e.prefs.ContentSize > 0 && e.prefs.ContentSize != e.total {
		return written, fmt.Errorf("declared content size %d but compressed %d bytes: %w", e.prefs.ContentSize, e.total, ErrInvalidFrame)
	}

	binary.LittleEndian.PutUint32(dst[written:], 0)
	written += 4
	if e.content != nil {
		binary.LittleEndian.PutUint32(dst[written:], e.content.Sum32())
		written += 4
	}
	e.state = encoderEnded
	return written, nil
}

func (e *lz4Encoder) Close() error {
	e.state = encoderClosed
	e.buf = nil
	e.zbuf = nil
	e.fast = nil
	e.hc = nil
	return nil
}

func (e *lz4Encoder) flushBuffered(dst []byte) (int, error) {
	if len(e.buf) == 0 {
		return 0, nil
	}
	n, err := e.writeBlock(dst, e.buf)
	if err != nil {
		return 0, err
	}
	e.buf = e.buf[:0]
	return n, nil
}

func (e *lz4Encoder) writeBlock(dst, data []byte) (int, error) {
	overhead := 4
	if e.prefs.BlockChecksum {
		overhead += 4
	}
	if len(dst) < len(data)+overhead {
		return 0, fmt.Errorf("block of %d bytes needs up to %d bytes: %w", len(data), len(data)+overhead, ErrDstTooSmall)
	}

	var n int
	var err error
	if e.hc != nil {
		n, err = e.hc.CompressBlock(data, e.zbuf)
	} else {
		n, err = e.fast.CompressBlock(data, e.zbuf)
	}
	if err != nil {
		return 0, fmt.Errorf("compressing block of %d bytes failed with %w", len(data), err)
	}

	payload := e.zbuf[:n]
	header := uint32(n)
	if n == 0 || n >= len(data) {
		payload = data
		header = uint32(len(data)) | blockUncompressedFlag
	}

	binary.LittleEndian.PutUint32(dst[0:4], header)
	off := 4 + copy(dst[4:], payload)
	if e.prefs.BlockChecksum {
		binary.LittleEndian.PutUint32(dst[off:], xxHash32.Checksum(payload, 0))
		off += 4
	}

	if e.content != nil {
		_, _ = e.content.Write(data)
	}
	e.total += uint64(len(data))
	return off, nil
}
