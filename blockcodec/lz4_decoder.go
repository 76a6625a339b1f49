package blockcodec

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/pierrec/lz4/v4"
	"github.com/pierrec/xxHash/xxHash32"
)

type decoderStage int

const (
	// waiting for the header of the next frame
	stageHeader decoderStage = iota
	stageBlockSize
	stageBlockData
	stageFlush
	stageContentChecksum
)

// lz4Decoder is an incremental frame decoder. It stages at most one block internally and
// stops consuming input while a decoded block does not fit into the destination.
type lz4Decoder struct {
	stage  decoderStage
	closed bool

	info FrameInfo
	bs   int

	hdr     [HeaderMax]byte
	hdrLen  int
	hdrNeed int

	word    [4]byte
	wordLen int

	raw      bool
	blockLen int
	in       []byte
	outBuf   []byte
	out      []byte
	outPos   int
	history  []byte
	content  hash.Hash32
	total    uint64
	frameEnd bool
}

func (d *lz4Decoder) HeaderSize(prefix []byte) (int, error) {
	return headerSize(prefix)
}

func (d *lz4Decoder) FrameInfo(header []byte) (FrameInfo, int, error) {
	if d.closed {
		return FrameInfo{}, 0, ErrClosed
	}
	if d.stage != stageHeader || d.hdrLen != 0 {
		return FrameInfo{}, 0, fmt.Errorf("frame info requested mid-frame: %w", ErrContextState)
	}
	info, err := parseHeader(header)
	if err != nil {
		return info, 0, err
	}
	if err := d.startFrame(info); err != nil {
		return info, 0, err
	}
	return info, info.HeaderSize, nil
}

func (d *lz4Decoder) Decompress(dst, src []byte) (int, int, error) {
	if d.closed {
		return 0, 0, ErrClosed
	}

	consumed, produced := 0, 0
	for {
		switch d.stage {
		case stageHeader:
			if consumed == len(src) {
				return consumed, produced, nil
			}
			need := MinHeaderPrefix
			if d.hdrNeed > 0 {
				need = d.hdrNeed
			}
			n := copy(d.hdr[d.hdrLen:need], src[consumed:])
			d.hdrLen += n
			consumed += n
			if d.hdrLen < need {
				return consumed, produced, nil
			}
			if d.hdrNeed == 0 {
				size, err := headerSize(d.hdr[:d.hdrLen])
				if err != nil {
					return consumed, produced, err
				}
				d.hdrNeed = size
				continue
			}
			info, err := parseHeader(d.hdr[:d.hdrLen])
			if err != nil {
				return consumed, produced, err
			}
			d.hdrLen, d.hdrNeed = 0, 0
			if err := d.startFrame(info); err != nil {
				return consumed, produced, err
			}

		case stageBlockSize:
			if !d.fillWord(src, &consumed) {
				return consumed, produced, nil
			}
			v := binary.LittleEndian.Uint32(d.word[:])
			if v == 0 {
				if d.info.ContentChecksum {
					d.stage = stageContentChecksum
				} else if err := d.finishFrame(); err != nil {
					return consumed, produced, err
				}
				continue
			}
			size := int(v & blockSizeMask)
			if size > d.bs {
				return consumed, produced, fmt.Errorf("block of %d bytes exceeds maximum of %d: %w", size, d.bs, ErrInvalidFrame)
			}
			d.raw = v&blockUncompressedFlag != 0
			d.blockLen = size
			if d.info.BlockChecksum {
				d.blockLen += 4
			}
			d.in = d.in[:0]
			d.stage = stageBlockData

		case stageBlockData:
			if missing := d.blockLen - len(d.in); missing > 0 {
				avail := len(src) - consumed
				if avail > missing {
					avail = missing
				}
				d.in = append(d.in, src[consumed:consumed+avail]...)
				consumed += avail
				if len(d.in) < d.blockLen {
					return consumed, produced, nil
				}
			}
			if err := d.decodeBlock(); err != nil {
				return consumed, produced, err
			}
			d.outPos = 0
			d.stage = stageFlush

		case stageFlush:
			n := copy(dst[produced:], d.out[d.outPos:])
			d.outPos += n
			produced += n
			if d.outPos < len(d.out) {
				return consumed, produced, nil
			}
			d.stage = stageBlockSize

		case stageContentChecksum:
			if !d.fillWord(src, &consumed) {
				return consumed, produced, nil
			}
			want := binary.LittleEndian.Uint32(d.word[:])
			if got := d.content.Sum32(); got != want {
				return consumed, produced, fmt.Errorf("content checksum got %x expected %x: %w", got, want, ErrChecksum)
			}
			if err := d.finishFrame(); err != nil {
				return consumed, produced, err
			}

		default:
			return consumed, produced, fmt.Errorf("unknown decoder stage %d: %w", d.stage, ErrContextState)
		}
	}
}

func (d *lz4Decoder) Close() error {
	d.closed = true
	d.in = nil
	d.outBuf = nil
	d.out = nil
	d.history = nil
	return nil
}

// FrameComplete reports whether the decoder is positioned between frames.
func (d *lz4Decoder) FrameComplete() bool {
	return d.frameEnd && d.stage == stageHeader && d.hdrLen == 0
}

func (d *lz4Decoder) startFrame(info FrameInfo) error {
	if info.DictID != 0 {
		return fmt.Errorf("dictionary id %d: %w", info.DictID, ErrUnsupported)
	}
	bs := info.BlockSizeID.Size()
	if bs == 0 {
		return fmt.Errorf("block size id %d: %w", info.BlockSizeID, ErrUnsupported)
	}

	d.info = info
	d.bs = bs
	if cap(d.in) < bs+4 {
		d.in = make([]byte, 0, bs+4)
	}
	if cap(d.outBuf) < bs {
		d.outBuf = make([]byte, bs)
	}
	d.outBuf = d.outBuf[:bs]
	d.out = d.outBuf[:0]
	d.history = d.history[:0]
	d.content = nil
	if info.ContentChecksum {
		d.content = xxHash32.New(0)
	}
	d.total = 0
	d.wordLen = 0
	d.frameEnd = false
	d.stage = stageBlockSize
	return nil
}

func (d *lz4Decoder) finishFrame() error {
	if d.info.ContentSize > 0 && d.info.ContentSize != d.total {
		return fmt.Errorf("frame declared %d bytes of content but decoded %d: %w", d.info.ContentSize, d.total, ErrInvalidFrame)
	}
	d.frameEnd = true
	d.stage = stageHeader
	return nil
}

func (d *lz4Decoder) fillWord(src []byte, consumed *int) bool {
	n := copy(d.word[d.wordLen:], src[*consumed:])
	d.wordLen += n
	*consumed += n
	if d.wordLen < len(d.word) {
		return false
	}
	d.wordLen = 0
	return true
}

func (d *lz4Decoder) decodeBlock() error {
	data := d.in
	if d.info.BlockChecksum {
		data = d.in[:len(d.in)-4]
		want := binary.LittleEndian.Uint32(d.in[len(data):])
		if got := xxHash32.Checksum(data, 0); got != want {
			return fmt.Errorf("block checksum got %x expected %x: %w", got, want, ErrChecksum)
		}
	}

	var n int
	if d.raw {
		n = copy(d.outBuf, data)
	} else {
		var err error
		if d.info.BlockIndependent {
			n, err = lz4.UncompressBlock(data, d.outBuf)
		} else {
			n, err = lz4.UncompressBlockWithDict(data, d.outBuf, d.history)
		}
		if err != nil {
			return fmt.Errorf("decoding block of %d bytes failed with %w: %w", len(data), err, ErrInvalidFrame)
		}
	}

	d.out = d.outBuf[:n]
	if d.content != nil {
		_, _ = d.content.Write(d.out)
	}
	d.total += uint64(n)
	if !d.info.BlockIndependent {
		d.remember(d.out)
	}
	return nil
}

func (d *lz4Decoder) remember(b []byte) {
	if len(b) >= historySize {
		d.history = append(d.history[:0], b[len(b)-historySize:]...)
		return
	}
	if drop := len(d.history) + len(b) - historySize; drop > 0 {
		d.history = d.history[:copy(d.history, d.history[drop:])]
	}
	d.history = append(d.history, b...)
}
