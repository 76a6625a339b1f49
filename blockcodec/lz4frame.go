package blockcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/xxHash/xxHash32"
)

const (
	frameMagic          uint32 = 0x184D2204
	skippableMagicFirst uint32 = 0x184D2A50
	skippableMagicLast  uint32 = 0x184D2A5F

	frameVersion = 1

	flagBlockIndependence = 1 << 5
	flagBlockChecksum     = 1 << 4
	flagContentSize       = 1 << 3
	flagContentChecksum   = 1 << 2
	flagReserved          = 1 << 1
	flagDictID            = 1 << 0

	minHeaderSize = 7

	blockUncompressedFlag uint32 = 1 << 31
	blockSizeMask                = blockUncompressedFlag - 1

	// linked blocks may reference up to 64 KiB of previously decoded data
	historySize = 64 * 1024
)

// LZ4 implements the LZ4 frame format on top of the lz4 block codec.
// The zero value is ready to use.
type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }

func (LZ4) HeaderMax() int { return HeaderMax }

func (LZ4) HeaderPrefix() int { return MinHeaderPrefix }

func (LZ4) CompressBound(maxChunk int, prefs Preferences) int {
	bs := prefs.BlockSizeID.Size()
	if bs == 0 {
		return 0
	}
	buffered := 0
	if !prefs.AutoFlush {
		buffered = bs - 1
	}
	overhead := 4
	if prefs.BlockChecksum {
		overhead += 4
	}
	data := maxChunk + buffered
	blocks := data/bs + 1
	// payloads never exceed their input since incompressible blocks are stored as-is,
	// the trailing 8 bytes cover the end mark and the content checksum
	return data + blocks*overhead + 8
}

func (LZ4) NewCompressionContext(prefs Preferences) (CompressionContext, error) {
	return newLZ4Encoder(prefs)
}

func (LZ4) NewDecompressionContext() (DecompressionContext, error) {
	return &lz4Decoder{}, nil
}

func headerSizeOf(prefs Preferences) int {
	size := minHeaderSize
	if prefs.ContentSize > 0 {
		size += 8
	}
	return size
}

func writeHeader(dst []byte, prefs Preferences) (int, error) {
	size := headerSizeOf(prefs)
	if len(dst) < size {
		return 0, fmt.Errorf("frame header needs %d bytes but only %d available: %w", size, len(dst), ErrDstTooSmall)
	}

	binary.LittleEndian.PutUint32(dst[0:4], frameMagic)
	flg := byte(frameVersion<<6) | flagBlockIndependence
	if prefs.BlockChecksum {
		flg |= flagBlockChecksum
	}
	if prefs.ContentSize > 0 {
		flg |= flagContentSize
	}
	if prefs.ContentChecksum {
		flg |= flagContentChecksum
	}
	dst[4] = flg
	dst[5] = byte(prefs.BlockSizeID&0x7) << 4
	off := 6
	if prefs.ContentSize > 0 {
		binary.LittleEndian.PutUint64(dst[off:], prefs.ContentSize)
		off += 8
	}
	dst[off] = descriptorChecksum(dst[4:off])
	return off + 1, nil
}

func descriptorChecksum(descriptor []byte) byte {
	return byte(xxHash32.Checksum(descriptor, 0) >> 8)
}

func headerSize(prefix []byte) (int, error) {
	if len(prefix) < MinHeaderPrefix {
		return 0, fmt.Errorf("need %d bytes to size the frame header, got %d: %w", MinHeaderPrefix, len(prefix), ErrInvalidFrame)
	}
	magic := binary.LittleEndian.Uint32(prefix[0:4])
	if magic >= skippableMagicFirst && magic <= skippableMagicLast {
		return 0, fmt.Errorf("skippable frame 0x%08x: %w", magic, ErrUnsupported)
	}
	if magic != frameMagic {
		return 0, fmt.Errorf("magic number mismatch, got 0x%08x: %w", magic, ErrInvalidFrame)
	}
	flg := prefix[4]
	size := minHeaderSize
	if flg&flagContentSize != 0 {
		size += 8
	}
	if flg&flagDictID != 0 {
		size += 4
	}
	return size, nil
}

func parseHeader(header []byte) (FrameInfo, error) {
	size, err := headerSize(header)
	if err != nil {
		return FrameInfo{}, err
	}
	if len(header) < size {
		return FrameInfo{}, fmt.Errorf("frame header needs %d bytes, got %d: %w", size, len(header), ErrInvalidFrame)
	}

	flg, bd := header[4], header[5]
	if v := flg >> 6; v != frameVersion {
		return FrameInfo{}, fmt.Errorf("frame version %d: %w", v, ErrUnsupported)
	}
	if flg&flagReserved != 0 || bd&0x8f != 0 {
		return FrameInfo{}, fmt.Errorf("reserved header bits set: %w", ErrInvalidFrame)
	}

	info := FrameInfo{
		BlockSizeID:      BlockSizeID(bd >> 4 & 0x7),
		BlockIndependent: flg&flagBlockIndependence != 0,
		BlockChecksum:    flg&flagBlockChecksum != 0,
		ContentChecksum:  flg&flagContentChecksum != 0,
		HeaderSize:       size,
	}
	off := 6
	if flg&flagContentSize != 0 {
		info.ContentSize = binary.LittleEndian.Uint64(header[off:])
		off += 8
	}
	if flg&flagDictID != 0 {
		info.DictID = binary.LittleEndian.Uint32(header[off:])
		off += 4
	}
	if c := descriptorChecksum(header[4:off]); c != header[off] {
		return FrameInfo{}, fmt.Errorf("header checksum got %x expected %x: %w", header[off], c, ErrChecksum)
	}
	if !info.BlockSizeID.Valid() {
		return info, fmt.Errorf("block size id %d: %w", info.BlockSizeID, ErrUnsupported)
	}
	return info, nil
}
