package blockcodec

// HeaderMax is the largest frame header any supported frame can carry:
// magic (4), FLG (1), BD (1), content size (8), dictionary id (4) and header checksum (1).
const HeaderMax = 19

// MinHeaderPrefix is the number of leading header bytes required to know the full header length.
const MinHeaderPrefix = 5

type BlockSizeID byte

const (
	BlockSize64KB  BlockSizeID = 4
	BlockSize256KB BlockSizeID = 5
	BlockSize1MB   BlockSizeID = 6
	BlockSize4MB   BlockSizeID = 7
)

// Size returns the maximum uncompressed block size for the id, or 0 if the id is unknown.
func (id BlockSizeID) Size() int {
	switch id {
	case BlockSize64KB:
		return 64 * 1024
	case BlockSize256KB:
		return 256 * 1024
	case BlockSize1MB:
		return 1024 * 1024
	case BlockSize4MB:
		return 4 * 1024 * 1024
	}
	return 0
}

func (id BlockSizeID) Valid() bool {
	return id.Size() != 0
}

// Preferences configure a compression context, the zero value is not valid (no block size).
type Preferences struct {
	BlockSizeID     BlockSizeID
	BlockChecksum   bool
	ContentChecksum bool
	// ContentSize is written into the header when non-zero, the encoder verifies it on End.
	ContentSize uint64
	// AutoFlush makes every Update emit complete blocks instead of buffering up to a block.
	AutoFlush bool
	// CompressionLevel selects the high compression encoder when > 0, up to MaxCompressionLevel.
	CompressionLevel int
}

const MaxCompressionLevel = 9

func DefaultPreferences() Preferences {
	return Preferences{
		BlockSizeID: BlockSize64KB,
		AutoFlush:   true,
	}
}

// FrameInfo is the metadata parsed out of a frame header.
type FrameInfo struct {
	BlockSizeID      BlockSizeID
	BlockIndependent bool
	BlockChecksum    bool
	ContentChecksum  bool
	ContentSize      uint64
	DictID           uint32
	HeaderSize       int
}

// Codec creates compression and decompression contexts for one frame format.
type Codec interface {
	Name() string
	// HeaderMax returns the largest header Begin can ever write.
	HeaderMax() int
	// HeaderPrefix returns how many leading header bytes HeaderSize needs, at most HeaderMax.
	HeaderPrefix() int
	// CompressBound returns the worst case number of bytes a single Update call with at most
	// maxChunk bytes of input (or a single End call) can produce.
	CompressBound(maxChunk int, prefs Preferences) int
	NewCompressionContext(prefs Preferences) (CompressionContext, error)
	NewDecompressionContext() (DecompressionContext, error)
}

type CompressionContext interface {
	// Begin writes the frame header into dst and returns its length, must be called exactly once.
	Begin(dst []byte) (int, error)
	// Update compresses src and writes whatever output is ready into dst.
	Update(dst, src []byte) (int, error)
	// End flushes buffered input and writes the frame footer into dst.
	End(dst []byte) (int, error)
	Close() error
}

type DecompressionContext interface {
	// HeaderSize returns the total header length announced by a prefix of at least HeaderPrefix bytes.
	HeaderSize(prefix []byte) (int, error)
	// FrameInfo parses a frame header and advances the context past it. The returned int is the
	// number of header bytes consumed, any trailing bytes belong to the frame payload.
	FrameInfo(header []byte) (FrameInfo, int, error)
	// Decompress consumes bytes from src and writes decompressed bytes into dst.
	// Consumption stops once dst is full, unconsumed input must be presented again.
	Decompress(dst, src []byte) (consumed int, produced int, err error)
	Close() error
}
