package section

// On-disk sizes and magics shared by the blocked and columnar layouts.
// All multi-byte integers are little-endian; structures are packed with
// no implicit padding.
const (
	// BlockHeaderSize is the size of the per-block header in a blocked
	// day file.
	BlockHeaderSize = 76

	// DayFileHeaderSize is the size of the header at the start of a
	// blocked day file.
	DayFileHeaderSize = 24

	// ColFileHeaderSize is the fixed size of a columnar day file header.
	// Unused trailing bytes are zero.
	ColFileHeaderSize = 256

	// DefaultTsScaleNs is the divisor applied to timestamp deltas before
	// bit packing: millisecond resolution.
	DefaultTsScaleNs = 1_000_000
)

// BlockMagic identifies the start of every encoded block. The encoder
// writes it and the decoder rejects blocks without it.
var BlockMagic = [8]byte{'T', 'K', 'B', 'L', 'K', '1', 0x00, '\n'}

// BlockVersion is the current block format version.
const BlockVersion uint16 = 1
