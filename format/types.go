package format

// CompressionType identifies the codec used to compress an archived day file.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// File naming shared by the writers and readers.
const (
	// ColumnarExt is the extension of columnar day files.
	ColumnarExt = ".bin"
	// BlockedExt is the extension of blocked day files.
	BlockedExt = ".blocks"
	// ArchiveExt is the extension appended to archived day files.
	ArchiveExt = ".tkz"
	// BlockedDirSuffix is appended to the product name for the blocked layout
	// directory, e.g. "BTCUSD-BLOCKS".
	BlockedDirSuffix = "-BLOCKS"
)

// Date range defaults for readers: DateMin selects from the earliest day on
// disk, DateMax up to the latest.
const (
	DateMin uint32 = 0
	DateMax uint32 = 99999999
)
