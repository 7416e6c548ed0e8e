// Package compress provides the compression codecs used when archiving
// closed day files.
//
// Day files are append-hot and mmap-read; they stay uncompressed while
// live. Once a day is closed it compresses extremely well (delta-packed
// blocks and sparse column tails), so the archive path trades CPU for
// cold-storage footprint with a selectable codec.
package compress

import (
	"fmt"

	"github.com/arloliu/tickstore/format"
)

// Compressor compresses one complete day-file payload.
//
// Memory management:
//   - Returned slice is owned by the caller; it is newly allocated except
//     for the pass-through codec, which returns the input slice itself
//   - Input slice is not modified
//   - Internal buffers may be reused for efficiency
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload produced by the matching Compressor.
// Implementations validate the input framing and fail on corrupt or
// mismatched data.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves the built-in Codec for the given compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
