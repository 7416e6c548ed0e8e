package compress

// ZstdCompressor is the high-ratio archive codec, the default for
// long-term retention of closed day files.
//
// Two implementations exist: the pure-Go klauspost/compress encoder
// (default) and a libzstd-backed one selected with the "gozstd" build
// tag for hosts where the cgo dependency is acceptable.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd codec with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
