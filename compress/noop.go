package compress

// NoOpCompressor passes data through unchanged. Useful when the archive
// step should only add the checksummed framing, or for measuring the
// pipeline without compression cost.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new pass-through codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns the input slice as-is, without copying. Callers must
// not modify the input while the result is in use.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the input slice as-is, without copying.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
