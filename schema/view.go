package schema

import "unsafe"

// Typed views over raw column bytes. The columnar layout is little-endian
// and the per-column arrays start at 8-byte-aligned offsets, so on the
// supported (little-endian) platforms a column can be reinterpreted in
// place without copying.

// U64Col reinterprets b as a []uint64 of n elements.
func U64Col(b []byte, n int) []uint64 {
	if n == 0 {
		return nil
	}

	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), n)
}

// U32Col reinterprets b as a []uint32 of n elements.
func U32Col(b []byte, n int) []uint32 {
	if n == 0 {
		return nil
	}

	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), n)
}

// F32Col reinterprets b as a []float32 of n elements.
func F32Col(b []byte, n int) []float32 {
	if n == 0 {
		return nil
	}

	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}

// U8Col returns the first n bytes of b.
func U8Col(b []byte, n int) []uint8 {
	return b[:n]
}
