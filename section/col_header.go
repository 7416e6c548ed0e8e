package section

import (
	"encoding/binary"

	"github.com/arloliu/tickstore/errs"
)

// Columnar header field offsets. ColRowsOffset is fixed regardless of
// the column count, so the background writer can refresh the row count
// in place without reserializing the whole header.
const (
	colMagicOffset   = 0
	colHdrSizeOffset = 6
	colVersionOffset = 8
	colProductOffset = 16
	colDayOffset     = 32
	// ColRowsOffset is the byte offset of the rows field within the header.
	ColRowsOffset     = 40
	colCapacityOffset = 48
	colTableOffset    = 56
)

// MaxCols is the largest column count the 256-byte header can index.
const MaxCols = (ColFileHeaderSize - colTableOffset) / 16

// ColFileHeader is the fixed 256-byte header of a columnar day file.
//
// Byte layout (packed, little-endian, zero padded to 256 bytes):
//
//	off 0  6B  magic (schema tag)
//	off 6  2B  header_size (256)
//	off 8  2B  version
//	off 10 2B  pad
//	off 12 4B  pad
//	off 16 16B product tag, NUL padded
//	off 32 8B  day start, epoch seconds
//	off 40 8B  rows written
//	off 48 8B  row capacity
//	off 56     col_off[cols] u64 each, then col_sz[cols] u64 each
type ColFileHeader struct {
	Magic         [6]byte
	HeaderSize    uint16
	Version       uint16
	Product       [16]byte
	DayEpochStart uint64
	Rows          uint64
	Capacity      uint64
	ColOff        []uint64
	ColSize       []uint64
}

// NewColFileHeader returns a header for a file with the given column
// count. Offsets and sizes are filled by the writer on open.
func NewColFileHeader(cols int) ColFileHeader {
	return ColFileHeader{
		HeaderSize: ColFileHeaderSize,
		ColOff:     make([]uint64, cols),
		ColSize:    make([]uint64, cols),
	}
}

// Parse parses the header from the first ColFileHeaderSize bytes of
// data. The receiver's ColOff/ColSize length determines the expected
// column count.
func (h *ColFileHeader) Parse(data []byte) error {
	if len(data) < ColFileHeaderSize {
		return errs.ErrInvalidHeaderSize
	}
	if len(h.ColOff) > MaxCols {
		return errs.ErrInvalidHeaderSize
	}

	copy(h.Magic[:], data[colMagicOffset:colMagicOffset+6])
	h.HeaderSize = binary.LittleEndian.Uint16(data[colHdrSizeOffset:])
	h.Version = binary.LittleEndian.Uint16(data[colVersionOffset:])
	copy(h.Product[:], data[colProductOffset:colProductOffset+16])
	h.DayEpochStart = binary.LittleEndian.Uint64(data[colDayOffset:])
	h.Rows = binary.LittleEndian.Uint64(data[ColRowsOffset:])
	h.Capacity = binary.LittleEndian.Uint64(data[colCapacityOffset:])

	off := colTableOffset
	for i := range h.ColOff {
		h.ColOff[i] = binary.LittleEndian.Uint64(data[off:])
		off += 8
	}
	for i := range h.ColSize {
		h.ColSize[i] = binary.LittleEndian.Uint64(data[off:])
		off += 8
	}

	return nil
}

// Marshal serializes the header into dst, which must be at least
// ColFileHeaderSize bytes. Trailing bytes are zeroed.
func (h *ColFileHeader) Marshal(dst []byte) {
	clear(dst[:ColFileHeaderSize])
	copy(dst[colMagicOffset:], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[colHdrSizeOffset:], h.HeaderSize)
	binary.LittleEndian.PutUint16(dst[colVersionOffset:], h.Version)
	copy(dst[colProductOffset:], h.Product[:])
	binary.LittleEndian.PutUint64(dst[colDayOffset:], h.DayEpochStart)
	binary.LittleEndian.PutUint64(dst[ColRowsOffset:], h.Rows)
	binary.LittleEndian.PutUint64(dst[colCapacityOffset:], h.Capacity)

	off := colTableOffset
	for _, v := range h.ColOff {
		binary.LittleEndian.PutUint64(dst[off:], v)
		off += 8
	}
	for _, v := range h.ColSize {
		binary.LittleEndian.PutUint64(dst[off:], v)
		off += 8
	}
}

// SetProduct copies the product tag, truncated to 16 bytes.
func (h *ColFileHeader) SetProduct(product string) {
	clear(h.Product[:])
	copy(h.Product[:], product)
}
