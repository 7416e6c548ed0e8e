package section

import (
	"encoding/binary"

	"github.com/arloliu/tickstore/errs"
)

// DayFileHeader sits at the start of a blocked day file and summarizes
// its contents. The writer zeroes it on open and rewrites the final
// totals only on close, so a crashed writer leaves rows_total at zero,
// never ahead of the data.
//
// Byte layout (packed, little-endian):
//
//	off 0  8B rows_total
//	off 8  8B bytes_total (block payload bytes, excluding this header)
//	off 16 4B yyyymmdd
//	off 20 4B blocks_total
type DayFileHeader struct {
	RowsTotal   uint64
	BytesTotal  uint64
	Date        uint32
	BlocksTotal uint32
}

// Parse parses the header from the first DayFileHeaderSize bytes of data.
func (h *DayFileHeader) Parse(data []byte) error {
	if len(data) < DayFileHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	h.RowsTotal = binary.LittleEndian.Uint64(data[0:8])
	h.BytesTotal = binary.LittleEndian.Uint64(data[8:16])
	h.Date = binary.LittleEndian.Uint32(data[16:20])
	h.BlocksTotal = binary.LittleEndian.Uint32(data[20:24])

	return nil
}

// Marshal serializes the header into dst, which must be at least
// DayFileHeaderSize bytes.
func (h *DayFileHeader) Marshal(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], h.RowsTotal)
	binary.LittleEndian.PutUint64(dst[8:16], h.BytesTotal)
	binary.LittleEndian.PutUint32(dst[16:20], h.Date)
	binary.LittleEndian.PutUint32(dst[20:24], h.BlocksTotal)
}

// Bytes returns a freshly allocated serialized header.
func (h *DayFileHeader) Bytes() []byte {
	b := make([]byte, DayFileHeaderSize)
	h.Marshal(b)

	return b
}
