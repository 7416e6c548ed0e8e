package section

import (
	"encoding/binary"

	"github.com/arloliu/tickstore/errs"
)

// BlockHeader describes one encoded block within a blocked day file.
//
// Byte layout (packed, little-endian):
//
//	off 0  8B  magic
//	off 8  2B  version
//	off 10 2B  flags (reserved, 0)
//	off 12 4B  n_rows
//	off 16 8B  base_ts
//	off 24 4B  base_px
//	off 28 4B  ts_scale_ns
//	off 32 1B  ts_bw
//	off 33 1B  px_bw
//	off 34 2B  reserved
//	off 36 40B off/len pairs: ts, px, sz, side, type
type BlockHeader struct {
	Magic     [8]byte
	Version   uint16
	Flags     uint16
	NRows     uint32
	BaseTs    uint64
	BasePx    uint32
	TsScaleNs uint32
	TsBW      uint8
	PxBW      uint8

	OffTs   uint32
	LenTs   uint32
	OffPx   uint32
	LenPx   uint32
	OffSz   uint32
	LenSz   uint32
	OffSide uint32
	LenSide uint32
	OffType uint32
	LenType uint32
}

// NewBlockHeader returns a header stamped with the current magic and
// version and the default timestamp scale. Slab offsets and bit widths
// are filled in by the encoder.
func NewBlockHeader() BlockHeader {
	return BlockHeader{
		Magic:     BlockMagic,
		Version:   BlockVersion,
		TsScaleNs: DefaultTsScaleNs,
	}
}

// Parse parses the header from the first BlockHeaderSize bytes of data
// and validates the magic.
//
// Returns:
//   - error: errs.ErrTooSmall if data is shorter than BlockHeaderSize,
//     errs.ErrBadMagic on magic mismatch
func (h *BlockHeader) Parse(data []byte) error {
	if len(data) < BlockHeaderSize {
		return errs.ErrTooSmall
	}

	copy(h.Magic[:], data[0:8])
	if h.Magic != BlockMagic {
		return errs.ErrBadMagic
	}

	h.Version = binary.LittleEndian.Uint16(data[8:10])
	h.Flags = binary.LittleEndian.Uint16(data[10:12])
	h.NRows = binary.LittleEndian.Uint32(data[12:16])
	h.BaseTs = binary.LittleEndian.Uint64(data[16:24])
	h.BasePx = binary.LittleEndian.Uint32(data[24:28])
	h.TsScaleNs = binary.LittleEndian.Uint32(data[28:32])
	h.TsBW = data[32]
	h.PxBW = data[33]
	h.OffTs = binary.LittleEndian.Uint32(data[36:40])
	h.LenTs = binary.LittleEndian.Uint32(data[40:44])
	h.OffPx = binary.LittleEndian.Uint32(data[44:48])
	h.LenPx = binary.LittleEndian.Uint32(data[48:52])
	h.OffSz = binary.LittleEndian.Uint32(data[52:56])
	h.LenSz = binary.LittleEndian.Uint32(data[56:60])
	h.OffSide = binary.LittleEndian.Uint32(data[60:64])
	h.LenSide = binary.LittleEndian.Uint32(data[64:68])
	h.OffType = binary.LittleEndian.Uint32(data[68:72])
	h.LenType = binary.LittleEndian.Uint32(data[72:76])

	return nil
}

// Marshal serializes the header into dst, which must be at least
// BlockHeaderSize bytes.
func (h *BlockHeader) Marshal(dst []byte) {
	copy(dst[0:8], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[8:10], h.Version)
	binary.LittleEndian.PutUint16(dst[10:12], h.Flags)
	binary.LittleEndian.PutUint32(dst[12:16], h.NRows)
	binary.LittleEndian.PutUint64(dst[16:24], h.BaseTs)
	binary.LittleEndian.PutUint32(dst[24:28], h.BasePx)
	binary.LittleEndian.PutUint32(dst[28:32], h.TsScaleNs)
	dst[32] = h.TsBW
	dst[33] = h.PxBW
	dst[34] = 0
	dst[35] = 0
	binary.LittleEndian.PutUint32(dst[36:40], h.OffTs)
	binary.LittleEndian.PutUint32(dst[40:44], h.LenTs)
	binary.LittleEndian.PutUint32(dst[44:48], h.OffPx)
	binary.LittleEndian.PutUint32(dst[48:52], h.LenPx)
	binary.LittleEndian.PutUint32(dst[52:56], h.OffSz)
	binary.LittleEndian.PutUint32(dst[56:60], h.LenSz)
	binary.LittleEndian.PutUint32(dst[60:64], h.OffSide)
	binary.LittleEndian.PutUint32(dst[64:68], h.LenSide)
	binary.LittleEndian.PutUint32(dst[68:72], h.OffType)
	binary.LittleEndian.PutUint32(dst[72:76], h.LenType)
}

// End returns the offset one past the furthest slab, but never less than
// the header itself. Decoders use it to advance to the next block even
// when a slab is zero-length.
func (h *BlockHeader) End() uint32 {
	end := uint32(BlockHeaderSize)
	for _, e := range [5]uint32{
		h.OffTs + h.LenTs,
		h.OffPx + h.LenPx,
		h.OffSz + h.LenSz,
		h.OffSide + h.LenSide,
		h.OffType + h.LenType,
	} {
		if e > end {
			end = e
		}
	}

	return end
}
