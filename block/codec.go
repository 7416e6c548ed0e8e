// Package block implements the blocked day-file layout: the bit-packed
// block codec, the mmap-backed appender and the streaming reader.
//
// A blocked day file is a 24-byte day header followed by independently
// decodable blocks. Within a block, timestamps are stored as scaled
// deltas from the first row and prices as zig-zag deltas, each packed at
// the minimum bit width for the block; sizes stay raw IEEE-754 floats
// and the side/type flags pack one bit per row.
package block

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arloliu/tickstore/encoding"
	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/internal/pool"
	"github.com/arloliu/tickstore/schema"
	"github.com/arloliu/tickstore/section"
)

// EncodeBlock appends one encoded block holding rows to dst and returns
// the extended slice. An empty rows slice appends nothing.
//
// The first row supplies the block's base timestamp and base price.
// Timestamp deltas are divided by the default scale (1 ms), silently
// discarding finer resolution.
func EncodeBlock(rows []schema.TickRow, dst []byte) []byte {
	n := len(rows)
	if n == 0 {
		return dst
	}

	hdr := section.NewBlockHeader()
	hdr.NRows = uint32(n)
	hdr.BaseTs = rows[0].TsNs
	hdr.BasePx = rows[0].Price

	tsDelta, putTs := pool.GetUint64Slice(n)
	defer putTs()
	pxDelta, putPx := pool.GetUint32Slice(n)
	defer putPx()
	side, putSide := pool.GetUint8Slice(n)
	defer putSide()
	typ, putTyp := pool.GetUint8Slice(n)
	defer putTyp()

	var maxDt uint64
	var maxDxz uint32
	for i, r := range rows {
		dt := (r.TsNs - hdr.BaseTs) / uint64(hdr.TsScaleNs)
		tsDelta[i] = dt
		if dt > maxDt {
			maxDt = dt
		}

		dz := encoding.ZigZag32(int32(int64(r.Price) - int64(hdr.BasePx)))
		pxDelta[i] = dz
		if dz > maxDxz {
			maxDxz = dz
		}

		side[i] = r.Side
		if r.Type == 'T' {
			typ[i] = 1
		} else {
			typ[i] = 0
		}
	}

	hdr.TsBW = uint8(encoding.CeilLog2(maxDt + 1))
	hdr.PxBW = uint8(encoding.CeilLog2(uint64(maxDxz) + 1))

	start := len(dst)
	dst = append(dst, make([]byte, section.BlockHeaderSize)...)

	hdr.OffTs = section.BlockHeaderSize
	before := len(dst)
	dst = encoding.PackUint64(tsDelta, uint(hdr.TsBW), dst)
	hdr.LenTs = uint32(len(dst) - before)

	hdr.OffPx = hdr.OffTs + hdr.LenTs
	before = len(dst)
	dst = encoding.PackUint32(pxDelta, uint(hdr.PxBW), dst)
	hdr.LenPx = uint32(len(dst) - before)

	hdr.OffSz = hdr.OffPx + hdr.LenPx
	hdr.LenSz = uint32(n) * 4
	before = len(dst)
	dst = append(dst, make([]byte, hdr.LenSz)...)
	for i, r := range rows {
		binary.LittleEndian.PutUint32(dst[before+i*4:], math.Float32bits(r.Size))
	}

	hdr.OffSide = hdr.OffSz + hdr.LenSz
	before = len(dst)
	dst = encoding.PackBits(side, dst)
	hdr.LenSide = uint32(len(dst) - before)

	hdr.OffType = hdr.OffSide + hdr.LenSide
	before = len(dst)
	dst = encoding.PackBits(typ, dst)
	hdr.LenType = uint32(len(dst) - before)

	hdr.Marshal(dst[start:])

	return dst
}

// DecodeBlock decodes the block at the start of src, sizing *rows to the
// block's row count and filling it. It returns the number of bytes the
// block occupies so callers can advance to the next one. A zero-row block
// leaves *rows unchanged.
//
// Returns:
//   - int: Consumed bytes; at least section.BlockHeaderSize on success
//   - error: errs.ErrTooSmall, errs.ErrBadMagic, errs.ErrShortBlock or
//     errs.ErrOverflow
func DecodeBlock(src []byte, rows *[]schema.TickRow) (int, error) {
	var hdr section.BlockHeader
	if err := hdr.Parse(src); err != nil {
		return 0, err
	}

	if hdr.NRows == 0 {
		return section.BlockHeaderSize, nil
	}
	n := int(hdr.NRows)

	if err := checkSlabs(&hdr, n, len(src)); err != nil {
		return 0, err
	}

	if cap(*rows) < n {
		*rows = make([]schema.TickRow, n)
	}
	*rows = (*rows)[:n]

	tsDelta, putTs := pool.GetUint64Slice(n)
	defer putTs()
	pxDelta, putPx := pool.GetUint32Slice(n)
	defer putPx()
	side, putSide := pool.GetUint8Slice(n)
	defer putSide()
	typ, putTyp := pool.GetUint8Slice(n)
	defer putTyp()

	encoding.UnpackUint64(src[hdr.OffTs:], n, uint(hdr.TsBW), tsDelta)
	encoding.UnpackUint32(src[hdr.OffPx:], n, uint(hdr.PxBW), pxDelta)
	encoding.UnpackBits(src[hdr.OffSide:], n, side)
	encoding.UnpackBits(src[hdr.OffType:], n, typ)

	szSlab := src[hdr.OffSz:]
	for i := range n {
		r := &(*rows)[i]
		r.TsNs = hdr.BaseTs + tsDelta[i]*uint64(hdr.TsScaleNs)

		px := int64(hdr.BasePx) + int64(encoding.UnZigZag32(pxDelta[i]))
		if px < 0 || px > math.MaxUint32 {
			return 0, fmt.Errorf("%w: row %d: price %d", errs.ErrOverflow, i, px)
		}
		r.Price = uint32(px)

		r.Size = math.Float32frombits(binary.LittleEndian.Uint32(szSlab[i*4:]))
		r.Side = side[i]
		if typ[i] == 1 {
			r.Type = 'T'
		} else {
			r.Type = 'L'
		}
	}

	return int(hdr.End()), nil
}

// checkSlabs verifies every slab lies within src and is long enough for
// n rows at the header's bit widths.
func checkSlabs(hdr *section.BlockHeader, n, srcLen int) error {
	type slab struct {
		off, length uint32
		need        int
	}
	slabs := [5]slab{
		{hdr.OffTs, hdr.LenTs, packedLen(n, uint(hdr.TsBW))},
		{hdr.OffPx, hdr.LenPx, packedLen(n, uint(hdr.PxBW))},
		{hdr.OffSz, hdr.LenSz, n * 4},
		{hdr.OffSide, hdr.LenSide, encoding.BitmapLen(n)},
		{hdr.OffType, hdr.LenType, encoding.BitmapLen(n)},
	}
	for _, s := range slabs {
		end := uint64(s.off) + uint64(s.length)
		if end > uint64(srcLen) {
			return fmt.Errorf("%w: slab [%d, %d) past %d", errs.ErrShortBlock, s.off, end, srcLen)
		}
		if int(s.length) < s.need {
			return fmt.Errorf("%w: slab at %d holds %d bytes, need %d", errs.ErrShortBlock, s.off, s.length, s.need)
		}
	}

	return nil
}

// packedLen returns the byte length of n packed values of bw bits.
func packedLen(n int, bw uint) int {
	return (n*int(bw) + 7) / 8
}
