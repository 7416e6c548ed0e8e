// Package schema defines the row types stored by tickstore and the
// capability record the writers and readers are parameterized over.
//
// The original layouts treat the schema as a compile-time parameter; here
// it is a value: a table of the column geometry plus scatter/gather
// functions moving a row into and out of per-column arrays.
package schema

import (
	"encoding/binary"
	"math"
)

// Schema describes one columnar layout over row type R: the 6-byte file
// magic, per-column element sizes, the hour-bucket projection used for
// day rotation, and the row scatter/gather pair.
//
// Scatter writes row r at index i into the per-column byte arrays; Gather
// is its inverse. Column c of a file with capacity N occupies
// N*ColSizes[c] bytes, so cols[c] must hold at least (i+1)*ColSizes[c]
// bytes when row i is accessed.
type Schema[R any] struct {
	Name     string
	Magic    [6]byte
	Version  uint16
	ColSizes []int

	HourFromRow func(r R) uint64
	Scatter     func(r R, cols [][]byte, i uint64)
	Gather      func(cols [][]byte, i uint64) R
}

// Cols returns the column count.
func (s *Schema[R]) Cols() int { return len(s.ColSizes) }

// RowBytes returns the total bytes one row occupies across all columns.
func (s *Schema[R]) RowBytes() int {
	n := 0
	for _, sz := range s.ColSizes {
		n += sz
	}

	return n
}

// hourFromTs quantizes a nanosecond timestamp to hour-granularity epoch
// seconds.
func hourFromTs(tsNs uint64) uint64 {
	s := tsNs / 1_000_000_000
	return s / 3600 * 3600
}

// L2 is the book-update schema: ts, price, qty, side.
var L2 = Schema[L2Row]{
	Name:     "L2",
	Magic:    [6]byte{'L', '2', 'C', 'O', 'L', '\n'},
	Version:  1,
	ColSizes: []int{8, 4, 4, 1},
	HourFromRow: func(r L2Row) uint64 { return hourFromTs(r.TsNs) },
	Scatter: func(r L2Row, cols [][]byte, i uint64) {
		binary.LittleEndian.PutUint64(cols[0][i*8:], r.TsNs)
		binary.LittleEndian.PutUint32(cols[1][i*4:], r.Price)
		binary.LittleEndian.PutUint32(cols[2][i*4:], math.Float32bits(r.Qty))
		cols[3][i] = r.Side
	},
	Gather: func(cols [][]byte, i uint64) L2Row {
		return L2Row{
			TsNs:  binary.LittleEndian.Uint64(cols[0][i*8:]),
			Price: binary.LittleEndian.Uint32(cols[1][i*4:]),
			Qty:   math.Float32frombits(binary.LittleEndian.Uint32(cols[2][i*4:])),
			Side:  cols[3][i],
		}
	},
}

// L3 is the order-event schema: id, ts, price, size, action, side.
var L3 = Schema[L3Row]{
	Name:     "L3",
	Magic:    [6]byte{'L', '3', 'C', 'O', 'L', '\n'},
	Version:  1,
	ColSizes: []int{8, 8, 4, 4, 1, 1},
	HourFromRow: func(r L3Row) uint64 { return hourFromTs(r.TsNs) },
	Scatter: func(r L3Row, cols [][]byte, i uint64) {
		binary.LittleEndian.PutUint64(cols[0][i*8:], r.ID)
		binary.LittleEndian.PutUint64(cols[1][i*8:], r.TsNs)
		binary.LittleEndian.PutUint32(cols[2][i*4:], r.Price)
		binary.LittleEndian.PutUint32(cols[3][i*4:], r.Size)
		cols[4][i] = r.Action
		cols[5][i] = r.Side
	},
	Gather: func(cols [][]byte, i uint64) L3Row {
		return L3Row{
			ID:     binary.LittleEndian.Uint64(cols[0][i*8:]),
			TsNs:   binary.LittleEndian.Uint64(cols[1][i*8:]),
			Price:  binary.LittleEndian.Uint32(cols[2][i*4:]),
			Size:   binary.LittleEndian.Uint32(cols[3][i*4:]),
			Action: cols[4][i],
			Side:   cols[5][i],
		}
	},
}

// Imbalance is the derived order-flow imbalance schema.
var Imbalance = Schema[ImbalanceRow]{
	Name:     "Imbalance",
	Magic:    [6]byte{'I', 'M', 'B', 'A', 'L', '\n'},
	Version:  1,
	ColSizes: []int{4, 8},
	HourFromRow: func(r ImbalanceRow) uint64 { return hourFromTs(r.TsNs) },
	Scatter: func(r ImbalanceRow, cols [][]byte, i uint64) {
		binary.LittleEndian.PutUint32(cols[0][i*4:], math.Float32bits(r.Imbalance))
		binary.LittleEndian.PutUint64(cols[1][i*8:], r.TsNs)
	},
	Gather: func(cols [][]byte, i uint64) ImbalanceRow {
		return ImbalanceRow{
			Imbalance: math.Float32frombits(binary.LittleEndian.Uint32(cols[0][i*4:])),
			TsNs:      binary.LittleEndian.Uint64(cols[1][i*8:]),
		}
	},
}

// Vwap is the derived VWAP schema.
var Vwap = Schema[VwapRow]{
	Name:    "Vwap",
	// Five characters plus a trailing NUL fill the 6-byte tag.
	Magic:    [6]byte{'V', 'W', 'A', 'P', '\n', 0x00},
	Version:  1,
	ColSizes: []int{4, 8},
	HourFromRow: func(r VwapRow) uint64 { return hourFromTs(r.TsNs) },
	Scatter: func(r VwapRow, cols [][]byte, i uint64) {
		binary.LittleEndian.PutUint32(cols[0][i*4:], math.Float32bits(r.Vwap))
		binary.LittleEndian.PutUint64(cols[1][i*8:], r.TsNs)
	},
	Gather: func(cols [][]byte, i uint64) VwapRow {
		return VwapRow{
			Vwap: math.Float32frombits(binary.LittleEndian.Uint32(cols[0][i*4:])),
			TsNs: binary.LittleEndian.Uint64(cols[1][i*8:]),
		}
	},
}

// Voi is the derived volume-order-imbalance schema. Only the first six
// bytes of the tag fit the header field.
var Voi = Schema[VoiRow]{
	Name:     "Voi",
	Magic:    [6]byte{'V', 'O', 'I', 'E', 'V', 'T'},
	Version:  1,
	ColSizes: []int{4, 4, 8},
	HourFromRow: func(r VoiRow) uint64 { return hourFromTs(r.TsNs) },
	Scatter: func(r VoiRow, cols [][]byte, i uint64) {
		binary.LittleEndian.PutUint32(cols[0][i*4:], r.MidPrice)
		binary.LittleEndian.PutUint32(cols[1][i*4:], r.Voi)
		binary.LittleEndian.PutUint64(cols[2][i*8:], r.TsNs)
	},
	Gather: func(cols [][]byte, i uint64) VoiRow {
		return VoiRow{
			MidPrice: binary.LittleEndian.Uint32(cols[0][i*4:]),
			Voi:      binary.LittleEndian.Uint32(cols[1][i*4:]),
			TsNs:     binary.LittleEndian.Uint64(cols[2][i*8:]),
		}
	},
}
