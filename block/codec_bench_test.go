package block

import (
	"testing"

	"github.com/arloliu/tickstore/schema"
)

func benchRows(n int) []schema.TickRow {
	rows := make([]schema.TickRow, n)
	for i := range rows {
		rows[i] = schema.TickRow{
			TsNs:  uint64(i) * 1_000_000,
			Price: 10_000 + uint32(i%500),
			Size:  float32(i%100) + 0.5,
			Side:  uint8(i & 1),
			Type:  'L',
		}
	}

	return rows
}

func BenchmarkEncodeBlock_8K(b *testing.B) {
	rows := benchRows(8192)
	var buf []byte

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		buf = EncodeBlock(rows, buf[:0])
	}
	b.SetBytes(int64(len(rows)) * 18)
}

func BenchmarkDecodeBlock_8K(b *testing.B) {
	rows := benchRows(8192)
	encoded := EncodeBlock(rows, nil)
	var out []schema.TickRow

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := DecodeBlock(encoded, &out); err != nil {
			b.Fatal(err)
		}
	}
	b.SetBytes(int64(len(encoded)))
}
