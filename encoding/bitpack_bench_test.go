package encoding

import (
	"math/rand"
	"testing"
)

func BenchmarkPackUint64(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	vals := make([]uint64, 8192)
	for i := range vals {
		vals[i] = rng.Uint64() & (1<<14 - 1)
	}
	var dst []byte

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		dst = PackUint64(vals, 14, dst[:0])
	}
	b.SetBytes(int64(len(vals)) * 8)
}

func BenchmarkUnpackUint64(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	vals := make([]uint64, 8192)
	for i := range vals {
		vals[i] = rng.Uint64() & (1<<14 - 1)
	}
	packed := PackUint64(vals, 14, nil)
	out := make([]uint64, len(vals))

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		UnpackUint64(packed, len(out), 14, out)
	}
	b.SetBytes(int64(len(vals)) * 8)
}
