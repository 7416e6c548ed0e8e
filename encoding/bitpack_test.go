package encoding

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUint64_RoundTripAllWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for bw := uint(1); bw <= 64; bw++ {
		vals := make([]uint64, 1000)
		for i := range vals {
			vals[i] = rng.Uint64()
		}

		packed := PackUint64(vals, bw, nil)
		require.Equal(t, (len(vals)*int(bw)+7)/8, len(packed), "bw=%d packed length", bw)

		out := make([]uint64, len(vals))
		UnpackUint64(packed, len(vals), bw, out)

		mask := maskBits(bw)
		for i, v := range vals {
			require.Equal(t, v&mask, out[i], "bw=%d index=%d", bw, i)
		}
	}
}

func TestPackUint32_RoundTripAllWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for bw := uint(1); bw <= 32; bw++ {
		vals := make([]uint32, 777)
		for i := range vals {
			vals[i] = rng.Uint32()
		}

		packed := PackUint32(vals, bw, nil)
		require.Equal(t, (len(vals)*int(bw)+7)/8, len(packed), "bw=%d packed length", bw)

		out := make([]uint32, len(vals))
		UnpackUint32(packed, len(vals), bw, out)

		mask := uint32(maskBits(bw))
		for i, v := range vals {
			require.Equal(t, v&mask, out[i], "bw=%d index=%d", bw, i)
		}
	}
}

func TestPackUint64_ZeroWidth(t *testing.T) {
	vals := []uint64{1, 2, 3}
	require.Empty(t, PackUint64(vals, 0, nil), "bw=0 must append nothing")

	out := []uint64{9, 9, 9}
	UnpackUint64(nil, 3, 0, out)
	require.Equal(t, []uint64{0, 0, 0}, out, "bw=0 must zero fill")
}

func TestUnpackUint32_ZeroWidth(t *testing.T) {
	out := []uint32{5, 5, 5, 5}
	UnpackUint32(nil, 4, 0, out)
	require.Equal(t, []uint32{0, 0, 0, 0}, out, "bw=0 must zero fill and return early")
}

func TestPackUint64_AppendsToExisting(t *testing.T) {
	dst := []byte{0xAA}
	dst = PackUint64([]uint64{0xFF}, 8, dst)
	require.Equal(t, []byte{0xAA, 0xFF}, dst)
}

func TestPackBits_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 9, 63, 64, 100} {
		flags := make([]uint8, n)
		for i := range flags {
			if i%3 == 0 {
				flags[i] = 1
			}
			// Only bit 0 must survive the trip.
			if i%5 == 0 {
				flags[i] |= 0xFE
			}
		}

		packed := PackBits(flags, nil)
		require.Equal(t, BitmapLen(n), len(packed), "n=%d", n)

		out := make([]uint8, n)
		UnpackBits(packed, n, out)
		for i := range flags {
			require.Equal(t, flags[i]&1, out[i], "n=%d index=%d", n, i)
		}
	}
}

func TestPackBits_TrailingBitsZero(t *testing.T) {
	packed := PackBits([]uint8{1, 1, 1}, nil)
	require.Len(t, packed, 1)
	require.Equal(t, byte(0b0000_0111), packed[0], "unused high bits must be zero")
}

func TestPackBits_LSBFirst(t *testing.T) {
	packed := PackBits([]uint8{1, 0, 0, 0, 0, 0, 0, 1}, nil)
	require.Equal(t, []byte{0b1000_0001}, packed)
}

func TestZigZag32_Law(t *testing.T) {
	cases := []int32{0, 1, -1, 2, -2, 63, -64, 1 << 20, -(1 << 20), 1<<31 - 1, -1 << 31}
	for _, v := range cases {
		require.Equal(t, v, UnZigZag32(ZigZag32(v)), "value=%d", v)
	}

	// Small magnitudes interleave near zero.
	require.Equal(t, uint32(0), ZigZag32(0))
	require.Equal(t, uint32(1), ZigZag32(-1))
	require.Equal(t, uint32(2), ZigZag32(1))
	require.Equal(t, uint32(3), ZigZag32(-2))
}

func TestCeilLog2(t *testing.T) {
	require.Equal(t, uint(1), CeilLog2(0))
	require.Equal(t, uint(1), CeilLog2(1))
	require.Equal(t, uint(1), CeilLog2(2))
	require.Equal(t, uint(2), CeilLog2(3))
	require.Equal(t, uint(2), CeilLog2(4))
	require.Equal(t, uint(3), CeilLog2(5))
	require.Equal(t, uint(3), CeilLog2(8))
	require.Equal(t, uint(4), CeilLog2(9))
	require.Equal(t, uint(14), CeilLog2(1<<13+1))
	require.Equal(t, uint(64), CeilLog2(^uint64(0)))
}
