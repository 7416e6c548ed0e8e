package encoding

import "math/bits"

// ZigZag32 maps a signed 32-bit value to an unsigned value so that small
// magnitudes of either sign stay small: n -> (n << 1) XOR (n >> 31).
func ZigZag32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// UnZigZag32 is the inverse of ZigZag32.
func UnZigZag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// CeilLog2 returns ceil(log2(x)): the minimum bit width able to represent
// every value in [0, x-1], so CeilLog2(max+1) is the width for max. Both
// CeilLog2(0) and CeilLog2(1) are 1.
func CeilLog2(x uint64) uint {
	if x <= 1 {
		return 1
	}

	return uint(bits.Len64(x - 1))
}
