package block

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/schema"
	"github.com/arloliu/tickstore/section"
)

func TestEncodeBlock_Empty(t *testing.T) {
	out := EncodeBlock(nil, nil)
	require.Empty(t, out, "zero rows must append nothing")
}

func TestDecodeBlock_ZeroRowHeader(t *testing.T) {
	hdr := section.NewBlockHeader()
	buf := make([]byte, section.BlockHeaderSize)
	hdr.Marshal(buf)

	var rows []schema.TickRow
	consumed, err := DecodeBlock(buf, &rows)
	require.NoError(t, err)
	require.Equal(t, section.BlockHeaderSize, consumed)
	require.Empty(t, rows)
}

func TestBlockCodec_SingleRow(t *testing.T) {
	in := []schema.TickRow{{
		TsNs:  1_000_000_000,
		Price: 10000,
		Size:  1.5,
		Side:  1,
		Type:  'L',
	}}

	encoded := EncodeBlock(in, nil)

	var hdr section.BlockHeader
	require.NoError(t, hdr.Parse(encoded))
	require.Equal(t, uint8(1), hdr.TsBW)
	require.Equal(t, uint8(1), hdr.PxBW)
	require.Equal(t, uint32(1), hdr.NRows)

	var out []schema.TickRow
	consumed, err := DecodeBlock(encoded, &out)
	require.NoError(t, err)
	require.Equal(t, len(encoded), consumed)
	require.Equal(t, in, out)
}

func TestBlockCodec_MonotonicRamp(t *testing.T) {
	const n = 8192
	in := make([]schema.TickRow, n)
	for i := range in {
		in[i] = schema.TickRow{
			TsNs:  uint64(i) * 1_000_000,
			Price: 10000 + uint32(i),
			Size:  1.0,
			Side:  uint8(i & 1),
			Type:  'L',
		}
	}

	encoded := EncodeBlock(in, nil)

	var hdr section.BlockHeader
	require.NoError(t, hdr.Parse(encoded))
	require.LessOrEqual(t, hdr.TsBW, uint8(14))
	require.LessOrEqual(t, hdr.PxBW, uint8(14))

	var out []schema.TickRow
	consumed, err := DecodeBlock(encoded, &out)
	require.NoError(t, err)
	require.Equal(t, len(encoded), consumed)
	require.Equal(t, in, out)
}

func TestBlockCodec_RandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for _, n := range []int{1, 2, 7, 100, 8192, 20000} {
		in := make([]schema.TickRow, n)
		base := uint64(1_700_000_000_000_000_000)
		price := uint32(1_000_000)
		for i := range in {
			// Timestamps land on the millisecond scale so the codec's
			// truncation is lossless and the round trip exact.
			base += uint64(rng.Intn(50)) * 1_000_000
			price = uint32(int(price) + rng.Intn(21) - 10)
			typ := byte('L')
			if rng.Intn(3) == 0 {
				typ = 'T'
			}
			in[i] = schema.TickRow{
				TsNs:  base,
				Price: price,
				Size:  rng.Float32() * 100,
				Side:  uint8(rng.Intn(2)),
				Type:  typ,
			}
		}

		encoded := EncodeBlock(in, nil)
		var out []schema.TickRow
		consumed, err := DecodeBlock(encoded, &out)
		require.NoError(t, err, "n=%d", n)
		require.Equal(t, len(encoded), consumed, "n=%d", n)
		require.Equal(t, in, out, "n=%d", n)
	}
}

func TestBlockCodec_MinimalBitWidth(t *testing.T) {
	in := []schema.TickRow{
		{TsNs: 0, Price: 1000, Type: 'L'},
		{TsNs: 300 * 1_000_000, Price: 1100, Type: 'L'},
	}
	encoded := EncodeBlock(in, nil)

	var hdr section.BlockHeader
	require.NoError(t, hdr.Parse(encoded))

	// max ts delta 300: 2^8 < 300 < 2^9. max zigzag px delta 200.
	require.Equal(t, uint8(9), hdr.TsBW)
	require.Equal(t, uint8(8), hdr.PxBW)
}

func TestBlockCodec_TruncatesSubMillisecond(t *testing.T) {
	in := []schema.TickRow{
		{TsNs: 1_000_000_000, Price: 10, Type: 'L'},
		{TsNs: 1_000_999_999, Price: 10, Type: 'L'}, // 999,999 ns past the base
	}
	encoded := EncodeBlock(in, nil)

	var out []schema.TickRow
	_, err := DecodeBlock(encoded, &out)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), out[1].TsNs, "sub-scale resolution is discarded")
}

func TestBlockCodec_SideKeepsOnlyLowBit(t *testing.T) {
	in := []schema.TickRow{
		{TsNs: 0, Price: 1, Side: 0xFF, Type: 'X'},
	}
	encoded := EncodeBlock(in, nil)

	var out []schema.TickRow
	_, err := DecodeBlock(encoded, &out)
	require.NoError(t, err)
	require.Equal(t, uint8(1), out[0].Side)
	require.Equal(t, byte('L'), out[0].Type, "non-'T' types decode as 'L'")
}

func TestDecodeBlock_TooSmall(t *testing.T) {
	var rows []schema.TickRow
	_, err := DecodeBlock(make([]byte, 10), &rows)
	require.ErrorIs(t, err, errs.ErrTooSmall)
}

func TestDecodeBlock_BadMagic(t *testing.T) {
	encoded := EncodeBlock([]schema.TickRow{{TsNs: 1, Price: 1, Type: 'L'}}, nil)
	encoded[0] ^= 0xFF

	var rows []schema.TickRow
	_, err := DecodeBlock(encoded, &rows)
	require.ErrorIs(t, err, errs.ErrBadMagic)
}

func TestDecodeBlock_ShortBlock(t *testing.T) {
	encoded := EncodeBlock([]schema.TickRow{
		{TsNs: 1_000_000, Price: 100, Type: 'L'},
		{TsNs: 2_000_000, Price: 200, Type: 'T'},
	}, nil)

	var rows []schema.TickRow
	_, err := DecodeBlock(encoded[:len(encoded)-1], &rows)
	require.ErrorIs(t, err, errs.ErrShortBlock)
}

func TestDecodeBlock_PriceOverflow(t *testing.T) {
	encoded := EncodeBlock([]schema.TickRow{
		{TsNs: 0, Price: 100, Type: 'L'},
		{TsNs: 1_000_000, Price: 101, Type: 'L'}, // delta +1
	}, nil)

	// Rewriting the base price to the maximum forces the second row's
	// reconstruction past uint32.
	binary.LittleEndian.PutUint32(encoded[24:28], 0xFFFF_FFFF)

	var rows []schema.TickRow
	_, err := DecodeBlock(encoded, &rows)
	require.ErrorIs(t, err, errs.ErrOverflow)
}

func TestBlockCodec_ConsecutiveBlocks(t *testing.T) {
	a := []schema.TickRow{{TsNs: 1_000_000, Price: 5, Side: 1, Type: 'T'}}
	b := []schema.TickRow{{TsNs: 2_000_000, Price: 6, Type: 'L'}, {TsNs: 3_000_000, Price: 7, Type: 'L'}}

	buf := EncodeBlock(a, nil)
	firstLen := len(buf)
	buf = EncodeBlock(b, buf)

	var rows []schema.TickRow
	consumed, err := DecodeBlock(buf, &rows)
	require.NoError(t, err)
	require.Equal(t, firstLen, consumed)
	require.Equal(t, a, rows)

	consumed2, err := DecodeBlock(buf[consumed:], &rows)
	require.NoError(t, err)
	require.Equal(t, len(buf)-firstLen, consumed2)
	require.Equal(t, b, rows)
}
