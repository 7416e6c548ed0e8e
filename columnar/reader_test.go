package columnar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/schema"
)

func writeDays(t *testing.T, dir string, days int, rowsPerDay uint64) {
	t.Helper()
	w := testL2Writer(t, dir)
	require.NoError(t, w.Start())
	for d := range uint64(days) {
		for i := range rowsPerDay {
			require.True(t, w.Enqueue(schema.L2Row{
				TsNs:  (dayEpoch + d*86_400) * 1_000_000_000,
				Price: uint32(d*1000 + i),
				Qty:   float32(i),
				Side:  uint8(i & 1),
			}))
		}
	}
	require.NoError(t, w.Close())
}

func TestReader_VisitSegments(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 3, 5)

	r, err := NewReader(&schema.L2, dir, "TESTPROD")
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, []uint32{20240201, 20240202, 20240203}, r.Days())

	var dates []uint32
	require.NoError(t, r.VisitSegments(func(seg Segment) bool {
		dates = append(dates, seg.Date)
		require.Equal(t, uint64(5), seg.Rows)

		// Typed zero-copy views over the mapped columns.
		prices := schema.U32Col(seg.Cols[1], int(seg.Rows))
		for i := range 5 {
			require.Equal(t, prices[i], r.Gather(&seg, uint64(i)).Price)
		}

		return true
	}))
	require.Equal(t, []uint32{20240201, 20240202, 20240203}, dates)
}

func TestReader_VisitStaged(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 2, 4)

	r, err := NewReader(&schema.L2, dir, "TESTPROD")
	require.NoError(t, err)
	defer r.Close()

	// Staged segments stay readable after the visit returns; capture the
	// last one and inspect it afterwards.
	var last Segment
	require.NoError(t, r.VisitStaged(func(seg Segment) bool {
		last = seg
		return true
	}))

	require.Equal(t, uint32(20240202), last.Date)
	require.Equal(t, uint64(4), last.Rows)
	for i := range uint64(4) {
		row := r.Gather(&last, i)
		require.Equal(t, uint32(1000+i), row.Price)
	}
}

func TestReader_StagedEqualsZeroCopy(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 1, 7)

	r, err := NewReader(&schema.L2, dir, "TESTPROD")
	require.NoError(t, err)
	defer r.Close()

	var direct []schema.L2Row
	require.NoError(t, r.VisitSegments(func(seg Segment) bool {
		for i := range seg.Rows {
			direct = append(direct, r.Gather(&seg, i))
		}
		return true
	}))

	var staged []schema.L2Row
	require.NoError(t, r.VisitStaged(func(seg Segment) bool {
		for i := range seg.Rows {
			staged = append(staged, r.Gather(&seg, i))
		}
		return true
	}))

	require.Equal(t, direct, staged)
}

func TestReader_DateFiltering(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 3, 1)

	r, err := NewReader(&schema.L2, dir, "TESTPROD",
		WithDateRange(20240202, 20240202))
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, []uint32{20240202}, r.Days())
}

func TestReader_SchemaMagicMismatch(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 1, 1)

	r, err := NewReader(&schema.L3, dir, "TESTPROD")
	require.NoError(t, err)
	defer r.Close()

	err = r.VisitSegments(func(Segment) bool { return true })
	require.ErrorIs(t, err, errs.ErrBadMagic)
}

func TestReader_MissingDirectory(t *testing.T) {
	r, err := NewReader(&schema.L2, t.TempDir(), "NOSUCH")
	require.NoError(t, err)
	defer r.Close()

	require.Empty(t, r.Days())
	require.NoError(t, r.VisitSegments(func(Segment) bool { return true }))
}
