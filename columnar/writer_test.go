package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/schema"
	"github.com/arloliu/tickstore/section"
)

// dayEpoch is 2024-02-01T00:00:00Z.
const dayEpoch = uint64(1_706_745_600)

func l2Row(dayS uint64, offsetNs uint64) schema.L2Row {
	return schema.L2Row{
		TsNs:  dayS*1_000_000_000 + offsetNs,
		Price: 10_000,
		Qty:   1.5,
		Side:  1,
	}
}

func testL2Writer(t *testing.T, dir string, opts ...WriterOption) *Writer[schema.L2Row] {
	t.Helper()
	base := []WriterOption{
		WithRowsPerHour(8),
		WithQueueCapacity(1 << 12),
	}
	w, err := NewWriter(&schema.L2, dir, "TESTPROD", append(base, opts...)...)
	require.NoError(t, err)

	return w
}

func readColHeader(t *testing.T, path string, cols int) section.ColFileHeader {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	hdr := section.NewColFileHeader(cols)
	require.NoError(t, hdr.Parse(data))

	return hdr
}

func TestWriter_SingleRow(t *testing.T) {
	dir := t.TempDir()
	w := testL2Writer(t, dir)
	require.NoError(t, w.Start())

	require.True(t, w.Enqueue(l2Row(dayEpoch, 123)))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "TESTPROD", "20240201.bin")
	hdr := readColHeader(t, path, schema.L2.Cols())
	require.Equal(t, uint64(1), hdr.Rows)
	require.Equal(t, uint64(16), hdr.Capacity, "capacity is twice rows per hour")
	require.Equal(t, schema.L2.Magic, hdr.Magic)
	require.Equal(t, dayEpoch, hdr.DayEpochStart)
	require.Equal(t, "TESTPROD", string(hdr.Product[:8]))
}

func TestWriter_DayRotation(t *testing.T) {
	dir := t.TempDir()
	w := testL2Writer(t, dir)
	require.NoError(t, w.Start())

	for day := range uint64(3) {
		require.True(t, w.Enqueue(l2Row(dayEpoch+day*86_400, 0)))
	}
	require.NoError(t, w.Close())

	for _, name := range []string{"20240201.bin", "20240202.bin", "20240203.bin"} {
		hdr := readColHeader(t, filepath.Join(dir, "TESTPROD", name), schema.L2.Cols())
		require.Equal(t, uint64(1), hdr.Rows, "file %s", name)
	}
}

func TestWriter_LateArrivalStillRotates(t *testing.T) {
	dir := t.TempDir()
	w := testL2Writer(t, dir)
	require.NoError(t, w.Start())

	require.True(t, w.Enqueue(l2Row(dayEpoch+86_400, 0)))
	// A row from the previous day after the boundary: no rejection,
	// rotation back.
	require.True(t, w.Enqueue(l2Row(dayEpoch, 50)))
	require.NoError(t, w.Close())

	hdr := readColHeader(t, filepath.Join(dir, "TESTPROD", "20240201.bin"), schema.L2.Cols())
	require.Equal(t, uint64(1), hdr.Rows)
	hdr = readColHeader(t, filepath.Join(dir, "TESTPROD", "20240202.bin"), schema.L2.Cols())
	require.Equal(t, uint64(1), hdr.Rows)
}

func TestWriter_CapacityGrowth(t *testing.T) {
	dir := t.TempDir()
	w := testL2Writer(t, dir) // capacity 16
	require.NoError(t, w.Start())

	const total = 17
	for i := range uint64(total) {
		require.True(t, w.Enqueue(l2Row(dayEpoch, i*1_000)))
	}
	require.NoError(t, w.Close())
	require.Zero(t, w.Dropped())

	path := filepath.Join(dir, "TESTPROD", "20240201.bin")
	hdr := readColHeader(t, path, schema.L2.Cols())
	require.Equal(t, uint64(total), hdr.Rows, "no row may be lost across growth")
	require.Equal(t, uint64(32), hdr.Capacity, "capacity doubled once")

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(section.ColFileHeaderSize)+32*int64(schema.L2.RowBytes()), st.Size())
}

func TestWriter_FsyncEveryRows(t *testing.T) {
	dir := t.TempDir()
	w := testL2Writer(t, dir, WithFsyncEveryRows(1))
	require.NoError(t, w.Start())

	for i := range uint64(5) {
		require.True(t, w.Enqueue(l2Row(dayEpoch, i)))
	}
	require.NoError(t, w.Close())

	hdr := readColHeader(t, filepath.Join(dir, "TESTPROD", "20240201.bin"), schema.L2.Cols())
	require.Equal(t, uint64(5), hdr.Rows)
}

func TestWriter_EnqueueFullQueue(t *testing.T) {
	w, err := NewWriter(&schema.L2, t.TempDir(), "TESTPROD",
		WithRowsPerHour(8), WithQueueCapacity(4))
	require.NoError(t, err)

	// Worker not started: the ring fills and rejects without blocking.
	for range 4 {
		require.True(t, w.Enqueue(l2Row(dayEpoch, 0)))
	}
	require.False(t, w.Enqueue(l2Row(dayEpoch, 0)))
	require.ErrorIs(t, w.Push(l2Row(dayEpoch, 0)), errs.ErrQueueFull)
}

func TestWriter_RowCounterMatchesScatteredRows(t *testing.T) {
	dir := t.TempDir()
	w := testL2Writer(t, dir)
	require.NoError(t, w.Start())

	const total = 100
	for i := range uint64(total) {
		require.True(t, w.Enqueue(schema.L2Row{
			TsNs:  dayEpoch*1_000_000_000 + i,
			Price: uint32(i),
			Qty:   float32(i),
			Side:  uint8(i & 1),
		}))
	}
	require.NoError(t, w.Close())
	require.Equal(t, uint64(0), w.Rows(), "counter resets when the file closes")

	r, err := NewReader(&schema.L2, dir, "TESTPROD")
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.VisitSegments(func(seg Segment) bool {
		require.Equal(t, uint64(total), seg.Rows)
		for i := range uint64(total) {
			row := r.Gather(&seg, i)
			require.Equal(t, uint32(i), row.Price)
			require.Equal(t, uint8(i&1), row.Side)
		}

		return true
	}))
}
