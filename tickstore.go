// Package tickstore provides a per-product, per-day on-disk store for
// high-frequency market microstructure events.
//
// Two layouts cover the hot and cold halves of a capture pipeline:
//
//   - Columnar day files (columnar package): one file per product per
//     UTC day, a 256-byte header followed by dense per-column arrays.
//     A lock-free single-producer ring feeds a background goroutine that
//     scatters rows into the memory-mapped file, rotating on day
//     boundaries and doubling capacity when a file fills. Readers mmap
//     the file and expose the columns zero-copy.
//
//   - Blocked day files (block package): the same events re-encoded into
//     independently decodable 8192-row blocks with delta/zig-zag
//     bit-packed timestamps and prices. Small decode cost, large
//     compression win; the natural shape for scanning whole days.
//
// The archive package adds checksummed whole-file compression for closed
// days, and Reblock drives the columnar-to-blocked re-encoding pass.
//
// # Basic usage
//
// Capturing L2 updates:
//
//	w, _ := tickstore.NewL2Writer("/data", "BTCUSD")
//	w.Start()
//	for ev := range feed {
//	    if !w.Enqueue(ev) {
//	        drops++
//	    }
//	}
//	w.Close()
//
// Scanning a blocked day range:
//
//	r, _ := tickstore.NewBlockReader("/data", "BTCUSD",
//	    block.WithDateRange(20240101, 20240131))
//	r.VisitDayFiles(func(v block.RowsView) bool {
//	    for _, row := range v.Rows {
//	        process(row)
//	    }
//	    return true
//	})
package tickstore

import (
	"github.com/arloliu/tickstore/block"
	"github.com/arloliu/tickstore/columnar"
	"github.com/arloliu/tickstore/schema"
)

// NewBlockWriter creates a writer for the blocked day-file layout.
func NewBlockWriter(baseDir, product string, opts ...block.WriterOption) (*block.Writer, error) {
	return block.NewWriter(baseDir, product, opts...)
}

// NewBlockReader creates a reader over a product's blocked day files.
func NewBlockReader(baseDir, product string, opts ...block.ReaderOption) (*block.Reader, error) {
	return block.NewReader(baseDir, product, opts...)
}

// NewL2Writer creates a columnar ingest writer for L2 book updates.
func NewL2Writer(baseDir, product string, opts ...columnar.WriterOption) (*columnar.Writer[schema.L2Row], error) {
	return columnar.NewWriter(&schema.L2, baseDir, product, opts...)
}

// NewL3Writer creates a columnar ingest writer for L3 order events.
func NewL3Writer(baseDir, product string, opts ...columnar.WriterOption) (*columnar.Writer[schema.L3Row], error) {
	return columnar.NewWriter(&schema.L3, baseDir, product, opts...)
}

// NewImbalanceWriter creates a columnar ingest writer for order-flow
// imbalance samples.
func NewImbalanceWriter(baseDir, product string, opts ...columnar.WriterOption) (*columnar.Writer[schema.ImbalanceRow], error) {
	return columnar.NewWriter(&schema.Imbalance, baseDir, product, opts...)
}

// NewVwapWriter creates a columnar ingest writer for VWAP samples.
func NewVwapWriter(baseDir, product string, opts ...columnar.WriterOption) (*columnar.Writer[schema.VwapRow], error) {
	return columnar.NewWriter(&schema.Vwap, baseDir, product, opts...)
}

// NewVoiWriter creates a columnar ingest writer for volume-order
// imbalance events.
func NewVoiWriter(baseDir, product string, opts ...columnar.WriterOption) (*columnar.Writer[schema.VoiRow], error) {
	return columnar.NewWriter(&schema.Voi, baseDir, product, opts...)
}

// NewL2Reader creates a columnar reader over a product's L2 day files.
func NewL2Reader(baseDir, product string, opts ...columnar.ReaderOption) (*columnar.Reader[schema.L2Row], error) {
	return columnar.NewReader(&schema.L2, baseDir, product, opts...)
}

// NewL3Reader creates a columnar reader over a product's L3 day files.
func NewL3Reader(baseDir, product string, opts ...columnar.ReaderOption) (*columnar.Reader[schema.L3Row], error) {
	return columnar.NewReader(&schema.L3, baseDir, product, opts...)
}

// Reblock re-encodes every row a columnar reader yields into the blocked
// layout. conv maps the source schema's rows onto the codec's canonical
// tick row. The block writer is left open on the last day; closing it is
// the caller's responsibility.
func Reblock[R any](r *columnar.Reader[R], conv func(R) schema.TickRow, w *block.Writer) error {
	var visitErr error
	err := r.VisitSegments(func(seg columnar.Segment) bool {
		if visitErr = w.BeginDay(seg.Date); visitErr != nil {
			return false
		}
		for i := uint64(0); i < seg.Rows; i++ {
			if visitErr = w.WriteRow(conv(r.Gather(&seg, i))); visitErr != nil {
				return false
			}
		}

		return true
	})
	if err != nil {
		return err
	}

	return visitErr
}
