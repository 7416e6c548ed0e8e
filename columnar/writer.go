// Package columnar implements the columnar day-file layout: a lock-free
// ingest path feeding a background writer that scatters rows into
// memory-mapped per-column arrays, and a reader exposing those arrays
// zero-copy.
package columnar

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/format"
	"github.com/arloliu/tickstore/internal/mmap"
	"github.com/arloliu/tickstore/internal/options"
	"github.com/arloliu/tickstore/internal/queue"
	"github.com/arloliu/tickstore/schema"
	"github.com/arloliu/tickstore/section"
)

const (
	// DefaultRowsPerHour sizes a fresh day file at twice this row count.
	DefaultRowsPerHour = 1 << 24
	// DefaultQueueCapacity is the ingest ring size in rows.
	DefaultQueueCapacity = 1 << 26
)

type writerConfig struct {
	baseDir        string
	product        string
	rowsPerHour    uint64
	fsyncEveryRows uint32
	queueCapacity  uint64
	logger         *zap.Logger
}

// WriterOption configures a Writer.
type WriterOption = options.Option[*writerConfig]

// WithRowsPerHour sets the expected ingest rate used to size new day
// files (capacity = 2x this value).
func WithRowsPerHour(n uint64) WriterOption {
	return options.New(func(c *writerConfig) error {
		if n == 0 {
			return fmt.Errorf("rows per hour must be positive")
		}
		c.rowsPerHour = n

		return nil
	})
}

// WithFsyncEveryRows refreshes the on-disk row count every n rows. Zero
// (the default) syncs the header only on rotation and close.
func WithFsyncEveryRows(n uint32) WriterOption {
	return options.NoError(func(c *writerConfig) { c.fsyncEveryRows = n })
}

// WithQueueCapacity overrides the ingest ring capacity, rounded up to a
// power of two.
func WithQueueCapacity(n uint64) WriterOption {
	return options.New(func(c *writerConfig) error {
		if n == 0 {
			return fmt.Errorf("queue capacity must be positive")
		}
		c.queueCapacity = n

		return nil
	})
}

// WithWriterLogger sets the structured logger. The default discards all
// output.
func WithWriterLogger(l *zap.Logger) WriterOption {
	return options.NoError(func(c *writerConfig) { c.logger = l })
}

// Writer ingests rows of one schema through a lock-free ring drained by
// a single background goroutine, which scatters them into the current
// day's memory-mapped columnar file.
//
// Exactly one goroutine may call Enqueue. The worker rotates files on
// UTC day boundaries, doubles capacity when a file fills, and refreshes
// the header's row count either periodically or on rotation and close.
type Writer[R any] struct {
	cfg writerConfig
	sch *schema.Schema[R]

	q    *queue.SPSC[R]
	done chan struct{}

	f        *os.File
	region   *mmap.Region
	path     string
	hdr      section.ColFileHeader
	cols     [][]byte
	colBytes []uint64
	capacity uint64
	dayStart uint64

	rows    atomic.Uint64
	dropped atomic.Uint64
	stop    atomic.Bool
	running atomic.Bool
}

// NewWriter creates a columnar writer for the given schema and product.
// Day files land in <baseDir>/<product>/.
func NewWriter[R any](sch *schema.Schema[R], baseDir, product string, opts ...WriterOption) (*Writer[R], error) {
	if sch.Cols() > section.MaxCols {
		return nil, fmt.Errorf("%w: %d columns exceed header capacity", errs.ErrInvalidHeaderSize, sch.Cols())
	}

	cfg := writerConfig{
		baseDir:       baseDir,
		product:       product,
		rowsPerHour:   DefaultRowsPerHour,
		queueCapacity: DefaultQueueCapacity,
		logger:        zap.NewNop(),
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Writer[R]{
		cfg:      cfg,
		sch:      sch,
		q:        queue.New[R](cfg.queueCapacity),
		done:     make(chan struct{}),
		cols:     make([][]byte, sch.Cols()),
		colBytes: make([]uint64, sch.Cols()),
		dayStart: ^uint64(0),
	}, nil
}

// Start spawns the background worker. The writer is single-shot:
// starting twice or restarting after Close is an error.
func (w *Writer[R]) Start() error {
	select {
	case <-w.done:
		return fmt.Errorf("%w: writer cannot be restarted", errs.ErrClosed)
	default:
	}
	if !w.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: writer already started", errs.ErrClosed)
	}
	w.stop.Store(false)
	go w.run()

	return nil
}

// Enqueue offers one row to the worker without blocking. It returns
// false when the ring is full; the row is not stored and the caller
// decides whether to retry or drop.
func (w *Writer[R]) Enqueue(r R) bool {
	return w.q.Enqueue(r)
}

// Push is Enqueue with an error result: it returns errs.ErrQueueFull
// when the ring rejects the row.
func (w *Writer[R]) Push(r R) error {
	if w.q.Enqueue(r) {
		return nil
	}

	return errs.ErrQueueFull
}

// Rows returns the count of rows fully scattered into the current day
// file.
func (w *Writer[R]) Rows() uint64 { return w.rows.Load() }

// Dropped returns the rows the worker discarded after rotation or growth
// failures.
func (w *Writer[R]) Dropped() uint64 { return w.dropped.Load() }

// DayStart returns the epoch seconds of the current day file's UTC
// midnight, or ^uint64(0) before the first row.
func (w *Writer[R]) DayStart() uint64 { return w.dayStart }

// Stop asks the worker to drain the ring and exit. It does not wait;
// use Close to wait for completion.
func (w *Writer[R]) Stop() { w.stop.Store(true) }

// Close stops the worker, waits for the ring to drain, finalizes the
// header and closes the current day file.
func (w *Writer[R]) Close() error {
	w.Stop()
	if w.running.Load() {
		<-w.done
	}

	return nil
}

func (w *Writer[R]) run() {
	defer func() {
		w.updateRowsInHeader()
		w.closeFile()
		w.running.Store(false)
		close(w.done)
	}()

	var sinceFsync uint32
	for {
		if w.stop.Load() && w.q.Empty() {
			return
		}

		row, ok := w.q.Dequeue()
		if !ok {
			runtime.Gosched()
			continue
		}

		day := dayFromHour(w.sch.HourFromRow(row))
		if day != w.dayStart {
			if err := w.rotateToDay(day); err != nil {
				w.cfg.logger.Error("rotation failed", zap.Uint64("day", day), zap.Error(err))
				w.dropped.Add(1)

				continue
			}
		}

		idx := w.rows.Load()
		if idx >= w.capacity {
			if err := w.growFile(); err != nil {
				w.cfg.logger.Error("growth failed", zap.String("path", w.path), zap.Error(err))
				w.rows.Store(w.capacity)
				w.dropped.Add(1)

				continue
			}
		}

		// Scatter first, then publish: the release store keeps header
		// readers from observing a count covering rows whose column
		// writes have not retired.
		w.sch.Scatter(row, w.cols, idx)
		w.rows.Store(idx + 1)

		if w.cfg.fsyncEveryRows > 0 {
			sinceFsync++
			if sinceFsync >= w.cfg.fsyncEveryRows {
				w.updateRowsInHeader()
				sinceFsync = 0
			}
		}
	}
}

// dayFromHour floors hour-granularity epoch seconds to UTC midnight.
func dayFromHour(hourS uint64) uint64 {
	return hourS - hourS%86400
}

func dateString(dayS uint64) string {
	return time.Unix(int64(dayS), 0).UTC().Format("20060102")
}

func (w *Writer[R]) rotateToDay(dayS uint64) error {
	if w.dayStart == dayS && w.region != nil {
		return nil
	}

	w.updateRowsInHeader()
	w.closeFile()

	if err := w.openDayFile(dayS); err != nil {
		return err
	}
	w.dayStart = dayS

	return nil
}

func (w *Writer[R]) openDayFile(dayS uint64) error {
	w.capacity = w.cfg.rowsPerHour * 2

	colsBytes := uint64(0)
	for i, sz := range w.sch.ColSizes {
		w.colBytes[i] = w.capacity * uint64(sz)
		colsBytes += w.colBytes[i]
	}
	fileBytes := uint64(section.ColFileHeaderSize) + colsBytes

	dir := filepath.Join(w.cfg.baseDir, w.cfg.product)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", errs.ErrOpenFailed, dir, err)
	}
	path := filepath.Join(dir, dateString(dayS)+format.ColumnarExt)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, path, err)
	}
	if err := mmap.Fallocate(int(f.Fd()), int64(fileBytes)); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	region, err := mmap.MapFile(int(f.Fd()), int(fileBytes), true)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	w.f = f
	w.path = path
	w.region = region

	w.hdr = section.NewColFileHeader(w.sch.Cols())
	w.hdr.Magic = w.sch.Magic
	w.hdr.Version = w.sch.Version
	w.hdr.SetProduct(w.cfg.product)
	w.hdr.DayEpochStart = dayS
	w.hdr.Capacity = w.capacity

	w.layoutColumns()
	w.hdr.Marshal(region.Bytes())
	if err := region.Sync(0, section.ColFileHeaderSize); err != nil {
		return fmt.Errorf("%w: header msync: %w", errs.ErrOpenFailed, err)
	}

	w.rows.Store(0)

	w.cfg.logger.Info("opened day file",
		zap.String("path", path),
		zap.Uint64("capacity", w.capacity))

	return nil
}

// layoutColumns computes contiguous column offsets for the current
// capacity and rebinds the column slices into the mapping.
func (w *Writer[R]) layoutColumns() {
	base := w.region.Bytes()
	off := uint64(section.ColFileHeaderSize)
	for i, sz := range w.sch.ColSizes {
		w.hdr.ColOff[i] = off
		w.hdr.ColSize[i] = uint64(sz)
		w.cols[i] = base[off : off+w.colBytes[i]]
		off += w.colBytes[i]
	}
}

// growFile doubles the file's row capacity. The old mapping is replaced,
// so every column slice is rebound and the rows already written move to
// their columns' new offsets; the row counter carries through.
func (w *Writer[R]) growFile() error {
	oldCapacity := w.capacity
	oldOff := append([]uint64(nil), w.hdr.ColOff...)
	newCapacity := w.capacity * 2

	w.cfg.logger.Info("growing day file",
		zap.String("path", w.path),
		zap.Uint64("from", w.capacity),
		zap.Uint64("to", newCapacity))

	colsBytes := uint64(0)
	for i, sz := range w.sch.ColSizes {
		w.colBytes[i] = newCapacity * uint64(sz)
		colsBytes += w.colBytes[i]
	}
	newFileBytes := uint64(section.ColFileHeaderSize) + colsBytes

	if err := w.region.Unmap(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrRemapFailed, err)
	}
	if err := mmap.Fallocate(int(w.f.Fd()), int64(newFileBytes)); err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}

	region, err := mmap.MapFile(int(w.f.Fd()), int(newFileBytes), true)
	if err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}
	w.region = region

	w.capacity = newCapacity
	w.hdr.Capacity = newCapacity
	w.layoutColumns()

	// New offsets are never below the old ones: move the last column
	// first so no column overwrites data that has not moved yet.
	base := w.region.Bytes()
	for i := len(w.sch.ColSizes) - 1; i > 0; i-- {
		n := oldCapacity * uint64(w.sch.ColSizes[i])
		copy(base[w.hdr.ColOff[i]:w.hdr.ColOff[i]+n], base[oldOff[i]:oldOff[i]+n])
	}

	w.hdr.Marshal(w.region.Bytes())

	return w.region.Sync(0, section.ColFileHeaderSize)
}

// updateRowsInHeader publishes the current row count into the mapped
// header and syncs just the header page.
func (w *Writer[R]) updateRowsInHeader() {
	if w.region == nil {
		return
	}
	w.hdr.Rows = w.rows.Load()
	w.hdr.Marshal(w.region.Bytes())
	if err := w.region.Sync(0, section.ColFileHeaderSize); err != nil {
		w.cfg.logger.Error("header msync failed", zap.String("path", w.path), zap.Error(err))
	}
}

func (w *Writer[R]) closeFile() {
	if w.region == nil {
		return
	}
	_ = w.region.Sync(0, section.ColFileHeaderSize)
	_ = w.region.Unmap()
	w.region = nil

	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}

	w.rows.Store(0)
	w.hdr = section.ColFileHeader{}
	for i := range w.cols {
		w.cols[i] = nil
		w.colBytes[i] = 0
	}
	w.path = ""
}
