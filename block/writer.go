package block

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/format"
	"github.com/arloliu/tickstore/internal/mmap"
	"github.com/arloliu/tickstore/internal/options"
	"github.com/arloliu/tickstore/internal/pool"
	"github.com/arloliu/tickstore/schema"
	"github.com/arloliu/tickstore/section"
)

// Writer appends encoded blocks to one blocked day file at a time
// through a growing mmap window.
//
// Rows buffer in memory until a block's worth (default 8192) is ready,
// then encode and land in the mapped file. The file is over-allocated in
// 1 GiB chunks and truncated to its exact size on close, when the day
// header totals are finalized. Between block appends the file is in a
// recoverable state; durability still requires the periodic fdatasync.
//
// Writer is not safe for concurrent use.
type Writer struct {
	cfg writerConfig

	f         *os.File
	region    *mmap.Region
	path      string
	allocated int64
	currDay   uint32

	hdr             section.DayFileHeader
	rowsTotal       uint64
	bytesTotal      uint64
	bytesSinceSync  int64
	blocksSinceSync uint32
	fileOff         int64

	buf []schema.TickRow
}

const (
	// syncInterval is how many appended bytes elapse between fdatasync
	// calls.
	syncInterval = 64 << 20
	// defaultMapWindow is the granularity the mmap window grows by.
	defaultMapWindow = 256 << 20
	// defaultAllocChunk is the granularity of file preallocation.
	defaultAllocChunk = 1 << 30
	// DefaultBlockRows is the row count at which buffered rows flush as
	// one block.
	DefaultBlockRows = 8192
)

type writerConfig struct {
	baseDir          string
	product          string
	blockRows        int
	fsyncEveryBlocks uint32
	mapWindow        int64
	allocChunk       int64
	logger           *zap.Logger
}

// WriterOption configures a Writer.
type WriterOption = options.Option[*writerConfig]

// WithBlockRows sets the rows per encoded block.
func WithBlockRows(n int) WriterOption {
	return options.New(func(c *writerConfig) error {
		if n <= 0 {
			return fmt.Errorf("block rows must be positive, got %d", n)
		}
		c.blockRows = n

		return nil
	})
}

// WithFsyncEveryBlocks sets the advisory per-block fsync cadence. Zero
// (the default) adds no per-block syncs to WriteBlock beyond the 64 MiB
// byte interval; blocks flushed from the WriteRow buffer are synced on
// every flush regardless of this setting.
func WithFsyncEveryBlocks(n uint32) WriterOption {
	return options.NoError(func(c *writerConfig) { c.fsyncEveryBlocks = n })
}

// WithMapWindow overrides the mmap window growth granularity.
func WithMapWindow(bytes int64) WriterOption {
	return options.New(func(c *writerConfig) error {
		if bytes <= 0 {
			return fmt.Errorf("map window must be positive, got %d", bytes)
		}
		c.mapWindow = bytes

		return nil
	})
}

// WithAllocChunk overrides the file preallocation granularity.
func WithAllocChunk(bytes int64) WriterOption {
	return options.New(func(c *writerConfig) error {
		if bytes <= 0 {
			return fmt.Errorf("alloc chunk must be positive, got %d", bytes)
		}
		c.allocChunk = bytes

		return nil
	})
}

// WithWriterLogger sets the structured logger. The default discards all
// output.
func WithWriterLogger(l *zap.Logger) WriterOption {
	return options.NoError(func(c *writerConfig) { c.logger = l })
}

// NewWriter creates a block writer rooted at baseDir for the given
// product. Day files land in <baseDir>/<product>-BLOCKS/.
func NewWriter(baseDir, product string, opts ...WriterOption) (*Writer, error) {
	cfg := writerConfig{
		baseDir:    baseDir,
		product:    product,
		blockRows:  DefaultBlockRows,
		mapWindow:  defaultMapWindow,
		allocChunk: defaultAllocChunk,
		logger:     zap.NewNop(),
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Writer{
		cfg: cfg,
		buf: make([]schema.TickRow, 0, cfg.blockRows),
	}, nil
}

// IsOpen reports whether a day file is currently open.
func (w *Writer) IsOpen() bool { return w.f != nil }

// BeginDay switches the writer to the given YYYYMMDD date. Buffered rows
// flush to the previous day, which is then closed. Calling BeginDay with
// the current date is a no-op.
func (w *Writer) BeginDay(yyyymmdd uint32) error {
	if w.currDay == yyyymmdd {
		return nil
	}
	if err := w.flushBlock(); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := w.openDayFile(yyyymmdd); err != nil {
		return err
	}
	w.currDay = yyyymmdd

	return nil
}

// WriteRow buffers one row, flushing a block when the buffer reaches the
// configured block size.
func (w *Writer) WriteRow(r schema.TickRow) error {
	w.buf = append(w.buf, r)
	if len(w.buf) >= w.cfg.blockRows {
		return w.flushBlock()
	}

	return nil
}

// WriteBlock flushes any buffered rows and then appends rows as one
// block of its own. An empty slice is a no-op. Fails with errs.ErrNotOpen
// before the first BeginDay.
func (w *Writer) WriteBlock(rows []schema.TickRow) error {
	if len(rows) == 0 {
		return nil
	}
	if !w.IsOpen() {
		return fmt.Errorf("%w: WriteBlock before BeginDay", errs.ErrNotOpen)
	}
	if err := w.flushBlock(); err != nil {
		return err
	}

	return w.appendRowsAsBlock(rows)
}

// Close flushes buffered rows, truncates the file to its exact size,
// rewrites the finalized day header and closes the file. Closing a
// writer with no open file is a no-op.
func (w *Writer) Close() error {
	if !w.IsOpen() {
		return nil
	}

	flushErr := w.flushBlock()

	if w.region != nil {
		_ = w.region.Unmap()
		w.region = nil
	}

	w.hdr.RowsTotal = w.rowsTotal
	w.hdr.BytesTotal = w.bytesTotal

	fd := w.f
	_ = fd.Truncate(w.fileOff)

	var closeErr error
	if _, err := fd.WriteAt(w.hdr.Bytes(), 0); err != nil {
		// The header never made it to disk: the file cannot be trusted.
		closeErr = fmt.Errorf("%w: header rewrite on %s: %w", errs.ErrOpenFailed, w.path, err)
	} else {
		_ = mmap.Fdatasync(int(fd.Fd()))
	}
	_ = fd.Close()

	w.cfg.logger.Info("closed day file",
		zap.String("path", w.path),
		zap.Uint32("date", w.hdr.Date),
		zap.Uint64("rows", w.hdr.RowsTotal),
		zap.Uint64("bytes", w.hdr.BytesTotal),
		zap.Uint32("blocks", w.hdr.BlocksTotal))

	w.f = nil
	w.path = ""
	w.allocated = 0
	w.currDay = 0
	w.hdr = section.DayFileHeader{}
	w.rowsTotal = 0
	w.bytesTotal = 0
	w.bytesSinceSync = 0
	w.blocksSinceSync = 0
	w.fileOff = 0
	w.buf = w.buf[:0]

	if flushErr != nil {
		return flushErr
	}

	return closeErr
}

func (w *Writer) openDayFile(yyyymmdd uint32) error {
	dir := filepath.Join(w.cfg.baseDir, w.cfg.product+format.BlockedDirSuffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", errs.ErrOpenFailed, dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%08d%s", yyyymmdd, format.BlockedExt))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, path, err)
	}

	firstTarget := int64(section.DayFileHeaderSize) + w.cfg.mapWindow
	firstRound := alignUp(firstTarget, w.cfg.allocChunk)
	if err := mmap.Fallocate(int(f.Fd()), firstRound); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	w.allocated = firstRound

	page := int64(mmap.PageSize())
	mapLen := max(alignUp(firstTarget, page), w.cfg.mapWindow)
	region, err := mmap.MapFile(int(f.Fd()), int(mapLen), true)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	w.f = f
	w.path = path
	w.region = region

	w.hdr = section.DayFileHeader{Date: yyyymmdd}
	w.hdr.Marshal(region.Bytes())
	if err := region.Sync(0, section.DayFileHeaderSize); err != nil {
		return fmt.Errorf("%w: header msync: %w", errs.ErrOpenFailed, err)
	}
	w.fileOff = section.DayFileHeaderSize

	mmap.FadviseSequential(int(f.Fd()), mapLen)
	region.AdviseSequential()

	w.cfg.logger.Info("opened day file", zap.String("path", path), zap.Uint32("date", yyyymmdd))

	return nil
}

// appendRowsAsBlock encodes rows into the scratch buffer and copies the
// block into the mapped file.
func (w *Writer) appendRowsAsBlock(rows []schema.TickRow) error {
	scratch := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(scratch)

	*scratch = EncodeBlock(rows, *scratch)
	blockLen := int64(len(*scratch))

	if err := w.ensureChunk(blockLen); err != nil {
		return err
	}
	copy(w.region.Bytes()[w.fileOff:], *scratch)

	w.fileOff += blockLen
	w.rowsTotal += uint64(len(rows))
	w.bytesTotal += uint64(blockLen)
	w.bytesSinceSync += blockLen
	w.hdr.BlocksTotal++

	needSync := false
	if w.bytesSinceSync >= syncInterval {
		needSync = true
	}
	if w.cfg.fsyncEveryBlocks > 0 {
		w.blocksSinceSync++
		if w.blocksSinceSync >= w.cfg.fsyncEveryBlocks {
			needSync = true
		}
	}
	if needSync {
		if err := mmap.Fdatasync(int(w.f.Fd())); err != nil {
			return fmt.Errorf("fdatasync %s: %w", w.path, err)
		}
		w.bytesSinceSync = 0
		w.blocksSinceSync = 0
	}

	return nil
}

// flushBlock appends the buffered rows as one block and syncs.
func (w *Writer) flushBlock() error {
	if !w.IsOpen() || len(w.buf) == 0 {
		return nil
	}
	if err := w.appendRowsAsBlock(w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]

	return mmap.Fdatasync(int(w.f.Fd()))
}

// ensureChunk guarantees the mapping covers need more bytes at the write
// cursor, allocating and remapping in whole window increments.
func (w *Writer) ensureChunk(need int64) error {
	if w.region != nil && int64(w.region.Len()) >= w.fileOff+need {
		return nil
	}

	minLen := w.fileOff + need
	if err := w.ensureAllocated(minLen); err != nil {
		return err
	}

	newLen := int64(w.region.Len())
	for newLen < minLen {
		newLen += w.cfg.mapWindow
	}

	if err := w.region.Remap(int(w.f.Fd()), int(newLen)); err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}

	mmap.FadviseSequential(int(w.f.Fd()), newLen)
	w.region.AdviseSequential()

	return nil
}

// ensureAllocated extends the file's backing store to cover requiredLen,
// rounded up to the allocation chunk.
func (w *Writer) ensureAllocated(requiredLen int64) error {
	if requiredLen <= w.allocated {
		return nil
	}

	rounded := alignUp(requiredLen, w.cfg.allocChunk)
	if err := mmap.Fallocate(int(w.f.Fd()), rounded); err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}
	w.allocated = rounded

	return nil
}

func alignUp(x, a int64) int64 {
	return (x + a - 1) / a * a
}
