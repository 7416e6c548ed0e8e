package block

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/format"
	"github.com/arloliu/tickstore/internal/mmap"
	"github.com/arloliu/tickstore/internal/options"
	"github.com/arloliu/tickstore/schema"
	"github.com/arloliu/tickstore/section"
)

// RowsView hands one decoded block to a visitor. The Rows slice is
// reused between blocks and must not be retained past the callback.
type RowsView struct {
	Rows       []schema.TickRow
	FileOffset int64
	Date       uint32
}

type readerConfig struct {
	baseDir  string
	product  string
	dateFrom uint32
	dateTo   uint32
	logger   *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption = options.Option[*readerConfig]

// WithDateRange restricts the reader to day files within the inclusive
// [from, to] YYYYMMDD range.
func WithDateRange(from, to uint32) ReaderOption {
	return options.New(func(c *readerConfig) error {
		if from > to {
			return fmt.Errorf("date range inverted: %08d > %08d", from, to)
		}
		c.dateFrom = from
		c.dateTo = to

		return nil
	})
}

// WithReaderLogger sets the structured logger. The default discards all
// output.
func WithReaderLogger(l *zap.Logger) ReaderOption {
	return options.NoError(func(c *readerConfig) { c.logger = l })
}

type dayFile struct {
	date uint32
	path string
}

// Reader streams every block of every blocked day file of one product,
// in ascending date order.
//
// A Reader is not safe for concurrent use; independent readers may run
// concurrently over the same files.
type Reader struct {
	cfg   readerConfig
	files []dayFile
	rows  []schema.TickRow
}

// NewReader enumerates the product's blocked day files under baseDir and
// returns a reader over those in range. A missing product directory
// yields a reader with no files.
func NewReader(baseDir, product string, opts ...ReaderOption) (*Reader, error) {
	cfg := readerConfig{
		baseDir:  baseDir,
		product:  product,
		dateFrom: format.DateMin,
		dateTo:   format.DateMax,
		logger:   zap.NewNop(),
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	r := &Reader{cfg: cfg}
	if err := r.buildDayFileList(); err != nil {
		return nil, err
	}

	return r, nil
}

// Days returns the dates of the selected files, ascending.
func (r *Reader) Days() []uint32 {
	days := make([]uint32, len(r.files))
	for i, f := range r.files {
		days[i] = f.date
	}

	return days
}

// Paths returns the selected file paths, ascending by date.
func (r *Reader) Paths() []string {
	paths := make([]string, len(r.files))
	for i, f := range r.files {
		paths[i] = f.path
	}

	return paths
}

// VisitDayFiles decodes each file block by block and invokes fn once per
// block. Returning false from fn stops the walk. A file that ends early
// or whose next block fails its magic check is abandoned cleanly; a
// price overflow aborts the walk with an error.
func (r *Reader) VisitDayFiles(fn func(RowsView) bool) error {
	for _, f := range r.files {
		cont, err := r.visitFile(f, fn)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}

	return nil
}

func (r *Reader) visitFile(f dayFile, fn func(RowsView) bool) (bool, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, f.path, err)
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", errs.ErrOpenFailed, f.path, err)
	}
	if st.Size() < section.DayFileHeaderSize {
		return false, fmt.Errorf("%w: %s: %d bytes", errs.ErrInvalidHeaderSize, f.path, st.Size())
	}

	region, err := mmap.MapFile(int(file.Fd()), int(st.Size()), false)
	if err != nil {
		return false, fmt.Errorf("%s: %w", f.path, err)
	}
	defer region.Unmap()
	region.AdviseSequential()

	data := region.Bytes()
	var hdr section.DayFileHeader
	if err := hdr.Parse(data); err != nil {
		return false, fmt.Errorf("%s: %w", f.path, err)
	}

	limit := int64(section.DayFileHeaderSize) + int64(hdr.BytesTotal)
	if limit > st.Size() {
		limit = st.Size()
	}

	off := int64(section.DayFileHeaderSize)
	visited := uint32(0)
	for off < limit && visited < hdr.BlocksTotal {
		consumed, err := DecodeBlock(data[off:limit], &r.rows)
		if err != nil {
			if errors.Is(err, errs.ErrTooSmall) || errors.Is(err, errs.ErrBadMagic) || errors.Is(err, errs.ErrShortBlock) {
				// Trailing partial or foreign bytes: the rest of this
				// file is unreadable, move on to the next day.
				r.cfg.logger.Warn("stopping day file early",
					zap.String("path", f.path), zap.Int64("offset", off), zap.Error(err))

				break
			}

			return false, fmt.Errorf("%s at offset %d: %w", f.path, off, err)
		}
		if consumed == 0 || off+int64(consumed) > limit {
			break
		}

		view := RowsView{Rows: r.rows, FileOffset: off, Date: hdr.Date}
		if !fn(view) {
			return false, nil
		}

		off += int64(consumed)
		visited++
	}

	return true, nil
}

func (r *Reader) buildDayFileList() error {
	dir := filepath.Join(r.cfg.baseDir, r.cfg.product+format.BlockedDirSuffix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, dir, err)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		date, ok := parseDayFileName(e.Name())
		if !ok {
			continue
		}
		if date < r.cfg.dateFrom || date > r.cfg.dateTo {
			continue
		}
		r.files = append(r.files, dayFile{date: date, path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(r.files, func(i, j int) bool { return r.files[i].date < r.files[j].date })

	return nil
}

// parseDayFileName extracts the YYYYMMDD date from a day file name such
// as "20240201.blocks". Both the blocked and the columnar extensions are
// accepted.
func parseDayFileName(name string) (uint32, bool) {
	ext := filepath.Ext(name)
	if ext != format.BlockedExt && ext != format.ColumnarExt {
		return 0, false
	}
	stem := strings.TrimSuffix(name, ext)
	if len(stem) != 8 {
		return 0, false
	}

	var v uint32
	for _, c := range []byte(stem) {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint32(c-'0')
	}

	return v, true
}
