package columnar

import (
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

// Segment exposes one day file's columns. In zero-copy mode the column
// slices alias the file mapping and are only valid during the visit; in
// staged mode they alias the reader's staging slab and stay valid until
// the next staged visit.
type Segment struct {
	Cols [][]byte
	Rows uint64
	Date uint32
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

// WithReaderLogger sets the structured logger.
func WithReaderLogger(l *zap.Logger) ReaderOption {
	return options.NoError(func(c *readerConfig) { c.logger = l })
}

type colDayFile struct {
	date uint32
	path string
}

// Reader walks a product's columnar day files in ascending date order,
// exposing per-column data either zero-copy or gathered into an
// anonymous staging slab that outlives the file mapping.
//
// A Reader is not safe for concurrent use.
type Reader[R any] struct {
	cfg   readerConfig
	sch   *schema.Schema[R]
	files []colDayFile

	stage     *mmap.Region
	stageCols [][]byte
}

// NewReader enumerates the product's columnar day files under baseDir.
// A missing product directory yields a reader with no files.
func NewReader[R any](sch *schema.Schema[R], baseDir, product string, opts ...ReaderOption) (*Reader[R], error) {
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

	r := &Reader[R]{
		cfg:       cfg,
		sch:       sch,
		stageCols: make([][]byte, sch.Cols()),
	}
	if err := r.buildDayFileList(); err != nil {
		return nil, err
	}

	return r, nil
}

// Days returns the dates of the selected files, ascending.
func (r *Reader[R]) Days() []uint32 {
	days := make([]uint32, len(r.files))
	for i, f := range r.files {
		days[i] = f.date
	}

	return days
}

// Paths returns the selected file paths, ascending by date.
func (r *Reader[R]) Paths() []string {
	paths := make([]string, len(r.files))
	for i, f := range r.files {
		paths[i] = f.path
	}

	return paths
}

// Gather reads row i back out of a segment.
func (r *Reader[R]) Gather(seg *Segment, i uint64) R {
	return r.sch.Gather(seg.Cols, i)
}

// VisitSegments maps each day file read-only and hands fn a zero-copy
// segment over it. Returning false stops the walk. The segment's column
// slices are invalid once fn returns.
func (r *Reader[R]) VisitSegments(fn func(Segment) bool) error {
	for _, f := range r.files {
		seg, region, err := r.mapFile(f)
		if err != nil {
			return err
		}
		cont := true
		if seg.Rows > 0 {
			cont = fn(seg)
		}
		_ = region.Unmap()
		if !cont {
			return nil
		}
	}

	return nil
}

// VisitStaged is VisitSegments with each file's live columns first
// copied into the reader's staging slab, so fn may retain the segment
// until the next staged visit. Files with no rows are skipped.
func (r *Reader[R]) VisitStaged(fn func(Segment) bool) error {
	for _, f := range r.files {
		seg, region, err := r.mapFile(f)
		if err != nil {
			return err
		}
		if seg.Rows == 0 {
			_ = region.Unmap()
			continue
		}

		staged, err := r.stageSegment(&seg)
		_ = region.Unmap()
		if err != nil {
			return err
		}
		if !fn(staged) {
			return nil
		}
	}

	return nil
}

// Close releases the staging slab.
func (r *Reader[R]) Close() error {
	if r.stage != nil {
		err := r.stage.Unmap()
		r.stage = nil

		return err
	}

	return nil
}

// stageSegment copies the segment's columns into the staging slab,
// growing it when a larger day arrives.
func (r *Reader[R]) stageSegment(seg *Segment) (Segment, error) {
	need := 0
	for _, sz := range r.sch.ColSizes {
		need += int(seg.Rows) * sz
	}

	if r.stage == nil || r.stage.Len() < need {
		if r.stage != nil {
			_ = r.stage.Unmap()
			r.stage = nil
		}
		stage, err := mmap.AllocStage(need)
		if err != nil {
			return Segment{}, err
		}
		r.stage = stage
	}

	out := Segment{
		Cols: r.stageCols,
		Rows: seg.Rows,
		Date: seg.Date,
	}
	buf := r.stage.Bytes()
	off := 0
	for c, sz := range r.sch.ColSizes {
		n := int(seg.Rows) * sz
		copy(buf[off:off+n], seg.Cols[c][:n])
		r.stageCols[c] = buf[off : off+n]
		off += n
	}

	return out, nil
}

// mapFile maps one day file read-only and builds a zero-copy segment
// bounded by the header's row count.
func (r *Reader[R]) mapFile(f colDayFile) (Segment, *mmap.Region, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return Segment{}, nil, fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, f.path, err)
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return Segment{}, nil, fmt.Errorf("%w: stat %s: %w", errs.ErrOpenFailed, f.path, err)
	}
	if st.Size() < section.ColFileHeaderSize {
		return Segment{}, nil, fmt.Errorf("%w: %s: %d bytes", errs.ErrInvalidHeaderSize, f.path, st.Size())
	}

	region, err := mmap.MapFile(int(file.Fd()), int(st.Size()), false)
	if err != nil {
		return Segment{}, nil, fmt.Errorf("%s: %w", f.path, err)
	}
	region.AdviseSequential()
	region.AdviseWillNeed()

	base := region.Bytes()
	hdr := section.NewColFileHeader(r.sch.Cols())
	if err := hdr.Parse(base); err != nil {
		_ = region.Unmap()
		return Segment{}, nil, fmt.Errorf("%s: %w", f.path, err)
	}
	if hdr.Magic != r.sch.Magic {
		_ = region.Unmap()
		return Segment{}, nil, fmt.Errorf("%w: %s tagged %q, want %q", errs.ErrBadMagic, f.path, hdr.Magic[:], r.sch.Magic[:])
	}

	seg := Segment{
		Cols: make([][]byte, r.sch.Cols()),
		Rows: hdr.Rows,
		Date: f.date,
	}
	for c := range seg.Cols {
		off := hdr.ColOff[c]
		n := hdr.Rows * hdr.ColSize[c]
		if off+n > uint64(st.Size()) {
			_ = region.Unmap()
			return Segment{}, nil, fmt.Errorf("%w: %s column %d past end of file", errs.ErrInvalidHeaderSize, f.path, c)
		}
		seg.Cols[c] = base[off : off+n]
	}

	return seg, region, nil
}

func (r *Reader[R]) buildDayFileList() error {
	dir := filepath.Join(r.cfg.baseDir, r.cfg.product)
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
		date, ok := parseColFileName(e.Name())
		if !ok {
			continue
		}
		if date < r.cfg.dateFrom || date > r.cfg.dateTo {
			continue
		}
		r.files = append(r.files, colDayFile{date: date, path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(r.files, func(i, j int) bool { return r.files[i].date < r.files[j].date })

	r.cfg.logger.Debug("selected day files",
		zap.String("dir", dir), zap.Int("count", len(r.files)))

	return nil
}

// parseColFileName extracts the YYYYMMDD date from names like
// "20240201.bin".
func parseColFileName(name string) (uint32, bool) {
	if !strings.HasSuffix(name, format.ColumnarExt) {
		return 0, false
	}
	stem := strings.TrimSuffix(name, format.ColumnarExt)
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
