//go:build linux

package mmap

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/arloliu/tickstore/errs"
)

// Remap grows the mapping to newLen bytes in place when possible,
// relocating it otherwise. The file must already span newLen bytes.
func (r *Region) Remap(fd int, newLen int) error {
	data, err := unix.Mremap(r.data, newLen, unix.MREMAP_MAYMOVE)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrRemapFailed, err)
	}
	r.data = data

	return nil
}

// Fallocate reserves length bytes of backing store for the file,
// extending it if needed.
func Fallocate(fd int, length int64) error {
	if err := unix.Fallocate(fd, 0, 0, length); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrAllocateFailed, err)
	}

	return nil
}

// Fdatasync flushes the file's data pages to stable storage.
func Fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}

// FadviseSequential hints sequential file access. Failures are ignored.
func FadviseSequential(fd int, length int64) {
	_ = unix.Fadvise(fd, 0, length, unix.FADV_SEQUENTIAL)
}

// AllocStage maps an anonymous read/write staging buffer of at least n
// bytes, preferring explicit 2 MiB huge pages and falling back to a
// regular mapping with MADV_HUGEPAGE.
func AllocStage(n int) (*Region, error) {
	const hugePage = 2 << 20
	want := (n + hugePage - 1) &^ (hugePage - 1)

	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_POPULATE | unix.MAP_HUGETLB | unix.MAP_HUGE_2MB
	if data, err := unix.Mmap(-1, 0, want, unix.PROT_READ|unix.PROT_WRITE, flags); err == nil {
		return &Region{data: data}, nil
	}

	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("%w: anonymous mmap: %w", errs.ErrOpenFailed, err)
	}
	_ = unix.Madvise(data, unix.MADV_HUGEPAGE)

	return &Region{data: data}, nil
}
