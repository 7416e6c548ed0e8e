// Package mmap wraps the memory-mapping and file-allocation syscalls the
// writers and readers are built on.
//
// A Region owns one mapping interval. Writable regions are exclusive to
// one goroutine; a remap may relocate the interval, invalidating every
// pointer derived from Bytes.
package mmap

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/arloliu/tickstore/errs"
)

// Region is an owned mapping of a file or of anonymous memory.
type Region struct {
	data []byte
}

// MapFile maps length bytes of the file starting at offset zero.
// Writable regions use MAP_SHARED so stores reach the page cache.
func MapFile(fd int, length int, writable bool) (*Region, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(fd, 0, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %w", errs.ErrOpenFailed, err)
	}

	return &Region{data: data}, nil
}

// Bytes returns the mapped interval. The slice is invalidated by Remap
// and Unmap.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the mapping length in bytes.
func (r *Region) Len() int { return len(r.data) }

// Unmap releases the mapping. Safe to call on an already unmapped region.
func (r *Region) Unmap() error {
	if r == nil || r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil

	return err
}

// Sync flushes the mapped range [off, off+n) to the file with MS_SYNC.
// off must be page aligned; offset zero always is.
func (r *Region) Sync(off, n int) error {
	return unix.Msync(r.data[off:off+n], unix.MS_SYNC)
}

// AdviseSequential hints the kernel that the mapping will be accessed
// sequentially. Advice failures are ignored.
func (r *Region) AdviseSequential() {
	_ = unix.Madvise(r.data, unix.MADV_SEQUENTIAL)
}

// AdviseWillNeed hints the kernel to fault the mapping in ahead of use.
func (r *Region) AdviseWillNeed() {
	_ = unix.Madvise(r.data, unix.MADV_WILLNEED)
}

// PageSize returns the system page size.
func PageSize() int {
	return unix.Getpagesize()
}
