//go:build !linux

package mmap

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/arloliu/tickstore/errs"
)

// Remap emulates mremap by unmapping and remapping at the new length.
// The writer only calls it between block appends, so no dirty bytes past
// the synced region are lost: MAP_SHARED stores are already in the page
// cache before the munmap.
func (r *Region) Remap(fd int, newLen int) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if err := unix.Munmap(r.data); err != nil {
		r.data = nil
		return fmt.Errorf("%w: %w", errs.ErrRemapFailed, err)
	}
	data, err := unix.Mmap(fd, 0, newLen, prot, unix.MAP_SHARED)
	if err != nil {
		r.data = nil
		return fmt.Errorf("%w: %w", errs.ErrRemapFailed, err)
	}
	r.data = data

	return nil
}

// Fallocate extends the file to length bytes. Without posix_fallocate
// semantics the blocks are not reserved up front; ftruncate keeps the
// write path working at the cost of possible late ENOSPC.
func Fallocate(fd int, length int64) error {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrAllocateFailed, err)
	}
	if st.Size >= length {
		return nil
	}
	if err := unix.Ftruncate(fd, length); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrAllocateFailed, err)
	}

	return nil
}

// Fdatasync falls back to fsync on platforms without fdatasync.
func Fdatasync(fd int) error {
	return unix.Fsync(fd)
}

// FadviseSequential is a no-op on platforms without posix_fadvise.
func FadviseSequential(fd int, length int64) {}

// AllocStage maps an anonymous read/write staging buffer of n bytes.
func AllocStage(n int) (*Region, error) {
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: anonymous mmap: %w", errs.ErrOpenFailed, err)
	}

	return &Region{data: data}, nil
}
