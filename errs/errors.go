// Package errs defines the sentinel errors shared across tickstore packages.
//
// Callers should match with errors.Is; most call sites wrap these with
// fmt.Errorf("%w: ...") to attach context.
package errs

import "errors"

var (
	// ErrOpenFailed indicates open, fstat or mmap failed on a day file.
	ErrOpenFailed = errors.New("tickstore: open day file failed")

	// ErrAllocateFailed indicates fallocate could not extend a day file.
	ErrAllocateFailed = errors.New("tickstore: file allocation failed")

	// ErrRemapFailed indicates the writer could not grow its mapping window.
	ErrRemapFailed = errors.New("tickstore: mremap failed")

	// ErrTooSmall indicates the source slice is shorter than a block header.
	ErrTooSmall = errors.New("tickstore: block too small")

	// ErrBadMagic indicates a block or file magic mismatch.
	ErrBadMagic = errors.New("tickstore: bad magic")

	// ErrShortBlock indicates a block slab extends past the source slice.
	ErrShortBlock = errors.New("tickstore: block slab out of bounds")

	// ErrOverflow indicates a reconstructed price does not fit in uint32.
	ErrOverflow = errors.New("tickstore: price overflow")

	// ErrNotOpen indicates a write was attempted before BeginDay.
	ErrNotOpen = errors.New("tickstore: no day file open")

	// ErrQueueFull indicates the ingest ring rejected a row.
	ErrQueueFull = errors.New("tickstore: ingest queue full")

	// ErrClosed indicates an operation on a closed writer or reader.
	ErrClosed = errors.New("tickstore: already closed")

	// ErrInvalidHeaderSize indicates a header buffer of the wrong length.
	ErrInvalidHeaderSize = errors.New("tickstore: invalid header size")

	// ErrChecksum indicates an archive payload failed hash verification.
	ErrChecksum = errors.New("tickstore: archive checksum mismatch")
)
