package pool

import "sync"

// Slice pools for the block codec's per-block scratch columns.
// Encoding a block materializes delta and flag arrays sized block_rows;
// pooling them keeps the steady-state append path allocation free.
var (
	uint64SlicePool = sync.Pool{
		New: func() any { return &[]uint64{} },
	}
	uint32SlicePool = sync.Pool{
		New: func() any { return &[]uint32{} },
	}
	uint8SlicePool = sync.Pool{
		New: func() any { return &[]uint8{} },
	}
)

// GetUint64Slice retrieves a uint64 slice of the exact given length from
// the pool. The caller must call the returned cleanup function (typically
// with defer) to return the slice to the pool.
func GetUint64Slice(size int) ([]uint64, func()) {
	ptr, _ := uint64SlicePool.Get().(*[]uint64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]uint64, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { uint64SlicePool.Put(ptr) }
}

// GetUint32Slice retrieves a uint32 slice of the exact given length from
// the pool, with the same contract as GetUint64Slice.
func GetUint32Slice(size int) ([]uint32, func()) {
	ptr, _ := uint32SlicePool.Get().(*[]uint32)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]uint32, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { uint32SlicePool.Put(ptr) }
}

// GetUint8Slice retrieves a uint8 slice of the exact given length from
// the pool, with the same contract as GetUint64Slice.
func GetUint8Slice(size int) ([]uint8, func()) {
	ptr, _ := uint8SlicePool.Get().(*[]uint8)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]uint8, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { uint8SlicePool.Put(ptr) }
}
