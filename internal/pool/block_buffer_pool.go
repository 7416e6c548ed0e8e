package pool

import "sync"

// BlockBufferDefaultSize is the initial capacity of pooled block scratch
// buffers: enough for an 8192-row block at worst-case slab widths.
const BlockBufferDefaultSize = 192 * 1024

var blockBufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, BlockBufferDefaultSize)
		return &b
	},
}

// GetBlockBuffer retrieves an empty byte slice from the block scratch
// pool. Return it with PutBlockBuffer.
func GetBlockBuffer() *[]byte {
	ptr, _ := blockBufferPool.Get().(*[]byte)
	*ptr = (*ptr)[:0]

	return ptr
}

// PutBlockBuffer returns a scratch buffer to the pool.
func PutBlockBuffer(b *[]byte) {
	blockBufferPool.Put(b)
}
