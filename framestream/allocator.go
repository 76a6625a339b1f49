package framestream

import (
	"fmt"

	pool "github.com/libp2p/go-buffer-pool"
)

// Allocator hands out the byte buffers owned by a session. Buffers are returned through Free
// exactly once when the session is closed.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte)
}

// PoolAllocator serves buffers from a pool.BufferPool and fails with ErrOutOfMemory once more
// than limit bytes would be outstanding. A limit of zero means unlimited.
// It is not safe for concurrent use, share one per goroutine.
type PoolAllocator struct {
	pool        *pool.BufferPool
	limit       int
	outstanding int
}

func NewPoolAllocator(limit int) *PoolAllocator {
	return &PoolAllocator{pool: pool.GlobalPool, limit: limit}
}

func (a *PoolAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocation of %d bytes: %w", size, ErrInvalidArgument)
	}
	if a.limit > 0 && a.outstanding+size > a.limit {
		return nil, fmt.Errorf("allocation of %d bytes exceeds limit of %d (%d outstanding): %w",
			size, a.limit, a.outstanding, ErrOutOfMemory)
	}
	a.outstanding += size
	return a.pool.Get(size), nil
}

func (a *PoolAllocator) Free(buf []byte) {
	if buf == nil {
		return
	}
	a.outstanding -= len(buf)
	a.pool.Put(buf)
}

// Outstanding returns the number of bytes currently handed out.
func (a *PoolAllocator) Outstanding() int {
	return a.outstanding
}
