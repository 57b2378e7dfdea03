package pool

import "sync"

// SlicePool pools scratch slices of T.
//
// Builders use it for per-object scratch state (vtable slot positions, value
// stacks) that is rebuilt for every buffer.
type SlicePool[T any] struct {
	pool sync.Pool
}

// NewSlicePool creates an empty slice pool.
func NewSlicePool[T any]() *SlicePool[T] {
	return &SlicePool[T]{
		pool: sync.Pool{
			New: func() any { return &[]T{} },
		},
	}
}

// Get retrieves a slice of length size with zeroed elements.
//
// The caller must call the returned cleanup function once the slice is no
// longer referenced.
//
// Example:
//
//	slots, cleanup := p.Get(16)
//	defer cleanup()
func (p *SlicePool[T]) Get(size int) ([]T, func()) {
	ptr, _ := p.pool.Get().(*[]T)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]T, size)
	} else {
		slice = slice[:size]
		clear(slice)
	}
	*ptr = slice

	return slice, func() { p.Put(ptr, slice) }
}

// Put stores slice back into the pool through ptr. Slices grown by append after
// Get can be returned this way so the larger backing array is reused.
func (p *SlicePool[T]) Put(ptr *[]T, slice []T) {
	*ptr = slice[:0]
	p.pool.Put(ptr)
}
