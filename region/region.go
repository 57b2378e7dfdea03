// Package region implements the growable byte region the table builder writes into.
//
// A Region fills from its high end toward index 0. Committed bytes always live in
// buf[head:], and every position the builder hands out is measured from the
// tail (Offset = len(buf) - head), so growing the region, which moves the
// committed bytes to the tail of a larger array, never invalidates an offset.
//
// Scalars are stored little-endian. The region never aligns on its own; callers
// pad explicitly before writing.
//
// Note: Region is NOT thread-safe.
package region

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/internal/logging"
	"github.com/arloliu/flatcodec/internal/pool"
)

// MaxSize is the largest region the 32-bit offset encoding can address.
const MaxSize = 1<<31 - 1

// Region is a backward-filling byte arena.
type Region struct {
	buf     []byte
	head    int
	backing *pool.ByteBuffer
}

// New creates a region with the given initial capacity, backed by pooled storage
// when the request fits the pool's buffers.
func New(initialSize int) *Region {
	if initialSize < 0 {
		initialSize = 0
	}

	r := &Region{}
	bb := pool.GetTableBuffer()
	if bb != nil && bb.Cap() >= initialSize {
		r.backing = bb
		r.buf = bb.B[:initialSize]
		clear(r.buf)
	} else {
		if bb != nil {
			pool.PutTableBuffer(bb)
		}
		r.buf = make([]byte, initialSize)
	}
	r.head = len(r.buf)

	return r
}

// Release returns pooled storage. The region must not be used afterwards.
func (r *Region) Release() {
	if r.backing != nil {
		pool.PutTableBuffer(r.backing)
		r.backing = nil
	}
	r.buf = nil
	r.head = 0
}

// Reset discards all committed bytes while keeping the allocation.
func (r *Region) Reset() {
	clear(r.buf[r.head:])
	r.head = len(r.buf)
}

// Cap returns the total size of the underlying array.
func (r *Region) Cap() int {
	return len(r.buf)
}

// Head returns the absolute index of the first committed byte.
func (r *Region) Head() int {
	return r.head
}

// Free returns the number of bytes that can be written before growing.
func (r *Region) Free() int {
	return r.head
}

// Offset returns the number of committed bytes, which is also the tail-relative
// offset of the most recently written byte.
func (r *Region) Offset() uint32 {
	return uint32(len(r.buf) - r.head) //nolint:gosec
}

// Bytes returns the committed bytes. The slice aliases the region until the next growth.
func (r *Region) Bytes() []byte {
	return r.buf[r.head:]
}

// Raw returns the whole underlying array, including the unwritten front.
func (r *Region) Raw() []byte {
	return r.buf
}

// PosOf converts a tail-relative offset into an absolute index of the current array.
func (r *Region) PosOf(off uint32) int {
	return len(r.buf) - int(off)
}

// EnsureSpace grows the region until at least n bytes are free in front of head.
func (r *Region) EnsureSpace(n int) error {
	for r.head < n {
		if err := r.grow(); err != nil {
			return err
		}
	}

	return nil
}

// grow doubles the array and shifts the committed bytes to the new tail.
func (r *Region) grow() error {
	oldSize := len(r.buf)
	if oldSize >= MaxSize {
		return fmt.Errorf("grow region of %d bytes: %w", oldSize, errs.ErrBufferTooLarge)
	}

	newSize := oldSize * 2
	if newSize == 0 {
		newSize = 1
	}
	if newSize > MaxSize {
		newSize = MaxSize
	}

	newBuf := make([]byte, newSize)
	copy(newBuf[newSize-oldSize:], r.buf)
	r.head += newSize - oldSize
	r.buf = newBuf

	if r.backing != nil {
		pool.PutTableBuffer(r.backing)
		r.backing = nil
	}

	logging.Logger().Debug("region grown",
		zap.Int("old_size", oldSize),
		zap.Int("new_size", newSize),
		zap.Uint32("used", r.Offset()))

	return nil
}

// Pad writes n zero bytes in front of head. Space must already be ensured.
func (r *Region) Pad(n int) {
	r.head -= n
	clear(r.buf[r.head : r.head+n])
}

// Alloc moves head down by n bytes and returns the absolute index of the new
// head. Space must already be ensured.
func (r *Region) Alloc(n int) int {
	r.head -= n
	return r.head
}

// Prep ensures space for additional bytes followed by an element of size bytes,
// padding so the element ends up aligned to size relative to the tail.
// It returns the number of padding bytes written.
func (r *Region) Prep(size, additional int) (int, error) {
	if size <= 0 {
		size = 1
	}
	alignSize := (^(int(r.Offset()) + additional) + 1) & (size - 1)

	if err := r.EnsureSpace(alignSize + size + additional); err != nil {
		return 0, err
	}
	r.Pad(alignSize)

	return alignSize, nil
}

// ReadAt decodes a T at an absolute position of the current array.
func ReadAt[T Scalar](r *Region, pos int) (T, error) {
	return Read[T](r.buf, pos)
}

// WriteAt encodes v at an absolute position of the current array.
func WriteAt[T Scalar](r *Region, pos int, v T) error {
	return Write(r.buf, pos, v)
}

// Place writes v in front of head without alignment or growth checks.
func Place[T Scalar](r *Region, v T) {
	size := SizeOf[T]()
	r.head -= size
	Put(r.buf[r.head:], v)
}

// Prepend aligns for T, grows if needed and writes v in front of head.
func Prepend[T Scalar](r *Region, v T) error {
	if _, err := r.Prep(SizeOf[T](), 0); err != nil {
		return err
	}
	Place(r, v)

	return nil
}

// PlaceBytes copies b in front of head without growth checks.
func (r *Region) PlaceBytes(b []byte) {
	r.head -= len(b)
	copy(r.buf[r.head:], b)
}
