package region

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/arloliu/flatcodec/endian"
	"github.com/arloliu/flatcodec/errs"
)

// Scalar is the set of fixed-width values the wire formats store.
type Scalar interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

var wire = endian.Wire()

// SizeOf returns the stored byte size of T, which is also its alignment.
func SizeOf[T Scalar]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

// Read decodes a little-endian T stored at pos.
func Read[T Scalar](buf []byte, pos int) (T, error) {
	size := SizeOf[T]()
	if pos < 0 || pos > len(buf)-size {
		var zero T
		return zero, fmt.Errorf("read %d bytes at %d of %d: %w", size, pos, len(buf), errs.ErrOutOfBounds)
	}

	return Get[T](buf[pos:]), nil
}

// Write encodes v little-endian at pos.
func Write[T Scalar](buf []byte, pos int, v T) error {
	size := SizeOf[T]()
	if pos < 0 || pos > len(buf)-size {
		return fmt.Errorf("write %d bytes at %d of %d: %w", size, pos, len(buf), errs.ErrOutOfBounds)
	}
	Put(buf[pos:], v)

	return nil
}

// Get decodes a T from the start of b without bounds reporting.
// It panics like a slice index when b is too short.
func Get[T Scalar](b []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *bool:
		*p = b[0] != 0
	case *int8:
		*p = int8(b[0])
	case *uint8:
		*p = b[0]
	case *int16:
		*p = int16(wire.Uint16(b)) //nolint:gosec
	case *uint16:
		*p = wire.Uint16(b)
	case *int32:
		*p = int32(wire.Uint32(b)) //nolint:gosec
	case *uint32:
		*p = wire.Uint32(b)
	case *int64:
		*p = int64(wire.Uint64(b)) //nolint:gosec
	case *uint64:
		*p = wire.Uint64(b)
	case *float32:
		*p = math.Float32frombits(wire.Uint32(b))
	case *float64:
		*p = math.Float64frombits(wire.Uint64(b))
	}

	return v
}

// Put encodes v at the start of b without bounds reporting.
func Put[T Scalar](b []byte, v T) {
	switch x := any(v).(type) {
	case bool:
		if x {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case int8:
		b[0] = byte(x)
	case uint8:
		b[0] = x
	case int16:
		wire.PutUint16(b, uint16(x)) //nolint:gosec
	case uint16:
		wire.PutUint16(b, x)
	case int32:
		wire.PutUint32(b, uint32(x)) //nolint:gosec
	case uint32:
		wire.PutUint32(b, x)
	case int64:
		wire.PutUint64(b, uint64(x)) //nolint:gosec
	case uint64:
		wire.PutUint64(b, x)
	case float32:
		wire.PutUint32(b, math.Float32bits(x))
	case float64:
		wire.PutUint64(b, math.Float64bits(x))
	}
}

// ReadUint reads an unsigned integer of byteWidth 1, 2, 4 or 8 bytes.
func ReadUint(buf []byte, pos int, byteWidth int) (uint64, error) {
	switch byteWidth {
	case 1:
		v, err := Read[uint8](buf, pos)
		return uint64(v), err
	case 2:
		v, err := Read[uint16](buf, pos)
		return uint64(v), err
	case 4:
		v, err := Read[uint32](buf, pos)
		return uint64(v), err
	case 8:
		return Read[uint64](buf, pos)
	default:
		return 0, fmt.Errorf("byte width %d: %w", byteWidth, errs.ErrUnsupportedWidth)
	}
}

// ReadInt reads a sign-extended integer of byteWidth 1, 2, 4 or 8 bytes.
func ReadInt(buf []byte, pos int, byteWidth int) (int64, error) {
	switch byteWidth {
	case 1:
		v, err := Read[int8](buf, pos)
		return int64(v), err
	case 2:
		v, err := Read[int16](buf, pos)
		return int64(v), err
	case 4:
		v, err := Read[int32](buf, pos)
		return int64(v), err
	case 8:
		return Read[int64](buf, pos)
	default:
		return 0, fmt.Errorf("byte width %d: %w", byteWidth, errs.ErrUnsupportedWidth)
	}
}

// ReadFloat reads a float of byteWidth 4 or 8 bytes.
func ReadFloat(buf []byte, pos int, byteWidth int) (float64, error) {
	switch byteWidth {
	case 4:
		v, err := Read[float32](buf, pos)
		return float64(v), err
	case 8:
		return Read[float64](buf, pos)
	default:
		return 0, fmt.Errorf("float byte width %d: %w", byteWidth, errs.ErrUnsupportedWidth)
	}
}

// PutUint writes the low byteWidth bytes of v at the start of b.
func PutUint(b []byte, v uint64, byteWidth int) {
	switch byteWidth {
	case 1:
		b[0] = byte(v)
	case 2:
		wire.PutUint16(b, uint16(v)) //nolint:gosec
	case 4:
		wire.PutUint32(b, uint32(v)) //nolint:gosec
	default:
		wire.PutUint64(b, v)
	}
}

// ReadSlice returns n consecutive T values starting at pos.
//
// On little-endian hosts an aligned range is returned as a view over buf
// without copying; callers must treat it as read-only. Elsewhere the values
// are decoded into a new slice.
func ReadSlice[T Scalar](buf []byte, pos int, n int) ([]T, error) {
	size := SizeOf[T]()
	if n < 0 || pos < 0 || n > (len(buf)-pos)/size {
		return nil, fmt.Errorf("read %d elements of %d bytes at %d of %d: %w", n, size, pos, len(buf), errs.ErrOutOfBounds)
	}
	if n == 0 {
		return []T{}, nil
	}

	var zero T
	_, isBool := any(zero).(bool)
	data := buf[pos : pos+n*size]
	if !isBool && endian.IsNativeLittleEndian() && uintptr(unsafe.Pointer(&data[0]))%uintptr(size) == 0 {
		return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n), nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = Get[T](data[i*size:])
	}

	return out, nil
}
