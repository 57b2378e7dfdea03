package flex

import (
	"fmt"
	"sort"
	"strings"
	"unsafe"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/format"
	"github.com/arloliu/flatcodec/region"
)

// Vector is an untyped vector: each element is followed, after the element
// data, by its own packed type byte.
type Vector struct {
	buf       []byte
	pos       int
	byteWidth int
	length    int
}

// TypedVector is a vector whose elements share one type and carry no type bytes.
// Fixed typed vectors use the same view with the length taken from the type.
type TypedVector struct {
	buf       []byte
	pos       int
	byteWidth int
	length    int
	elemType  format.Type
}

// Map pairs a sorted typed vector of keys with an untyped vector of values.
type Map struct {
	keys   TypedVector
	values Vector
}

// payload returns the position of a vector's data and, unless the length is
// implied, the element count stored in front of it.
func (r Reference) payload(withLength bool) (int, int, error) {
	ind, err := r.indirect()
	if err != nil {
		return 0, 0, err
	}
	if !withLength {
		return ind, 0, nil
	}

	n, err := region.ReadUint(r.buf, ind-r.byteWidth, r.byteWidth)
	if err != nil {
		return 0, 0, err
	}
	if n > uint64(r.pos-ind)/uint64(r.byteWidth) { //nolint:gosec
		return 0, 0, fmt.Errorf("vector of %d elements at %d: %w", n, ind, errs.ErrOutOfBounds)
	}

	return ind, int(n), nil //nolint:gosec
}

// AsVector returns an untyped vector, or the values of a map.
// Other types yield ErrTypeMismatch.
func (r Reference) AsVector() (Vector, error) {
	if r.typ != format.TypeVector && r.typ != format.TypeMap {
		return Vector{}, r.mismatch("vector")
	}

	pos, n, err := r.payload(true)
	if err != nil {
		return Vector{}, err
	}
	if err := r.checkSpan(pos, uint64(n)*uint64(r.byteWidth+1)); err != nil { //nolint:gosec
		return Vector{}, err
	}

	return Vector{buf: r.buf, pos: pos, byteWidth: r.byteWidth, length: n}, nil
}

// AsTypedVector returns a typed or fixed typed vector.
// Other types yield ErrTypeMismatch.
func (r Reference) AsTypedVector() (TypedVector, error) {
	switch {
	case r.typ.IsTypedVector():
		pos, n, err := r.payload(true)
		if err != nil {
			return TypedVector{}, err
		}

		return TypedVector{buf: r.buf, pos: pos, byteWidth: r.byteWidth, length: n, elemType: r.typ.TypedVectorElementType()}, nil
	case r.typ.IsFixedTypedVector():
		return r.AsFixedTypedVector()
	default:
		return TypedVector{}, r.mismatch("typed vector")
	}
}

// AsFixedTypedVector returns a fixed typed vector.
// Other types yield ErrTypeMismatch.
func (r Reference) AsFixedTypedVector() (TypedVector, error) {
	if !r.typ.IsFixedTypedVector() {
		return TypedVector{}, r.mismatch("fixed typed vector")
	}

	pos, _, err := r.payload(false)
	if err != nil {
		return TypedVector{}, err
	}

	n := r.typ.FixedTypedVectorElementSize()
	if err := r.checkSpan(pos, uint64(n*r.byteWidth)); err != nil { //nolint:gosec
		return TypedVector{}, err
	}

	return TypedVector{buf: r.buf, pos: pos, byteWidth: r.byteWidth, length: n, elemType: r.typ.FixedTypedVectorElementType()}, nil
}

// AsMap returns a map. Other types yield ErrTypeMismatch.
func (r Reference) AsMap() (Map, error) {
	if !r.IsMap() {
		return Map{}, r.mismatch("map")
	}

	values, err := r.AsVector()
	if err != nil {
		return Map{}, err
	}

	// The values vector is prefixed by [keys offset, keys byte width, length].
	keysSlot := values.pos - 3*values.byteWidth
	keysWidth, err := region.ReadUint(r.buf, keysSlot+values.byteWidth, values.byteWidth)
	if err != nil {
		return Map{}, err
	}

	w, err := format.BitWidthFromByteWidth(int(keysWidth)) //nolint:gosec
	if err != nil {
		return Map{}, fmt.Errorf("map keys: %w", err)
	}

	keysRef := Reference{
		buf:         r.buf,
		pos:         keysSlot,
		parentWidth: values.byteWidth,
		byteWidth:   w.ByteWidth(),
		typ:         format.TypeVectorKey,
	}
	keys, err := keysRef.AsTypedVector()
	if err != nil {
		return Map{}, err
	}
	if keys.length != values.length {
		return Map{}, fmt.Errorf("map with %d keys and %d values: %w", keys.length, values.length, errs.ErrOutOfBounds)
	}

	return Map{keys: keys, values: values}, nil
}

// Len returns the element count.
func (v Vector) Len() int { return v.length }

// At returns element i.
func (v Vector) At(i int) (Reference, error) {
	if i < 0 || i >= v.length {
		return Reference{}, fmt.Errorf("index %d of %d: %w", i, v.length, errs.ErrIndexOutOfRange)
	}

	packed := v.buf[v.pos+v.length*v.byteWidth+i]

	return newReference(v.buf, v.pos+i*v.byteWidth, v.byteWidth, packed), nil
}

// Len returns the element count.
func (v TypedVector) Len() int { return v.length }

// ElementType returns the shared element type.
func (v TypedVector) ElementType() format.Type { return v.elemType }

// At returns element i.
func (v TypedVector) At(i int) (Reference, error) {
	if i < 0 || i >= v.length {
		return Reference{}, fmt.Errorf("index %d of %d: %w", i, v.length, errs.ErrIndexOutOfRange)
	}

	// Strings in the deprecated string vector share the vector's width.
	payloadWidth := 1
	if v.elemType == format.TypeString {
		payloadWidth = v.byteWidth
	}

	return Reference{
		buf:         v.buf,
		pos:         v.pos + i*v.byteWidth,
		parentWidth: v.byteWidth,
		byteWidth:   payloadWidth,
		typ:         v.elemType,
	}, nil
}

// Len returns the entry count.
func (m Map) Len() int { return m.values.length }

// Keys returns the sorted key vector.
func (m Map) Keys() TypedVector { return m.keys }

// Values returns the values in key order.
func (m Map) Values() Vector { return m.values }

// At returns the key and value of entry i in key order.
func (m Map) At(i int) (string, Reference, error) {
	k, err := m.keys.At(i)
	if err != nil {
		return "", Reference{}, err
	}

	key, err := k.GetKey()
	if err != nil {
		return "", Reference{}, err
	}

	v, err := m.values.At(i)

	return key, v, err
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (m Map) Get(key string) (Reference, error) {
	var searchErr error
	i := sort.Search(m.keys.length, func(i int) bool {
		k, err := m.keyAt(i)
		if err != nil {
			searchErr = err
			return true
		}

		return strings.Compare(k, key) >= 0
	})
	if searchErr != nil {
		return Reference{}, searchErr
	}

	if i < m.keys.length {
		if k, _ := m.keyAt(i); k == key {
			return m.values.At(i)
		}
	}

	return Reference{}, fmt.Errorf("key %q: %w", key, errs.ErrKeyNotFound)
}

func (m Map) keyAt(i int) (string, error) {
	ref, _ := m.keys.At(i)
	b, err := ref.keyBytes()
	if err != nil || len(b) == 0 {
		return "", err
	}

	return unsafe.String(&b[0], len(b)), nil
}

// TypedVectorSlice returns the elements of a typed or fixed typed vector as a
// []T. T must match the element kind (signed, unsigned, float or bool) and its
// size must equal the stored width. On little-endian hosts the result is a
// read-only view over the buffer; elsewhere it is a copy.
//
// Returns:
//   - []T: Elements in stored order
//   - error: ErrTypeMismatch for a different element kind, ErrUnsupportedWidth for a different width
func TypedVectorSlice[T region.Scalar](v TypedVector) ([]T, error) {
	var zero T
	var want format.Type
	switch any(zero).(type) {
	case int8, int16, int32, int64:
		want = format.TypeInt
	case uint8, uint16, uint32, uint64:
		want = format.TypeUInt
	case float32, float64:
		want = format.TypeFloat
	case bool:
		want = format.TypeBool
	}

	if v.elemType != want {
		return nil, fmt.Errorf("%T elements requested from %s vector: %w", zero, v.elemType, errs.ErrTypeMismatch)
	}
	if size := region.SizeOf[T](); size != v.byteWidth {
		return nil, fmt.Errorf("%T elements from %d byte wide vector: %w", zero, v.byteWidth, errs.ErrUnsupportedWidth)
	}

	return region.ReadSlice[T](v.buf, v.pos, v.length)
}
