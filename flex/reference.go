package flex

import (
	"bytes"
	"fmt"
	"math"
	"unsafe"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/format"
	"github.com/arloliu/flatcodec/region"
)

// Reference locates one value inside a finished buffer together with its type.
//
// A Reference is a small value type; copying it is cheap and it never
// modifies the buffer, so references into the same buffer may be used from
// any number of goroutines.
type Reference struct {
	buf []byte
	pos int
	// parentWidth is the byte width of the slot the value sits in.
	parentWidth int
	// byteWidth is the byte width of the payload an offset type points to.
	byteWidth int
	typ       format.Type
}

func newReference(buf []byte, pos, parentWidth int, packed byte) Reference {
	t, w := format.UnpackType(packed)
	return Reference{buf: buf, pos: pos, parentWidth: parentWidth, byteWidth: w.ByteWidth(), typ: t}
}

// GetRoot returns the root value of a finished buffer.
//
// Parameters:
//   - buf: Bytes produced by Builder.Finish
//
// Returns:
//   - Reference: Root value
//   - error: ErrBufferTooSmall, ErrUnsupportedWidth or ErrUnsupportedType for malformed trailers
func GetRoot(buf []byte) (Reference, error) {
	if len(buf) < 3 {
		return Reference{}, fmt.Errorf("value buffer of %d bytes: %w", len(buf), errs.ErrBufferTooSmall)
	}

	byteWidth := int(buf[len(buf)-1])
	if _, err := format.BitWidthFromByteWidth(byteWidth); err != nil {
		return Reference{}, fmt.Errorf("root: %w", err)
	}

	pos := len(buf) - 2 - byteWidth
	if pos < 0 {
		return Reference{}, fmt.Errorf("root width %d in %d bytes: %w", byteWidth, len(buf), errs.ErrBufferTooSmall)
	}

	ref := newReference(buf, pos, byteWidth, buf[len(buf)-2])
	if !ref.typ.Valid() {
		return Reference{}, fmt.Errorf("root type %s: %w", ref.typ, errs.ErrUnsupportedType)
	}

	return ref, nil
}

// Type returns the stored type.
func (r Reference) Type() format.Type { return r.typ }

// BitWidth returns the width the value is stored with: the slot width for
// inline values and the payload width for everything else.
func (r Reference) BitWidth() format.BitWidth {
	byteWidth := r.byteWidth
	if r.typ.IsInline() {
		byteWidth = r.parentWidth
	}
	w, _ := format.BitWidthFromByteWidth(byteWidth)

	return w
}

func (r Reference) IsNull() bool { return r.typ == format.TypeNull }
func (r Reference) IsBool() bool { return r.typ == format.TypeBool }
func (r Reference) IsInt() bool { return r.typ == format.TypeInt || r.typ == format.TypeIndirectInt }
func (r Reference) IsUInt() bool { return r.typ == format.TypeUInt || r.typ == format.TypeIndirectUInt }
func (r Reference) IsFloat() bool { return r.typ == format.TypeFloat || r.typ == format.TypeIndirectFloat }
func (r Reference) IsNumeric() bool { return r.IsInt() || r.IsUInt() || r.IsFloat() }
func (r Reference) IsString() bool { return r.typ == format.TypeString }
func (r Reference) IsKey() bool { return r.typ == format.TypeKey }
func (r Reference) IsBlob() bool { return r.typ == format.TypeBlob }
func (r Reference) IsMap() bool { return r.typ == format.TypeMap }

// IsVector reports whether the value is an untyped, typed or fixed typed vector.
func (r Reference) IsVector() bool { return r.typ.IsVector() }

func (r Reference) IsTypedVector() bool { return r.typ.IsTypedVector() }
func (r Reference) IsFixedTypedVector() bool { return r.typ.IsFixedTypedVector() }

// indirect follows the offset stored in the value's slot.
func (r Reference) indirect() (int, error) {
	off, err := region.ReadUint(r.buf, r.pos, r.parentWidth)
	if err != nil {
		return 0, err
	}
	if off > uint64(r.pos) { //nolint:gosec
		return 0, fmt.Errorf("offset %d at %d: %w", off, r.pos, errs.ErrOutOfBounds)
	}

	return r.pos - int(off), nil //nolint:gosec
}

// checkSpan rejects a payload of size bytes at ind unless it ends at or before
// the slot referring to it, so traversal always moves towards the buffer start.
func (r Reference) checkSpan(ind int, size uint64) error {
	if size > uint64(r.pos-ind) { //nolint:gosec
		return fmt.Errorf("payload of %d bytes at %d overlaps slot %d: %w", size, ind, r.pos, errs.ErrOutOfBounds)
	}

	return nil
}

// indirectScalar resolves the payload of an indirect number.
func (r Reference) indirectScalar() (int, error) {
	ind, err := r.indirect()
	if err != nil {
		return 0, err
	}

	return ind, r.checkSpan(ind, uint64(r.byteWidth)) //nolint:gosec
}

func (r Reference) readInt() (int64, error) {
	if r.typ == format.TypeInt {
		return region.ReadInt(r.buf, r.pos, r.parentWidth)
	}

	ind, err := r.indirectScalar()
	if err != nil {
		return 0, err
	}

	return region.ReadInt(r.buf, ind, r.byteWidth)
}

func (r Reference) readUint() (uint64, error) {
	if r.typ == format.TypeUInt || r.typ == format.TypeBool {
		return region.ReadUint(r.buf, r.pos, r.parentWidth)
	}

	ind, err := r.indirectScalar()
	if err != nil {
		return 0, err
	}

	return region.ReadUint(r.buf, ind, r.byteWidth)
}

func (r Reference) readFloat() (float64, error) {
	if r.typ == format.TypeFloat {
		return region.ReadFloat(r.buf, r.pos, r.parentWidth)
	}

	ind, err := r.indirectScalar()
	if err != nil {
		return 0, err
	}

	return region.ReadFloat(r.buf, ind, r.byteWidth)
}

func (r Reference) mismatch(want string) error {
	return fmt.Errorf("%s requested from %s: %w", want, r.typ, errs.ErrTypeMismatch)
}

// GetInt64 returns a signed integer value.
// Any other type yields ErrTypeMismatch.
func (r Reference) GetInt64() (int64, error) {
	if !r.IsInt() {
		return 0, r.mismatch("int")
	}

	return r.readInt()
}

// GetUInt64 returns an unsigned integer value.
// Any other type yields ErrTypeMismatch.
func (r Reference) GetUInt64() (uint64, error) {
	if !r.IsUInt() {
		return 0, r.mismatch("uint")
	}

	return r.readUint()
}

// GetFloat64 returns a float value. A float slot narrower than 4 bytes yields
// ErrUnsupportedWidth; any other type yields ErrTypeMismatch.
func (r Reference) GetFloat64() (float64, error) {
	if !r.IsFloat() {
		return 0, r.mismatch("float")
	}

	return r.readFloat()
}

// GetBool returns a boolean value.
func (r Reference) GetBool() (bool, error) {
	if !r.IsBool() {
		return false, r.mismatch("bool")
	}

	v, err := r.readUint()

	return v != 0, err
}

// GetString returns a string value without copying. The result aliases the buffer.
func (r Reference) GetString() (string, error) {
	if !r.IsString() {
		return "", r.mismatch("string")
	}

	b, err := r.sized()
	if err != nil || len(b) == 0 {
		return "", err
	}

	return unsafe.String(&b[0], len(b)), nil
}

// GetKey returns a map key without copying. The result aliases the buffer.
func (r Reference) GetKey() (string, error) {
	if !r.IsKey() {
		return "", r.mismatch("key")
	}

	b, err := r.keyBytes()
	if err != nil || len(b) == 0 {
		return "", err
	}

	return unsafe.String(&b[0], len(b)), nil
}

// GetBlob returns the bytes of a blob without copying.
func (r Reference) GetBlob() ([]byte, error) {
	if !r.IsBlob() {
		return nil, r.mismatch("blob")
	}

	return r.sized()
}

// sized returns the payload of a length-prefixed string or blob.
func (r Reference) sized() ([]byte, error) {
	ind, err := r.indirect()
	if err != nil {
		return nil, err
	}

	n, err := region.ReadUint(r.buf, ind-r.byteWidth, r.byteWidth)
	if err != nil {
		return nil, err
	}
	if err := r.checkSpan(ind, n); err != nil {
		return nil, err
	}

	return r.buf[ind : ind+int(n)], nil //nolint:gosec
}

func (r Reference) keyBytes() ([]byte, error) {
	ind, err := r.indirect()
	if err != nil {
		return nil, err
	}

	end := bytes.IndexByte(r.buf[ind:r.pos], 0)
	if end < 0 {
		return nil, fmt.Errorf("unterminated key at %d: %w", ind, errs.ErrOutOfBounds)
	}

	return r.buf[ind : ind+end], nil
}

// AsInt64 returns the value as a signed integer. Unsigned and float values are
// converted with Go conversion rules, booleans become 0 or 1, and every other
// type, or a malformed value, yields 0.
func (r Reference) AsInt64() int64 {
	switch {
	case r.IsInt():
		v, _ := r.readInt()
		return v
	case r.IsUInt(), r.IsBool():
		v, _ := r.readUint()
		return int64(v) //nolint:gosec
	case r.IsFloat():
		v, _ := r.readFloat()
		return int64(v)
	default:
		return 0
	}
}

// AsUInt64 returns the value as an unsigned integer, converting like AsInt64.
func (r Reference) AsUInt64() uint64 {
	switch {
	case r.IsUInt(), r.IsBool():
		v, _ := r.readUint()
		return v
	case r.IsInt():
		v, _ := r.readInt()
		return uint64(v) //nolint:gosec
	case r.IsFloat():
		v, _ := r.readFloat()
		return uint64(v)
	default:
		return 0
	}
}

// AsFloat64 returns the value as a float, converting integers and booleans.
// Other types yield 0.
func (r Reference) AsFloat64() float64 {
	switch {
	case r.IsFloat():
		v, _ := r.readFloat()
		return v
	case r.IsInt():
		v, _ := r.readInt()
		return float64(v)
	case r.IsUInt(), r.IsBool():
		v, _ := r.readUint()
		return float64(v)
	default:
		return 0
	}
}

// AsInt32 and the other narrowed accessors truncate the widened value.
func (r Reference) AsInt32() int32 {
	return int32(r.AsInt64()) //nolint:gosec
}

func (r Reference) AsInt16() int16 {
	return int16(r.AsInt64()) //nolint:gosec
}

func (r Reference) AsInt8() int8 {
	return int8(r.AsInt64()) //nolint:gosec
}

func (r Reference) AsUInt32() uint32 {
	return uint32(r.AsUInt64()) //nolint:gosec
}

func (r Reference) AsUInt16() uint16 {
	return uint16(r.AsUInt64()) //nolint:gosec
}

func (r Reference) AsUInt8() uint8 {
	return uint8(r.AsUInt64()) //nolint:gosec
}

func (r Reference) AsFloat32() float32 {
	return float32(r.AsFloat64())
}

// AsBool returns the value as a boolean: numbers are true when non-zero,
// other types are false.
func (r Reference) AsBool() bool {
	switch {
	case r.IsBool(), r.IsUInt():
		v, _ := r.readUint()
		return v != 0
	case r.IsInt():
		v, _ := r.readInt()
		return v != 0
	case r.IsFloat():
		v, _ := r.readFloat()
		return v != 0 && !math.IsNaN(v)
	default:
		return false
	}
}

// AsString returns a string or key value, or "" for any other type.
// The result aliases the buffer.
func (r Reference) AsString() string {
	var s string
	if r.IsKey() {
		s, _ = r.GetKey()
	} else if r.IsString() {
		s, _ = r.GetString()
	}

	return s
}

// AsKey returns a key value, or "" for any other type.
func (r Reference) AsKey() string {
	s, _ := r.GetKey()
	return s
}

// AsBlob returns the bytes of a blob or string, or nil for any other type.
func (r Reference) AsBlob() []byte {
	if !r.IsBlob() && !r.IsString() {
		return nil
	}

	b, _ := r.sized()

	return b
}
