package flat

import (
	"fmt"
	"unsafe"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/region"
	"github.com/arloliu/flatcodec/section"
)

// Table is a read-only view of a table inside a finished buffer.
// Pos is the absolute position of the table's soffset field.
type Table struct {
	Buf []byte
	Pos UOffset
}

// vtable returns the absolute position and byte length of the table's vtable.
func (t Table) vtable() (int, VOffset, error) {
	soff, err := region.Read[SOffset](t.Buf, int(t.Pos))
	if err != nil {
		return 0, 0, err
	}

	vt := int64(t.Pos) - int64(soff)
	if vt < 0 || vt >= int64(len(t.Buf)) {
		return 0, 0, fmt.Errorf("vtable of table %d at %d: %w", t.Pos, vt, errs.ErrOutOfBounds)
	}

	vtLen, err := region.Read[VOffset](t.Buf, int(vt))
	if err != nil {
		return 0, 0, err
	}

	return int(vt), vtLen, nil
}

// Offset returns the vtable entry at byte offset vtableOffset, or 0 when the
// vtable is shorter, meaning the field is absent.
func (t Table) Offset(vtableOffset VOffset) (VOffset, error) {
	vt, vtLen, err := t.vtable()
	if err != nil {
		return 0, err
	}
	if vtableOffset >= vtLen {
		return 0, nil
	}

	return region.Read[VOffset](t.Buf, vt+int(vtableOffset))
}

// FieldOffset returns the offset of slot's field from the table start, or 0
// when the field is absent and the caller should use the default.
func (t Table) FieldOffset(slot int) (VOffset, error) {
	if slot < 0 {
		return 0, fmt.Errorf("slot %d: %w", slot, errs.ErrOutOfBounds)
	}

	return t.Offset(SlotVOffset(slot))
}

// FieldPos returns the absolute position of slot's field.
func (t Table) FieldPos(slot int) (UOffset, bool, error) {
	fo, err := t.FieldOffset(slot)
	if err != nil || fo == 0 {
		return 0, false, err
	}

	return t.Pos + UOffset(fo), true, nil
}

// SlotCount returns the number of slots the table's vtable describes.
func (t Table) SlotCount() (int, error) {
	_, vtLen, err := t.vtable()
	if err != nil {
		return 0, err
	}
	if int(vtLen) < section.VtableMetadataFields*section.SizeVOffset {
		return 0, fmt.Errorf("vtable length %d: %w", vtLen, errs.ErrOutOfBounds)
	}

	return (int(vtLen) - section.VtableMetadataFields*section.SizeVOffset) / section.SizeVOffset, nil
}

// Indirect follows the uoffset stored at off.
func (t Table) Indirect(off UOffset) (UOffset, error) {
	return indirect(t.Buf, off)
}

func indirect(buf []byte, off UOffset) (UOffset, error) {
	rel, err := region.Read[UOffset](buf, int(off))
	if err != nil {
		return 0, err
	}

	target := uint64(off) + uint64(rel)
	if target >= uint64(len(buf)) {
		return 0, fmt.Errorf("offset at %d points to %d: %w", off, target, errs.ErrOutOfBounds)
	}

	return UOffset(target), nil
}

// vectorAt resolves the reference at off and returns the element start and count.
func vectorAt(buf []byte, off UOffset) (UOffset, int, error) {
	pos, err := indirect(buf, off)
	if err != nil {
		return 0, 0, err
	}

	n, err := region.Read[uint32](buf, int(pos))
	if err != nil {
		return 0, 0, err
	}

	start := pos + section.SizeUOffset
	if uint64(start)+uint64(n) > uint64(len(buf)) {
		return 0, 0, fmt.Errorf("vector of %d at %d: %w", n, start, errs.ErrOutOfBounds)
	}

	return start, int(n), nil
}

// ByteVector returns the bytes of the vector referenced at off without copying.
func (t Table) ByteVector(off UOffset) ([]byte, error) {
	start, n, err := vectorAt(t.Buf, off)
	if err != nil {
		return nil, err
	}

	return t.Buf[start : start+UOffset(n)], nil //nolint:gosec
}

// String returns the string referenced at off. The result aliases Buf.
func (t Table) String(off UOffset) (string, error) {
	b, err := t.ByteVector(off)
	if err != nil || len(b) == 0 {
		return "", err
	}

	return unsafe.String(&b[0], len(b)), nil
}

// VectorLen returns the element count of the vector referenced at off.
func (t Table) VectorLen(off UOffset) (int, error) {
	_, n, err := vectorAt(t.Buf, off)
	return n, err
}

// Vector returns the vector referenced at off.
func (t Table) Vector(off UOffset) (VectorView, error) {
	start, n, err := vectorAt(t.Buf, off)
	if err != nil {
		return VectorView{}, err
	}

	return VectorView{Buf: t.Buf, Start: start, Len: n}, nil
}

// Union returns the table referenced at off.
func (t Table) Union(off UOffset) (Table, error) {
	pos, err := indirect(t.Buf, off)
	if err != nil {
		return Table{}, err
	}

	return Table{Buf: t.Buf, Pos: pos}, nil
}

// UnionString decodes a string union member referenced at off. String members
// carry no vtable.
func (t Table) UnionString(off UOffset) (string, error) {
	return t.String(off)
}

// GetSlot reads the scalar in slot, or def when the field is absent.
func GetSlot[T region.Scalar](t Table, slot int, def T) (T, error) {
	pos, ok, err := t.FieldPos(slot)
	if err != nil || !ok {
		return def, err
	}

	return region.Read[T](t.Buf, int(pos))
}

// Get*Slot read a scalar field, returning def when it is absent.

func (t Table) GetBoolSlot(slot int, def bool) (bool, error) { return GetSlot(t, slot, def) }
func (t Table) GetInt8Slot(slot int, def int8) (int8, error) { return GetSlot(t, slot, def) }
func (t Table) GetUint8Slot(slot int, def uint8) (uint8, error) { return GetSlot(t, slot, def) }
func (t Table) GetInt16Slot(slot int, def int16) (int16, error) { return GetSlot(t, slot, def) }
func (t Table) GetUint16Slot(slot int, def uint16) (uint16, error) { return GetSlot(t, slot, def) }
func (t Table) GetInt32Slot(slot int, def int32) (int32, error) { return GetSlot(t, slot, def) }
func (t Table) GetUint32Slot(slot int, def uint32) (uint32, error) { return GetSlot(t, slot, def) }
func (t Table) GetInt64Slot(slot int, def int64) (int64, error) { return GetSlot(t, slot, def) }
func (t Table) GetUint64Slot(slot int, def uint64) (uint64, error) { return GetSlot(t, slot, def) }
func (t Table) GetFloat32Slot(slot int, def float32) (float32, error) { return GetSlot(t, slot, def) }
func (t Table) GetFloat64Slot(slot int, def float64) (float64, error) { return GetSlot(t, slot, def) }

// GetOffsetSlot returns the absolute position of the object referenced by slot.
func (t Table) GetOffsetSlot(slot int) (UOffset, bool, error) {
	pos, ok, err := t.FieldPos(slot)
	if err != nil || !ok {
		return 0, false, err
	}

	target, err := t.Indirect(pos)
	if err != nil {
		return 0, false, err
	}

	return target, true, nil
}

// GetTableSlot returns the child table referenced by slot.
func (t Table) GetTableSlot(slot int) (Table, bool, error) {
	pos, ok, err := t.GetOffsetSlot(slot)
	if err != nil || !ok {
		return Table{}, false, err
	}

	return Table{Buf: t.Buf, Pos: pos}, true, nil
}

// GetStructSlot returns the absolute position of an inline struct in slot.
func (t Table) GetStructSlot(slot int) (UOffset, bool, error) {
	return t.FieldPos(slot)
}

// GetStringSlot returns the string referenced by slot.
func (t Table) GetStringSlot(slot int) (string, bool, error) {
	pos, ok, err := t.FieldPos(slot)
	if err != nil || !ok {
		return "", false, err
	}

	s, err := t.String(pos)
	if err != nil {
		return "", false, err
	}

	return s, true, nil
}

// GetVectorSlot returns the vector referenced by slot.
func (t Table) GetVectorSlot(slot int) (VectorView, bool, error) {
	pos, ok, err := t.FieldPos(slot)
	if err != nil || !ok {
		return VectorView{}, false, err
	}

	v, err := t.Vector(pos)
	if err != nil {
		return VectorView{}, false, err
	}

	return v, true, nil
}

// UnionMember is a decoded union field.
type UnionMember struct {
	// Type is the stored discriminant; 0 means no member.
	Type     uint8
	Table    Table
	String   string
	IsString bool
}

// UnionValue decodes the union stored in the sibling fields typeSlot and
// valueSlot. Discriminants listed in stringTypes decode as strings; all others
// as tables.
func (t Table) UnionValue(typeSlot, valueSlot int, stringTypes ...uint8) (UnionMember, bool, error) {
	typ, err := GetSlot[uint8](t, typeSlot, 0)
	if err != nil || typ == 0 {
		return UnionMember{}, false, err
	}

	pos, ok, err := t.FieldPos(valueSlot)
	if err != nil || !ok {
		return UnionMember{}, false, err
	}

	m := UnionMember{Type: typ}
	for _, st := range stringTypes {
		if st == typ {
			m.IsString = true
			break
		}
	}

	if m.IsString {
		m.String, err = t.UnionString(pos)
	} else {
		m.Table, err = t.Union(pos)
	}
	if err != nil {
		return UnionMember{}, false, err
	}

	return m, true, nil
}

// VectorView locates the elements of a stored vector.
type VectorView struct {
	Buf   []byte
	Start UOffset
	Len   int
}

func (v VectorView) elementPos(i, size int) (int, error) {
	if i < 0 || i >= v.Len {
		return 0, fmt.Errorf("element %d of %d: %w", i, v.Len, errs.ErrIndexOutOfRange)
	}

	return int(v.Start) + i*size, nil
}

// Table returns element i of a vector of tables.
func (v VectorView) Table(i int) (Table, error) {
	pos, err := v.elementPos(i, section.SizeUOffset)
	if err != nil {
		return Table{}, err
	}

	target, err := indirect(v.Buf, UOffset(pos)) //nolint:gosec
	if err != nil {
		return Table{}, err
	}

	return Table{Buf: v.Buf, Pos: target}, nil
}

// String returns element i of a vector of strings.
func (v VectorView) String(i int) (string, error) {
	pos, err := v.elementPos(i, section.SizeUOffset)
	if err != nil {
		return "", err
	}

	return Table{Buf: v.Buf}.String(UOffset(pos)) //nolint:gosec
}

// StructPos returns the absolute position of element i of a vector of
// structs of size bytes each.
func (v VectorView) StructPos(i, size int) (UOffset, error) {
	pos, err := v.elementPos(i, size)
	return UOffset(pos), err //nolint:gosec
}

// VectorAt returns scalar element i.
func VectorAt[T region.Scalar](v VectorView, i int) (T, error) {
	pos, err := v.elementPos(i, region.SizeOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}

	return region.Read[T](v.Buf, pos)
}

// ScalarVector returns all elements of a scalar vector. On little-endian hosts
// the result is a read-only view over the buffer; elsewhere it is a copy.
func ScalarVector[T region.Scalar](v VectorView) ([]T, error) {
	return region.ReadSlice[T](v.Buf, int(v.Start), v.Len)
}
