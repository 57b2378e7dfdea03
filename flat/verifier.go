package flat

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/internal/logging"
	"github.com/arloliu/flatcodec/internal/options"
	"github.com/arloliu/flatcodec/region"
	"github.com/arloliu/flatcodec/section"
)

// VerifyTableFunc checks the fields of one table type.
type VerifyTableFunc func(v *Verifier, t Table) error

// VerifyUnionFunc checks a union member given its discriminant and the
// absolute position of the value field.
type VerifyUnionFunc func(v *Verifier, unionType uint8, valuePos UOffset) error

// Verifier checks that an untrusted buffer can be read without any access
// leaving its bounds. Schema knowledge comes from the VerifyTableFunc
// callbacks, which call the Verify* methods for each field.
//
// Note: Verifier is NOT thread-safe; use one per buffer.
type Verifier struct {
	buf    []byte
	cfg    *VerifierConfig
	depth  int
	tables int
}

// NewVerifier creates a verifier for buf.
func NewVerifier(buf []byte, opts ...VerifierOption) (*Verifier, error) {
	if len(buf) > section.MaxBufferSize {
		return nil, fmt.Errorf("buffer of %d bytes: %w", len(buf), errs.ErrBufferTooLarge)
	}

	cfg := &VerifierConfig{
		maxDepth:       DefaultMaxDepth,
		maxTables:      DefaultMaxTables,
		alignmentCheck: true,
		stringEndCheck: true,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Verifier{buf: buf, cfg: cfg}, nil
}

// Tables returns the number of tables visited so far.
func (v *Verifier) Tables() int {
	return v.tables
}

func (v *Verifier) fail(pos uint64, reason string, cause error) error {
	logging.Logger().Debug("buffer verification failed",
		zap.Uint64("pos", pos),
		zap.String("reason", reason),
		zap.Error(cause))

	return fmt.Errorf("%w: %s at %d: %w", errs.ErrVerification, reason, pos, cause)
}

func (v *Verifier) checkRange(pos uint64, size uint64, what string) error {
	if pos+size > uint64(len(v.buf)) {
		return v.fail(pos, what, errs.ErrOutOfBounds)
	}

	return nil
}

func (v *Verifier) checkAlignment(pos uint64, align uint64, what string) error {
	if v.cfg.alignmentCheck && align > 1 && pos%align != 0 {
		return v.fail(pos, what, errs.ErrInvalidAlignment)
	}

	return nil
}

func (v *Verifier) checkScalar(pos uint64, size uint64, what string) error {
	if err := v.checkAlignment(pos, size, what); err != nil {
		return err
	}

	return v.checkRange(pos, size, what)
}

// checkIndirect verifies the uoffset at pos and returns its target.
func (v *Verifier) checkIndirect(pos uint64) (UOffset, error) {
	if err := v.checkScalar(pos, section.SizeUOffset, "uoffset"); err != nil {
		return 0, err
	}

	rel := region.Get[UOffset](v.buf[pos:])
	if rel == 0 {
		return 0, v.fail(pos, "zero uoffset", errs.ErrOutOfBounds)
	}

	target := pos + uint64(rel)
	if err := v.checkRange(target, 1, "uoffset target"); err != nil {
		return 0, err
	}

	return UOffset(target), nil
}

// VerifyBuffer checks the buffer prefix and then the root table with root.
//
// Parameters:
//   - id: Expected file identifier, or empty to skip the check
//   - sizePrefixed: Whether the buffer starts with a size prefix
//   - root: Callback verifying the root table's fields
func (v *Verifier) VerifyBuffer(id string, sizePrefixed bool, root VerifyTableFunc) error {
	p, err := section.ParsePrefix(v.buf, sizePrefixed, id != "")
	if err != nil {
		return v.fail(0, "buffer prefix", err)
	}

	if sizePrefixed && uint64(p.Size) != uint64(len(v.buf)-section.SizeSizePrefix) {
		return v.fail(0, fmt.Sprintf("size prefix %d of %d bytes", p.Size, len(v.buf)-section.SizeSizePrefix), errs.ErrBufferTooSmall)
	}

	if id != "" {
		if err := section.ValidateIdentifier(v.buf, id, sizePrefixed); err != nil {
			return v.fail(0, "file identifier", err)
		}
	}

	rootField := uint64(0)
	if sizePrefixed {
		rootField = section.SizeSizePrefix
	}
	pos, err := v.checkIndirect(rootField)
	if err != nil {
		return err
	}

	return v.VerifyTable(pos, root)
}

// VerifyTable checks the table at pos and its vtable, then runs fn on it.
func (v *Verifier) VerifyTable(pos UOffset, fn VerifyTableFunc) error {
	v.depth++
	v.tables++
	defer func() { v.depth-- }()

	if v.depth > v.cfg.maxDepth {
		return v.fail(uint64(pos), "table nesting", errs.ErrMaxDepth)
	}
	if v.tables > v.cfg.maxTables {
		return v.fail(uint64(pos), "table count", errs.ErrMaxTables)
	}

	if err := v.checkScalar(uint64(pos), section.SizeSOffset, "table soffset"); err != nil {
		return err
	}

	soff := region.Get[SOffset](v.buf[pos:])
	vt := int64(pos) - int64(soff)
	if vt < 0 {
		return v.fail(uint64(pos), "vtable before buffer start", errs.ErrOutOfBounds)
	}
	if err := v.checkScalar(uint64(vt), section.SizeVOffset, "vtable length"); err != nil {
		return err
	}

	vtLen := region.Get[VOffset](v.buf[vt:])
	if vtLen&1 != 0 || vtLen < section.VtableMetadataFields*section.SizeVOffset {
		return v.fail(uint64(vt), fmt.Sprintf("vtable length %d", vtLen), errs.ErrOutOfBounds)
	}
	if err := v.checkRange(uint64(vt), uint64(vtLen), "vtable"); err != nil {
		return err
	}

	tableLen := region.Get[VOffset](v.buf[vt+section.SizeVOffset:])
	if err := v.checkRange(uint64(pos), uint64(tableLen), "table"); err != nil {
		return err
	}

	if fn == nil {
		return nil
	}

	return fn(v, Table{Buf: v.buf, Pos: pos})
}

// VerifyField checks that a scalar or struct field of size bytes with the
// given alignment lies inside the table.
func (v *Verifier) VerifyField(t Table, slot int, size, align int, required bool) error {
	pos, ok, err := v.field(t, slot, required)
	if err != nil || !ok {
		return err
	}
	if err := v.checkAlignment(uint64(pos), uint64(align), "field"); err != nil { //nolint:gosec
		return err
	}

	return v.checkRange(uint64(pos), uint64(size), "field") //nolint:gosec
}

func (v *Verifier) field(t Table, slot int, required bool) (UOffset, bool, error) {
	pos, ok, err := t.FieldPos(slot)
	if err != nil {
		return 0, false, v.fail(uint64(t.Pos), fmt.Sprintf("slot %d", slot), err)
	}
	if !ok && required {
		return 0, false, v.fail(uint64(t.Pos), fmt.Sprintf("slot %d", slot), errs.ErrRequiredFieldMissing)
	}

	return pos, ok, nil
}

// offsetField verifies the uoffset in slot and returns its target.
func (v *Verifier) offsetField(t Table, slot int, required bool) (UOffset, bool, error) {
	pos, ok, err := v.field(t, slot, required)
	if err != nil || !ok {
		return 0, false, err
	}

	target, err := v.checkIndirect(uint64(pos))
	if err != nil {
		return 0, false, err
	}

	return target, true, nil
}

// verifyVectorAt checks the vector whose length field is at pos and returns
// the absolute end of its elements.
func (v *Verifier) verifyVectorAt(pos UOffset, elemSize int) (VectorView, error) {
	if err := v.checkScalar(uint64(pos), section.SizeUOffset, "vector length"); err != nil {
		return VectorView{}, err
	}

	n := region.Get[uint32](v.buf[pos:])
	start := uint64(pos) + section.SizeUOffset
	if err := v.checkRange(start, uint64(n)*uint64(elemSize), "vector elements"); err != nil { //nolint:gosec
		return VectorView{}, err
	}

	return VectorView{Buf: v.buf, Start: UOffset(start), Len: int(n)}, nil
}

// VerifyString checks the string whose length field is at pos.
func (v *Verifier) VerifyString(pos UOffset) error {
	vec, err := v.verifyVectorAt(pos, 1)
	if err != nil {
		return err
	}

	end := uint64(vec.Start) + uint64(vec.Len) //nolint:gosec
	if err := v.checkRange(end, 1, "string terminator"); err != nil {
		return err
	}
	if v.cfg.stringEndCheck && v.buf[end] != 0 {
		return v.fail(end, "string terminator", errs.ErrOutOfBounds)
	}

	return nil
}

// VerifyStringField checks the string referenced by slot.
func (v *Verifier) VerifyStringField(t Table, slot int, required bool) error {
	pos, ok, err := v.offsetField(t, slot, required)
	if err != nil || !ok {
		return err
	}

	return v.VerifyString(pos)
}

// VerifyVectorField checks a vector of elemSize-byte elements referenced by slot.
func (v *Verifier) VerifyVectorField(t Table, slot int, elemSize int, required bool) error {
	pos, ok, err := v.offsetField(t, slot, required)
	if err != nil || !ok {
		return err
	}

	_, err = v.verifyVectorAt(pos, elemSize)

	return err
}

// VerifyVectorOfStrings checks a vector of strings referenced by slot.
func (v *Verifier) VerifyVectorOfStrings(t Table, slot int, required bool) error {
	return v.verifyOffsets(t, slot, required, func(pos UOffset) error {
		return v.VerifyString(pos)
	})
}

// VerifyVectorOfTables checks a vector of tables referenced by slot, running
// fn on every element.
func (v *Verifier) VerifyVectorOfTables(t Table, slot int, required bool, fn VerifyTableFunc) error {
	return v.verifyOffsets(t, slot, required, func(pos UOffset) error {
		return v.VerifyTable(pos, fn)
	})
}

func (v *Verifier) verifyOffsets(t Table, slot int, required bool, each func(UOffset) error) error {
	pos, ok, err := v.offsetField(t, slot, required)
	if err != nil || !ok {
		return err
	}

	vec, err := v.verifyVectorAt(pos, section.SizeUOffset)
	if err != nil {
		return err
	}

	for i := range vec.Len {
		target, err := v.checkIndirect(uint64(vec.Start) + uint64(i*section.SizeUOffset)) //nolint:gosec
		if err != nil {
			return err
		}
		if err := each(target); err != nil {
			return err
		}
	}

	return nil
}

// VerifyTableField checks the child table referenced by slot.
func (v *Verifier) VerifyTableField(t Table, slot int, required bool, fn VerifyTableFunc) error {
	pos, ok, err := v.offsetField(t, slot, required)
	if err != nil || !ok {
		return err
	}

	return v.VerifyTable(pos, fn)
}

// VerifyUnion checks the union stored in typeSlot and valueSlot. A zero
// discriminant means no member and is only accepted when not required.
func (v *Verifier) VerifyUnion(t Table, typeSlot, valueSlot int, required bool, fn VerifyUnionFunc) error {
	if err := v.VerifyField(t, typeSlot, 1, 1, required); err != nil {
		return err
	}

	typ, err := GetSlot[uint8](t, typeSlot, 0)
	if err != nil {
		return v.fail(uint64(t.Pos), "union type", err)
	}
	if typ == 0 {
		if required {
			return v.fail(uint64(t.Pos), "union type", errs.ErrRequiredFieldMissing)
		}

		return nil
	}

	pos, ok, err := v.offsetField(t, valueSlot, true)
	if err != nil || !ok {
		return err
	}

	return fn(v, typ, pos)
}

// VerifyNestedBuffer checks a buffer stored as a byte vector in slot,
// counting its tables and depth against this verifier's limits.
func (v *Verifier) VerifyNestedBuffer(t Table, slot int, id string, required bool, fn VerifyTableFunc) error {
	pos, ok, err := v.offsetField(t, slot, required)
	if err != nil || !ok {
		return err
	}

	vec, err := v.verifyVectorAt(pos, 1)
	if err != nil {
		return err
	}

	nested := &Verifier{
		buf:    v.buf[vec.Start : vec.Start+UOffset(vec.Len)], //nolint:gosec
		cfg:    v.cfg,
		depth:  v.depth,
		tables: v.tables,
	}
	err = nested.VerifyBuffer(id, false, fn)
	v.tables = nested.tables

	return err
}
