package flex

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/format"
)

func (b *Builder) start(kind frameKind) {
	if b.ok() {
		b.frames = append(b.frames, frame{kind: kind, start: len(b.stack)})
	}
}

// StartVector opens a vector whose elements each carry their own type.
func (b *Builder) StartVector() { b.start(frameVector) }

// StartTypedVector opens a vector whose elements share one type, which must be
// Int, UInt, Float, Key or Bool.
func (b *Builder) StartTypedVector() { b.start(frameTypedVector) }

// StartFixedTypedVector opens a typed vector of 2 to 4 Int, UInt or Float
// elements whose length is implied by its type.
func (b *Builder) StartFixedTypedVector() { b.start(frameFixedTypedVector) }

// StartMap opens a map. Children are added as key, value pairs.
func (b *Builder) StartMap() { b.start(frameMap) }

func (b *Builder) pop(want ...frameKind) (frame, error) {
	if len(b.frames) == 0 {
		return frame{}, fmt.Errorf("close without open vector or map: %w", errs.ErrNestingViolation)
	}

	top := b.frames[len(b.frames)-1]
	if !slices.Contains(want, top.kind) {
		return frame{}, fmt.Errorf("close %s as %s: %w", top.kind, want[0], errs.ErrNestingViolation)
	}
	b.frames = b.frames[:len(b.frames)-1]

	return top, nil
}

// EndVector closes the innermost vector.
func (b *Builder) EndVector() error {
	if !b.ok() {
		return b.err
	}

	f, err := b.pop(frameVector, frameTypedVector, frameFixedTypedVector)
	if err != nil {
		b.setErr(err)
		return err
	}

	typed := f.kind != frameVector
	fixed := f.kind == frameFixedTypedVector
	n := len(b.stack) - f.start

	if typed {
		if err := b.checkTyped(f.start, fixed); err != nil {
			b.setErr(err)
			return err
		}
	}

	vec := b.createVector(f.start, n, 1, typed, fixed, nil)
	b.stack = append(b.stack[:f.start], vec)

	return nil
}

func (b *Builder) checkTyped(start int, fixed bool) error {
	elems := b.stack[start:]
	if len(elems) == 0 {
		if fixed {
			return fmt.Errorf("empty fixed typed vector: %w", errs.ErrUnsupportedType)
		}

		return nil
	}

	elemType := elems[0].typ
	for i, e := range elems {
		if e.typ != elemType {
			return fmt.Errorf("typed vector element %d is %s, want %s: %w", i, e.typ, elemType, errs.ErrTypeMismatch)
		}
	}

	fixedLen := 0
	if fixed {
		fixedLen = len(elems)
	}
	if _, err := elemType.ToTypedVector(fixedLen); err != nil {
		return fmt.Errorf("typed vector: %w", err)
	}

	return nil
}

// createVector writes n stack values starting at start, taking every step-th
// entry, and returns the vector value. keys, when set, makes it a map.
func (b *Builder) createVector(start, n, step int, typed, fixed bool, keys *value) value {
	bitWidth := format.MaxWidth(b.cfg.forceMinWidth, format.WidthU(uint64(n))) //nolint:gosec
	prefixElems := 1
	if fixed {
		prefixElems = 0
	}
	if keys != nil {
		bitWidth = format.MaxWidth(bitWidth, keys.elemWidth(b.buf.Len(), 0))
		prefixElems += 2
	}

	vectorType := format.TypeKey
	for i := range n {
		v := b.stack[start+i*step]
		bitWidth = format.MaxWidth(bitWidth, v.elemWidth(b.buf.Len(), i+prefixElems))
		if i == 0 {
			vectorType = v.typ
		}
	}

	byteWidth := b.align(bitWidth)
	if keys != nil {
		b.writeOffset(keys.bits, byteWidth)
		b.writeUint(uint64(keys.minWidth.ByteWidth()), byteWidth)
	}
	if !fixed {
		b.writeUint(uint64(n), byteWidth) //nolint:gosec
	}

	pos := b.buf.Len()
	for i := range n {
		b.writeAny(b.stack[start+i*step], byteWidth)
	}
	if !typed {
		types := b.extend(n)
		for i := range n {
			b.buf.B[types+i] = b.stack[start+i*step].storedPackedType(bitWidth)
		}
	}

	typ := format.TypeVector
	switch {
	case keys != nil:
		typ = format.TypeMap
	case typed:
		fixedLen := 0
		if fixed {
			fixedLen = n
		}
		typ, _ = vectorType.ToTypedVector(fixedLen)
	}

	return value{typ: typ, minWidth: bitWidth, bits: uint64(pos)} //nolint:gosec
}

// keyAt returns the key string written at pos.
func (b *Builder) keyAt(pos uint64) string {
	k := b.buf.B[pos:]
	if end := bytes.IndexByte(k, 0); end >= 0 {
		k = k[:end]
	}

	return string(k)
}

type mapEntry struct {
	key        string
	keyValue   value
	entryValue value
}

// EndMap closes the innermost map. Entries are sorted by key so readers can
// binary search them; duplicate keys are rejected.
func (b *Builder) EndMap() error {
	if !b.ok() {
		return b.err
	}

	f, err := b.pop(frameMap)
	if err != nil {
		b.setErr(err)
		return err
	}

	children := b.stack[f.start:]
	if len(children)%2 != 0 {
		err := fmt.Errorf("map with %d children: %w", len(children), errs.ErrValueWithoutKey)
		b.setErr(err)
		return err
	}

	n := len(children) / 2
	entries := make([]mapEntry, n)
	for i := range entries {
		k := children[2*i]
		if k.typ != format.TypeKey {
			err := fmt.Errorf("map entry %d starts with %s: %w", i, k.typ, errs.ErrValueWithoutKey)
			b.setErr(err)
			return err
		}
		v := children[2*i+1]
		if v.typ == format.TypeKey {
			err := fmt.Errorf("map entry %d has a key as its value: %w", i, errs.ErrValueWithoutKey)
			b.setErr(err)
			return err
		}
		entries[i] = mapEntry{key: b.keyAt(k.bits), keyValue: k, entryValue: v}
	}

	cmpEntries := func(x, y mapEntry) int { return strings.Compare(x.key, y.key) }
	if !slices.IsSortedFunc(entries, cmpEntries) {
		slices.SortStableFunc(entries, cmpEntries)
	}

	keyNames := make([]string, n)
	for i, e := range entries {
		if i > 0 && entries[i-1].key == e.key {
			err := fmt.Errorf("key %q: %w", e.key, errs.ErrDuplicateKey)
			b.setErr(err)
			return err
		}
		children[2*i] = e.keyValue
		children[2*i+1] = e.entryValue
		keyNames[i] = e.key
	}

	keys := b.keyVector(f.start, n, keyNames)
	m := b.createVector(f.start+1, n, 2, false, false, &keys)
	b.stack = append(b.stack[:f.start], m)

	return nil
}

// keyVector writes the typed key vector of a map, reusing an earlier one with
// the same keys when key vector sharing is on.
func (b *Builder) keyVector(start, n int, keyNames []string) value {
	if !b.cfg.shareKeyVectors {
		return b.createVector(start, n, 2, true, false, nil)
	}

	// Keys cannot contain NUL, so joining on it is unambiguous.
	content := strings.Join(keyNames, "\x00")
	if kv, found := b.keyVectors.LookupString(content); found {
		return kv
	}

	kv := b.createVector(start, n, 2, true, false, nil)
	b.keyVectors.StoreString(content, kv)

	return kv
}

// Vector adds an untyped vector filled by fn.
func (b *Builder) Vector(fn func()) error {
	b.StartVector()
	fn()

	return b.EndVector()
}

// TypedVector adds a typed vector filled by fn.
func (b *Builder) TypedVector(fn func()) error {
	b.StartTypedVector()
	fn()

	return b.EndVector()
}

// FixedTypedVector adds a fixed typed vector filled by fn.
func (b *Builder) FixedTypedVector(fn func()) error {
	b.StartFixedTypedVector()
	fn()

	return b.EndVector()
}

// Map adds a map filled by fn, typically with the Map* keyed methods.
func (b *Builder) Map(fn func()) error {
	b.StartMap()
	fn()

	return b.EndMap()
}
