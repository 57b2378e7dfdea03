package flex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/format"
)

func rootOf(t *testing.T, add func(b *Builder)) Reference {
	t.Helper()

	b := newBuilder(t)
	add(b)
	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)

	return root
}

func TestGetRoot_Malformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, errs.ErrBufferTooSmall},
		{"two bytes", []byte{0x04, 1}, errs.ErrBufferTooSmall},
		{"bad width", []byte{1, 0x04, 3}, errs.ErrUnsupportedWidth},
		{"width beyond buffer", []byte{1, 0x04, 8}, errs.ErrBufferTooSmall},
		{"unknown type", []byte{1, format.PackType(format.Type(40), format.Width8), 1}, errs.ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetRoot(tt.buf)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReference_StrictAccessors(t *testing.T) {
	i := rootOf(t, func(b *Builder) { b.Int(-5) })
	v, err := i.GetInt64()
	require.NoError(t, err)
	require.Equal(t, int64(-5), v)

	_, err = i.GetUInt64()
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
	_, err = i.GetString()
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
	_, err = i.GetFloat64()
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
	_, err = i.AsMap()
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
	_, err = i.AsVector()
	require.ErrorIs(t, err, errs.ErrTypeMismatch)

	s := rootOf(t, func(b *Builder) { b.String("Orc") })
	str, err := s.GetString()
	require.NoError(t, err)
	require.Equal(t, "Orc", str)
	_, err = s.GetKey()
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
	_, err = s.GetBlob()
	require.ErrorIs(t, err, errs.ErrTypeMismatch)

	bl := rootOf(t, func(b *Builder) { b.Bool(true) })
	bv, err := bl.GetBool()
	require.NoError(t, err)
	require.True(t, bv)
}

func TestReference_FloatInNarrowSlot(t *testing.T) {
	// A float slot narrower than 4 bytes cannot be produced by the builder.
	buf := []byte{0x01, format.PackType(format.TypeFloat, format.Width8), 1}
	root, err := GetRoot(buf)
	require.NoError(t, err)

	_, err = root.GetFloat64()
	require.ErrorIs(t, err, errs.ErrUnsupportedWidth)
	require.Zero(t, root.AsFloat64())
}

func TestReference_Coercion(t *testing.T) {
	negative := rootOf(t, func(b *Builder) { b.Int(-5) })
	require.Equal(t, uint64(math.MaxUint64-4), negative.AsUInt64())
	require.InDelta(t, -5.0, negative.AsFloat64(), 0)
	require.True(t, negative.AsBool())

	big := rootOf(t, func(b *Builder) { b.Int(300) })
	require.Equal(t, uint8(44), big.AsUInt8())
	require.Equal(t, int8(44), big.AsInt8())
	require.Equal(t, int16(300), big.AsInt16())
	require.Equal(t, int32(300), big.AsInt32())

	f := rootOf(t, func(b *Builder) { b.Float64(3.75) })
	require.Equal(t, int64(3), f.AsInt64())
	require.Equal(t, uint32(3), f.AsUInt32())
	require.InDelta(t, float32(3.75), f.AsFloat32(), 0)

	u := rootOf(t, func(b *Builder) { b.UInt(7) })
	require.InDelta(t, 7.0, u.AsFloat64(), 0)
	require.Equal(t, uint16(7), u.AsUInt16())

	bl := rootOf(t, func(b *Builder) { b.Bool(true) })
	require.Equal(t, int64(1), bl.AsInt64())
	require.Equal(t, uint64(1), bl.AsUInt64())

	zero := rootOf(t, func(b *Builder) { b.Float64(0) })
	require.False(t, zero.AsBool())

	s := rootOf(t, func(b *Builder) { b.String("42") })
	require.Zero(t, s.AsInt64())
	require.Zero(t, s.AsUInt64())
	require.Zero(t, s.AsFloat64())
	require.False(t, s.AsBool())
	require.Equal(t, []byte("42"), s.AsBlob())
	require.Empty(t, s.AsKey())

	null := rootOf(t, func(b *Builder) { b.Null() })
	require.Zero(t, null.AsInt64())
	require.Empty(t, null.AsString())
	require.Nil(t, null.AsBlob())

	vec := rootOf(t, func(b *Builder) {
		_ = b.Vector(func() { b.Int(1) })
	})
	require.Zero(t, vec.AsInt64())
	require.Empty(t, vec.AsString())
}

func TestReference_Predicates(t *testing.T) {
	root := rootOf(t, func(b *Builder) {
		b.Add([]any{nil, true, -1, uint(1), 1.5, "s", []byte{1}, []int{1}, map[string]any{"k": 1}})
	})
	vec, err := root.AsVector()
	require.NoError(t, err)

	tests := []struct {
		check func(Reference) bool
		typ   format.Type
	}{
		{Reference.IsNull, format.TypeNull},
		{Reference.IsBool, format.TypeBool},
		{Reference.IsInt, format.TypeInt},
		{Reference.IsUInt, format.TypeUInt},
		{Reference.IsFloat, format.TypeFloat},
		{Reference.IsString, format.TypeString},
		{Reference.IsBlob, format.TypeBlob},
		{Reference.IsTypedVector, format.TypeVectorInt},
		{Reference.IsMap, format.TypeMap},
	}

	for i, tt := range tests {
		elem, err := vec.At(i)
		require.NoError(t, err)
		require.Equal(t, tt.typ, elem.Type())
		require.True(t, tt.check(elem), "element %d", i)
	}

	require.True(t, root.IsVector())
	require.False(t, root.IsTypedVector())
}

func TestVector_AtOutOfRange(t *testing.T) {
	root := rootOf(t, func(b *Builder) {
		_ = b.Vector(func() { b.Int(1) })
	})
	vec, err := root.AsVector()
	require.NoError(t, err)

	_, err = vec.At(1)
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	_, err = vec.At(-1)
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)

	typed := rootOf(t, func(b *Builder) {
		_ = b.TypedVector(func() { b.Int(1) })
	})
	tv, err := typed.AsTypedVector()
	require.NoError(t, err)
	_, err = tv.At(1)
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
}

func TestVector_CorruptLength(t *testing.T) {
	buf := []byte{200, 1, 0x04, 2, 0x28, 1}
	root, err := GetRoot(buf)
	require.NoError(t, err)

	_, err = root.AsVector()
	require.ErrorIs(t, err, errs.ErrOutOfBounds)
}

func TestMap_Get(t *testing.T) {
	root := rootOf(t, func(b *Builder) {
		_ = b.Map(func() {
			b.MapInt("hp", 300)
			b.MapString("name", "Orc")
			b.MapNull("empty")
			b.MapVector("pos", func() {
				b.Float32(1)
				b.Float32(2)
			})
			b.MapTypedVector("ids", func() {
				b.UInt(7)
				b.UInt(8)
			})
			b.MapMap("stats", func() {
				b.MapFloat64("speed", 2.5)
				b.MapBool("flying", false)
			})
		})
	})
	m, err := root.AsMap()
	require.NoError(t, err)
	require.Equal(t, 6, m.Len())
	require.Equal(t, 6, m.Keys().Len())
	require.Equal(t, 6, m.Values().Len())

	hp, err := m.Get("hp")
	require.NoError(t, err)
	require.Equal(t, int64(300), hp.AsInt64())

	name, err := m.Get("name")
	require.NoError(t, err)
	require.Equal(t, "Orc", name.AsString())

	empty, err := m.Get("empty")
	require.NoError(t, err)
	require.True(t, empty.IsNull())

	ids, err := m.Get("ids")
	require.NoError(t, err)
	tv, err := ids.AsTypedVector()
	require.NoError(t, err)
	require.Equal(t, format.TypeUInt, tv.ElementType())
	second, err := tv.At(1)
	require.NoError(t, err)
	require.Equal(t, uint64(8), second.AsUInt64())

	stats, err := m.Get("stats")
	require.NoError(t, err)
	sm, err := stats.AsMap()
	require.NoError(t, err)
	speed, err := sm.Get("speed")
	require.NoError(t, err)
	require.InDelta(t, 2.5, speed.AsFloat64(), 0)

	for _, missing := range []string{"", "a", "hq", "zzz", "name "} {
		_, err := m.Get(missing)
		require.ErrorIs(t, err, errs.ErrKeyNotFound, "key %q", missing)
	}

	key, _, err := m.At(0)
	require.NoError(t, err)
	require.Equal(t, "empty", key)
	_, _, err = m.At(6)
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
}

func TestMap_GetEmpty(t *testing.T) {
	root := rootOf(t, func(b *Builder) {
		_ = b.Map(func() {})
	})
	m, err := root.AsMap()
	require.NoError(t, err)
	require.Equal(t, 0, m.Len())

	_, err = m.Get("a")
	require.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestReference_String(t *testing.T) {
	root := rootOf(t, func(b *Builder) {
		_ = b.Map(func() {
			b.MapInt("a", 1)
			b.MapVector("b", func() {
				b.Bool(true)
				b.String("x\"y")
				b.Null()
				b.Float64(0.5)
			})
			b.MapBlob("c", []byte{'h', 0})
			b.MapUInt("d", 2)
		})
	})

	require.Equal(t, `{"a": 1, "b": [true, "x\"y", null, 0.5], "c": "h\x00", "d": 2}`, root.String())
}

func TestReference_Interface(t *testing.T) {
	root := rootOf(t, func(b *Builder) {
		_ = b.Vector(func() {
			b.IndirectInt(-2)
			b.IndirectUInt(3)
			b.IndirectFloat32(1.25)
			_ = b.FixedTypedVector(func() {
				b.Int(1)
				b.Int(2)
			})
		})
	})

	got, err := root.Interface()
	require.NoError(t, err)
	require.Equal(t, []any{int64(-2), uint64(3), 1.25, []any{int64(1), int64(2)}}, got)
}

func TestVector_ElementPointingAtItself(t *testing.T) {
	// Root vector of one element whose Vector/W8 slot holds offset 0.
	buf := []byte{1, 0, 0x28, 2, 0x28, 1}
	root, err := GetRoot(buf)
	require.NoError(t, err)

	vec, err := root.AsVector()
	require.NoError(t, err)
	elem, err := vec.At(0)
	require.NoError(t, err)
	require.Equal(t, format.TypeVector, elem.Type())

	_, err = elem.AsVector()
	require.ErrorIs(t, err, errs.ErrOutOfBounds)

	_, err = root.Interface()
	require.ErrorIs(t, err, errs.ErrOutOfBounds)
	require.Contains(t, root.String(), "<error: ")
}

func TestReference_EmptyRootContainers(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  any
	}{
		{"vector", func(b *Builder) { _ = b.Vector(func() {}) }, []any{}},
		{"typed vector", func(b *Builder) { _ = b.TypedVector(func() {}) }, []any{}},
		{"map", func(b *Builder) { _ = b.Map(func() {}) }, map[string]any{}},
		{"blob", func(b *Builder) { b.Blob(nil) }, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t)
			tt.build(b)
			buf := finish(t, b)

			// The payload is empty and ends right where the root slot starts.
			require.Equal(t, byte(0), buf[len(buf)-3])

			root, err := GetRoot(buf)
			require.NoError(t, err)
			got, err := root.Interface()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReference_PayloadOverlapsSlot(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		// String of 2 bytes whose length runs over its own root slot.
		{"string", []byte{'h', 2, 'h', 1, 0x14, 1}},
		// Indirect int stored in the root slot itself.
		{"indirect int", []byte{0, 0, 0x18, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := GetRoot(tt.buf)
			require.NoError(t, err)

			_, err = root.Interface()
			require.ErrorIs(t, err, errs.ErrOutOfBounds)
		})
	}
}

func nestedVectors(t *testing.T, depth int) Reference {
	t.Helper()

	return rootOf(t, func(b *Builder) {
		for range depth {
			b.StartVector()
		}
		b.Int(7)
		for range depth {
			require.NoError(t, b.EndVector())
		}
	})
}

func TestReference_NestingDepth(t *testing.T) {
	root := nestedVectors(t, MaxNestingDepth)
	_, err := root.Interface()
	require.NoError(t, err)
	require.NotContains(t, root.String(), "<error: ")

	root = nestedVectors(t, MaxNestingDepth+1)
	_, err = root.Interface()
	require.ErrorIs(t, err, errs.ErrMaxDepth)
	require.Contains(t, root.String(), errs.ErrMaxDepth.Error())

	deepMap := rootOf(t, func(b *Builder) {
		for range MaxNestingDepth + 1 {
			b.StartMap()
			b.Key("k")
		}
		b.Null()
		for range MaxNestingDepth + 1 {
			require.NoError(t, b.EndMap())
		}
	})
	_, err = deepMap.Interface()
	require.ErrorIs(t, err, errs.ErrMaxDepth)
	require.Contains(t, deepMap.String(), errs.ErrMaxDepth.Error())
}

func TestTypedVectorSlice(t *testing.T) {
	ints := rootOf(t, func(b *Builder) { b.Add([]int{1, -300, 7}) })
	tv, err := ints.AsTypedVector()
	require.NoError(t, err)

	got, err := TypedVectorSlice[int16](tv)
	require.NoError(t, err)
	require.Equal(t, []int16{1, -300, 7}, got)

	_, err = TypedVectorSlice[int8](tv)
	require.ErrorIs(t, err, errs.ErrUnsupportedWidth)
	_, err = TypedVectorSlice[uint16](tv)
	require.ErrorIs(t, err, errs.ErrTypeMismatch)

	floats := rootOf(t, func(b *Builder) { b.Add([]float32{0.5, 2}) })
	tv, err = floats.AsTypedVector()
	require.NoError(t, err)
	fs, err := TypedVectorSlice[float32](tv)
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 2}, fs)

	bools := rootOf(t, func(b *Builder) { b.Add([]bool{true, false}) })
	tv, err = bools.AsTypedVector()
	require.NoError(t, err)
	bs, err := TypedVectorSlice[bool](tv)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, bs)

	fixed := rootOf(t, func(b *Builder) {
		_ = b.FixedTypedVector(func() {
			b.UInt(1)
			b.UInt(2)
		})
	})
	tv, err = fixed.AsTypedVector()
	require.NoError(t, err)
	us, err := TypedVectorSlice[uint8](tv)
	require.NoError(t, err)
	require.Equal(t, []uint8{1, 2}, us)

	m, err := rootOf(t, func(b *Builder) {
		_ = b.Map(func() { b.MapInt("a", 1) })
	}).AsMap()
	require.NoError(t, err)
	_, err = TypedVectorSlice[uint8](m.Keys())
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
}
