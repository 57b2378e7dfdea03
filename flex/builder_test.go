package flex

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/format"
)

func newBuilder(t *testing.T, opts ...BuilderOption) *Builder {
	t.Helper()

	b, err := NewBuilder(opts...)
	require.NoError(t, err)
	t.Cleanup(b.Release)

	return b
}

func finish(t *testing.T, b *Builder) []byte {
	t.Helper()

	buf, err := b.Finish()
	require.NoError(t, err)

	return buf
}

func TestBuilder_ScalarLayout(t *testing.T) {
	tests := []struct {
		name string
		add  func(b *Builder)
		want []byte
	}{
		{"null", func(b *Builder) { b.Null() }, []byte{0x00, 0x00, 1}},
		{"bool", func(b *Builder) { b.Bool(true) }, []byte{0x01, 0x68, 1}},
		{"int -1", func(b *Builder) { b.Int(-1) }, []byte{0xff, 0x04, 1}},
		{"uint 255", func(b *Builder) { b.UInt(255) }, []byte{0xff, 0x08, 1}},
		{"uint 256", func(b *Builder) { b.UInt(256) }, []byte{0x00, 0x01, 0x09, 2}},
		{"float 0.5", func(b *Builder) { b.Float64(0.5) }, []byte{0, 0, 0, 0x3f, 0x0e, 4}},
		{"string", func(b *Builder) { b.String("hi") }, []byte{2, 'h', 'i', 0, 3, 0x14, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t)
			tt.add(b)
			require.Equal(t, tt.want, finish(t, b))
		})
	}
}

func TestBuilder_VectorLayout(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.Vector(func() {
		b.Int(1)
		b.Int(2)
		b.Int(3)
	}))

	want := []byte{
		3,       // length
		1, 2, 3, // elements
		0x04, 0x04, 0x04, // packed types: Int, W8
		6,    // root offset back to the elements
		0x28, // Vector, W8
		1,
	}
	require.Equal(t, want, finish(t, b))
}

func TestBuilder_TypedVectorLayout(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.TypedVector(func() {
		b.Int(1)
		b.Int(2)
		b.Int(3)
	}))

	require.Equal(t, []byte{3, 1, 2, 3, 3, 0x2c, 1}, finish(t, b))
}

func TestBuilder_MapLayout(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.Map(func() {
		b.MapInt("a", 1)
	}))

	want := []byte{
		'a', 0, // key
		1, 3, // key vector: length, offset to "a"
		1, 1, 1, // keys offset, keys byte width, length
		1,    // value
		0x04, // Int, W8
		2,    // root offset
		0x24, // Map, W8
		1,
	}
	require.Equal(t, want, finish(t, b))
}

func TestBuilder_WidthMinimality(t *testing.T) {
	tests := []struct {
		v    uint64
		want format.BitWidth
	}{
		{0, format.Width8},
		{255, format.Width8},
		{256, format.Width16},
		{math.MaxUint16, format.Width16},
		{math.MaxUint16 + 1, format.Width32},
		{math.MaxUint32 + 1, format.Width64},
	}

	for _, tt := range tests {
		b := newBuilder(t)
		b.UInt(tt.v)
		buf := finish(t, b)
		require.Len(t, buf, tt.want.ByteWidth()+2)

		root, err := GetRoot(buf)
		require.NoError(t, err)
		require.Equal(t, tt.want, root.BitWidth(), "value %d", tt.v)
		require.Equal(t, tt.v, root.AsUInt64())
	}
}

func TestBuilder_VectorWidensToWidestElement(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.Vector(func() {
		b.Int(1)
		b.Int(-40000)
	}))

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	vec, err := root.AsVector()
	require.NoError(t, err)
	require.Equal(t, 4, vec.byteWidth)

	first, err := vec.At(0)
	require.NoError(t, err)
	require.Equal(t, format.Width32, first.BitWidth())
	require.Equal(t, int64(1), first.AsInt64())
}

func TestBuilder_OffsetWidth(t *testing.T) {
	b := newBuilder(t)
	blob := make([]byte, 300)
	blob[299] = 0xaa
	require.NoError(t, b.Vector(func() {
		b.Blob(blob)
	}))

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	vec, err := root.AsVector()
	require.NoError(t, err)
	require.Equal(t, 2, vec.byteWidth)

	elem, err := vec.At(0)
	require.NoError(t, err)
	got, err := elem.GetBlob()
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestBuilder_IndirectKeepsVectorNarrow(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.Vector(func() {
		b.UInt(1)
		b.IndirectUInt(math.MaxUint64)
		b.IndirectFloat64(0.1)
	}))

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	vec, err := root.AsVector()
	require.NoError(t, err)
	require.Equal(t, 1, vec.byteWidth)

	big, err := vec.At(1)
	require.NoError(t, err)
	require.Equal(t, format.TypeIndirectUInt, big.Type())
	require.Equal(t, uint64(math.MaxUint64), big.AsUInt64())

	f, err := vec.At(2)
	require.NoError(t, err)
	require.InDelta(t, 0.1, f.AsFloat64(), 0)
}

func TestBuilder_ShareStrings(t *testing.T) {
	build := func(share bool) (Vector, []byte) {
		b := newBuilder(t, WithShareStrings(share))
		require.NoError(t, b.Vector(func() {
			b.String("orc")
			b.String("orc")
		}))
		buf := finish(t, b)

		root, err := GetRoot(buf)
		require.NoError(t, err)
		vec, err := root.AsVector()
		require.NoError(t, err)

		return vec, buf
	}

	payloads := func(vec Vector) (int, int) {
		first, err := vec.At(0)
		require.NoError(t, err)
		second, err := vec.At(1)
		require.NoError(t, err)

		p1, err := first.indirect()
		require.NoError(t, err)
		p2, err := second.indirect()
		require.NoError(t, err)

		return p1, p2
	}

	shared, sharedBuf := build(true)
	p1, p2 := payloads(shared)
	require.Equal(t, p1, p2)

	distinct, distinctBuf := build(false)
	p1, p2 = payloads(distinct)
	require.NotEqual(t, p1, p2)
	require.Less(t, len(sharedBuf), len(distinctBuf))

	for _, vec := range []Vector{shared, distinct} {
		for i := range vec.Len() {
			s, err := vec.At(i)
			require.NoError(t, err)
			require.Equal(t, "orc", s.AsString())
		}
	}
}

func TestBuilder_ShareKeysAndKeyVectors(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.Vector(func() {
		b.Map(func() {
			b.MapInt("hp", 1)
			b.MapString("name", "a")
		})
		b.Map(func() {
			b.MapString("name", "b")
			b.MapInt("hp", 2)
		})
	}))
	require.Equal(t, 2, b.keys.Len())
	require.Equal(t, 1, b.keyVectors.Len())

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	vec, err := root.AsVector()
	require.NoError(t, err)

	var maps []Map
	for i := range vec.Len() {
		ref, err := vec.At(i)
		require.NoError(t, err)
		m, err := ref.AsMap()
		require.NoError(t, err)
		maps = append(maps, m)
	}
	require.Equal(t, maps[0].keys.pos, maps[1].keys.pos)

	for i, want := range []int64{1, 2} {
		hp, err := maps[i].Get("hp")
		require.NoError(t, err)
		require.Equal(t, want, hp.AsInt64())
	}
}

func TestBuilder_NoKeySharing(t *testing.T) {
	b := newBuilder(t, WithShareKeys(false), WithShareKeyVectors(false))
	require.NoError(t, b.Vector(func() {
		b.Map(func() { b.MapInt("hp", 1) })
		b.Map(func() { b.MapInt("hp", 2) })
	}))
	require.Equal(t, 0, b.keys.Len())
	require.Equal(t, 0, b.keyVectors.Len())

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	vec, err := root.AsVector()
	require.NoError(t, err)

	first, _ := vec.At(0)
	second, _ := vec.At(1)
	m1, err := first.AsMap()
	require.NoError(t, err)
	m2, err := second.AsMap()
	require.NoError(t, err)
	require.NotEqual(t, m1.keys.pos, m2.keys.pos)
}

func TestBuilder_MapSortsKeys(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.Map(func() {
		b.MapString("c", "third")
		b.MapString("a", "first")
		b.MapString("b", "second")
	}))

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	m, err := root.AsMap()
	require.NoError(t, err)

	for i, want := range []string{"a", "b", "c"} {
		k, _, err := m.At(i)
		require.NoError(t, err)
		require.Equal(t, want, k)
	}

	v, err := m.Get("b")
	require.NoError(t, err)
	require.Equal(t, "second", v.AsString())
}

func TestBuilder_FixedTypedVector(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.FixedTypedVector(func() {
		b.Float32(1)
		b.Float32(2)
		b.Float32(3)
	}))

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	require.Equal(t, format.TypeVectorFloat3, root.Type())

	vec, err := root.AsFixedTypedVector()
	require.NoError(t, err)
	require.Equal(t, 3, vec.Len())
	require.Equal(t, format.TypeFloat, vec.ElementType())

	for i, want := range []float64{1, 2, 3} {
		e, err := vec.At(i)
		require.NoError(t, err)
		require.InDelta(t, want, e.AsFloat64(), 0)
	}
}

func TestBuilder_EmptyVectors(t *testing.T) {
	b := newBuilder(t)
	require.NoError(t, b.Vector(func() {
		b.StartTypedVector()
		require.NoError(t, b.EndVector())
		b.StartVector()
		require.NoError(t, b.EndVector())
		b.StartMap()
		require.NoError(t, b.EndMap())
	}))

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	got, err := root.Interface()
	require.NoError(t, err)
	require.Equal(t, []any{[]any{}, []any{}, map[string]any{}}, got)

	first, err := root.AsVector()
	require.NoError(t, err)
	typed, err := first.At(0)
	require.NoError(t, err)
	require.Equal(t, format.TypeVectorKey, typed.Type())
}

func TestBuilder_ForceMinWidth(t *testing.T) {
	b := newBuilder(t, WithForceMinWidth(format.Width32))
	require.NoError(t, b.Vector(func() {
		b.Int(1)
	}))

	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	vec, err := root.AsVector()
	require.NoError(t, err)
	require.Equal(t, 4, vec.byteWidth)
}

func TestBuilder_InvalidOptions(t *testing.T) {
	_, err := NewBuilder(WithInitialSize(-1))
	require.Error(t, err)

	_, err = NewBuilder(WithForceMinWidth(format.BitWidth(7)))
	require.Error(t, err)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  error
	}{
		{"empty", func(b *Builder) {}, errs.ErrStackNotSingle},
		{"two roots", func(b *Builder) { b.Int(1); b.Int(2) }, errs.ErrStackNotSingle},
		{"unclosed", func(b *Builder) { b.StartVector(); b.Int(1) }, errs.ErrNestingViolation},
		{"end without start", func(b *Builder) { _ = b.EndVector() }, errs.ErrNestingViolation},
		{"end map as vector", func(b *Builder) { b.StartMap(); _ = b.EndVector() }, errs.ErrNestingViolation},
		{"end vector as map", func(b *Builder) { b.StartVector(); _ = b.EndMap() }, errs.ErrNestingViolation},
		{"key outside map", func(b *Builder) { b.Key("a"); b.Int(1) }, errs.ErrKeyWithoutMap},
		{"key in vector", func(b *Builder) { b.StartVector(); b.Key("a") }, errs.ErrKeyWithoutMap},
		{"key with NUL", func(b *Builder) { b.StartMap(); b.Key("a\x00b") }, errs.ErrUnsupportedType},
		{"value without key", func(b *Builder) { b.StartMap(); b.Int(1); _ = b.EndMap() }, errs.ErrValueWithoutKey},
		{"value before key", func(b *Builder) {
			b.StartMap()
			b.Int(1)
			b.Key("a")
			_ = b.EndMap()
		}, errs.ErrValueWithoutKey},
		{"key as value", func(b *Builder) {
			b.StartMap()
			b.Key("a")
			b.Key("b")
			_ = b.EndMap()
		}, errs.ErrValueWithoutKey},
		{"duplicate key", func(b *Builder) {
			b.StartMap()
			b.MapInt("a", 1)
			b.MapInt("a", 2)
			_ = b.EndMap()
		}, errs.ErrDuplicateKey},
		{"mixed typed vector", func(b *Builder) {
			b.StartTypedVector()
			b.Int(1)
			b.UInt(2)
			_ = b.EndVector()
		}, errs.ErrTypeMismatch},
		{"typed vector of strings", func(b *Builder) {
			b.StartTypedVector()
			b.String("a")
			_ = b.EndVector()
		}, errs.ErrUnsupportedType},
		{"fixed vector too long", func(b *Builder) {
			b.StartFixedTypedVector()
			for i := range 5 {
				b.Int(int64(i))
			}
			_ = b.EndVector()
		}, errs.ErrUnsupportedType},
		{"fixed vector of bools", func(b *Builder) {
			b.StartFixedTypedVector()
			b.Bool(true)
			b.Bool(false)
			_ = b.EndVector()
		}, errs.ErrUnsupportedType},
		{"unsupported Go type", func(b *Builder) { b.Add(struct{}{}) }, errs.ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t)
			tt.build(b)

			_, err := b.Finish()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuilder_ErrorIsSticky(t *testing.T) {
	b := newBuilder(t)
	b.Key("orphan")
	require.ErrorIs(t, b.Err(), errs.ErrKeyWithoutMap)

	b.Int(1)
	require.ErrorIs(t, b.EndVector(), errs.ErrKeyWithoutMap)
	require.Equal(t, 0, b.Size())
}

func TestBuilder_FinishTwice(t *testing.T) {
	b := newBuilder(t)
	b.Int(1)
	finish(t, b)

	_, err := b.Finish()
	require.ErrorIs(t, err, errs.ErrAlreadyFinished)

	b.Int(2)
	require.ErrorIs(t, b.Err(), errs.ErrAlreadyFinished)
}

func TestBuilder_Reset(t *testing.T) {
	b := newBuilder(t, WithShareStrings(true))
	require.NoError(t, b.Map(func() {
		b.MapString("name", "orc")
	}))
	finish(t, b)

	b.Reset()
	require.Equal(t, 0, b.Size())
	require.NoError(t, b.Err())

	b.String("goblin")
	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)
	require.Equal(t, "goblin", root.AsString())
}

func TestBuilder_AddRoundTrip(t *testing.T) {
	in := map[string]any{
		"null":    nil,
		"bool":    true,
		"int":     -7,
		"int64":   int64(math.MinInt64),
		"uint8":   uint8(200),
		"uint64":  uint64(math.MaxUint64),
		"float32": float32(1.5),
		"float64": 0.1,
		"string":  "Orc",
		"blob":    []byte{1, 2, 3},
		"ints":    []int{1, -300, 70000},
		"floats":  []float64{0.5, 0.25},
		"bools":   []bool{true, false},
		"strings": []string{"a", "b"},
		"mixed":   []any{1, "two", 3.5, nil},
		"nested":  map[string]any{"x": uint16(9)},
	}

	b := newBuilder(t)
	b.Add(in)
	root, err := GetRoot(finish(t, b))
	require.NoError(t, err)

	got, err := root.Interface()
	require.NoError(t, err)

	want := map[string]any{
		"null":    nil,
		"bool":    true,
		"int":     int64(-7),
		"int64":   int64(math.MinInt64),
		"uint8":   uint64(200),
		"uint64":  uint64(math.MaxUint64),
		"float32": 1.5,
		"float64": 0.1,
		"string":  "Orc",
		"blob":    []byte{1, 2, 3},
		"ints":    []any{int64(1), int64(-300), int64(70000)},
		"floats":  []any{0.5, 0.25},
		"bools":   []any{true, false},
		"strings": []any{"a", "b"},
		"mixed":   []any{int64(1), "two", 3.5, nil},
		"nested":  map[string]any{"x": uint64(9)},
	}
	require.Equal(t, want, got)
}

func TestBuilder_WriteTo(t *testing.T) {
	b := newBuilder(t)
	b.String("Orc")

	var out bytes.Buffer
	_, err := b.WriteTo(&out)
	require.ErrorIs(t, err, errs.ErrNotFinished)

	buf := finish(t, b)
	n, err := b.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(len(buf)), n)
	require.Equal(t, buf, out.Bytes())
}
