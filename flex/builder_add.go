package flex

import (
	"fmt"
	"maps"
	"slices"

	"github.com/arloliu/flatcodec/errs"
)

// Add adds a Go value, choosing the format type from its dynamic type.
//
// Supported: nil, bool, every integer and float kind, string, []byte, []any,
// slices of integers, floats, bools and strings, and map[string]any. Integer
// and float slices become typed vectors. Maps are written with sorted keys.
// Any other type records ErrUnsupportedType.
func (b *Builder) Add(v any) {
	if !b.ok() {
		return
	}

	switch x := v.(type) {
	case nil:
		b.Null()
	case bool:
		b.Bool(x)
	case int:
		b.Int(int64(x))
	case int8:
		b.Int(int64(x))
	case int16:
		b.Int(int64(x))
	case int32:
		b.Int(int64(x))
	case int64:
		b.Int(x)
	case uint:
		b.UInt(uint64(x))
	case uint8:
		b.UInt(uint64(x))
	case uint16:
		b.UInt(uint64(x))
	case uint32:
		b.UInt(uint64(x))
	case uint64:
		b.UInt(x)
	case float32:
		b.Float32(x)
	case float64:
		b.Float64(x)
	case string:
		b.String(x)
	case []byte:
		b.Blob(x)
	case []any:
		b.StartVector()
		for _, e := range x {
			b.Add(e)
		}
		_ = b.EndVector()
	case []string:
		b.StartVector()
		for _, e := range x {
			b.String(e)
		}
		_ = b.EndVector()
	case []bool:
		addTyped(b, x, b.Bool)
	case []int:
		addTyped(b, x, func(e int) { b.Int(int64(e)) })
	case []int32:
		addTyped(b, x, func(e int32) { b.Int(int64(e)) })
	case []int64:
		addTyped(b, x, b.Int)
	case []uint16:
		addTyped(b, x, func(e uint16) { b.UInt(uint64(e)) })
	case []uint32:
		addTyped(b, x, func(e uint32) { b.UInt(uint64(e)) })
	case []uint64:
		addTyped(b, x, b.UInt)
	case []float32:
		addTyped(b, x, b.Float32)
	case []float64:
		addTyped(b, x, b.Float64)
	case map[string]any:
		b.StartMap()
		for _, k := range slices.Sorted(maps.Keys(x)) {
			b.Key(k)
			b.Add(x[k])
		}
		_ = b.EndMap()
	default:
		b.setErr(fmt.Errorf("add %T: %w", v, errs.ErrUnsupportedType))
	}
}

func addTyped[T any](b *Builder, values []T, add func(T)) {
	b.StartTypedVector()
	for _, v := range values {
		add(v)
	}
	_ = b.EndVector()
}

// Map* add a keyed entry to the enclosing map.

func (b *Builder) MapNull(key string) {
	b.Key(key)
	b.Null()
}

func (b *Builder) MapBool(key string, v bool) {
	b.Key(key)
	b.Bool(v)
}

func (b *Builder) MapInt(key string, v int64) {
	b.Key(key)
	b.Int(v)
}

func (b *Builder) MapUInt(key string, v uint64) {
	b.Key(key)
	b.UInt(v)
}

func (b *Builder) MapFloat32(key string, v float32) {
	b.Key(key)
	b.Float32(v)
}

func (b *Builder) MapFloat64(key string, v float64) {
	b.Key(key)
	b.Float64(v)
}

func (b *Builder) MapString(key string, v string) {
	b.Key(key)
	b.String(v)
}

func (b *Builder) MapBlob(key string, v []byte) {
	b.Key(key)
	b.Blob(v)
}

func (b *Builder) MapAdd(key string, v any) {
	b.Key(key)
	b.Add(v)
}

func (b *Builder) MapIndirectInt(key string, v int64) {
	b.Key(key)
	b.IndirectInt(v)
}

// MapVector adds a keyed untyped vector filled by fn.
func (b *Builder) MapVector(key string, fn func()) {
	b.Key(key)
	_ = b.Vector(fn)
}

// MapTypedVector adds a keyed typed vector filled by fn.
func (b *Builder) MapTypedVector(key string, fn func()) {
	b.Key(key)
	_ = b.TypedVector(fn)
}

// MapFixedTypedVector adds a keyed fixed typed vector filled by fn.
func (b *Builder) MapFixedTypedVector(key string, fn func()) {
	b.Key(key)
	_ = b.FixedTypedVector(fn)
}

// MapMap adds a keyed nested map filled by fn.
func (b *Builder) MapMap(key string, fn func()) {
	b.Key(key)
	_ = b.Map(fn)
}
