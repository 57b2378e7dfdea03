// Package flex implements the schema-less, self-describing value format.
//
// Values are written front-to-back into one buffer. Scalars are stored inline
// at the smallest of 1, 2, 4 or 8 bytes that represents them exactly; strings,
// blobs, vectors and maps are stored once and referenced by a backward offset
// sized the same way. Every value carries a packed type byte: the upper six
// bits hold the format.Type and the lower two the format.BitWidth.
//
// The buffer ends with the root:
//
//	[... payloads ...] [root value] [root packed type (1 byte)] [root byte width (1 byte)]
//
// so a reader starts from the last byte and needs no schema.
//
// # Building
//
//	b, _ := flex.NewBuilder()
//	defer b.Release()
//	b.Map(func() {
//		b.MapString("name", "Orc")
//		b.MapInt("hp", 300)
//		b.MapVector("pos", func() {
//			b.Float32(1)
//			b.Float32(2)
//		})
//	})
//	buf, err := b.Finish()
//
// Builder methods never return errors themselves; the first failure is kept
// and reported by Finish, EndVector, EndMap and Err.
//
// # Reading
//
//	root, _ := flex.GetRoot(buf)
//	m, _ := root.AsMap()
//	hp, _ := m.Get("hp")
//	fmt.Println(hp.AsInt64())
//
// Scalar As* accessors coerce between numeric types and return zero values
// for incompatible types; Get* accessors return ErrTypeMismatch instead.
// AsVector, AsTypedVector and AsMap return ErrTypeMismatch for other types.
package flex
