// Package format defines the self-describing type model of the dynamic value format.
//
// Every stored value carries a packed type byte: the upper six bits hold the
// Type and the lower two bits hold the BitWidth of the referenced data.
package format

import (
	"fmt"

	"github.com/arloliu/flatcodec/errs"
)

type (
	// Type is the dynamic value type tag.
	Type uint8
	// BitWidth is the stored width code of a value: 1, 2, 4 or 8 bytes.
	BitWidth uint8
)

const (
	TypeNull          Type = 0
	TypeInt           Type = 1
	TypeUInt          Type = 2
	TypeFloat         Type = 3
	TypeKey           Type = 4
	TypeString        Type = 5
	TypeIndirectInt   Type = 6
	TypeIndirectUInt  Type = 7
	TypeIndirectFloat Type = 8
	TypeMap           Type = 9
	TypeVector        Type = 10 // untyped vector, each element carries its own packed type
	TypeVectorInt     Type = 11 // typed vectors: element type shared, no per-element type bytes
	TypeVectorUInt    Type = 12
	TypeVectorFloat   Type = 13
	TypeVectorKey     Type = 14
	// TypeVectorStringDeprecated is readable but never produced by the builder.
	TypeVectorStringDeprecated Type = 15
	TypeVectorInt2             Type = 16 // fixed-length typed vectors, length implied by the type
	TypeVectorUInt2            Type = 17
	TypeVectorFloat2           Type = 18
	TypeVectorInt3             Type = 19
	TypeVectorUInt3            Type = 20
	TypeVectorFloat3           Type = 21
	TypeVectorInt4             Type = 22
	TypeVectorUInt4            Type = 23
	TypeVectorFloat4           Type = 24
	TypeBlob                   Type = 25
	TypeBool                   Type = 26
	TypeVectorBool             Type = 36
)

const (
	Width8  BitWidth = 0
	Width16 BitWidth = 1
	Width32 BitWidth = 2
	Width64 BitWidth = 3
)

var typeNames = map[Type]string{
	TypeNull:                   "Null",
	TypeInt:                    "Int",
	TypeUInt:                   "UInt",
	TypeFloat:                  "Float",
	TypeKey:                    "Key",
	TypeString:                 "String",
	TypeIndirectInt:            "IndirectInt",
	TypeIndirectUInt:           "IndirectUInt",
	TypeIndirectFloat:          "IndirectFloat",
	TypeMap:                    "Map",
	TypeVector:                 "Vector",
	TypeVectorInt:              "VectorInt",
	TypeVectorUInt:             "VectorUInt",
	TypeVectorFloat:            "VectorFloat",
	TypeVectorKey:              "VectorKey",
	TypeVectorStringDeprecated: "VectorString",
	TypeVectorInt2:             "VectorInt2",
	TypeVectorUInt2:            "VectorUInt2",
	TypeVectorFloat2:           "VectorFloat2",
	TypeVectorInt3:             "VectorInt3",
	TypeVectorUInt3:            "VectorUInt3",
	TypeVectorFloat3:           "VectorFloat3",
	TypeVectorInt4:             "VectorInt4",
	TypeVectorUInt4:            "VectorUInt4",
	TypeVectorFloat4:           "VectorFloat4",
	TypeBlob:                   "Blob",
	TypeBool:                   "Bool",
	TypeVectorBool:             "VectorBool",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// Valid reports whether t is a known type tag.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// IsInline reports whether values of this type are stored directly in their slot.
func (t Type) IsInline() bool {
	return t <= TypeFloat || t == TypeBool
}

// IsNumber reports whether t is an inline numeric type.
func (t Type) IsNumber() bool {
	return t >= TypeInt && t <= TypeFloat
}

// IsIndirectNumber reports whether t is a numeric type stored behind an offset.
func (t Type) IsIndirectNumber() bool {
	return t >= TypeIndirectInt && t <= TypeIndirectFloat
}

// IsTypedVectorElement reports whether t may be the shared element type of a typed vector.
func (t Type) IsTypedVectorElement() bool {
	return t == TypeBool || (t >= TypeInt && t <= TypeKey)
}

// IsTypedVector reports whether t is a variable-length typed vector.
func (t Type) IsTypedVector() bool {
	return (t >= TypeVectorInt && t <= TypeVectorStringDeprecated) || t == TypeVectorBool
}

// IsFixedTypedVector reports whether t is a fixed-length typed vector.
func (t Type) IsFixedTypedVector() bool {
	return t >= TypeVectorInt2 && t <= TypeVectorFloat4
}

// IsVector reports whether t is any kind of vector, excluding maps.
func (t Type) IsVector() bool {
	return t == TypeVector || t.IsTypedVector() || t.IsFixedTypedVector()
}

// ToTypedVector returns the typed vector type holding elements of type t.
// A fixedLen of 0 yields a variable-length vector, 2..4 a fixed-length one;
// fixed-length vectors only exist for Int, UInt and Float elements.
func (t Type) ToTypedVector(fixedLen int) (Type, error) {
	if !t.IsTypedVectorElement() {
		return TypeNull, fmt.Errorf("%s is not a typed vector element: %w", t, errs.ErrUnsupportedType)
	}

	switch fixedLen {
	case 0:
		if t == TypeBool {
			return TypeVectorBool, nil
		}

		return t - TypeInt + TypeVectorInt, nil
	case 2, 3, 4:
		if !t.IsNumber() {
			return TypeNull, fmt.Errorf("%s cannot form a fixed typed vector: %w", t, errs.ErrUnsupportedType)
		}

		return t - TypeInt + TypeVectorInt2 + Type((fixedLen-2)*3), nil
	default:
		return TypeNull, fmt.Errorf("fixed typed vector length %d: %w", fixedLen, errs.ErrUnsupportedType)
	}
}

// TypedVectorElementType returns the element type of a variable-length typed vector.
func (t Type) TypedVectorElementType() Type {
	if t == TypeVectorBool {
		return TypeBool
	}

	return t - TypeVectorInt + TypeInt
}

// FixedTypedVectorElementType returns the element type of a fixed-length typed vector.
func (t Type) FixedTypedVectorElementType() Type {
	return (t-TypeVectorInt2)%3 + TypeInt
}

// FixedTypedVectorElementSize returns the element count of a fixed-length typed vector.
func (t Type) FixedTypedVectorElementSize() int {
	return int((t-TypeVectorInt2)/3) + 2
}

// ByteWidth returns the number of bytes the width code stands for.
func (w BitWidth) ByteWidth() int {
	return 1 << w
}

func (w BitWidth) String() string {
	switch w {
	case Width8:
		return "W8"
	case Width16:
		return "W16"
	case Width32:
		return "W32"
	case Width64:
		return "W64"
	default:
		return "Unknown"
	}
}

// BitWidthFromByteWidth converts 1, 2, 4 or 8 into a width code.
func BitWidthFromByteWidth(byteWidth int) (BitWidth, error) {
	switch byteWidth {
	case 1:
		return Width8, nil
	case 2:
		return Width16, nil
	case 4:
		return Width32, nil
	case 8:
		return Width64, nil
	default:
		return Width8, fmt.Errorf("byte width %d: %w", byteWidth, errs.ErrUnsupportedWidth)
	}
}

// PackType combines a type and a width into a stored type byte.
func PackType(t Type, w BitWidth) byte {
	return byte(w) | byte(t)<<2
}

// UnpackType splits a stored type byte.
func UnpackType(packed byte) (Type, BitWidth) {
	return Type(packed >> 2), BitWidth(packed & 3)
}
