package format

import "math"

// WidthU returns the smallest width that holds u as an unsigned value.
func WidthU(u uint64) BitWidth {
	switch {
	case u <= math.MaxUint8:
		return Width8
	case u <= math.MaxUint16:
		return Width16
	case u <= math.MaxUint32:
		return Width32
	default:
		return Width64
	}
}

// WidthI returns the smallest width whose sign-extended range represents i exactly.
func WidthI(i int64) BitWidth {
	switch {
	case i >= math.MinInt8 && i <= math.MaxInt8:
		return Width8
	case i >= math.MinInt16 && i <= math.MaxInt16:
		return Width16
	case i >= math.MinInt32 && i <= math.MaxInt32:
		return Width32
	default:
		return Width64
	}
}

// WidthF returns Width32 when f survives a float32 round trip, Width64 otherwise.
// NaN is stored as float32 since the round trip keeps it a NaN.
func WidthF(f float64) BitWidth {
	if math.IsNaN(f) || float64(float32(f)) == f {
		return Width32
	}

	return Width64
}

// PaddingBytes returns the zero bytes needed to align size to alignment,
// which must be a power of two.
func PaddingBytes(size, alignment int) int {
	return (-size) & (alignment - 1)
}

// MaxWidth returns the wider of two widths.
func MaxWidth(a, b BitWidth) BitWidth {
	if a > b {
		return a
	}

	return b
}
