package flex

import "github.com/arloliu/flatcodec/format"

// value is a builder stack entry: a scalar waiting to be placed in its parent,
// or the position of a payload already written.
type value struct {
	typ format.Type
	// minWidth is the scalar's own width for inline types and the width the
	// payload was written with for everything else.
	minWidth format.BitWidth
	// bits holds the integer bits of inline values, or the absolute payload
	// position of offset values.
	bits uint64
	f    float64
}

// elemWidth returns the width needed to store v as element elemIndex of a
// vector whose data starts at the current end of the buffer.
//
// Offsets are relative to where they are stored, and that location depends on
// the width itself through alignment padding, so each width is tried in turn
// until the offset it produces fits.
func (v value) elemWidth(bufSize, elemIndex int) format.BitWidth {
	if v.typ.IsInline() {
		return v.minWidth
	}

	for w := format.Width8; w < format.Width64; w++ {
		byteWidth := w.ByteWidth()
		offsetLoc := bufSize + format.PaddingBytes(bufSize, byteWidth) + elemIndex*byteWidth
		if format.WidthU(uint64(offsetLoc)-v.bits) <= w { //nolint:gosec
			return w
		}
	}

	return format.Width64
}

// storedWidth returns the width v is stored with inside a parent of the given width.
func (v value) storedWidth(parent format.BitWidth) format.BitWidth {
	if v.typ.IsInline() {
		return format.MaxWidth(v.minWidth, parent)
	}

	return v.minWidth
}

func (v value) storedPackedType(parent format.BitWidth) byte {
	return format.PackType(v.typ, v.storedWidth(parent))
}
