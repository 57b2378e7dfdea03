package flat

import (
	"fmt"
	"slices"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/region"
	"github.com/arloliu/flatcodec/section"
)

// StartVector begins a vector of count elements of elemSize bytes each.
//
// The caller then prepends exactly count elements in reverse order and calls
// EndVector, which leaves the elements in forward order behind the length.
//
// Parameters:
//   - elemSize: Byte size of one element (4 for offsets)
//   - count: Number of elements that will be written
//   - alignment: Alignment of the element type, at least elemSize for scalars
func (b *Builder) StartVector(elemSize, count, alignment int) error {
	if err := b.checkIdle("start vector"); err != nil {
		return err
	}
	if elemSize <= 0 || count < 0 {
		return fmt.Errorf("vector of %d elements of %d bytes: %w", count, elemSize, errs.ErrNestingViolation)
	}

	payload := elemSize * count
	if err := b.Prep(section.SizeUOffset, payload); err != nil {
		return err
	}
	if err := b.Prep(alignment, payload); err != nil {
		return err
	}
	b.state = stateVector

	return nil
}

// EndVector writes the element count and returns the vector's offset.
func (b *Builder) EndVector(count int) (UOffset, error) {
	if b.state != stateVector {
		return 0, fmt.Errorf("end vector without start: %w", errs.ErrNestingViolation)
	}
	b.state = stateIdle

	if err := prepend(b, uint32(count)); err != nil { //nolint:gosec
		return 0, err
	}

	return b.Offset(), nil
}

// CreateString writes s as a NUL-terminated byte vector. With shared strings
// enabled it behaves like CreateSharedString.
func (b *Builder) CreateString(s string) (UOffset, error) {
	if b.cfg.sharedStrings {
		return b.CreateSharedString(s)
	}

	return b.createString(s)
}

// CreateSharedString returns the offset of an identical string written earlier
// by this builder, or writes s when there is none.
func (b *Builder) CreateSharedString(s string) (UOffset, error) {
	if off, ok := b.strings.LookupString(s); ok {
		return off, nil
	}

	off, err := b.createString(s)
	if err != nil {
		return 0, err
	}
	b.strings.StoreString(s, off)

	return off, nil
}

func (b *Builder) createString(s string) (UOffset, error) {
	if err := b.checkIdle("create string"); err != nil {
		return 0, err
	}
	if err := b.Prep(section.SizeUOffset, len(s)+1); err != nil {
		return 0, err
	}

	region.Place(b.region, uint8(0))
	pos := b.region.Alloc(len(s))
	copy(b.region.Raw()[pos:], s)
	region.Place(b.region, uint32(len(s))) //nolint:gosec

	return b.Offset(), nil
}

// CreateByteVector writes v as a vector of bytes without a terminator.
func (b *Builder) CreateByteVector(v []byte) (UOffset, error) {
	if err := b.checkIdle("create byte vector"); err != nil {
		return 0, err
	}
	if err := b.Prep(section.SizeUOffset, len(v)); err != nil {
		return 0, err
	}

	b.region.PlaceBytes(v)
	region.Place(b.region, uint32(len(v))) //nolint:gosec

	return b.Offset(), nil
}

// CreateVector writes a vector of scalars in one call.
func CreateVector[T region.Scalar](b *Builder, values []T) (UOffset, error) {
	size := region.SizeOf[T]()
	if err := b.StartVector(size, len(values), size); err != nil {
		return 0, err
	}
	for i := len(values) - 1; i >= 0; i-- {
		region.Place(b.region, values[i])
	}

	return b.EndVector(len(values))
}

// CreateOffsetVector writes a vector referencing previously completed objects.
func (b *Builder) CreateOffsetVector(offsets []UOffset) (UOffset, error) {
	if err := b.StartVector(section.SizeUOffset, len(offsets), section.SizeUOffset); err != nil {
		return 0, err
	}
	for i := len(offsets) - 1; i >= 0; i-- {
		if err := b.PrependUOffset(offsets[i]); err != nil {
			b.state = stateIdle
			return 0, err
		}
	}

	return b.EndVector(len(offsets))
}

// CreateStringVector writes each string and a vector referencing them.
func (b *Builder) CreateStringVector(values []string) (UOffset, error) {
	offsets := make([]UOffset, len(values))
	for i, s := range values {
		off, err := b.CreateString(s)
		if err != nil {
			return 0, err
		}
		offsets[i] = off
	}

	return b.CreateOffsetVector(offsets)
}

// CreateSortedTableVector sorts completed tables with cmp and writes a vector
// referencing them, the layout LookupByKey expects. cmp sees the tables as they
// sit in the unfinished buffer and must order them by their key field.
func (b *Builder) CreateSortedTableVector(tables []UOffset, cmp func(a, b Table) int) (UOffset, error) {
	raw := b.region.Raw()
	sorted := slices.Clone(tables)
	slices.SortStableFunc(sorted, func(x, y UOffset) int {
		return cmp(
			Table{Buf: raw, Pos: UOffset(b.region.PosOf(x))}, //nolint:gosec
			Table{Buf: raw, Pos: UOffset(b.region.PosOf(y))}, //nolint:gosec
		)
	})

	return b.CreateOffsetVector(sorted)
}
