package flat

import (
	"cmp"
	"strings"
)

// Key is the set of scalar types a sorted table vector can be keyed by.
type Key interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// LookupByKey binary searches a vector of tables sorted ascending by some key.
//
// compare returns the ordering of a candidate's key relative to the target:
// negative when the candidate sorts first. Each search step resolves the candidate
// through its own vtable, so tables with different layouts may share a vector.
//
// The vector must have been written in sorted order; this is not checked and
// an unsorted vector yields unspecified results.
//
// Returns:
//   - Table: The matching table when found
//   - bool: Whether a table with the target key exists
//   - error: Decoding failure of an element or its key field
func LookupByKey(vec VectorView, compare func(candidate Table) (int, error)) (Table, bool, error) {
	lo, hi := 0, vec.Len
	for lo < hi {
		mid := int(uint(lo+hi) >> 1) //nolint:gosec

		t, err := vec.Table(mid)
		if err != nil {
			return Table{}, false, err
		}

		c, err := compare(t)
		if err != nil {
			return Table{}, false, err
		}

		switch {
		case c == 0:
			return t, true, nil
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return Table{}, false, nil
}

// LookupByStringKey finds the table whose string field in slot equals key.
// Absent key fields compare as the empty string.
func LookupByStringKey(vec VectorView, slot int, key string) (Table, bool, error) {
	return LookupByKey(vec, func(t Table) (int, error) {
		s, _, err := t.GetStringSlot(slot)
		if err != nil {
			return 0, err
		}

		return strings.Compare(s, key), nil
	})
}

// LookupByScalarKey finds the table whose scalar field in slot equals key.
// Absent key fields compare as def.
func LookupByScalarKey[T Key](vec VectorView, slot int, def, key T) (Table, bool, error) {
	return LookupByKey(vec, func(t Table) (int, error) {
		v, err := GetSlot(t, slot, def)
		if err != nil {
			return 0, err
		}

		return cmp.Compare(v, key), nil
	})
}
