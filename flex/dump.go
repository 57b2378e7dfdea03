package flex

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/format"
)

// MaxNestingDepth is the deepest container nesting Interface and String
// descend into.
const MaxNestingDepth = 1024

// Interface converts the value into plain Go values: nil, bool, int64,
// uint64, float64, string, []byte, []any and map[string]any. Strings and
// blobs are copied out of the buffer. Containers nested deeper than
// MaxNestingDepth yield ErrMaxDepth.
func (r Reference) Interface() (any, error) {
	return r.toInterface(0)
}

func (r Reference) toInterface(depth int) (any, error) {
	switch {
	case r.IsNull():
		return nil, nil
	case r.IsBool():
		return r.GetBool()
	case r.IsInt():
		return r.readInt()
	case r.IsUInt():
		return r.readUint()
	case r.IsFloat():
		return r.readFloat()
	case r.IsString():
		s, err := r.GetString()
		return strings.Clone(s), err
	case r.IsKey():
		s, err := r.GetKey()
		return strings.Clone(s), err
	case r.IsBlob():
		b, err := r.GetBlob()
		if err != nil {
			return nil, err
		}

		return bytes.Clone(b), nil
	case r.IsMap():
		return mapInterface(r, depth+1)
	case r.typ == format.TypeVector:
		v, err := r.AsVector()
		if err != nil {
			return nil, err
		}

		return sliceInterface(v.Len(), v.At, depth+1)
	case r.IsTypedVector(), r.IsFixedTypedVector():
		v, err := r.AsTypedVector()
		if err != nil {
			return nil, err
		}

		return sliceInterface(v.Len(), v.At, depth+1)
	default:
		return nil, fmt.Errorf("convert %s: %w", r.typ, errs.ErrUnsupportedType)
	}
}

func checkDepth(depth int) error {
	if depth > MaxNestingDepth {
		return fmt.Errorf("container nesting %d: %w", depth, errs.ErrMaxDepth)
	}

	return nil
}

func sliceInterface(n int, at func(int) (Reference, error), depth int) ([]any, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}

	out := make([]any, n)
	for i := range out {
		elem, err := at(i)
		if err != nil {
			return nil, err
		}
		if out[i], err = elem.toInterface(depth); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func mapInterface(r Reference, depth int) (map[string]any, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}

	m, err := r.AsMap()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, m.Len())
	for i := range m.Len() {
		k, v, err := m.At(i)
		if err != nil {
			return nil, err
		}
		if out[strings.Clone(k)], err = v.toInterface(depth); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// String renders the value as JSON-like text. Maps list their keys in stored
// order and blobs are shown as quoted escaped bytes. Malformed values render
// as an error marker instead of failing.
func (r Reference) String() string {
	var sb strings.Builder
	r.writeTo(&sb, 0)

	return sb.String()
}

func (r Reference) writeTo(sb *strings.Builder, depth int) {
	switch {
	case r.IsNull():
		sb.WriteString("null")
	case r.IsBool():
		sb.WriteString(strconv.FormatBool(r.AsBool()))
	case r.IsInt():
		sb.WriteString(strconv.FormatInt(r.AsInt64(), 10))
	case r.IsUInt():
		sb.WriteString(strconv.FormatUint(r.AsUInt64(), 10))
	case r.IsFloat():
		sb.WriteString(strconv.FormatFloat(r.AsFloat64(), 'g', -1, 64))
	case r.IsString(), r.IsKey():
		sb.WriteString(strconv.Quote(r.AsString()))
	case r.IsBlob():
		sb.WriteString(strconv.Quote(string(r.AsBlob())))
	case r.IsMap():
		if err := checkDepth(depth + 1); err != nil {
			writeError(sb, err)
			return
		}

		m, err := r.AsMap()
		if err != nil {
			writeError(sb, err)
			return
		}

		sb.WriteByte('{')
		for i := range m.Len() {
			if i > 0 {
				sb.WriteString(", ")
			}
			k, v, err := m.At(i)
			if err != nil {
				writeError(sb, err)
				break
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			v.writeTo(sb, depth+1)
		}
		sb.WriteByte('}')
	case r.typ == format.TypeVector:
		v, err := r.AsVector()
		if err != nil {
			writeError(sb, err)
			return
		}
		writeSlice(sb, v.Len(), v.At, depth+1)
	case r.IsTypedVector(), r.IsFixedTypedVector():
		v, err := r.AsTypedVector()
		if err != nil {
			writeError(sb, err)
			return
		}
		writeSlice(sb, v.Len(), v.At, depth+1)
	default:
		writeError(sb, fmt.Errorf("type %s: %w", r.typ, errs.ErrUnsupportedType))
	}
}

func writeSlice(sb *strings.Builder, n int, at func(int) (Reference, error), depth int) {
	if err := checkDepth(depth); err != nil {
		writeError(sb, err)
		return
	}

	sb.WriteByte('[')
	for i := range n {
		if i > 0 {
			sb.WriteString(", ")
		}
		elem, err := at(i)
		if err != nil {
			writeError(sb, err)
			break
		}
		elem.writeTo(sb, depth)
	}
	sb.WriteByte(']')
}

func writeError(sb *strings.Builder, err error) {
	sb.WriteString("<error: ")
	sb.WriteString(err.Error())
	sb.WriteByte('>')
}
