// Package flatcodec provides two zero-copy binary serialization formats.
//
// The table format (package flat) stores schema-described tables, structs,
// vectors, strings and unions in a buffer built back-to-front, with per-table
// vtables deduplicated across tables of the same shape. Readers access fields
// in place without parsing.
//
// The dynamic value format (package flex) is schema-less and self-describing:
// every value carries its own type and byte width, so any buffer can be
// inspected or converted to Go values without prior knowledge of its shape.
//
// # Basic Usage
//
// Building and reading a table:
//
//	b, _ := flatcodec.NewTableBuilder()
//	defer b.Release()
//
//	name, _ := b.CreateString("Orc")
//	b.StartTable(3)
//	b.AddInt16(0, 300, 100) // hp
//	b.AddOffset(2, name)
//	orc, _ := b.EndTable()
//	b.Finish(orc)
//	buf, _ := b.FinishedBytes()
//
//	monster, _ := flatcodec.GetTableRoot(buf)
//	hp, _ := monster.GetInt16Slot(0, 100)
//	mana, _ := monster.GetInt16Slot(1, 150) // absent, yields the default
//
// Round-tripping a dynamic value:
//
//	data, _ := flatcodec.MarshalValue(map[string]any{"hp": 300, "name": "Orc"})
//	v, _ := flatcodec.UnmarshalValue(data)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the flat and
// flex packages. For finer control use those packages directly.
package flatcodec

import (
	"go.uber.org/zap"

	"github.com/arloliu/flatcodec/flat"
	"github.com/arloliu/flatcodec/flex"
	"github.com/arloliu/flatcodec/internal/logging"
)

// NewTableBuilder creates a builder for the table format.
//
// Parameters:
//   - opts: Optional configuration functions (see flat.BuilderOption)
//
// Returns:
//   - *flat.Builder: The created builder. Call Release when done with it.
//   - error: An error if the configuration is invalid.
//
// Available options:
//   - flat.WithInitialSize(n)
//   - flat.WithForceDefaults(true|false)
//   - flat.WithSharedStrings(true|false)
func NewTableBuilder(opts ...flat.BuilderOption) (*flat.Builder, error) {
	return flat.NewBuilder(opts...)
}

// NewValueBuilder creates a builder for the dynamic value format.
//
// Parameters:
//   - opts: Optional configuration functions (see flex.BuilderOption)
//
// Returns:
//   - *flex.Builder: The created builder. Call Release when done with it.
//   - error: An error if the configuration is invalid.
func NewValueBuilder(opts ...flex.BuilderOption) (*flex.Builder, error) {
	return flex.NewBuilder(opts...)
}

// GetTableRoot returns the root table of a finished table buffer.
func GetTableRoot(buf []byte) (flat.Table, error) {
	return flat.GetRoot(buf)
}

// GetValueRoot returns the root value of a finished dynamic buffer.
func GetValueRoot(buf []byte) (flex.Reference, error) {
	return flex.GetRoot(buf)
}

// MarshalValue encodes a Go value in the dynamic format.
//
// v may be built from nil, bool, integers, floats, strings, []byte, slices and
// map[string]any; see flex.Builder.Add. The returned slice is owned by the caller.
//
// Parameters:
//   - v: Value to encode
//   - opts: Optional builder configuration
//
// Returns:
//   - []byte: Encoded buffer
//   - error: flex builder error, such as errs.ErrUnsupportedType
func MarshalValue(v any, opts ...flex.BuilderOption) ([]byte, error) {
	b, err := flex.NewBuilder(opts...)
	if err != nil {
		return nil, err
	}
	defer b.Release()

	b.Add(v)
	buf, err := b.Finish()
	if err != nil {
		return nil, err
	}

	return append([]byte(nil), buf...), nil
}

// UnmarshalValue decodes a dynamic buffer into plain Go values. See
// flex.Reference.Interface for the resulting types.
func UnmarshalValue(data []byte) (any, error) {
	root, err := flex.GetRoot(data)
	if err != nil {
		return nil, err
	}

	return root.Interface()
}

// SetLogger installs the logger used by every package of the module.
// Passing nil restores the default no-op logger.
func SetLogger(l *zap.Logger) {
	logging.SetLogger(l)
}
