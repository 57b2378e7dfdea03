package flex

import (
	"fmt"
	"io"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/format"
	"github.com/arloliu/flatcodec/internal/dedup"
	"github.com/arloliu/flatcodec/internal/logging"
	"github.com/arloliu/flatcodec/internal/options"
	"github.com/arloliu/flatcodec/internal/pool"
	"github.com/arloliu/flatcodec/region"
)

type frameKind uint8

const (
	frameVector frameKind = iota
	frameTypedVector
	frameFixedTypedVector
	frameMap
)

func (k frameKind) String() string {
	switch k {
	case frameVector:
		return "vector"
	case frameTypedVector:
		return "typed vector"
	case frameFixedTypedVector:
		return "fixed typed vector"
	default:
		return "map"
	}
}

// frame is an open vector or map: its kind and the stack index of its first child.
type frame struct {
	kind  frameKind
	start int
}

// Builder assembles one dynamic value buffer.
//
// Scalars are pushed on a stack; strings, keys and blobs are written at once
// and pushed as offsets. Closing a vector or map writes its children from the
// stack at the width the widest child needs and replaces them with a single
// offset value.
//
// The dedup caches live and die with the builder.
//
// Note: Builder is NOT thread-safe.
type Builder struct {
	cfg *BuilderConfig
	buf *pool.ByteBuffer

	stack  []value
	frames []frame

	keys       *dedup.Cache[uint64]
	strings    *dedup.Cache[uint64]
	keyVectors *dedup.Cache[value]

	err      error
	finished bool
}

// NewBuilder creates a builder.
//
// Parameters:
//   - opts: Optional settings (sharing flags, initial size, minimum vector width)
//
// Returns:
//   - *Builder: Builder ready to receive values
//   - error: Configuration error if an option is invalid
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	cfg := &BuilderConfig{
		shareKeys:       true,
		shareKeyVectors: true,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	b := &Builder{
		cfg:        cfg,
		buf:        pool.GetValueBuffer(),
		stack:      make([]value, 0, 16),
		keys:       dedup.New[uint64](),
		strings:    dedup.New[uint64](),
		keyVectors: dedup.New[value](),
	}
	b.buf.Grow(cfg.initialSize)

	return b, nil
}

// Reset clears the builder for a new buffer. Bytes returned by Finish before
// the reset are overwritten.
func (b *Builder) Reset() {
	b.buf.Reset()
	b.stack = b.stack[:0]
	b.frames = b.frames[:0]
	b.keys.Reset()
	b.strings.Reset()
	b.keyVectors.Reset()
	b.err = nil
	b.finished = false
}

// Release returns the buffer to the pool. The builder and any bytes returned
// by Finish must not be used afterwards.
func (b *Builder) Release() {
	pool.PutValueBuffer(b.buf)
	b.buf = nil
	b.stack = nil
	b.frames = nil
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

// Size returns the number of bytes written so far.
func (b *Builder) Size() int {
	return b.buf.Len()
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// ok reports whether the builder may accept another value.
func (b *Builder) ok() bool {
	if b.err != nil {
		return false
	}
	if b.finished {
		b.err = errs.ErrAlreadyFinished
		return false
	}

	return true
}

func (b *Builder) push(v value) {
	b.stack = append(b.stack, v)
}

// extend appends n zero bytes and returns the position of the first one.
func (b *Builder) extend(n int) int {
	oldCap := b.buf.Cap()
	if b.buf.Grow(n) {
		logging.Logger().Debug("value buffer grown",
			zap.Int("old_cap", oldCap),
			zap.Int("new_cap", b.buf.Cap()),
			zap.Int("used", b.buf.Len()))
	}

	return b.buf.ExtendOrGrow(n)
}

// align pads the buffer to a multiple of w and returns w in bytes.
func (b *Builder) align(w format.BitWidth) int {
	byteWidth := w.ByteWidth()
	if pad := format.PaddingBytes(b.buf.Len(), byteWidth); pad > 0 {
		b.extend(pad)
	}

	return byteWidth
}

func (b *Builder) writeUint(v uint64, byteWidth int) {
	pos := b.extend(byteWidth)
	region.PutUint(b.buf.B[pos:], v, byteWidth)
}

func (b *Builder) writeFloat(f float64, byteWidth int) {
	if byteWidth == 4 {
		b.writeUint(uint64(math.Float32bits(float32(f))), 4)
		return
	}
	b.writeUint(math.Float64bits(f), 8)
}

// writeOffset stores the distance from the current end back to pos.
func (b *Builder) writeOffset(pos uint64, byteWidth int) {
	b.writeUint(uint64(b.buf.Len())-pos, byteWidth) //nolint:gosec
}

func (b *Builder) writeAny(v value, byteWidth int) {
	switch v.typ { //nolint:exhaustive
	case format.TypeNull, format.TypeBool, format.TypeInt, format.TypeUInt:
		b.writeUint(v.bits, byteWidth)
	case format.TypeFloat:
		b.writeFloat(v.f, byteWidth)
	default:
		b.writeOffset(v.bits, byteWidth)
	}
}

// Null adds a null value.
func (b *Builder) Null() {
	if b.ok() {
		b.push(value{typ: format.TypeNull})
	}
}

// Bool adds a boolean stored in one byte.
func (b *Builder) Bool(v bool) {
	if !b.ok() {
		return
	}

	var bits uint64
	if v {
		bits = 1
	}
	b.push(value{typ: format.TypeBool, bits: bits})
}

// Int adds a signed integer at its minimal width.
func (b *Builder) Int(v int64) {
	if b.ok() {
		b.push(value{typ: format.TypeInt, minWidth: format.WidthI(v), bits: uint64(v)}) //nolint:gosec
	}
}

// UInt adds an unsigned integer at its minimal width.
func (b *Builder) UInt(v uint64) {
	if b.ok() {
		b.push(value{typ: format.TypeUInt, minWidth: format.WidthU(v), bits: v})
	}
}

// Float32 adds a 4-byte float.
func (b *Builder) Float32(v float32) {
	if b.ok() {
		b.push(value{typ: format.TypeFloat, minWidth: format.Width32, f: float64(v)})
	}
}

// Float64 adds a float, stored in 4 bytes when that loses no precision.
func (b *Builder) Float64(v float64) {
	if b.ok() {
		b.push(value{typ: format.TypeFloat, minWidth: format.WidthF(v), f: v})
	}
}

// pushIndirect writes a scalar payload and pushes an offset to it, so large
// scalars do not widen the vector that holds them.
func (b *Builder) pushIndirect(typ format.Type, w format.BitWidth, bits uint64, f float64) {
	if !b.ok() {
		return
	}

	byteWidth := b.align(w)
	pos := b.buf.Len()
	if typ == format.TypeIndirectFloat {
		b.writeFloat(f, byteWidth)
	} else {
		b.writeUint(bits, byteWidth)
	}
	b.push(value{typ: typ, minWidth: w, bits: uint64(pos)}) //nolint:gosec
}

// IndirectInt adds a signed integer stored out of line.
func (b *Builder) IndirectInt(v int64) {
	b.pushIndirect(format.TypeIndirectInt, format.WidthI(v), uint64(v), 0) //nolint:gosec
}

// IndirectUInt adds an unsigned integer stored out of line.
func (b *Builder) IndirectUInt(v uint64) {
	b.pushIndirect(format.TypeIndirectUInt, format.WidthU(v), v, 0)
}

// IndirectFloat32 adds a 4-byte float stored out of line.
func (b *Builder) IndirectFloat32(v float32) {
	b.pushIndirect(format.TypeIndirectFloat, format.Width32, 0, float64(v))
}

// IndirectFloat64 adds a float stored out of line.
func (b *Builder) IndirectFloat64(v float64) {
	b.pushIndirect(format.TypeIndirectFloat, format.WidthF(v), 0, v)
}

// createBlob writes a length prefix followed by data and trailing zero bytes,
// returning the payload position and the width of the prefix.
func createBlob[S ~string | ~[]byte](b *Builder, data S, trailing int) (uint64, format.BitWidth) {
	w := format.WidthU(uint64(len(data)))
	b.writeUint(uint64(len(data)), b.align(w))

	pos := b.extend(len(data) + trailing)
	copy(b.buf.B[pos:], data)

	return uint64(pos), w //nolint:gosec
}

// String adds a NUL-terminated string. With string sharing on, an identical
// string written earlier is referenced instead of written again.
func (b *Builder) String(s string) {
	if !b.ok() {
		return
	}

	if b.cfg.shareStrings {
		if pos, found := b.strings.LookupString(s); found {
			b.push(value{typ: format.TypeString, minWidth: format.WidthU(uint64(len(s))), bits: pos})
			return
		}
	}

	pos, w := createBlob(b, s, 1)
	if b.cfg.shareStrings {
		b.strings.StoreString(s, pos)
	}
	b.push(value{typ: format.TypeString, minWidth: w, bits: pos})
}

// Blob adds raw bytes.
func (b *Builder) Blob(data []byte) {
	if !b.ok() {
		return
	}

	pos, w := createBlob(b, data, 0)
	b.push(value{typ: format.TypeBlob, minWidth: w, bits: pos})
}

// Key adds a map key. It must be followed by the key's value.
func (b *Builder) Key(k string) {
	if !b.ok() {
		return
	}
	if len(b.frames) == 0 || b.frames[len(b.frames)-1].kind != frameMap {
		b.setErr(fmt.Errorf("key %q: %w", k, errs.ErrKeyWithoutMap))
		return
	}
	if strings.IndexByte(k, 0) >= 0 {
		b.setErr(fmt.Errorf("key %q contains NUL: %w", k, errs.ErrUnsupportedType))
		return
	}

	b.push(value{typ: format.TypeKey, bits: b.writeKey(k)})
}

func (b *Builder) writeKey(k string) uint64 {
	if b.cfg.shareKeys {
		if pos, found := b.keys.LookupString(k); found {
			return pos
		}
	}

	pos := uint64(b.extend(len(k) + 1)) //nolint:gosec
	copy(b.buf.B[pos:], k)
	if b.cfg.shareKeys {
		b.keys.StoreString(k, pos)
	}

	return pos
}

// Finish writes the root and returns the finished buffer. Exactly one value
// must be on the stack and every vector and map must be closed.
//
// The returned bytes alias the builder's storage until Reset or Release.
func (b *Builder) Finish() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.finished {
		return nil, errs.ErrAlreadyFinished
	}
	if len(b.frames) > 0 {
		b.setErr(fmt.Errorf("%d unclosed vectors or maps: %w", len(b.frames), errs.ErrNestingViolation))
		return nil, b.err
	}
	if len(b.stack) != 1 {
		b.setErr(fmt.Errorf("%d values on the stack: %w", len(b.stack), errs.ErrStackNotSingle))
		return nil, b.err
	}

	root := b.stack[0]
	byteWidth := b.align(root.elemWidth(b.buf.Len(), 0))
	b.writeAny(root, byteWidth)
	pos := b.extend(2)
	b.buf.B[pos] = root.storedPackedType(format.Width8)
	b.buf.B[pos+1] = byte(byteWidth)
	b.finished = true

	logging.Logger().Debug("value buffer finished",
		zap.Int("size", b.buf.Len()),
		zap.Stringer("root_type", root.typ),
		zap.Int("root_byte_width", byteWidth),
		zap.Int("shared_keys", b.keys.Len()),
		zap.Int("shared_strings", b.strings.Len()),
		zap.Int("shared_key_vectors", b.keyVectors.Len()),
		zap.Bool("hash_collision", b.keys.HasCollision() || b.strings.HasCollision() || b.keyVectors.HasCollision()))

	return b.buf.B, nil
}

// WriteTo writes the finished buffer to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	if !b.finished {
		return 0, errs.ErrNotFinished
	}

	return b.buf.WriteTo(w)
}
