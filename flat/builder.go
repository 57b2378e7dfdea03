package flat

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/arloliu/flatcodec/endian"
	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/internal/dedup"
	"github.com/arloliu/flatcodec/internal/logging"
	"github.com/arloliu/flatcodec/internal/options"
	"github.com/arloliu/flatcodec/internal/pool"
	"github.com/arloliu/flatcodec/region"
	"github.com/arloliu/flatcodec/section"
)

type buildState uint8

const (
	stateIdle buildState = iota
	stateTable
	stateVector
)

// vtableSlotPool recycles the per-table slot scratch arrays.
var vtableSlotPool = pool.NewSlicePool[UOffset]()

// Builder assembles one table buffer back-to-front.
//
// Every offset the builder returns is measured from the tail of the buffer, so
// it stays valid while the region grows. Objects must be completed before they
// are referenced: strings, vectors and child tables first, then the parent.
//
// Note: Builder is NOT thread-safe.
type Builder struct {
	cfg    *BuilderConfig
	region *region.Region

	minAlign int
	state    buildState
	finished bool

	// current table: tail offset of each present field, 0 when absent
	vtable        []UOffset
	vtableRelease func()
	objectEnd     UOffset

	vtables    *dedup.Cache[UOffset]
	vtableHits int
	strings    *dedup.Cache[UOffset]
	scratch    []byte
}

// NewBuilder creates a builder.
//
// Parameters:
//   - opts: Optional settings (initial size, forced defaults, shared strings)
//
// Returns:
//   - *Builder: Builder ready for StartTable, CreateString and friends
//   - error: Configuration error if an option is invalid
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	cfg := &BuilderConfig{initialSize: defaultInitialSize}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Builder{
		cfg:      cfg,
		region:   region.New(cfg.initialSize),
		minAlign: 1,
		vtables:  dedup.New[UOffset](),
		strings:  dedup.New[UOffset](),
	}, nil
}

// Reset clears the builder for a new buffer while keeping its allocations.
// Bytes returned by FinishedBytes before the reset are overwritten.
func (b *Builder) Reset() {
	b.releaseVtable()
	b.region.Reset()
	b.minAlign = 1
	b.state = stateIdle
	b.finished = false
	b.vtables.Reset()
	b.vtableHits = 0
	b.strings.Reset()
}

// Release hands pooled storage back. The builder and any bytes obtained from
// FinishedBytes must not be used afterwards.
func (b *Builder) Release() {
	b.releaseVtable()
	b.region.Release()
}

// Offset returns the current tail offset, which is the offset the next
// completed object will have.
func (b *Builder) Offset() UOffset {
	return b.region.Offset()
}

// VtableCount returns the number of distinct vtables written so far.
func (b *Builder) VtableCount() int {
	return b.vtables.Len()
}

// Prep aligns the cursor so that after writing additional bytes the next
// element of size bytes is aligned to size. Structs call it with their own
// alignment and byte size before writing fields.
func (b *Builder) Prep(size, additional int) error {
	if size > b.minAlign {
		b.minAlign = size
	}
	_, err := b.region.Prep(size, additional)

	return err
}

// Pad writes n zero bytes.
func (b *Builder) Pad(n int) error {
	if err := b.region.EnsureSpace(n); err != nil {
		return err
	}
	b.region.Pad(n)

	return nil
}

// StructEnd returns the offset of a struct whose fields were just written.
func (b *Builder) StructEnd() UOffset {
	return b.Offset()
}

func (b *Builder) checkIdle(op string) error {
	if b.finished {
		return fmt.Errorf("%s: %w", op, errs.ErrAlreadyFinished)
	}
	if b.state != stateIdle {
		return fmt.Errorf("%s inside an unfinished table or vector: %w", op, errs.ErrNestingViolation)
	}

	return nil
}

func (b *Builder) releaseVtable() {
	if b.vtableRelease != nil {
		b.vtableRelease()
		b.vtableRelease = nil
	}
	b.vtable = nil
}

// StartTable begins a table with room for fieldCount slots.
func (b *Builder) StartTable(fieldCount int) error {
	if err := b.checkIdle("start table"); err != nil {
		return err
	}
	if fieldCount < 0 {
		return fmt.Errorf("negative field count %d: %w", fieldCount, errs.ErrNestingViolation)
	}

	b.vtable, b.vtableRelease = vtableSlotPool.Get(fieldCount)
	b.objectEnd = b.Offset()
	b.state = stateTable

	return nil
}

func (b *Builder) checkSlot(slot int) error {
	if b.state != stateTable {
		return fmt.Errorf("field outside a table: %w", errs.ErrNestingViolation)
	}
	if slot < 0 || slot >= len(b.vtable) {
		return fmt.Errorf("slot %d beyond %d declared fields: %w", slot, len(b.vtable), errs.ErrNestingViolation)
	}

	return nil
}

func prepend[T region.Scalar](b *Builder, v T) error {
	if err := b.Prep(region.SizeOf[T](), 0); err != nil {
		return err
	}
	region.Place(b.region, v)

	return nil
}

func addSlot[T region.Scalar](b *Builder, slot int, v, def T) error {
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if v == def && !b.cfg.forceDefaults {
		return nil
	}
	if err := prepend(b, v); err != nil {
		return err
	}
	b.vtable[slot] = b.Offset()

	return nil
}

// Add* store a scalar field in slot, skipping it when it equals def unless
// defaults are forced.

func (b *Builder) AddBool(slot int, v, def bool) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddInt8(slot int, v, def int8) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddUint8(slot int, v, def uint8) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddInt16(slot int, v, def int16) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddUint16(slot int, v, def uint16) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddInt32(slot int, v, def int32) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddUint32(slot int, v, def uint32) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddInt64(slot int, v, def int64) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddUint64(slot int, v, def uint64) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddFloat32(slot int, v, def float32) error { return addSlot(b, slot, v, def) }
func (b *Builder) AddFloat64(slot int, v, def float64) error { return addSlot(b, slot, v, def) }

// Prepend* write an aligned scalar, for struct fields and vector elements.

func (b *Builder) PrependBool(v bool) error { return prepend(b, v) }
func (b *Builder) PrependInt8(v int8) error { return prepend(b, v) }
func (b *Builder) PrependUint8(v uint8) error { return prepend(b, v) }
func (b *Builder) PrependInt16(v int16) error { return prepend(b, v) }
func (b *Builder) PrependUint16(v uint16) error { return prepend(b, v) }
func (b *Builder) PrependInt32(v int32) error { return prepend(b, v) }
func (b *Builder) PrependUint32(v uint32) error { return prepend(b, v) }
func (b *Builder) PrependInt64(v int64) error { return prepend(b, v) }
func (b *Builder) PrependUint64(v uint64) error { return prepend(b, v) }
func (b *Builder) PrependFloat32(v float32) error { return prepend(b, v) }
func (b *Builder) PrependFloat64(v float64) error { return prepend(b, v) }

// PrependUOffset writes a reference to an object completed earlier.
func (b *Builder) PrependUOffset(off UOffset) error {
	if err := b.Prep(section.SizeUOffset, 0); err != nil {
		return err
	}
	if off > b.Offset() {
		return fmt.Errorf("offset %d ahead of cursor %d: %w", off, b.Offset(), errs.ErrOutOfBounds)
	}
	region.Place(b.region, b.Offset()-off+section.SizeUOffset)

	return nil
}

// AddOffset stores a reference to a string, vector or table in slot.
// A zero offset means absent and is skipped.
func (b *Builder) AddOffset(slot int, off UOffset) error {
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if off == 0 {
		return nil
	}
	if err := b.PrependUOffset(off); err != nil {
		return err
	}
	b.vtable[slot] = b.Offset()

	return nil
}

// AddStruct records a struct written inline immediately before this call.
func (b *Builder) AddStruct(slot int, off UOffset) error {
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if off == 0 {
		return nil
	}
	if off != b.Offset() {
		return fmt.Errorf("struct at %d is not inline at cursor %d: %w", off, b.Offset(), errs.ErrNestingViolation)
	}
	b.vtable[slot] = off

	return nil
}

// EndTable completes the current table and returns its offset.
//
// Trailing absent slots are trimmed from the vtable. When a vtable with the
// same slot sequence was already written, the table points at it instead of
// writing a copy.
func (b *Builder) EndTable() (UOffset, error) {
	if b.state != stateTable {
		return 0, fmt.Errorf("end table without start: %w", errs.ErrNestingViolation)
	}

	if err := prepend(b, SOffset(0)); err != nil {
		return 0, err
	}
	objectOffset := b.Offset()

	n := len(b.vtable)
	for n > 0 && b.vtable[n-1] == 0 {
		n--
	}

	tableSize := objectOffset - b.objectEnd
	vtableSize := (n + section.VtableMetadataFields) * section.SizeVOffset
	if tableSize > math.MaxUint16 || vtableSize > math.MaxUint16 {
		return 0, fmt.Errorf("table of %d bytes exceeds vtable range: %w", tableSize, errs.ErrBufferTooLarge)
	}

	engine := endian.Wire()
	enc := engine.AppendUint16(b.scratch[:0], uint16(vtableSize))
	enc = engine.AppendUint16(enc, uint16(tableSize))
	for _, off := range b.vtable[:n] {
		var vo VOffset
		if off != 0 {
			vo = VOffset(objectOffset - off)
		}
		enc = engine.AppendUint16(enc, vo)
	}
	b.scratch = enc

	// Vtables are shared by slot sequence alone, so the table length of a
	// reused vtable may include alignment padding of a different table.
	slots := enc[section.VtableMetadataFields*section.SizeVOffset:]
	vtableOffset, ok := b.vtables.Lookup(slots)
	if ok {
		b.vtableHits++
	} else {
		// The table's soffset leaves the cursor 4-aligned, so the vtable
		// entries land on 2-byte boundaries without padding.
		if err := b.region.EnsureSpace(len(enc)); err != nil {
			return 0, err
		}
		b.region.PlaceBytes(enc)
		vtableOffset = b.Offset()
		b.vtables.Store(slots, vtableOffset)
	}

	soff := SOffset(int64(vtableOffset) - int64(objectOffset))
	if err := region.WriteAt(b.region, b.region.PosOf(objectOffset), soff); err != nil {
		return 0, err
	}

	b.releaseVtable()
	b.state = stateIdle

	return objectOffset, nil
}

// Required fails when the table at off has no value in slot.
func (b *Builder) Required(table UOffset, slot int) error {
	t := Table{Buf: b.region.Raw(), Pos: UOffset(b.region.PosOf(table))} //nolint:gosec
	fo, err := t.FieldOffset(slot)
	if err != nil {
		return err
	}
	if fo == 0 {
		return fmt.Errorf("slot %d of table %d: %w", slot, table, errs.ErrRequiredFieldMissing)
	}

	return nil
}

// Finish completes the buffer with root as its root table.
func (b *Builder) Finish(root UOffset) error {
	return b.finish(root, "", false)
}

// FinishWithIdentifier completes the buffer and stores the 4-byte file
// identifier right after the root offset.
func (b *Builder) FinishWithIdentifier(root UOffset, id string) error {
	return b.finish(root, id, false)
}

// FinishSizePrefixed completes the buffer and prefixes it with the length of
// the bytes that follow the prefix.
func (b *Builder) FinishSizePrefixed(root UOffset) error {
	return b.finish(root, "", true)
}

// FinishSizePrefixedWithIdentifier combines FinishSizePrefixed and FinishWithIdentifier.
func (b *Builder) FinishSizePrefixedWithIdentifier(root UOffset, id string) error {
	return b.finish(root, id, true)
}

func (b *Builder) finish(root UOffset, id string, sizePrefixed bool) error {
	if err := b.checkIdle("finish"); err != nil {
		return err
	}

	additional := section.SizeUOffset
	if sizePrefixed {
		additional += section.SizeSizePrefix
	}
	if id != "" {
		if len(id) != section.FileIdentifierLength {
			return fmt.Errorf("identifier %q must be %d bytes: %w", id, section.FileIdentifierLength, errs.ErrInvalidIdentifier)
		}
		additional += section.FileIdentifierLength
	}

	// The root offset must sit directly before the identifier, so align for
	// it up front instead of letting PrependUOffset pad in between.
	if err := b.Prep(max(b.minAlign, section.SizeUOffset), additional); err != nil {
		return err
	}
	if id != "" {
		b.region.PlaceBytes([]byte(id))
	}
	if err := b.PrependUOffset(root); err != nil {
		return err
	}
	if sizePrefixed {
		region.Place(b.region, b.Offset())
	}
	b.finished = true

	logging.Logger().Debug("table buffer finished",
		zap.Uint32("size", b.Offset()),
		zap.Int("min_align", b.minAlign),
		zap.Int("vtables", b.vtables.Len()),
		zap.Int("vtable_hits", b.vtableHits),
		zap.Bool("vtable_hash_collision", b.vtables.HasCollision()),
		zap.Bool("size_prefixed", sizePrefixed))

	return nil
}

// FinishedBytes returns the finished buffer. The bytes alias the builder's
// storage until Reset or Release.
func (b *Builder) FinishedBytes() ([]byte, error) {
	if !b.finished {
		return nil, errs.ErrNotFinished
	}

	return b.region.Bytes(), nil
}
