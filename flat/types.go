package flat

import "github.com/arloliu/flatcodec/section"

type (
	// UOffset is a tail-relative position during building and an unsigned
	// forward offset once stored.
	UOffset = uint32
	// SOffset is the signed offset from a table to its vtable.
	SOffset = int32
	// VOffset is a vtable entry: a field's offset from the start of its table.
	VOffset = uint16
)

// SlotVOffset returns the byte offset of a field slot inside a vtable.
func SlotVOffset(slot int) VOffset {
	return VOffset((slot + section.VtableMetadataFields) * section.SizeVOffset)
}
