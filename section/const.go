package section

// Fixed sizes of the table format's offset types.
const (
	SizeUOffset          = 4 // unsigned forward offset to tables, vectors and strings
	SizeSOffset          = 4 // signed back offset from a table to its vtable
	SizeVOffset          = 2 // vtable entry
	SizeSizePrefix       = 4 // optional total-length prefix
	FileIdentifierLength = 4

	// VtableMetadataFields is the number of VOffset entries that precede the
	// field slots in a vtable: vtable byte length and table byte length.
	VtableMetadataFields = 2

	// MaxBufferSize is the largest buffer 32-bit offsets can address.
	MaxBufferSize = 1<<31 - 1
)
