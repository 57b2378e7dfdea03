package flat

import (
	"fmt"

	"github.com/arloliu/flatcodec/errs"
	"github.com/arloliu/flatcodec/section"
)

// GetRoot returns the root table of a finished buffer.
func GetRoot(buf []byte) (Table, error) {
	return getRoot(buf, false)
}

// GetSizePrefixedRoot returns the root table of a size-prefixed buffer.
// The prefix must not claim more bytes than buf holds.
func GetSizePrefixedRoot(buf []byte) (Table, error) {
	return getRoot(buf, true)
}

// GetRootWithIdentifier returns the root table after checking that the buffer
// carries file identifier id.
func GetRootWithIdentifier(buf []byte, id string) (Table, error) {
	if err := section.ValidateIdentifier(buf, id, false); err != nil {
		return Table{}, err
	}

	return getRoot(buf, false)
}

// GetSizePrefixedRootWithIdentifier combines GetSizePrefixedRoot and
// GetRootWithIdentifier.
func GetSizePrefixedRootWithIdentifier(buf []byte, id string) (Table, error) {
	if err := section.ValidateIdentifier(buf, id, true); err != nil {
		return Table{}, err
	}

	return getRoot(buf, true)
}

// BufferHasIdentifier reports whether buf carries file identifier id.
func BufferHasIdentifier(buf []byte, id string) bool {
	return section.HasIdentifier(buf, id, false)
}

// GetSizePrefix returns the length stored in a size-prefixed buffer.
func GetSizePrefix(buf []byte) (uint32, error) {
	p, err := section.ParsePrefix(buf, true, false)
	if err != nil {
		return 0, err
	}

	return p.Size, nil
}

func getRoot(buf []byte, sizePrefixed bool) (Table, error) {
	p, err := section.ParsePrefix(buf, sizePrefixed, false)
	if err != nil {
		return Table{}, err
	}

	if sizePrefixed && uint64(p.Size) > uint64(len(buf)-section.SizeSizePrefix) {
		return Table{}, fmt.Errorf("size prefix %d exceeds %d bytes: %w", p.Size, len(buf)-section.SizeSizePrefix, errs.ErrBufferTooSmall)
	}

	return Table{Buf: buf, Pos: p.Root}, nil
}
