package section

import (
	"bytes"
	"fmt"

	"github.com/arloliu/flatcodec/endian"
	"github.com/arloliu/flatcodec/errs"
)

// Prefix is the parsed fixed-position head of a finished buffer.
type Prefix struct {
	// Size is the value of the size prefix; zero when SizePrefixed is false.
	Size uint32
	// Root is the absolute position of the root table.
	Root uint32
	// Identifier holds the 4 bytes following the root offset when HasIdentifier is set.
	Identifier [FileIdentifierLength]byte

	SizePrefixed  bool
	HasIdentifier bool
}

// Len returns the number of bytes the prefix occupies.
func (p *Prefix) Len() int {
	n := SizeUOffset
	if p.SizePrefixed {
		n += SizeSizePrefix
	}
	if p.HasIdentifier {
		n += FileIdentifierLength
	}

	return n
}

// Parse reads the prefix from buf.
//
// Parameters:
//   - buf: finished buffer bytes
//   - sizePrefixed: whether the buffer starts with a 4-byte total length
//   - withIdentifier: whether a file identifier follows the root offset
//
// Returns:
//   - error: ErrBufferTooSmall if the fields do not fit, ErrOutOfBounds if the
//     root offset points outside buf
func (p *Prefix) Parse(buf []byte, sizePrefixed, withIdentifier bool) error {
	*p = Prefix{SizePrefixed: sizePrefixed, HasIdentifier: withIdentifier}
	if len(buf) < p.Len() {
		return fmt.Errorf("prefix needs %d bytes, have %d: %w", p.Len(), len(buf), errs.ErrBufferTooSmall)
	}

	engine := endian.Wire()
	pos := 0
	if sizePrefixed {
		p.Size = engine.Uint32(buf[0:4])
		pos += SizeSizePrefix
	}

	p.Root = uint32(pos) + engine.Uint32(buf[pos:pos+SizeUOffset]) //nolint:gosec
	if uint64(p.Root) >= uint64(len(buf)) {
		return fmt.Errorf("root offset %d beyond buffer of %d: %w", p.Root, len(buf), errs.ErrOutOfBounds)
	}
	pos += SizeUOffset

	if withIdentifier {
		copy(p.Identifier[:], buf[pos:pos+FileIdentifierLength])
	}

	return nil
}

// ParsePrefix parses a prefix from buf.
func ParsePrefix(buf []byte, sizePrefixed, withIdentifier bool) (Prefix, error) {
	var p Prefix
	if err := p.Parse(buf, sizePrefixed, withIdentifier); err != nil {
		return Prefix{}, err
	}

	return p, nil
}

// Bytes serializes the prefix. Root is written relative to its own field.
func (p *Prefix) Bytes() []byte {
	engine := endian.Wire()
	b := make([]byte, 0, p.Len())

	rootField := uint32(0)
	if p.SizePrefixed {
		b = engine.AppendUint32(b, p.Size)
		rootField = SizeSizePrefix
	}
	b = engine.AppendUint32(b, p.Root-rootField)
	if p.HasIdentifier {
		b = append(b, p.Identifier[:]...)
	}

	return b
}

// ValidateIdentifier checks id against the buffer's identifier field.
func ValidateIdentifier(buf []byte, id string, sizePrefixed bool) error {
	if len(id) != FileIdentifierLength {
		return fmt.Errorf("identifier %q must be %d bytes: %w", id, FileIdentifierLength, errs.ErrInvalidIdentifier)
	}

	pos := SizeUOffset
	if sizePrefixed {
		pos += SizeSizePrefix
	}
	if len(buf) < pos+FileIdentifierLength {
		return fmt.Errorf("identifier field needs %d bytes, have %d: %w", pos+FileIdentifierLength, len(buf), errs.ErrBufferTooSmall)
	}

	if !bytes.Equal(buf[pos:pos+FileIdentifierLength], []byte(id)) {
		return fmt.Errorf("want %q, got %q: %w", id, buf[pos:pos+FileIdentifierLength], errs.ErrInvalidIdentifier)
	}

	return nil
}

// HasIdentifier reports whether buf carries the file identifier id.
func HasIdentifier(buf []byte, id string, sizePrefixed bool) bool {
	return ValidateIdentifier(buf, id, sizePrefixed) == nil
}
