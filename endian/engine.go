// Package endian provides the byte order utilities used by the flatcodec wire formats.
//
// Both the table format and the dynamic value format are little-endian on the
// wire regardless of the host. This package exposes the canonical wire engine
// and a host byte order check, which readers use to decide whether a scalar
// vector can be viewed in place or must be decoded element by element.
//
// # Basic Usage
//
//	engine := endian.Wire()
//	engine.PutUint32(buf[0:4], root)
//	buf = engine.AppendUint16(buf, slot)
//
// # Thread Safety
//
// All functions in this package are safe for concurrent use.
// The returned EndianEngine is immutable and stateless.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
//
// binary.LittleEndian satisfies it, which is the only engine the wire formats use.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

var nativeLittle = checkNativeLittle()

func checkNativeLittle() bool {
	// 0x0100 is 256; a little-endian host stores the low byte (0x00) first.
	var i uint16 = 0x0100
	b := (*[2]byte)(unsafe.Pointer(&i))

	return b[0] == 0x00
}

// CheckEndianness returns the host byte order.
func CheckEndianness() binary.ByteOrder {
	if nativeLittle {
		return binary.LittleEndian
	}

	return binary.BigEndian
}

// IsNativeLittleEndian reports whether the host stores scalars in wire order.
func IsNativeLittleEndian() bool {
	return nativeLittle
}

// IsNativeBigEndian reports whether the host needs byte reversal to read wire scalars.
func IsNativeBigEndian() bool {
	return !nativeLittle
}

// Wire returns the canonical little-endian engine used by every stored layout.
func Wire() EndianEngine {
	return binary.LittleEndian
}

// MatchesWire reports whether the given engine is the wire byte order.
func MatchesWire(engine EndianEngine) bool {
	return engine == Wire()
}
