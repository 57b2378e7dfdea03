// Package section defines the fixed-position prefix of a finished table buffer.
//
// A finished buffer starts with the following fields, all little-endian:
//
//	┌──────────────────────────────────────────────────────────┐
//	│ Size prefix (4 bytes, optional)                          │
//	│  - total length of the bytes that follow                 │
//	├──────────────────────────────────────────────────────────┤
//	│ Root offset (4 bytes)                                    │
//	│  - uoffset from this field to the root table             │
//	├──────────────────────────────────────────────────────────┤
//	│ File identifier (4 bytes, optional)                      │
//	│  - schema compatibility tag                              │
//	├──────────────────────────────────────────────────────────┤
//	│ Tables, vtables, vectors, strings (variable)             │
//	└──────────────────────────────────────────────────────────┘
//
// Whether the optional fields are present is not recorded in the buffer;
// the reader must know it, the same way it knows the schema.
package section
