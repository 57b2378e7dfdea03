// Package flat implements the schema-driven table format: a Builder that
// assembles tables, structs, vectors and strings back-to-front into one
// contiguous buffer, and zero-copy readers that resolve fields through vtables.
//
// # Buffer Layout
//
// A finished buffer starts with the prefix described in package section,
// followed by objects addressed only through relative offsets:
//
//	table:   [soffset to vtable (int32)] [fields ...]
//	vtable:  [vtable byte length (u16)] [table byte length (u16)] [field offset (u16) ...]
//	vector:  [element count (u32)] [elements ...]
//	string:  [byte length (u32)] [utf-8 bytes ...] [0x00]
//
// A vtable slot of zero means the field is absent and the reader substitutes
// the schema default. Tables with identical vtables share one copy.
//
// # Building
//
// Children are completed before their parents, because a parent can only
// reference offsets that already exist:
//
//	b, _ := flat.NewBuilder()
//	name, _ := b.CreateString("Orc")
//	_ = b.StartTable(3)
//	_ = b.AddInt16(0, 300, 100)
//	_ = b.AddOffset(2, name)
//	orc, _ := b.EndTable()
//	_ = b.Finish(orc)
//	buf, _ := b.FinishedBytes()
//
// # Reading
//
//	t, _ := flat.GetRoot(buf)
//	hp, _ := flat.GetSlot[int16](t, 0, 100)
//	name, _ := t.GetStringSlot(2)
//
// # Thread Safety
//
// A Builder must be used by one goroutine at a time. Finished buffers and the
// readers over them are immutable and safe for concurrent use.
package flat
