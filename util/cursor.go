// Package util provides the byte-span primitives the rest of the
// toolkit is built on: a mutable cursor over a borrowed byte slice,
// grounded on the teacher's util.ByteReader, generalized to track an
// absolute offset (for error reporting) and to validate UTF-8 names.
package util

import (
	"encoding/binary"
	"io"
	"unicode/utf8"
)

// Cursor is a pull-style reader over a byte span it does not own. It
// never copies the input; every []byte it returns is a sub-slice of
// the span the caller supplied to NewCursor.
type Cursor struct {
	b      []byte
	pos    int
	base   int64 // absolute offset of b[0], for nested section readers
}

// NewCursor wraps b for reading, starting at absolute offset 0.
func NewCursor(b []byte) *Cursor {
	return &Cursor{b: b}
}

// NewCursorAt wraps b for reading, reporting offsets relative to base.
// Used when b is itself a sub-span (e.g. a section payload) so that
// errors still point at the right place in the original input.
func NewCursorAt(b []byte, base int64) *Cursor {
	return &Cursor{b: b, base: base}
}

// Offset returns the absolute byte offset of the cursor's current
// read position, for use in error records.
func (c *Cursor) Offset() int64 { return c.base + int64(c.pos) }

// Len returns the number of unread bytes remaining.
func (c *Cursor) Len() int { return len(c.b) - c.pos }

// Done reports whether the cursor has consumed the whole span.
func (c *Cursor) Done() bool { return c.pos >= len(c.b) }

// Rest returns the unread remainder of the span without consuming it.
func (c *Cursor) Rest() []byte { return c.b[c.pos:] }

// ReadByte consumes and returns the next byte.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.b) {
		return 0, io.ErrUnexpectedEOF
	}
	v := c.b[c.pos]
	c.pos++
	return v, nil
}

// PeekByte returns the next byte without consuming it.
func (c *Cursor) PeekByte() (byte, error) {
	if c.pos >= len(c.b) {
		return 0, io.ErrUnexpectedEOF
	}
	return c.b[c.pos], nil
}

// ReadBytes consumes and returns the next n bytes as a sub-slice of
// the underlying span (no copy).
func (c *Cursor) ReadBytes(n uint32) ([]byte, error) {
	if uint64(c.pos)+uint64(n) > uint64(len(c.b)) {
		return nil, io.ErrUnexpectedEOF
	}
	v := c.b[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return v, nil
}

// ReadU32LE reads a raw little-endian 32-bit word (module header
// version field, f32 bit pattern).
func (c *Cursor) ReadU32LE() (uint32, error) {
	buf, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64LE reads a raw little-endian 64-bit word (f64 bit pattern).
func (c *Cursor) ReadU64LE() (uint64, error) {
	buf, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadName reads a LEB128-length-prefixed UTF-8 string. The length
// prefix itself is read by the caller via leb128.ReadU32, since this
// package must not depend on leb128 (leb128 depends on nothing but
// Cursor's byte-level primitives, used directly in that package).
func ReadName(raw []byte) (string, bool) {
	return string(raw), utf8.Valid(raw)
}

// Sub creates a bounded cursor over the next n bytes, advancing c past
// them, for section-style "read exactly n bytes as its own span"
// framing (teacher's io.LimitReader(r, int64(datalen)) equivalent).
func (c *Cursor) Sub(n uint32) (*Cursor, error) {
	buf, err := c.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewCursorAt(buf, c.base+int64(c.pos)-int64(n)), nil
}
