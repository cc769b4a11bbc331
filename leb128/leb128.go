// Package leb128 implements LEB128 variable-length integer decoding
// and minimal-length encoding, per the Wasm binary format's
// https://webassembly.github.io/spec/core/binary/values.html#binary-int.
//
// The shift/sign-extend algorithm is the teacher's (vertexvm's
// leb128.Read), generalized from a panicking/log.Fatal failure mode to
// returning *errs.Error values, and split into the exact fail kinds
// spec.md demands: IntegerTooLong for too many continuation bytes,
// IntegerOverflow for non-zero high bits in the final byte.
package leb128

import (
	"bytes"

	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/util"
)

// maxBytes returns the maximum number of LEB128 bytes a Wasm reader
// must accept for an n-bit result: ceil(n/7).
func maxBytes(n uint32) uint32 { return (n + 6) / 7 }

// read decodes an n-bit integer (n in {32, 64}), signed or unsigned,
// from c, enforcing both the byte-count and final-byte-high-bits
// invariants spec.md §4.1 requires.
func read(c *util.Cursor, n uint32, signed bool) (int64, error) {
	var (
		shift  uint32
		result int64
		count  uint32
		b      byte
		err    error
	)
	limit := maxBytes(n)
	for {
		off := c.Offset()
		b, err = c.ReadByte()
		if err != nil {
			return 0, errs.New(off, errs.UnexpectedEOF, "eof while reading LEB128 integer")
		}
		count++
		if count > limit {
			return 0, errs.New(off, errs.IntegerTooLong, "LEB128 integer longer than %d bytes", limit)
		}

		payload := int64(b & 0x7f)
		if count == limit {
			// Final allowed byte: bits beyond the n-bit result must all
			// equal the sign-extension bit (0 for unsigned/positive, 1
			// for negative signed values), never a stray pattern.
			usedBits := n - shift
			var invalidMask byte
			if usedBits < 7 {
				invalidMask = 0x7f &^ byte((uint32(1)<<usedBits)-1)
			}
			top := b & invalidMask
			var want byte
			if signed && usedBits < 7 && b&(byte(1)<<(usedBits-1)) != 0 {
				want = invalidMask
			}
			if top != want {
				return 0, errs.New(off, errs.IntegerOverflow, "non-sign-extended high bits in final LEB128 byte")
			}
		}

		result |= payload << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}

	if signed && shift < 64 {
		signBit := b & 0x40
		if signBit != 0 {
			result |= -int64(1) << shift
		}
	}
	return result, nil
}

// ReadU32 decodes an unsigned 32-bit LEB128 integer.
func ReadU32(c *util.Cursor) (uint32, error) {
	v, err := read(c, 32, false)
	return uint32(v), err
}

// ReadU64 decodes an unsigned 64-bit LEB128 integer.
func ReadU64(c *util.Cursor) (uint64, error) {
	v, err := read(c, 64, false)
	return uint64(v), err
}

// ReadS32 decodes a signed 32-bit LEB128 integer.
func ReadS32(c *util.Cursor) (int32, error) {
	v, err := read(c, 32, true)
	return int32(v), err
}

// ReadS64 decodes a signed 64-bit LEB128 integer.
func ReadS64(c *util.Cursor) (int64, error) {
	return read(c, 64, true)
}

// PutU32 appends the minimal-length unsigned LEB128 encoding of v.
func PutU32(buf *bytes.Buffer, v uint32) { putUnsigned(buf, uint64(v)) }

// PutU64 appends the minimal-length unsigned LEB128 encoding of v.
func PutU64(buf *bytes.Buffer, v uint64) { putUnsigned(buf, v) }

func putUnsigned(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf.WriteByte(b | 0x80)
		} else {
			buf.WriteByte(b)
			return
		}
	}
}

// PutS32 appends the minimal-length signed LEB128 encoding of v.
func PutS32(buf *bytes.Buffer, v int32) { putSigned(buf, int64(v)) }

// PutS64 appends the minimal-length signed LEB128 encoding of v.
func PutS64(buf *bytes.Buffer, v int64) { putSigned(buf, v) }

func putSigned(buf *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		done := (v == 0 && !signBitSet) || (v == -1 && signBitSet)
		if done {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
