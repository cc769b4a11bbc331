// Package enc holds the bidirectional encode/decode tables between
// Wasm's byte-level tags and the abstract kinds of package wasm, per
// spec.md §4.2. Each tag space gets one file and one Encode/Decode
// pair, grounded on original_source's encoding-inl.h pattern (one
// `Decode(u8) optional<Kind>` per tag space, `Encode(Kind) u8` is its
// total inverse).
package enc

import "github.com/wasmcore/wasmcore/wasm"

// Value type tags (https://webassembly.github.io/spec/core/binary/types.html#value-types).
const (
	tagI32       byte = 0x7f
	tagI64       byte = 0x7e
	tagF32       byte = 0x7d
	tagF64       byte = 0x7c
	tagV128      byte = 0x7b
	tagFuncref   byte = 0x70
	tagExternref byte = 0x6f
	tagAnyref    byte = 0x6e
	tagEqref     byte = 0x6d
	tagI31ref    byte = 0x6c
	tagRefNull   byte = 0x6b
	tagRef       byte = 0x64
)

// DecodeNumericType decodes a bare numeric value-type tag.
func DecodeNumericType(b byte) (wasm.NumericType, bool) {
	switch b {
	case tagI32:
		return wasm.I32, true
	case tagI64:
		return wasm.I64, true
	case tagF32:
		return wasm.F32, true
	case tagF64:
		return wasm.F64, true
	}
	return 0, false
}

// EncodeNumericType is DecodeNumericType's inverse.
func EncodeNumericType(n wasm.NumericType) byte {
	switch n {
	case wasm.I32:
		return tagI32
	case wasm.I64:
		return tagI64
	case wasm.F32:
		return tagF32
	case wasm.F64:
		return tagF64
	}
	panic("enc: invalid numeric type")
}

// DecodeReferenceKind decodes a bare reference-kind tag.
func DecodeReferenceKind(b byte) (wasm.ReferenceKind, bool) {
	switch b {
	case tagFuncref:
		return wasm.Funcref, true
	case tagExternref:
		return wasm.Externref, true
	case tagAnyref:
		return wasm.Anyref, true
	case tagEqref:
		return wasm.Eqref, true
	case tagI31ref:
		return wasm.I31ref, true
	}
	return 0, false
}

// EncodeReferenceKind is DecodeReferenceKind's inverse.
func EncodeReferenceKind(r wasm.ReferenceKind) byte {
	switch r {
	case wasm.Funcref:
		return tagFuncref
	case wasm.Externref:
		return tagExternref
	case wasm.Anyref:
		return tagAnyref
	case wasm.Eqref:
		return tagEqref
	case wasm.I31ref:
		return tagI31ref
	}
	panic("enc: invalid reference kind")
}

// IsValueTypeTag reports whether b is any recognized value-type lead
// byte (numeric, v128, or a bare reference kind) — used by the reader
// to decide whether a `ref`/`ref null` prefix byte follows.
func IsValueTypeTag(b byte) bool {
	if _, ok := DecodeNumericType(b); ok {
		return true
	}
	if b == tagV128 {
		return true
	}
	_, ok := DecodeReferenceKind(b)
	return ok
}

// RefPrefix tags, for `ref <heap-type>` / `ref null <heap-type>`.
const (
	TagRef     = tagRef
	TagRefNull = tagRefNull
)
