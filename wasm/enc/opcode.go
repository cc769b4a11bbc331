package enc

import "github.com/wasmcore/wasmcore/wasm"

// Single-byte control/parametric/variable/memory/numeric opcodes
// (https://webassembly.github.io/spec/core/binary/instructions.html).
// Named the way the teacher names its opcode constants
// (vertexvm/wasm/index.go: i32Const, getGlobal, end, ...), extended to
// the full MVP set plus the sign-extension and tail-call additions.
const (
	OpUnreachable wasm.Opcode = 0x00
	OpNop         wasm.Opcode = 0x01
	OpBlock       wasm.Opcode = 0x02
	OpLoop        wasm.Opcode = 0x03
	OpIf          wasm.Opcode = 0x04
	OpElse        wasm.Opcode = 0x05
	OpTry         wasm.Opcode = 0x06 // exceptions
	OpCatch       wasm.Opcode = 0x07 // exceptions
	OpThrow       wasm.Opcode = 0x08 // exceptions
	OpRethrow     wasm.Opcode = 0x09 // exceptions
	OpEnd         wasm.Opcode = 0x0b
	OpBr          wasm.Opcode = 0x0c
	OpBrIf        wasm.Opcode = 0x0d
	OpBrTable     wasm.Opcode = 0x0e
	OpReturn      wasm.Opcode = 0x0f
	OpCall        wasm.Opcode = 0x10
	OpCallIndirect wasm.Opcode = 0x11
	OpReturnCall   wasm.Opcode = 0x12 // tail-call
	OpReturnCallIndirect wasm.Opcode = 0x13 // tail-call
	OpDelegate     wasm.Opcode = 0x18 // exceptions
	OpCatchAll     wasm.Opcode = 0x19 // exceptions

	OpDrop   wasm.Opcode = 0x1a
	OpSelect wasm.Opcode = 0x1b
	OpSelectT wasm.Opcode = 0x1c // typed select, reference-types

	OpLocalGet  wasm.Opcode = 0x20
	OpLocalSet  wasm.Opcode = 0x21
	OpLocalTee  wasm.Opcode = 0x22
	OpGlobalGet wasm.Opcode = 0x23
	OpGlobalSet wasm.Opcode = 0x24
	OpTableGet  wasm.Opcode = 0x25 // reference-types
	OpTableSet  wasm.Opcode = 0x26 // reference-types

	OpI32Load    wasm.Opcode = 0x28
	OpI64Load    wasm.Opcode = 0x29
	OpF32Load    wasm.Opcode = 0x2a
	OpF64Load    wasm.Opcode = 0x2b
	OpI32Load8S  wasm.Opcode = 0x2c
	OpI32Load8U  wasm.Opcode = 0x2d
	OpI32Load16S wasm.Opcode = 0x2e
	OpI32Load16U wasm.Opcode = 0x2f
	OpI64Load8S  wasm.Opcode = 0x30
	OpI64Load8U  wasm.Opcode = 0x31
	OpI64Load16S wasm.Opcode = 0x32
	OpI64Load16U wasm.Opcode = 0x33
	OpI64Load32S wasm.Opcode = 0x34
	OpI64Load32U wasm.Opcode = 0x35
	OpI32Store   wasm.Opcode = 0x36
	OpI64Store   wasm.Opcode = 0x37
	OpF32Store   wasm.Opcode = 0x38
	OpF64Store   wasm.Opcode = 0x39
	OpI32Store8  wasm.Opcode = 0x3a
	OpI32Store16 wasm.Opcode = 0x3b
	OpI64Store8  wasm.Opcode = 0x3c
	OpI64Store16 wasm.Opcode = 0x3d
	OpI64Store32 wasm.Opcode = 0x3e
	OpMemorySize wasm.Opcode = 0x3f
	OpMemoryGrow wasm.Opcode = 0x40

	OpI32Const wasm.Opcode = 0x41
	OpI64Const wasm.Opcode = 0x42
	OpF32Const wasm.Opcode = 0x43
	OpF64Const wasm.Opcode = 0x44

	// Comparisons and arithmetic: these occupy a dense contiguous range
	// (0x45-0xc4) whose individual names matter only for
	// pretty-printing, never for decode/encode/validate, so they are
	// represented by range boundaries rather than 130 individual
	// constants (the validator and writer only need "is this opcode in
	// the numeric range, and what is its type signature", answered by
	// NumericSignature below).
	OpI32Eqz wasm.Opcode = 0x45
	OpI64Eqz wasm.Opcode = 0x50
	OpF64Ge  wasm.Opcode = 0x66
	OpI32WrapI64     wasm.Opcode = 0xa7
	OpI32TruncF32S   wasm.Opcode = 0xa8
	OpI64ExtendI32S  wasm.Opcode = 0xac
	OpI64ExtendI32U  wasm.Opcode = 0xad
	OpF32ConvertI32S wasm.Opcode = 0xb2
	OpF64ConvertI64U wasm.Opcode = 0xba
	OpF32DemoteF64   wasm.Opcode = 0xb6
	OpF64PromoteF32  wasm.Opcode = 0xbb
	OpI32ReinterpretF32 wasm.Opcode = 0xbc
	OpI64ReinterpretF64 wasm.Opcode = 0xbd
	OpF32ReinterpretI32 wasm.Opcode = 0xbe
	OpF64ReinterpretI64 wasm.Opcode = 0xbf

	// Sign-extension feature.
	OpI32Extend8S  wasm.Opcode = 0xc0
	OpI32Extend16S wasm.Opcode = 0xc1
	OpI64Extend8S  wasm.Opcode = 0xc2
	OpI64Extend16S wasm.Opcode = 0xc3
	OpI64Extend32S wasm.Opcode = 0xc4

	// Reference types / function-references.
	OpRefNull   wasm.Opcode = 0xd0
	OpRefIsNull wasm.Opcode = 0xd1
	OpRefFunc   wasm.Opcode = 0xd2
	OpRefAsNonNull wasm.Opcode = 0xd3 // function-references
	OpBrOnNull     wasm.Opcode = 0xd4 // function-references
	OpBrOnNonNull  wasm.Opcode = 0xd6 // function-references
)

// 0xfc-prefixed opcodes: saturating float-to-int conversions plus the
// bulk-memory/reference-types table and memory operations.
const (
	OpI32TruncSatF32S wasm.Opcode = wasm.PrefixBulkRef | 0x00
	OpI32TruncSatF32U wasm.Opcode = wasm.PrefixBulkRef | 0x01
	OpI32TruncSatF64S wasm.Opcode = wasm.PrefixBulkRef | 0x02
	OpI32TruncSatF64U wasm.Opcode = wasm.PrefixBulkRef | 0x03
	OpI64TruncSatF32S wasm.Opcode = wasm.PrefixBulkRef | 0x04
	OpI64TruncSatF32U wasm.Opcode = wasm.PrefixBulkRef | 0x05
	OpI64TruncSatF64S wasm.Opcode = wasm.PrefixBulkRef | 0x06
	OpI64TruncSatF64U wasm.Opcode = wasm.PrefixBulkRef | 0x07

	OpMemoryInit wasm.Opcode = wasm.PrefixBulkRef | 0x08
	OpDataDrop   wasm.Opcode = wasm.PrefixBulkRef | 0x09
	OpMemoryCopy wasm.Opcode = wasm.PrefixBulkRef | 0x0a
	OpMemoryFill wasm.Opcode = wasm.PrefixBulkRef | 0x0b
	OpTableInit  wasm.Opcode = wasm.PrefixBulkRef | 0x0c
	OpElemDrop   wasm.Opcode = wasm.PrefixBulkRef | 0x0d
	OpTableCopy  wasm.Opcode = wasm.PrefixBulkRef | 0x0e
	OpTableGrow  wasm.Opcode = wasm.PrefixBulkRef | 0x0f
	OpTableSize  wasm.Opcode = wasm.PrefixBulkRef | 0x10
	OpTableFill  wasm.Opcode = wasm.PrefixBulkRef | 0x11
)

// 0xfd-prefixed SIMD opcodes: a representative, commonly-exercised
// subset (v128 memory ops, the constant form, lane access, and a
// sample of arithmetic) rather than the full ~236-opcode catalog.
// Unlisted SIMD opcodes are still accepted, under a numeric Opcode
// value instead of a named constant, but wasm/code decodes them with
// no immediate, so only those that take none round-trip. See
// DESIGN.md for the scope note.
const (
	OpV128Load  wasm.Opcode = wasm.PrefixSIMD | 0x00
	OpV128Store wasm.Opcode = wasm.PrefixSIMD | 0x0b
	OpV128Const wasm.Opcode = wasm.PrefixSIMD | 0x0c
	OpI8x16Shuffle wasm.Opcode = wasm.PrefixSIMD | 0x0d
	OpI8x16ExtractLaneS wasm.Opcode = wasm.PrefixSIMD | 0x15
	OpI8x16ReplaceLane  wasm.Opcode = wasm.PrefixSIMD | 0x17
	OpI32x4Splat        wasm.Opcode = wasm.PrefixSIMD | 0x11
	OpV128Not           wasm.Opcode = wasm.PrefixSIMD | 0x4d
	OpI32x4Add          wasm.Opcode = wasm.PrefixSIMD | 0xae
)

// 0xfe-prefixed threads opcodes: atomic memory ops and the
// shared-memory `memory.atomic.notify`/`wait` pair. Like SIMD, a
// representative subset; the memarg immediate shape covers the rest.
const (
	OpMemoryAtomicNotify wasm.Opcode = wasm.PrefixThreads | 0x00
	OpMemoryAtomicWait32 wasm.Opcode = wasm.PrefixThreads | 0x01
	OpMemoryAtomicWait64 wasm.Opcode = wasm.PrefixThreads | 0x02
	OpAtomicFence        wasm.Opcode = wasm.PrefixThreads | 0x03
	OpI32AtomicLoad      wasm.Opcode = wasm.PrefixThreads | 0x10
	OpI32AtomicRmwAdd    wasm.Opcode = wasm.PrefixThreads | 0x1e
)

// IsKnownOpcode reports whether b names an assigned instruction opcode
// in the unprefixed (single-byte) opcode space, per the ranges the
// public Wasm binary encoding spec actually assigns
// (https://webassembly.github.io/spec/core/binary/instructions.html).
// The proposals process leaves several byte ranges unclaimed (0x0a, 0x14-0x17,
// 0x1d-0x1f, 0x27, 0xc5-0xcf, 0xd5, 0xd7-0xff); a decoder that turns one
// of those bytes into an Opcode value anyway treats garbage as a no-op
// instead of rejecting it. This does not cover the 0xfc/0xfd/0xfe
// prefixed spaces: SIMD and threads opcodes outside the representative
// subset this package names are a deliberate scope cut (see DESIGN.md),
// not a soundness gap, so they are never rejected here.
func IsKnownOpcode(b byte) bool {
	switch {
	case b <= 0x13: // unreachable .. return_call_indirect
		return b != 0x0a
	case b >= 0x18 && b <= 0x1c: // delegate, catch_all, drop, select, select t
		return true
	case b >= 0x20 && b <= 0x26: // local/global get/set/tee, table.get/set
		return true
	case b >= 0x28 && b <= 0x40: // loads, stores, memory.size/grow
		return true
	case b >= 0x41 && b <= 0xc4: // consts, comparisons, arithmetic, conversions, sign-extension
		return true
	case b >= 0xd0 && b <= 0xd4: // ref.null, ref.is_null, ref.func, ref.as_non_null, br_on_null
		return true
	case b == 0xd6: // br_on_non_null
		return true
	}
	return false
}

// NumericSignature reports the [params] -> [results] type signature
// of a dense-range numeric opcode (everything in 0x45..0xbf plus the
// sign-extension and saturating-conversion ranges). This is what the
// validator actually needs from "which exact opcode" — not a name.
func NumericSignature(op wasm.Opcode) (params, results []wasm.NumericType, ok bool) {
	sig, ok := numericSignatures[op]
	if !ok {
		return nil, nil, false
	}
	return sig.params, sig.results, true
}

type numSig struct {
	params  []wasm.NumericType
	results []wasm.NumericType
}

func unop(t wasm.NumericType) numSig   { return numSig{[]wasm.NumericType{t}, []wasm.NumericType{t}} }
func binop(t wasm.NumericType) numSig  { return numSig{[]wasm.NumericType{t, t}, []wasm.NumericType{t}} }
func testop(t wasm.NumericType) numSig { return numSig{[]wasm.NumericType{t}, []wasm.NumericType{wasm.I32}} }
func relop(t wasm.NumericType) numSig  { return numSig{[]wasm.NumericType{t, t}, []wasm.NumericType{wasm.I32}} }
func cvt(from, to wasm.NumericType) numSig {
	return numSig{[]wasm.NumericType{from}, []wasm.NumericType{to}}
}

// numericSignatures is built once from the contiguous MVP numeric
// instruction ranges (https://webassembly.github.io/spec/core/binary/instructions.html#numeric-instructions),
// table-driven rather than 130 switch cases, matching each opcode byte
// to its operator class by arithmetic on the byte value.
var numericSignatures = buildNumericSignatures()

func buildNumericSignatures() map[wasm.Opcode]numSig {
	m := map[wasm.Opcode]numSig{}
	// i32 test/relops: 0x45 eqz, 0x46-0x4f compare
	m[0x45] = testop(wasm.I32)
	for i, op := range []wasm.Opcode{0x46, 0x47, 0x48, 0x49, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f} {
		_ = i
		m[op] = relop(wasm.I32)
	}
	m[0x50] = testop(wasm.I64)
	for _, op := range []wasm.Opcode{0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59, 0x5a} {
		m[op] = relop(wasm.I64)
	}
	for _, op := range []wasm.Opcode{0x5b, 0x5c, 0x5d, 0x5e, 0x5f, 0x60} {
		m[op] = relop(wasm.F32)
	}
	for _, op := range []wasm.Opcode{0x61, 0x62, 0x63, 0x64, 0x65, 0x66} {
		m[op] = relop(wasm.F64)
	}
	for _, op := range []wasm.Opcode{0x67, 0x68, 0x69} {
		m[op] = unop(wasm.I32)
	}
	for op := wasm.Opcode(0x6a); op <= 0x78; op++ {
		m[op] = binop(wasm.I32)
	}
	for _, op := range []wasm.Opcode{0x79, 0x7a, 0x7b} {
		m[op] = unop(wasm.I64)
	}
	for op := wasm.Opcode(0x7c); op <= 0x8a; op++ {
		m[op] = binop(wasm.I64)
	}
	for _, op := range []wasm.Opcode{0x8b, 0x8c, 0x8d, 0x8e, 0x8f, 0x90, 0x91} {
		m[op] = unop(wasm.F32)
	}
	for op := wasm.Opcode(0x92); op <= 0x98; op++ {
		m[op] = binop(wasm.F32)
	}
	for _, op := range []wasm.Opcode{0x99, 0x9a, 0x9b, 0x9c, 0x9d, 0x9e, 0x9f} {
		m[op] = unop(wasm.F64)
	}
	for op := wasm.Opcode(0xa0); op <= 0xa6; op++ {
		m[op] = binop(wasm.F64)
	}
	// Conversions, 0xa7-0xbf.
	m[0xa7] = cvt(wasm.I64, wasm.I32) // wrap
	m[0xa8] = cvt(wasm.F32, wasm.I32)
	m[0xa9] = cvt(wasm.F32, wasm.I32)
	m[0xaa] = cvt(wasm.F64, wasm.I32)
	m[0xab] = cvt(wasm.F64, wasm.I32)
	m[0xac] = cvt(wasm.I32, wasm.I64)
	m[0xad] = cvt(wasm.I32, wasm.I64)
	m[0xae] = cvt(wasm.F32, wasm.I64)
	m[0xaf] = cvt(wasm.F32, wasm.I64)
	m[0xb0] = cvt(wasm.F64, wasm.I64)
	m[0xb1] = cvt(wasm.F64, wasm.I64)
	m[0xb2] = cvt(wasm.I32, wasm.F32)
	m[0xb3] = cvt(wasm.I32, wasm.F32)
	m[0xb4] = cvt(wasm.I64, wasm.F32)
	m[0xb5] = cvt(wasm.I64, wasm.F32)
	m[0xb6] = cvt(wasm.F64, wasm.F32) // demote
	m[0xb7] = cvt(wasm.I32, wasm.F64)
	m[0xb8] = cvt(wasm.I32, wasm.F64)
	m[0xb9] = cvt(wasm.I64, wasm.F64)
	m[0xba] = cvt(wasm.I64, wasm.F64)
	m[0xbb] = cvt(wasm.F32, wasm.F64) // promote
	m[0xbc] = cvt(wasm.F32, wasm.I32) // reinterpret
	m[0xbd] = cvt(wasm.F64, wasm.I64)
	m[0xbe] = cvt(wasm.I32, wasm.F32)
	m[0xbf] = cvt(wasm.I64, wasm.F64)
	// Sign extension.
	m[0xc0] = unop(wasm.I32)
	m[0xc1] = unop(wasm.I32)
	m[0xc2] = unop(wasm.I64)
	m[0xc3] = unop(wasm.I64)
	m[0xc4] = unop(wasm.I64)
	// Saturating truncation (0xfc prefixed).
	for _, op := range []wasm.Opcode{OpI32TruncSatF32S, OpI32TruncSatF32U} {
		m[op] = cvt(wasm.F32, wasm.I32)
	}
	for _, op := range []wasm.Opcode{OpI32TruncSatF64S, OpI32TruncSatF64U} {
		m[op] = cvt(wasm.F64, wasm.I32)
	}
	for _, op := range []wasm.Opcode{OpI64TruncSatF32S, OpI64TruncSatF32U} {
		m[op] = cvt(wasm.F32, wasm.I64)
	}
	for _, op := range []wasm.Opcode{OpI64TruncSatF64S, OpI64TruncSatF64U} {
		m[op] = cvt(wasm.F64, wasm.I64)
	}
	return m
}
