// Package code is the instruction-level decoder and encoder: reading
// and writing the variable-length opcode stream that makes up a
// function body or a constant expression. Split out from package wasm
// (the pure data model) and from wasm/lazy (section framing) so that
// both the eager reader and any lazy consumer that wants to peek at a
// code body can share one implementation, per spec.md §4.3's "lazy vs
// eager" design note: code bodies stay raw []byte in lazy mode, and
// this package is what turns such a span into []wasm.Instruction on
// demand.
package code

import (
	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/util"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

// Decode reads instructions from c until the `end` that closes the
// top-level expression (the `end`s of nested block/loop/if/try
// constructs are counted and do not stop it), per the grammar of
// https://webassembly.github.io/spec/core/binary/instructions.html#expressions.
// It returns every instruction including the terminating end
// itself, the way the validator's control-stack pass needs to see it.
func Decode(c *util.Cursor, f feature.Set, sink errs.Sink) ([]wasm.Instruction, error) {
	var out []wasm.Instruction
	depth := 0
	for {
		ins, err := decodeOne(c, f, sink)
		if err != nil {
			return out, err
		}
		out = append(out, ins)
		switch ins.Opcode {
		case enc.OpBlock, enc.OpLoop, enc.OpIf, enc.OpTry:
			depth++
		case enc.OpEnd:
			if depth == 0 {
				return out, nil
			}
			depth--
		}
	}
}

// DecodeConst reads a constant expression: a restricted instruction
// list, terminated by `end`, used to initialize globals and segment
// offsets (spec.md §3, Glossary "Constant expression"). Decoding
// itself accepts any opcode; valid.Structural rejects non-constant ones, per
// spec.md §7's "validation never aborts early" — decode failures are
// format errors, constant-ness is a type/structural error reported
// later by the validator.
func DecodeConst(c *util.Cursor, f feature.Set, sink errs.Sink) (wasm.ConstExpr, error) {
	ins, err := Decode(c, f, sink)
	return wasm.ConstExpr{Instructions: ins}, err
}

func decodeOne(c *util.Cursor, f feature.Set, sink errs.Sink) (wasm.Instruction, error) {
	off := c.Offset()
	b, err := c.ReadByte()
	if err != nil {
		return wasm.Instruction{}, errs.New(off, errs.UnexpectedEOF, "eof reading opcode")
	}

	op := wasm.Opcode(b)
	switch b {
	case 0xfc:
		suffix, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		op = wasm.PrefixBulkRef | wasm.Opcode(suffix)
	case 0xfd:
		suffix, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		op = wasm.PrefixSIMD | wasm.Opcode(suffix)
		if !f.SIMD {
			return wasm.Instruction{}, errs.New(off, errs.UnknownFeature, "simd opcode %#x without the simd feature", suffix)
		}
	case 0xfe:
		suffix, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		op = wasm.PrefixThreads | wasm.Opcode(suffix)
		if !f.Threads {
			return wasm.Instruction{}, errs.New(off, errs.UnknownFeature, "threads opcode %#x without the threads feature", suffix)
		}
	default:
		if !enc.IsKnownOpcode(b) {
			return wasm.Instruction{}, errs.New(off, errs.UnknownOpcode, "unknown opcode %#x", b)
		}
	}

	imm, err := decodeImmediate(c, f, sink, off, op)
	if err != nil {
		return wasm.Instruction{}, err
	}
	return wasm.Instruction{Opcode: op, Immediate: imm}, nil
}

func decodeImmediate(c *util.Cursor, f feature.Set, sink errs.Sink, off int64, op wasm.Opcode) (wasm.Immediate, error) {
	switch op {
	case enc.OpBlock, enc.OpLoop, enc.OpIf, enc.OpTry:
		bt, err := decodeBlockType(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmBlock, Block: bt}, nil

	case enc.OpBr, enc.OpBrIf, enc.OpReturnCall, enc.OpCall, enc.OpLocalGet, enc.OpLocalSet, enc.OpLocalTee,
		enc.OpGlobalGet, enc.OpGlobalSet, enc.OpTableGet, enc.OpTableSet, enc.OpRefFunc, enc.OpTableSize,
		enc.OpElemDrop, enc.OpDataDrop, enc.OpThrow, enc.OpRethrow, enc.OpCatch, enc.OpDelegate,
		enc.OpBrOnNull, enc.OpBrOnNonNull:
		idx, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmIndex, Index: idx}, nil

	case enc.OpBrTable:
		n, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		labels := make([]wasm.LabelIdx, n)
		for i := range labels {
			v, err := leb128.ReadU32(c)
			if err != nil {
				return wasm.Immediate{}, err
			}
			labels[i] = wasm.LabelIdx(v)
		}
		def, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmBrTable, BrTable: wasm.BrTable{Labels: labels, Default: wasm.LabelIdx(def)}}, nil

	case enc.OpCallIndirect, enc.OpReturnCallIndirect:
		typeIdx, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		tableIdx, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmCallIndirect, CallInd: wasm.CallIndirectImm{
			Type: wasm.TypeIdx(typeIdx), Table: wasm.TableIdx(tableIdx),
		}}, nil

	case enc.OpTableCopy, enc.OpMemoryCopy:
		dst, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		src, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmCopy, Copy: wasm.CopyImm{Dst: dst, Src: src}}, nil

	case enc.OpTableInit, enc.OpMemoryInit:
		seg, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		dst, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmInit, Init: wasm.InitImm{Segment: seg, Dst: dst}}, nil

	case enc.OpTableGrow, enc.OpTableFill:
		idx, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmIndex, Index: idx}, nil

	case enc.OpMemorySize, enc.OpMemoryGrow:
		// Reserved memory-index byte (always 0 in the MVP, a real index
		// under the multi-memory feature), minimally LEB128-encoded.
		idx, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmIndex, Index: idx}, nil

	case enc.OpI32Const:
		v, err := leb128.ReadS32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmS32, S32: v}, nil

	case enc.OpI64Const:
		v, err := leb128.ReadS64(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmS64, S64: v}, nil

	case enc.OpF32Const:
		v, err := c.ReadU32LE()
		if err != nil {
			return wasm.Immediate{}, errs.New(off, errs.UnexpectedEOF, "eof reading f32 immediate")
		}
		return wasm.Immediate{Kind: wasm.ImmF32, F32Bits: v}, nil

	case enc.OpF64Const:
		v, err := c.ReadU64LE()
		if err != nil {
			return wasm.Immediate{}, errs.New(off, errs.UnexpectedEOF, "eof reading f64 immediate")
		}
		return wasm.Immediate{Kind: wasm.ImmF64, F64Bits: v}, nil

	case enc.OpRefNull:
		ht, err := decodeHeapType(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmHeapType, Heap: ht}, nil

	case enc.OpSelectT:
		n, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		types := make([]wasm.ValueType, n)
		for i := range types {
			vt, err := DecodeValueType(c)
			if err != nil {
				return wasm.Immediate{}, err
			}
			types[i] = vt
		}
		return wasm.Immediate{Kind: wasm.ImmSelectT, SelectTypes: types}, nil

	case enc.OpI8x16Shuffle:
		var lanes [16]byte
		for i := range lanes {
			b, err := c.ReadByte()
			if err != nil {
				return wasm.Immediate{}, errs.New(off, errs.UnexpectedEOF, "eof reading shuffle lanes")
			}
			lanes[i] = b
		}
		return wasm.Immediate{Kind: wasm.ImmShuffle, Shuffle: lanes}, nil

	case enc.OpV128Const:
		raw, err := c.ReadBytes(16)
		if err != nil {
			return wasm.Immediate{}, errs.New(off, errs.UnexpectedEOF, "eof reading v128 immediate")
		}
		var v [16]byte
		copy(v[:], raw)
		return wasm.Immediate{Kind: wasm.ImmV128, V128: v}, nil

	case enc.OpI8x16ExtractLaneS, enc.OpI8x16ReplaceLane:
		b, err := c.ReadByte()
		if err != nil {
			return wasm.Immediate{}, errs.New(off, errs.UnexpectedEOF, "eof reading lane index")
		}
		return wasm.Immediate{Kind: wasm.ImmLaneIdx, Lane: b}, nil

	case enc.OpAtomicFence:
		// Reserved byte, always 0.
		_, err := leb128.ReadU32(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmNone}, nil

	default:
		if isMemoryOpcode(op) || isAtomicMemOpcode(op) {
			return decodeMemArg(c, off)
		}
		return wasm.Immediate{Kind: wasm.ImmNone}, nil
	}
}

func isMemoryOpcode(op wasm.Opcode) bool {
	switch op {
	case enc.OpI32Load, enc.OpI64Load, enc.OpF32Load, enc.OpF64Load,
		enc.OpI32Load8S, enc.OpI32Load8U, enc.OpI32Load16S, enc.OpI32Load16U,
		enc.OpI64Load8S, enc.OpI64Load8U, enc.OpI64Load16S, enc.OpI64Load16U, enc.OpI64Load32S, enc.OpI64Load32U,
		enc.OpI32Store, enc.OpI64Store, enc.OpF32Store, enc.OpF64Store,
		enc.OpI32Store8, enc.OpI32Store16, enc.OpI64Store8, enc.OpI64Store16, enc.OpI64Store32,
		enc.OpV128Load, enc.OpV128Store:
		return true
	}
	return false
}

// isAtomicMemOpcode reports whether op is one of the threads-prefixed
// opcodes that carries a memarg: the notify/wait pair (suffix 0x00-0x02)
// and every atomic load/store/rmw op (suffix >= 0x10). Suffix 0x03 is
// atomic.fence, handled separately since it has no memarg.
func isAtomicMemOpcode(op wasm.Opcode) bool {
	if !op.IsPrefixed() || op&0xff00 != wasm.PrefixThreads {
		return false
	}
	suffix := op & 0xff
	return suffix <= 0x02 || suffix >= 0x10
}

func decodeMemArg(c *util.Cursor, off int64) (wasm.Immediate, error) {
	align, err := leb128.ReadU32(c)
	if err != nil {
		return wasm.Immediate{}, err
	}
	offset, err := leb128.ReadU32(c)
	if err != nil {
		return wasm.Immediate{}, err
	}
	return wasm.Immediate{Kind: wasm.ImmMemArg, MemArg: wasm.MemArg{AlignLog2: align, Offset: uint64(offset)}}, nil
}

// DecodeValueType reads one value type (numeric, v128, bare reference
// kind, or full `ref [null] <heap-type>`), per spec.md §3.
func DecodeValueType(c *util.Cursor) (wasm.ValueType, error) {
	off := c.Offset()
	b, err := c.ReadByte()
	if err != nil {
		return wasm.ValueType{}, errs.New(off, errs.UnexpectedEOF, "eof reading value type")
	}
	if n, ok := enc.DecodeNumericType(b); ok {
		return wasm.NumericValue(n), nil
	}
	if b == 0x7b {
		return wasm.VectorValue(), nil
	}
	if r, ok := enc.DecodeReferenceKind(b); ok {
		return wasm.ReferenceValue(wasm.ReferenceType{Kind: r}), nil
	}
	if b == enc.TagRef || b == enc.TagRefNull {
		nullable := b == enc.TagRefNull
		ht, err := decodeHeapType(c)
		if err != nil {
			return wasm.ValueType{}, err
		}
		return wasm.ReferenceValue(wasm.ReferenceType{IsRef: true, Ref: wasm.RefType{Nullable: nullable, Heap: ht}}), nil
	}
	return wasm.ValueType{}, errs.New(off, errs.TypeMismatch, "unrecognized value type tag %#x", b)
}

func decodeHeapType(c *util.Cursor) (wasm.HeapType, error) {
	off := c.Offset()
	b, err := c.PeekByte()
	if err != nil {
		return wasm.HeapType{}, errs.New(off, errs.UnexpectedEOF, "eof reading heap type")
	}
	if r, ok := enc.DecodeReferenceKind(b); ok {
		c.ReadByte()
		return wasm.HeapType{Kind: r}, nil
	}
	idx, err := leb128.ReadS32(c)
	if err != nil {
		return wasm.HeapType{}, err
	}
	return wasm.HeapType{IsIndex: true, Index: wasm.TypeIdx(uint32(idx))}, nil
}

func decodeBlockType(c *util.Cursor) (wasm.BlockType, error) {
	off := c.Offset()
	b, err := c.PeekByte()
	if err != nil {
		return wasm.BlockType{}, errs.New(off, errs.UnexpectedEOF, "eof reading block type")
	}
	if b == 0x40 {
		c.ReadByte()
		return wasm.BlockType{Kind: wasm.BlockVoid}, nil
	}
	if enc.IsValueTypeTag(b) {
		vt, err := DecodeValueType(c)
		if err != nil {
			return wasm.BlockType{}, err
		}
		return wasm.BlockType{Kind: wasm.BlockValue, Value: vt}, nil
	}
	idx, err := leb128.ReadS32(c)
	if err != nil {
		return wasm.BlockType{}, err
	}
	return wasm.BlockType{Kind: wasm.BlockTypeIndex, Index: wasm.TypeIdx(uint32(idx))}, nil
}
