package code

import (
	"bytes"

	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

// Encode writes instructions to buf, the mechanical inverse of Decode.
// Callers pass the full instruction list including its terminating
// `end` (Decode's contract), so Encode never appends one itself.
func Encode(buf *bytes.Buffer, instrs []wasm.Instruction) {
	for _, ins := range instrs {
		encodeOne(buf, ins)
	}
}

// EncodeConst writes a constant expression's instructions.
func EncodeConst(buf *bytes.Buffer, ce wasm.ConstExpr) {
	Encode(buf, ce.Instructions)
}

func encodeOne(buf *bytes.Buffer, ins wasm.Instruction) {
	op := ins.Opcode
	switch {
	case op&0xff00 == wasm.PrefixBulkRef:
		buf.WriteByte(0xfc)
		leb128.PutU32(buf, uint32(op&0xff))
	case op&0xff00 == wasm.PrefixSIMD:
		buf.WriteByte(0xfd)
		leb128.PutU32(buf, uint32(op&0xff))
	case op&0xff00 == wasm.PrefixThreads:
		buf.WriteByte(0xfe)
		leb128.PutU32(buf, uint32(op&0xff))
	default:
		buf.WriteByte(byte(op))
	}

	imm := ins.Immediate
	switch imm.Kind {
	case wasm.ImmNone:
	case wasm.ImmS32:
		leb128.PutS32(buf, imm.S32)
	case wasm.ImmS64:
		leb128.PutS64(buf, imm.S64)
	case wasm.ImmF32:
		putU32LE(buf, imm.F32Bits)
	case wasm.ImmF64:
		putU64LE(buf, imm.F64Bits)
	case wasm.ImmV128:
		buf.Write(imm.V128[:])
	case wasm.ImmIndex:
		leb128.PutU32(buf, imm.Index)
	case wasm.ImmBlock:
		EncodeBlockType(buf, imm.Block)
	case wasm.ImmBrTable:
		leb128.PutU32(buf, uint32(len(imm.BrTable.Labels)))
		for _, l := range imm.BrTable.Labels {
			leb128.PutU32(buf, uint32(l))
		}
		leb128.PutU32(buf, uint32(imm.BrTable.Default))
	case wasm.ImmCallIndirect:
		leb128.PutU32(buf, uint32(imm.CallInd.Type))
		leb128.PutU32(buf, uint32(imm.CallInd.Table))
	case wasm.ImmCopy:
		leb128.PutU32(buf, imm.Copy.Dst)
		leb128.PutU32(buf, imm.Copy.Src)
	case wasm.ImmInit:
		leb128.PutU32(buf, imm.Init.Segment)
		leb128.PutU32(buf, imm.Init.Dst)
	case wasm.ImmLet:
		EncodeBlockType(buf, imm.Let.Block)
		leb128.PutU32(buf, uint32(len(imm.Let.Locals)))
		for _, l := range imm.Let.Locals {
			leb128.PutU32(buf, l.Count)
			EncodeValueType(buf, l.Type)
		}
	case wasm.ImmMemArg:
		leb128.PutU32(buf, imm.MemArg.AlignLog2)
		leb128.PutU32(buf, uint32(imm.MemArg.Offset))
	case wasm.ImmHeapType:
		encodeHeapType(buf, imm.Heap)
	case wasm.ImmSelectT:
		leb128.PutU32(buf, uint32(len(imm.SelectTypes)))
		for _, t := range imm.SelectTypes {
			EncodeValueType(buf, t)
		}
	case wasm.ImmShuffle:
		buf.Write(imm.Shuffle[:])
	case wasm.ImmLaneIdx:
		buf.WriteByte(imm.Lane)
	}
}

// EncodeValueType writes one value type, the inverse of DecodeValueType.
func EncodeValueType(buf *bytes.Buffer, v wasm.ValueType) {
	switch v.Kind {
	case wasm.KindNumeric:
		buf.WriteByte(enc.EncodeNumericType(v.Numeric))
	case wasm.KindVector:
		buf.WriteByte(0x7b)
	case wasm.KindReference:
		r := v.Reference
		if !r.IsRef {
			buf.WriteByte(enc.EncodeReferenceKind(r.Kind))
			return
		}
		if r.Ref.Nullable {
			buf.WriteByte(enc.TagRefNull)
		} else {
			buf.WriteByte(enc.TagRef)
		}
		encodeHeapType(buf, r.Ref.Heap)
	}
}

func encodeHeapType(buf *bytes.Buffer, h wasm.HeapType) {
	if h.IsIndex {
		leb128.PutS32(buf, int32(h.Index))
		return
	}
	buf.WriteByte(enc.EncodeReferenceKind(h.Kind))
}

// EncodeBlockType writes a block type, the inverse of decodeBlockType.
func EncodeBlockType(buf *bytes.Buffer, bt wasm.BlockType) {
	switch bt.Kind {
	case wasm.BlockVoid:
		buf.WriteByte(0x40)
	case wasm.BlockValue:
		EncodeValueType(buf, bt.Value)
	case wasm.BlockTypeIndex:
		leb128.PutS32(buf, int32(bt.Index))
	}
}

func putU32LE(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}

func putU64LE(buf *bytes.Buffer, v uint64) {
	for i := 0; i < 8; i++ {
		buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}
