package lazy

import (
	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/util"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/code"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

const funcTypeForm byte = 0x60

// DecodeTypeSection reads the type section's vector of function types,
// grounded on the teacher's readSectionType (vertexvm/wasm/module.go).
func DecodeTypeSection(body *util.Cursor) ([]wasm.FuncType, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.FuncType, n)
	for i := range out {
		off := body.Offset()
		form, err := body.ReadByte()
		if err != nil {
			return out, err
		}
		if form != funcTypeForm {
			return out, errs.New(off, errs.TypeMismatch, "function type form byte %#x, want 0x60", form)
		}
		params, err := decodeValueTypeVec(body)
		if err != nil {
			return out, err
		}
		results, err := decodeValueTypeVec(body)
		if err != nil {
			return out, err
		}
		out[i] = wasm.FuncType{Params: params, Results: results}
	}
	return out, nil
}

func decodeValueTypeVec(body *util.Cursor) ([]wasm.ValueType, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ValueType, n)
	for i := range out {
		vt, err := code.DecodeValueType(body)
		if err != nil {
			return out, err
		}
		out[i] = vt
	}
	return out, nil
}

// DecodeImportSection reads the import section, grounded on the
// teacher's readSectionImport.
func DecodeImportSection(body *util.Cursor) ([]wasm.Import, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Import, n)
	for i := range out {
		mod, err := decodeName(body)
		if err != nil {
			return out, err
		}
		name, err := decodeName(body)
		if err != nil {
			return out, err
		}
		off := body.Offset()
		kindByte, err := body.ReadByte()
		if err != nil {
			return out, err
		}
		kind, ok := enc.DecodeExternalKind(kindByte)
		if !ok {
			return out, errs.New(off, errs.TypeMismatch, "unknown import kind byte %#x", kindByte)
		}
		desc := wasm.ImportDesc{Kind: kind}
		switch kind {
		case wasm.ExternalFunc:
			idx, err := leb128.ReadU32(body)
			if err != nil {
				return out, err
			}
			desc.Type = wasm.TypeIdx(idx)
		case wasm.ExternalTable:
			t, err := DecodeTableType(body)
			if err != nil {
				return out, err
			}
			desc.Table = t
		case wasm.ExternalMem:
			mt, err := DecodeMemType(body)
			if err != nil {
				return out, err
			}
			desc.Mem = mt
		case wasm.ExternalGlobal:
			gt, err := DecodeGlobalType(body)
			if err != nil {
				return out, err
			}
			desc.Global = gt
		case wasm.ExternalEvent:
			et, err := decodeEventType(body)
			if err != nil {
				return out, err
			}
			desc.Event = et
		}
		out[i] = wasm.Import{Module: mod, Name: name, Desc: desc}
	}
	return out, nil
}

// DecodeFunctionSection reads the function section's type-index
// vector, grounded on readSectionFunction.
func DecodeFunctionSection(body *util.Cursor) ([]wasm.TypeIdx, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.TypeIdx, n)
	for i := range out {
		v, err := leb128.ReadU32(body)
		if err != nil {
			return out, err
		}
		out[i] = wasm.TypeIdx(v)
	}
	return out, nil
}

// DecodeTableSection reads the table section, grounded on readSectionTable.
func DecodeTableSection(body *util.Cursor) ([]wasm.TableType, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.TableType, n)
	for i := range out {
		t, err := DecodeTableType(body)
		if err != nil {
			return out, err
		}
		out[i] = t
	}
	return out, nil
}

// DecodeTableType reads one table type: element reference type plus limits.
func DecodeTableType(body *util.Cursor) (wasm.TableType, error) {
	off := body.Offset()
	b, err := body.PeekByte()
	if err != nil {
		return wasm.TableType{}, errs.New(off, errs.UnexpectedEOF, "eof reading table element type")
	}
	var elem wasm.ReferenceType
	if b == enc.TagRef || b == enc.TagRefNull {
		vt, err := code.DecodeValueType(body)
		if err != nil {
			return wasm.TableType{}, err
		}
		elem = vt.Reference
	} else {
		body.ReadByte()
		rk, ok := enc.DecodeReferenceKind(b)
		if !ok {
			return wasm.TableType{}, errs.New(off, errs.TypeMismatch, "invalid table element type %#x", b)
		}
		elem = wasm.ReferenceType{Kind: rk}
	}
	limits, err := DecodeLimits(body)
	if err != nil {
		return wasm.TableType{}, err
	}
	return wasm.TableType{Limits: limits, Element: elem}, nil
}

// DecodeMemorySection reads the memory section, grounded on readSectionMemory.
func DecodeMemorySection(body *util.Cursor) ([]wasm.MemType, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.MemType, n)
	for i := range out {
		m, err := DecodeMemType(body)
		if err != nil {
			return out, err
		}
		out[i] = m
	}
	return out, nil
}

// DecodeMemType reads one memory type.
func DecodeMemType(body *util.Cursor) (wasm.MemType, error) {
	limits, err := DecodeLimits(body)
	if err != nil {
		return wasm.MemType{}, err
	}
	return wasm.MemType{Limits: limits}, nil
}

// DecodeLimits reads a limits pair, per
// https://webassembly.github.io/spec/core/binary/types.html#limits plus
// the threads (shared) and memory64 (index64) extension flag bits.
func DecodeLimits(body *util.Cursor) (wasm.Limits, error) {
	off := body.Offset()
	flags, err := body.ReadByte()
	if err != nil {
		return wasm.Limits{}, errs.New(off, errs.UnexpectedEOF, "eof reading limits flags")
	}
	hasMax := flags&0x01 != 0
	shared := flags&0x02 != 0
	index64 := flags&0x04 != 0
	min, err := leb128.ReadU32(body)
	if err != nil {
		return wasm.Limits{}, err
	}
	var max uint32
	if hasMax {
		max, err = leb128.ReadU32(body)
		if err != nil {
			return wasm.Limits{}, err
		}
	}
	if shared && !hasMax {
		return wasm.Limits{}, errs.New(off, errs.InvalidLimits, "shared memory must declare a maximum")
	}
	return wasm.Limits{Min: min, Max: max, HasMax: hasMax, Shared: shared, Index64: index64}, nil
}

// DecodeGlobalType reads a value type plus mutability byte.
func DecodeGlobalType(body *util.Cursor) (wasm.GlobalType, error) {
	vt, err := code.DecodeValueType(body)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	off := body.Offset()
	b, err := body.ReadByte()
	if err != nil {
		return wasm.GlobalType{}, errs.New(off, errs.UnexpectedEOF, "eof reading mutability")
	}
	mut, ok := enc.DecodeMutability(b)
	if !ok {
		return wasm.GlobalType{}, errs.New(off, errs.TypeMismatch, "invalid mutability byte %#x", b)
	}
	return wasm.GlobalType{Value: vt, Mut: mut}, nil
}

func decodeEventType(body *util.Cursor) (wasm.EventType, error) {
	off := body.Offset()
	attr, err := body.ReadByte()
	if err != nil {
		return wasm.EventType{}, errs.New(off, errs.UnexpectedEOF, "eof reading event attribute")
	}
	idx, err := leb128.ReadU32(body)
	if err != nil {
		return wasm.EventType{}, err
	}
	return wasm.EventType{Attribute: wasm.EventAttribute(attr), Type: wasm.TypeIdx(idx)}, nil
}

// DecodeGlobalSection reads the global section, grounded on readSectionGlobal.
func DecodeGlobalSection(body *util.Cursor, f feature.Set, sink errs.Sink) ([]wasm.Global, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Global, n)
	for i := range out {
		gt, err := DecodeGlobalType(body)
		if err != nil {
			return out, err
		}
		init, err := code.DecodeConst(body, f, sink)
		if err != nil {
			return out, err
		}
		out[i] = wasm.Global{Type: gt, Init: init}
	}
	return out, nil
}

// DecodeExportSection reads the export section, grounded on readSectionExport.
func DecodeExportSection(body *util.Cursor) ([]wasm.Export, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Export, n)
	for i := range out {
		name, err := decodeName(body)
		if err != nil {
			return out, err
		}
		off := body.Offset()
		kindByte, err := body.ReadByte()
		if err != nil {
			return out, err
		}
		kind, ok := enc.DecodeExternalKind(kindByte)
		if !ok {
			return out, errs.New(off, errs.TypeMismatch, "unknown export kind byte %#x", kindByte)
		}
		idx, err := leb128.ReadU32(body)
		if err != nil {
			return out, err
		}
		out[i] = wasm.Export{Name: name, Kind: kind, Index: idx}
	}
	return out, nil
}

// DecodeStartSection reads the start section's single function index.
func DecodeStartSection(body *util.Cursor) (wasm.FuncIdx, error) {
	idx, err := leb128.ReadU32(body)
	return wasm.FuncIdx(idx), err
}

// DecodeElementSection reads the element section, grounded on
// readSectionElement, generalized from "always active, always a
// func-index list" to the full set of modes and content kinds the
// bulk-memory/reference-types proposal adds (passive, declared,
// explicit reference-type expression lists).
func DecodeElementSection(body *util.Cursor, f feature.Set, sink errs.Sink) ([]wasm.ElementSegment, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ElementSegment, n)
	for i := range out {
		seg, err := decodeElementSegment(body, f, sink)
		if err != nil {
			return out, err
		}
		out[i] = seg
	}
	return out, nil
}

func decodeElementSegment(body *util.Cursor, f feature.Set, sink errs.Sink) (wasm.ElementSegment, error) {
	flags, err := leb128.ReadU32(body)
	if err != nil {
		return wasm.ElementSegment{}, err
	}
	var seg wasm.ElementSegment
	hasTableIdx := flags&0x02 != 0
	isDeclaredOrPassive := flags&0x01 != 0
	hasExprs := flags&0x04 != 0

	switch {
	case !isDeclaredOrPassive:
		seg.Mode = wasm.ElemActive
		if hasTableIdx {
			idx, err := leb128.ReadU32(body)
			if err != nil {
				return seg, err
			}
			seg.Table = wasm.TableIdx(idx)
		}
		off, err := code.DecodeConst(body, f, sink)
		if err != nil {
			return seg, err
		}
		seg.Offset = off
	case flags&0x02 != 0:
		seg.Mode = wasm.ElemDeclared
	default:
		seg.Mode = wasm.ElemPassive
	}

	if hasExprs {
		var reftype wasm.ReferenceType
		if flags == 4 {
			reftype = wasm.ReferenceType{Kind: wasm.Funcref}
		} else {
			vt, err := code.DecodeValueType(body)
			if err != nil {
				return seg, err
			}
			reftype = vt.Reference
		}
		seg.RefType = reftype
		count, err := leb128.ReadU32(body)
		if err != nil {
			return seg, err
		}
		seg.Exprs = make([]wasm.ConstExpr, count)
		for i := range seg.Exprs {
			ce, err := code.DecodeConst(body, f, sink)
			if err != nil {
				return seg, err
			}
			seg.Exprs[i] = ce
		}
	} else {
		seg.RefType = wasm.ReferenceType{Kind: wasm.Funcref}
		if flags != 0 {
			off := body.Offset()
			kind, err := body.ReadByte()
			if err != nil {
				return seg, errs.New(off, errs.UnexpectedEOF, "eof reading element kind")
			}
			if _, ok := enc.DecodeElementKind(kind); !ok {
				return seg, errs.New(off, errs.TypeMismatch, "invalid element kind byte %#x", kind)
			}
		}
		count, err := leb128.ReadU32(body)
		if err != nil {
			return seg, err
		}
		seg.IsFuncIndices = true
		seg.FuncIndices = make([]wasm.FuncIdx, count)
		for i := range seg.FuncIndices {
			idx, err := leb128.ReadU32(body)
			if err != nil {
				return seg, err
			}
			seg.FuncIndices[i] = wasm.FuncIdx(idx)
		}
	}
	return seg, nil
}

// DecodeDataCountSection reads the data-count section's single count.
func DecodeDataCountSection(body *util.Cursor) (uint32, error) {
	return leb128.ReadU32(body)
}

// DecodeDataSection reads the data section, grounded on readSectionData,
// generalized to passive segments (bulk-memory).
func DecodeDataSection(body *util.Cursor, f feature.Set, sink errs.Sink) ([]wasm.DataSegment, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.DataSegment, n)
	for i := range out {
		flags, err := leb128.ReadU32(body)
		if err != nil {
			return out, err
		}
		var seg wasm.DataSegment
		switch flags {
		case 0:
			seg.Mode = wasm.DataActive
			off, err := code.DecodeConst(body, f, sink)
			if err != nil {
				return out, err
			}
			seg.Offset = off
		case 1:
			seg.Mode = wasm.DataPassive
		case 2:
			seg.Mode = wasm.DataActive
			idx, err := leb128.ReadU32(body)
			if err != nil {
				return out, err
			}
			seg.Mem = wasm.MemIdx(idx)
			off, err := code.DecodeConst(body, f, sink)
			if err != nil {
				return out, err
			}
			seg.Offset = off
		default:
			return out, errs.New(body.Offset(), errs.TypeMismatch, "unknown data segment flags %d", flags)
		}
		n, err := leb128.ReadU32(body)
		if err != nil {
			return out, err
		}
		init, err := body.ReadBytes(n)
		if err != nil {
			return out, err
		}
		seg.Init = append([]byte(nil), init...)
		out[i] = seg
	}
	return out, nil
}

// DecodeCodeSection reads the code section, grounded on
// readSectionCode/readLocals/readExprs.
func DecodeCodeSection(body *util.Cursor, f feature.Set, sink errs.Sink) ([]wasm.Code, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Code, n)
	for i := range out {
		size, err := leb128.ReadU32(body)
		if err != nil {
			return out, err
		}
		sub, err := body.Sub(size)
		if err != nil {
			return out, err
		}
		locals, err := decodeLocals(sub)
		if err != nil {
			return out, err
		}
		instrs, err := code.Decode(sub, f, sink)
		if err != nil {
			return out, err
		}
		out[i] = wasm.Code{Locals: locals, Body: instrs}
	}
	return out, nil
}

func decodeLocals(body *util.Cursor) ([]wasm.Local, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Local, n)
	for i := range out {
		count, err := leb128.ReadU32(body)
		if err != nil {
			return out, err
		}
		vt, err := code.DecodeValueType(body)
		if err != nil {
			return out, err
		}
		out[i] = wasm.Local{Count: count, Type: vt}
	}
	return out, nil
}

// DecodeEventSection reads the event section (exceptions feature).
func DecodeEventSection(body *util.Cursor) ([]wasm.EventType, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.EventType, n)
	for i := range out {
		et, err := decodeEventType(body)
		if err != nil {
			return out, err
		}
		out[i] = et
	}
	return out, nil
}

func decodeName(body *util.Cursor) (string, error) {
	n, err := leb128.ReadU32(body)
	if err != nil {
		return "", err
	}
	raw, err := body.ReadBytes(n)
	if err != nil {
		return "", err
	}
	name, ok := util.ReadName(raw)
	if !ok {
		return name, errs.New(body.Offset(), errs.BadUtf8, "name is not valid utf-8")
	}
	return name, nil
}
