// Package write is the writer: the deterministic, single-pass mechanical
// inverse of wasm/reader, per spec.md §4.6. It walks a *wasm.Module's
// ordered lists — never the computed index spaces, which are derived,
// not source data — and re-emits the canonical section sequence,
// splicing each custom section back in immediately after the known
// section it originally followed (CustomSection.AfterSection).
package write

import (
	"bytes"

	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/code"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

const funcTypeForm byte = 0x60

// Module serializes m to its canonical binary encoding.
func Module(m *wasm.Module) []byte {
	var out bytes.Buffer
	putU32LE(&out, wasm.Magic)
	putU32LE(&out, wasm.Version)

	emitCustoms(&out, m, wasm.CustomSectionID)

	if m.HasTypes {
		writeSection(&out, enc.EncodeSectionID(wasm.TypeSectionID), typeSectionBody(m))
	}
	emitCustoms(&out, m, wasm.TypeSectionID)

	if m.HasImports {
		writeSection(&out, enc.EncodeSectionID(wasm.ImportSectionID), importSectionBody(m))
	}
	emitCustoms(&out, m, wasm.ImportSectionID)

	if m.HasFuncs {
		writeSection(&out, enc.EncodeSectionID(wasm.FunctionSectionID), functionSectionBody(m))
	}
	emitCustoms(&out, m, wasm.FunctionSectionID)

	if m.HasTables {
		writeSection(&out, enc.EncodeSectionID(wasm.TableSectionID), tableSectionBody(m))
	}
	emitCustoms(&out, m, wasm.TableSectionID)

	if m.HasMems {
		writeSection(&out, enc.EncodeSectionID(wasm.MemorySectionID), memorySectionBody(m))
	}
	emitCustoms(&out, m, wasm.MemorySectionID)

	if m.HasEvents {
		writeSection(&out, enc.EncodeSectionID(wasm.EventSectionID), eventSectionBody(m))
	}
	emitCustoms(&out, m, wasm.EventSectionID)

	if m.HasGlobals {
		writeSection(&out, enc.EncodeSectionID(wasm.GlobalSectionID), globalSectionBody(m))
	}
	emitCustoms(&out, m, wasm.GlobalSectionID)

	if m.HasExports {
		writeSection(&out, enc.EncodeSectionID(wasm.ExportSectionID), exportSectionBody(m))
	}
	emitCustoms(&out, m, wasm.ExportSectionID)

	if m.HasStart {
		var b bytes.Buffer
		leb128.PutU32(&b, uint32(m.Start))
		writeSection(&out, enc.EncodeSectionID(wasm.StartSectionID), b.Bytes())
	}
	emitCustoms(&out, m, wasm.StartSectionID)

	if m.HasElems {
		writeSection(&out, enc.EncodeSectionID(wasm.ElementSectionID), elementSectionBody(m))
	}
	emitCustoms(&out, m, wasm.ElementSectionID)

	if m.HasDataCount {
		var b bytes.Buffer
		leb128.PutU32(&b, m.DataCount)
		writeSection(&out, enc.EncodeSectionID(wasm.DataCountSectionID), b.Bytes())
	}
	emitCustoms(&out, m, wasm.DataCountSectionID)

	if m.HasCode {
		writeSection(&out, enc.EncodeSectionID(wasm.CodeSectionID), codeSectionBody(m))
	}
	emitCustoms(&out, m, wasm.CodeSectionID)

	if m.HasData {
		writeSection(&out, enc.EncodeSectionID(wasm.DataSectionID), dataSectionBody(m))
	}
	emitCustoms(&out, m, wasm.DataSectionID)

	return out.Bytes()
}

func emitCustoms(out *bytes.Buffer, m *wasm.Module, after wasm.SectionID) {
	for _, c := range m.Customs {
		if c.AfterSection != after {
			continue
		}
		var b bytes.Buffer
		putName(&b, c.Name)
		b.Write(c.Payload)
		writeSection(out, 0, b.Bytes())
	}
}

func writeSection(out *bytes.Buffer, id byte, body []byte) {
	out.WriteByte(id)
	leb128.PutU32(out, uint32(len(body)))
	out.Write(body)
}

func typeSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Types)))
	for _, ft := range m.Types {
		b.WriteByte(funcTypeForm)
		putValueTypeVec(&b, ft.Params)
		putValueTypeVec(&b, ft.Results)
	}
	return b.Bytes()
}

func putValueTypeVec(b *bytes.Buffer, types []wasm.ValueType) {
	leb128.PutU32(b, uint32(len(types)))
	for _, t := range types {
		code.EncodeValueType(b, t)
	}
}

func importSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		putName(&b, imp.Module)
		putName(&b, imp.Name)
		b.WriteByte(enc.EncodeExternalKind(imp.Desc.Kind))
		switch imp.Desc.Kind {
		case wasm.ExternalFunc:
			leb128.PutU32(&b, uint32(imp.Desc.Type))
		case wasm.ExternalTable:
			putTableType(&b, imp.Desc.Table)
		case wasm.ExternalMem:
			putMemType(&b, imp.Desc.Mem)
		case wasm.ExternalGlobal:
			putGlobalType(&b, imp.Desc.Global)
		case wasm.ExternalEvent:
			putEventType(&b, imp.Desc.Event)
		}
	}
	return b.Bytes()
}

func functionSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Funcs)))
	for _, t := range m.Funcs {
		leb128.PutU32(&b, uint32(t))
	}
	return b.Bytes()
}

func tableSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Tables)))
	for _, t := range m.Tables {
		putTableType(&b, t)
	}
	return b.Bytes()
}

func putTableType(b *bytes.Buffer, t wasm.TableType) {
	code.EncodeValueType(b, wasm.ReferenceValue(t.Element))
	putLimits(b, t.Limits)
}

func memorySectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Mems)))
	for _, mt := range m.Mems {
		putMemType(&b, mt)
	}
	return b.Bytes()
}

func putMemType(b *bytes.Buffer, mt wasm.MemType) {
	putLimits(b, mt.Limits)
}

func putLimits(b *bytes.Buffer, l wasm.Limits) {
	var flags byte
	if l.HasMax {
		flags |= 0x01
	}
	if l.Shared {
		flags |= 0x02
	}
	if l.Index64 {
		flags |= 0x04
	}
	b.WriteByte(flags)
	leb128.PutU32(b, l.Min)
	if l.HasMax {
		leb128.PutU32(b, l.Max)
	}
}

func putGlobalType(b *bytes.Buffer, gt wasm.GlobalType) {
	code.EncodeValueType(b, gt.Value)
	b.WriteByte(enc.EncodeMutability(gt.Mut))
}

func putEventType(b *bytes.Buffer, et wasm.EventType) {
	b.WriteByte(byte(et.Attribute))
	leb128.PutU32(b, uint32(et.Type))
}

func eventSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Events)))
	for _, et := range m.Events {
		putEventType(&b, et)
	}
	return b.Bytes()
}

func globalSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Globals)))
	for _, g := range m.Globals {
		putGlobalType(&b, g.Type)
		code.EncodeConst(&b, g.Init)
	}
	return b.Bytes()
}

func exportSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Exports)))
	for _, e := range m.Exports {
		putName(&b, e.Name)
		b.WriteByte(enc.EncodeExternalKind(e.Kind))
		leb128.PutU32(&b, e.Index)
	}
	return b.Bytes()
}

func elementSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Elems)))
	for _, seg := range m.Elems {
		putElementSegment(&b, seg)
	}
	return b.Bytes()
}

func putElementSegment(b *bytes.Buffer, seg wasm.ElementSegment) {
	isFuncref := !seg.RefType.IsRef && seg.RefType.Kind == wasm.Funcref
	var flags uint32
	switch seg.Mode {
	case wasm.ElemPassive:
		flags = 1
	case wasm.ElemDeclared:
		flags = 3
	case wasm.ElemActive:
		if seg.Table != 0 {
			flags = 2
		} else {
			flags = 0
		}
	}
	if !seg.IsFuncIndices {
		flags |= 4
	}
	leb128.PutU32(b, flags)

	if seg.Mode == wasm.ElemActive {
		if seg.Table != 0 {
			leb128.PutU32(b, uint32(seg.Table))
		}
		code.EncodeConst(b, seg.Offset)
	}

	if seg.IsFuncIndices {
		if flags != 0 {
			b.WriteByte(enc.EncodeElementKind(wasm.Funcref))
		}
		leb128.PutU32(b, uint32(len(seg.FuncIndices)))
		for _, idx := range seg.FuncIndices {
			leb128.PutU32(b, uint32(idx))
		}
		return
	}

	if flags != 4 || !isFuncref {
		code.EncodeValueType(b, wasm.ReferenceValue(seg.RefType))
	}
	leb128.PutU32(b, uint32(len(seg.Exprs)))
	for _, e := range seg.Exprs {
		code.EncodeConst(b, e)
	}
}

func codeSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Code)))
	for _, c := range m.Code {
		var body bytes.Buffer
		leb128.PutU32(&body, uint32(len(c.Locals)))
		for _, l := range c.Locals {
			leb128.PutU32(&body, l.Count)
			code.EncodeValueType(&body, l.Type)
		}
		code.Encode(&body, c.Body)
		leb128.PutU32(&b, uint32(body.Len()))
		b.Write(body.Bytes())
	}
	return b.Bytes()
}

func dataSectionBody(m *wasm.Module) []byte {
	var b bytes.Buffer
	leb128.PutU32(&b, uint32(len(m.Data)))
	for _, d := range m.Data {
		switch {
		case d.Mode == wasm.DataPassive:
			leb128.PutU32(&b, 1)
		case d.Mem != 0:
			leb128.PutU32(&b, 2)
			leb128.PutU32(&b, uint32(d.Mem))
			code.EncodeConst(&b, d.Offset)
		default:
			leb128.PutU32(&b, 0)
			code.EncodeConst(&b, d.Offset)
		}
		leb128.PutU32(&b, uint32(len(d.Init)))
		b.Write(d.Init)
	}
	return b.Bytes()
}

func putName(b *bytes.Buffer, s string) {
	leb128.PutU32(b, uint32(len(s)))
	b.WriteString(s)
}

func putU32LE(b *bytes.Buffer, v uint32) {
	b.WriteByte(byte(v))
	b.WriteByte(byte(v >> 8))
	b.WriteByte(byte(v >> 16))
	b.WriteByte(byte(v >> 24))
}
