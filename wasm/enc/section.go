package enc

import "github.com/wasmcore/wasmcore/wasm"

// Section id tags, in canonical order
// (https://webassembly.github.io/spec/core/binary/modules.html#sections).
const (
	secCustom     byte = 0
	secType       byte = 1
	secImport     byte = 2
	secFunction   byte = 3
	secTable      byte = 4
	secMemory     byte = 5
	secGlobal     byte = 6
	secExport     byte = 7
	secStart      byte = 8
	secElement    byte = 9
	secCode       byte = 10
	secData       byte = 11
	secDataCount  byte = 12
	secEvent      byte = 13 // exceptions feature extension
)

// DecodeSectionID maps a section id byte to the abstract SectionID.
func DecodeSectionID(b byte) (wasm.SectionID, bool) {
	switch b {
	case secCustom:
		return wasm.CustomSectionID, true
	case secType:
		return wasm.TypeSectionID, true
	case secImport:
		return wasm.ImportSectionID, true
	case secFunction:
		return wasm.FunctionSectionID, true
	case secTable:
		return wasm.TableSectionID, true
	case secMemory:
		return wasm.MemorySectionID, true
	case secGlobal:
		return wasm.GlobalSectionID, true
	case secExport:
		return wasm.ExportSectionID, true
	case secStart:
		return wasm.StartSectionID, true
	case secElement:
		return wasm.ElementSectionID, true
	case secCode:
		return wasm.CodeSectionID, true
	case secData:
		return wasm.DataSectionID, true
	case secDataCount:
		return wasm.DataCountSectionID, true
	case secEvent:
		return wasm.EventSectionID, true
	}
	return 0, false
}

// EncodeSectionID is DecodeSectionID's inverse.
func EncodeSectionID(id wasm.SectionID) byte {
	switch id {
	case wasm.CustomSectionID:
		return secCustom
	case wasm.TypeSectionID:
		return secType
	case wasm.ImportSectionID:
		return secImport
	case wasm.FunctionSectionID:
		return secFunction
	case wasm.TableSectionID:
		return secTable
	case wasm.MemorySectionID:
		return secMemory
	case wasm.GlobalSectionID:
		return secGlobal
	case wasm.ExportSectionID:
		return secExport
	case wasm.StartSectionID:
		return secStart
	case wasm.ElementSectionID:
		return secElement
	case wasm.CodeSectionID:
		return secCode
	case wasm.DataSectionID:
		return secData
	case wasm.DataCountSectionID:
		return secDataCount
	case wasm.EventSectionID:
		return secEvent
	}
	panic("enc: invalid section id")
}

// ExternalKind tags (import/export descriptor kind byte).
const (
	extFunc   byte = 0x00
	extTable  byte = 0x01
	extMem    byte = 0x02
	extGlobal byte = 0x03
	extEvent  byte = 0x04 // exceptions feature extension
)

// DecodeExternalKind maps an import/export kind byte to ExternalKind.
func DecodeExternalKind(b byte) (wasm.ExternalKind, bool) {
	switch b {
	case extFunc:
		return wasm.ExternalFunc, true
	case extTable:
		return wasm.ExternalTable, true
	case extMem:
		return wasm.ExternalMem, true
	case extGlobal:
		return wasm.ExternalGlobal, true
	case extEvent:
		return wasm.ExternalEvent, true
	}
	return 0, false
}

// EncodeExternalKind is DecodeExternalKind's inverse.
func EncodeExternalKind(k wasm.ExternalKind) byte {
	switch k {
	case wasm.ExternalFunc:
		return extFunc
	case wasm.ExternalTable:
		return extTable
	case wasm.ExternalMem:
		return extMem
	case wasm.ExternalGlobal:
		return extGlobal
	case wasm.ExternalEvent:
		return extEvent
	}
	panic("enc: invalid external kind")
}

// Mutability tags.
const (
	mutConst byte = 0x00
	mutVar   byte = 0x01
)

// DecodeMutability maps a mutability byte.
func DecodeMutability(b byte) (wasm.Mutability, bool) {
	switch b {
	case mutConst:
		return wasm.Const, true
	case mutVar:
		return wasm.Var, true
	}
	return 0, false
}

// EncodeMutability is DecodeMutability's inverse.
func EncodeMutability(m wasm.Mutability) byte {
	if m == wasm.Var {
		return mutVar
	}
	return mutConst
}

// Element segment "element kind" tag, used by element-segment encodings
// that carry an explicit kind byte instead of a reference type.
const elemKindFuncref byte = 0x00

// DecodeElementKind maps the element-kind byte (always funcref in the
// encodings that use it).
func DecodeElementKind(b byte) (wasm.ReferenceKind, bool) {
	if b == elemKindFuncref {
		return wasm.Funcref, true
	}
	return 0, false
}

// EncodeElementKind is DecodeElementKind's inverse.
func EncodeElementKind(wasm.ReferenceKind) byte { return elemKindFuncref }
