package wasm

import "fmt"

// Magic is Wasm's 4-byte magic number, the string "\0asm".
const Magic uint32 = 0x6d736100

// Version is the only binary format version this toolkit recognizes.
const Version uint32 = 0x1

// ExternalKind discriminates what an Import or Export refers to.
type ExternalKind uint8

const (
	ExternalFunc ExternalKind = iota
	ExternalTable
	ExternalMem
	ExternalGlobal
	ExternalEvent
)

// ImportDesc is the tagged union of what an import can bring in.
type ImportDesc struct {
	Kind   ExternalKind
	Type   TypeIdx // ExternalFunc
	Table  TableType
	Mem    MemType
	Global GlobalType
	Event  EventType
}

// Import is one entry of the import section.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// ElemMode discriminates an element segment's placement.
type ElemMode uint8

const (
	ElemActive ElemMode = iota
	ElemPassive
	ElemDeclared
)

// ConstExpr is a constant expression: a restricted instruction list
// used to initialize globals and segment offsets (spec.md §3, the
// Glossary's "Constant expression").
type ConstExpr struct {
	Instructions []Instruction
}

// ElementSegment is one entry of the element section. Contents is
// either a list of function indices (IsFuncIndices true) or a list of
// constant expressions of the segment's reference type.
type ElementSegment struct {
	Mode    ElemMode
	Table   TableIdx  // ElemActive only
	Offset  ConstExpr // ElemActive only
	RefType ReferenceType

	IsFuncIndices bool
	FuncIndices   []FuncIdx
	Exprs         []ConstExpr
}

// DataMode discriminates a data segment's placement.
type DataMode uint8

const (
	DataActive DataMode = iota
	DataPassive
)

// DataSegment is one entry of the data section.
type DataSegment struct {
	Mode   DataMode
	Mem    MemIdx    // DataActive only
	Offset ConstExpr // DataActive only
	Init   []byte
}

// Code is one entry of the code section: the i-th Code is the body of
// the i-th defined function (spec.md §3 invariant).
type Code struct {
	Locals []Local
	Body   []Instruction
}

// CustomSection is an id-0 section, preserved by name and opaque
// payload. AfterSection records which known section it followed in
// the input, so the writer can interleave it back into the same
// relative position (spec.md §4.6).
type CustomSection struct {
	Name         string
	Payload      []byte
	AfterSection SectionID
}

// SectionID identifies a known section, or CustomSectionID for id 0.
type SectionID uint8

const (
	CustomSectionID SectionID = iota
	TypeSectionID
	ImportSectionID
	FunctionSectionID
	TableSectionID
	MemorySectionID
	GlobalSectionID
	ExportSectionID
	StartSectionID
	ElementSectionID
	CodeSectionID
	DataSectionID
	DataCountSectionID
	EventSectionID
)

// Function is a defined function: its type index plus its code body,
// joined into one entity the way the teacher's wasm.Function does
// (vertexvm/wasm/index.go), populated from the parallel Funcs/Code
// lists once decoding finishes.
type Function struct {
	Type TypeIdx
	Code Code
}

// Global is one entry of the global section: its type plus its
// constant initializer.
type Global struct {
	Type GlobalType
	Init ConstExpr
}

// Module is the whole decoded (or client-built) module: ordered lists
// per spec.md §3, plus the index spaces computed from them.
type Module struct {
	Version uint32

	// Has* flags record that the corresponding section was present in
	// the input at all, independent of how many entries it declared: a
	// section with an explicit, empty body (id|size=1|payload=[0x00])
	// is legal Wasm and distinct from "no such section" (spec.md §8
	// Property 1's only documented carve-out is the optional
	// data-count section, so every other section needs its own bit
	// too — a len(slice) > 0 check conflates the two cases and drops
	// a legitimately-empty section on re-encode).
	HasTypes   bool
	Types      []FuncType
	HasImports bool
	Imports    []Import
	HasFuncs   bool
	Funcs      []TypeIdx // function section: type index per locally defined func
	HasTables  bool
	Tables     []TableType
	HasMems    bool
	Mems       []MemType
	HasGlobals bool
	Globals    []Global
	HasExports bool
	Exports    []Export
	HasStart   bool
	Start      FuncIdx
	HasElems   bool
	Elems      []ElementSegment
	HasDataCount bool
	DataCount    uint32
	HasCode      bool
	Code         []Code
	HasData      bool
	Data         []DataSegment
	HasEvents    bool
	Events       []EventType

	Customs []CustomSection

	// Index spaces, computed by Link (imports occupy the low indices,
	// exactly as spec.md §3's Invariants require).
	FuncIndexSpace   []Function
	TableIndexSpace  []TableType
	MemIndexSpace    []MemType
	GlobalIndexSpace []GlobalType
	EventIndexSpace  []EventType
}

// Link populates the combined index spaces (imports first, then
// locals), the way the teacher's populateFunctions/populateGlobals do
// (vertexvm/wasm/index.go), generalized to every index space imports
// can occupy (functions, tables, memories, globals, events) instead of
// just functions/globals/tables/linear-memory.
func (m *Module) Link() {
	m.linkFuncs()
	m.linkTables()
	m.linkMems()
	m.linkGlobals()
	m.linkEvents()
}

func (m *Module) linkFuncs() {
	m.FuncIndexSpace = m.FuncIndexSpace[:0]
	for _, imp := range m.Imports {
		if imp.Desc.Kind == ExternalFunc {
			m.FuncIndexSpace = append(m.FuncIndexSpace, Function{Type: imp.Desc.Type})
		}
	}
	for i, t := range m.Funcs {
		var code Code
		if i < len(m.Code) {
			code = m.Code[i]
		}
		m.FuncIndexSpace = append(m.FuncIndexSpace, Function{Type: t, Code: code})
	}
}

func (m *Module) linkTables() {
	m.TableIndexSpace = m.TableIndexSpace[:0]
	for _, imp := range m.Imports {
		if imp.Desc.Kind == ExternalTable {
			m.TableIndexSpace = append(m.TableIndexSpace, imp.Desc.Table)
		}
	}
	m.TableIndexSpace = append(m.TableIndexSpace, m.Tables...)
}

func (m *Module) linkMems() {
	m.MemIndexSpace = m.MemIndexSpace[:0]
	for _, imp := range m.Imports {
		if imp.Desc.Kind == ExternalMem {
			m.MemIndexSpace = append(m.MemIndexSpace, imp.Desc.Mem)
		}
	}
	m.MemIndexSpace = append(m.MemIndexSpace, m.Mems...)
}

func (m *Module) linkGlobals() {
	m.GlobalIndexSpace = m.GlobalIndexSpace[:0]
	for _, imp := range m.Imports {
		if imp.Desc.Kind == ExternalGlobal {
			m.GlobalIndexSpace = append(m.GlobalIndexSpace, imp.Desc.Global)
		}
	}
	for _, g := range m.Globals {
		m.GlobalIndexSpace = append(m.GlobalIndexSpace, g.Type)
	}
}

func (m *Module) linkEvents() {
	m.EventIndexSpace = m.EventIndexSpace[:0]
	for _, imp := range m.Imports {
		if imp.Desc.Kind == ExternalEvent {
			m.EventIndexSpace = append(m.EventIndexSpace, imp.Desc.Event)
		}
	}
	m.EventIndexSpace = append(m.EventIndexSpace, m.Events...)
}

// ImportedFuncCount returns how many entries of FuncIndexSpace are
// imports, i.e. the first local function's index.
func (m *Module) ImportedFuncCount() int { return countImports(m.Imports, ExternalFunc) }

// ImportedTableCount returns the number of imported tables.
func (m *Module) ImportedTableCount() int { return countImports(m.Imports, ExternalTable) }

// ImportedMemCount returns the number of imported memories.
func (m *Module) ImportedMemCount() int { return countImports(m.Imports, ExternalMem) }

// ImportedGlobalCount returns the number of imported globals.
func (m *Module) ImportedGlobalCount() int { return countImports(m.Imports, ExternalGlobal) }

// ImportedEventCount returns the number of imported events.
func (m *Module) ImportedEventCount() int { return countImports(m.Imports, ExternalEvent) }

func countImports(imports []Import, kind ExternalKind) int {
	n := 0
	for _, imp := range imports {
		if imp.Desc.Kind == kind {
			n++
		}
	}
	return n
}

func (k ExternalKind) String() string {
	switch k {
	case ExternalFunc:
		return "func"
	case ExternalTable:
		return "table"
	case ExternalMem:
		return "mem"
	case ExternalGlobal:
		return "global"
	case ExternalEvent:
		return "event"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}
