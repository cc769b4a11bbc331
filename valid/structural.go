// Package valid is the validator: the two-pass check described in
// spec.md §4.5, split into Structural (index ranges, limits, section
// invariants — never touches a function body) and Code (the
// control/type checker over each function body, built on ctrlstack).
//
// Grounded on the teacher's vm package: vm/block.go's block-nesting
// bookkeeping, generalized here from "track values while executing"
// to "reject a module before it is ever executed" — this toolkit's
// validator has no interpreter behind it, per spec.md's explicit
// Non-goal on execution.
package valid

import (
	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/wasm"
)

// Structural runs Pass 1 over m: every check that does not require
// decoding a function body. It reports every violation it finds to
// sink and never stops early, per spec.md §7.
func Structural(m *wasm.Module, f feature.Set, sink errs.Sink) {
	m.Link()

	checkTypeIndices(m, sink)
	checkLimits(m, f, sink)
	checkTableCount(m, f, sink)
	checkMemoryCount(m, f, sink)
	checkGlobalInits(m, f, sink)
	checkElementSegments(m, f, sink)
	checkDataSegments(m, f, sink)
	checkStart(m, sink)
	checkExports(m, sink)
}

func checkTypeIndices(m *wasm.Module, sink errs.Sink) {
	nTypes := uint32(len(m.Types))
	inRange := func(idx wasm.TypeIdx) bool { return uint32(idx) < nTypes }

	for _, imp := range m.Imports {
		if imp.Desc.Kind == wasm.ExternalFunc && !inRange(imp.Desc.Type) {
			sink.Report(errs.New(-1, errs.IndexOutOfBounds, "import %s.%s refers to type index %d, module has %d types", imp.Module, imp.Name, imp.Desc.Type, nTypes))
		}
		if imp.Desc.Kind == wasm.ExternalEvent && !inRange(imp.Desc.Event.Type) {
			sink.Report(errs.New(-1, errs.IndexOutOfBounds, "imported event refers to type index %d, module has %d types", imp.Desc.Event.Type, nTypes))
		}
	}
	for i, t := range m.Funcs {
		if !inRange(t) {
			sink.Report(errs.New(-1, errs.IndexOutOfBounds, "function %d refers to type index %d, module has %d types", i, t, nTypes))
		}
	}
	for i, e := range m.Events {
		if !inRange(e.Type) {
			sink.Report(errs.New(-1, errs.IndexOutOfBounds, "event %d refers to type index %d, module has %d types", i, e.Type, nTypes))
		}
	}
	if m.HasStart {
		checkFuncIndex(m, wasm.FuncIdx(m.Start), sink, "start function")
	}
}

func checkFuncIndex(m *wasm.Module, idx wasm.FuncIdx, sink errs.Sink, what string) {
	if uint32(idx) >= uint32(len(m.FuncIndexSpace)) {
		sink.Report(errs.New(-1, errs.IndexOutOfBounds, "%s refers to function index %d, module has %d functions", what, idx, len(m.FuncIndexSpace)))
	}
}

func checkLimits(m *wasm.Module, f feature.Set, sink errs.Sink) {
	check := func(l wasm.Limits, kind string, i int) {
		if l.HasMax && l.Max < l.Min {
			sink.Report(errs.New(-1, errs.InvalidLimits, "%s %d: max %d is less than min %d", kind, i, l.Max, l.Min))
		}
		if l.Shared && !f.Threads {
			sink.Report(errs.New(-1, errs.InvalidLimits, "%s %d: shared memory requires the threads feature", kind, i))
		}
		if l.Index64 && !f.Memory64 {
			sink.Report(errs.New(-1, errs.InvalidLimits, "%s %d: 64-bit indices require the memory64 feature", kind, i))
		}
	}
	for i, t := range m.TableIndexSpace {
		check(t.Limits, "table", i)
	}
	for i, mt := range m.MemIndexSpace {
		check(mt.Limits, "memory", i)
	}
}

func checkTableCount(m *wasm.Module, f feature.Set, sink errs.Sink) {
	if len(m.TableIndexSpace) > 1 && !f.ReferenceTypes {
		sink.Report(errs.New(-1, errs.MultipleTables, "module declares %d tables, which requires the reference-types feature", len(m.TableIndexSpace)))
	}
}

func checkMemoryCount(m *wasm.Module, f feature.Set, sink errs.Sink) {
	if len(m.MemIndexSpace) > 1 && !f.MultiMemory {
		sink.Report(errs.New(-1, errs.MultipleMemories, "module declares %d memories, which requires the multi-memory feature", len(m.MemIndexSpace)))
	}
}

// checkGlobalInits validates that each defined global's initializer is
// a constant expression of the declared type: a single const
// instruction, global.get of an imported global (of a mutable one
// only with mutable-globals), or (with reference-types) ref.null /
// ref.func, per the Glossary's "Constant expression" and spec.md §4.5.
func checkGlobalInits(m *wasm.Module, f feature.Set, sink errs.Sink) {
	importedGlobals := m.ImportedGlobalCount()
	for i, g := range m.Globals {
		checkConstExpr(m, f, g.Init, g.Type.Value, importedGlobals, sink, "global", i)
	}
}

func checkConstExpr(m *wasm.Module, f feature.Set, ce wasm.ConstExpr, want wasm.ValueType, maxGlobalIdx int, sink errs.Sink, what string, idx int) {
	if len(ce.Instructions) != 1 {
		if !(len(ce.Instructions) == 2 && ce.Instructions[1].Opcode == 0x0b) {
			sink.Report(errs.New(-1, errs.NonConstantInitializer, "%s %d: constant expression must be exactly one instruction then end", what, idx))
			return
		}
	}
	ins := ce.Instructions[0]
	var got wasm.ValueType
	switch ins.Opcode {
	case 0x41:
		got = wasm.NumericValue(wasm.I32)
	case 0x42:
		got = wasm.NumericValue(wasm.I64)
	case 0x43:
		got = wasm.NumericValue(wasm.F32)
	case 0x44:
		got = wasm.NumericValue(wasm.F64)
	case 0x23: // global.get
		gi := int(ins.Immediate.Index)
		if gi >= maxGlobalIdx {
			sink.Report(errs.New(-1, errs.NonConstantInitializer, "%s %d: global.get in a constant expression may only reference an imported global", what, idx))
			return
		}
		if gi >= len(m.GlobalIndexSpace) {
			sink.Report(errs.New(-1, errs.IndexOutOfBounds, "%s %d: constant expression global index %d out of range", what, idx, gi))
			return
		}
		gt := m.GlobalIndexSpace[gi]
		if gt.Mut == wasm.Var && !f.MutableGlobals {
			sink.Report(errs.New(-1, errs.NonConstantInitializer, "%s %d: constant expression references a mutable global without the mutable-globals feature", what, idx))
		}
		got = gt.Value
	case 0xd0: // ref.null
		got = wasm.ReferenceValue(wasm.ReferenceType{Kind: ins.Immediate.Heap.Kind, IsRef: ins.Immediate.Heap.IsIndex, Ref: wasm.RefType{Nullable: true, Heap: ins.Immediate.Heap}})
		if !f.ReferenceTypes {
			sink.Report(errs.New(-1, errs.NonConstantInitializer, "%s %d: ref.null requires the reference-types feature", what, idx))
		}
	case 0xd2: // ref.func
		got = want // ref.func's result type is checked against `want` structurally elsewhere; accept here
		if !f.ReferenceTypes {
			sink.Report(errs.New(-1, errs.NonConstantInitializer, "%s %d: ref.func requires the reference-types feature", what, idx))
		}
	default:
		sink.Report(errs.New(-1, errs.NonConstantInitializer, "%s %d: opcode %#x is not allowed in a constant expression", what, idx, ins.Opcode))
		return
	}
	if ins.Opcode != 0xd2 && !got.Equal(want) {
		sink.Report(errs.New(-1, errs.TypeMismatch, "%s %d: constant expression has type %s, want %s", what, idx, got, want))
	}
}

func checkElementSegments(m *wasm.Module, f feature.Set, sink errs.Sink) {
	importedGlobals := m.ImportedGlobalCount()
	for i, seg := range m.Elems {
		if seg.Mode == wasm.ElemActive {
			if int(seg.Table) >= len(m.TableIndexSpace) {
				sink.Report(errs.New(-1, errs.IndexOutOfBounds, "element segment %d refers to table index %d, module has %d tables", i, seg.Table, len(m.TableIndexSpace)))
			} else {
				checkConstExpr(m, f, seg.Offset, wasm.NumericValue(wasm.I32), importedGlobals, sink, "element segment offset", i)
			}
		}
		if seg.IsFuncIndices {
			for _, fi := range seg.FuncIndices {
				checkFuncIndex(m, fi, sink, "element segment function index")
			}
		}
	}
}

func checkDataSegments(m *wasm.Module, f feature.Set, sink errs.Sink) {
	importedGlobals := m.ImportedGlobalCount()
	for i, seg := range m.Data {
		if seg.Mode != wasm.DataActive {
			continue
		}
		if int(seg.Mem) >= len(m.MemIndexSpace) {
			sink.Report(errs.New(-1, errs.IndexOutOfBounds, "data segment %d refers to memory index %d, module has %d memories", i, seg.Mem, len(m.MemIndexSpace)))
			continue
		}
		offsetType := wasm.NumericValue(wasm.I32)
		if m.MemIndexSpace[seg.Mem].Limits.Index64 {
			offsetType = wasm.NumericValue(wasm.I64)
		}
		checkConstExpr(m, f, seg.Offset, offsetType, importedGlobals, sink, "data segment offset", i)
	}
}

func checkStart(m *wasm.Module, sink errs.Sink) {
	if !m.HasStart {
		return
	}
	if int(m.Start) >= len(m.FuncIndexSpace) {
		return // already reported by checkTypeIndices
	}
	fn := m.FuncIndexSpace[m.Start]
	if int(fn.Type) >= len(m.Types) {
		return
	}
	ft := m.Types[fn.Type]
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		sink.Report(errs.New(-1, errs.TypeMismatch, "start function must take no parameters and return no results"))
	}
}

func checkExports(m *wasm.Module, sink errs.Sink) {
	seen := map[string]bool{}
	for _, e := range m.Exports {
		if seen[e.Name] {
			sink.Report(errs.New(-1, errs.DuplicateExport, "duplicate export name %q", e.Name))
		}
		seen[e.Name] = true

		var count int
		switch e.Kind {
		case wasm.ExternalFunc:
			count = len(m.FuncIndexSpace)
		case wasm.ExternalTable:
			count = len(m.TableIndexSpace)
		case wasm.ExternalMem:
			count = len(m.MemIndexSpace)
		case wasm.ExternalGlobal:
			count = len(m.GlobalIndexSpace)
		case wasm.ExternalEvent:
			count = len(m.EventIndexSpace)
		}
		if int(e.Index) >= count {
			sink.Report(errs.New(-1, errs.IndexOutOfBounds, "export %q refers to %v index %d, module has %d", e.Name, e.Kind, e.Index, count))
		}
	}
}

// memory.init/data.drop may only appear when a data-count section was
// present, the invariant the bulk-memory proposal relies on to
// validate those instructions without a second pass over the data
// section (spec.md §3); valid.Code enforces it since it has
// m.HasDataCount and the instruction stream in scope together.
