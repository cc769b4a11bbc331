package wasm

import "fmt"

// InsertImport inserts imp at position k of the import section (0 <=
// k <= len(m.Imports)) and renumbers every existing reference into the
// index space imp's kind occupies, the way a client adding an import
// to an already-decoded module must (spec.md §4.8, §9's Open Question
// on the source's incomplete renumbering — this covers every index
// space imports can occupy: functions, tables, memories, globals, and
// events, not just the ones the source happened to renumber).
//
// Every locally defined entity's combined index moves up automatically
// (Link places imports first); what does not move on its own is every
// place an index into that space is recorded as a plain integer:
// instruction operands, export indices, element segment function
// indices and table index, the data segment memory index, and the
// start function index. InsertImport walks all of them.
func (m *Module) InsertImport(k int, imp Import) error {
	if k < 0 || k > len(m.Imports) {
		return fmt.Errorf("wasm: import insertion index %d out of range [0, %d]", k, len(m.Imports))
	}

	kind := imp.Desc.Kind
	base := uint32(0)
	for i := 0; i < k; i++ {
		if m.Imports[i].Desc.Kind == kind {
			base++
		}
	}

	m.renumberAbove(kind, base)

	m.Imports = append(m.Imports, Import{})
	copy(m.Imports[k+1:], m.Imports[k:])
	m.Imports[k] = imp
	m.HasImports = true

	m.Link()
	return nil
}

// renumberAbove increments every recorded reference into kind's index
// space that is >= at, the shift a new entry inserted at position at
// requires of everything declared after it.
func (m *Module) renumberAbove(kind ExternalKind, at uint32) {
	shift := func(idx uint32) uint32 {
		if idx >= at {
			return idx + 1
		}
		return idx
	}

	forEachInstructionList(m, func(instrs []Instruction) {
		for i := range instrs {
			remapInstruction(&instrs[i], kind, shift)
		}
	})

	switch kind {
	case ExternalFunc:
		if m.HasStart {
			m.Start = FuncIdx(shift(uint32(m.Start)))
		}
		for i := range m.Elems {
			if m.Elems[i].IsFuncIndices {
				for j, fi := range m.Elems[i].FuncIndices {
					m.Elems[i].FuncIndices[j] = FuncIdx(shift(uint32(fi)))
				}
			}
		}
	case ExternalTable:
		for i := range m.Elems {
			if m.Elems[i].Mode == ElemActive {
				m.Elems[i].Table = TableIdx(shift(uint32(m.Elems[i].Table)))
			}
		}
	case ExternalMem:
		for i := range m.Data {
			if m.Data[i].Mode == DataActive {
				m.Data[i].Mem = MemIdx(shift(uint32(m.Data[i].Mem)))
			}
		}
	}

	for i := range m.Exports {
		if m.Exports[i].Kind == kind {
			m.Exports[i].Index = shift(m.Exports[i].Index)
		}
	}
}

// forEachInstructionList visits every instruction stream the module
// carries: function bodies, global initializers, and element/data
// segment offset expressions plus element segment item expressions.
func forEachInstructionList(m *Module, visit func([]Instruction)) {
	for i := range m.Code {
		visit(m.Code[i].Body)
	}
	for i := range m.Globals {
		visit(m.Globals[i].Init.Instructions)
	}
	for i := range m.Elems {
		if m.Elems[i].Mode == ElemActive {
			visit(m.Elems[i].Offset.Instructions)
		}
		for j := range m.Elems[i].Exprs {
			visit(m.Elems[i].Exprs[j].Instructions)
		}
	}
	for i := range m.Data {
		if m.Data[i].Mode == DataActive {
			visit(m.Data[i].Offset.Instructions)
		}
	}
}

// remapInstruction applies shift to ins's operand(s) that address
// kind's index space, if any. Opcodes are numeric literals here
// because package wasm/enc, which names them, imports this package.
func remapInstruction(ins *Instruction, kind ExternalKind, shift func(uint32) uint32) {
	switch kind {
	case ExternalFunc:
		switch ins.Opcode {
		case 0x10, 0x12, 0xd2: // call, return_call, ref.func
			ins.Immediate.Index = shift(ins.Immediate.Index)
		}
	case ExternalTable:
		switch ins.Opcode {
		case 0x25, 0x26, PrefixBulkRef | 0x0f, PrefixBulkRef | 0x10, PrefixBulkRef | 0x11: // table.get/set/grow/size/fill
			ins.Immediate.Index = shift(ins.Immediate.Index)
		case 0x11, 0x13: // call_indirect, return_call_indirect
			ins.Immediate.CallInd.Table = TableIdx(shift(uint32(ins.Immediate.CallInd.Table)))
		case PrefixBulkRef | 0x0e: // table.copy
			ins.Immediate.Copy.Dst = shift(ins.Immediate.Copy.Dst)
			ins.Immediate.Copy.Src = shift(ins.Immediate.Copy.Src)
		case PrefixBulkRef | 0x0c: // table.init
			ins.Immediate.Init.Dst = shift(ins.Immediate.Init.Dst)
		}
	case ExternalMem:
		switch ins.Opcode {
		case 0x3f, 0x40: // memory.size, memory.grow
			ins.Immediate.Index = shift(ins.Immediate.Index)
		case PrefixBulkRef | 0x0a: // memory.copy
			ins.Immediate.Copy.Dst = shift(ins.Immediate.Copy.Dst)
			ins.Immediate.Copy.Src = shift(ins.Immediate.Copy.Src)
		case PrefixBulkRef | 0x08: // memory.init
			ins.Immediate.Init.Dst = shift(ins.Immediate.Init.Dst)
		}
	case ExternalGlobal:
		switch ins.Opcode {
		case 0x23, 0x24: // global.get, global.set
			ins.Immediate.Index = shift(ins.Immediate.Index)
		}
	case ExternalEvent:
		switch ins.Opcode {
		case 0x07, 0x08: // catch, throw (rethrow and delegate take label depths)
			ins.Immediate.Index = shift(ins.Immediate.Index)
		}
	}
}
