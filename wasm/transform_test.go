package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

// a module with one imported function ("env"."log"), one locally
// defined function that calls both the import and itself, an element
// segment placing the local function in the table, and an export of
// the local function — enough surface to exercise the function and
// table index spaces InsertImport renumbers (spec.md §8 S6).
func callerModule() *wasm.Module {
	m := &wasm.Module{
		Version:    wasm.Version,
		HasTypes:   true,
		Types:      []wasm.FuncType{{}}, // () -> ()
		HasImports: true,
		Imports: []wasm.Import{
			{Module: "env", Name: "log", Desc: wasm.ImportDesc{Kind: wasm.ExternalFunc, Type: 0}},
		},
		HasFuncs: true,
		Funcs:    []wasm.TypeIdx{0},
		HasTables: true,
		Tables:    []wasm.TableType{{Limits: wasm.Limits{Min: 1}, Element: wasm.ReferenceType{Kind: wasm.Funcref}}},
		HasElems:  true,
		Elems: []wasm.ElementSegment{
			{
				Mode:  wasm.ElemActive,
				Table: 0,
				Offset: wasm.ConstExpr{Instructions: []wasm.Instruction{
					{Opcode: enc.OpI32Const, Immediate: wasm.Immediate{Kind: wasm.ImmS32, S32: 0}},
					{Opcode: enc.OpEnd},
				}},
				IsFuncIndices: true,
				FuncIndices:   []wasm.FuncIdx{1}, // the local function, combined index 1
			},
		},
		HasExports: true,
		Exports: []wasm.Export{
			{Name: "main", Kind: wasm.ExternalFunc, Index: 1},
		},
		HasCode: true,
		Code: []wasm.Code{
			{Body: []wasm.Instruction{
				{Opcode: enc.OpCall, Immediate: wasm.Immediate{Kind: wasm.ImmIndex, Index: 0}}, // call the import
				{Opcode: enc.OpCall, Immediate: wasm.Immediate{Kind: wasm.ImmIndex, Index: 1}}, // call self
				{Opcode: enc.OpEnd},
			}},
		},
	}
	m.Link()
	return m
}

func TestInsertImportRejectsOutOfRangeIndex(t *testing.T) {
	m := callerModule()
	require.Error(t, m.InsertImport(-1, wasm.Import{}))
	require.Error(t, m.InsertImport(len(m.Imports)+1, wasm.Import{}))
}

func TestInsertImportRenumbersCallsElementsAndExports(t *testing.T) {
	m := callerModule()
	newImp := wasm.Import{Module: "env", Name: "trace", Desc: wasm.ImportDesc{Kind: wasm.ExternalFunc, Type: 0}}

	require.NoError(t, m.InsertImport(0, newImp))

	require.Len(t, m.Imports, 2)
	require.Equal(t, newImp, m.Imports[0])
	require.Equal(t, "log", m.Imports[1].Name)

	// the combined function index space is now
	// [0]=trace (new import), [1]=log (old import), [2]=local func.
	body := m.Code[0].Body
	require.Equal(t, uint32(1), body[0].Immediate.Index, "call to the pre-existing import must shift to its new index")
	require.Equal(t, uint32(2), body[1].Immediate.Index, "call to the local function must shift past both imports")

	require.Equal(t, uint32(2), m.Elems[0].FuncIndices[0], "element segment's function index must shift")
	require.Equal(t, uint32(2), m.Exports[0].Index, "export of the local function must shift")

	require.Len(t, m.FuncIndexSpace, 3)
	require.Equal(t, m.Funcs[0], m.FuncIndexSpace[2].Type)
}

func TestInsertImportRenumbersTableIndexOnCallIndirect(t *testing.T) {
	m := callerModule()
	m.Code[0].Body = []wasm.Instruction{
		{Opcode: enc.OpI32Const, Immediate: wasm.Immediate{Kind: wasm.ImmS32, S32: 0}},
		{Opcode: enc.OpCallIndirect, Immediate: wasm.Immediate{Kind: wasm.ImmCallIndirect, CallInd: wasm.CallIndirectImm{Type: 0, Table: 0}}},
		{Opcode: enc.OpEnd},
	}

	newTable := wasm.Import{Module: "env", Name: "tbl", Desc: wasm.ImportDesc{Kind: wasm.ExternalTable, Table: wasm.TableType{Limits: wasm.Limits{Min: 1}, Element: wasm.ReferenceType{Kind: wasm.Funcref}}}}
	require.NoError(t, m.InsertImport(0, newTable))

	require.Equal(t, wasm.TableIdx(1), m.Code[0].Body[1].Immediate.CallInd.Table, "call_indirect's table operand must shift past the new imported table")
	require.Equal(t, wasm.TableIdx(1), m.Elems[0].Table, "the active element segment's own table index must shift")
}
