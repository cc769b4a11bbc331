package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/enc"
	"github.com/wasmcore/wasmcore/wasm/reader"
	"github.com/wasmcore/wasmcore/wasm/write"
)

// a module with one (i32,i32)->i32 function "add" that also exports a
// mutable f32 global, so the round trip exercises the float-immediate
// bit pattern in addition to the common integer paths.
func addModule() *wasm.Module {
	i32 := wasm.NumericValue(wasm.I32)
	f32 := wasm.NumericValue(wasm.F32)

	m := &wasm.Module{
		Version:  wasm.Version,
		HasTypes: true,
		Types: []wasm.FuncType{
			{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}},
		},
		HasFuncs: true,
		Funcs:    []wasm.TypeIdx{0},
		HasGlobals: true,
		Globals: []wasm.Global{
			{
				Type: wasm.GlobalType{Value: f32, Mut: wasm.Var},
				Init: wasm.ConstExpr{Instructions: []wasm.Instruction{
					{Opcode: enc.OpF32Const, Immediate: wasm.Immediate{Kind: wasm.ImmF32, F32Bits: enc.F32Bits(3.5)}},
					{Opcode: enc.OpEnd},
				}},
			},
		},
		HasExports: true,
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.ExternalFunc, Index: 0},
			{Name: "scale", Kind: wasm.ExternalGlobal, Index: 0},
		},
		HasCode: true,
		Code: []wasm.Code{
			{Body: []wasm.Instruction{
				{Opcode: enc.OpLocalGet, Immediate: wasm.Immediate{Kind: wasm.ImmIndex, Index: 0}},
				{Opcode: enc.OpLocalGet, Immediate: wasm.Immediate{Kind: wasm.ImmIndex, Index: 1}},
				{Opcode: 0x6a}, // i32.add
				{Opcode: enc.OpEnd},
			}},
		},
	}
	m.Link()
	return m
}

func TestRoundTripPreservesStructure(t *testing.T) {
	m := addModule()
	data := write.Module(m)

	sink := &errs.Collector{}
	got, err := reader.ReadModule(data, feature.MVP(), sink)
	require.NoError(t, err)
	require.True(t, sink.OK())

	require.Len(t, got.Types, 1)
	require.True(t, got.Types[0].Equal(m.Types[0]))
	require.Equal(t, m.Funcs, got.Funcs)
	require.Equal(t, m.Exports, got.Exports)
	require.Len(t, got.Code, 1)
	require.Equal(t, m.Code[0].Body, got.Code[0].Body)
}

func TestRoundTripPreservesFloatBitsExactly(t *testing.T) {
	// a NaN with a non-canonical payload: round-tripping through the
	// bit-preserving path must not normalize it the way converting
	// through a float32 arithmetic operation would.
	const payload uint32 = 0x7fc00001
	m := addModule()
	m.Globals[0].Init.Instructions[0].Immediate.F32Bits = payload
	data := write.Module(m)

	sink := &errs.Collector{}
	got, err := reader.ReadModule(data, feature.MVP(), sink)
	require.NoError(t, err)
	require.True(t, sink.OK())

	gotBits := got.Globals[0].Init.Instructions[0].Immediate.F32Bits
	require.Equal(t, payload, gotBits, "f32 bit pattern must survive unchanged, got float value %v", enc.F32FromBits(gotBits))
}

func TestRoundTripEmptyModule(t *testing.T) {
	// spec.md §8 Property 1: an empty module is the literal 8-byte
	// magic+version header and nothing else — no section, not even one
	// declaring zero entries.
	m := &wasm.Module{Version: wasm.Version}
	data := write.Module(m)
	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, data)

	sink := &errs.Collector{}
	got, err := reader.ReadModule(data, feature.MVP(), sink)
	require.NoError(t, err)
	require.True(t, sink.OK())
	require.Empty(t, got.Types)
	require.Empty(t, got.Funcs)
}

func TestRoundTripPreservesExplicitEmptySections(t *testing.T) {
	// A type section that declares zero entries is legal Wasm and must
	// survive a round trip distinct from "no type section at all" — the
	// len(slice) > 0 presence proxy this used to rely on collapsed both
	// cases to the same encoding.
	m := &wasm.Module{Version: wasm.Version, HasTypes: true}
	data := write.Module(m)

	sink := &errs.Collector{}
	got, err := reader.ReadModule(data, feature.MVP(), sink)
	require.NoError(t, err)
	require.True(t, sink.OK())
	require.True(t, got.HasTypes)
	require.Empty(t, got.Types)

	roundTripped := write.Module(got)
	require.Equal(t, data, roundTripped)

	absent := &wasm.Module{Version: wasm.Version}
	require.NotEqual(t, write.Module(absent), data, "present-but-empty and absent must not encode the same")
}
