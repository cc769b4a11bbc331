package valid_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/valid"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

func i32() wasm.ValueType { return wasm.NumericValue(wasm.I32) }

// a single function (i32)->i32 returning its argument unchanged.
func identityModule() *wasm.Module {
	m := &wasm.Module{
		Version: wasm.Version,
		Types:   []wasm.FuncType{{Params: []wasm.ValueType{i32()}, Results: []wasm.ValueType{i32()}}},
		Funcs:   []wasm.TypeIdx{0},
		Code: []wasm.Code{
			{Body: []wasm.Instruction{
				{Opcode: enc.OpLocalGet, Immediate: wasm.Immediate{Kind: wasm.ImmIndex, Index: 0}},
				{Opcode: enc.OpEnd},
			}},
		},
	}
	m.Link()
	return m
}

func checkAll(t *testing.T, m *wasm.Module) *errs.Collector {
	t.Helper()
	sink := &errs.Collector{}
	valid.Structural(m, feature.MVP(), sink)
	valid.Code(m, feature.MVP(), sink)
	return sink
}

func TestValidModulePasses(t *testing.T) {
	sink := checkAll(t, identityModule())
	require.True(t, sink.OK(), "%v", sink.Errors)
}

func TestMissingResultIsStackUnderflow(t *testing.T) {
	m := identityModule()
	// drop the local.get so the function falls through with an empty
	// stack against a declared i32 result.
	m.Code[0].Body = []wasm.Instruction{{Opcode: enc.OpEnd}}

	sink := checkAll(t, m)
	require.False(t, sink.OK())
	found := false
	for _, e := range sink.Errors {
		if e.Kind == errs.StackUnderflow {
			found = true
		}
	}
	require.True(t, found, "%v", sink.Errors)
}

func TestIfWithoutElseChangingSignatureIsRejected(t *testing.T) {
	m := &wasm.Module{
		Version: wasm.Version,
		Types: []wasm.FuncType{
			{Results: []wasm.ValueType{i32()}}, // () -> i32, the function signature
		},
		Funcs: []wasm.TypeIdx{0},
		Code: []wasm.Code{
			{Body: []wasm.Instruction{
				{Opcode: enc.OpI32Const, Immediate: wasm.Immediate{Kind: wasm.ImmS32, S32: 1}},
				// if () -> i32 pushes a value on the true arm only; no else.
				{Opcode: enc.OpIf, Immediate: wasm.Immediate{Kind: wasm.ImmBlock, Block: wasm.BlockType{Kind: wasm.BlockValue, Value: i32()}}},
				{Opcode: enc.OpI32Const, Immediate: wasm.Immediate{Kind: wasm.ImmS32, S32: 42}},
				{Opcode: enc.OpEnd}, // closes the if, no else seen
				{Opcode: enc.OpEnd}, // closes the function
			}},
		},
	}
	m.Link()

	sink := checkAll(t, m)
	require.False(t, sink.OK())
	found := false
	for _, e := range sink.Errors {
		if e.Kind == errs.UnbalancedControl {
			found = true
		}
	}
	require.True(t, found, "%v", sink.Errors)
}

func TestOutOfRangeTypeIndexIsRejected(t *testing.T) {
	m := &wasm.Module{
		Version: wasm.Version,
		Funcs:   []wasm.TypeIdx{7}, // no types declared at all
		Code:    []wasm.Code{{Body: []wasm.Instruction{{Opcode: enc.OpEnd}}}},
	}
	m.Link()

	sink := &errs.Collector{}
	valid.Structural(m, feature.MVP(), sink)
	require.False(t, sink.OK())
	found := false
	for _, e := range sink.Errors {
		if e.Kind == errs.IndexOutOfBounds {
			found = true
		}
	}
	require.True(t, found, "%v", sink.Errors)
}

// after `unreachable`, the stack goes polymorphic (spec.md §8 S5): a
// pop past the frame's entry height stops underflowing and matches
// whatever type is demanded, so a lone `unreachable` validates under
// any declared result arity without anything left to reconcile.
func TestStackPolymorphismBareUnreachableMatchesAnyResult(t *testing.T) {
	for _, results := range [][]wasm.ValueType{nil, {i32()}} {
		m := &wasm.Module{
			Version: wasm.Version,
			Types:   []wasm.FuncType{{Results: results}},
			Funcs:   []wasm.TypeIdx{0},
			Code: []wasm.Code{{Body: []wasm.Instruction{
				{Opcode: enc.OpUnreachable},
				{Opcode: enc.OpEnd},
			}}},
		}
		m.Link()

		sink := checkAll(t, m)
		require.True(t, sink.OK(), "results=%v: %v", results, sink.Errors)
	}
}

// Once an instruction after `unreachable` pushes a real value, that
// value is no longer polymorphic and must balance against the frame's
// declared end types like any other: `unreachable; i32.add` validates
// against an i32 result (the produced value satisfies it) precisely
// because the two polymorphic pops it performs first place no real
// demand on the (empty) stack beneath them.
func TestStackPolymorphismUnreachableThenNumericOpMatchesProducedType(t *testing.T) {
	m := &wasm.Module{
		Version: wasm.Version,
		Types:   []wasm.FuncType{{Results: []wasm.ValueType{i32()}}}, // () -> i32
		Funcs:   []wasm.TypeIdx{0},
		Code: []wasm.Code{{Body: []wasm.Instruction{
			{Opcode: enc.OpUnreachable},
			{Opcode: wasm.Opcode(0x6a)}, // i32.add
			{Opcode: enc.OpEnd},
		}}},
	}
	m.Link()

	sink := checkAll(t, m)
	require.True(t, sink.OK(), "%v", sink.Errors)
}

func TestFunctionCodeCountMismatchIsCaughtByReaderInvariant(t *testing.T) {
	// Structural/Code both assume Funcs/Code line up one-to-one
	// (spec.md §3's invariant); a mismatched module must not panic
	// either pass even though the count check itself lives in
	// wasm/reader.
	m := &wasm.Module{
		Version: wasm.Version,
		Types:   []wasm.FuncType{{Results: []wasm.ValueType{i32()}}},
		Funcs:   []wasm.TypeIdx{0, 0},
		Code: []wasm.Code{
			{Body: []wasm.Instruction{
				{Opcode: enc.OpI32Const, Immediate: wasm.Immediate{Kind: wasm.ImmS32, S32: 1}},
				{Opcode: enc.OpEnd},
			}},
		},
	}
	m.Link()

	require.NotPanics(t, func() {
		checkAll(t, m)
	})
}
