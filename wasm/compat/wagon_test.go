package compat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/wasm/reader"
	"github.com/wasmcore/wasmcore/wasm/write"

	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/wasm"
)

// a minimal module with one type: (i32, f64) -> i32.
func oneTypeModule() *wasm.Module {
	return &wasm.Module{
		Version:  wasm.Version,
		HasTypes: true,
		Types: []wasm.FuncType{
			{
				Params:  []wasm.ValueType{wasm.NumericValue(wasm.I32), wasm.NumericValue(wasm.F64)},
				Results: []wasm.ValueType{wasm.NumericValue(wasm.I32)},
			},
		},
	}
}

func TestDiffTypeSectionAgreesWithWagon(t *testing.T) {
	data := write.Module(oneTypeModule())

	sink := &errs.Collector{}
	m, err := reader.ReadModule(data, feature.MVP(), sink)
	require.NoError(t, err)
	require.True(t, sink.OK())

	diffs, err := DiffTypeSection(m.Types, data)
	require.NoError(t, err)
	require.Empty(t, diffs)
}

func TestDiffTypeSectionCatchesDivergence(t *testing.T) {
	data := write.Module(oneTypeModule())

	wrongTypes := []wasm.FuncType{
		{
			Params:  []wasm.ValueType{wasm.NumericValue(wasm.I64), wasm.NumericValue(wasm.F64)},
			Results: []wasm.ValueType{wasm.NumericValue(wasm.I32)},
		},
	}
	diffs, err := DiffTypeSection(wrongTypes, data)
	require.NoError(t, err)
	require.NotEmpty(t, diffs)
}

func TestDiffTypeSectionNoTypeSection(t *testing.T) {
	data := write.Module(&wasm.Module{Version: wasm.Version})
	require.NotEqual(t, 0, len(data)) // magic + version only, still valid

	diffs, err := DiffTypeSection(nil, data)
	require.NoError(t, err)
	require.Empty(t, diffs)
}
