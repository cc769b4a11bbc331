// Package compat cross-checks this toolkit's own decoder against
// go-interpreter/wagon's independent one, as a differential test
// oracle rather than a production dependency: spec.md §3 forbids the
// core module model from depending on an external representation, so
// wagon never appears outside this package and the tests that import
// it (wasm/compat/wagon_test.go). Grounded on the corpus's only use of
// wagon/wasm as a standalone decoder (other_examples'
// wagon-wasm-types.go / wagon-wasm-section.go), which read a type
// section's FunctionSig entries the same way DiffTypeSection does
// here.
package compat

import (
	"bytes"
	"fmt"

	wagon "github.com/go-interpreter/wagon/wasm"

	"github.com/wasmcore/wasmcore/wasm"
)

// DiffTypeSection decodes data's type section with wagon's
// wasm.ReadModule and compares the result against ours, the types this
// toolkit decoded from the same bytes. It reports a type-count
// disagreement and, for each type, the first param/result count or
// value-type disagreement found. It does not attempt to diff anything beyond
// the type section: wagon's module model diverges too far from this
// toolkit's (no reference types, no multi-memory, ...) for a
// whole-module comparison to be meaningful.
func DiffTypeSection(ours []wasm.FuncType, data []byte) ([]string, error) {
	wm, err := wagon.ReadModule(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("wagon: %w", err)
	}
	if wm.Types == nil {
		if len(ours) != 0 {
			return []string{fmt.Sprintf("wagon saw no type section, we decoded %d types", len(ours))}, nil
		}
		return nil, nil
	}

	var diffs []string
	theirs := wm.Types.Entries
	if len(ours) != len(theirs) {
		diffs = append(diffs, fmt.Sprintf("type count mismatch: ours=%d wagon=%d", len(ours), len(theirs)))
	}
	n := len(ours)
	if len(theirs) < n {
		n = len(theirs)
	}
	for i := 0; i < n; i++ {
		if d := diffFuncType(i, ours[i], theirs[i]); d != "" {
			diffs = append(diffs, d)
		}
	}
	return diffs, nil
}

func diffFuncType(i int, ours wasm.FuncType, theirs wagon.FunctionSig) string {
	if len(ours.Params) != len(theirs.ParamTypes) {
		return fmt.Sprintf("type %d: param count mismatch: ours=%d wagon=%d", i, len(ours.Params), len(theirs.ParamTypes))
	}
	if len(ours.Results) != len(theirs.ReturnTypes) {
		return fmt.Sprintf("type %d: result count mismatch: ours=%d wagon=%d", i, len(ours.Results), len(theirs.ReturnTypes))
	}
	for j, p := range ours.Params {
		if !sameValueType(p, theirs.ParamTypes[j]) {
			return fmt.Sprintf("type %d: param %d mismatch: ours=%s wagon=%s", i, j, p, theirs.ParamTypes[j])
		}
	}
	for j, r := range ours.Results {
		if !sameValueType(r, theirs.ReturnTypes[j]) {
			return fmt.Sprintf("type %d: result %d mismatch: ours=%s wagon=%s", i, j, r, theirs.ReturnTypes[j])
		}
	}
	return ""
}

// sameValueType compares one of our ValueTypes against wagon's (wagon
// only knows the four MVP numeric types; anything else in ours cannot
// have come from a module wagon also accepted).
func sameValueType(v wasm.ValueType, w wagon.ValueType) bool {
	if v.Kind != wasm.KindNumeric {
		return false
	}
	switch v.Numeric {
	case wasm.I32:
		return w == wagon.ValueTypeI32
	case wasm.I64:
		return w == wagon.ValueTypeI64
	case wasm.F32:
		return w == wagon.ValueTypeF32
	case wasm.F64:
		return w == wagon.ValueTypeF64
	}
	return false
}
