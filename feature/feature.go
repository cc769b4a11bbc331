// Package feature is the value-typed boolean set threaded through the
// reader, validator and writer, per the "feature set as a value"
// design note: never process-wide state, always an explicit argument.
package feature

// Set selects which Wasm extension encodings a phase recognizes.
// The zero value is the MVP feature set (everything off).
type Set struct {
	MutableGlobals        bool
	SignExtension         bool
	SaturatingFloatToInt  bool
	MultiValue            bool
	ReferenceTypes        bool
	BulkMemory            bool
	SIMD                  bool
	Threads               bool
	TailCall              bool
	FunctionReferences    bool
	Memory64              bool
	MultiMemory           bool
	Exceptions            bool
	GC                    bool
	Annotations           bool
}

// MVP returns the feature set with every extension disabled.
func MVP() Set { return Set{} }

// All returns the feature set with every known extension enabled.
func All() Set {
	return Set{
		MutableGlobals:       true,
		SignExtension:        true,
		SaturatingFloatToInt: true,
		MultiValue:           true,
		ReferenceTypes:       true,
		BulkMemory:           true,
		SIMD:                 true,
		Threads:              true,
		TailCall:             true,
		FunctionReferences:   true,
		Memory64:             true,
		MultiMemory:          true,
		Exceptions:           true,
		GC:                   true,
		Annotations:          true,
	}
}
