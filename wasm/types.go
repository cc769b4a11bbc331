// Package wasm is the module model: the in-memory representation of a
// Wasm binary module (the eager reader that assembles one from a byte
// span is package wasm/reader). Every entity here is a value type with
// structural equality, per spec.md §3 — a forest of ordered lists and
// indices, never a pointer graph, following design note §9 ("no smart
// pointers or cycles").
//
// Entities take singular names, as in the teacher
// (vertexvm/wasm/module.go); each section's entries are a plain slice
// field on Module.
package wasm

import "fmt"

// Index spaces are all uint32, interpreted per kind (spec.md §3).
type (
	TypeIdx   uint32
	FuncIdx   uint32
	TableIdx  uint32
	MemIdx    uint32
	GlobalIdx uint32
	ElemIdx   uint32
	DataIdx   uint32
	LocalIdx  uint32
	LabelIdx  uint32
	EventIdx  uint32
)

// ValueKind discriminates the tagged union that is ValueType.
type ValueKind uint8

const (
	KindNumeric ValueKind = iota
	KindVector
	KindReference
)

// NumericType is one of i32, i64, f32, f64.
type NumericType uint8

const (
	I32 NumericType = iota
	I64
	F32
	F64
)

func (n NumericType) String() string {
	switch n {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return "numeric(?)"
}

// ReferenceKind is one of the named reference type keywords.
type ReferenceKind uint8

const (
	Funcref ReferenceKind = iota
	Externref
	Anyref
	Eqref
	I31ref
)

func (r ReferenceKind) String() string {
	switch r {
	case Funcref:
		return "funcref"
	case Externref:
		return "externref"
	case Anyref:
		return "anyref"
	case Eqref:
		return "eqref"
	case I31ref:
		return "i31ref"
	}
	return "reference(?)"
}

// HeapType is either a named reference kind or a concrete type index
// (typed-function-references / GC preview).
type HeapType struct {
	IsIndex bool
	Kind    ReferenceKind
	Index   TypeIdx
}

func (h HeapType) String() string {
	if h.IsIndex {
		return fmt.Sprintf("%d", h.Index)
	}
	return h.Kind.String()
}

// RefType is a parametric reference type: `ref [null?] <heap-type>`.
type RefType struct {
	Nullable bool
	Heap     HeapType
}

func (r RefType) String() string {
	if r.Nullable {
		return fmt.Sprintf("ref null %s", r.Heap)
	}
	return fmt.Sprintf("ref %s", r.Heap)
}

// ReferenceType is the tagged union of bare reference-kind keywords
// and a full parametric `ref` type.
type ReferenceType struct {
	IsRef bool // true: Ref is populated; false: Kind is populated.
	Kind  ReferenceKind
	Ref   RefType
}

func (r ReferenceType) String() string {
	if r.IsRef {
		return r.Ref.String()
	}
	return r.Kind.String()
}

// HeapOf returns the reference type's heap type, for uses (like
// ValueType.Equal) that compare the heap separately from nullability.
func (r ReferenceType) HeapOf() HeapType {
	if r.IsRef {
		return r.Ref.Heap
	}
	return HeapType{Kind: r.Kind}
}

// IsNullable reports whether r admits the null reference. A bare
// reference-kind keyword (funcref, externref, ...) is sugar for an
// implicitly nullable `ref null <heap>` type, so it compares nullable
// the same as the explicit form over the same heap; only an explicit
// `ref <heap>` (Nullable false) excludes null.
func (r ReferenceType) IsNullable() bool {
	if r.IsRef {
		return r.Ref.Nullable
	}
	return true
}

// ValueType is the tagged union described in spec.md §3: numeric,
// vector, or reference.
type ValueType struct {
	Kind      ValueKind
	Numeric   NumericType
	Reference ReferenceType
}

func NumericValue(n NumericType) ValueType { return ValueType{Kind: KindNumeric, Numeric: n} }
func VectorValue() ValueType               { return ValueType{Kind: KindVector} }
func ReferenceValue(r ReferenceType) ValueType {
	return ValueType{Kind: KindReference, Reference: r}
}

func (v ValueType) String() string {
	switch v.Kind {
	case KindNumeric:
		return v.Numeric.String()
	case KindVector:
		return "v128"
	case KindReference:
		return v.Reference.String()
	}
	return "value(?)"
}

// Equal reports structural equality, the only notion of equality any
// entity in this package needs (design note §9: no identity, indices
// are the referential mechanism).
func (v ValueType) Equal(o ValueType) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumeric:
		return v.Numeric == o.Numeric
	case KindVector:
		return true
	case KindReference:
		// (ref null $t) and (ref $t) share a heap type but are distinct
		// types; bare keywords (funcref, ...) normalize to "nullable"
		// before comparing, since they are sugar for ref null <kind>.
		return v.Reference.HeapOf() == o.Reference.HeapOf() &&
			v.Reference.IsNullable() == o.Reference.IsNullable()
	}
	return false
}

// FuncType is an ordered parameter list and ordered result list.
// Multi-value is unconditional in the model (spec.md §3); the
// validator rejects >1 result when the multi-value feature is off.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	for i := range f.Results {
		if !f.Results[i].Equal(o.Results[i]) {
			return false
		}
	}
	return true
}

// BlockKind discriminates BlockType's tagged union.
type BlockKind uint8

const (
	BlockVoid BlockKind = iota
	BlockValue
	BlockTypeIndex
)

// BlockType is void, a single value type, or a reference to a function
// type by index.
type BlockType struct {
	Kind  BlockKind
	Value ValueType
	Index TypeIdx
}

// Limits is {min, max?}, with invariant min <= max when max is present.
type Limits struct {
	Min     uint32
	Max     uint32
	HasMax  bool
	Shared  bool // threads feature: shared memories must set HasMax too.
	Index64 bool // memory64 feature; meaningful for memory limits only.
}

// TableType is a table's element reference type plus its limits.
type TableType struct {
	Limits  Limits
	Element ReferenceType
}

// MemType is a linear memory's limits (shared/memory64 flags live on
// Limits itself, since only memories and tables need them and a table
// never sets Index64).
type MemType struct {
	Limits Limits
}

// Mutability of a global.
type Mutability uint8

const (
	Const Mutability = iota
	Var
)

// GlobalType is a value type plus its mutability.
type GlobalType struct {
	Value ValueType
	Mut   Mutability
}

// EventAttribute is the single defined attribute kind for event types
// (exceptions feature); 0 means "exception".
type EventAttribute uint8

// EventType associates an attribute with the function type describing
// the event's parameter types.
type EventType struct {
	Attribute EventAttribute
	Type      TypeIdx
}
