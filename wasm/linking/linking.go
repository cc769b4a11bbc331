// Package linking decodes the "linking" custom section and the
// per-code-section "reloc." sections object files carry, per the
// tool-conventions linking specification. Reproduced from the original
// wasp library's read_linking.h declarations (Comdat, ComdatSymbol,
// InitFunction, LinkingSubsection, RelocationEntry, SegmentInfo,
// SymbolInfo), generalized from wasp's `optional<T> Read(SpanU8*,
// Features&, Errors&, Tag<T>)` overload-per-type pattern to one Decode
// function per type taking a *util.Cursor and an errs.Sink, matching
// this toolkit's reader idiom (§4.3/§4.4).
package linking

import (
	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/util"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

// SegmentInfo names and aligns one data segment for the static linker.
type SegmentInfo struct {
	Name      string
	Alignment uint32
	Flags     uint32
}

// InitFunction records one constructor function and its call priority.
type InitFunction struct {
	Priority uint32
	Symbol   uint32
}

// ComdatSymbol is one member of a comdat (COMmon DATa) group.
type ComdatSymbol struct {
	Kind  enc.ComdatSymbolKind
	Index uint32
}

// Comdat is a group of symbols that must be included or excluded from
// the link together.
type Comdat struct {
	Name    string
	Flags   uint32
	Symbols []ComdatSymbol
}

// SymbolInfo is one entry of the symbol table subsection. Name is
// empty when the symbol is anonymous (WASM_SYM_EXPLICIT_NAME unset and
// the symbol refers to an imported entity that already has a name).
type SymbolInfo struct {
	Kind  enc.SymbolInfoKind
	Flags uint32

	Index bool // true: Idx field below is meaningful
	Idx   uint32

	Name string

	// SymbolData only: the segment this data symbol lives in, as a
	// byte range, present only when the symbol is defined (not undefined).
	Defined     bool
	DataIndex   uint32
	DataOffset  uint32
	DataSize    uint32
}

// Symbol flag bits, per the linking spec.
const (
	SymFlagUndefined   uint32 = 0x10
	SymFlagExplicitName uint32 = 0x40
)

// Section is the fully decoded "linking" custom section.
type Section struct {
	Version      uint32
	SegmentInfos []SegmentInfo
	InitFuncs    []InitFunction
	Comdats      []Comdat
	Symbols      []SymbolInfo
}

// RelocationEntry is one patch site recorded in a "reloc.*" section.
type RelocationEntry struct {
	Type   enc.RelocationType
	Offset uint32
	Index  uint32
	Addend int32 // only meaningful when enc.HasAddend(Type)
}

// RelocationSection is a decoded "reloc.*" custom section: which known
// section its entries patch, plus the patch list itself.
type RelocationSection struct {
	Section wasmSectionIndex
	Entries []RelocationEntry
}

// wasmSectionIndex is the target section's index within the module's
// section list (not a wasm.SectionID: the linking spec identifies
// sections positionally, since a module may carry more than one
// section of the same kind before linking).
type wasmSectionIndex = uint32

// Decode parses a "linking" custom section's payload (the bytes after
// the section's own "linking" name, starting with its version u32) into a
// Section, reporting malformed subsections to sink and stopping at the
// first one it cannot frame (unlike wasm/lazy, a corrupt linking
// section gives no reliable resync point, since subsection bodies are
// length-prefixed but the version-less dependent fields are not).
func Decode(payload []byte, sink errs.Sink) Section {
	c := util.NewCursor(payload)
	var sec Section

	version, err := leb128.ReadU32(c)
	if err != nil {
		sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "linking section: eof reading version"))
		return sec
	}
	sec.Version = version

	for !c.Done() {
		off := c.Offset()
		idByte, err := c.ReadByte()
		if err != nil {
			return sec
		}
		id, ok := enc.DecodeLinkingSubsectionID(idByte)
		if !ok {
			sink.Report(errs.New(off, errs.UnknownSectionID, "linking section: unknown subsection id %#x", idByte))
			return sec
		}
		size, err := leb128.ReadU32(c)
		if err != nil {
			sink.Report(errs.New(off, errs.UnexpectedEOF, "linking section: eof reading subsection size"))
			return sec
		}
		body, err := c.Sub(size)
		if err != nil {
			sink.Report(errs.New(off, errs.SectionSizeMismatch, "linking subsection %d: declared size exceeds remaining bytes", id))
			return sec
		}
		if !decodeSubsection(&sec, id, body, sink) {
			return sec
		}
	}
	return sec
}

func decodeSubsection(sec *Section, id enc.LinkingSubsectionID, body *util.Cursor, sink errs.Sink) bool {
	switch id {
	case enc.LinkingSegmentInfo:
		n, err := leb128.ReadU32(body)
		if err != nil {
			return false
		}
		for i := uint32(0); i < n; i++ {
			si, err := decodeSegmentInfo(body)
			if err != nil {
				sink.Report(errs.New(body.Offset(), errs.UnexpectedEOF, "segment info %d: %s", i, err))
				return false
			}
			sec.SegmentInfos = append(sec.SegmentInfos, si)
		}
	case enc.LinkingInitFuncs:
		n, err := leb128.ReadU32(body)
		if err != nil {
			return false
		}
		for i := uint32(0); i < n; i++ {
			priority, err := leb128.ReadU32(body)
			if err != nil {
				return false
			}
			symbol, err := leb128.ReadU32(body)
			if err != nil {
				return false
			}
			sec.InitFuncs = append(sec.InitFuncs, InitFunction{Priority: priority, Symbol: symbol})
		}
	case enc.LinkingComdatInfo:
		n, err := leb128.ReadU32(body)
		if err != nil {
			return false
		}
		for i := uint32(0); i < n; i++ {
			cd, err := decodeComdat(body)
			if err != nil {
				sink.Report(errs.New(body.Offset(), errs.UnexpectedEOF, "comdat %d: %s", i, err))
				return false
			}
			sec.Comdats = append(sec.Comdats, cd)
		}
	case enc.LinkingSymbolTable:
		n, err := leb128.ReadU32(body)
		if err != nil {
			return false
		}
		for i := uint32(0); i < n; i++ {
			si, err := decodeSymbolInfo(body)
			if err != nil {
				sink.Report(errs.New(body.Offset(), errs.UnexpectedEOF, "symbol %d: %s", i, err))
				return false
			}
			sec.Symbols = append(sec.Symbols, si)
		}
	}
	return true
}

func decodeSegmentInfo(c *util.Cursor) (SegmentInfo, error) {
	n, err := leb128.ReadU32(c)
	if err != nil {
		return SegmentInfo{}, err
	}
	raw, err := c.ReadBytes(n)
	if err != nil {
		return SegmentInfo{}, err
	}
	align, err := leb128.ReadU32(c)
	if err != nil {
		return SegmentInfo{}, err
	}
	flags, err := leb128.ReadU32(c)
	if err != nil {
		return SegmentInfo{}, err
	}
	name, _ := util.ReadName(raw)
	return SegmentInfo{Name: name, Alignment: align, Flags: flags}, nil
}

func decodeComdat(c *util.Cursor) (Comdat, error) {
	n, err := leb128.ReadU32(c)
	if err != nil {
		return Comdat{}, err
	}
	raw, err := c.ReadBytes(n)
	if err != nil {
		return Comdat{}, err
	}
	flags, err := leb128.ReadU32(c)
	if err != nil {
		return Comdat{}, err
	}
	count, err := leb128.ReadU32(c)
	if err != nil {
		return Comdat{}, err
	}
	name, _ := util.ReadName(raw)
	cd := Comdat{Name: name, Flags: flags}
	for i := uint32(0); i < count; i++ {
		kindByte, err := c.ReadByte()
		if err != nil {
			return cd, err
		}
		kind, _ := enc.DecodeComdatSymbolKind(kindByte)
		idx, err := leb128.ReadU32(c)
		if err != nil {
			return cd, err
		}
		cd.Symbols = append(cd.Symbols, ComdatSymbol{Kind: kind, Index: idx})
	}
	return cd, nil
}

func decodeSymbolInfo(c *util.Cursor) (SymbolInfo, error) {
	kindByte, err := c.ReadByte()
	if err != nil {
		return SymbolInfo{}, err
	}
	kind, _ := enc.DecodeSymbolInfoKind(kindByte)
	flags, err := leb128.ReadU32(c)
	if err != nil {
		return SymbolInfo{}, err
	}
	si := SymbolInfo{Kind: kind, Flags: flags}
	undefined := flags&SymFlagUndefined != 0

	switch kind {
	case enc.SymbolData:
		name, err := readName(c)
		if err != nil {
			return si, err
		}
		si.Name = name
		if !undefined {
			off, err := leb128.ReadU32(c)
			if err != nil {
				return si, err
			}
			offset, err := leb128.ReadU32(c)
			if err != nil {
				return si, err
			}
			size, err := leb128.ReadU32(c)
			if err != nil {
				return si, err
			}
			si.Defined = true
			si.DataIndex, si.DataOffset, si.DataSize = off, offset, size
		}
	case enc.SymbolSection:
		idx, err := leb128.ReadU32(c)
		if err != nil {
			return si, err
		}
		si.Index, si.Idx = true, idx
	default: // Function, Global, Event, Table
		idx, err := leb128.ReadU32(c)
		if err != nil {
			return si, err
		}
		si.Index, si.Idx = true, idx
		if !undefined || flags&SymFlagExplicitName != 0 {
			name, err := readName(c)
			if err != nil {
				return si, err
			}
			si.Name = name
		}
	}
	return si, nil
}

func readName(c *util.Cursor) (string, error) {
	n, err := leb128.ReadU32(c)
	if err != nil {
		return "", err
	}
	raw, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	s, _ := util.ReadName(raw)
	return s, nil
}

// DecodeRelocations parses a "reloc.*" custom section's payload into a
// RelocationSection.
func DecodeRelocations(payload []byte, sink errs.Sink) RelocationSection {
	c := util.NewCursor(payload)
	var rs RelocationSection

	idx, err := leb128.ReadU32(c)
	if err != nil {
		sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "relocation section: eof reading target section index"))
		return rs
	}
	rs.Section = idx

	count, err := leb128.ReadU32(c)
	if err != nil {
		sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "relocation section: eof reading entry count"))
		return rs
	}
	for i := uint32(0); i < count; i++ {
		typeByte, err := c.ReadByte()
		if err != nil {
			sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "relocation entry %d: eof reading type", i))
			return rs
		}
		typ, ok := enc.DecodeRelocationType(typeByte)
		if !ok {
			sink.Report(errs.New(c.Offset(), errs.UnknownOpcode, "relocation entry %d: unknown type %#x", i, typeByte))
			return rs
		}
		offset, err := leb128.ReadU32(c)
		if err != nil {
			sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "relocation entry %d: eof reading offset", i))
			return rs
		}
		index, err := leb128.ReadU32(c)
		if err != nil {
			sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "relocation entry %d: eof reading index", i))
			return rs
		}
		entry := RelocationEntry{Type: typ, Offset: offset, Index: index}
		if enc.HasAddend(typ) {
			addend, err := leb128.ReadS32(c)
			if err != nil {
				sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "relocation entry %d: eof reading addend", i))
				return rs
			}
			entry.Addend = addend
		}
		rs.Entries = append(rs.Entries, entry)
	}
	return rs
}
