// Package names decodes the "name" custom section: the debug-info
// mapping from binary indices back to source identifiers. Reproduced
// from the original wasp library's name_section.cc (NameAssoc,
// IndirectNameAssoc, NameSubsection), generalized from C++ value types
// with generated equality operators to plain Go structs (compared
// structurally, e.g. with reflect.DeepEqual), in the teacher's idiom of small value types next to their
// decode logic (vertexvm/wasm/module.go).
package names

import (
	"bytes"

	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/util"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

// NameAssoc pairs an index in some index space with its source name.
type NameAssoc struct {
	Index uint32
	Name  string
}

// NameMap is an index-ordered (not necessarily sorted) list of
// NameAssoc entries, e.g. one function's locals.
type NameMap []NameAssoc

// IndirectNameAssoc maps one outer index (e.g. a function) to the
// NameMap of its inner entities (e.g. that function's locals).
type IndirectNameAssoc struct {
	Index   uint32
	Entries NameMap
}

// Section is the fully decoded "name" custom section. Every field
// beyond ModuleName is optional and nil when the subsection was
// absent.
type Section struct {
	ModuleName    string
	HasModuleName bool
	FunctionNames NameMap
	LocalNames    []IndirectNameAssoc
	LabelNames    []IndirectNameAssoc
	TypeNames     NameMap
	TableNames    NameMap
	MemoryNames   NameMap
	GlobalNames   NameMap
	ElemNames     NameMap
	DataNames     NameMap
}

// Decode parses a "name" custom section's payload (the bytes after the
// section's own "name" string) into a Section, reporting a subsection
// with malformed contents to sink and moving on to the next one rather
// than aborting the whole section, matching the reader's general error
// policy (errs.Sink never stops iteration). An unknown subsection id,
// or a subsection size that cannot be read or overruns the payload, is
// reported and ends decoding.
func Decode(payload []byte, sink errs.Sink) Section {
	c := util.NewCursor(payload)
	var sec Section

	for !c.Done() {
		off := c.Offset()
		idByte, err := c.ReadByte()
		if err != nil {
			return sec
		}
		id, ok := enc.DecodeNameSubsectionID(idByte)
		if !ok {
			sink.Report(errs.New(off, errs.UnknownSectionID, "name section: unknown subsection id %#x", idByte))
			return sec
		}
		size, err := leb128.ReadU32(c)
		if err != nil {
			sink.Report(errs.New(off, errs.UnexpectedEOF, "name section: eof reading subsection size"))
			return sec
		}
		body, err := c.Sub(size)
		if err != nil {
			sink.Report(errs.New(off, errs.SectionSizeMismatch, "name subsection %d: declared size exceeds remaining bytes", id))
			return sec
		}
		decodeSubsection(&sec, id, body, sink)
	}
	return sec
}

func decodeSubsection(sec *Section, id enc.NameSubsectionID, body *util.Cursor, sink errs.Sink) {
	switch id {
	case enc.NameModule:
		name, err := readName(body)
		if err != nil {
			sink.Report(errs.New(body.Offset(), errs.BadUtf8, "module name subsection: %s", err))
			return
		}
		sec.ModuleName = name
		sec.HasModuleName = true
	case enc.NameFunction:
		sec.FunctionNames, _ = decodeNameMap(body, sink)
	case enc.NameLocal:
		sec.LocalNames, _ = decodeIndirectNameMap(body, sink)
	case enc.NameLabel:
		sec.LabelNames, _ = decodeIndirectNameMap(body, sink)
	case enc.NameTypeSub:
		sec.TypeNames, _ = decodeNameMap(body, sink)
	case enc.NameTable:
		sec.TableNames, _ = decodeNameMap(body, sink)
	case enc.NameMemory:
		sec.MemoryNames, _ = decodeNameMap(body, sink)
	case enc.NameGlobal:
		sec.GlobalNames, _ = decodeNameMap(body, sink)
	case enc.NameElemSub:
		sec.ElemNames, _ = decodeNameMap(body, sink)
	case enc.NameDataSub:
		sec.DataNames, _ = decodeNameMap(body, sink)
	}
}

func decodeNameMap(c *util.Cursor, sink errs.Sink) (NameMap, error) {
	n, err := leb128.ReadU32(c)
	if err != nil {
		sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "name map: eof reading count"))
		return nil, err
	}
	out := make(NameMap, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := leb128.ReadU32(c)
		if err != nil {
			sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "name map entry %d: eof reading index", i))
			return out, err
		}
		name, err := readName(c)
		if err != nil {
			sink.Report(errs.New(c.Offset(), errs.BadUtf8, "name map entry %d: %s", i, err))
			return out, err
		}
		out = append(out, NameAssoc{Index: idx, Name: name})
	}
	return out, nil
}

func decodeIndirectNameMap(c *util.Cursor, sink errs.Sink) ([]IndirectNameAssoc, error) {
	n, err := leb128.ReadU32(c)
	if err != nil {
		sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "indirect name map: eof reading count"))
		return nil, err
	}
	out := make([]IndirectNameAssoc, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := leb128.ReadU32(c)
		if err != nil {
			sink.Report(errs.New(c.Offset(), errs.UnexpectedEOF, "indirect name map entry %d: eof reading index", i))
			return out, err
		}
		inner, err := decodeNameMap(c, sink)
		if err != nil {
			return out, err
		}
		out = append(out, IndirectNameAssoc{Index: idx, Entries: inner})
	}
	return out, nil
}

// Encode serializes sec back to a "name" custom section's payload, the
// mechanical inverse of Decode, for clients that edit debug names (e.g.
// after Module.InsertImport renumbers a function) and want the result
// reflected in the re-encoded module.
func Encode(sec Section) []byte {
	var out bytes.Buffer
	if sec.HasModuleName {
		putSubsection(&out, enc.NameModule, func(b *bytes.Buffer) { putName(b, sec.ModuleName) })
	}
	putMapSubsection(&out, enc.NameFunction, sec.FunctionNames)
	putIndirectSubsection(&out, enc.NameLocal, sec.LocalNames)
	putIndirectSubsection(&out, enc.NameLabel, sec.LabelNames)
	putMapSubsection(&out, enc.NameTypeSub, sec.TypeNames)
	putMapSubsection(&out, enc.NameTable, sec.TableNames)
	putMapSubsection(&out, enc.NameMemory, sec.MemoryNames)
	putMapSubsection(&out, enc.NameGlobal, sec.GlobalNames)
	putMapSubsection(&out, enc.NameElemSub, sec.ElemNames)
	putMapSubsection(&out, enc.NameDataSub, sec.DataNames)
	return out.Bytes()
}

func putSubsection(out *bytes.Buffer, id enc.NameSubsectionID, body func(*bytes.Buffer)) {
	var b bytes.Buffer
	body(&b)
	out.WriteByte(enc.EncodeNameSubsectionID(id))
	leb128.PutU32(out, uint32(b.Len()))
	out.Write(b.Bytes())
}

func putMapSubsection(out *bytes.Buffer, id enc.NameSubsectionID, m NameMap) {
	if len(m) == 0 {
		return
	}
	putSubsection(out, id, func(b *bytes.Buffer) { putNameMap(b, m) })
}

func putIndirectSubsection(out *bytes.Buffer, id enc.NameSubsectionID, m []IndirectNameAssoc) {
	if len(m) == 0 {
		return
	}
	putSubsection(out, id, func(b *bytes.Buffer) {
		leb128.PutU32(b, uint32(len(m)))
		for _, e := range m {
			leb128.PutU32(b, e.Index)
			putNameMap(b, e.Entries)
		}
	})
}

func putNameMap(b *bytes.Buffer, m NameMap) {
	leb128.PutU32(b, uint32(len(m)))
	for _, e := range m {
		leb128.PutU32(b, e.Index)
		putName(b, e.Name)
	}
}

func putName(b *bytes.Buffer, s string) {
	leb128.PutU32(b, uint32(len(s)))
	b.WriteString(s)
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
	s, ok := util.ReadName(raw)
	if !ok {
		return s, errs.New(c.Offset(), errs.BadUtf8, "name is not valid utf-8")
	}
	return s, nil
}
