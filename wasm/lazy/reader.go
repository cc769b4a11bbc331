// Package lazy is the streaming section reader: a pull iterator over a
// borrowed byte span that exposes one section at a time without ever
// materializing a full *wasm.Module, per spec.md §4.3's lazy/eager
// split. It is grounded on the teacher's ReadModule/readSection loop
// (vertexvm/wasm/module.go), generalized from "drive straight into a
// *wasm.Module" to "hand the caller one Section at a time and let it
// decide whether to decode, skip, or stop".
//
// wasm/reader's eager ReadModule is the first, and reference, consumer
// of this package: it calls Next in a loop and decodes every known
// section into the module model. A caller that only wants the export
// section of a large module, say, can call Next repeatedly and ignore
// sections it doesn't care about; Body is a sub-cursor over the raw
// payload, so skipped sections are never copied or parsed.
package lazy

import (
	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/util"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasm/enc"
)

// Section is one section header plus a cursor over its raw payload,
// still unparsed. Name is set for custom sections only.
type Section struct {
	ID   wasm.SectionID
	Raw  byte // the undecoded id byte, kept for unknown-id diagnostics
	Name string
	Body *util.Cursor
}

// Reader pulls sections one at a time from a module's byte span.
type Reader struct {
	c        *util.Cursor
	feature  feature.Set
	sink     errs.Sink
	lastID   wasm.SectionID
	sawOne   bool
	done     bool
}

// NewReader validates the module header (magic + version) and returns
// a Reader positioned at the first section, per the teacher's
// readMagic/readVersion (vertexvm/wasm/module.go).
func NewReader(data []byte, f feature.Set, sink errs.Sink) (*Reader, error) {
	c := util.NewCursor(data)
	magic, err := c.ReadU32LE()
	if err != nil {
		return nil, errs.New(0, errs.UnexpectedEOF, "eof reading magic number")
	}
	if magic != wasm.Magic {
		return nil, errs.New(0, errs.BadMagic, "not a wasm module: bad magic number %#x", magic)
	}
	version, err := c.ReadU32LE()
	if err != nil {
		return nil, errs.New(4, errs.UnexpectedEOF, "eof reading version")
	}
	if version != wasm.Version {
		return nil, errs.New(4, errs.BadVersion, "unsupported version %d", version)
	}
	return &Reader{c: c, feature: f, sink: sink}, nil
}

// sectionRank is each known section's position in the canonical order
// (the order wasm/write emits): the event section follows the memory
// section, and the data-count section precedes the code section.
var sectionRank = map[wasm.SectionID]int{
	wasm.TypeSectionID: 1, wasm.ImportSectionID: 2, wasm.FunctionSectionID: 3,
	wasm.TableSectionID: 4, wasm.MemorySectionID: 5, wasm.EventSectionID: 6,
	wasm.GlobalSectionID: 7, wasm.ExportSectionID: 8, wasm.StartSectionID: 9,
	wasm.ElementSectionID: 10, wasm.DataCountSectionID: 11, wasm.CodeSectionID: 12,
	wasm.DataSectionID: 13,
}

// Next returns the next section, or ok=false once the span is
// exhausted. Order violations (a known section id out of the
// canonical order, or repeated) are reported to the sink but do not
// stop iteration — spec.md §7's "errors never abort the caller"
// policy — so a caller doing best-effort recovery still sees every
// section.
func (r *Reader) Next() (Section, bool) {
	if r.done || r.c.Done() {
		r.done = true
		return Section{}, false
	}

	off := r.c.Offset()
	idByte, err := r.c.ReadByte()
	if err != nil {
		r.done = true
		return Section{}, false
	}

	id, known := enc.DecodeSectionID(idByte)
	if !known {
		r.sink.Report(errs.New(off, errs.UnknownSectionID, "unknown section id %d", idByte))
		r.done = true
		return Section{}, false
	}

	if id != wasm.CustomSectionID {
		if r.sawOne && sectionRank[id] <= sectionRank[r.lastID] {
			r.sink.Report(errs.New(off, errs.OrderViolation, "section %v out of order after %v", id, r.lastID))
		}
		r.lastID = id
		r.sawOne = true
	}

	size, err := leb128.ReadU32(r.c)
	if err != nil {
		r.sink.Report(err.(*errs.Error))
		r.done = true
		return Section{}, false
	}

	body, err := r.c.Sub(size)
	if err != nil {
		r.sink.Report(errs.New(off, errs.SectionSizeMismatch, "section size %d exceeds remaining input", size))
		r.done = true
		return Section{}, false
	}

	sec := Section{ID: id, Raw: idByte, Body: body}
	if id == wasm.CustomSectionID {
		nameLen, err := leb128.ReadU32(body)
		if err == nil {
			raw, err := body.ReadBytes(nameLen)
			if err == nil {
				if name, ok := util.ReadName(raw); ok {
					sec.Name = name
				} else {
					r.sink.Report(errs.New(body.Offset(), errs.BadUtf8, "custom section name is not valid utf-8"))
				}
			}
		}
	}
	return sec, true
}

// LastKnownSection returns the id of the most recently returned known
// (non-custom) section, for CustomSection.AfterSection (spec.md §4.6's
// interleaving requirement) — the authoritative order Next actually
// saw, not a guess reconstructed from which sections ended up
// non-empty. Before any known section has been seen it returns
// CustomSectionID, meaning "the very start".
func (r *Reader) LastKnownSection() wasm.SectionID {
	if !r.sawOne {
		return wasm.CustomSectionID
	}
	return r.lastID
}

// Feature returns the feature set the reader was constructed with, for
// section decoders that need to gate an extension opcode or type.
func (r *Reader) Feature() feature.Set { return r.feature }

// Sink returns the error sink the reader reports to.
func (r *Reader) Sink() errs.Sink { return r.sink }
