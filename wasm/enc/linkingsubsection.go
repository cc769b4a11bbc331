package enc

// LinkingSubsectionID tags one piece of the "linking" custom section,
// per the tool-conventions linking specification
// (https://github.com/WebAssembly/tool-conventions/blob/main/Linking.md).
type LinkingSubsectionID uint8

const (
	LinkingSegmentInfo LinkingSubsectionID = 5
	LinkingInitFuncs   LinkingSubsectionID = 6
	LinkingComdatInfo  LinkingSubsectionID = 7
	LinkingSymbolTable LinkingSubsectionID = 8
)

// DecodeLinkingSubsectionID maps a subsection id byte.
func DecodeLinkingSubsectionID(b byte) (LinkingSubsectionID, bool) {
	switch LinkingSubsectionID(b) {
	case LinkingSegmentInfo, LinkingInitFuncs, LinkingComdatInfo, LinkingSymbolTable:
		return LinkingSubsectionID(b), true
	}
	return 0, false
}

// EncodeLinkingSubsectionID is DecodeLinkingSubsectionID's inverse.
func EncodeLinkingSubsectionID(id LinkingSubsectionID) byte { return byte(id) }

// SymbolInfoKind tags one entry of the linking section's symbol table.
type SymbolInfoKind uint8

const (
	SymbolFunction SymbolInfoKind = iota
	SymbolData
	SymbolGlobal
	SymbolSection
	SymbolEvent
	SymbolTable
)

// DecodeSymbolInfoKind maps a symbol-kind byte.
func DecodeSymbolInfoKind(b byte) (SymbolInfoKind, bool) {
	if b <= byte(SymbolTable) {
		return SymbolInfoKind(b), true
	}
	return 0, false
}

// EncodeSymbolInfoKind is DecodeSymbolInfoKind's inverse.
func EncodeSymbolInfoKind(k SymbolInfoKind) byte { return byte(k) }

// ComdatSymbolKind tags one entry of a comdat group.
type ComdatSymbolKind uint8

const (
	ComdatData ComdatSymbolKind = iota
	ComdatFunction
	ComdatGlobal
	ComdatEvent
	ComdatTable
	ComdatSection
)

// DecodeComdatSymbolKind maps a comdat-symbol-kind byte.
func DecodeComdatSymbolKind(b byte) (ComdatSymbolKind, bool) {
	if b <= byte(ComdatSection) {
		return ComdatSymbolKind(b), true
	}
	return 0, false
}

// EncodeComdatSymbolKind is DecodeComdatSymbolKind's inverse.
func EncodeComdatSymbolKind(k ComdatSymbolKind) byte { return byte(k) }
