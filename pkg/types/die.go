package types

// DIEOffset is the byte offset of a DWARF debugging information entry
// within its compilation unit's .debug_info contribution. It is the DIE
// graph's only notion of identity: two DIE records with the same offset
// are the same entry by construction of the upstream disassembler.
type DIEOffset uint64

// Reserved IDs that never come from the disassembler but are always
// present in the resolved type graph: 1 is void, -1 is the ellipsis
// placeholder.
const (
	VoidTypeID     = 1
	EllipsisTypeID = -1
)

// Tag enumerates the DWARF DIE tags this reducer understands. The
// enumeration is closed: DWARF 4/5 define the full tag set, and any tag
// outside this list is carried as TagUnknown rather than rejected, since
// an unrecognized DIE (e.g. a vendor extension) should not abort a run.
type Tag int

const (
	TagUnknown Tag = iota
	TagCompileUnit
	TagNamespace
	TagClassType
	TagStructureType
	TagUnionType
	TagEnumerationType
	TagArrayType
	TagSubroutineType
	TagBaseType
	TagConstType
	TagPointerType
	TagReferenceType
	TagVolatileType
	TagTypedef
	TagPtrToMemberType
	TagSubprogram
	TagInlinedSubroutine
	TagLexicalBlock
	TagVariable
	TagMember
	TagEnumerator
	TagInheritance
	TagFormalParameter
	TagUnspecifiedParameters
	TagSubrangeType
)

var tagNames = map[string]Tag{
	"compile_unit":           TagCompileUnit,
	"namespace":              TagNamespace,
	"class_type":             TagClassType,
	"structure_type":         TagStructureType,
	"union_type":             TagUnionType,
	"enumeration_type":       TagEnumerationType,
	"array_type":             TagArrayType,
	"subroutine_type":        TagSubroutineType,
	"base_type":              TagBaseType,
	"const_type":             TagConstType,
	"pointer_type":           TagPointerType,
	"reference_type":         TagReferenceType,
	"volatile_type":          TagVolatileType,
	"typedef":                TagTypedef,
	"ptr_to_member_type":     TagPtrToMemberType,
	"subprogram":             TagSubprogram,
	"inlined_subroutine":     TagInlinedSubroutine,
	"lexical_block":          TagLexicalBlock,
	"variable":               TagVariable,
	"member":                 TagMember,
	"enumerator":             TagEnumerator,
	"inheritance":            TagInheritance,
	"formal_parameter":       TagFormalParameter,
	"unspecified_parameters": TagUnspecifiedParameters,
	"subrange_type":          TagSubrangeType,
}

// ParseTag maps a DWARF tag keyword (as it appears in the textualized DIE
// dump, e.g. "DW_TAG_structure_type" or "structure_type") onto a Tag.
func ParseTag(name string) Tag {
	if t, ok := tagNames[trimDWTagPrefix(name)]; ok {
		return t
	}
	return TagUnknown
}

func trimDWTagPrefix(name string) string {
	const prefix = "DW_TAG_"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

// AttrForm distinguishes how an attribute value should be interpreted.
type AttrForm int

const (
	FormString AttrForm = iota // quoted text, strp/string forms collapse here
	FormRef                    // reference to another DIE, by offset
	FormInt                    // signed integer literal
	FormFlag                   // a flag/flag_present attribute (e.g. "external", "artificial")
	FormReg                    // a location naming a register number (value in Int)
	FormLocListOff             // a location deferring to the debug_loc table (offset in Int)
)

// AttrValue is a typed DIE attribute value. Exactly one of the fields is
// meaningful, selected by Form.
type AttrValue struct {
	Form AttrForm
	Str  string
	Ref  DIEOffset
	Int  int64
}

// DIE is one DWARF debugging information entry: an offset, a tag, the
// indentation-derived nesting depth the scanner observed, and a bag of
// typed attributes. DIE records are created during text scanning and
// never mutated afterward.
type DIE struct {
	Offset DIEOffset
	Tag    Tag
	Depth  int
	Attrs  map[string]AttrValue
}

// Attr returns the named attribute and whether it was present.
func (d *DIE) Attr(name string) (AttrValue, bool) {
	v, ok := d.Attrs[name]
	return v, ok
}

// RefAttr returns the offset named attribute resolves to, if it is a
// reference-form attribute.
func (d *DIE) RefAttr(name string) (DIEOffset, bool) {
	v, ok := d.Attrs[name]
	if !ok || v.Form != FormRef {
		return 0, false
	}
	return v.Ref, true
}

// StrAttr returns the named attribute's string value.
func (d *DIE) StrAttr(name string) (string, bool) {
	v, ok := d.Attrs[name]
	if !ok || v.Form != FormString {
		return "", false
	}
	return v.Str, true
}

// IntAttr returns the named attribute's integer value (FormInt or FormRef,
// since references decode as integers before being classified).
func (d *DIE) IntAttr(name string) (int64, bool) {
	v, ok := d.Attrs[name]
	if !ok {
		return 0, false
	}
	switch v.Form {
	case FormInt:
		return v.Int, true
	case FormRef:
		return int64(v.Ref), true
	}
	return 0, false
}

// LocKind distinguishes the three shapes a location attribute can resolve
// to: a frame offset, a register number, or a debug_loc list offset.
type LocKind int

const (
	LocFrameOffset LocKind = iota
	LocRegister
	LocListOffset
)

// Location is the resolved shape of a location-class attribute
// (DW_AT_location, DW_AT_frame_base, DW_AT_vtable_elem_location, ...).
type Location struct {
	Kind  LocKind
	Value int64
}

// LocAttr returns the named attribute interpreted as a location, when its
// form is one of Int/Reg/LocListOff.
func (d *DIE) LocAttr(name string) (Location, bool) {
	v, ok := d.Attrs[name]
	if !ok {
		return Location{}, false
	}
	switch v.Form {
	case FormInt:
		return Location{Kind: LocFrameOffset, Value: v.Int}, true
	case FormReg:
		return Location{Kind: LocRegister, Value: v.Int}, true
	case FormLocListOff:
		return Location{Kind: LocListOffset, Value: v.Int}, true
	}
	return Location{}, false
}

// FlagAttr reports whether the named boolean/keyword attribute is present
// at all; DWARF encodes booleans as attribute presence, not a true/false
// value.
func (d *DIE) FlagAttr(name string) bool {
	_, ok := d.Attrs[name]
	return ok
}
