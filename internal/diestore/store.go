// Package diestore holds an indexed in-memory graph of DIE records
// keyed by offset, with parent/child, specification, and abstract-origin
// edges derived once at construction time and then only read, never
// mutated.
package diestore

import (
	"github.com/abidump/dwarfabi/internal/textscan"
	"github.com/abidump/dwarfabi/pkg/types"
)

// namespaceTags are the tags that participate in the qualified-name
// chain Namespace climbs.
var namespaceTags = map[types.Tag]bool{
	types.TagNamespace:     true,
	types.TagClassType:     true,
	types.TagStructureType: true,
	types.TagUnionType:     true,
	types.TagSubprogram:    true,
	types.TagLexicalBlock:  true,
}

// Store is a flat offset-keyed DIE index plus derived reverse edges.
type Store struct {
	dies   map[types.DIEOffset]*types.DIE
	order  []types.DIEOffset
	parent map[types.DIEOffset]types.DIEOffset

	specificationOf map[types.DIEOffset]types.DIEOffset // definition -> specification
	specOfReverse   map[types.DIEOffset]types.DIEOffset // specification -> definition (first one seen)
	abstractOrigin  map[types.DIEOffset]types.DIEOffset // instance -> abstract_origin
	originReverse   map[types.DIEOffset][]types.DIEOffset

	cuFiles  map[types.DIEOffset]*textscan.CUFiles
	locTable map[uint64]textscan.LocEntry
}

// New builds a Store from a scanned Result. It derives specification and
// abstract_origin reverse edges once, up front, so downstream resolution
// never re-walks the whole DIE set to answer "who points at me".
func New(scan *textscan.Result) *Store {
	s := &Store{
		dies:            scan.DIEs,
		order:           scan.Order,
		parent:          scan.Parent,
		specificationOf: make(map[types.DIEOffset]types.DIEOffset),
		specOfReverse:   make(map[types.DIEOffset]types.DIEOffset),
		abstractOrigin:  make(map[types.DIEOffset]types.DIEOffset),
		originReverse:   make(map[types.DIEOffset][]types.DIEOffset),
		cuFiles:         scan.CUFiles,
		locTable:        scan.LocTable,
	}
	for _, off := range s.order {
		d := s.dies[off]
		if spec, ok := d.RefAttr("specification"); ok {
			s.specificationOf[off] = spec
			if _, exists := s.specOfReverse[spec]; !exists {
				s.specOfReverse[spec] = off
			}
		}
		if origin, ok := d.RefAttr("abstract_origin"); ok {
			s.abstractOrigin[off] = origin
			s.originReverse[origin] = append(s.originReverse[origin], off)
		}
	}
	return s
}

// DIE returns the DIE at the given offset, or nil if absent.
func (s *Store) DIE(off types.DIEOffset) *types.DIE { return s.dies[off] }

// Order returns every DIE offset in first-seen order.
func (s *Store) Order() []types.DIEOffset { return s.order }

// Len returns the number of DIEs in the store.
func (s *Store) Len() int { return len(s.dies) }

// Parent returns child's lexical parent, determined from the depth stack
// at scan time.
func (s *Store) Parent(child types.DIEOffset) (types.DIEOffset, bool) {
	p, ok := s.parent[child]
	return p, ok
}

// Namespace returns the nearest ancestor of off whose tag participates
// in the qualified-name chain.
func (s *Store) Namespace(off types.DIEOffset) (types.DIEOffset, bool) {
	cur, ok := s.parent[off]
	for ok {
		d := s.dies[cur]
		if d != nil && namespaceTags[d.Tag] {
			return cur, true
		}
		cur, ok = s.parent[cur]
	}
	return 0, false
}

// Children returns off's direct children in scan order.
func (s *Store) Children(off types.DIEOffset) []types.DIEOffset {
	var out []types.DIEOffset
	for _, o := range s.order {
		if p, ok := s.parent[o]; ok && p == off {
			out = append(out, o)
		}
	}
	return out
}

// ChildrenWithTags returns off's direct children whose tag is in tags,
// in scan order.
func (s *Store) ChildrenWithTags(off types.DIEOffset, tags ...types.Tag) []types.DIEOffset {
	want := make(map[types.Tag]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []types.DIEOffset
	for _, o := range s.order {
		p, ok := s.parent[o]
		if !ok || p != off {
			continue
		}
		if d := s.dies[o]; d != nil && want[d.Tag] {
			out = append(out, o)
		}
	}
	return out
}

// Members returns an aggregate's ordered member/enumerator children.
func (s *Store) Members(agg types.DIEOffset) []types.DIEOffset {
	return s.ChildrenWithTags(agg, types.TagMember, types.TagEnumerator)
}

// Inheritances returns an aggregate's ordered inheritance children.
func (s *Store) Inheritances(agg types.DIEOffset) []types.DIEOffset {
	return s.ChildrenWithTags(agg, types.TagInheritance)
}

// Params returns a function-like DIE's ordered formal-parameter children.
func (s *Store) Params(fn types.DIEOffset) []types.DIEOffset {
	return s.ChildrenWithTags(fn, types.TagFormalParameter, types.TagUnspecifiedParameters)
}

// SpecificationOf returns the DIE that off's "specification" attribute
// points to.
func (s *Store) SpecificationOf(off types.DIEOffset) (types.DIEOffset, bool) {
	v, ok := s.specificationOf[off]
	return v, ok
}

// SpecificationDefinitionOf returns the definition DIE (if any) whose
// "specification" attribute points back at off, the reverse edge.
func (s *Store) SpecificationDefinitionOf(off types.DIEOffset) (types.DIEOffset, bool) {
	v, ok := s.specOfReverse[off]
	return v, ok
}

// AbstractOriginOf returns the DIE off's "abstract_origin" attribute
// points to.
func (s *Store) AbstractOriginOf(off types.DIEOffset) (types.DIEOffset, bool) {
	v, ok := s.abstractOrigin[off]
	return v, ok
}

// InstancesOf returns every DIE whose abstract_origin points at off.
func (s *Store) InstancesOf(off types.DIEOffset) []types.DIEOffset {
	return s.originReverse[off]
}

// ClassMethods returns an aggregate's subprogram/variable children
// (methods and static data members), additionally indexing method DIEs
// under the class's specification target when one exists.
func (s *Store) ClassMethods(agg types.DIEOffset) []types.DIEOffset {
	methods := s.ChildrenWithTags(agg, types.TagSubprogram, types.TagVariable)
	if spec, ok := s.SpecificationOf(agg); ok {
		methods = append(methods, s.ChildrenWithTags(spec, types.TagSubprogram, types.TagVariable)...)
	}
	return methods
}

// IsLocal reports whether off is nested inside a subprogram ancestor and
// is therefore local to a function body, unless it is a constructor-
// template instance: detected when the enclosing subprogram's object-
// pointer type's bare name equals the subprogram's short name.
func (s *Store) IsLocal(off types.DIEOffset) bool {
	cur, ok := s.parent[off]
	for ok {
		d := s.dies[cur]
		if d == nil {
			return false
		}
		if d.Tag == types.TagSubprogram {
			if s.isConstructorTemplateInstance(d) {
				return false
			}
			return true
		}
		cur, ok = s.parent[cur]
	}
	return false
}

// isConstructorTemplateInstance compares the subprogram's object-pointer
// type's bare name to the subprogram's own short name. A match is a
// strong hint, not a proof; a local class sharing an outer template
// class's name would false-positive here.
func (s *Store) isConstructorTemplateInstance(sub *types.DIE) bool {
	objPtrOff, ok := sub.RefAttr("object_pointer")
	if !ok {
		return false
	}
	objPtr := s.dies[objPtrOff]
	if objPtr == nil {
		return false
	}
	ptrTypeOff, ok := objPtr.RefAttr("type")
	if !ok {
		return false
	}
	ptrType := s.dies[ptrTypeOff]
	if ptrType == nil {
		return false
	}
	// "this" is pointer-to-class; the class is the pointer's base type.
	classOff, ok := ptrType.RefAttr("type")
	if !ok {
		return false
	}
	class := s.dies[classOff]
	if class == nil {
		return false
	}
	className, _ := class.StrAttr("name")
	subName, _ := sub.StrAttr("name")
	return className != "" && className == subName
}

// CUFiles returns the file-number -> path map for a compile_unit DIE.
func (s *Store) CUFiles(cu types.DIEOffset) *textscan.CUFiles { return s.cuFiles[cu] }

// LocEntry resolves a location-list offset against the auxiliary
// debug_loc table.
func (s *Store) LocEntry(offset uint64) (textscan.LocEntry, bool) {
	e, ok := s.locTable[offset]
	return e, ok
}

// DeclSite resolves a DIE's decl_file/decl_line attributes to a source
// Site, looking up the path in the owning compile unit's file table.
func (s *Store) DeclSite(off types.DIEOffset) (types.Site, bool) {
	d := s.dies[off]
	if d == nil {
		return types.Site{}, false
	}
	fileNum, ok := d.IntAttr("decl_file")
	if !ok {
		return types.Site{}, false
	}
	line, _ := d.IntAttr("decl_line")
	cu := s.compileUnitOf(off)
	files := s.cuFiles[cu]
	if files == nil {
		return types.Site{}, false
	}
	entry, ok := files.Files[int(fileNum)]
	if !ok {
		return types.Site{}, false
	}
	return types.Site{Path: entry.Path, Line: int(line)}, true
}

// IsHeaderSite reports whether off's decl_file resolves to a header path.
func (s *Store) IsHeaderSite(off types.DIEOffset) bool {
	d := s.dies[off]
	if d == nil {
		return false
	}
	fileNum, ok := d.IntAttr("decl_file")
	if !ok {
		return false
	}
	cu := s.compileUnitOf(off)
	files := s.cuFiles[cu]
	if files == nil {
		return false
	}
	return files.Files[int(fileNum)].IsHeader
}

func (s *Store) compileUnitOf(off types.DIEOffset) types.DIEOffset {
	cur := off
	for {
		d := s.dies[cur]
		if d == nil {
			return 0
		}
		if d.Tag == types.TagCompileUnit {
			return cur
		}
		p, ok := s.parent[cur]
		if !ok {
			return cur
		}
		cur = p
	}
}
