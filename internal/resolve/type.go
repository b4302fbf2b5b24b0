package resolve

import (
	"fmt"
	"strings"

	"github.com/abidump/dwarfabi/internal/canon"
	"github.com/abidump/dwarfabi/pkg/types"
)

func kindForTag(tag types.Tag) (types.Kind, bool) {
	switch tag {
	case types.TagBaseType:
		return types.KindIntrinsic, true
	case types.TagClassType:
		return types.KindClass, true
	case types.TagStructureType:
		return types.KindStruct, true
	case types.TagUnionType:
		return types.KindUnion, true
	case types.TagEnumerationType:
		return types.KindEnum, true
	case types.TagArrayType:
		return types.KindArray, true
	case types.TagConstType:
		return types.KindConst, true
	case types.TagVolatileType:
		return types.KindVolatile, true
	case types.TagPointerType:
		return types.KindPointer, true
	case types.TagReferenceType:
		return types.KindRef, true
	case types.TagTypedef:
		return types.KindTypedef, true
	case types.TagPtrToMemberType:
		return types.KindFieldPtr, true
	case types.TagSubroutineType:
		return types.KindFunc, true
	default:
		return 0, false
	}
}

// ResolveType produces the canonical Type record for a type-denoting DIE,
// on demand and memoized by offset. A type whose base
// resolves to an unnamed (local) type is dropped entirely, and callers
// see that as a false second return.
func (g *Graph) ResolveType(off types.DIEOffset) (types.TypeID, bool) {
	if id, ok := g.offToID[off]; ok {
		return id, true
	}
	die := g.store.DIE(off)
	if die == nil {
		return 0, false
	}
	kind, ok := kindForTag(die.Tag)
	if !ok {
		return 0, false
	}

	t := &types.Type{Kind: kind}
	id := g.allocTypeID()
	t.ID = id
	g.byID[id] = t
	// Register before recursing into members/bases: a struct holding a
	// pointer to itself must see its own (still-being-built) ID rather
	// than recurse forever.
	g.offToID[off] = id

	if kind == types.KindClass || kind == types.KindStruct {
		t.Copied = true
	}

	if !g.populateBase(die, t) {
		delete(g.byID, id)
		delete(g.offToID, off)
		return 0, false
	}

	g.populateMembers(off, die, t)
	g.populateBases(off, die, t)
	if site, ok := g.store.DeclSite(off); ok {
		t.Decl, t.HasDecl = site, true
	}
	if sz, ok := die.IntAttr("byte_size"); ok {
		t.Size, t.HasSize = sz, true
	}
	g.buildQualifiedName(off, die, t)
	g.populateFunctionShape(off, die, t)
	g.applySpecialShapes(off, die, t)

	if specOff, ok := die.RefAttr("specification"); ok {
		if specID, ok := g.ResolveType(specOff); ok {
			spec := g.byID[specID]
			if spec != nil {
				// The specification's record survives; the definition fills
				// in whichever of Name/Decl/Size the specification lacks.
				if spec.Name == "" {
					spec.Name = g.canon.Canonicalize(t.Name, canon.ModeType)
				}
				if !spec.HasDecl && t.HasDecl {
					spec.Decl, spec.HasDecl = t.Decl, true
				}
				if !spec.HasSize && t.HasSize {
					spec.Size, spec.HasSize = t.Size, true
				}
				spec.SpecOf, spec.HasSpecOf = off, true
				delete(g.byID, id)
				g.offToID[off] = specID
				g.markLocal(off, specID)
				return specID, true
			}
		}
	}

	t.Name = g.canon.Canonicalize(t.Name, canon.ModeType)
	if strings.HasSuffix(t.Name, ">") {
		if args, ok := canon.TemplateArgs(t.Name); ok {
			t.TParams = args
		}
	}
	if t.Name == "" {
		if word, ok := anonKindWord[t.Kind]; ok {
			t.Name = fmt.Sprintf("anon-%s-%s-%d", word, t.Decl.Path, t.Decl.Line)
		}
	}
	g.foldAnonTypedefBase(t)
	g.attachVTable(t)

	final := g.registerCanonical(t)
	g.offToID[off] = final
	g.markLocal(off, final)
	return final, true
}

// ResolveAllTypes eagerly resolves every DIE in scan order whose tag
// denotes a type, rather than only the ones a symbol happens to
// reference. Run before ResolveSymbols so --all-types and the
// completeness audit see the complete type universe; safe to
// call unconditionally since resolution is memoized by offset and the
// Pruner, not presence in the type map, decides what survives to output.
func (g *Graph) ResolveAllTypes() {
	for _, off := range g.store.Order() {
		die := g.store.DIE(off)
		if die == nil {
			continue
		}
		if _, ok := kindForTag(die.Tag); ok {
			g.ResolveType(off)
		}
	}
}

var anonKindWord = map[types.Kind]string{
	types.KindClass:  "class",
	types.KindStruct: "struct",
	types.KindUnion:  "union",
	types.KindEnum:   "enum",
}

// foldAnonTypedefBase handles "typedef struct { ... } S;": when a
// typedef's immediate base is an anonymous struct or union, the pair
// collapses into one record named "<kind> S" with the base's members
// folded in directly, and the anonymous base itself drops out of the
// type table (nothing else names it once the typedef stops pointing at
// it, and retainAllTypes already skips unreached anonymous aggregates).
func (g *Graph) foldAnonTypedefBase(t *types.Type) {
	if t.Kind != types.KindTypedef || !t.HasBase || t.Name == "" {
		return
	}
	base := g.byID[t.Base]
	if base == nil {
		return
	}
	word, ok := anonKindWord[base.Kind]
	if !ok || base.Kind == types.KindEnum || !strings.HasPrefix(base.Name, "anon-") {
		return
	}
	t.Members = append([]types.Member(nil), base.Members...)
	t.Bases = append([]types.BaseClass(nil), base.Bases...)
	if !t.HasSize && base.HasSize {
		t.Size, t.HasSize = base.Size, true
	}
	t.Name = word + " " + t.Name
	g.aliasOf[t.Base] = t.ID
	t.HasBase = false
}

// populateBase resolves the DIE's "type" attribute into t.Base.
func (g *Graph) populateBase(die *types.DIE, t *types.Type) bool {
	typeOff, ok := die.RefAttr("type")
	if !ok {
		return true
	}
	baseID, ok := g.ResolveType(typeOff)
	if !ok {
		return false
	}
	base := g.byID[baseID]
	if base == nil {
		return false
	}
	// A base that resolves to unnamed local code drops the whole type.
	// Structural kinds (pointer, func, array, ...) are legitimately
	// nameless even when non-local; their own Name, if any, comes later
	// from a reshape step. Only local-and-nameless counts as local code
	// here, not nameless in general.
	if base.Name == "" && g.IsLocalType(baseID) {
		return false
	}
	t.Base, t.HasBase = baseID, true
	return true
}

// populateMembers fills t.Members from the aggregate's member and
// enumerator children, in DIE order.
func (g *Graph) populateMembers(off types.DIEOffset, die *types.DIE, t *types.Type) {
	if die.Tag != types.TagClassType && die.Tag != types.TagStructureType &&
		die.Tag != types.TagUnionType && die.Tag != types.TagEnumerationType {
		return
	}
	unnamed := 0
	for _, mo := range g.store.Members(off) {
		md := g.store.DIE(mo)
		if md == nil {
			continue
		}
		name, _ := md.StrAttr("name")
		switch {
		case name == "":
			name = fmt.Sprintf("unnamed%d", unnamed)
			unnamed++
		case strings.HasPrefix(name, "_vptr."):
			name = "_vptr"
		}

		var memType types.TypeID
		if typeOff, ok := md.RefAttr("type"); ok {
			id, ok := g.ResolveType(typeOff)
			if !ok {
				continue
			}
			memType = id
		}

		m := types.Member{Name: name, Type: memType, Access: accessOf(md)}
		if die.Tag == types.TagUnionType {
			m.Offset = 0
		} else if loc, ok := md.IntAttr("data_member_location"); ok {
			m.Offset = loc
		}
		if bs, ok := md.IntAttr("bit_size"); ok {
			m.BitSize, m.HasBitSize = int(bs), true
		}
		t.Members = append(t.Members, m)
	}
}

// populateBases fills t.Bases from the aggregate's inheritance children.
func (g *Graph) populateBases(off types.DIEOffset, die *types.DIE, t *types.Type) {
	if die.Tag != types.TagClassType && die.Tag != types.TagStructureType {
		return
	}
	for i, io := range g.store.Inheritances(off) {
		id := g.store.DIE(io)
		if id == nil {
			continue
		}
		typeOff, ok := id.RefAttr("type")
		if !ok {
			continue
		}
		baseID, ok := g.ResolveType(typeOff)
		if !ok {
			continue
		}
		t.Bases = append(t.Bases, types.BaseClass{
			Type:    baseID,
			Pos:     i,
			Access:  accessOf(id),
			Virtual: virtuality(id) != "",
		})
	}
}

func accessOf(d *types.DIE) types.Access {
	if v, ok := d.StrAttr("accessibility"); ok {
		switch v {
		case "private":
			return types.AccessPrivate
		case "protected":
			return types.AccessProtected
		}
	}
	return types.AccessPublic
}

func virtuality(d *types.DIE) string {
	v, _ := d.StrAttr("virtuality")
	return v
}

// buildQualifiedName joins the namespace chain with "::" and prepends
// the lowercase kind keyword for struct/enum/union names.
func (g *Graph) buildQualifiedName(off types.DIEOffset, die *types.DIE, t *types.Type) {
	name, _ := die.StrAttr("name")
	if nsOff, ok := g.store.Namespace(off); ok {
		t.Namespace = g.qualifiedNamespaceName(nsOff)
	}
	full := name
	if t.Namespace != "" && name != "" {
		full = t.Namespace + "::" + name
	}
	switch t.Kind {
	case types.KindStruct:
		if full != "" {
			full = "struct " + full
		}
	case types.KindEnum:
		if full != "" {
			full = "enum " + full
		}
	case types.KindUnion:
		if full != "" {
			full = "union " + full
		}
	}
	t.Name = full
}

// qualifiedNamespaceName resolves a namespace-chain ancestor's own
// qualified name, recursing through nested namespaces and, for a
// class-enclosing namespace, resolving that class as a type and stripping
// its leading "struct " prefix.
func (g *Graph) qualifiedNamespaceName(off types.DIEOffset) string {
	d := g.store.DIE(off)
	if d == nil {
		return ""
	}
	switch d.Tag {
	case types.TagNamespace:
		name, _ := d.StrAttr("name")
		if parent, ok := g.store.Namespace(off); ok {
			if parentName := g.qualifiedNamespaceName(parent); parentName != "" && name != "" {
				return parentName + "::" + name
			}
		}
		return name
	case types.TagClassType, types.TagStructureType, types.TagUnionType:
		if id, ok := g.ResolveType(off); ok {
			if tt := g.byID[id]; tt != nil {
				return strings.TrimPrefix(strings.TrimPrefix(tt.Name, "struct "), "union ")
			}
		}
		name, _ := d.StrAttr("name")
		return name
	default:
		return ""
	}
}

// populateFunctionShape fills Return/Params for a bare subroutine_type DIE,
// whether or not it ends up wrapped into a FuncPtr/MethodPtr shape.
func (g *Graph) populateFunctionShape(off types.DIEOffset, die *types.DIE, t *types.Type) {
	if die.Tag != types.TagSubroutineType {
		return
	}
	if typeOff, ok := die.RefAttr("type"); ok {
		if id, ok := g.ResolveType(typeOff); ok {
			t.Return, t.HasReturn = id, true
		}
	} else {
		t.Return, t.HasReturn = types.TypeID(types.VoidTypeID), true
	}
	for _, po := range g.store.Params(off) {
		pd := g.store.DIE(po)
		if pd == nil {
			continue
		}
		if pd.Tag == types.TagUnspecifiedParameters {
			t.Params = append(t.Params, types.Param{Type: types.TypeID(types.EllipsisTypeID)})
			continue
		}
		typeOff, ok := pd.RefAttr("type")
		if !ok {
			continue
		}
		id, ok := g.ResolveType(typeOff)
		if !ok {
			continue
		}
		name, _ := pd.StrAttr("name")
		t.Params = append(t.Params, types.Param{Name: name, Type: id})
	}
}

// applySpecialShapes rewrites pointer-to-subroutine, __pfn-struct,
// ptr_to_member_type, and array DIEs into their FuncPtr/MethodPtr/
// FieldPtr/array forms.
func (g *Graph) applySpecialShapes(off types.DIEOffset, die *types.DIE, t *types.Type) {
	switch {
	case t.Kind == types.KindPointer && t.HasBase && g.isSubroutine(t.Base):
		g.reshapeFuncPtr(t)
	case (t.Kind == types.KindStruct || t.Kind == types.KindClass) && len(t.Members) > 0 && t.Members[0].Name == "__pfn":
		g.reshapeMethodPtr(off, t)
	case die.Tag == types.TagPtrToMemberType:
		g.reshapeFieldPtr(die, t)
	case die.Tag == types.TagArrayType:
		g.reshapeArray(off, t)
	}
	if (die.Tag == types.TagConstType || die.Tag == types.TagVolatileType) && !t.HasBase {
		t.Base, t.HasBase = types.TypeID(types.VoidTypeID), true
	}
}

// attachVTable gives a Class or Struct whose (unqualified-of-keyword)
// name matches a "Vtable for <name>" block in the vtable dump that
// block's slot map verbatim. The vtable dumper emits
// plain demangled class names, never the "struct " keyword
// TypeResolver prefixes onto struct names, so the keyword is stripped
// before the lookup.
func (g *Graph) attachVTable(t *types.Type) {
	if t.Kind != types.KindClass && t.Kind != types.KindStruct {
		return
	}
	if g.vtabs == nil {
		return
	}
	key := strings.TrimPrefix(strings.TrimPrefix(t.Name, "struct "), "class ")
	if slots, ok := g.vtabs[key]; ok && len(slots) > 0 {
		t.VTable = slots
	}
}

func (g *Graph) isSubroutine(id types.TypeID) bool {
	t := g.byID[id]
	return t != nil && t.Kind == types.KindFunc
}

func (g *Graph) nameOf(id types.TypeID) string {
	if t := g.byID[id]; t != nil {
		return t.Name
	}
	return ""
}

func (g *Graph) joinParamTypeNames(params []types.Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = g.nameOf(p.Type)
	}
	return strings.Join(names, ",")
}

func (g *Graph) reshapeFuncPtr(t *types.Type) {
	base := g.byID[t.Base]
	if base == nil {
		return
	}
	t.Kind = types.KindFuncPtr
	t.Return, t.HasReturn = base.Return, base.HasReturn
	t.Params = append([]types.Param(nil), base.Params...)
	t.Name = g.nameOf(t.Return) + "(*)(" + g.joinParamTypeNames(t.Params) + ")"
}

func (g *Graph) reshapeMethodPtr(off types.DIEOffset, t *types.Type) {
	parent, ok := g.store.Parent(off)
	if !ok {
		return
	}
	subs := g.store.ChildrenWithTags(parent, types.TagSubroutineType)
	if len(subs) == 0 {
		return
	}
	subOff := subs[len(subs)-1]
	subID, ok := g.ResolveType(subOff)
	if !ok {
		return
	}
	sub := g.byID[subID]
	if sub == nil {
		return
	}
	classID := g.methodPtrClass(subOff)
	params := sub.Params
	if len(params) > 0 {
		params = params[1:] // drop the implicit "this"
	}
	t.Kind = types.KindMethodPtr
	t.Return, t.HasReturn = sub.Return, sub.HasReturn
	t.Params = params
	if classID != 0 {
		t.Base, t.HasBase = classID, true
	}
	t.Name = g.nameOf(t.Return) + "(" + g.nameOf(classID) + "::*)(" + g.joinParamTypeNames(params) + ")"
}

func (g *Graph) methodPtrClass(subOff types.DIEOffset) types.TypeID {
	subDie := g.store.DIE(subOff)
	if subDie == nil {
		return 0
	}
	objOff, ok := subDie.RefAttr("object_pointer")
	if !ok {
		return 0
	}
	objDie := g.store.DIE(objOff)
	if objDie == nil {
		return 0
	}
	ptrTypeOff, ok := objDie.RefAttr("type")
	if !ok {
		return 0
	}
	ptrID, ok := g.ResolveType(ptrTypeOff)
	if !ok {
		return 0
	}
	ptr := g.byID[ptrID]
	if ptr == nil {
		return 0
	}
	return ptr.Base
}

func (g *Graph) reshapeFieldPtr(die *types.DIE, t *types.Type) {
	t.Kind = types.KindFieldPtr
	t.Size, t.HasSize = int64(g.ctx.WordSize), true
	fieldTypeName := g.nameOf(t.Base)
	className := ""
	if classOff, ok := die.RefAttr("containing_type"); ok {
		if id, ok := g.ResolveType(classOff); ok {
			className = g.nameOf(id)
		}
	}
	t.Name = fieldTypeName + "(" + className + "::*)"
}

func (g *Graph) reshapeArray(off types.DIEOffset, t *types.Type) {
	elemName := g.nameOf(t.Base)
	var elemSize int64
	if elem := g.byID[t.Base]; elem != nil && elem.HasSize {
		elemSize = elem.Size
	}
	n := int64(-1)
	if subs := g.store.ChildrenWithTags(off, types.TagSubrangeType); len(subs) > 0 {
		if sd := g.store.DIE(subs[0]); sd != nil {
			if ub, ok := sd.IntAttr("upper_bound"); ok {
				n = ub + 1
			}
		}
	}
	if n >= 0 {
		t.Name = fmt.Sprintf("%s[%d]", elemName, n)
		if elemSize > 0 {
			t.Size, t.HasSize = n*elemSize, true
		}
	} else {
		t.Name = elemName + "[]"
	}
}
