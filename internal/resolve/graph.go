package resolve

import (
	"fmt"

	"github.com/abidump/dwarfabi/internal/canon"
	"github.com/abidump/dwarfabi/internal/diestore"
	"github.com/abidump/dwarfabi/internal/symtab"
	"github.com/abidump/dwarfabi/internal/vtable"
	"github.com/abidump/dwarfabi/pkg/types"
)

// Graph is the shared resolution state TypeResolver and SymbolResolver
// both mutate. One Graph serves exactly one Dump call.
type Graph struct {
	store *diestore.Store
	ctx   *types.Context
	canon *canon.Canonicalizer
	syms  *symtab.Result
	vtabs vtable.Result

	offToID  map[types.DIEOffset]types.TypeID
	byID     map[types.TypeID]*types.Type
	nameToID map[string]types.TypeID // "family:name" -> first-occurrence ID
	aliasOf  map[types.TypeID]types.TypeID
	nextID   types.TypeID

	// localIDs marks type IDs resolved from a DIE the DIEStore considers
	// local: declared inside a function body and therefore not part of
	// the ABI unless transitively referenced. A
	// single ID may be reached from both a local and a non-local DIE
	// (merged by name), so this is OR'd in, never cleared.
	localIDs map[types.TypeID]bool

	Symbols      []*types.Symbol
	mangledIndex map[string]int // mangled name -> index into Symbols
}

// NewGraph seeds a Graph with the reserved void/ellipsis intrinsics.
func NewGraph(store *diestore.Store, ctx *types.Context, syms *symtab.Result, vtabs vtable.Result) *Graph {
	g := &Graph{
		store:        store,
		ctx:          ctx,
		canon:        canon.New(),
		syms:         syms,
		vtabs:        vtabs,
		offToID:      make(map[types.DIEOffset]types.TypeID),
		byID:         make(map[types.TypeID]*types.Type),
		nameToID:     make(map[string]types.TypeID),
		aliasOf:      make(map[types.TypeID]types.TypeID),
		nextID:       types.VoidTypeID + 1,
		mangledIndex: make(map[string]int),
		localIDs:     make(map[types.TypeID]bool),
	}
	g.byID[types.VoidTypeID] = &types.Type{ID: types.VoidTypeID, Kind: types.KindIntrinsic, Name: "void"}
	g.byID[types.EllipsisTypeID] = &types.Type{ID: types.EllipsisTypeID, Kind: types.KindIntrinsic, Name: "..."}
	return g
}

// Types returns every resolved Type record, keyed by its as-resolved ID,
// including alias records the Pruner's GetFirst-following walk is
// expected to collapse.
func (g *Graph) Types() map[types.TypeID]*types.Type { return g.byID }

// AliasOf reports whether id was redirected to a canonical merge target
// and, if so, what that target is.
func (g *Graph) AliasOf(id types.TypeID) (types.TypeID, bool) {
	v, ok := g.aliasOf[id]
	return v, ok
}

// IsLocalType reports whether id was ever resolved from a DIE the
// DIEStore considers local. markLocal records the ID a DIE finally
// resolves to, after name merging, so a canonical ID merged from both a
// local and a non-local DIE counts as local.
func (g *Graph) IsLocalType(id types.TypeID) bool { return g.localIDs[id] }

// markLocal flags a just-registered type ID as local when off's DIE is
// nested inside a subprogram body.
func (g *Graph) markLocal(off types.DIEOffset, id types.TypeID) {
	if g.store.IsLocal(off) {
		g.localIDs[id] = true
	}
}

// GetFirst follows an alias chain to the canonical type ID.
func (g *Graph) GetFirst(id types.TypeID) types.TypeID {
	seen := map[types.TypeID]bool{}
	for {
		target, ok := g.aliasOf[id]
		if !ok || seen[id] {
			return id
		}
		seen[id] = true
		id = target
	}
}

func (g *Graph) allocTypeID() types.TypeID {
	id := g.nextID
	g.nextID++
	return id
}

func kindFamily(k types.Kind) string {
	switch k {
	case types.KindClass, types.KindStruct:
		return "aggregate"
	case types.KindEnum:
		return "enum"
	case types.KindUnion:
		return "union"
	case types.KindTypedef:
		return "typedef"
	default:
		return fmt.Sprintf("kind%d", int(k))
	}
}

// mergesByName reports whether kind participates in the name ->
// first-occurrence-ID merge: struct and class merge together; enum,
// union, and typedef each form their own family. Structural kinds
// (pointer, const, array, ...) are keyed by DIE identity instead, since
// two differently-shaped pointers can coincide in display name without
// being the same type.
func mergesByName(k types.Kind) bool {
	switch k {
	case types.KindClass, types.KindStruct, types.KindEnum, types.KindUnion, types.KindTypedef:
		return true
	}
	return false
}

// registerCanonical registers the canonical name -> first-occurrence ID
// mapping, or, when a later DIE canonicalizes to an already-seen name,
// marks this ID as an alias of the earlier one and returns that earlier
// ID. The just-built record for id stays in byID rather than being
// deleted, since other records already resolved during this type's own
// field population may have captured id by value before the alias was
// known; GetFirst collapses those references later. Forward declarations
// whose definition lives in a different compilation unit resolve the
// same way.
func (g *Graph) registerCanonical(t *types.Type) types.TypeID {
	if !mergesByName(t.Kind) || t.Name == "" {
		return t.ID
	}
	key := kindFamily(t.Kind) + ":" + t.Name
	if existing, ok := g.nameToID[key]; ok && existing != t.ID {
		g.aliasOf[t.ID] = existing
		return existing
	}
	g.nameToID[key] = t.ID
	return t.ID
}
