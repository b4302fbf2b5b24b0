package prune

import (
	"strings"

	"github.com/abidump/dwarfabi/internal/resolve"
	"github.com/abidump/dwarfabi/pkg/types"
)

// Options are the CLI-level switches that bear on pruning.
type Options struct {
	AllTypes bool
}

// Result is the final, frozen type/symbol graph ready for emission.
type Result struct {
	Types   map[types.TypeID]*types.Type
	Symbols []*types.Symbol
}

// Prune rewrites the graph in place: reachability walk from bucket-1
// symbols, bucket-2 fixed-point resolution, optional all-types retention,
// then the final drop of merged/local/unreached types and the
// completeness audit. g must already have run ResolveSymbols.
func Prune(g *resolve.Graph, bucket2 []*types.Symbol, opts Options, diag *types.Diagnostics) Result {
	p := &pruner{
		g:             g,
		opts:          opts,
		diag:          diag,
		reachable:     map[types.TypeID]bool{types.TypeID(types.VoidTypeID): true, types.TypeID(types.EllipsisTypeID): true},
		reachableFile: map[string]bool{},
		subclasses:    buildSubclassIndex(g),
	}

	for _, s := range g.Symbols {
		p.walkSymbol(s)
	}

	p.resolveBucket2(bucket2)

	if opts.AllTypes {
		p.retainAllTypes()
	}

	return p.finish()
}

type pruner struct {
	g    *resolve.Graph
	opts Options
	diag *types.Diagnostics

	reachable     map[types.TypeID]bool
	reachableFile map[string]bool
	subclasses    map[types.TypeID][]types.TypeID
}

// buildSubclassIndex maps a base class's canonical type ID to every
// derived class that names it in its Bases list, for the "its class or
// any subclass is already reachable" test on deferred symbols.
func buildSubclassIndex(g *resolve.Graph) map[types.TypeID][]types.TypeID {
	idx := make(map[types.TypeID][]types.TypeID)
	for id, t := range g.Types() {
		for _, b := range t.Bases {
			base := g.GetFirst(b.Type)
			idx[base] = append(idx[base], id)
		}
	}
	return idx
}

// walkSymbol registers a symbol's class, return, and parameter types,
// recursively, rewriting every reference to its canonical ID as it goes.
func (p *pruner) walkSymbol(s *types.Symbol) {
	if s.HasClass {
		s.Class = p.g.GetFirst(s.Class)
		p.walkType(s.Class)
	}
	if s.HasReturn {
		s.Return = p.g.GetFirst(s.Return)
		p.walkType(s.Return)
	}
	for i := range s.Params {
		s.Params[i].Type = p.g.GetFirst(s.Params[i].Type)
		p.walkType(s.Params[i].Type)
	}
	if s.HasDecl && s.Decl.Path != "" {
		p.reachableFile[s.Decl.Path] = true
	}
}

// walkType registers a type and everything it references: bases,
// members, base-of-pointer/array, method/field-pointer class and
// parameters. Template-argument types are themselves Type IDs reachable
// only through the fields above, since TParams is a display name list,
// not an ID list.
func (p *pruner) walkType(id types.TypeID) {
	id = p.g.GetFirst(id)
	if p.reachable[id] {
		return
	}
	p.reachable[id] = true

	t := p.g.Types()[id]
	if t == nil {
		return
	}
	if t.HasDecl && t.Decl.Path != "" {
		p.reachableFile[t.Decl.Path] = true
	}
	if t.HasBase {
		t.Base = p.g.GetFirst(t.Base)
		p.walkType(t.Base)
	}
	for i := range t.Members {
		t.Members[i].Type = p.g.GetFirst(t.Members[i].Type)
		p.walkType(t.Members[i].Type)
	}
	for i := range t.Bases {
		t.Bases[i].Type = p.g.GetFirst(t.Bases[i].Type)
		p.walkType(t.Bases[i].Type)
	}
	if t.HasReturn {
		t.Return = p.g.GetFirst(t.Return)
		p.walkType(t.Return)
	}
	for i := range t.Params {
		t.Params[i].Type = p.g.GetFirst(t.Params[i].Type)
		p.walkType(t.Params[i].Type)
	}
}

// resolveBucket2 keeps a deferred symbol once its class (or any subclass
// of it) is reachable, or its declaring
// header/source is already reachable, then register its types too.
// Newly kept symbols can themselves make further bucket-2 symbols
// reachable (a sibling method of a now-reachable class, say), so this
// iterates to a fixed point rather than a single pass.
func (p *pruner) resolveBucket2(bucket2 []*types.Symbol) {
	pending := append([]*types.Symbol(nil), bucket2...)
	for {
		var still []*types.Symbol
		changed := false
		for _, s := range pending {
			if p.bucket2Reachable(s) {
				p.g.Symbols = append(p.g.Symbols, s)
				p.walkSymbol(s)
				changed = true
				continue
			}
			still = append(still, s)
		}
		pending = still
		if !changed || len(pending) == 0 {
			return
		}
	}
}

func (p *pruner) bucket2Reachable(s *types.Symbol) bool {
	if s.HasClass {
		cls := p.g.GetFirst(s.Class)
		if p.reachable[cls] {
			return true
		}
		for _, sub := range p.subclasses[cls] {
			if p.reachable[sub] {
				return true
			}
		}
	}
	if s.HasDecl && s.Decl.Path != "" && p.reachableFile[s.Decl.Path] {
		return true
	}
	return false
}

// isAnonymous reports whether name is one of the synthetic
// "anon-<kind>-<file>-<line>" names TypeResolver assigns anonymous
// aggregates.
func isAnonymous(name string) bool {
	return strings.HasPrefix(name, "anon-")
}

// retainAllTypes registers every non-local, non-anonymous type, plus
// anonymous enums, then drops any
// anonymous type (other than an enum) that the symbol walk itself never
// reached: the all-types sweep should widen what a real ABI consumer can
// still reach by name, not resurrect a compiler-internal anonymous shape
// nothing names.
func (p *pruner) retainAllTypes() {
	origReachable := make(map[types.TypeID]bool, len(p.reachable))
	for id := range p.reachable {
		origReachable[id] = true
	}

	for id, t := range p.g.Types() {
		canon := p.g.GetFirst(id)
		if canon != id {
			continue // alias source; its canonical record is handled on its own iteration
		}
		if p.g.IsLocalType(canon) {
			continue
		}
		if isAnonymous(t.Name) && t.Kind != types.KindEnum {
			continue
		}
		p.reachable[canon] = true
	}

	for id := range p.reachable {
		t := p.g.Types()[id]
		if t == nil || t.Kind == types.KindEnum {
			continue
		}
		if isAnonymous(t.Name) && !origReachable[id] {
			delete(p.reachable, id)
		}
	}
}

// finish drops every type not in the reachable set, drops merged
// (non-canonical) and local types, then runs the completeness audit.
func (p *pruner) finish() Result {
	out := make(map[types.TypeID]*types.Type, len(p.reachable))
	for id := range p.reachable {
		if _, isAlias := p.g.AliasOf(id); isAlias {
			continue
		}
		if p.g.IsLocalType(id) {
			continue
		}
		t := p.g.Types()[id]
		if t == nil {
			continue
		}
		out[id] = t
	}
	p.auditCompleteness(out)
	return Result{Types: out, Symbols: p.g.Symbols}
}

// auditCompleteness checks that every referenced type ID exists in the
// final set and carries a name. Neither condition is fatal; the dump is
// still emitted.
func (p *pruner) auditCompleteness(out map[types.TypeID]*types.Type) {
	exists := func(id types.TypeID) bool {
		if id == types.TypeID(types.VoidTypeID) || id == types.TypeID(types.EllipsisTypeID) {
			return true
		}
		t, ok := out[id]
		return ok && t.Name != ""
	}
	for id, t := range out {
		if t.HasBase && !exists(t.Base) {
			p.diag.Add(types.SevWarning, types.DiagMissingType, "type %d: base type %d missing from output", id, t.Base)
		}
		for _, m := range t.Members {
			if !exists(m.Type) {
				p.diag.Add(types.SevWarning, types.DiagMissingType, "type %d: member %q type %d missing from output", id, m.Name, m.Type)
			}
		}
		for _, b := range t.Bases {
			if !exists(b.Type) {
				p.diag.Add(types.SevWarning, types.DiagMissingType, "type %d: base class %d missing from output", id, b.Type)
			}
		}
		if t.HasReturn && !exists(t.Return) {
			p.diag.Add(types.SevWarning, types.DiagMissingType, "type %d: return type %d missing from output", id, t.Return)
		}
		for _, prm := range t.Params {
			if !exists(prm.Type) {
				p.diag.Add(types.SevWarning, types.DiagMissingType, "type %d: parameter %q type %d missing from output", id, prm.Name, prm.Type)
			}
		}
	}
	for _, s := range p.g.Symbols {
		name := s.MnglName
		if name == "" {
			name = s.ShortName
		}
		if s.HasClass && !exists(s.Class) {
			p.diag.Add(types.SevWarning, types.DiagDanglingRef, "symbol %s: class type %d missing from output", name, s.Class)
		}
		if s.HasReturn && !exists(s.Return) {
			p.diag.Add(types.SevWarning, types.DiagDanglingRef, "symbol %s: return type %d missing from output", name, s.Return)
		}
		for _, prm := range s.Params {
			if !exists(prm.Type) {
				p.diag.Add(types.SevWarning, types.DiagDanglingRef, "symbol %s: parameter %q type %d missing from output", name, prm.Name, prm.Type)
			}
		}
	}
}
