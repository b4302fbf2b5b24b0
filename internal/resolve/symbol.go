package resolve

import (
	"regexp"
	"strings"

	"github.com/abidump/dwarfabi/pkg/types"
)

// Options are the CLI-level switches that bear on symbol inclusion.
type Options struct {
	BinOnly    bool
	AllSymbols bool
}

var angleTokenRe = regexp.MustCompile(`<([^<>]+)>`)

var ctorDtorMarkers = []struct {
	sub        string
	ctor, dtor bool
}{
	{"C1E", true, false},
	{"C2E", true, false},
	{"D0E", false, true},
	{"D1E", false, true},
	{"D2E", false, true},
}

// ResolveSymbols walks every subprogram/variable DIE in scan order and
// populates g.Symbols (bucket 1, kept unconditionally) and the returned
// bucket-2 deferred set, whose fate the Pruner decides.
func (g *Graph) ResolveSymbols(opts Options) (bucket2 []*types.Symbol) {
	for _, off := range g.store.Order() {
		die := g.store.DIE(off)
		if die == nil || (die.Tag != types.TagSubprogram && die.Tag != types.TagVariable) {
			continue
		}
		sym, deferred, ok := g.resolveOneSymbol(off, die, opts)
		if !ok {
			continue
		}
		if deferred {
			bucket2 = append(bucket2, sym)
		}
	}
	// Deferred symbols leave g.Symbols; the Pruner re-adds the ones it keeps.
	if len(bucket2) > 0 {
		isDeferred := make(map[*types.Symbol]bool, len(bucket2))
		for _, s := range bucket2 {
			isDeferred[s] = true
		}
		kept := g.Symbols[:0]
		for _, s := range g.Symbols {
			if !isDeferred[s] {
				kept = append(kept, s)
			}
		}
		g.Symbols = kept
	}
	return bucket2
}

func (g *Graph) resolveOneSymbol(off types.DIEOffset, die *types.DIE, opts Options) (sym *types.Symbol, deferred bool, ok bool) {
	if g.isNestedLocal(off) {
		return nil, false, false
	}

	mangled, found := g.mangledName(off, die)
	if !found {
		return nil, false, false
	}
	mangled, sane := sanitizeMangled(mangled)
	if !sane {
		return nil, false, false
	}

	if idx, dup := g.mangledIndex[mangled]; dup {
		existing := g.Symbols[idx]
		if existing.Flags.PureVirt {
			existing.Flags.PureVirt = false
		}
		return nil, false, false
	}

	shortName, _ := die.StrAttr("name")
	sym = &types.Symbol{ShortName: shortName}
	if mangled != shortName {
		sym.MnglName = mangled
	}
	sym.Flags.Const, sym.Flags.Volatile = constVolatileFromMangled(mangled)

	effDie, effOff := die, off
	ctor, dtor := classifyCtorDtor(mangled)
	sym.Flags.Constructor, sym.Flags.Destructor = ctor, dtor
	if ctor || dtor {
		if originOff, has := g.store.AbstractOriginOf(off); has {
			if specOff, has := g.store.SpecificationOf(originOff); has {
				if specDie := g.store.DIE(specOff); specDie != nil {
					effDie, effOff = specDie, specOff
					if n, ok := specDie.StrAttr("name"); ok {
						sym.ShortName = n
					}
				}
			}
		}
	}

	if site, has := g.store.DeclSite(effOff); has {
		sym.Decl, sym.HasDecl = site, true
	}

	var classID types.TypeID
	var hasClass bool
	if nsOff, has := g.store.Namespace(effOff); has {
		sym.Namespace = g.qualifiedNamespaceName(nsOff)
		classID, hasClass = g.classOwnerOf(nsOff)
		if hasClass {
			sym.Class, sym.HasClass = classID, true
			if ctor {
				if cls := g.byID[classID]; cls != nil {
					cls.Copied = false
				}
			}
		}
	}

	isFunctionWithCode := false
	switch die.Tag {
	case types.TagSubprogram:
		isFunctionWithCode = true
		if typeOff, has := effDie.RefAttr("type"); has {
			if id, ok := g.ResolveType(typeOff); ok {
				sym.Return, sym.HasReturn = id, true
			}
		} else {
			sym.Return, sym.HasReturn = types.TypeID(types.VoidTypeID), true
		}
		hasThis := g.materializeParams(off, sym)
		sym.Flags.Static = hasClass && !hasThis
		sym.Flags.InLine = effDie.FlagAttr("inline")
		sym.Flags.Artificial = die.FlagAttr("artificial")
		g.applyVirtuality(effDie, sym)
		if sym.Flags.PureVirt || sym.Flags.InLine {
			isFunctionWithCode = false
		}
	case types.TagVariable:
		sym.Flags.Data = true
		if !hasClass {
			if specOff, has := g.store.SpecificationOf(off); has {
				if nsOff, has := g.store.Namespace(specOff); has {
					if id, ok := g.classOwnerOf(nsOff); ok {
						sym.Class, sym.HasClass = id, true
					}
				}
			}
		}
		if typeOff, has := die.RefAttr("type"); has {
			if id, ok := g.ResolveType(typeOff); ok {
				sym.Return, sym.HasReturn = id, true
			}
		}
	}

	exp, exported := g.isExported(mangled)
	if exported && exp.Name != mangled {
		sym.AliasName = exp.Name
	}

	switch selectSymbol(isFunctionWithCode, exported, die.FlagAttr("external"), sym.HasDecl && g.store.IsHeaderSite(effOff), opts) {
	case selectDrop:
		return nil, false, false
	case selectDefer:
		deferred = true
	}

	sym.ID = types.SymbolID(len(g.Symbols) + 1)
	g.Symbols = append(g.Symbols, sym)
	g.mangledIndex[mangled] = len(g.Symbols) - 1
	return sym, deferred, true
}

type selection int

const (
	selectDrop selection = iota
	selectKeep
	selectDefer
)

// selectSymbol decides a symbol's fate: functions with code survive only
// when exported (or under all-symbols with the external flag); data,
// inline, and pure-virtual symbols survive when exported, and otherwise
// defer to the pruning pass when declared in a header, or drop outright
// under bin-only.
func selectSymbol(isFunctionWithCode, exported, external, declaredInHeader bool, opts Options) selection {
	if isFunctionWithCode {
		if exported {
			return selectKeep
		}
		if opts.AllSymbols && external {
			return selectKeep
		}
		return selectDrop
	}
	if exported {
		return selectKeep
	}
	if opts.BinOnly {
		return selectDrop
	}
	if declaredInHeader {
		return selectDefer
	}
	return selectDrop
}

// mangledName recovers a DIE's mangled name. The textualized DWARF dump
// exposes it three ways: a direct linkage-name attribute (the
// common case), a tokenized "<mangled>" comment riding the low-PC or
// location attribute text, or, for declaration-only DIEs, by following
// to the specification.
func (g *Graph) mangledName(off types.DIEOffset, die *types.DIE) (string, bool) {
	if name, ok := die.StrAttr("linkage_name"); ok && name != "" {
		return name, true
	}
	if lp, ok := die.StrAttr("low_pc"); ok {
		if m := angleTokenRe.FindStringSubmatch(lp); m != nil {
			return m[1], true
		}
	}
	if loc, ok := die.StrAttr("location"); ok {
		if m := angleTokenRe.FindStringSubmatch(loc); m != nil {
			return m[1], true
		}
	}
	if specOff, ok := g.store.SpecificationOf(off); ok {
		if specDie := g.store.DIE(specOff); specDie != nil {
			if name, ok := g.mangledName(specOff, specDie); ok {
				return name, true
			}
		}
	}
	name, _ := die.StrAttr("name")
	if name == "" {
		return "", false
	}
	if strings.Contains(name, "<") {
		return "", false
	}
	return name, true
}

func isStubPunctuation(r rune) bool {
	switch r {
	case '(', ')', '<', '>', ',', ' ', '*', '&':
		return true
	}
	return false
}

// sanitizeMangled strips a trailing @version and rejects
// compiler-generated ".part"/".isra" stubs and un-demangleable names
// containing operator punctuation.
func sanitizeMangled(name string) (string, bool) {
	if idx := strings.IndexByte(name, '@'); idx >= 0 {
		name = name[:idx]
	}
	if strings.ContainsRune(name, '.') {
		return "", false
	}
	if strings.ContainsFunc(name, isStubPunctuation) {
		return "", false
	}
	return name, true
}

func (g *Graph) isNestedLocal(off types.DIEOffset) bool {
	parent, ok := g.store.Parent(off)
	if !ok {
		return false
	}
	pd := g.store.DIE(parent)
	return pd != nil && (pd.Tag == types.TagLexicalBlock || pd.Tag == types.TagSubprogram)
}

// constVolatileFromMangled derives method constness from the mangled
// prefix: _ZNK is const, _ZNV volatile, _ZNVK both.
func constVolatileFromMangled(mangled string) (isConst, isVolatile bool) {
	switch {
	case strings.HasPrefix(mangled, "_ZNVK"):
		return true, true
	case strings.HasPrefix(mangled, "_ZNK"):
		return true, false
	case strings.HasPrefix(mangled, "_ZNV"):
		return false, true
	}
	return false, false
}

// classifyCtorDtor detects constructors and destructors from the
// C1E/C2E/D0E/D1E/D2E mangling substrings.
func classifyCtorDtor(mangled string) (ctor, dtor bool) {
	for _, m := range ctorDtorMarkers {
		if strings.Contains(mangled, m.sub) {
			return m.ctor, m.dtor
		}
	}
	return false, false
}

// materializeParams fills sym.Params with each parameter's stack offset
// or register, returning whether an artificial "this" parameter was
// found (and dropped).
func (g *Graph) materializeParams(fn types.DIEOffset, sym *types.Symbol) (hasThis bool) {
	for _, po := range g.store.Params(fn) {
		pd := g.store.DIE(po)
		if pd == nil {
			continue
		}
		if pd.Tag == types.TagUnspecifiedParameters {
			continue
		}
		if pd.FlagAttr("artificial") {
			hasThis = true
			continue
		}
		var typeID types.TypeID
		if typeOff, ok := pd.RefAttr("type"); ok {
			if id, ok := g.ResolveType(typeOff); ok {
				typeID = id
			}
		}
		name, _ := pd.StrAttr("name")
		sp := types.SymParam{Name: name, Type: typeID}
		if loc, ok := pd.LocAttr("location"); ok {
			switch loc.Kind {
			case types.LocFrameOffset:
				sp.StackOff, sp.HasStack = loc.Value, true
			case types.LocRegister:
				sp.Register = g.ctx.RegisterName(int(loc.Value))
			case types.LocListOffset:
				if entry, ok := g.store.LocEntry(uint64(loc.Value)); ok {
					if entry.IsRegister {
						sp.Register = g.ctx.RegisterName(entry.RegNum)
					} else {
						sp.StackOff, sp.HasStack = entry.Value, true
					}
				}
			}
		}
		sym.Params = append(sym.Params, sp)
	}
	return hasThis
}

// applyVirtuality sets Virt/PureVirt and the vtable slot index.
func (g *Graph) applyVirtuality(die *types.DIE, sym *types.Symbol) {
	switch virtuality(die) {
	case "virtual":
		sym.Flags.Virt = true
	case "pure_virtual":
		sym.Flags.Virt, sym.Flags.PureVirt = true, true
	}
	if loc, ok := die.LocAttr("vtable_elem_location"); ok {
		sym.VTableSlot, sym.HasVTableSlot = int(loc.Value), true
	}
}

func (g *Graph) classOwnerOf(nsOff types.DIEOffset) (types.TypeID, bool) {
	d := g.store.DIE(nsOff)
	if d == nil {
		return 0, false
	}
	if d.Tag != types.TagClassType && d.Tag != types.TagStructureType && d.Tag != types.TagUnionType {
		return 0, false
	}
	return g.ResolveType(nsOff)
}

// isExported reports whether mangled (or its preferred versioned alias)
// appears in the ELF export table.
func (g *Graph) isExported(mangled string) (exportedAs struct {
	Name string
}, ok bool) {
	if g.syms == nil {
		return exportedAs, false
	}
	if exp, found := g.syms.Exports[mangled]; found {
		exportedAs.Name = exp.Name
		return exportedAs, true
	}
	if alias, found := g.syms.SymbolVersion[mangled]; found {
		if exp, found := g.syms.Exports[alias]; found {
			exportedAs.Name = exp.Name
			return exportedAs, true
		}
	}
	return exportedAs, false
}
