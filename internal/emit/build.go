package emit

import (
	"sort"
	"strconv"
	"strings"

	"github.com/abidump/dwarfabi/internal/prune"
	"github.com/abidump/dwarfabi/internal/symtab"
	"github.com/abidump/dwarfabi/pkg/types"
)

// DumperVersion is this reducer's own self-reported version, embedded as
// the ABI_DUMPER_VERSION field.
const DumperVersion = "abidump-1.0"

// AbiDumpVersion is the output format version.
const AbiDumpVersion = "3.0"

// Meta is the object-level metadata emitted alongside the resolved
// graph: producer strings and CLI-supplied identifiers that
// TextScanner/SymbolTableReader don't themselves own.
type Meta struct {
	LibraryName    string
	LibraryVersion string
	Language       string
	GccVersion     string // mutually exclusive with Compiler
	Compiler       string
	Arch           string
	WordSize       int
}

// headerExts mirrors textscan's header-extension set; the Emitter
// classifies declaration sites into Headers/Sources independently
// of the scanner, since pruning may have dropped the DIE the site came
// from.
var headerExts = map[string]bool{
	"h": true, "hh": true, "hp": true, "hxx": true, "hpp": true, "h++": true,
}

func isHeaderPath(path string) bool {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return false
	}
	return headerExts[path[idx+1:]]
}

// BuildTree assembles the top-level tagged value tree from a pruned
// type/symbol graph and the symbol table's versioning/dependency data.
func BuildTree(pruned prune.Result, syms *symtab.Result, meta Meta) *OMap {
	root := NewOMap()

	root.Put("TypeInfo", typeInfoNode(pruned.Types))
	root.Put("SymbolInfo", symbolInfoNode(pruned.Symbols))
	root.Put("Symbols", groupedByLibrary(meta.LibraryName, symbolNames(pruned.Symbols)))
	root.Put("UndefinedSymbols", groupedByLibrary(meta.LibraryName, undefinedNames(syms)))
	root.Put("Needed", neededList(syms))
	root.Put("SymbolVersion", symbolVersionNode(syms))
	root.Put("LibraryVersion", meta.LibraryVersion)
	root.Put("LibraryName", meta.LibraryName)
	root.Put("Language", meta.Language)
	root.Put("Headers", siteIndex(pruned, true))
	root.Put("Sources", siteIndex(pruned, false))
	root.Put("NameSpaces", namespaceIndex(pruned))
	root.Put("Target", "unix")
	root.Put("Arch", meta.Arch)
	root.Put("WordSize", int64(meta.WordSize))
	root.Put("ABI_DUMP_VERSION", AbiDumpVersion)
	root.Put("ABI_DUMPER_VERSION", DumperVersion)
	if meta.GccVersion != "" {
		root.Put("GccVersion", meta.GccVersion)
	} else {
		root.Put("Compiler", meta.Compiler)
	}
	return root
}

func typeInfoNode(typesByID map[types.TypeID]*types.Type) *OMap {
	ids := make([]types.TypeID, 0, len(typesByID))
	for id := range typesByID {
		ids = append(ids, id)
	}
	// typesByID is a Go map; impose numeric ID order so unsorted emission
	// is still identical across runs.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	n := NewOMap()
	for _, id := range ids {
		n.Put(strconv.FormatInt(int64(id), 10), typeNode(typesByID[id]))
	}
	return n
}

func symbolInfoNode(symbols []*types.Symbol) *OMap {
	n := NewOMap()
	for _, s := range symbols {
		n.Put(strconv.FormatInt(int64(s.ID), 10), symbolNode(s))
	}
	return n
}

func symbolNames(symbols []*types.Symbol) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		name := s.MnglName
		if name == "" {
			name = s.ShortName
		}
		out = append(out, name)
	}
	return out
}

func undefinedNames(syms *symtab.Result) []string {
	if syms == nil {
		return nil
	}
	out := make([]string, 0, len(syms.Undefined))
	for name := range syms.Undefined {
		out = append(out, name)
	}
	sort.Strings(out) // Undefined is a set (map[string]bool); impose a stable order ourselves.
	return out
}

func groupedByLibrary(library string, names []string) *OMap {
	inner := NewOMap()
	for _, name := range names {
		inner.Put(name, int64(1))
	}
	outer := NewOMap()
	outer.Put(library, inner)
	return outer
}

func neededList(syms *symtab.Result) []Node {
	if syms == nil {
		return nil
	}
	out := make([]Node, len(syms.Needed))
	for i, n := range syms.Needed {
		out[i] = n
	}
	return out
}

func symbolVersionNode(syms *symtab.Result) *OMap {
	n := NewOMap()
	if syms == nil {
		return n
	}
	names := make([]string, 0, len(syms.SymbolVersion))
	for base := range syms.SymbolVersion {
		names = append(names, base)
	}
	sort.Strings(names)
	for _, base := range names {
		n.Put(base, syms.SymbolVersion[base])
	}
	return n
}

func siteIndex(pruned prune.Result, headers bool) *OMap {
	n := NewOMap()
	add := func(site types.Site, has bool) {
		if !has || site.Path == "" {
			return
		}
		if isHeaderPath(site.Path) != headers {
			return
		}
		n.Put(site.Path, int64(1))
	}
	for _, t := range pruned.Types {
		add(t.Decl, t.HasDecl)
	}
	for _, s := range pruned.Symbols {
		add(s.Decl, s.HasDecl)
	}
	return n
}

func namespaceIndex(pruned prune.Result) *OMap {
	n := NewOMap()
	for _, t := range pruned.Types {
		if t.Namespace != "" {
			n.Put(t.Namespace, int64(1))
		}
	}
	for _, s := range pruned.Symbols {
		if s.Namespace != "" {
			n.Put(s.Namespace, int64(1))
		}
	}
	return n
}

var kindNames = map[types.Kind]string{
	types.KindIntrinsic: "Intrinsic",
	types.KindClass:     "Class",
	types.KindStruct:    "Struct",
	types.KindUnion:     "Union",
	types.KindEnum:      "Enum",
	types.KindArray:     "Array",
	types.KindConst:     "Const",
	types.KindVolatile:  "Volatile",
	types.KindPointer:   "Pointer",
	types.KindRef:       "Ref",
	types.KindTypedef:   "Typedef",
	types.KindFuncPtr:   "FuncPtr",
	types.KindMethodPtr: "MethodPtr",
	types.KindFieldPtr:  "FieldPtr",
	types.KindFunc:      "Func",
}

func kindName(k types.Kind) string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

func accessName(a types.Access) string {
	switch a {
	case types.AccessProtected:
		return "protected"
	case types.AccessPrivate:
		return "private"
	default:
		return "public"
	}
}

func putSite(n *OMap, site types.Site) {
	if isHeaderPath(site.Path) {
		n.Put("Header", site.Path)
		n.Put("Line", int64(site.Line))
		return
	}
	n.Put("Source", site.Path)
	n.Put("SourceLine", int64(site.Line))
}

func typeNode(t *types.Type) *OMap {
	n := NewOMap()
	n.Put("Name", t.Name)
	n.Put("Type", kindName(t.Kind))
	if t.HasSize {
		n.Put("Size", t.Size)
	}
	if t.HasDecl {
		putSite(n, t.Decl)
	}
	if t.HasBase {
		n.Put("BaseType", int64(t.Base))
	}
	if len(t.Members) > 0 {
		members := make([]Node, len(t.Members))
		for i, m := range t.Members {
			mn := NewOMap()
			mn.Put("name", m.Name)
			mn.Put("type", int64(m.Type))
			mn.Put("offset", m.Offset)
			if m.HasBitSize {
				mn.Put("bitfield", int64(m.BitSize))
			}
			if m.Access != types.AccessPublic {
				mn.Put("access", accessName(m.Access))
			}
			members[i] = mn
		}
		n.Put("Memb", members)
	}
	if len(t.Bases) > 0 {
		bases := make([]Node, len(t.Bases))
		for i, b := range t.Bases {
			bn := NewOMap()
			bn.Put("id", int64(b.Type))
			bn.Put("pos", int64(b.Pos))
			if b.Access != types.AccessPublic {
				bn.Put("access", accessName(b.Access))
			}
			if b.Virtual {
				bn.Put("virtual", int64(1))
			}
			bases[i] = bn
		}
		n.Put("Base", bases)
	}
	if len(t.VTable) > 0 {
		vt := NewOMap()
		slots := make([]int, 0, len(t.VTable))
		for slot := range t.VTable {
			slots = append(slots, slot)
		}
		sort.Ints(slots) // t.VTable is a Go map; iteration order must not leak into output.
		for _, slot := range slots {
			vt.Put(strconv.Itoa(slot), t.VTable[slot])
		}
		n.Put("VTable", vt)
	}
	if t.Namespace != "" {
		n.Put("NameSpace", t.Namespace)
	}
	if len(t.TParams) > 0 {
		tp := make([]Node, len(t.TParams))
		for i, p := range t.TParams {
			tp[i] = p
		}
		n.Put("TParam", tp)
	}
	if t.HasReturn {
		n.Put("Return", int64(t.Return))
	}
	if len(t.Params) > 0 {
		n.Put("Param", paramList(t.Params))
	}
	if (t.Kind == types.KindClass || t.Kind == types.KindStruct) && !t.Copied {
		n.Put("Copied", int64(0))
	}
	return n
}

func paramList(params []types.Param) []Node {
	out := make([]Node, len(params))
	for i, p := range params {
		pn := NewOMap()
		if p.Name != "" {
			pn.Put("name", p.Name)
		}
		pn.Put("type", int64(p.Type))
		out[i] = pn
	}
	return out
}

func symbolNode(s *types.Symbol) *OMap {
	n := NewOMap()
	n.Put("ShortName", s.ShortName)
	if s.MnglName != "" {
		n.Put("MnglName", s.MnglName)
	}
	if s.AliasName != "" {
		n.Put("Alias", s.AliasName)
	}
	putBoolFlag(n, "Constructor", s.Flags.Constructor)
	putBoolFlag(n, "Destructor", s.Flags.Destructor)
	putBoolFlag(n, "Virt", s.Flags.Virt)
	putBoolFlag(n, "PureVirt", s.Flags.PureVirt)
	putBoolFlag(n, "InLine", s.Flags.InLine)
	putBoolFlag(n, "Artificial", s.Flags.Artificial)
	putBoolFlag(n, "Static", s.Flags.Static)
	putBoolFlag(n, "Data", s.Flags.Data)
	putBoolFlag(n, "Const", s.Flags.Const)
	putBoolFlag(n, "Volatile", s.Flags.Volatile)
	if s.HasClass {
		n.Put("Class", int64(s.Class))
	}
	if s.Namespace != "" {
		n.Put("NameSpace", s.Namespace)
	}
	if s.HasReturn {
		n.Put("Return", int64(s.Return))
	}
	if len(s.Params) > 0 {
		params := make([]Node, len(s.Params))
		for i, p := range s.Params {
			pn := NewOMap()
			if p.Name != "" {
				pn.Put("name", p.Name)
			}
			pn.Put("type", int64(p.Type))
			if p.HasStack {
				pn.Put("offset", p.StackOff)
			}
			if p.Register != "" {
				pn.Put("reg", p.Register)
			}
			params[i] = pn
		}
		n.Put("Param", params)
	}
	if s.HasVTableSlot {
		n.Put("VirtPos", int64(s.VTableSlot))
	}
	if s.HasDecl {
		putSite(n, s.Decl)
	}
	return n
}

func putBoolFlag(n *OMap, key string, set bool) {
	if set {
		n.Put(key, int64(1))
	}
}
