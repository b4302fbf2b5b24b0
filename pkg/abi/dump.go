package abi

import (
	"regexp"
	"strings"

	"github.com/abidump/dwarfabi/internal/diestore"
	"github.com/abidump/dwarfabi/internal/emit"
	"github.com/abidump/dwarfabi/internal/prune"
	"github.com/abidump/dwarfabi/internal/resolve"
	"github.com/abidump/dwarfabi/internal/symtab"
	"github.com/abidump/dwarfabi/internal/textscan"
	"github.com/abidump/dwarfabi/internal/vtable"
	"github.com/abidump/dwarfabi/pkg/types"
)

// Streams holds the three textual subprocess outputs one ELF object
// produces: the DIE dump, the symbol-table dump, and, for C++ producers,
// the vtable dump. Dump takes these already captured (as bytes, not
// paths); invoking the external disassembler/symbol-dumper/vtable-dumper
// tools themselves is a caller responsibility.
type Streams struct {
	DIEDump    []byte
	SymbolDump []byte
	// VTableDump may be empty for a pure-C object; Dump treats an empty
	// stream as "no vtables to report", not as a degraded-dumper warning.
	VTableDump []byte
}

// Options are the CLI-level switches that bear on resolution, plus the
// two values the disassembler invocation (not this package) would
// otherwise have supplied: Arch and WordSize.
type Options struct {
	Arch     string
	WordSize int

	LibraryName    string
	LibraryVersion string

	// KernelModule marks a .ko/.ko.debug input, which honors the static
	// SYMTAB section that is skipped for shared objects.
	KernelModule bool

	BinOnly    bool
	AllTypes   bool
	AllSymbols bool
	SkipCXX    bool
	Sort       bool
}

// WithAll expands the --all flag into its two constituents,
// --all-types and --all-symbols.
func (o Options) WithAll(all bool) Options {
	if all {
		o.AllTypes = true
		o.AllSymbols = true
	}
	return o
}

// Result is everything one Dump call produces: the emitted tree, ready
// for an Encoder, and the non-fatal diagnostics the pipeline accumulated
// along the way.
type Result struct {
	Tree        *emit.OMap
	Diagnostics []types.Diagnostic
}

var noDWARFRe = regexp.MustCompile(`(?i)no\s+dwarf`)

// Dump runs the full pipeline over one object's captured streams:
// TextScanner, DIEStore, TypeResolver, SymbolResolver, Pruner, Emitter,
// in that order. The pipeline is single-threaded and end-to-end serial.
func Dump(streams Streams, opts Options) (*Result, error) {
	if noDWARFRe.Match(streams.DIEDump) {
		return nil, types.ErrNoDWARF
	}

	scan, err := textscan.Scan(streams.DIEDump)
	if err != nil {
		return nil, err
	}
	if len(scan.DIEs) == 0 {
		return nil, types.ErrNoDWARF
	}

	store := diestore.New(scan)

	syms, err := symtab.Parse(streams.SymbolDump, opts.KernelModule)
	if err != nil {
		return nil, &types.Error{Kind: types.ErrKindParse, Msg: "abi: parse symbol table", Err: err}
	}

	meta := detectMeta(store, opts)

	var vtabs vtable.Result
	ctx := types.NewContext(opts.Arch, opts.WordSize)
	if strings.Contains(meta.Language, "C++") {
		vtabs, err = vtable.Parse(streams.VTableDump)
		if err != nil {
			return nil, &types.Error{Kind: types.ErrKindParse, Msg: "abi: parse vtable dump", Err: err}
		}
		if len(streams.VTableDump) > 0 && len(vtabs) == 0 {
			vtable.Degraded(ctx.Diag)
		}
	}

	g := resolve.NewGraph(store, ctx, syms, vtabs)
	g.ResolveAllTypes()
	bucket2 := g.ResolveSymbols(resolve.Options{BinOnly: opts.BinOnly, AllSymbols: opts.AllSymbols})

	if opts.SkipCXX {
		g.Symbols = filterSkipCXX(g.Symbols)
		bucket2 = filterSkipCXX(bucket2)
	}

	pruned := prune.Prune(g, bucket2, prune.Options{AllTypes: opts.AllTypes}, ctx.Diag)

	tree := emit.BuildTree(pruned, syms, meta)
	if opts.Sort {
		tree = emit.SortTree(tree).(*emit.OMap)
	}

	return &Result{Tree: tree, Diagnostics: ctx.Diag.Entries()}, nil
}

// skipCXXPrefixes are the standard-library and libstdc++-internal
// mangling prefixes --skip-cxx drops; a consumer never needs to see
// these symbols.
var skipCXXPrefixes = []string{
	"_ZNKS", "_ZNS", "_ZS", "_ZN9__gnu_cxx", "_ZNK9__gnu_cxx", "_ZTIS", "_ZTSS",
}

func matchesSkipCXX(mangled string) bool {
	for _, p := range skipCXXPrefixes {
		if strings.HasPrefix(mangled, p) {
			return true
		}
	}
	return false
}

func filterSkipCXX(symbols []*types.Symbol) []*types.Symbol {
	if len(symbols) == 0 {
		return symbols
	}
	out := symbols[:0:0]
	for _, s := range symbols {
		name := s.MnglName
		if name == "" {
			name = s.ShortName
		}
		if matchesSkipCXX(name) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// detectMeta derives Language/GccVersion/Compiler from the first
// compile_unit DIE's producer string.
func detectMeta(store *diestore.Store, opts Options) emit.Meta {
	meta := emit.Meta{
		LibraryName:    opts.LibraryName,
		LibraryVersion: opts.LibraryVersion,
		Arch:           opts.Arch,
		WordSize:       opts.WordSize,
		Language:       "C",
	}
	for _, off := range store.Order() {
		die := store.DIE(off)
		if die == nil || die.Tag != types.TagCompileUnit {
			continue
		}
		if lang, ok := die.StrAttr("language"); ok {
			meta.Language = normalizeLanguage(lang)
		}
		producer, ok := die.StrAttr("producer")
		if !ok {
			break
		}
		if meta.Language == "C" && strings.Contains(producer, "C++") {
			meta.Language = "C++"
		}
		switch {
		case strings.Contains(producer, "clang"):
			meta.Compiler = producer
		default:
			meta.GccVersion = extractGccVersion(producer)
			if meta.GccVersion == "" {
				meta.Compiler = producer
			}
		}
		break
	}
	return meta
}

func normalizeLanguage(lang string) string {
	if strings.Contains(lang, "C_plus_plus") || strings.Contains(lang, "C++") {
		return "C++"
	}
	return "C"
}

var gccVersionRe = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

func extractGccVersion(producer string) string {
	if !strings.Contains(producer, "GNU") {
		return ""
	}
	if m := gccVersionRe.FindString(producer); m != "" {
		return m
	}
	return ""
}
