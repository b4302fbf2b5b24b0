package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abidump/dwarfabi/internal/diestore"
	"github.com/abidump/dwarfabi/internal/resolve"
	"github.com/abidump/dwarfabi/internal/symtab"
	"github.com/abidump/dwarfabi/internal/textscan"
	"github.com/abidump/dwarfabi/internal/vtable"
	"github.com/abidump/dwarfabi/pkg/types"
)

// An exported, non-inline method is kept in bucket 1 with its class and
// return type populated, and the implicit "this" parameter dropped from
// Params.
const dieDumpExportedMethod = `[0x0]compile_unit
    producer  (string) "GNU C++17 9.3.0"
    language  (data1) DW_LANG_C_plus_plus (4)
    name  (string) "m.cpp"
[0x10]  class_type
    name  (string) "C"
    byte_size  (data1) 1
[0x20]    subprogram
    name  (string) "f"
    external  (flag_present) yes
    low_pc  (addr) 0x1000 <_ZN1C1fEi>
    type  (ref4) [0x60]
[0x30]      formal_parameter
    artificial  (flag_present) yes
    type  (ref4) [0x70]
[0x40]      formal_parameter
    name  (string) "n"
    type  (ref4) [0x60]
[0x60]  base_type
    name  (string) "int"
    byte_size  (data1) 4
[0x70]  pointer_type
    byte_size  (data1) 8
    type  (ref4) [0x10]
`

func buildSymGraph(t *testing.T, dump string, exports map[string]symtab.Export) *resolve.Graph {
	t.Helper()
	scan, err := textscan.Scan([]byte(dump))
	require.NoError(t, err)
	store := diestore.New(scan)
	syms := &symtab.Result{Exports: exports, Undefined: map[string]bool{}, SymbolVersion: map[string]string{}}
	ctx := types.NewContext("x86_64", 8)
	g := resolve.NewGraph(store, ctx, syms, vtable.Result{})
	g.ResolveAllTypes()
	return g
}

func TestResolveSymbols_ExportedMethodDropsImplicitThis(t *testing.T) {
	g := buildSymGraph(t, dieDumpExportedMethod, map[string]symtab.Export{
		"_ZN1C1fEi": {Name: "_ZN1C1fEi"},
	})
	bucket2 := g.ResolveSymbols(resolve.Options{})
	require.Empty(t, bucket2)
	require.Len(t, g.Symbols, 1)

	sym := g.Symbols[0]
	require.Equal(t, "_ZN1C1fEi", sym.MnglName)
	require.True(t, sym.HasClass)
	require.True(t, sym.HasReturn)
	require.Len(t, sym.Params, 1, "the artificial \"this\" parameter must not appear in Params")
	require.Equal(t, "n", sym.Params[0].Name)
	require.False(t, sym.Flags.Static, "a method with a this-parameter is not Static")
}

// A non-exported, non-inline free function is dropped outright: it has
// code but no linkage a consumer can reach (the inclusion
// table, isFunctionWithCode && !exported && !(AllSymbols && external)).
const dieDumpUnexportedFunction = `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
[0x10]  subprogram
    name  (string) "helper"
    low_pc  (addr) 0x2000 <helper>
`

func TestResolveSymbols_DropsUnexportedFunction(t *testing.T) {
	g := buildSymGraph(t, dieDumpUnexportedFunction, map[string]symtab.Export{})
	bucket2 := g.ResolveSymbols(resolve.Options{})
	require.Empty(t, bucket2)
	require.Empty(t, g.Symbols)
}

// --all-symbols keeps a non-exported function with code, as long as it
// still carries DWARF's own "external" flag.
func TestResolveSymbols_AllSymbolsKeepsExternalUnexported(t *testing.T) {
	dump := `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
[0x10]  subprogram
    name  (string) "helper"
    external  (flag_present) yes
    low_pc  (addr) 0x2000 <helper>
`
	g := buildSymGraph(t, dump, map[string]symtab.Export{})
	bucket2 := g.ResolveSymbols(resolve.Options{AllSymbols: true})
	require.Empty(t, bucket2)
	require.Len(t, g.Symbols, 1)
	require.Equal(t, "helper", g.Symbols[0].ShortName)
	require.Empty(t, g.Symbols[0].MnglName, "a plain C symbol's mangled form equals its short name, so MnglName stays unset")
}

// A duplicate DIE for an already-kept mangled name (e.g. a pure-virtual
// declaration followed by an out-of-line definition) is merged rather
// than duplicated, and clears PureVirt once the definition is seen: a
// single symbol remains, with Virt set and PureVirt cleared.
func TestResolveSymbols_DuplicateMangledNameClearsPureVirt(t *testing.T) {
	dump := `[0x0]compile_unit
    producer  (string) "GNU C++17 9.3.0"
    language  (data1) DW_LANG_C_plus_plus (4)
[0x10]  class_type
    name  (string) "C"
    byte_size  (data1) 1
[0x20]    subprogram
    name  (string) "f"
    external  (flag_present) yes
    virtuality  (data1) pure_virtual
    low_pc  (addr) 0x1000 <_ZN1C1fEv>
[0x30]    subprogram
    name  (string) "f"
    external  (flag_present) yes
    low_pc  (addr) 0x1000 <_ZN1C1fEv>
`
	g := buildSymGraph(t, dump, map[string]symtab.Export{"_ZN1C1fEv": {Name: "_ZN1C1fEv"}})
	g.ResolveSymbols(resolve.Options{})
	require.Len(t, g.Symbols, 1)
	require.False(t, g.Symbols[0].Flags.PureVirt)
}
