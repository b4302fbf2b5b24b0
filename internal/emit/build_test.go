package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abidump/dwarfabi/internal/prune"
	"github.com/abidump/dwarfabi/internal/symtab"
	"github.com/abidump/dwarfabi/pkg/types"
)

func samplePruned() prune.Result {
	return prune.Result{
		Types: map[types.TypeID]*types.Type{
			types.VoidTypeID: {ID: types.VoidTypeID, Kind: types.KindIntrinsic, Name: "void"},
			2:                {ID: 2, Kind: types.KindIntrinsic, Name: "int", Size: 4, HasSize: true},
			3: {
				ID: 3, Kind: types.KindStruct, Name: "struct C", HasDecl: true,
				Decl:    types.Site{Path: "c.h", Line: 1},
				Members: []types.Member{{Name: "x", Type: 2}},
			},
		},
		Symbols: []*types.Symbol{
			{ID: 1, ShortName: "f", MnglName: "_ZN1C1fEv", HasClass: true, Class: 3, HasReturn: true, Return: types.VoidTypeID},
		},
	}
}

func TestBuildTree_Deterministic(t *testing.T) {
	pruned := samplePruned()
	syms := &symtab.Result{Undefined: map[string]bool{"malloc": true}, Needed: []string{"libc.so.6"}, SymbolVersion: map[string]string{}}
	meta := Meta{LibraryName: "libfoo.so.1", LibraryVersion: "1.0", Language: "C++", GccVersion: "10.2", Arch: "x86_64", WordSize: 8}

	t1 := BuildTree(pruned, syms, meta)
	t2 := BuildTree(pruned, syms, meta)

	var b1, b2 strings.Builder
	require.NoError(t, PerlDumpEncoder{}.Encode(t1, &b1))
	require.NoError(t, PerlDumpEncoder{}.Encode(t2, &b2))
	require.Equal(t, b1.String(), b2.String(), "identical input must yield byte-identical output")
}

func TestSortTree_NumericKeysVsLexicographic(t *testing.T) {
	pruned := samplePruned()
	syms := &symtab.Result{Undefined: map[string]bool{}, SymbolVersion: map[string]string{}}
	meta := Meta{LibraryName: "libfoo.so.1", Arch: "x86_64", WordSize: 8, GccVersion: "10"}

	tree := BuildTree(pruned, syms, meta)
	sorted := SortTree(tree).(*OMap)

	typeInfo, ok := sorted.Get("TypeInfo")
	require.True(t, ok)
	om := typeInfo.(*OMap)
	require.Equal(t, []string{"1", "2", "3"}, om.Keys())
}

func TestPerlDumpEncoder_RoundTripShape(t *testing.T) {
	pruned := samplePruned()
	syms := &symtab.Result{Undefined: map[string]bool{}, SymbolVersion: map[string]string{}}
	meta := Meta{LibraryName: "libfoo.so.1", Arch: "x86_64", WordSize: 8, Compiler: "clang 12"}

	tree := BuildTree(pruned, syms, meta)
	var buf strings.Builder
	require.NoError(t, PerlDumpEncoder{}.Encode(tree, &buf))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "$VAR1 = {\n"))
	require.Contains(t, out, "'ABI_DUMP_VERSION' => '3.0'")
	require.Contains(t, out, "'Compiler' => 'clang 12'")
	require.Contains(t, out, "'Target' => 'unix'")
	require.True(t, strings.HasSuffix(out, "};\n"))
}

func TestVTableSlotsAlwaysSorted(t *testing.T) {
	pruned := samplePruned()
	pruned.Types[3].VTable = map[int]string{3: "C::h()", 1: "C::f()", 2: "C::g()"}
	syms := &symtab.Result{Undefined: map[string]bool{}, SymbolVersion: map[string]string{}}
	meta := Meta{LibraryName: "libfoo.so.1", Arch: "x86_64", WordSize: 8, GccVersion: "10"}

	tree := BuildTree(pruned, syms, meta)
	typeInfo, _ := tree.Get("TypeInfo")
	cNode, _ := typeInfo.(*OMap).Get("3")
	vt, ok := cNode.(*OMap).Get("VTable")
	require.True(t, ok)
	require.Equal(t, []string{"1", "2", "3"}, vt.(*OMap).Keys())
}
