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

func newGraph(t *testing.T, dump string) *resolve.Graph {
	t.Helper()
	scan, err := textscan.Scan([]byte(dump))
	require.NoError(t, err)
	store := diestore.New(scan)
	syms := &symtab.Result{Exports: map[string]symtab.Export{}, Undefined: map[string]bool{}, SymbolVersion: map[string]string{}}
	ctx := types.NewContext("x86_64", 8)
	return resolve.NewGraph(store, ctx, syms, vtable.Result{})
}

func findName(g *resolve.Graph, name string) (*types.Type, bool) {
	for _, t := range g.Types() {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Two declarations of "struct C" in one compile unit (a forward
// declaration and its definition) must merge into one canonical record,
// with the later one aliased to the first.
const dieDumpDuplicateStruct = `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
[0x10]  structure_type
    name  (string) "C"
    byte_size  (data1) 4
[0x20]  structure_type
    name  (string) "C"
    byte_size  (data1) 4
`

func TestResolveType_MergesByName(t *testing.T) {
	g := newGraph(t, dieDumpDuplicateStruct)
	g.ResolveAllTypes()

	id1, ok := g.ResolveType(0x10)
	require.True(t, ok)
	id2, ok := g.ResolveType(0x20)
	require.True(t, ok)
	require.Equal(t, id1, id2, "two same-named structs must resolve to the same canonical ID")
	require.Equal(t, id1, g.GetFirst(id2))
}

// A type whose base is local code (nested inside a subprogram) and never
// gets a name of its own is dropped entirely,
// unlike a structural base that is merely nameless-by-design but not
// local; see TestResolveType_FuncPtrReshape below for the latter.
const dieDumpPointerToLocalFunc = `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
[0x10]  subprogram
    name  (string) "f"
    external  (flag_present) yes
    low_pc  (addr) 0x1000 <_Z1fv>
[0x20]    subroutine_type
    type  (ref4) [0x40]
[0x30]  pointer_type
    byte_size  (data1) 8
    type  (ref4) [0x20]
[0x40]  base_type
    name  (string) "int"
    byte_size  (data1) 4
`

func TestResolveType_DropsLocalUnnamedBase(t *testing.T) {
	g := newGraph(t, dieDumpPointerToLocalFunc)
	g.ResolveAllTypes()

	_, ok := g.ResolveType(0x30)
	require.False(t, ok, "a pointer into a function-local subroutine_type must be dropped, not surfaced as a real type")
}

// A pointer to a subroutine_type reshapes into a FuncPtr whose Name is
// "R(*)(P1,P2)".
const dieDumpFuncPtr = `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
[0x10]  subroutine_type
    type  (ref4) [0x30]
[0x20]    formal_parameter
    type  (ref4) [0x40]
[0x50]  pointer_type
    byte_size  (data1) 8
    type  (ref4) [0x10]
[0x30]  base_type
    name  (string) "int"
    byte_size  (data1) 4
[0x40]  base_type
    name  (string) "char"
    byte_size  (data1) 1
`

func TestResolveType_FuncPtrReshape(t *testing.T) {
	g := newGraph(t, dieDumpFuncPtr)
	g.ResolveAllTypes()

	id, ok := g.ResolveType(0x50)
	require.True(t, ok)
	fp := g.Types()[id]
	require.Equal(t, types.KindFuncPtr, fp.Kind)
	require.Equal(t, "int(*)(char)", fp.Name)
	require.Len(t, fp.Params, 1)
}

// An array_type with one subrange carrying an upper_bound becomes
// "elem[n]"; without a subrange it becomes "elem[]".
const dieDumpArray = `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
[0x10]  base_type
    name  (string) "int"
    byte_size  (data1) 4
[0x20]  array_type
    type  (ref4) [0x10]
[0x30]    subrange_type
    upper_bound  (data1) 3
[0x40]  array_type
    type  (ref4) [0x10]
`

func TestResolveType_ArrayReshape(t *testing.T) {
	g := newGraph(t, dieDumpArray)
	g.ResolveAllTypes()

	fixed, ok := g.ResolveType(0x20)
	require.True(t, ok)
	ft := g.Types()[fixed]
	require.Equal(t, "int[4]", ft.Name)
	require.True(t, ft.HasSize)
	require.EqualValues(t, 16, ft.Size)

	flexible, ok := g.ResolveType(0x40)
	require.True(t, ok)
	ft2 := g.Types()[flexible]
	require.Equal(t, "int[]", ft2.Name)
}

// typedef struct { int x; } S; folds the anonymous base's members onto
// the typedef itself, renames it "struct S", and the anonymous base no
// longer survives as its own named record.
const dieDumpAnonTypedef = `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
    name  (string) "s.c"
[0x10]  structure_type
    byte_size  (data1) 4
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x20]    member
    name  (string) "x"
    type  (ref4) [0x40]
    data_member_location  (data1) 0
[0x30]  typedef
    name  (string) "S"
    type  (ref4) [0x10]
[0x40]  base_type
    name  (string) "int"
    byte_size  (data1) 4
`

func TestResolveType_FoldsAnonymousStructTypedef(t *testing.T) {
	g := newGraph(t, dieDumpAnonTypedef)
	g.ResolveAllTypes()

	id, ok := g.ResolveType(0x30)
	require.True(t, ok)
	td := g.Types()[id]
	require.Equal(t, types.KindTypedef, td.Kind)
	require.Equal(t, "struct S", td.Name)
	require.False(t, td.HasBase, "the anonymous base should no longer be referenced directly")
	require.Len(t, td.Members, 1)
	require.Equal(t, "x", td.Members[0].Name)

	structID, ok := g.ResolveType(0x10)
	require.True(t, ok)
	require.Equal(t, id, g.GetFirst(structID), "the anonymous struct's own ID must now alias to the typedef")
}
