package abi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abidump/dwarfabi/internal/emit"
	"github.com/abidump/dwarfabi/pkg/types"
)

// dieDumpEmptyClass: an empty class with one
// method, exported directly under its mangled name.
const dieDumpEmptyClass = `[0x0]compile_unit
    producer  (string) "GNU C++17 9.3.0"
    language  (data1) DW_LANG_C_plus_plus (4)
    name  (string) "c.cpp"
    stmt_list  (sec_offset) 0x0
file 1 c.cpp
[0x2d]  class_type
    name  (string) "C"
    byte_size  (data1) 1
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x40]    subprogram
    name  (string) "f"
    external  (flag_present) yes
    low_pc  (addr) 0x1000 <_ZN1C1fEv>
`

const symDumpEmptyClass = `== DYNSYM ==
0x0000000000001000 16 FUNC GLOBAL DEFAULT 12 _ZN1C1fEv
`

func TestDump_EmptyClassOneMethod(t *testing.T) {
	res, err := Dump(Streams{
		DIEDump:    []byte(dieDumpEmptyClass),
		SymbolDump: []byte(symDumpEmptyClass),
	}, Options{Arch: "x86_64", WordSize: 8, LibraryName: "libc.so.1", Sort: true})
	require.NoError(t, err)
	require.NotNil(t, res.Tree)

	symbolInfo, ok := res.Tree.Get("SymbolInfo")
	require.True(t, ok)
	om := symbolInfo.(*emit.OMap)
	require.Equal(t, 1, om.Len())

	var buf strings.Builder
	require.NoError(t, emit.PerlDumpEncoder{}.Encode(res.Tree, &buf))
	require.Contains(t, buf.String(), "_ZN1C1fEv")
	require.Contains(t, buf.String(), "'Language' => 'C++'")
	require.Contains(t, buf.String(), "'GccVersion' => '9.3.0'")
}

func TestDump_NoDWARFIsFatal(t *testing.T) {
	_, err := Dump(Streams{
		DIEDump:    []byte("No DWARF information found in this binary\n"),
		SymbolDump: []byte("== DYNSYM ==\n"),
	}, Options{Arch: "x86_64", WordSize: 8})
	require.ErrorIs(t, err, types.ErrNoDWARF)
}

// dieDumpVirtualDtor: a virtual, non-inline
// destructor.
const dieDumpVirtualDtor = `[0x0]compile_unit
    producer  (string) "GNU C++17 9.3.0"
    language  (data1) DW_LANG_C_plus_plus (4)
    name  (string) "v.cpp"
    stmt_list  (sec_offset) 0x0
file 1 v.cpp
[0x2d]  class_type
    name  (string) "V"
    byte_size  (data1) 8
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x40]    subprogram
    name  (string) "~V"
    virtuality  (data1) virtual
    vtable_elem_location  (exprloc) 1
    external  (flag_present) yes
    low_pc  (addr) 0x2000 <_ZN1VD1Ev>
`

const symDumpVirtualDtor = `== DYNSYM ==
0x0000000000002000 32 FUNC GLOBAL DEFAULT 12 _ZN1VD1Ev
`

const vtableDumpV = "Vtable for V\n0 (int (*)(...))0\n1 V::~V()\n\n\n"

func TestDump_VirtualDestructor(t *testing.T) {
	res, err := Dump(Streams{
		DIEDump:    []byte(dieDumpVirtualDtor),
		SymbolDump: []byte(symDumpVirtualDtor),
		VTableDump: []byte(vtableDumpV),
	}, Options{Arch: "x86_64", WordSize: 8, LibraryName: "libv.so.1", Sort: true})
	require.NoError(t, err)

	symbolInfo, ok := res.Tree.Get("SymbolInfo")
	require.True(t, ok)
	om := symbolInfo.(*emit.OMap)
	require.Equal(t, 1, om.Len())

	var sym *emit.OMap
	for _, k := range om.Keys() {
		v, _ := om.Get(k)
		sym = v.(*emit.OMap)
	}
	mngl, _ := sym.Get("MnglName")
	require.Equal(t, "_ZN1VD1Ev", mngl)
	destructor, _ := sym.Get("Destructor")
	require.EqualValues(t, 1, destructor)
	virt, _ := sym.Get("Virt")
	require.EqualValues(t, 1, virt)
	require.True(t, func() bool { _, ok := sym.Get("Class"); return ok }())

	typeInfo, ok := res.Tree.Get("TypeInfo")
	require.True(t, ok)
	tom := typeInfo.(*emit.OMap)
	var foundVTable bool
	for _, k := range tom.Keys() {
		v, _ := tom.Get(k)
		tn := v.(*emit.OMap)
		if name, _ := tn.Get("Name"); name == "V" {
			if vt, ok := tn.Get("VTable"); ok {
				foundVTable = true
				vtm := vt.(*emit.OMap)
				require.Equal(t, 1, vtm.Len())
			}
		}
	}
	require.True(t, foundVTable, "expected class V to carry a VTable slot map")
}

// dieDumpVectorInt: a std::vector<int>
// global, whose type name must canonicalize away its default allocator
// argument.
const dieDumpVectorInt = `[0x0]compile_unit
    producer  (string) "GNU C++17 9.3.0"
    language  (data1) DW_LANG_C_plus_plus (4)
    name  (string) "t.cpp"
    stmt_list  (sec_offset) 0x0
file 1 t.cpp
[0x10]  namespace
    name  (string) "std"
[0x20]    class_type
    name  (string) "vector<int, std::allocator<int> >"
    byte_size  (data1) 24
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x50]  variable
    name  (string) "g"
    type  (ref4) [0x20]
    external  (flag_present) yes
    location  (exprloc) 0
`

const symDumpVectorInt = `== DYNSYM ==
0x0000000000004050 24 OBJECT GLOBAL DEFAULT 24 g
`

func TestDump_TemplateInstantiation(t *testing.T) {
	res, err := Dump(Streams{
		DIEDump:    []byte(dieDumpVectorInt),
		SymbolDump: []byte(symDumpVectorInt),
	}, Options{Arch: "x86_64", WordSize: 8, LibraryName: "libt.so.1", Sort: true})
	require.NoError(t, err)

	typeInfo, ok := res.Tree.Get("TypeInfo")
	require.True(t, ok)
	tom := typeInfo.(*emit.OMap)
	var sawCanonical, sawUncanonical bool
	for _, k := range tom.Keys() {
		v, _ := tom.Get(k)
		tn := v.(*emit.OMap)
		name, _ := tn.Get("Name")
		if name == "std::vector<int>" {
			sawCanonical = true
		}
		if name == "std::vector<int, std::allocator<int> >" {
			sawUncanonical = true
		}
	}
	require.True(t, sawCanonical, "expected std::vector<int> in the type table")
	require.False(t, sawUncanonical, "default allocator argument should have been elided")

	symbolInfo, ok := res.Tree.Get("SymbolInfo")
	require.True(t, ok)
	som := symbolInfo.(*emit.OMap)
	require.Equal(t, 1, som.Len())
	var gsym *emit.OMap
	for _, k := range som.Keys() {
		v, _ := som.Get(k)
		gsym = v.(*emit.OMap)
	}
	data, _ := gsym.Get("Data")
	require.EqualValues(t, 1, data)
	_, hasReturn := gsym.Get("Return")
	require.True(t, hasReturn)
}

// dieDumpAnonStructTypedef: typedef struct {
// int x; } S;. The anonymous aggregate's members fold into the typedef
// and the anonymous base itself is pruned from the output.
const dieDumpAnonStructTypedef = `[0x0]compile_unit
    producer  (string) "GNU C 9.3.0"
    language  (data1) DW_LANG_C99 (12)
    name  (string) "s.c"
    stmt_list  (sec_offset) 0x0
file 1 s.h
[0x20]  structure_type
    byte_size  (data1) 4
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x30]    member
    name  (string) "x"
    type  (ref4) [0x60]
    data_member_location  (data1) 0
[0x40]  typedef
    name  (string) "S"
    type  (ref4) [0x20]
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x50]  variable
    name  (string) "gs"
    type  (ref4) [0x40]
    external  (flag_present) yes
    location  (exprloc) 0
[0x60]  base_type
    name  (string) "int"
    byte_size  (data1) 4
`

const symDumpAnonStructTypedef = `== DYNSYM ==
0x0000000000004050 4 OBJECT GLOBAL DEFAULT 24 gs
`

func TestDump_AnonymousStructTypedef(t *testing.T) {
	res, err := Dump(Streams{
		DIEDump:    []byte(dieDumpAnonStructTypedef),
		SymbolDump: []byte(symDumpAnonStructTypedef),
	}, Options{Arch: "x86_64", WordSize: 8, LibraryName: "libs.so.1", AllTypes: true, Sort: true})
	require.NoError(t, err)

	typeInfo, ok := res.Tree.Get("TypeInfo")
	require.True(t, ok)
	tom := typeInfo.(*emit.OMap)
	var sawTypedef *emit.OMap
	for _, k := range tom.Keys() {
		v, _ := tom.Get(k)
		tn := v.(*emit.OMap)
		if name, _ := tn.Get("Name"); name == "struct S" {
			sawTypedef = tn
		}
	}
	require.NotNil(t, sawTypedef, "expected a Typedef named \"struct S\" in the type table")
	kind, _ := sawTypedef.Get("Type")
	require.Equal(t, "Typedef", kind)

	memb, ok := sawTypedef.Get("Memb")
	require.True(t, ok, "anonymous base's members must fold into the typedef")
	members := memb.([]emit.Node)
	require.Len(t, members, 1)
	m0 := members[0].(*emit.OMap)
	mname, _ := m0.Get("name")
	require.Equal(t, "x", mname)

	for _, k := range tom.Keys() {
		v, _ := tom.Get(k)
		tn := v.(*emit.OMap)
		if name, _ := tn.Get("Name"); name != nil && strings.Contains(name.(string), "anon-") {
			t.Fatalf("anonymous base struct must not survive pruning, found %v", name)
		}
	}
}

// dieDumpMethodPtr: a pointer-to-member
// function, whose implicit "this" parameter must not leak into Param.
const dieDumpMethodPtr = `[0x0]compile_unit
    producer  (string) "GNU C++17 9.3.0"
    language  (data1) DW_LANG_C_plus_plus (4)
    name  (string) "m.cpp"
    stmt_list  (sec_offset) 0x0
file 1 m.cpp
[0x10]  class_type
    name  (string) "C"
    byte_size  (data1) 1
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x20]  subroutine_type
    type  (ref4) [0x80]
    object_pointer  (ref4) [0x30]
[0x30]    formal_parameter
    artificial  (flag_present) yes
    type  (ref4) [0x70]
[0x40]    formal_parameter
    type  (ref4) [0x90]
[0x70]  pointer_type
    byte_size  (data1) 8
    type  (ref4) [0x10]
[0x80]  base_type
    name  (string) "int"
    byte_size  (data1) 4
[0x90]  base_type
    name  (string) "double"
    byte_size  (data1) 8
[0xa0]  structure_type
    byte_size  (data1) 16
[0xb0]    member
    name  (string) "__pfn"
    type  (ref4) [0x70]
    data_member_location  (data1) 0
[0xc0]    member
    name  (string) "__delta"
    type  (ref4) [0x80]
    data_member_location  (data1) 8
[0xd0]  variable
    name  (string) "p"
    type  (ref4) [0xa0]
    external  (flag_present) yes
    location  (exprloc) 0
`

const symDumpMethodPtr = `== DYNSYM ==
0x0000000000004050 16 OBJECT GLOBAL DEFAULT 24 p
`

func TestDump_PointerToMemberFunction(t *testing.T) {
	res, err := Dump(Streams{
		DIEDump:    []byte(dieDumpMethodPtr),
		SymbolDump: []byte(symDumpMethodPtr),
	}, Options{Arch: "x86_64", WordSize: 8, LibraryName: "libm.so.1", Sort: true})
	require.NoError(t, err)

	typeInfo, ok := res.Tree.Get("TypeInfo")
	require.True(t, ok)
	tom := typeInfo.(*emit.OMap)
	var methodPtr *emit.OMap
	for _, k := range tom.Keys() {
		v, _ := tom.Get(k)
		tn := v.(*emit.OMap)
		if kind, _ := tn.Get("Type"); kind == "MethodPtr" {
			methodPtr = tn
		}
	}
	require.NotNil(t, methodPtr, "expected a MethodPtr type in the output")
	name, _ := methodPtr.Get("Name")
	require.Equal(t, "int(C::*)(double)", name)
	params, hasParams := methodPtr.Get("Param")
	require.True(t, hasParams)
	require.Len(t, params.([]emit.Node), 1, "the implicit this parameter must not appear in Param")
}
