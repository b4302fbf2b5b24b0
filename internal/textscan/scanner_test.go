package textscan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abidump/dwarfabi/pkg/types"
)

const sampleDump = `[0x0]compile_unit
    producer  (string) "GNU C++17 9.3.0"
    language  (data1) DW_LANG_C_plus_plus (4)
    name  (string) "test.cpp"
    stmt_list  (sec_offset) 0x0
file 1 test.cpp
file 2 /usr/include/stdio.h
[0x2d]  class_type
    name  (string) "C"
    byte_size  (data1) 1
    decl_file  (data1) 1
    decl_line  (data1) 1
[0x40]  subprogram
    name  (string) "f"
    type  (ref4) [0x2d]
    external  (flag_present) yes
    low_pc  (addr) 0x1000 <_ZN1C1fEv>
`

func TestScanBasic(t *testing.T) {
	res, err := Scan([]byte(sampleDump))
	require.NoError(t, err)
	require.Len(t, res.DIEs, 3)

	cu := res.DIEs[0x0]
	require.Equal(t, types.TagCompileUnit, cu.Tag)
	prod, ok := cu.StrAttr("producer")
	require.True(t, ok)
	require.Equal(t, "GNU C++17 9.3.0", prod)

	cls := res.DIEs[0x2d]
	require.Equal(t, types.TagClassType, cls.Tag)
	parent, ok := res.Parent[0x2d]
	require.True(t, ok)
	require.Equal(t, types.DIEOffset(0x0), parent)

	sub := res.DIEs[0x40]
	ref, ok := sub.RefAttr("type")
	require.True(t, ok)
	require.Equal(t, types.DIEOffset(0x2d), ref)
	require.True(t, sub.FlagAttr("external"))

	files := res.CUFiles[0x0]
	require.Len(t, files.Files, 2)
	require.False(t, files.Files[1].IsHeader)
	require.True(t, files.Files[2].IsHeader)
}

func TestScanBuiltinFileDropped(t *testing.T) {
	res, err := Scan([]byte("[0x0]  compile_unit\nfile 1 <built-in>\n"))
	require.NoError(t, err)
	require.Empty(t, res.CUFiles[0x0].Files)
}

func TestScanLocationReg(t *testing.T) {
	dump := `[0x0]  compile_unit
[0x10]  formal_parameter
    location  (exprloc) reg5
`
	res, err := Scan([]byte(dump))
	require.NoError(t, err)
	loc, ok := res.DIEs[0x10].LocAttr("location")
	require.True(t, ok)
	require.Equal(t, types.LocRegister, loc.Kind)
	require.EqualValues(t, 5, loc.Value)
}

func TestScanLocationFrameOffset(t *testing.T) {
	dump := `[0x0]  compile_unit
[0x10]  formal_parameter
    location  (exprloc) fbreg -24
`
	res, err := Scan([]byte(dump))
	require.NoError(t, err)
	loc, ok := res.DIEs[0x10].LocAttr("location")
	require.True(t, ok)
	require.Equal(t, types.LocFrameOffset, loc.Kind)
	require.EqualValues(t, -24, loc.Value)
}

func TestParseDebugLoc(t *testing.T) {
	tbl, err := ParseDebugLoc([]byte("0x10 reg3\n0x20 -8\n"))
	require.NoError(t, err)
	require.True(t, tbl[0x10].IsRegister)
	require.Equal(t, 3, tbl[0x10].RegNum)
	require.EqualValues(t, -8, tbl[0x20].Value)
}

func TestScanInlineDebugLocSection(t *testing.T) {
	dump := `[0x0]compile_unit
    stmt_list  (sec_offset) 0x48
[0x10]  formal_parameter
    location  (loclistptr) 0x30
== DEBUG_LOC ==
0x30 reg4
0x40 -16
`
	res, err := Scan([]byte(dump))
	require.NoError(t, err)

	loc, ok := res.DIEs[0x10].LocAttr("location")
	require.True(t, ok)
	require.Equal(t, types.LocListOffset, loc.Kind)

	require.True(t, res.LocTable[0x30].IsRegister)
	require.Equal(t, 4, res.LocTable[0x30].RegNum)
	require.EqualValues(t, -16, res.LocTable[0x40].Value)

	require.EqualValues(t, 0x48, res.CUFiles[0x0].StmtListOffset)
}
