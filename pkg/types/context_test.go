package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterNameKnownArch(t *testing.T) {
	c := NewContext("x86_64", 8)
	require.Equal(t, "rax", c.RegisterName(0))
	require.Equal(t, "rdi", c.RegisterName(5))
}

func TestRegisterNameUnknownArchFallsBack(t *testing.T) {
	c := NewContext("riscv64", 8)
	require.Equal(t, "r3", c.RegisterName(3))
	require.Equal(t, "r12", c.RegisterName(12))
}

func TestDiagnosticsHasErrors(t *testing.T) {
	d := &Diagnostics{}
	require.False(t, d.HasErrors())
	d.Add(SevWarning, DiagDanglingRef, "type %d missing", 7)
	require.False(t, d.HasErrors())
	d.Add(SevError, DiagMissingType, "type %d absent", 9)
	require.True(t, d.HasErrors())
	require.Len(t, d.Entries(), 2)
}
