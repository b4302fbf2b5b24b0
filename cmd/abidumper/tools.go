package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/abidump/dwarfabi/pkg/types"
)

// Tool names for the three external collaborators: the DWARF
// disassembler, the ELF symbol dumper, and the C++ vtable dumper. Each
// is overridable through an environment variable so a CI image can point
// at whatever build of these helpers it ships, without a recompile.
const (
	envDwarfDump  = "ABIDUMPER_DWARFDUMP"
	envSymDump    = "ABIDUMPER_SYMDUMP"
	envVTableDump = "ABIDUMPER_VTABLEDUMP"

	defaultDwarfDump  = "abi-dwarf-dump"
	defaultSymDump    = "abi-sym-dump"
	defaultVTableDump = "abi-vtable-dump"
)

func toolName(env, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// runTool invokes name with objectPath as its sole argument and returns
// its captured stdout. A tool not found on PATH is reported as
// ErrKindMissingTool; any other failure (non-zero exit, I/O error) is
// ErrKindUnreadable, for an object the tool could not process.
func runTool(ctx context.Context, name, objectPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, objectPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, &types.Error{Kind: types.ErrKindMissingTool, Msg: "required external tool \"" + name + "\" not found on PATH", Err: err}
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return nil, &types.Error{Kind: types.ErrKindMissingTool, Msg: "required external tool \"" + name + "\" not found on PATH", Err: err}
	}
	return nil, &types.Error{Kind: types.ErrKindUnreadable, Msg: "external tool \"" + name + "\" failed on " + objectPath + ": " + stderr.String(), Err: err}
}

// runVTableTool is runTool's best-effort sibling: a missing or too-old
// vtable dumper degrades to an empty stream rather than aborting the
// run, since most objects never need it.
func runVTableTool(ctx context.Context, name, objectPath string) []byte {
	out, err := runTool(ctx, name, objectPath)
	if err != nil {
		return nil
	}
	return out
}
