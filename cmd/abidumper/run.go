package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/abidump/dwarfabi/internal/emit"
	"github.com/abidump/dwarfabi/pkg/abi"
	"github.com/abidump/dwarfabi/pkg/types"
)

// exitErr maps a pipeline error to its kind's exit code and terminates
// the process via a single printError-then-os.Exit callsite rather than
// scattering os.Exit calls through business logic.
func exitErr(err error) {
	printError("%s\n", err)
	code := 2
	var te *types.Error
	if errors.As(err, &te) {
		code = te.Kind.ExitCode()
	}
	os.Exit(code)
}

func runDump(objects []string) error {
	for _, obj := range objects {
		if err := dumpOne(obj, len(objects) > 1); err != nil {
			return err
		}
	}
	return nil
}

func dumpOne(objectPath string, multi bool) error {
	ctx := context.Background()
	printVerbose("Processing %s\n", objectPath)

	if isKernelModule(objectPath) && !hasSymversCompanion(objectPath) {
		return &types.Error{
			Kind: types.ErrKindMissingRuntimeModule,
			Msg:  "kernel module " + objectPath + " has no Module.symvers/<name>.symvers companion",
		}
	}

	arch, wordSize, err := archWordSize(objectPath)
	if err != nil {
		return err
	}

	dieDump, err := runTool(ctx, toolName(envDwarfDump, defaultDwarfDump), objectPath)
	if err != nil {
		return err
	}
	symDump, err := runTool(ctx, toolName(envSymDump, defaultSymDump), objectPath)
	if err != nil {
		return err
	}
	vtableDump := runVTableTool(ctx, toolName(envVTableDump, defaultVTableDump), objectPath)

	opts := abi.Options{
		Arch:           arch,
		WordSize:       wordSize,
		LibraryName:    filepath.Base(objectPath),
		LibraryVersion: flagLibVer,
		KernelModule:   isKernelModule(objectPath),
		BinOnly:        flagBinOnly,
		AllTypes:       flagAllTypes,
		AllSymbols:     flagAllSymbols,
		SkipCXX:        flagSkipCXX,
		Sort:           flagSort,
	}.WithAll(flagAll)

	result, err := abi.Dump(abi.Streams{
		DIEDump:    dieDump,
		SymbolDump: symDump,
		VTableDump: vtableDump,
	}, opts)
	if err != nil {
		return err
	}

	if flagLoud {
		for _, d := range result.Diagnostics {
			printInfo("%s\n", d.String())
		}
	}

	if flagExtraInfo != "" {
		base := strings.TrimSuffix(filepath.Base(objectPath), filepath.Ext(objectPath))
		if err := emit.WriteExtraInfo(flagExtraInfo, base, emit.RawStreams{
			DIEDump:    string(dieDump),
			SymbolDump: string(symDump),
			VTableDump: string(vtableDump),
		}); err != nil {
			return &types.Error{Kind: types.ErrKindUnreadable, Msg: "write --extra-info snapshot", Err: err}
		}
	}

	outPath := outputPathFor(objectPath, multi)
	if err := writeResult(result.Tree, outPath); err != nil {
		return err
	}
	if !flagStdout {
		printInfo("wrote %s\n", outPath)
	}
	return nil
}

// outputPathFor derives each object's own output path when multiple
// objects were given on the command line: -o then names a directory to
// hold one dump per object rather than one shared file, since a single
// ABI.dump cannot describe two distinct objects.
func outputPathFor(objectPath string, multi bool) string {
	if !multi {
		return flagOutput
	}
	base := filepath.Base(objectPath) + ".dump"
	return filepath.Join(flagOutput, base)
}

func writeResult(tree *emit.OMap, outPath string) error {
	enc := emit.PerlDumpEncoder{}
	if flagStdout {
		return enc.Encode(tree, os.Stdout)
	}
	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &types.Error{Kind: types.ErrKindUnreadable, Msg: "create output directory " + dir, Err: err}
		}
	}
	err := emit.WriteFileAtomic(outPath, func(f *os.File) error {
		return enc.Encode(tree, f)
	})
	if err != nil {
		return &types.Error{Kind: types.ErrKindUnreadable, Msg: "write output " + outPath, Err: err}
	}
	return nil
}

// hasSymversCompanion looks for the versioned-symbol side file a kernel
// module's build tree produces alongside it: either a per-module
// "<name>.symvers" or a shared "Module.symvers" in the same directory.
func hasSymversCompanion(objectPath string) bool {
	dir := filepath.Dir(objectPath)
	base := strings.TrimSuffix(filepath.Base(objectPath), filepath.Ext(objectPath))
	candidates := []string{
		filepath.Join(dir, base+".symvers"),
		filepath.Join(dir, "Module.symvers"),
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return true
		}
	}
	return false
}
