package main

import (
	"debug/elf"
	"strings"

	"github.com/abidump/dwarfabi/pkg/types"
)

// archWordSize reads just the ELF header (class + machine) to determine
// the output's Arch/WordSize fields. This is the one place the CLI opens
// the object itself rather than delegating to an external tool; the rest
// of the pipeline only ever sees the tools' text.
func archWordSize(path string) (arch string, wordSize int, err error) {
	f, err := elf.Open(path)
	if err != nil {
		return "", 0, &types.Error{Kind: types.ErrKindUnreadable, Msg: "open ELF header for " + path, Err: err}
	}
	defer f.Close()

	switch f.Class {
	case elf.ELFCLASS64:
		wordSize = 8
	case elf.ELFCLASS32:
		wordSize = 4
	}

	switch f.Machine {
	case elf.EM_X86_64:
		arch = "x86_64"
	case elf.EM_386:
		arch = "i386"
	case elf.EM_AARCH64:
		arch = "aarch64"
	case elf.EM_ARM:
		arch = "arm"
	default:
		arch = strings.ToLower(f.Machine.String())
	}
	return arch, wordSize, nil
}

// isKernelModule reports whether path names a .ko/.ko.debug
// kernel-module debug file, which honors the static SYMTAB section in
// addition to the dynamic symbol table a shared object is limited to.
func isKernelModule(path string) bool {
	return strings.HasSuffix(path, ".ko") || strings.HasSuffix(path, ".ko.debug")
}
