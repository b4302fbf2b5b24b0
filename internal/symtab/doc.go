// Package symtab parses the disassembler's ELF symbol table dump,
// classifying rows into exports/undefined imports and deriving
// versioned-symbol aliases.
//
// Input grammar (already captured to text by the external ELF reader):
//
//	== DYNSYM ==
//	<hex-value> <size> <type> <binding> <visibility> <shndx> <name>
//	== SYMTAB ==
//	<hex-value> <size> <type> <binding> <visibility> <shndx> <name>
//	NEEDED <soname>
//
// The DYNSYM section is always present. The SYMTAB section is honored
// only for kernel-module debug files; for shared objects it is skipped.
package symtab
