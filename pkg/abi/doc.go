// Package abi is the top-level orchestration layer: it wires
// TextScanner, SymbolTableReader, VTableReader, DIEStore, TypeResolver,
// SymbolResolver, Pruner, and Emitter into the single Dump entry point a
// caller (cmd/abidumper, or any other host) uses to turn one or more
// already-captured subprocess text streams into an emitted ABI dump.
//
// Dump never invokes an external tool itself: its Streams argument takes
// the three text streams (DIE dump, symbol-table dump, vtable dump) a
// caller has already captured, so this package has no subprocess,
// filesystem-discovery, or PATH-lookup concerns of its own.
package abi
