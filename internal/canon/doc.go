// Package canon normalizes whitespace, qualifier order, integer-type
// names, and template arguments so every type and symbol name has a
// single canonical textual form, independent of which compiler or build
// produced the DWARF that named it.
//
// Canonicalization is pure and memoized by (input, mode); callers should
// construct one *Canonicalizer per Dump run.
package canon
