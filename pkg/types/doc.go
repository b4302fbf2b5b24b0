// Package types defines the data model shared across the DWARF-to-ABI
// reducer: DIE records, the resolved Type/Symbol graph, typed errors, and
// the non-fatal diagnostics collected while walking that graph.
package types
