// Package resolve turns a DIEStore, a symbol-table Result, and a vtable
// Result into the canonical Type and Symbol graph.
//
// Both resolvers share one Graph: type resolution is recursive and
// memoized by DIE offset, with the memo entry registered before a type's
// fields are populated so that self-referential shapes (a struct holding
// a pointer to itself) terminate instead of recursing forever.
package resolve
