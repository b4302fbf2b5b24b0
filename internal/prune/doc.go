// Package prune runs the reachability walk from every kept symbol, the
// deferred-symbol decision, optional retention of unreferenced types
// under --all-types, and the completeness audit that precedes emission.
package prune
