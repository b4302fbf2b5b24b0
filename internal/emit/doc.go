// Package emit deterministically serializes the final, pruned
// type/symbol graph into a tagged value tree.
//
// The concrete wire format is pluggable: Encoder is the seam. The
// one Encoder here renders a Perl Data::Dumper literal, the format
// ABI-compliance tooling downstream of this dump parses. Separately,
// WriteExtraInfo persists raw subprocess audit snapshots as YAML under
// --extra-info; it is not an Encoder.
package emit
