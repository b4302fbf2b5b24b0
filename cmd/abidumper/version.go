package main

import "github.com/abidump/dwarfabi/internal/emit"

// dumperVersion is this reducer's self-reported version, the same value
// embedded in the dump's ABI_DUMPER_VERSION field, so `abidumper -v`
// never drifts from what a dump actually claims.
const dumperVersion = emit.DumperVersion
