package types

import "fmt"

// Severity classifies how serious a diagnostic is. The pipeline never
// aborts on a diagnostic; severity labels the printed message and decides
// HasErrors, while --loud prints every diagnostic whatever its severity.
type Severity int

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

// DiagCategory groups diagnostics by the pipeline stage that raised them.
type DiagCategory int

const (
	DiagMissingType     DiagCategory = iota // referenced type ID never materialized
	DiagDanglingRef                         // type ID referenced but not in the reachable set
	DiagVTableDegraded                      // vtable dumper too old; vtables emitted empty
	DiagSymbolCollision                     // two DIEs resolved to the same mangled name
)

// Diagnostic is one non-fatal condition surfaced under --loud.
type Diagnostic struct {
	Severity Severity
	Category DiagCategory
	Message  string
}

func (d Diagnostic) String() string {
	var sev string
	switch d.Severity {
	case SevError:
		sev = "error"
	case SevWarning:
		sev = "warning"
	default:
		sev = "info"
	}
	return fmt.Sprintf("[%s] %s", sev, d.Message)
}

// Diagnostics is an append-only collector. The pipeline is single-threaded
// end to end, so no synchronization is needed.
type Diagnostics struct {
	entries []Diagnostic
}

// Add records a diagnostic.
func (d *Diagnostics) Add(sev Severity, cat DiagCategory, format string, args ...any) {
	d.entries = append(d.entries, Diagnostic{
		Severity: sev,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Entries returns every diagnostic recorded so far, in recording order.
func (d *Diagnostics) Entries() []Diagnostic {
	return d.entries
}

// HasErrors reports whether any recorded diagnostic is SevError.
func (d *Diagnostics) HasErrors() bool {
	for _, e := range d.entries {
		if e.Severity == SevError {
			return true
		}
	}
	return false
}
