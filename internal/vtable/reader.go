// Package vtable parses the C++ vtable dumper's output into a
// class -> slot -> entry map. Only invoked when the producer language
// string contains "C++".
package vtable

import (
	"strconv"
	"strings"

	"github.com/abidump/dwarfabi/pkg/types"
)

// Result maps a class's qualified name to its slot -> textual-entry map.
type Result map[string]map[int]string

// Parse parses a vtable dump: blocks separated by two blank lines (a
// triple newline), each
// opening with "Vtable for <class-name>" and continuing with
// "<slot-index> <entry-text>" lines. The slot-0 line (the RTTI offset)
// is discarded.
func Parse(data []byte) (Result, error) {
	res := make(Result)
	blocks := strings.Split(string(data), "\n\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		header := strings.TrimSpace(lines[0])
		const prefix = "Vtable for "
		if !strings.HasPrefix(header, prefix) {
			continue
		}
		class := strings.TrimSpace(header[len(prefix):])
		slots := make(map[int]string)
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			fields := strings.SplitN(line, " ", 2)
			if len(fields) != 2 {
				continue
			}
			idx, err := strconv.Atoi(fields[0])
			if err != nil {
				continue
			}
			if idx == 0 {
				continue // RTTI offset slot, discarded
			}
			slots[idx] = strings.TrimSpace(fields[1])
		}
		if len(slots) > 0 {
			res[class] = slots
		}
	}
	return res, nil
}

// Degraded reports a version-too-old condition: the vtable helper
// produced no usable output, so C++ vtables degrade to empty with only
// a warning.
func Degraded(diag *types.Diagnostics) {
	diag.Add(types.SevWarning, types.DiagVTableDegraded, "vtable dumper too old; C++ vtables emitted empty")
}
