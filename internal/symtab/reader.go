package symtab

import (
	"bufio"
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/abidump/dwarfabi/pkg/types"
)

// Export is one accepted row of the exported-symbol table. Size is
// negative for data objects (OBJECT/COMMON) so a caller can tell objects
// from functions by sign alone, positive for code.
type Export struct {
	Name  string
	Value uint64
	Size  int64
	Type  string
}

// Result is everything the reader produced from one symbol-table dump.
type Result struct {
	// Exports is keyed by the row's raw name, including any "@" / "@@"
	// version suffix.
	Exports map[string]Export
	// Undefined holds names that resolved to section UNDEF.
	Undefined map[string]bool
	// Needed holds NEEDED soname entries, in file order.
	Needed []string
	// SymbolVersion maps an unversioned base name to the preferred
	// versioned alias, e.g. "foo" -> "foo@@LIB_2".
	SymbolVersion map[string]string
}

var acceptedTypes = map[string]bool{
	"FUNC": true, "IFUNC": true, "OBJECT": true, "COMMON": true,
}

var acceptedBindings = map[string]bool{"GLOBAL": true, "WEAK": true}
var acceptedVisibility = map[string]bool{"DEFAULT": true, "PROTECTED": true}

// Parse parses a symbol-table dump. honorStatic enables the SYMTAB
// section, which only kernel-module debug files get.
func Parse(data []byte, honorStatic bool) (*Result, error) {
	res := &Result{
		Exports:       make(map[string]Export),
		Undefined:     make(map[string]bool),
		SymbolVersion: make(map[string]string),
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 8*1024*1024)

	section := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "==") {
			section = strings.Trim(strings.Trim(line, "="), " ")
			continue
		}
		if strings.HasPrefix(line, "NEEDED") {
			fields := strings.Fields(line)
			if len(fields) == 2 {
				res.Needed = append(res.Needed, fields[1])
			}
			continue
		}
		if section == "SYMTAB" && !honorStatic {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		value, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		typ := fields[2]
		binding := fields[3]
		vis := fields[4]
		shndx := fields[5]
		name := strings.Join(fields[6:], " ")

		if shndx == "UNDEF" {
			res.Undefined[name] = true
			continue
		}
		if !acceptedBindings[binding] || !acceptedVisibility[vis] {
			continue
		}
		if !acceptedTypes[typ] {
			continue
		}
		// versioning pseudo-symbol: OBJECT, value zero, section ABS.
		if typ == "OBJECT" && value == 0 && shndx == "ABS" {
			continue
		}

		sz := size
		if typ == "OBJECT" || typ == "COMMON" {
			sz = -size
		}
		res.Exports[name] = Export{Name: name, Value: value, Size: sz, Type: typ}
	}
	if err := scanner.Err(); err != nil {
		return nil, &types.Error{Kind: types.ErrKindParse, Msg: "symtab: scan", Err: err}
	}

	deriveVersionAliases(res)
	return res, nil
}

// deriveVersionAliases installs base-name -> versioned-name aliases for
// every exported symbol that carries a version suffix.
func deriveVersionAliases(res *Result) {
	// Group exported names by value. Exports is a map and keeps no
	// encounter order, so names are visited in lexicographic order and
	// ties break on the lexicographically first name, not on the order
	// the rows appeared in the dump.
	byValue := make(map[uint64][]string)
	var order []string
	for name := range res.Exports {
		order = append(order, name)
	}
	sort.Strings(order) // deterministic iteration for the grouping pass itself
	for _, name := range order {
		v := res.Exports[name].Value
		byValue[v] = append(byValue[v], name)
	}

	for _, names := range byValue {
		var plain []string
		var atat, at string
		for _, n := range names {
			switch {
			case strings.Contains(n, "@@"):
				if atat == "" {
					atat = n
				}
			case strings.Contains(n, "@"):
				if at == "" {
					at = n
				}
			default:
				plain = append(plain, n)
			}
		}
		versioned := atat
		if versioned == "" {
			versioned = at
		}
		if versioned == "" {
			continue
		}
		for _, p := range plain {
			if _, exists := res.SymbolVersion[p]; !exists {
				res.SymbolVersion[p] = versioned
			}
		}
	}

	// Synthesize a base name for every versioned export that has no
	// same-value plain counterpart, preferring "@@" over "@".
	synthesized := make(map[string]string) // base -> chosen versioned name
	for _, name := range order {
		base, isDefault, isVersioned := splitVersion(name)
		if !isVersioned {
			continue
		}
		if _, already := res.SymbolVersion[base]; already {
			continue
		}
		prev, ok := synthesized[base]
		if !ok {
			synthesized[base] = name
			continue
		}
		_, prevDefault, _ := splitVersion(prev)
		if isDefault && !prevDefault {
			synthesized[base] = name
		}
	}
	for base, chosen := range synthesized {
		if _, exists := res.SymbolVersion[base]; !exists {
			res.SymbolVersion[base] = chosen
		}
	}
}

// splitVersion splits "name@@version" or "name@version" into its base
// name, whether it used the default-version "@@" marker, and whether it
// was versioned at all.
func splitVersion(name string) (base string, isDefault bool, isVersioned bool) {
	if idx := strings.Index(name, "@@"); idx >= 0 {
		return name[:idx], true, true
	}
	if idx := strings.Index(name, "@"); idx >= 0 {
		return name[:idx], false, true
	}
	return name, false, false
}
