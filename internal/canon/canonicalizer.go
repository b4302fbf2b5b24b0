package canon

import (
	"regexp"
	"sort"
	"strings"
)

// Mode selects the small behavioral differences between canonicalizing a
// type name and canonicalizing a demangled symbol name: symbol mode must
// not let the "space out >>" rule split the "operator>>" token.
type Mode int

const (
	// ModeType canonicalizes a type's display name.
	ModeType Mode = iota
	// ModeSymbol canonicalizes a demangled symbol name.
	ModeSymbol
)

// Canonicalizer holds the (input, mode) memo a single Dump run shares
// across every TypeResolver/SymbolResolver call.
type Canonicalizer struct {
	memo map[memoKey]string
}

type memoKey struct {
	name string
	mode Mode
}

// New returns an empty Canonicalizer.
func New() *Canonicalizer {
	return &Canonicalizer{memo: make(map[memoKey]string)}
}

var qualifierRank = map[string]int{"const": 0, "volatile": 1}

var qualifierRe = regexp.MustCompile(`\bconst\b|\bvolatile\b`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// bracketPunct is squeezed free of surrounding whitespace before any other
// rule runs, matching how compilers' own type printers pad (or don't pad)
// these characters inconsistently across versions.
var bracketPunctRe = regexp.MustCompile(`\s*([<>,])\s*`)

// defaultArgTemplates names the standard-library container templates whose
// trailing default template arguments (allocator, comparator, char_traits)
// are elided once their value is provable to equal the default.
var defaultArgTemplates = map[string]bool{
	"vector":       true,
	"set":          true,
	"basic_string": true,
}

// TemplateArgs returns name's top-level template-argument list when name
// is a bracketed template instantiation.
func TemplateArgs(name string) ([]string, bool) {
	_, args, _, ok := splitCenterTemplate(name)
	return args, ok
}

// Canonicalize returns name's canonical form for mode, memoizing the result.
func (c *Canonicalizer) Canonicalize(name string, mode Mode) string {
	key := memoKey{name, mode}
	if v, ok := c.memo[key]; ok {
		return v
	}
	out := c.canonicalize(name, mode)
	c.memo[key] = out
	return out
}

func (c *Canonicalizer) canonicalize(name string, mode Mode) string {
	s := strings.TrimSpace(name)
	if mode == ModeType {
		s = whitespaceRe.ReplaceAllString(s, " ")
	}
	s = bracketPunctRe.ReplaceAllString(s, "$1")

	if prefix, args, suffix, ok := splitCenterTemplate(s); ok {
		canonArgs := make([]string, len(args))
		for i, a := range args {
			canonArgs[i] = c.Canonicalize(a, mode)
		}
		base := lastSegment(prefix)
		canonArgs = elideDefaults(base, canonArgs)
		rebuilt := prefix + "<" + strings.Join(canonArgs, ", ") + ">"
		if base == "basic_string" && len(canonArgs) == 1 && canonArgs[0] == "char" {
			rebuilt = "std::string"
		}
		suffix = normalizeQualifiers(strings.TrimSpace(suffix))
		if suffix != "" {
			rebuilt = rebuilt + " " + suffix
		}
		s = rebuilt
	} else {
		s = normalizeQualifiers(s)
		s = canonicalizeIntegerName(s)
	}

	s = spaceOutClosingAngles(s)
	s = strings.ReplaceAll(s, ", ", ",")
	s = strings.ReplaceAll(s, ",", ", ")
	if mode == ModeSymbol {
		s = strings.ReplaceAll(s, "operator> >", "operator>>")
	}
	return s
}

// splitCenterTemplate finds the rightmost top-level '<' in s (the
// template-argument list belonging to the last qualified segment) and
// splits s into the prefix up to and including that bracket, the
// comma-separated argument list enclosed by it, and anything trailing the
// matching close bracket.
func splitCenterTemplate(s string) (prefix string, args []string, suffix string, ok bool) {
	depth := 0
	centerOpen := -1
	for i, r := range s {
		switch r {
		case '<':
			if depth == 0 {
				centerOpen = i
			}
			depth++
		case '>':
			depth--
		}
	}
	if centerOpen < 0 {
		return "", nil, "", false
	}
	depth = 0
	centerClose := -1
	for i := centerOpen; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				centerClose = i
				break
			}
		}
		if centerClose >= 0 {
			break
		}
	}
	if centerClose < 0 {
		return "", nil, "", false
	}
	enclosed := s[centerOpen+1 : centerClose]
	return s[:centerOpen], splitTopLevelCommas(enclosed), s[centerClose+1:], true
}

// splitTopLevelCommas splits s on commas that are not nested inside a
// bracket pair, so "B<C,D>,E<F>" yields ["B<C,D>", "E<F>"].
func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

// elideDefaults drops a well-known container's trailing default template
// arguments once they are textually the default for the element type.
func elideDefaults(base string, args []string) []string {
	if !defaultArgTemplates[base] || len(args) == 0 {
		return args
	}
	elem := args[0]
	switch base {
	case "vector":
		if len(args) == 2 && args[1] == "std::allocator<"+elem+">" {
			return args[:1]
		}
	case "set":
		if len(args) == 3 && args[1] == "std::less<"+elem+">" && args[2] == "std::allocator<"+elem+">" {
			return args[:1]
		}
	case "basic_string":
		if len(args) == 3 && args[1] == "std::char_traits<"+elem+">" && args[2] == "std::allocator<"+elem+">" {
			return args[:1]
		}
	}
	return args
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "::"); i >= 0 {
		return s[i+2:]
	}
	return s
}

// normalizeQualifiers pulls every const/volatile keyword in s out of its
// original position and reappends them, in canonical const-before-volatile
// order, after the remaining text: "const void" -> "void const",
// "volatile const" -> "const volatile".
func normalizeQualifiers(s string) string {
	matches := qualifierRe.FindAllString(s, -1)
	if len(matches) == 0 {
		return s
	}
	rest := qualifierRe.ReplaceAllString(s, " ")
	rest = strings.TrimSpace(whitespaceRe.ReplaceAllString(rest, " "))

	seen := make(map[string]bool)
	var quals []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			quals = append(quals, m)
		}
	}
	sort.SliceStable(quals, func(i, j int) bool { return qualifierRank[quals[i]] < qualifierRank[quals[j]] })

	if rest == "" {
		return strings.Join(quals, " ")
	}
	return rest + " " + strings.Join(quals, " ")
}

// intPhraseTable maps the fundamental-integer-type keyword orderings DWARF
// producers emit to the single canonical spelling.
var intPhraseTable = map[string]string{
	"long long unsigned":     "unsigned long long",
	"long long unsigned int": "unsigned long long",
	"unsigned long long int": "unsigned long long",
	"long long int":          "long long",
	"short int":              "short",
	"short unsigned int":     "unsigned short",
	"long int":               "long",
	"long unsigned int":      "unsigned long",
	"long unsigned":          "unsigned long",
	"short unsigned":         "unsigned short",
}

func canonicalizeIntegerName(s string) string {
	if canon, ok := intPhraseTable[s]; ok {
		return canon
	}
	return s
}

// spaceOutClosingAngles inserts a space between every pair of directly
// adjacent '>' characters, so "map<K,vector<T>>" reads as
// "map<K,vector<T> >" the way pre-C++11 parsers require.
func spaceOutClosingAngles(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '>' && len(out) > 0 && out[len(out)-1] == '>' {
			out = append(out, ' ')
		}
		out = append(out, c)
	}
	return string(out)
}
