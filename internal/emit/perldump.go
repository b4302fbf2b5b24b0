package emit

import (
	"fmt"
	"io"
	"strings"
)

// Encoder serializes the tagged value tree. The concrete encoding is
// pluggable; consumers must be able to round-trip the tree.
type Encoder interface {
	Encode(root Node, w io.Writer) error
}

// PerlDumpEncoder renders the tree as a Perl Data::Dumper literal, the
// format ABI-compliance tooling downstream of this dump loads via Perl's
// do/eval on the file.
type PerlDumpEncoder struct{}

// Encode writes root to w as "$VAR1 = { ... };\n".
func (PerlDumpEncoder) Encode(root Node, w io.Writer) error {
	if _, err := io.WriteString(w, "$VAR1 = "); err != nil {
		return err
	}
	if err := writeNode(w, root, 0); err != nil {
		return err
	}
	_, err := io.WriteString(w, ";\n")
	return err
}

func writeNode(w io.Writer, n Node, depth int) error {
	switch v := n.(type) {
	case nil:
		_, err := io.WriteString(w, "undef")
		return err
	case *OMap:
		return writeMap(w, v, depth)
	case []Node:
		return writeList(w, v, depth)
	case string:
		_, err := io.WriteString(w, quotePerl(v))
		return err
	case int:
		_, err := fmt.Fprintf(w, "%d", v)
		return err
	case int64:
		_, err := fmt.Fprintf(w, "%d", v)
		return err
	case bool:
		s := "0"
		if v {
			s = "1"
		}
		_, err := io.WriteString(w, s)
		return err
	default:
		return fmt.Errorf("emit: unsupported node type %T", n)
	}
}

func writeMap(w io.Writer, m *OMap, depth int) error {
	if m.Len() == 0 {
		_, err := io.WriteString(w, "{}")
		return err
	}
	if _, err := io.WriteString(w, "{\n"); err != nil {
		return err
	}
	for _, k := range m.Keys() {
		if _, err := io.WriteString(w, indent(depth+1)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s => ", quotePerl(k)); err != nil {
			return err
		}
		v, _ := m.Get(k)
		if err := writeNode(w, v, depth+1); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ",\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, indent(depth)); err != nil {
		return err
	}
	_, err := io.WriteString(w, "}")
	return err
}

func writeList(w io.Writer, l []Node, depth int) error {
	if len(l) == 0 {
		_, err := io.WriteString(w, "[]")
		return err
	}
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}
	for _, e := range l {
		if _, err := io.WriteString(w, indent(depth+1)); err != nil {
			return err
		}
		if err := writeNode(w, e, depth+1); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ",\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, indent(depth)); err != nil {
		return err
	}
	_, err := io.WriteString(w, "]")
	return err
}

func indent(depth int) string { return strings.Repeat("  ", depth) }

func quotePerl(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}
