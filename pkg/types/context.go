package types

// registerTables maps an architecture name (as it appears in the object's
// "Arch" field) to its DWARF register-number -> name table. Populated for
// the architectures the fixtures in this repository exercise; an
// unrecognized architecture falls back to a synthetic "rN" name rather
// than failing the run, since the register table is auxiliary and not
// load-bearing for the rest of the graph.
var registerTables = map[string][]string{
	"x86_64": {
		"rax", "rdx", "rcx", "rbx", "rsi", "rdi", "rbp", "rsp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", "rip",
	},
	"i386": {
		"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi", "eip",
	},
	"arm": {
		"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
		"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
	},
	"aarch64": {
		"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
		"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
	},
}

// Context is the single process-wide value threaded through the pipeline.
// It owns nothing by reference beyond what it was constructed with;
// callers are expected to build one per Dump call so concurrent Dump
// calls never share state.
type Context struct {
	Arch     string
	WordSize int

	Diag *Diagnostics
}

// NewContext creates a Context for the given architecture and word size
// (bytes), with a fresh Diagnostics collector.
func NewContext(arch string, wordSize int) *Context {
	return &Context{
		Arch:     arch,
		WordSize: wordSize,
		Diag:     &Diagnostics{},
	}
}

// RegisterName resolves a DWARF register number to its architecture's
// conventional name. Falls back to a synthetic name for architectures or
// register numbers this table does not cover.
func (c *Context) RegisterName(regNum int) string {
	table := registerTables[c.Arch]
	if regNum >= 0 && regNum < len(table) {
		return table[regNum]
	}
	return syntheticRegName(regNum)
}

func syntheticRegName(regNum int) string {
	const digits = "0123456789"
	if regNum < 0 {
		return "r?"
	}
	if regNum < 10 {
		return "r" + string(digits[regNum])
	}
	// avoid strconv to keep this table allocation-free for the common path
	buf := make([]byte, 0, 4)
	buf = append(buf, 'r')
	buf = appendInt(buf, regNum)
	return string(buf)
}

func appendInt(buf []byte, n int) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}
