package textscan

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/abidump/dwarfabi/pkg/types"
)

// extensions that classify a source path as a header.
var headerExts = map[string]bool{
	"h": true, "hh": true, "hp": true, "hxx": true, "hpp": true, "h++": true,
}

const builtinFile = "<built-in>"

// FileEntry is one row of a compile unit's file-number -> path map.
type FileEntry struct {
	Path     string
	IsHeader bool
}

// CUFiles is the file-number -> path map for one compile_unit DIE,
// identified by its stmt_list offset.
type CUFiles struct {
	StmtListOffset uint64
	Files          map[int]FileEntry
}

// LocEntry is the first-entry value of a location list, keyed by its
// offset in the auxiliary debug_loc table.
type LocEntry struct {
	IsRegister bool
	RegNum     int
	Value      int64 // frame offset, meaningful when !IsRegister
}

// Result is everything the scanner produced from one DIE dump stream.
type Result struct {
	DIEs   map[types.DIEOffset]*types.DIE
	Order  []types.DIEOffset // first-seen order, for deterministic fallbacks downstream
	Parent map[types.DIEOffset]types.DIEOffset

	LocTable map[uint64]LocEntry
	CUFiles  map[types.DIEOffset]*CUFiles
}

var (
	dieHeaderRe = regexp.MustCompile(`^\[0x([0-9a-fA-F]+)\](\s*)(\S.*?)\s*$`)
	attrLineRe  = regexp.MustCompile(`^(\s+)(\S+)\s+\(([^)]*)\)\s*(.*?)\s*$`)
	fileLineRe  = regexp.MustCompile(`^file\s+(\d+)\s+(.*?)\s*$`)
	refValueRe  = regexp.MustCompile(`\[?0x([0-9a-fA-F]+)\]?`)
	regTokenRe  = regexp.MustCompile(`^reg(\d+)$`)
)

// Scan parses one textualized DIE dump stream into a Result.
func Scan(data []byte) (*Result, error) {
	data, err := decodeToUTF8(data)
	if err != nil {
		return nil, &types.Error{Kind: types.ErrKindParse, Msg: "textscan: decode input", Err: err}
	}

	res := &Result{
		DIEs:     make(map[types.DIEOffset]*types.DIE),
		Parent:   make(map[types.DIEOffset]types.DIEOffset),
		LocTable: make(map[uint64]LocEntry),
		CUFiles:  make(map[types.DIEOffset]*CUFiles),
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 8*1024*1024)

	depthStack := make(map[int]types.DIEOffset)
	var current *types.DIE
	var currentCU types.DIEOffset
	haveCU := false
	inDebugLoc := false

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		// The disassembler appends the debug_loc section after the DIE
		// tree, behind the same "== NAME ==" marker convention the symbol
		// dump uses.
		if strings.TrimSpace(line) == debugLocMarker {
			inDebugLoc = true
			continue
		}
		if inDebugLoc {
			if off, entry, ok := parseDebugLocLine(line); ok {
				res.LocTable[off] = entry
			}
			continue
		}

		if m := dieHeaderRe.FindStringSubmatch(line); m != nil {
			off, perr := strconv.ParseUint(m[1], 16, 64)
			if perr != nil {
				return nil, &types.Error{Kind: types.ErrKindParse, Msg: fmt.Sprintf("textscan: bad offset %q", m[1]), Err: perr}
			}
			depth := len(m[2])
			tag := types.ParseTag(strings.TrimSpace(m[3]))

			d := &types.DIE{
				Offset: types.DIEOffset(off),
				Tag:    tag,
				Depth:  depth,
				Attrs:  make(map[string]types.AttrValue),
			}
			res.DIEs[d.Offset] = d
			res.Order = append(res.Order, d.Offset)
			depthStack[depth] = d.Offset

			if depth >= 2 {
				if parent, ok := depthStack[depth-2]; ok {
					res.Parent[d.Offset] = parent
				}
			}

			current = d
			if tag == types.TagCompileUnit {
				currentCU = d.Offset
				haveCU = true
				res.CUFiles[d.Offset] = &CUFiles{Files: make(map[int]FileEntry)}
			}
			continue
		}

		if m := fileLineRe.FindStringSubmatch(line); m != nil {
			if !haveCU {
				continue
			}
			n, _ := strconv.Atoi(m[1])
			path := m[2]
			if path == builtinFile {
				continue
			}
			entry := FileEntry{Path: path}
			if ext := fileExt(path); headerExts[ext] {
				entry.IsHeader = true
			}
			res.CUFiles[currentCU].Files[n] = entry
			continue
		}

		if m := attrLineRe.FindStringSubmatch(line); m != nil {
			if current == nil {
				continue
			}
			name := m[2]
			hint := strings.ToLower(strings.TrimSpace(m[3]))
			value := m[4]

			av, err := parseAttrValue(name, hint, value, res.LocTable)
			if err != nil {
				return nil, err
			}
			current.Attrs[name] = av
			if name == "stmt_list" && haveCU && current.Offset == currentCU {
				if off, err := parseHex(av.Str); err == nil {
					res.CUFiles[currentCU].StmtListOffset = off
				}
			}
			continue
		}
		// Unrecognized line shape: ignore rather than fail the whole run,
		// since stray disassembler banner/comment lines are common.
	}
	if err := scanner.Err(); err != nil {
		return nil, &types.Error{Kind: types.ErrKindParse, Msg: "textscan: scan", Err: err}
	}
	return res, nil
}

func fileExt(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return path[idx+1:]
}

var locAttrNames = map[string]bool{
	"location":             true,
	"frame_base":           true,
	"vtable_elem_location": true,
}

func parseAttrValue(name, hint, value string, locTable map[uint64]LocEntry) (types.AttrValue, error) {
	switch {
	case strings.HasPrefix(hint, "ref"):
		ref, err := parseRef(value)
		if err != nil {
			return types.AttrValue{}, &types.Error{Kind: types.ErrKindParse, Msg: fmt.Sprintf("textscan: bad ref value %q for %s", value, name), Err: err}
		}
		return types.AttrValue{Form: types.FormRef, Ref: types.DIEOffset(ref)}, nil

	case hint == "string" || hint == "strp":
		return types.AttrValue{Form: types.FormString, Str: unquote(value)}, nil

	case hint == "flag_present" || hint == "flag":
		return types.AttrValue{Form: types.FormFlag, Str: strings.TrimSpace(value)}, nil

	case locAttrNames[name] && (hint == "exprloc" || hint == "loclistptr" || hint == "sec_offset" ||
		strings.HasPrefix(hint, "block") || hint == "data4" || hint == "data8" || hint == "udata" || hint == "sdata"):
		return parseLocation(value, hint, locTable)

	case hint == "sdata" || hint == "udata" || strings.HasPrefix(hint, "data") || hint == "implicit_const":
		n, err := strconv.ParseInt(strings.TrimSpace(value), 0, 64)
		if err != nil {
			// fall back to treating it as a keyword, some enumerated
			// constants are emitted with a data-form hint by some
			// disassemblers.
			return types.AttrValue{Form: types.FormString, Str: stripTrailingParen(unquote(value))}, nil
		}
		return types.AttrValue{Form: types.FormInt, Int: n}, nil

	default:
		return types.AttrValue{Form: types.FormString, Str: stripTrailingParen(unquote(value))}, nil
	}
}

func parseLocation(value, hint string, locTable map[uint64]LocEntry) (types.AttrValue, error) {
	v := strings.TrimSpace(value)
	if m := regTokenRe.FindStringSubmatch(v); m != nil {
		n, _ := strconv.Atoi(m[1])
		return types.AttrValue{Form: types.FormReg, Int: int64(n)}, nil
	}
	if hint == "loclistptr" || hint == "sec_offset" {
		off, err := parseHex(v)
		if err != nil {
			return types.AttrValue{}, &types.Error{Kind: types.ErrKindParse, Msg: fmt.Sprintf("textscan: bad loclist offset %q", value), Err: err}
		}
		return types.AttrValue{Form: types.FormLocListOff, Int: int64(off)}, nil
	}
	// exprloc/block forms: either "regN" (handled above), "fbreg N" (frame
	// offset relative to DW_AT_frame_base), or a bare signed integer.
	if strings.HasPrefix(v, "fbreg") || strings.HasPrefix(v, "breg") {
		fields := strings.Fields(v)
		if len(fields) == 2 {
			n, err := strconv.ParseInt(fields[1], 0, 64)
			if err == nil {
				return types.AttrValue{Form: types.FormInt, Int: n}, nil
			}
		}
	}
	if n, err := strconv.ParseInt(v, 0, 64); err == nil {
		return types.AttrValue{Form: types.FormInt, Int: n}, nil
	}
	// Unrecognized exprloc shape; keep the raw text as a plain string
	// value rather than failing the whole dump.
	_ = locTable
	return types.AttrValue{Form: types.FormString, Str: v}, nil
}

func parseRef(value string) (uint64, error) {
	m := refValueRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, fmt.Errorf("no hex offset found")
	}
	return strconv.ParseUint(m[1], 16, 64)
}

func parseHex(value string) (uint64, error) {
	v := strings.TrimSpace(value)
	v = strings.TrimPrefix(v, "0x")
	v = strings.TrimPrefix(v, "0X")
	return strconv.ParseUint(v, 16, 64)
}

func unquote(value string) string {
	v := strings.TrimSpace(value)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// stripTrailingParen removes a trailing " (...)" annotation from an
// enumerated keyword value, e.g. "DW_ATE_boolean (2)" -> "DW_ATE_boolean".
func stripTrailingParen(value string) string {
	v := strings.TrimSpace(value)
	if idx := strings.LastIndexByte(v, '('); idx > 0 && strings.HasSuffix(v, ")") {
		return strings.TrimSpace(v[:idx])
	}
	return v
}

// LoadDebugLoc registers the first-entry value for a location-list offset.
// The disassembler emits debug_loc as a separate textual section; callers
// parse it with ParseDebugLoc and merge it into a Result's LocTable before
// resolution begins.
func (r *Result) LoadDebugLoc(offset uint64, entry LocEntry) {
	if r.LocTable == nil {
		r.LocTable = make(map[uint64]LocEntry)
	}
	r.LocTable[offset] = entry
}

const debugLocMarker = "== DEBUG_LOC =="

var debugLocLineRe = regexp.MustCompile(`^0x([0-9a-fA-F]+)\s+(.*?)\s*$`)

// parseDebugLocLine parses one debug_loc row, "0x<offset>
// <first-entry-value>", where the value is either "regN" or a signed
// integer frame offset.
func parseDebugLocLine(line string) (uint64, LocEntry, bool) {
	m := debugLocLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, LocEntry{}, false
	}
	off, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return 0, LocEntry{}, false
	}
	val := strings.TrimSpace(m[2])
	if rm := regTokenRe.FindStringSubmatch(val); rm != nil {
		n, _ := strconv.Atoi(rm[1])
		return off, LocEntry{IsRegister: true, RegNum: n}, true
	}
	if n, err := strconv.ParseInt(val, 0, 64); err == nil {
		return off, LocEntry{Value: n}, true
	}
	return 0, LocEntry{}, false
}

// ParseDebugLoc parses a standalone debug_loc section captured outside
// the DIE dump stream.
func ParseDebugLoc(data []byte) (map[uint64]LocEntry, error) {
	out := make(map[uint64]LocEntry)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if off, entry, ok := parseDebugLocLine(scanner.Text()); ok {
			out[off] = entry
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
