// Package textscan turns the disassembler's line-oriented DIE dump into
// a flat keyed record stream, deriving each DIE's nesting depth from its
// indentation and its parent from the depth stack.
//
// Input grammar (one DIE dump, already captured to text by the external
// disassembler):
//
//	[<hex-offset>]<indent><tag-name>        DIE header; depth = len(indent)
//	<indent><attr-name>  (<form>) <value>   attribute line, owned by the
//	                                         most recently seen DIE header
//	file <N> <path>                         file-table entry for the most
//	                                         recently seen compile_unit DIE
//	== DEBUG_LOC ==                         start of the trailing debug_loc
//	0x<offset> <regN | int>                  section; one first-entry value
//	                                         per location-list offset
//
// Depth steps by two spaces per DWARF nesting level; a DIE's lexical
// parent is the nearest preceding DIE at depth-2.
package textscan
