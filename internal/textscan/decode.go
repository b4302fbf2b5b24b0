package textscan

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// decodeToUTF8 returns data re-encoded as UTF-8 when it is not already
// valid UTF-8. Disassembler output is usually plain ASCII, but template
// names can embed source-file paths that a non-UTF8-locale build wrote
// in Latin-1; rather than reject those lines, decode them as Windows-1252.
func decodeToUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	decoder := charmap.Windows1252.NewDecoder()
	r := transform.NewReader(newByteReader(data), decoder)
	return io.ReadAll(r)
}

type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
