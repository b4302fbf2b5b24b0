package emit

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RawStreams holds the three textual subprocess streams one object's Dump
// consumed: the DIE dump, the symbol-table dump, and, for C++ producers,
// the vtable dump.
type RawStreams struct {
	DIEDump    string `yaml:"die_dump"`
	SymbolDump string `yaml:"symbol_dump"`
	VTableDump string `yaml:"vtable_dump,omitempty"`
}

// WriteExtraInfo persists raw to "<dir>/<base>.raw.yaml" as YAML, so a
// reviewer can diff exactly what text this run's resolution was built
// from.
func WriteExtraInfo(dir, base string, raw RawStreams) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, base+".raw.yaml"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
