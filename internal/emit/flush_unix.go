//go:build linux || freebsd

package emit

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile flushes f's data to disk before the atomic rename in
// WriteFileAtomic.
func syncFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
