//go:build !linux && !freebsd

package emit

import "os"

// syncFile falls back to File.Sync on platforms without fdatasync; the
// rename in WriteFileAtomic only needs a durability barrier, not
// fdatasync specifically.
func syncFile(f *os.File) error {
	return f.Sync()
}
