//go:build unix

package checksum

import (
	"os"
	"syscall"
)

// fileID returns the inode number as the platform file identity.
//
// The inode participates in state-entry validation: replacing a file with a
// new one that happens to share size and mtime still invalidates the
// memoized checksum.
func fileID(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
