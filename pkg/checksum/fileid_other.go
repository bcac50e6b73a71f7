//go:build !unix

package checksum

import "os"

// fileID returns 0 on platforms without a stable file identity. State
// entries then validate on (size, mtime) only, which is weaker but safe:
// a zero identity only ever matches another zero.
func fileID(_ os.FileInfo) uint64 {
	return 0
}
