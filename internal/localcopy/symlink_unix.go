//go:build linux || darwin

package localcopy

import "github.com/google/renameio/v2"

// createSymlink atomically creates (or replaces) a symlink at newname
// pointing at oldname, grounded on the teacher's
// internal/receiver/generatorsymlink.go.
func createSymlink(oldname, newname string) error {
	return renameio.Symlink(oldname, newname)
}
