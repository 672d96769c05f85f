package rsyncd

import (
	"fmt"
	"os"

	"github.com/ocrsync/rsync/internal/daemonauth"
	"github.com/ocrsync/rsync/internal/rsyncconfig"
)

// restrictToModules sandboxes the daemon process to the union of its
// modules' paths before any connection is served, creating writable
// module directories that don't yet exist.
func restrictToModules(modules []rsyncconfig.Module) error {
	var roDirs, rwDirs []string
	for _, mod := range modules {
		if mod.Writable {
			if err := os.MkdirAll(mod.Path, 0755); err != nil {
				return fmt.Errorf("MkdirAll(mod=%s): %v", mod.Name, err)
			}
			rwDirs = append(rwDirs, mod.Path)
		} else {
			roDirs = append(roDirs, mod.Path)
		}
	}
	return daemonauth.Sandbox(roDirs, rwDirs)
}
