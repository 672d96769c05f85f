//go:build linux

package daemonauth

import "github.com/ocrsync/rsync/internal/restrict"

// Sandbox applies an optional landlock-backed filesystem restriction
// before a daemon worker touches a module's files, gated by the
// use-chroot-adjacent module option. roDirs/rwDirs are the module paths
// (and any already-restricted system paths restrict.MaybeFileSystem
// always includes) the worker is allowed to touch.
func Sandbox(roDirs, rwDirs []string) error {
	return restrict.MaybeFileSystem(roDirs, rwDirs)
}
