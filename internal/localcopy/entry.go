// Package localcopy implements the local-copy executor and deletion
// planner (spec §4.G): building a transfer plan from operand pairs,
// deciding per-entry skip/transfer, reconciling permissions and
// ownership, and enforcing the extraneous-entry deletion budget.
package localcopy

import (
	"io/fs"
	"time"
)

// Entry describes one file-list member, the attributes the executor
// compares against a destination candidate. Grounded on the teacher's
// internal/receiver.File (name/mode/uid/gid/size/mtime), generalized to
// carry symlink targets and drop any wire-specific fields.
type Entry struct {
	Name     string // slash-separated, relative to the transfer root
	Mode     fs.FileMode
	Size      int64
	ModTime   time.Time
	Uid, Gid  int
	IsDir     bool
	IsSymlink bool
	LinkTarget string
}

// IsRegular reports whether the entry is a plain file (neither directory
// nor symlink).
func (e *Entry) IsRegular() bool { return !e.IsDir && !e.IsSymlink }
