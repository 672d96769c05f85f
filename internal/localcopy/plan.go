package localcopy

import (
	"path/filepath"
	"strings"

	"github.com/ocrsync/rsync/internal/rsyncoptions"
)

// Operand is one source/destination pair as given on the invocation,
// before trailing-slash resolution.
type Operand struct {
	Sources []string
	Dest    string
}

// PlanEntry is one resolved source→destination mapping the executor will
// walk.
type PlanEntry struct {
	Source string
	// DestBase is the directory new entries are created under: for
	// copy-contents semantics it is Dest itself; for copy-as-child
	// semantics it is Dest joined with the source's base name.
	DestBase string
	// ImpliedDirs holds the parent directories that must exist before any
	// file under this source can be written. It is populated only when
	// --relative is set and the preserved path has parent directories;
	// --mkpath on its own leaves it empty.
	ImpliedDirs []string
}

// Plan is the resolved set of per-operand mappings plus the options that
// govern how the executor walks and compares them.
type Plan struct {
	Entries []PlanEntry
	Opts    rsyncoptions.Options
}

// BuildPlan resolves trailing-slash semantics for each source: a source
// ending in "/" copies its *contents* into dest; otherwise the source
// directory (or file) itself becomes a child of dest. When --relative is
// set, the full source path (after the point fixed by the last "/./"
// segment) is preserved under dest instead of being flattened to the base
// name, and its parent directories are recorded as ImpliedDirs so the
// caller can create them with --mkpath before the first file lands.
func BuildPlan(op Operand, opts rsyncoptions.Options) Plan {
	p := Plan{Opts: opts}
	for _, src := range op.Sources {
		copyContents := strings.HasSuffix(src, "/")
		trimmed := strings.TrimSuffix(src, "/")

		var destBase string
		var implied []string
		switch {
		case opts.Relative:
			rel := relativeTail(trimmed)
			destBase = filepath.Join(op.Dest, rel)
			if dir := filepath.Dir(rel); dir != "." {
				implied = impliedParents(filepath.Join(op.Dest, dir))
			}
		case copyContents:
			destBase = op.Dest
		default:
			destBase = filepath.Join(op.Dest, filepath.Base(trimmed))
		}

		p.Entries = append(p.Entries, PlanEntry{
			Source:      trimmed,
			DestBase:    destBase,
			ImpliedDirs: implied,
		})
	}
	return p
}

// relativeTail returns the portion of path that --relative preserves: the
// suffix starting after the last "/./" marker, or the whole (cleaned) path
// if no marker is present.
func relativeTail(path string) string {
	if idx := strings.LastIndex(path, "/./"); idx >= 0 {
		return path[idx+3:]
	}
	return strings.TrimPrefix(filepath.Clean(path), "/")
}

// impliedParents lists dir and every ancestor under it that --mkpath must
// create, shallowest first.
func impliedParents(dir string) []string {
	var out []string
	for d := dir; d != "." && d != "/" && d != ""; d = filepath.Dir(d) {
		out = append([]string{d}, out...)
	}
	return out
}
