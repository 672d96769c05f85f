package localcopy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ocrsync/rsync/internal/rsyncerr"
	"github.com/ocrsync/rsync/internal/rsyncfilter"
	"github.com/ocrsync/rsync/internal/rsyncoptions"
)

// DeletionPlanner enforces the extraneous-entry deletion budget across a
// whole transfer (spec §4.G "Extraneous-entry rule"): it is shared by the
// Before/During scans and the After/Delay queue so --max-delete is
// respected regardless of timing.
//
// Grounded on the teacher's internal/receiver/do.go deleteFiles walk,
// generalized from an inline filepath.Walk into a reusable budget-tracking
// planner with a deferred queue for After/Delay timing.
type DeletionPlanner struct {
	timing    rsyncoptions.DeleteTiming
	maxDelete int // 0 means unlimited
	deleted   int
	skipped   int
	deferred  []string
}

// NewDeletionPlanner constructs a planner for the given timing and budget.
func NewDeletionPlanner(timing rsyncoptions.DeleteTiming, maxDelete int) *DeletionPlanner {
	return &DeletionPlanner{timing: timing, maxDelete: maxDelete}
}

// Candidate reports whether name (an entry found in a destination
// directory but absent from the source file list) is eligible for
// deletion: the filter policy allows it and the budget is not exhausted.
// When the budget is exhausted it records the skip and returns false
// without mutating any state further.
func (p *DeletionPlanner) Candidate(fs *rsyncfilter.FilterSet, name string, isDir bool) bool {
	if fs != nil && !fs.AllowsDeletion(name, isDir) {
		return false
	}
	if p.maxDelete > 0 && p.deleted >= p.maxDelete {
		p.skipped++
		return false
	}
	return true
}

// Delete performs (or, for After/Delay timing, enqueues) the removal of
// name and records it against the budget. dryRun suppresses the actual
// filesystem mutation while still accounting it as deleted.
func (p *DeletionPlanner) Delete(name string, dryRun bool) error {
	p.deleted++
	if p.timing == rsyncoptions.DeleteAfter || p.timing == rsyncoptions.DeleteDelay {
		p.deferred = append(p.deferred, name)
		return nil
	}
	if dryRun {
		return nil
	}
	return os.Remove(name)
}

// Flush removes every entry queued under After/Delay timing. Call once
// the transfer (or, for Delay, the whole multi-directory pass) completes.
func (p *DeletionPlanner) Flush(dryRun bool) error {
	for _, name := range p.deferred {
		if dryRun {
			continue
		}
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	p.deferred = nil
	return nil
}

// Err returns a *rsyncerr.DeleteLimitExceeded if any deletions were
// skipped due to the budget, nil otherwise.
func (p *DeletionPlanner) Err() error {
	if p.skipped == 0 {
		return nil
	}
	return &rsyncerr.DeleteLimitExceeded{Skipped: p.skipped}
}

// Deleted returns the number of entries actually deleted (or queued) so
// far.
func (p *DeletionPlanner) Deleted() int { return p.deleted }

// WalkExtraneous walks destRoot and, for every entry not present in
// sourceNames, asks p.Candidate (filter and budget) and removes accepted
// entries with p.Delete. It is
// the generalized form of the teacher's deleteFiles filepath.Walk.
func WalkExtraneous(destRoot string, sourceNames map[string]bool, fsSet *rsyncfilter.FilterSet, p *DeletionPlanner, dryRun bool) error {
	root := filepath.Clean(destRoot)
	strip := root + string(filepath.Separator)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		name := strings.TrimPrefix(path, strip)
		if name == root || name == "" {
			name = "."
		}
		if sourceNames[name] {
			return nil
		}
		if !p.Candidate(fsSet, name, info.IsDir()) {
			return nil
		}
		return p.Delete(path, dryRun)
	})
}
