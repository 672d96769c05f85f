// Package localcopy_test exercises the local-copy executor, deletion
// planner, and transfer pipeline end-to-end against real directory trees,
// in the style of the teacher's integration/receiver tests (TempDir,
// WriteFile, Chtimes, Symlink, cmp.Diff) but driving this repository's own
// internal/localcopy and internal/pipeline packages directly instead of a
// full client/server wire round-trip.
package localcopy_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ocrsync/rsync/internal/localcopy"
	"github.com/ocrsync/rsync/internal/pipeline"
	"github.com/ocrsync/rsync/internal/rsyncoptions"
)

func entryFor(t *testing.T, root, name string) *localcopy.Entry {
	t.Helper()
	full := filepath.Join(root, name)
	st, err := os.Lstat(full)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	e := &localcopy.Entry{
		Name:    full,
		Mode:    st.Mode(),
		Size:    st.Size(),
		ModTime: st.ModTime(),
		IsDir:   st.IsDir(),
	}
	if st.Mode()&fs.ModeSymlink != 0 {
		e.IsSymlink = true
		target, err := os.Readlink(full)
		if err != nil {
			t.Fatal(err)
		}
		e.LinkTarget = target
	}
	return e
}

// syncTree mirrors source onto dest using BuildPlan+Decide+a pipeline.Run
// job for every file the decision says to transfer, then runs
// WalkExtraneous to remove anything dest has that source doesn't.
func syncTree(t *testing.T, opts rsyncoptions.Options, source, dest string) pipeline.Stats {
	t.Helper()

	plan := localcopy.BuildPlan(localcopy.Operand{
		Sources: []string{source + "/"},
		Dest:    dest,
	}, opts)
	if len(plan.Entries) != 1 {
		t.Fatalf("unexpected plan shape: %+v", plan)
	}
	pe := plan.Entries[0]
	if err := os.MkdirAll(pe.DestBase, 0755); err != nil {
		t.Fatal(err)
	}

	sourceNames := map[string]bool{".": true}
	var jobs []pipeline.FileJob
	err := filepath.WalkDir(pe.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(pe.Source, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(pe.DestBase, rel)
		sourceNames[rel] = true
		if d.IsDir() {
			if rel != "." {
				return os.MkdirAll(destPath, 0755)
			}
			return nil
		}

		src := entryFor(t, pe.Source, rel)
		dst := entryFor(t, pe.DestBase, rel)
		decision, err := localcopy.Decide(nil, opts, src, dst)
		if err != nil {
			return err
		}
		if decision != localcopy.DecisionTransfer {
			return nil
		}
		jobs = append(jobs, pipeline.FileJob{Name: rel, Payload: path})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := range jobs {
		jobs[i].Ndx = i
	}

	process := func(ctx context.Context, job pipeline.FileJob) pipeline.TransferOutcome {
		srcPath := job.Payload.(string)
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return pipeline.TransferOutcome{Kind: pipeline.OutcomePermanentError, Job: job, Err: err}
		}
		destPath := filepath.Join(pe.DestBase, job.Name)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return pipeline.TransferOutcome{Kind: pipeline.OutcomePermanentError, Job: job, Err: err}
		}
		if err := os.WriteFile(destPath, data, 0644); err != nil {
			return pipeline.TransferOutcome{Kind: pipeline.OutcomePermanentError, Job: job, Err: err}
		}
		st, err := os.Lstat(srcPath)
		if err == nil {
			os.Chtimes(destPath, st.ModTime(), st.ModTime())
		}
		return pipeline.TransferOutcome{Kind: pipeline.OutcomeSuccess, Job: job, BytesTransferred: int64(len(data))}
	}

	handle, err := pipeline.Run(t.Context(), jobs, process, pipeline.Config{})
	if err != nil {
		t.Fatal(err)
	}

	if opts.DeleteMode {
		planner := localcopy.NewDeletionPlanner(opts.DeleteTiming, opts.MaxDelete)
		if err := localcopy.WalkExtraneous(pe.DestBase, sourceNames, nil, planner, opts.DryRun); err != nil {
			t.Fatal(err)
		}
		if err := planner.Flush(opts.DryRun); err != nil {
			t.Fatal(err)
		}
		if err := planner.Err(); err != nil {
			t.Fatal(err)
		}
	}

	return handle.Stats()
}

func TestSyncTreeCopiesNewFiles(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	source := filepath.Join(tmp, "source")
	dest := filepath.Join(tmp, "dest")
	if err := os.MkdirAll(source, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "hello"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}

	mtime, err := time.Parse(time.RFC3339, "2009-11-10T23:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(source, "hello"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	stats := syncTree(t, rsyncoptions.Options{}, source, dest)
	if stats.FilesCompleted != 1 {
		t.Fatalf("FilesCompleted = %d, want 1", stats.FilesCompleted)
	}

	got, err := os.ReadFile(filepath.Join(dest, "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte("world"), got); diff != "" {
		t.Fatalf("unexpected file contents: diff (-want +got):\n%s", diff)
	}
}

func TestSyncTreeSkipsUnchangedOnSecondPass(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	source := filepath.Join(tmp, "source")
	dest := filepath.Join(tmp, "dest")
	if err := os.MkdirAll(source, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "hello"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}

	first := syncTree(t, rsyncoptions.Options{}, source, dest)
	if first.FilesCompleted != 1 {
		t.Fatalf("first pass FilesCompleted = %d, want 1", first.FilesCompleted)
	}

	second := syncTree(t, rsyncoptions.Options{}, source, dest)
	if second.FilesCompleted != 0 {
		t.Fatalf("second pass unexpectedly re-copied an unchanged file: FilesCompleted = %d", second.FilesCompleted)
	}
}

func TestSyncTreeDeletesExtraneousEntries(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	source := filepath.Join(tmp, "source")
	dest := filepath.Join(tmp, "dest")
	if err := os.MkdirAll(source, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "hello"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}
	extra := filepath.Join(dest, "extrafile")
	if err := os.WriteFile(extra, []byte("deleteme"), 0644); err != nil {
		t.Fatal(err)
	}

	syncTree(t, rsyncoptions.Options{DeleteMode: true, DeleteTiming: rsyncoptions.DeleteDuring}, source, dest)

	if _, err := os.Stat(extra); !os.IsNotExist(err) {
		t.Errorf("expected %s to be deleted, but it still exists", extra)
	}
	if _, err := os.Stat(filepath.Join(dest, "hello")); err != nil {
		t.Errorf("hello should still exist: %v", err)
	}
}
