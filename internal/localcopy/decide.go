package localcopy

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/ocrsync/rsync/internal/rsyncchecksum"
	"github.com/ocrsync/rsync/internal/rsyncfilter"
	"github.com/ocrsync/rsync/internal/rsyncoptions"
)

// Decision is the outcome of evaluating one source entry against the
// destination, per spec §4.G "Per-entry decision".
type Decision int

const (
	DecisionTransfer Decision = iota
	DecisionSkipFiltered
	DecisionSkipSize
	DecisionSkipUnchanged
)

// Decide implements the four-step per-entry decision: filter check, size
// filter, destination comparison, and (implicitly) "enter delta transfer"
// when nothing above short-circuits.
func Decide(fs *rsyncfilter.FilterSet, opts rsyncoptions.Options, src *Entry, dst *Entry) (Decision, error) {
	if fs != nil && !fs.Allows(src.Name, src.IsDir) {
		return DecisionSkipFiltered, nil
	}
	if !src.IsDir {
		if opts.MinSize > 0 && src.Size < opts.MinSize {
			return DecisionSkipSize, nil
		}
		if opts.MaxSize > 0 && src.Size > opts.MaxSize {
			return DecisionSkipSize, nil
		}
	}
	if dst == nil {
		return DecisionTransfer, nil
	}
	if src.IsDir || dst.IsDir {
		return DecisionTransfer, nil
	}

	if opts.SizeOnly {
		if src.Size == dst.Size {
			return DecisionSkipUnchanged, nil
		}
		return DecisionTransfer, nil
	}

	if !opts.IgnoreTimes && !opts.Checksum {
		sameSize := src.Size == dst.Size
		withinWindow := withinModifyWindow(src.ModTime, dst.ModTime, opts.ModifyWindow)
		if sameSize && withinWindow {
			return DecisionSkipUnchanged, nil
		}
	}

	if opts.Checksum {
		same, err := sameContents(src, dst)
		if err != nil {
			return DecisionTransfer, err
		}
		if same {
			return DecisionSkipUnchanged, nil
		}
	}

	return DecisionTransfer, nil
}

// withinModifyWindow reports whether a and b are close enough in time to
// be considered unchanged, per --modify-window semantics (0 means exact
// equality).
func withinModifyWindow(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// sameContents performs the full strong-digest comparison --checksum
// requires: both files are hashed with unseeded MD5 (SignatureMD5,
// SeedNone) and the results compared byte-for-byte.
func sameContents(src, dst *Entry) (bool, error) {
	sf, err := os.Open(src.Name)
	if err != nil {
		return false, err
	}
	defer sf.Close()
	df, err := os.Open(dst.Name)
	if err != nil {
		return false, err
	}
	defer df.Close()

	sh := rsyncchecksum.NewHasher(rsyncchecksum.SignatureMD5, 0, rsyncchecksum.SeedNone)
	dh := rsyncchecksum.NewHasher(rsyncchecksum.SignatureMD5, 0, rsyncchecksum.SeedNone)
	if _, err := io.Copy(sh, sf); err != nil {
		return false, err
	}
	if _, err := io.Copy(dh, df); err != nil {
		return false, err
	}
	return bytes.Equal(sh.Sum(nil), dh.Sum(nil)), nil
}
