//go:build linux || darwin

package localcopy

import (
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/ocrsync/rsync/internal/rsyncoptions"
)

var amRoot = os.Getuid() == 0

var inGroup = func() map[uint32]bool {
	m := make(map[uint32]bool)
	u, err := user.Current()
	if err != nil {
		return m
	}
	gids, err := u.GroupIds()
	if err != nil {
		return m
	}
	for _, gidString := range gids {
		gid64, err := strconv.ParseInt(gidString, 0, 64)
		if err != nil {
			return m
		}
		m[uint32(gid64)] = true
	}
	return m
}()

// ReconcileOwnership applies --owner/--group (PreserveUid/PreserveGid)
// reconciliation to local, mirroring upstream's privilege rules: uid
// changes require root, gid changes require root or membership in the
// target group. Grounded on the teacher's internal/receiver/generatoruid.go
// setUid, generalized from *receiver.Transfer/*receiver.File to this
// package's Options/Entry.
func ReconcileOwnership(opts rsyncoptions.Options, entry *Entry, local string, st fs.FileInfo) (fs.FileInfo, error) {
	stt, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return st, nil
	}

	changeUid := opts.PreserveUid && amRoot && stt.Uid != uint32(entry.Uid)
	changeGid := opts.PreserveGid &&
		(amRoot || inGroup[uint32(entry.Gid)]) &&
		stt.Gid != uint32(entry.Gid)

	if !changeUid && !changeGid {
		return st, nil
	}

	uid := stt.Uid
	if changeUid {
		uid = uint32(entry.Uid)
	}
	gid := stt.Gid
	if changeGid {
		gid = uint32(entry.Gid)
	}
	if err := os.Lchown(local, int(uid), int(gid)); err != nil {
		return nil, err
	}
	return os.Lstat(local)
}
