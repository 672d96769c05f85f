package daemonauth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ocrsync/rsync/internal/rsyncerr"
)

// ParseSecretsFile reads a line-oriented user:password secrets file.
// Blank lines and lines starting with '#' are ignored; CRLF line endings
// are tolerated. On POSIX the file's mode MUST NOT grant group or world
// read/write; a violation is reported via rsyncerr.IOError rather than a
// panic, per spec §4.I "Secrets file".
func ParseSecretsFile(path string) (map[string]string, error) {
	if err := checkSecretsMode(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &rsyncerr.IOError{Action: rsyncerr.IOActionOpen, Path: path, Source: err}
	}
	defer f.Close()

	secrets := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		user, pass, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("secrets file %s: line missing ':': %q", path, line)
		}
		secrets[user] = pass
	}
	if err := scanner.Err(); err != nil {
		return nil, &rsyncerr.IOError{Action: rsyncerr.IOActionRead, Path: path, Source: err}
	}
	return secrets, nil
}

// checkSecretsMode enforces that path's permission bits carry no group or
// world read/write access.
func checkSecretsMode(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return &rsyncerr.IOError{Action: rsyncerr.IOActionStat, Path: path, Source: err}
	}
	if st.Mode&(unix.S_IRGRP|unix.S_IWGRP|unix.S_IROTH|unix.S_IWOTH) != 0 {
		return &rsyncerr.IOError{
			Action: rsyncerr.IOActionOpen,
			Path:   path,
			Source: fmt.Errorf("secrets file must not be group or world readable/writable (mode %#o)", st.Mode&0o777),
		}
	}
	return nil
}
