// Package daemonauth implements daemon-mode challenge/response
// authentication, secrets-file parsing, per-module host gating, and the
// connection limiter (spec §4.I). Grounded on the teacher's early-draft
// internal/rsyncd/rsyncd.go (which sketches a Module/Server pair and a
// popt-style option parser) and rsyncd/rsyncd.go's mature module-access
// plumbing, generalized into a standalone authentication package the
// daemon wires in alongside negotiate and rsyncfilter.
package daemonauth

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"net"
	"time"
)

// GenerateChallenge derives a 22-character (no padding) base64 string from
// the MD5 of the peer's textual IP (truncated/zero-padded to 16 bytes),
// the Unix seconds and microseconds of now, and the process id — unique
// across sessions, not required to be cryptographically random, per spec
// §4.I "Challenge generation".
func GenerateChallenge(peerAddr string, now time.Time, pid int) string {
	var buf [16 + 4 + 4 + 4]byte
	ip := hostBytes(peerAddr)
	copy(buf[:16], ip)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(now.Unix()))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(now.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(pid))

	sum := md5.Sum(buf[:])
	return base64.RawStdEncoding.EncodeToString(sum[:])[:22]
}

// hostBytes returns up to 16 bytes of the peer address's textual form
// (host part only, port stripped if present), zero-padded/truncated to
// exactly 16 bytes — the challenge only needs a value that varies per
// peer, not a faithful IP encoding.
func hostBytes(addr string) []byte {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	out := make([]byte, 16)
	copy(out, host)
	return out
}
