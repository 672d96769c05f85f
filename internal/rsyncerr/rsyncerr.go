// Package rsyncerr defines the typed error taxonomy shared across the
// synchronization core (spec §7). Every variant carries machine-consumable
// fields rather than an eagerly-formatted string, and exposes the exit code
// a caller should use when the error reaches the process boundary.
package rsyncerr

import (
	"fmt"
	"time"

	rsync "github.com/ocrsync/rsync"
)

// Role identifies who should see a Message.
type Role int

const (
	RoleClient Role = iota
	RoleServer
	RoleBoth
)

// Message is a user-visible diagnostic, carried alongside (or instead of) a
// typed error, with a role describing who should see it.
type Message struct {
	Role Role
	Text string
}

func (m Message) String() string { return m.Text }

// ExitCoder is implemented by every error in this package.
type ExitCoder interface {
	error
	ExitCode() int
}

// InvalidArgument reports a syntactic or semantic problem in operands,
// options, or rule text.
type InvalidArgument struct {
	Detail string
	Code   int // caller-supplied exit code, typically 1 or 23
}

func (e *InvalidArgument) Error() string { return "invalid argument: " + e.Detail }
func (e *InvalidArgument) ExitCode() int {
	if e.Code != 0 {
		return e.Code
	}
	return rsync.ExitFeatureUnavailable
}

// IOAction identifies which kind of I/O failed, for diagnostic tagging.
type IOAction string

const (
	IOActionRead        IOAction = "read"
	IOActionWrite       IOAction = "write"
	IOActionOpen        IOAction = "open"
	IOActionStat        IOAction = "stat"
	IOActionMkdir       IOAction = "mkdir"
	IOActionRemove      IOAction = "remove"
	IOActionSocketRead  IOAction = "socket-read"
	IOActionSocketWrite IOAction = "socket-write"
)

// IOError is a path- and action-tagged file or socket I/O failure.
type IOError struct {
	Action IOAction
	Path   string
	Source error

	// Socket, when true, maps this error to ExitSocketIO instead of
	// ExitPartialTransfer.
	Socket bool
	// DestSetup, when true, indicates failure to set up the destination
	// itself (maps to ExitDestDirectorySelection).
	DestSetup bool
	// FSSetup, when true, indicates a file-system setup failure distinct
	// from per-file copy errors (maps to ExitFileIO).
	FSSetup bool
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Path, e.Source)
}

func (e *IOError) Unwrap() error { return e.Source }

func (e *IOError) ExitCode() int {
	switch {
	case e.Socket:
		return rsync.ExitSocketIO
	case e.DestSetup:
		return rsync.ExitDestDirectorySelection
	case e.FSSetup:
		return rsync.ExitFileIO
	default:
		return rsync.ExitPartialTransfer
	}
}

// Timeout reports a progress timeout.
type Timeout struct {
	Duration time.Duration
	// OnWire, when true, selects exit code 30 (as observed on the wire);
	// otherwise exit code 23 (as surfaced locally).
	OnWire bool
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("timeout after %s without progress", e.Duration)
}

func (e *Timeout) ExitCode() int {
	if e.OnWire {
		return rsync.ExitTimeout
	}
	return rsync.ExitPartialTransfer
}

// ProtocolViolation reports unexpected framing, tag, payload, or greeting
// content.
type ProtocolViolation struct {
	Detail string
}

func (e *ProtocolViolation) Error() string { return "protocol violation: " + e.Detail }
func (e *ProtocolViolation) ExitCode() int { return rsync.ExitDaemonProtocolError }

// HandshakeIncompatible reports a version or compat-flag mismatch.
type HandshakeIncompatible struct {
	Local  rsync.ProtocolVersion
	Remote rsync.ProtocolVersion
}

func (e *HandshakeIncompatible) Error() string {
	return fmt.Sprintf("incompatible protocol versions: local=%d remote=%d", e.Local, e.Remote)
}
func (e *HandshakeIncompatible) ExitCode() int { return rsync.ExitDaemonProtocolError }

// AuthFailed reports a daemon authentication rejection.
type AuthFailed struct {
	Reason string
}

func (e *AuthFailed) Error() string { return "authentication failed: " + e.Reason }
func (e *AuthFailed) ExitCode() int { return rsync.ExitFeatureUnavailable }

// AuthRequired reports that the daemon requires authentication the client
// did not provide.
type AuthRequired struct{}

func (e *AuthRequired) Error() string { return "authentication required" }
func (e *AuthRequired) ExitCode() int { return rsync.ExitFeatureUnavailable }

// FilterCompile reports a bad filter pattern or rule-file problem. Source
// is a human-readable reason, not a wrapped error — callers that have an
// underlying error fold it in with fmt.Sprintf/err.Error() before
// constructing this value.
type FilterCompile struct {
	Pattern string
	Source  string
}

func (e *FilterCompile) Error() string {
	return fmt.Sprintf("compiling filter pattern %q: %s", e.Pattern, e.Source)
}
func (e *FilterCompile) ExitCode() int { return rsync.ExitFeatureUnavailable }

// DeleteLimitExceeded reports that --max-delete stopped further deletions.
type DeleteLimitExceeded struct {
	Skipped int
}

func (e *DeleteLimitExceeded) Error() string {
	return fmt.Sprintf("%d entries skipped due to --max-delete", e.Skipped)
}
func (e *DeleteLimitExceeded) ExitCode() int { return rsync.ExitDeleteLimitExceeded }

// StopAtReached is a deterministic non-error termination used by some
// selectors (e.g. --stop-after, --stop-at); it is not surfaced as a
// process failure.
type StopAtReached struct {
	Detail string
}

func (e *StopAtReached) Error() string { return "stop point reached: " + e.Detail }
func (e *StopAtReached) ExitCode() int { return 0 }

// Rolling checksum misuse errors (programmer errors surfaced as typed
// variants, never panics).

// EmptyWindow is returned by Roll when the rolling checksum window is
// empty.
type EmptyWindow struct{}

func (e *EmptyWindow) Error() string { return "rolling checksum: window is empty" }

// WindowTooLarge is returned when a window length exceeds representable
// bounds.
type WindowTooLarge struct {
	Length uint64
}

func (e *WindowTooLarge) Error() string {
	return fmt.Sprintf("rolling checksum: window too large (%d)", e.Length)
}

// MismatchedSliceLength is returned by RollMany when the out/in slices
// differ in length.
type MismatchedSliceLength struct {
	OutLen, InLen int
}

func (e *MismatchedSliceLength) Error() string {
	return fmt.Sprintf("rolling checksum: mismatched slice lengths (out=%d, in=%d)", e.OutLen, e.InLen)
}

// WorstExitCode returns the most-severe (matching rsync's policy of
// preserving the most-severe status) of the given exit codes, ignoring
// zero. It returns 0 if all inputs are zero or the slice is empty.
func WorstExitCode(codes ...int) int {
	worst := 0
	for _, c := range codes {
		if c > worst {
			worst = c
		}
	}
	return worst
}
