// Package rsync holds the wire-level constants shared by every component of
// the synchronization core: the protocol version range, the compatibility
// flag bitmap, multiplex framing constants, and file-list status bits. These
// values are fixed by the upstream rsync protocol and must not drift.
package rsync

import "fmt"

// ProtocolVersion is the rsync wire protocol version, a small non-zero
// integer in [MinProtocolVersion, NewestProtocolVersion].
type ProtocolVersion int32

const (
	// MinProtocolVersion is the oldest protocol version this core
	// interoperates with.
	MinProtocolVersion ProtocolVersion = 30
	// NewestProtocolVersion is the newest protocol version this core speaks.
	NewestProtocolVersion ProtocolVersion = 32
)

// Valid reports whether v is within [MinProtocolVersion,
// NewestProtocolVersion].
func (v ProtocolVersion) Valid() bool {
	return v >= MinProtocolVersion && v <= NewestProtocolVersion
}

// Clamp returns v capped at NewestProtocolVersion, together with whether
// capping changed the value.
func (v ProtocolVersion) Clamp() (ProtocolVersion, bool) {
	if v > NewestProtocolVersion {
		return NewestProtocolVersion, true
	}
	return v, false
}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d", int32(v))
}

// CompatibilityFlags is the 32-bit compat-flag bitmap exchanged during
// negotiation. Unknown bits are preserved round-trip but never interpreted.
type CompatibilityFlags uint32

// Known compatibility flag bits, in the fixed bit-position order mandated by
// the upstream protocol. Do not renumber.
const (
	CompatIncRecurse        CompatibilityFlags = 1 << 0
	CompatSymlinkTimes      CompatibilityFlags = 1 << 1
	CompatSymlinkIconv      CompatibilityFlags = 1 << 2
	CompatSafeFList         CompatibilityFlags = 1 << 3
	CompatAvoidXattrOptim   CompatibilityFlags = 1 << 4
	CompatChksumSeedFix     CompatibilityFlags = 1 << 5
	CompatInplacePartialDir CompatibilityFlags = 1 << 6
	CompatVarintFlistFlags  CompatibilityFlags = 1 << 7
	CompatID0Names          CompatibilityFlags = 1 << 8
)

// KnownCompatibilityFlag enumerates the known bits in ascending order, for
// iteration and for parsing/printing the CF_* canonical identifiers used in
// diagnostics.
type KnownCompatibilityFlag struct {
	Flag CompatibilityFlags
	Name string
}

// KnownCompatibilityFlags lists every known flag in ascending bit order.
var KnownCompatibilityFlags = []KnownCompatibilityFlag{
	{CompatIncRecurse, "CF_INC_RECURSE"},
	{CompatSymlinkTimes, "CF_SYMLINK_TIMES"},
	{CompatSymlinkIconv, "CF_SYMLINK_ICONV"},
	{CompatSafeFList, "CF_SAFE_FLIST"},
	{CompatAvoidXattrOptim, "CF_AVOID_XATTR_OPTIM"},
	{CompatChksumSeedFix, "CF_CHKSUM_SEED_FIX"},
	{CompatInplacePartialDir, "CF_INPLACE_PARTIAL_DIR"},
	{CompatVarintFlistFlags, "CF_VARINT_FLIST_FLAGS"},
	{CompatID0Names, "CF_ID0_NAMES"},
}

// Has reports whether flag is set in f.
func (f CompatibilityFlags) Has(flag CompatibilityFlags) bool {
	return f&flag != 0
}

// String renders the known flags that are set, joined with '|', followed
// by "unknown(0x...)" for any unknown bits; it returns "none" when no bit
// is set.
func (f CompatibilityFlags) String() string {
	s := ""
	for _, k := range KnownCompatibilityFlags {
		if f.Has(k.Flag) {
			if s != "" {
				s += "|"
			}
			s += k.Name
		}
	}
	var known CompatibilityFlags
	for _, k := range KnownCompatibilityFlags {
		known |= k.Flag
	}
	if unknown := f &^ known; unknown != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("unknown(0x%x)", uint32(unknown))
	}
	if s == "" {
		return "none"
	}
	return s
}

// ParseKnownCompatibilityFlag looks up a CF_* canonical identifier.
func ParseKnownCompatibilityFlag(name string) (CompatibilityFlags, bool) {
	for _, k := range KnownCompatibilityFlags {
		if k.Name == name {
			return k.Flag, true
		}
	}
	return 0, false
}

// Multiplex framing constants (§4.C, §6).
const (
	// MplexBase is the tag offset distinguishing multiplex tags from raw
	// data bytes: tag = MplexBase + code.
	MplexBase = 7
	// MaxPayloadLength is the largest payload a single multiplex frame may
	// carry (24-bit length field).
	MaxPayloadLength = 1<<24 - 1
)

// MessageCode identifies the kind of a multiplex frame.
type MessageCode int

const (
	MsgData MessageCode = iota
	MsgErrorXfer
	MsgInfo
	MsgError
	MsgWarning
	MsgErrorSocket
	MsgLog
	MsgClient
	MsgErrorUTF8
	MsgRedo
	MsgStats
	MsgIoError   MessageCode = 22
	MsgIoTimeout MessageCode = 33
	MsgNoop      MessageCode = 42
	MsgErrorExit MessageCode = 86
	MsgSuccess   MessageCode = 100
	MsgDeleted   MessageCode = 101
	MsgNoSend    MessageCode = 102
)

// FileList status-byte bits (rsync/rsync.h).
const (
	FlistTopLevel      = 0x01
	FlistSameMode      = 0x02
	FlistExtendedFlags = 0x04
	FlistSameUID       = 0x08
	FlistSameGID       = 0x10
	FlistSameName      = 0x20
	FlistLongName      = 0x40
	FlistSameTime      = 0x80
)

// Exit codes used by the core (§6).
const (
	ExitFeatureUnavailable     = 1
	ExitDaemonProtocolError    = 2
	ExitDestDirectorySelection = 3
	ExitClientServerSetup      = 5
	ExitSocketIO               = 10
	ExitFileIO                 = 11
	ExitIPC                    = 14
	ExitPartialTransfer        = 23
	ExitDeleteLimitExceeded    = 25
	ExitTimeout                = 30
	ExitRemoteNotFound         = 127
)
