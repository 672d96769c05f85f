// Package negotiate implements the rsync session-establishment prologue:
// sniffing whether a peer is speaking the binary protocol-version handshake
// or the legacy ASCII daemon greeting, then carrying out whichever handshake
// was detected.
package negotiate

import (
	"io"

	"github.com/ocrsync/rsync/internal/rsyncerr"
)

// Prologue identifies which handshake style a connection is using.
type Prologue int

const (
	// NeedMoreData means the sniffer has not yet seen enough bytes to
	// decide.
	NeedMoreData Prologue = iota
	// Binary means the connection opened with the 4-byte little-endian
	// protocol version handshake.
	Binary
	// LegacyAscii means the connection opened with the "@RSYNCD:" daemon
	// greeting prefix.
	LegacyAscii
)

func (p Prologue) String() string {
	switch p {
	case NeedMoreData:
		return "need-more-data"
	case Binary:
		return "binary"
	case LegacyAscii:
		return "legacy-ascii"
	default:
		return "unknown"
	}
}

// LegacyDaemonPrefix is the fixed byte sequence that opens every legacy
// ASCII daemon greeting.
const LegacyDaemonPrefix = "@RSYNCD:"

// legacyPrefixLen is the number of bytes that must be observed before the
// legacy prologue is considered fully confirmed.
const legacyPrefixLen = len(LegacyDaemonPrefix)

// Sniffer incrementally classifies the first bytes of a connection as
// either the binary handshake or the legacy ASCII daemon greeting, buffering
// whatever it consumes so callers can replay it to whichever handshake
// implementation ends up driving the connection.
//
// The decision rule: a first byte of '@' begins a candidate legacy prefix,
// which must match "@RSYNCD:" byte-for-byte to be confirmed; any other
// first byte immediately decides Binary and consumes exactly one byte.
type Sniffer struct {
	decision Prologue
	buffered []byte
}

// NewSniffer returns a Sniffer ready to observe the start of a connection.
func NewSniffer() *Sniffer {
	s := &Sniffer{}
	s.reset()
	return s
}

func (s *Sniffer) reset() {
	s.decision = NeedMoreData
	if cap(s.buffered) > legacyPrefixLen {
		s.buffered = make([]byte, 0, legacyPrefixLen)
	} else {
		s.buffered = s.buffered[:0]
	}
}

// Reset clears all buffered state and returns the Sniffer to its initial
// NeedMoreData state so it can be reused on a new connection.
func (s *Sniffer) Reset() { s.reset() }

// Buffered returns the bytes the Sniffer has consumed so far. Callers that
// hand the connection off to a handshake implementation must replay these
// bytes before reading any further from the transport.
func (s *Sniffer) Buffered() []byte { return s.buffered }

// Decision returns the current classification; it is NeedMoreData until
// enough bytes have been observed.
func (s *Sniffer) Decision() Prologue { return s.decision }

// Decided reports whether Observe has reached a final answer. For
// LegacyAscii this is true as soon as the first '@' is seen, even though
// PrefixComplete may still be false — matching the distinction between
// "we know it's legacy" and "we've buffered the whole fixed prefix".
func (s *Sniffer) Decided() bool { return s.decision != NeedMoreData }

// PrefixComplete reports whether all legacyPrefixLen bytes of the legacy
// prefix have been observed and matched.
func (s *Sniffer) PrefixComplete() bool {
	return s.decision == LegacyAscii && len(s.buffered) >= legacyPrefixLen
}

// needsMorePrefixBytes reports whether decision is LegacyAscii but the
// fixed-length prefix hasn't been fully buffered yet.
func (s *Sniffer) needsMorePrefixBytes() bool {
	return s.decision == LegacyAscii && len(s.buffered) < legacyPrefixLen
}

// Observe feeds a chunk of bytes already read from the transport into the
// sniffer, returning the (possibly still undecided) prologue and how many
// bytes of chunk were consumed toward that decision. Bytes beyond what was
// consumed belong to the post-prologue stream and must not be discarded by
// the caller.
func (s *Sniffer) Observe(chunk []byte) (Prologue, int) {
	if len(chunk) == 0 {
		return s.decision, 0
	}
	if s.Decided() && !s.needsMorePrefixBytes() {
		return s.decision, 0
	}

	consumed := 0
	for _, b := range chunk {
		switch {
		case len(s.buffered) == 0:
			s.buffered = append(s.buffered, b)
			consumed++
			if b == '@' {
				s.decision = LegacyAscii
			} else {
				s.decision = Binary
				return s.decision, consumed
			}
		case s.decision == LegacyAscii && len(s.buffered) < legacyPrefixLen:
			s.buffered = append(s.buffered, b)
			consumed++
			if !matchesPrefixSoFar(s.buffered) {
				s.decision = Binary
				return s.decision, consumed
			}
			if len(s.buffered) >= legacyPrefixLen {
				return s.decision, consumed
			}
		default:
			return s.decision, consumed
		}
	}
	return s.decision, consumed
}

func matchesPrefixSoFar(buffered []byte) bool {
	n := len(buffered)
	if n > legacyPrefixLen {
		n = legacyPrefixLen
	}
	return string(buffered[:n]) == LegacyDaemonPrefix[:n]
}

// ObserveByte is a convenience wrapper around Observe for a single byte.
func (s *Sniffer) ObserveByte(b byte) Prologue {
	decision, _ := s.Observe([]byte{b})
	return decision
}

// ReadFrom reads from r one byte per Read call (so it never over-reads into
// the post-prologue stream) until the prologue is fully decided. It returns io.ErrUnexpectedEOF if the connection closes
// before a decision can be reached.
func (s *Sniffer) ReadFrom(r io.Reader) (Prologue, error) {
	if s.Decided() && !s.needsMorePrefixBytes() {
		return s.decision, nil
	}
	var scratch [1]byte
	for {
		n, err := r.Read(scratch[:])
		if n > 0 {
			decision, consumed := s.Observe(scratch[:n])
			if consumed != n {
				return decision, &rsyncerr.ProtocolViolation{Detail: "sniffer consumed fewer bytes than read"}
			}
			if decision != NeedMoreData && !s.needsMorePrefixBytes() {
				return decision, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return s.decision, io.ErrUnexpectedEOF
			}
			return s.decision, err
		}
	}
}
