package negotiate

import (
	"bytes"
	"io"
)

// NegotiatedStream wraps a transport after the prologue has been sniffed,
// replaying whatever bytes the Sniffer buffered before handing off to
// whichever handshake implementation (binary or legacy) takes over. This
// lets the rest of the session treat the connection as one continuous
// stream regardless of how many bytes the sniffer peeked at.
type NegotiatedStream struct {
	buffered []byte
	inner    io.Reader
}

// NewNegotiatedStream constructs a stream that replays buffered before
// falling through to reads from inner.
func NewNegotiatedStream(buffered []byte, inner io.Reader) *NegotiatedStream {
	return &NegotiatedStream{buffered: append([]byte(nil), buffered...), inner: inner}
}

func (n *NegotiatedStream) Read(p []byte) (int, error) {
	if len(n.buffered) > 0 {
		c := copy(p, n.buffered)
		n.buffered = n.buffered[c:]
		return c, nil
	}
	return n.inner.Read(p)
}

// Buffered returns the not-yet-replayed prefix.
func (n *NegotiatedStream) Buffered() []byte { return n.buffered }

// Inner returns the wrapped reader without taking ownership.
func (n *NegotiatedStream) Inner() io.Reader { return n.inner }

// NegotiatedStreamParts is the decomposed form of a NegotiatedStream,
// exposing the still-buffered prefix and the underlying reader separately
// for callers that need to rebuild equivalent framing on top of a
// replacement transport (e.g. after wrapping inner in a multiplex reader).
type NegotiatedStreamParts struct {
	Buffered []byte
	Inner    io.Reader
}

// IntoParts decomposes the stream, relinquishing ownership of both fields.
func (n *NegotiatedStream) IntoParts() NegotiatedStreamParts {
	parts := NegotiatedStreamParts{Buffered: n.buffered, Inner: n.inner}
	n.buffered = nil
	n.inner = nil
	return parts
}

// TryCloneWith rebuilds a NegotiatedStream from parts, optionally replacing
// the inner reader via mapInner (e.g. to wrap it in a counting reader); pass
// nil to keep parts.Inner unchanged.
func TryCloneWith(parts NegotiatedStreamParts, mapInner func(io.Reader) (io.Reader, error)) (*NegotiatedStream, error) {
	inner := parts.Inner
	if mapInner != nil {
		mapped, err := mapInner(inner)
		if err != nil {
			return nil, err
		}
		inner = mapped
	}
	return &NegotiatedStream{buffered: append([]byte(nil), parts.Buffered...), inner: inner}, nil
}

// TryMapInner replaces the inner reader in place via f, leaving the
// buffered prefix untouched.
func (n *NegotiatedStream) TryMapInner(f func(io.Reader) (io.Reader, error)) error {
	mapped, err := f(n.inner)
	if err != nil {
		return err
	}
	n.inner = mapped
	return nil
}

// Style tags which handshake variant produced a SessionHandshake.
type Style int

const (
	// StyleBinary tags a binary protocol-version handshake result.
	StyleBinary Style = iota
	// StyleLegacy tags a legacy ASCII daemon handshake result.
	StyleLegacy
)

// SessionHandshake is a tagged union over the two handshake outcomes,
// letting callers that dispatch on connection style (e.g. a daemon
// listener serving both rsync:// and ssh-piped clients) carry a single
// value through the rest of session setup.
type SessionHandshake struct {
	Style  Style
	Binary *BinaryResult
	Legacy *LegacyHandshakeResult
}

// LegacyHandshakeResult bundles the negotiated version with any lines read
// past the greeting exchange (module listing, OK/AUTHREQD/ERROR line).
type LegacyHandshakeResult struct {
	*BinaryResult
	Lines []string
}

// NewBinarySessionHandshake wraps a BinaryResult as a SessionHandshake.
func NewBinarySessionHandshake(r *BinaryResult) SessionHandshake {
	return SessionHandshake{Style: StyleBinary, Binary: r}
}

// NewLegacySessionHandshake wraps a legacy handshake outcome as a
// SessionHandshake.
func NewLegacySessionHandshake(r *BinaryResult, lines []string) SessionHandshake {
	return SessionHandshake{Style: StyleLegacy, Legacy: &LegacyHandshakeResult{BinaryResult: r, Lines: lines}}
}

// Negotiated returns the agreed protocol version regardless of which
// handshake style produced it.
func (h SessionHandshake) Negotiated() BinaryResult {
	switch h.Style {
	case StyleBinary:
		return *h.Binary
	case StyleLegacy:
		return *h.Legacy.BinaryResult
	default:
		return BinaryResult{}
	}
}

// SplitLegacyPrefix reports whether data begins with the full legacy daemon
// prefix, for callers that already have a small fixed-size peek buffer and
// want a one-shot check without constructing a Sniffer.
func SplitLegacyPrefix(data []byte) bool {
	return bytes.HasPrefix(data, []byte(LegacyDaemonPrefix))
}
