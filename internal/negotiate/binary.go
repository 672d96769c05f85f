package negotiate

import (
	"fmt"

	rsync "github.com/ocrsync/rsync"
	"github.com/ocrsync/rsync/internal/rsyncerr"
	"github.com/ocrsync/rsync/internal/rsyncwire"
)

// BinaryResult records the outcome of a binary-style protocol version
// exchange.
type BinaryResult struct {
	// Local is the version this side offered.
	Local rsync.ProtocolVersion
	// Remote is the raw version the peer offered, unclamped.
	Remote rsync.ProtocolVersion
	// Negotiated is the version both sides will use: min(Local, Remote),
	// capped at NewestProtocolVersion. A Remote below MinProtocolVersion is
	// rejected with an error; a Local below it is not raised.
	Negotiated rsync.ProtocolVersion
	// Capped reports whether Negotiated differs from Local: the peer
	// offered an older version, or the result was capped at
	// NewestProtocolVersion.
	Capped bool
}

// ClientBinaryHandshake performs the client side of the binary handshake:
// send our version, then read the server's.
func ClientBinaryHandshake(c *rsyncwire.Conn, local rsync.ProtocolVersion) (*BinaryResult, error) {
	if err := c.WriteInt32(int32(local)); err != nil {
		return nil, fmt.Errorf("sending protocol version: %w", err)
	}
	remote, err := c.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading remote protocol version: %w", err)
	}
	return resolve(local, rsync.ProtocolVersion(remote))
}

// ServerBinaryHandshake performs the server side of the binary handshake:
// read the client's version, then send ours.
func ServerBinaryHandshake(c *rsyncwire.Conn, local rsync.ProtocolVersion) (*BinaryResult, error) {
	remote, err := c.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading remote protocol version: %w", err)
	}
	if err := c.WriteInt32(int32(local)); err != nil {
		return nil, fmt.Errorf("sending protocol version: %w", err)
	}
	return resolve(local, rsync.ProtocolVersion(remote))
}

func resolve(local, remote rsync.ProtocolVersion) (*BinaryResult, error) {
	if remote < rsync.MinProtocolVersion {
		return nil, &rsyncerr.HandshakeIncompatible{Local: local, Remote: remote}
	}

	negotiated := local
	capped := false
	if remote < negotiated {
		negotiated = remote
		capped = true
	}
	if clamped, changed := negotiated.Clamp(); changed {
		negotiated = clamped
		capped = true
	}
	return &BinaryResult{
		Local:      local,
		Remote:     remote,
		Negotiated: negotiated,
		Capped:     capped,
	}, nil
}
