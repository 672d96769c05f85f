package negotiate_test

import (
	"errors"
	"net"
	"testing"

	rsync "github.com/ocrsync/rsync"
	"github.com/ocrsync/rsync/internal/negotiate"
	"github.com/ocrsync/rsync/internal/rsyncerr"
	"github.com/ocrsync/rsync/internal/rsyncwire"
)

func pipeConns() (client, server *rsyncwire.Conn) {
	c, s := net.Pipe()
	return &rsyncwire.Conn{Reader: c, Writer: c}, &rsyncwire.Conn{Reader: s, Writer: s}
}

func TestBinaryHandshakeNegotiatesLowerVersion(t *testing.T) {
	clientConn, serverConn := pipeConns()

	clientDone := make(chan *negotiate.BinaryResult, 1)
	clientErr := make(chan error, 1)
	go func() {
		r, err := negotiate.ClientBinaryHandshake(clientConn, rsync.NewestProtocolVersion)
		clientDone <- r
		clientErr <- err
	}()

	serverResult, err := negotiate.ServerBinaryHandshake(serverConn, rsync.MinProtocolVersion)
	if err != nil {
		t.Fatalf("server handshake: %v", err)
	}
	clientResult := <-clientDone
	if err := <-clientErr; err != nil {
		t.Fatalf("client handshake: %v", err)
	}

	if serverResult.Negotiated != rsync.MinProtocolVersion {
		t.Fatalf("server negotiated %v, want %v", serverResult.Negotiated, rsync.MinProtocolVersion)
	}
	if clientResult.Negotiated != rsync.MinProtocolVersion {
		t.Fatalf("client negotiated %v, want %v", clientResult.Negotiated, rsync.MinProtocolVersion)
	}
	if !clientResult.Capped {
		t.Fatal("expected client to report capping down to the server's older version")
	}
}

func TestBinaryHandshakeCapsAboveNewest(t *testing.T) {
	clientConn, serverConn := pipeConns()

	aboveNewest := rsync.NewestProtocolVersion + 5

	go func() {
		negotiate.ClientBinaryHandshake(clientConn, aboveNewest)
	}()

	result, err := negotiate.ServerBinaryHandshake(serverConn, aboveNewest)
	if err != nil {
		t.Fatalf("server handshake: %v", err)
	}
	if result.Negotiated != rsync.NewestProtocolVersion {
		t.Fatalf("got %v, want clamped to %v", result.Negotiated, rsync.NewestProtocolVersion)
	}
	if !result.Capped {
		t.Fatal("expected Capped to be true")
	}
}

func TestBinaryHandshakeRejectsBelowMinimum(t *testing.T) {
	clientConn, serverConn := pipeConns()

	tooOld := rsync.MinProtocolVersion - 1

	go func() {
		negotiate.ClientBinaryHandshake(clientConn, tooOld)
	}()

	_, err := negotiate.ServerBinaryHandshake(serverConn, rsync.NewestProtocolVersion)
	if err == nil {
		t.Fatal("expected error for below-minimum remote version")
	}
	var incompat *rsyncerr.HandshakeIncompatible
	if !errors.As(err, &incompat) {
		t.Fatalf("got %v (%T), want *rsyncerr.HandshakeIncompatible", err, err)
	}
}
