package negotiate_test

import (
	"fmt"
	"net"
	"testing"

	rsync "github.com/ocrsync/rsync"
	"github.com/ocrsync/rsync/internal/negotiate"
)

func TestParseLegacyGreeting(t *testing.T) {
	g, err := negotiate.ParseLegacyGreeting("@RSYNCD: 31.0\n")
	if err != nil {
		t.Fatal(err)
	}
	if g.Major != 31 || g.Minor != "0" {
		t.Fatalf("got %+v", g)
	}
}

func TestParseLegacyGreetingRejectsMissingPrefix(t *testing.T) {
	if _, err := negotiate.ParseLegacyGreeting("hello\n"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLegacyDaemonHandshakeModuleList(t *testing.T) {
	clientSide, serverSide := net.Pipe()

	serverDone := make(chan error, 1)
	go func() {
		srv := negotiate.NewLegacyDaemonServer(serverSide, serverSide)
		if _, err := srv.Greet(rsync.NewestProtocolVersion); err != nil {
			serverDone <- err
			return
		}
		mod, err := srv.ReadModuleRequest()
		if err != nil {
			serverDone <- err
			return
		}
		if mod != "#list" {
			serverDone <- fmt.Errorf("got module %q, want #list", mod)
			return
		}
		serverDone <- srv.WriteOK()
	}()

	client := negotiate.NewLegacyDaemonClient(clientSide, clientSide)
	result, lines, err := client.Handshake(rsync.NewestProtocolVersion, "")
	if err != nil {
		t.Fatalf("client handshake: %v", err)
	}
	if result.Negotiated != rsync.NewestProtocolVersion {
		t.Fatalf("got %v, want %v", result.Negotiated, rsync.NewestProtocolVersion)
	}
	if len(lines) != 1 || lines[0] != "@RSYNCD: OK" {
		t.Fatalf("got lines %v, want [@RSYNCD: OK]", lines)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestLegacyDaemonHandshakeAuthRequired(t *testing.T) {
	clientSide, serverSide := net.Pipe()

	serverDone := make(chan error, 1)
	go func() {
		srv := negotiate.NewLegacyDaemonServer(serverSide, serverSide)
		if _, err := srv.Greet(rsync.NewestProtocolVersion); err != nil {
			serverDone <- err
			return
		}
		if _, err := srv.ReadModuleRequest(); err != nil {
			serverDone <- err
			return
		}
		serverDone <- srv.WriteAuthRequired("deadbeef")
	}()

	client := negotiate.NewLegacyDaemonClient(clientSide, clientSide)
	_, lines, err := client.Handshake(rsync.NewestProtocolVersion, "secret-module")
	if err != nil {
		t.Fatalf("client handshake: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("got lines %v", lines)
	}
	challenge, ok := negotiate.AuthChallenge(lines[0])
	if !ok || challenge != "deadbeef" {
		t.Fatalf("got (%q, %v), want (deadbeef, true)", challenge, ok)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server: %v", err)
	}
}
