package negotiate

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	rsync "github.com/ocrsync/rsync"
	"github.com/ocrsync/rsync/internal/rsyncerr"
)

// LegacyGreeting is one "@RSYNCD: ..." line exchanged during the legacy
// daemon handshake, split into its version and any trailing sub-protocol
// tag (e.g. "30.0" has major=30, minor="0").
type LegacyGreeting struct {
	Major rsync.ProtocolVersion
	Minor string
}

func (g LegacyGreeting) String() string {
	if g.Minor == "" {
		return fmt.Sprintf("%s%d\n", LegacyDaemonPrefix, g.Major)
	}
	return fmt.Sprintf("%s%d.%s\n", LegacyDaemonPrefix, g.Major, g.Minor)
}

// ParseLegacyGreeting parses a line of the form "@RSYNCD: 31.0\n" (the
// trailing newline is optional in the input). The minor version is cut at
// its first non-digit byte, so trailing text after it is dropped.
func ParseLegacyGreeting(line string) (LegacyGreeting, error) {
	trimmed := strings.TrimSuffix(line, "\n")
	if !strings.HasPrefix(trimmed, LegacyDaemonPrefix) {
		return LegacyGreeting{}, &rsyncerr.ProtocolViolation{Detail: fmt.Sprintf("legacy greeting missing prefix: %q", line)}
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, LegacyDaemonPrefix))
	major, minor, _ := strings.Cut(rest, ".")
	if i := strings.IndexFunc(minor, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minor = minor[:i]
	}
	v, err := strconv.Atoi(major)
	if err != nil {
		return LegacyGreeting{}, &rsyncerr.ProtocolViolation{Detail: fmt.Sprintf("legacy greeting malformed version: %q", line)}
	}
	return LegacyGreeting{Major: rsync.ProtocolVersion(v), Minor: minor}, nil
}

// LegacyDaemonClient drives the client side of the legacy ASCII daemon
// handshake: reads the server greeting, sends our own, requests a module,
// and reports whatever terminal line the server sent back.
type LegacyDaemonClient struct {
	rd *bufio.Reader
	wr io.Writer
}

// NewLegacyDaemonClient wraps rd/wr, reusing prebuffered bytes (e.g. from a
// Sniffer) as the start of the input stream.
func NewLegacyDaemonClient(r io.Reader, w io.Writer) *LegacyDaemonClient {
	return &LegacyDaemonClient{rd: bufio.NewReader(r), wr: w}
}

// Handshake exchanges greetings and requests module, returning the
// negotiated version and the server's module-listing/terminator response
// lines (everything up to and including "@RSYNCD: OK" or an AUTHREQD
// challenge or a terminal "@ERROR").
func (c *LegacyDaemonClient) Handshake(local rsync.ProtocolVersion, module string) (*BinaryResult, []string, error) {
	serverLine, err := c.rd.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading server greeting: %w", err)
	}
	serverGreeting, err := ParseLegacyGreeting(serverLine)
	if err != nil {
		return nil, nil, err
	}

	result, err := resolve(local, serverGreeting.Major)
	if err != nil {
		return nil, nil, err
	}

	clientGreeting := LegacyGreeting{Major: result.Negotiated}
	if _, err := io.WriteString(c.wr, clientGreeting.String()); err != nil {
		return nil, nil, fmt.Errorf("sending client greeting: %w", err)
	}

	if module == "" {
		module = "#list"
	}
	if _, err := io.WriteString(c.wr, module+"\n"); err != nil {
		return nil, nil, fmt.Errorf("requesting module: %w", err)
	}

	var lines []string
	for {
		line, err := c.rd.ReadString('\n')
		if line != "" {
			trimmed := strings.TrimRight(line, "\n")
			lines = append(lines, trimmed)
			if trimmed == "@RSYNCD: OK" || strings.HasPrefix(trimmed, "@ERROR") ||
				strings.HasPrefix(trimmed, "@RSYNCD: AUTHREQD ") || trimmed == "@RSYNCD: EXIT" {
				break
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return result, lines, err
		}
	}
	return result, lines, nil
}

// AuthChallenge extracts the challenge token from an "@RSYNCD: AUTHREQD
// <challenge>" line, or ok=false if line isn't an auth challenge.
func AuthChallenge(line string) (challenge string, ok bool) {
	const prefix = "@RSYNCD: AUTHREQD "
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}

// LegacyDaemonServer drives the server side of the legacy ASCII daemon
// handshake.
type LegacyDaemonServer struct {
	rd *bufio.Reader
	wr io.Writer
}

// NewLegacyDaemonServer wraps rd/wr for the server role.
func NewLegacyDaemonServer(r io.Reader, w io.Writer) *LegacyDaemonServer {
	return &LegacyDaemonServer{rd: bufio.NewReader(r), wr: w}
}

// Greet sends the server's opening greeting and reads the client's reply,
// returning the negotiated version.
func (s *LegacyDaemonServer) Greet(local rsync.ProtocolVersion) (*BinaryResult, error) {
	greeting := LegacyGreeting{Major: local}
	if _, err := io.WriteString(s.wr, greeting.String()); err != nil {
		return nil, fmt.Errorf("sending server greeting: %w", err)
	}
	clientLine, err := s.rd.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading client greeting: %w", err)
	}
	clientGreeting, err := ParseLegacyGreeting(clientLine)
	if err != nil {
		return nil, err
	}
	return resolve(local, clientGreeting.Major)
}

// ReadModuleRequest reads the module name line following the greeting
// exchange.
func (s *LegacyDaemonServer) ReadModuleRequest() (string, error) {
	line, err := s.rd.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading module request: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// WriteOK sends the "@RSYNCD: OK" terminator that concludes a successful
// handshake before option-flag exchange begins.
func (s *LegacyDaemonServer) WriteOK() error {
	_, err := io.WriteString(s.wr, "@RSYNCD: OK\n")
	return err
}

// WriteAuthRequired sends an AUTHREQD challenge line.
func (s *LegacyDaemonServer) WriteAuthRequired(challenge string) error {
	_, err := fmt.Fprintf(s.wr, "@RSYNCD: AUTHREQD %s\n", challenge)
	return err
}

// WriteError sends a terminal "@ERROR" line and closes out the handshake.
func (s *LegacyDaemonServer) WriteError(detail string) error {
	_, err := fmt.Fprintf(s.wr, "@ERROR: %s\n", detail)
	return err
}

// Reader exposes the buffered reader so callers can continue reading
// option-flag lines with the same buffering the handshake used.
func (s *LegacyDaemonServer) Reader() *bufio.Reader { return s.rd }

// Reader exposes the buffered reader for the client role, analogous to
// LegacyDaemonServer.Reader.
func (c *LegacyDaemonClient) Reader() *bufio.Reader { return c.rd }
