// Package rsyncd implements the daemon side of an rsync session up to the
// start of a transfer: legacy greeting and module selection,
// challenge/response authentication, and host gating. A connection is
// handled until "@RSYNCD: OK" has been sent; no transfer is run from here.
//
// Grounded on the teacher's rsyncd/rsyncd.go Server/HandleDaemonConn,
// generalized to use this repository's own negotiate/daemonauth/
// rsyncfilter packages instead of the teacher's
// internal/receiver+internal/sender pair, and to read module
// configuration from internal/rsyncconfig instead of an ad-hoc toml-tagged
// Module literal.
package rsyncd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/ocrsync/rsync/internal/daemonauth"
	"github.com/ocrsync/rsync/internal/negotiate"
	"github.com/ocrsync/rsync/internal/rsyncconfig"
	"github.com/ocrsync/rsync/internal/rsyncerr"
	"github.com/ocrsync/rsync/internal/rsyncfilter"
	"github.com/ocrsync/rsync/internal/rsyncwire"

	rsync "github.com/ocrsync/rsync"
)

// Option configures a Server.
type Option interface{ apply(*Server) }

type optionFunc func(*Server)

func (f optionFunc) apply(s *Server) { f(s) }

// WithLogger overrides the server's diagnostic logger (stderr by default).
func WithLogger(l *log.Logger) Option {
	return optionFunc(func(s *Server) { s.logger = l })
}

// WithStderr overrides the writer the default logger is built on.
func WithStderr(w io.Writer) Option {
	return optionFunc(func(s *Server) { s.stderr = w })
}

// Server is an rsync daemon: a fixed module set plus the auth/host-gate
// machinery applied to every incoming connection.
type Server struct {
	config  *rsyncconfig.Daemon
	limiter *daemonauth.Limiter
	logger  *log.Logger
	stderr  io.Writer
	pid     int
}

// NewServer constructs a daemon from a loaded configuration document.
func NewServer(cfg *rsyncconfig.Daemon, opts ...Option) (*Server, error) {
	for _, m := range cfg.Modules {
		if m.Name == "" {
			return nil, fmt.Errorf("module has no name")
		}
		if m.Path == "" {
			return nil, fmt.Errorf("module %q has empty path", m.Name)
		}
	}
	s := &Server{config: cfg, pid: os.Getpid()}
	for _, o := range opts {
		o.apply(s)
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.logger == nil {
		s.logger = log.New(s.stderr, "", log.LstdFlags)
	}
	if lockDir := os.TempDir(); lockDir != "" {
		s.limiter = daemonauth.NewLimiter(lockDir + "/rsyncd.lock")
	}
	if err := restrictToModules(cfg.Modules); err != nil {
		return nil, fmt.Errorf("restricting to module paths: %w", err)
	}
	return s, nil
}

func (s *Server) moduleList() string {
	var out string
	for _, m := range s.config.Modules {
		if !m.List {
			continue
		}
		out += fmt.Sprintf("%s\t%s\n", m.Name, m.Comment)
	}
	return out
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		remote := conn.RemoteAddr()
		s.logger.Printf("connection from %s", remote)
		go func() {
			defer conn.Close()
			if err := s.HandleDaemonConn(ctx, conn, remote); err != nil {
				s.logger.Printf("[%s] handle: %v", remote, err)
			}
		}()
	}
}

// HandleDaemonConn drives the legacy greeting, module selection and
// authentication, and returns once "@RSYNCD: OK" has been sent, equivalent to
// the teacher's HandleDaemonConn but composed from negotiate/daemonauth
// instead of bespoke bufio parsing.
func (s *Server) HandleDaemonConn(ctx context.Context, conn io.ReadWriter, remoteAddr net.Addr) error {
	crd, cwr := rsyncwire.CounterPair(conn, conn)

	srv := negotiate.NewLegacyDaemonServer(crd, cwr)
	if _, err := srv.Greet(rsync.NewestProtocolVersion); err != nil {
		return err
	}

	requestedModule, err := srv.ReadModuleRequest()
	if err != nil {
		return err
	}
	if requestedModule == "" || requestedModule == "#list" {
		io.WriteString(cwr, s.moduleList())
		return srv.WriteError("module listing only")
	}

	mod, ok := s.config.ModuleByName(requestedModule)
	if !ok {
		err := fmt.Errorf("unknown module %q", requestedModule)
		srv.WriteError(err.Error())
		return err
	}

	host, _, _ := net.SplitHostPort(remoteAddr.String())
	gate := daemonauth.NewHostGate(hostRules(mod), false, nil)
	if !gate.Allowed(host) {
		err := &rsyncerr.AuthFailed{Reason: "host not permitted"}
		srv.WriteError(err.Error())
		return err
	}

	if mod.SecretsFile != "" {
		if err := s.authenticate(srv, mod, host); err != nil {
			srv.WriteError(err.Error())
			return err
		}
	}

	var guard *daemonauth.Guard
	if s.limiter != nil && mod.MaxConnections > 0 {
		g, err := s.limiter.Acquire(mod.Name, mod.MaxConnections)
		if err != nil {
			srv.WriteError(err.Error())
			return err
		}
		guard = g
		defer guard.Release()
	}

	if err := srv.WriteOK(); err != nil {
		return err
	}

	fsSet := moduleFilterSet(mod)
	_ = fsSet // built but not passed on: no transfer runs from here
	s.logger.Printf("module %q: connection established for %s", mod.Name, remoteAddr)
	return nil
}

func (s *Server) authenticate(srv *negotiate.LegacyDaemonServer, mod rsyncconfig.Module, host string) error {
	challenge := daemonauth.GenerateChallenge(host, time.Now(), s.pid)
	if err := srv.WriteAuthRequired(challenge); err != nil {
		return err
	}
	line, err := srv.ReadModuleRequest() // the auth response line reuses the same reader
	if err != nil {
		return err
	}
	user, response, ok := splitAuthResponse(line)
	if !ok {
		return &rsyncerr.AuthFailed{Reason: "malformed response"}
	}
	secrets, err := daemonauth.ParseSecretsFile(mod.SecretsFile)
	if err != nil {
		return err
	}
	password, ok := secrets[user]
	if !ok {
		return &rsyncerr.AuthFailed{Reason: "unknown user"}
	}
	valid, err := daemonauth.VerifyResponse(daemonauth.DigestMD5, password, challenge, response)
	if err != nil {
		return err
	}
	if !valid {
		return &rsyncerr.AuthFailed{Reason: "digest mismatch"}
	}
	if len(mod.AuthUsers) > 0 && !contains(mod.AuthUsers, user) {
		return &rsyncerr.AuthFailed{Reason: "user not authorized for module"}
	}
	return nil
}

func splitAuthResponse(line string) (user, response string, ok bool) {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			return line[:i], line[i+1:], true
		}
	}
	return "", "", false
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func hostRules(mod rsyncconfig.Module) []daemonauth.HostRule {
	var rules []daemonauth.HostRule
	for _, p := range mod.HostsDeny {
		rules = append(rules, daemonauth.HostRule{Pattern: p, Allow: false})
	}
	for _, p := range mod.HostsAllow {
		rules = append(rules, daemonauth.HostRule{Pattern: p, Allow: true})
	}
	return rules
}

func moduleFilterSet(mod rsyncconfig.Module) *rsyncfilter.FilterSet {
	var rules []*rsyncfilter.FilterRule
	for _, opt := range mod.RefuseOptions {
		r, err := rsyncfilter.ParseRule("- " + opt)
		if err != nil {
			continue
		}
		rules = append(rules, r)
	}
	return rsyncfilter.NewFilterSet(rules)
}
