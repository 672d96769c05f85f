package daemonauth

import (
	"net"
	"strings"
)

// HostRule is one ordered allow/deny entry in a module's hosts-allow or
// hosts-deny list.
type HostRule struct {
	Pattern string
	Allow   bool
}

// HostGate evaluates a module's ordered host rules against a connecting
// peer, per spec §4.I "Host rules": first match wins, over either the IP
// or (when reverse lookup is enabled) the resolved hostname. A peer whose
// PTR lookup fails cannot match a hostname-only pattern.
type HostGate struct {
	Rules          []HostRule
	ReverseLookup  bool
	LookupAddr     func(string) ([]string, error) // overridable for tests
}

// NewHostGate constructs a gate; if lookupAddr is nil, net.LookupAddr is
// used.
func NewHostGate(rules []HostRule, reverseLookup bool, lookupAddr func(string) ([]string, error)) *HostGate {
	if lookupAddr == nil {
		lookupAddr = net.LookupAddr
	}
	return &HostGate{Rules: rules, ReverseLookup: reverseLookup, LookupAddr: lookupAddr}
}

// Allowed reports whether peerIP (dotted/colon textual form, no port) may
// connect. With no rules configured, every peer is allowed.
func (g *HostGate) Allowed(peerIP string) bool {
	if len(g.Rules) == 0 {
		return true
	}
	var hostnames []string
	if g.ReverseLookup {
		if names, err := g.LookupAddr(peerIP); err == nil {
			hostnames = names
		}
	}
	for _, r := range g.Rules {
		if matchesHost(r.Pattern, peerIP, hostnames) {
			return r.Allow
		}
	}
	return true
}

func matchesHost(pattern, peerIP string, hostnames []string) bool {
	if _, network, err := net.ParseCIDR(pattern); err == nil {
		if ip := net.ParseIP(peerIP); ip != nil && network.Contains(ip) {
			return true
		}
		return false
	}
	if pattern == peerIP {
		return true
	}
	for _, h := range hostnames {
		h = strings.TrimSuffix(h, ".")
		if h == pattern || strings.HasSuffix(h, "."+pattern) {
			return true
		}
	}
	return false
}
