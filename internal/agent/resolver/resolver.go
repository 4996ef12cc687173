// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package resolver is the "external resolver it trusts" of spec.md §4.2
// surface 2: it issues A/AAAA queries against a configured trusted
// resolver, independent of the host's configured resolv.conf, so that a
// revoked domain's current IPs can be turned into dynamic packet-filter
// rules even if the system resolver itself is compromised or blocked.
package resolver

import (
	"time"

	"github.com/miekg/dns"

	"grimm.is/focusshield/internal/logging"
)

// DefaultServer is the trusted upstream used absent an override (spec.md
// §6 Environment toggles).
const DefaultServer = "1.1.1.1:53"

// Timeout bounds each query (spec.md §5 Suspension/blocking: "bounded by
// a short timeout (e.g. 2s)").
const Timeout = 2 * time.Second

// Resolver issues trusted DNS lookups.
type Resolver struct {
	Server string
	logger *logging.Logger
	client *dns.Client
}

// New returns a Resolver against server, or DefaultServer if empty.
func New(server string, logger *logging.Logger) *Resolver {
	if server == "" {
		server = DefaultServer
	}
	return &Resolver{
		Server: server,
		logger: logger,
		client: &dns.Client{Timeout: Timeout},
	}
}

// ResolveIPs returns the A and AAAA records for domain. Failure yields an
// empty, non-error result: per spec.md §5, "failure yields zero IPs and
// logs" — this is a best-effort input to an otherwise best-effort
// enforcement surface, never fatal to the caller.
func (r *Resolver) ResolveIPs(domain string) []string {
	var ips []string
	ips = append(ips, r.query(domain, dns.TypeA)...)
	ips = append(ips, r.query(domain, dns.TypeAAAA)...)
	return ips
}

func (r *Resolver) query(domain string, qtype uint16) []string {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)
	m.RecursionDesired = true

	resp, _, err := r.client.Exchange(m, r.Server)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("trusted resolver query failed", "domain", domain, "qtype", qtype, "error", err)
		}
		return nil
	}

	var ips []string
	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			ips = append(ips, rec.A.String())
		case *dns.AAAA:
			ips = append(ips, rec.AAAA.String())
		}
	}
	return ips
}
