// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package agent implements the Enforcement Agent (spec.md §4.2): the
// privileged, long-running process that owns the four enforcement
// surfaces and the crash-safe mirror of what is currently applied.
package agent

import (
	"context"
	"os/exec"
	"sort"
	"sync"
	"time"

	"grimm.is/focusshield/internal/agent/browser"
	"grimm.is/focusshield/internal/agent/connflush"
	"grimm.is/focusshield/internal/agent/hosttable"
	"grimm.is/focusshield/internal/agent/pf"
	"grimm.is/focusshield/internal/agent/resolver"
	"grimm.is/focusshield/internal/logging"
)

// SweepPeriod bounds the expiry sweep (spec.md §4.2: "period ≤ 30s").
const SweepPeriod = 30 * time.Second

// Config bundles the filesystem and network locations the agent's
// enforcement surfaces need.
type Config struct {
	MirrorPath   string
	HostsPath    string
	PFRulesPath  string
	PFConfPath   string
	ResolverAddr string
}

// Agent owns the four enforcement surfaces and the mutation lock that
// serializes every mutating operation (spec.md §5 Shared-resource
// policy).
type Agent struct {
	mu sync.Mutex

	mirror   *Mirror
	hosts    *hosttable.Table
	anchor   *pf.Anchor
	flusher  *connflush.Flusher
	closer   *browser.Closer
	resolver *resolver.Resolver
	logger   *logging.Logger

	state      stateBox
	prevActive map[string]bool
}

// New constructs an Agent. It does not yet touch any enforcement surface;
// call Start to do that.
func New(cfg Config, logger *logging.Logger) (*Agent, error) {
	mirror, err := LoadMirror(cfg.MirrorPath)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		mirror:   mirror,
		hosts:    hosttable.New(cfg.HostsPath, logger),
		anchor:   pf.New(cfg.PFRulesPath, cfg.PFConfPath, logger),
		flusher:  connflush.New(logger),
		closer:   browser.New(logger),
		resolver: resolver.New(cfg.ResolverAddr, logger),
		logger:   logger,
	}
	a.state.Store(StateInitializing)
	return a, nil
}

// Start restores persisted enforcement before accepting IPC (spec.md §4.2
// Recovery, Invariant 5): on start, if shield was on, the agent reapplies
// surfaces 1+2 before it begins accepting requests.
func (a *Agent) Start(ctx context.Context) error {
	a.state.Store(StateRestoring)

	if err := a.anchor.EnsureReference(); err != nil {
		return err
	}

	applied := a.mirror.Applied()
	if a.mirror.Shield() {
		if err := a.reapply(applied); err != nil {
			return err
		}
	} else {
		if err := a.clearSurfaces(); err != nil {
			return err
		}
	}

	a.prevActive = a.mirror.ActiveAllowanceDomains(time.Now())
	a.state.Store(StateServing)
	if a.logger != nil {
		a.logger.Info("agent restored and serving", "applied_count", len(applied), "shield", a.mirror.Shield())
	}
	return nil
}

// State reports the agent's current lifecycle state.
func (a *Agent) State() State { return a.state.Load() }

// Drain waits for any in-flight mutation (by taking the mutation lock) and
// transitions to draining: no further IPC is accepted by callers that
// check State. The mirror needs no final write here, since every mutation
// already persists it.
func (a *Agent) Drain() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Store(StateDraining)
}

// reapply writes the host table and the pf anchor (static rules plus any
// tracked dynamic rules) for domains (surfaces 1+2) while the shield is
// on, and clears both surfaces while it is off, without touching surfaces
// 3/4. Callers hold a.mu or are the single-threaded Start path.
func (a *Agent) reapply(domains []string) error {
	if !a.mirror.Shield() {
		return a.clearSurfaces()
	}
	if err := a.hosts.Apply(domains); err != nil {
		return err
	}
	return a.anchor.ApplyStatic()
}

func (a *Agent) clearSurfaces() error {
	if err := a.hosts.Clear(); err != nil {
		return err
	}
	return a.anchor.Clear()
}

// Status is the `status` IPC op's result (spec.md §4.2).
type Status struct {
	Running          bool `json:"running"`
	Shield           bool `json:"shield"`
	BlockedCount     int  `json:"blocked_count"`
	ActiveAllowances int  `json:"active_allowances"`
}

// Status reports the agent's current state.
func (a *Agent) Status() Status {
	now := time.Now()
	return Status{
		Running:          a.State() == StateServing,
		Shield:           a.mirror.Shield(),
		BlockedCount:     len(a.mirror.Applied()),
		ActiveAllowances: a.mirror.AllowanceCount(now),
	}
}

// SetBlocklist is the `blocklist` op: replace the mirrored effective set
// and reapply surfaces 1+2 (spec.md §4.2).
func (a *Agent) SetBlocklist(domains []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sorted := append([]string{}, domains...)
	sort.Strings(sorted)
	if err := a.mirror.SetApplied(sorted); err != nil {
		return err
	}
	return a.reapply(sorted)
}

// Enable is the `enable` op: turn the shield on and populate surfaces
// 1+2.
func (a *Agent) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.mirror.SetShield(true); err != nil {
		return err
	}
	return a.reapply(a.mirror.Applied())
}

// Disable is the `disable` op: turn the shield off and clear surfaces
// 1+2 (policy itself is retained, per the Shield glossary entry).
func (a *Agent) Disable() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.mirror.SetShield(false); err != nil {
		return err
	}
	return a.clearSurfaces()
}

// Clear is the `clear` op: shield off, all allowances dropped, surfaces
// cleared.
func (a *Agent) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.mirror.Clear(); err != nil {
		return err
	}
	return a.clearSurfaces()
}

// Grant is the `grant` op: record the allowance for the agent's own
// expiry ticker, remove it from the enforced set, drop its dynamic
// anchor rules, and reapply (spec.md §4.2).
func (a *Agent) Grant(domain string, minutes int, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	expiresAt := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := a.mirror.SetAllowance(domain, expiresAt); err != nil {
		return err
	}
	if err := a.mirror.RemoveApplied(domain); err != nil {
		return err
	}
	if err := a.anchor.RemoveDynamic(domain); err != nil {
		if a.logger != nil {
			a.logger.Warn("failed to remove dynamic anchor rule on grant", "domain", domain, "error", err)
		}
	}
	return a.reapply(a.mirror.Applied())
}

// Revoke is the `revoke` op: the full aggressive cascade — resolve,
// dynamic anchor rule, reload, kill live flows, close tabs, flush
// resolver cache, reapply (spec.md §4.2).
func (a *Agent) Revoke(domain string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enforceCascade(domain)
}

// EnforceBlock is the `enforce-block` op: same cascade as Revoke, for a
// freshly added blocklist entry.
func (a *Agent) EnforceBlock(domain string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enforceCascade(domain)
}

// enforceCascade is the shared tail of revoke/enforce-block and the
// expiry sweep. Callers must hold a.mu.
func (a *Agent) enforceCascade(domain string) error {
	if err := a.mirror.ClearAllowance(domain); err != nil {
		return err
	}
	if err := a.mirror.AddApplied(domain); err != nil {
		return err
	}

	ips := a.resolver.ResolveIPs(domain)
	if len(ips) > 0 {
		if err := a.anchor.AddDynamic(domain, ips); err != nil {
			if a.logger != nil {
				a.logger.Warn("failed to add dynamic anchor rule", "domain", domain, "error", err)
			}
		}
		a.flusher.KillByIPs(ips)
	}
	a.closer.CloseTabs(domain)
	a.flushResolverCache()

	return a.reapply(a.mirror.Applied())
}

// FlushDNS is the `flush-dns` op.
func (a *Agent) FlushDNS() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushResolverCache()
	return nil
}

// flushResolverCache invalidates the OS name-resolution cache
// (best-effort, spec.md §7 BestEffortFailure).
func (a *Agent) flushResolverCache() {
	if err := exec.Command("dscacheutil", "-flushcache").Run(); err != nil {
		if a.logger != nil {
			a.logger.Debug("dscacheutil flush failed (likely not macOS)", "error", err)
		}
	}
	if err := exec.Command("killall", "-HUP", "mDNSResponder").Run(); err != nil {
		if a.logger != nil {
			a.logger.Debug("mDNSResponder restart failed (likely not macOS)", "error", err)
		}
	}
}

// RunExpirySweep blocks, sweeping at SweepPeriod until ctx is canceled
// (spec.md §4.2 Expiry sweep). The swept set is the exact difference of
// prev_active_set \ curr_active_set, giving at-least-once revoke
// semantics per expiry (spec.md §8 property 7).
func (a *Agent) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(SweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepOnce()
		}
	}
}

func (a *Agent) sweepOnce() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	curr := a.mirror.ActiveAllowanceDomains(now)

	for domain := range a.prevActive {
		if !curr[domain] {
			if err := a.enforceCascade(domain); err != nil && a.logger != nil {
				a.logger.Error("expiry sweep cascade failed", "domain", domain, "error", err)
			} else if a.logger != nil {
				a.logger.Info("allowance expired, re-enforced", "domain", domain)
			}
		}
	}
	a.prevActive = curr
}
