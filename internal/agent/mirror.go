// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package agent

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"grimm.is/focusshield/internal/errors"
)

// mirrorDocument is the agent's own persisted view of policy (spec.md §6:
// "one for the agent's mirror"). It is deliberately smaller than the
// control server's policy.Document: the agent is handed the already
// effective set by the `blocklist` op (spec.md §9 Open Questions — the
// agent never re-derives effective set from a raw blocklist), and tracks
// allowances only for its own independent expiry ticker.
type mirrorDocument struct {
	Shield     bool                 `yaml:"shield"`
	Applied    []string             `yaml:"applied"`    // the domain set currently enforced
	Allowances map[string]time.Time `yaml:"allowances"` // domain -> expires_at, agent-local bookkeeping
}

// Mirror is the agent's crash-safe record of what it is currently
// enforcing (spec.md Invariant 4, Invariant 5).
type Mirror struct {
	mu   sync.Mutex
	path string
	doc  mirrorDocument
}

// LoadMirror reads the persisted mirror, or initializes an empty one.
func LoadMirror(path string) (*Mirror, error) {
	m := &Mirror{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.KindInternal, "read agent mirror %s", path)
		}
		m.doc = mirrorDocument{Allowances: map[string]time.Time{}}
		return m, m.saveLocked()
	}
	var doc mirrorDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "parse agent mirror %s", path)
	}
	if doc.Allowances == nil {
		doc.Allowances = map[string]time.Time{}
	}
	m.doc = doc
	return m, nil
}

func (m *Mirror) saveLocked() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "create state directory %s", dir)
	}
	data, err := yaml.Marshal(&m.doc)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "marshal agent mirror")
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "write temp file %s", tmp)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, errors.KindInternal, "rename %s to %s", tmp, m.path)
	}
	return nil
}

// Shield reports the last persisted shield flag.
func (m *Mirror) Shield() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Shield
}

// SetShield persists the shield flag.
func (m *Mirror) SetShield(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Shield = enabled
	return m.saveLocked()
}

// Applied returns the currently enforced domain set.
func (m *Mirror) Applied() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.doc.Applied...)
}

// SetApplied replaces the enforced domain set wholesale — used by the
// `blocklist` op, which always carries the control server's already
// effective set (spec.md §9 Open Questions).
func (m *Mirror) SetApplied(domains []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Applied = append([]string{}, domains...)
	sort.Strings(m.doc.Applied)
	return m.saveLocked()
}

// RemoveApplied drops domain from the enforced set (used by `grant`).
func (m *Mirror) RemoveApplied(domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.doc.Applied[:0]
	for _, d := range m.doc.Applied {
		if d != domain {
			out = append(out, d)
		}
	}
	m.doc.Applied = out
	return m.saveLocked()
}

// AddApplied adds domain to the enforced set, idempotently (used by
// `revoke` and `enforce-block`).
func (m *Mirror) AddApplied(domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.doc.Applied {
		if d == domain {
			return nil
		}
	}
	m.doc.Applied = append(m.doc.Applied, domain)
	sort.Strings(m.doc.Applied)
	return m.saveLocked()
}

// Clear empties the enforced set and all allowances, and turns the shield
// off (the `clear` op).
func (m *Mirror) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Shield = false
	m.doc.Applied = nil
	m.doc.Allowances = map[string]time.Time{}
	return m.saveLocked()
}

// SetAllowance records domain's expiry for the agent's own ticker.
func (m *Mirror) SetAllowance(domain string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Allowances[domain] = expiresAt
	return m.saveLocked()
}

// ClearAllowance drops domain's tracked expiry (used by `revoke`).
func (m *Mirror) ClearAllowance(domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.doc.Allowances, domain)
	return m.saveLocked()
}

// ActiveAllowanceDomains returns the domains whose tracked allowance has
// not yet expired at now.
func (m *Mirror) ActiveAllowanceDomains(now time.Time) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.doc.Allowances))
	for d, exp := range m.doc.Allowances {
		if now.Before(exp) {
			out[d] = true
		}
	}
	return out
}

// AllowanceCount reports the number of tracked allowances that have not
// yet expired at now, for status reporting.
func (m *Mirror) AllowanceCount(now time.Time) int {
	return len(m.ActiveAllowanceDomains(now))
}
