// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import "time"

// Allowance is a time-bounded exception to blocking for one canonical
// domain (spec.md §3). At most one allowance is active per domain at a
// time; granting a new one replaces any prior record for that domain.
type Allowance struct {
	ID             string    `yaml:"id" json:"id"`
	Domain         string    `yaml:"domain" json:"domain"`
	GrantedAt      time.Time `yaml:"granted_at" json:"granted_at"`
	ExpiresAt      time.Time `yaml:"expires_at" json:"expires_at"`
	Reason         string    `yaml:"reason" json:"reason"`
	GrantedMinutes int       `yaml:"granted_minutes" json:"granted_minutes"`
}

// Active reports whether the allowance still covers its domain at now.
// Expiry is monotonic: once now >= ExpiresAt there is no resurrection.
func (a Allowance) Active(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}

// RemainingMinutes returns the ceiling of the remaining whole minutes, or
// 0 if the allowance has expired.
func (a Allowance) RemainingMinutes(now time.Time) int {
	if !a.Active(now) {
		return 0
	}
	d := a.ExpiresAt.Sub(now)
	mins := int(d / time.Minute)
	if d%time.Minute > 0 {
		mins++
	}
	if mins < 1 {
		mins = 1
	}
	return mins
}

// Lockout is a date-bounded veto on mutating a domain's block/grant state
// (spec.md §3). It is installed out-of-band — direct edit of the
// persisted file, or a privileged maintenance path — never by the public
// control-server API.
type Lockout struct {
	Domain string    `yaml:"domain"`
	Until  time.Time `yaml:"until"`
}

// Active reports whether the lockout is still in effect at now.
func (l Lockout) Active(now time.Time) bool {
	return now.Before(l.Until)
}

// DelaySession tracks progressive-friction bookkeeping for one delayed
// domain (spec.md §4.1). The interception proxy that renders the
// countdown UI is out of scope; the session state itself is part of the
// policy store.
type DelaySession struct {
	Domain           string    `yaml:"domain"`
	AccessCountToday int       `yaml:"access_count_today"`
	LastResetDate    string    `yaml:"last_reset_date"` // YYYY-MM-DD, local time
	LastAccessAt     time.Time `yaml:"last_access_at"`
}

// Document is the single structured file persisted by the policy store:
// one field per entity in spec.md §3, plus the shield flag.
type Document struct {
	Shield        bool                    `yaml:"shield"`
	Blocklist     []string                `yaml:"blocklist"`
	Delayed       []string                `yaml:"delayed"`
	Allowances    map[string]Allowance    `yaml:"allowances"`     // keyed by canonical domain
	Locks         map[string]Lockout      `yaml:"locks"`          // keyed by canonical domain
	DelaySessions map[string]DelaySession `yaml:"delay_sessions"` // keyed by canonical domain
}

func newDocument() Document {
	return Document{
		Shield:        true,
		Blocklist:     []string{},
		Delayed:       []string{},
		Allowances:    map[string]Allowance{},
		Locks:         map[string]Lockout{},
		DelaySessions: map[string]DelaySession{},
	}
}
