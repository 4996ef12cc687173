// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package policy implements the Policy Store (spec.md §4.1): the single
// source of truth for blocked domains, delayed domains, active
// allowances, and hard lockouts, with atomic persistence and expiry
// arithmetic. The control server holds the Store; the enforcement agent
// keeps its own, smaller agent.Mirror in a separate file (server policy
// vs. agent mirror, spec.md §6).
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"grimm.is/focusshield/internal/errors"
	"grimm.is/focusshield/internal/logging"
)

// Store owns one persisted Document behind a single mutation lock. All
// mutation passes through Store methods; there is no ambient singleton
// (design note, spec.md §9).
type Store struct {
	mu     sync.RWMutex
	path   string
	doc    Document
	logger *logging.Logger

	watcher  *fsnotify.Watcher
	watchErr chan error
}

// Load reads the persisted document at path, or initializes it with the
// given default categories if the file does not yet exist (spec.md §4.1
// load()).
func Load(path string, logger *logging.Logger, defaultCategories []Category) (*Store, error) {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}

	s := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.KindInternal, "read policy document %s", path)
		}
		s.doc = newDocument()
		s.doc.Blocklist = DomainsForCategories(defaultCategories)
		sort.Strings(s.doc.Blocklist)
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "parse policy document %s", path)
	}
	if doc.Allowances == nil {
		doc.Allowances = map[string]Allowance{}
	}
	if doc.Locks == nil {
		doc.Locks = map[string]Lockout{}
	}
	if doc.DelaySessions == nil {
		doc.DelaySessions = map[string]DelaySession{}
	}
	s.doc = doc
	return s, nil
}

// saveLocked writes the document via write-temp-then-rename (invariant 4,
// spec.md §3): callers must hold mu for writing.
func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "create state directory %s", dir)
	}

	data, err := yaml.Marshal(&s.doc)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "marshal policy document")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "write temp file %s", tmp)
	}
	f, err := os.Open(tmp)
	if err == nil {
		_ = f.Sync()
		_ = f.Close()
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, errors.KindInternal, "rename %s to %s", tmp, s.path)
	}
	return nil
}

// Save persists the current document.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Snapshot returns a deep-enough copy of the document for callers that
// need to inspect it outside the store's lock (e.g. to render JSON).
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDocument(s.doc)
}

func cloneDocument(d Document) Document {
	out := Document{
		Shield:        d.Shield,
		Blocklist:     append([]string{}, d.Blocklist...),
		Delayed:       append([]string{}, d.Delayed...),
		Allowances:    make(map[string]Allowance, len(d.Allowances)),
		Locks:         make(map[string]Lockout, len(d.Locks)),
		DelaySessions: make(map[string]DelaySession, len(d.DelaySessions)),
	}
	for k, v := range d.Allowances {
		out.Allowances[k] = v
	}
	for k, v := range d.Locks {
		out.Locks[k] = v
	}
	for k, v := range d.DelaySessions {
		out.DelaySessions[k] = v
	}
	return out
}

// Shield reports the global enable flag.
func (s *Store) Shield() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Shield
}

// SetShield toggles the shield flag and persists.
func (s *Store) SetShield(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Shield = enabled
	return s.saveLocked()
}

// Clear turns the shield off and drops all allowances (agent `clear` op,
// spec.md §4.2).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Shield = false
	s.doc.Allowances = map[string]Allowance{}
	return s.saveLocked()
}

// lockFor returns the active lock covering domain, if any, using the same
// subdomain-inclusive matching rule as blocklist entries.
func (s *Store) lockFor(domain string, now time.Time) (Lockout, bool) {
	for _, l := range s.doc.Locks {
		if !l.Active(now) {
			continue
		}
		if Matches(domain, l.Domain) {
			return l, true
		}
	}
	return Lockout{}, false
}

// IsHardLocked reports whether domain is covered by an active hard
// lockout.
func (s *Store) IsHardLocked(domain string) (Lockout, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockFor(domain, time.Now())
}

// AddBlock adds domain to the blocklist (idempotent).
func (s *Store) AddBlock(raw string) (string, error) {
	domain, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doc.Blocklist {
		if d == domain {
			return domain, nil
		}
	}
	s.doc.Blocklist = append(s.doc.Blocklist, domain)
	sort.Strings(s.doc.Blocklist)
	return domain, s.saveLocked()
}

// RemoveBlock removes domain from the blocklist, refusing if hard-locked
// (spec.md §3 Lifecycle, §4.3 DELETE /api/block/{domain}).
func (s *Store) RemoveBlock(raw string) error {
	domain, err := Canonicalize(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, locked := s.lockFor(domain, time.Now()); locked {
		return errors.Attr(errors.Errorf(errors.KindLockout, "%s is hard-locked until %s", domain, l.Until.Format("2006-01-02")), "until", l.Until)
	}

	out := s.doc.Blocklist[:0]
	for _, d := range s.doc.Blocklist {
		if d != domain {
			out = append(out, d)
		}
	}
	s.doc.Blocklist = out
	return s.saveLocked()
}

// AddDelay adds domain to the delay list (idempotent).
func (s *Store) AddDelay(raw string) (string, error) {
	domain, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doc.Delayed {
		if d == domain {
			return domain, nil
		}
	}
	s.doc.Delayed = append(s.doc.Delayed, domain)
	sort.Strings(s.doc.Delayed)
	return domain, s.saveLocked()
}

// RemoveDelay removes domain from the delay list (idempotent).
func (s *Store) RemoveDelay(raw string) error {
	domain, err := Canonicalize(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.doc.Delayed[:0]
	for _, d := range s.doc.Delayed {
		if d != domain {
			out = append(out, d)
		}
	}
	s.doc.Delayed = out
	delete(s.doc.DelaySessions, domain)
	return s.saveLocked()
}

// AddLock installs a hard lockout out-of-band: a direct persisted-file
// edit, or a privileged maintenance path, never the public control-server
// API (spec.md §3 Lifecycle).
func (s *Store) AddLock(raw string, until time.Time) (string, error) {
	domain, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Locks[domain] = Lockout{Domain: domain, Until: until}
	return domain, s.saveLocked()
}

// MinGrantMinutes and MaxGrantMinutes bound the public grant surface
// (spec.md §3 Allowance invariant).
const (
	MinGrantMinutes = 1
	MaxGrantMinutes = 30
)

// Grant records a time-bounded allowance for domain, replacing any prior
// allowance on the same domain (spec.md §4.1 grant()). minutes must be in
// [1, 30] on the public surface; callers needing a privileged bypass use
// GrantUnbounded.
func (s *Store) Grant(raw string, minutes int, reason string) (Allowance, error) {
	if minutes < MinGrantMinutes || minutes > MaxGrantMinutes {
		return Allowance{}, errors.Errorf(errors.KindValidation, "minutes must be between %d and %d, got %d", MinGrantMinutes, MaxGrantMinutes, minutes)
	}
	return s.grant(raw, minutes, reason)
}

// GrantUnbounded records an allowance without the public 30-minute cap,
// for privileged callers only (spec.md §3: "unless the caller holds a
// privileged bypass"). Never wired to the public HTTP or tool surface.
func (s *Store) GrantUnbounded(raw string, minutes int, reason string) (Allowance, error) {
	if minutes < MinGrantMinutes {
		return Allowance{}, errors.Errorf(errors.KindValidation, "minutes must be >= %d, got %d", MinGrantMinutes, minutes)
	}
	return s.grant(raw, minutes, reason)
}

func (s *Store) grant(raw string, minutes int, reason string) (Allowance, error) {
	domain, err := Canonicalize(raw)
	if err != nil {
		return Allowance{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l, locked := s.lockFor(domain, time.Now()); locked {
		return Allowance{}, errors.Attr(errors.Errorf(errors.KindLockout, "%s is hard-locked until %s", domain, l.Until.Format("2006-01-02")), "until", l.Until)
	}

	now := time.Now()
	a := Allowance{
		ID:             uuid.NewString(),
		Domain:         domain,
		GrantedAt:      now,
		ExpiresAt:      now.Add(time.Duration(minutes) * time.Minute),
		Reason:         reason,
		GrantedMinutes: minutes,
	}
	s.doc.Allowances[domain] = a
	if err := s.saveLocked(); err != nil {
		return Allowance{}, err
	}
	return a, nil
}

// Revoke drops the active allowance for domain, if any (idempotent).
func (s *Store) Revoke(raw string) error {
	domain, err := Canonicalize(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Allowances, domain)
	return s.saveLocked()
}

// IsBlocked reports whether query matches any blocklist entry and has no
// active allowance covering it (spec.md §4.1 is_blocked()). It is
// independent of the shield flag, which governs the applied enforcement
// surfaces, not this logical predicate.
func (s *Store) IsBlocked(raw string) (bool, error) {
	query, err := Canonicalize(raw)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := false
	for _, p := range s.doc.Blocklist {
		if Matches(query, p) {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	now := time.Now()
	for _, a := range s.doc.Allowances {
		if !a.Active(now) {
			continue
		}
		if Matches(query, a.Domain) {
			return false, nil
		}
	}
	return true, nil
}

// EffectiveBlockSet returns the blocklist minus domains covered by a
// currently active allowance (spec.md Invariant 1, Glossary). This is the
// set the control server always forwards to the agent — never the raw
// blocklist (spec.md §9 Open Questions).
func (s *Store) EffectiveBlockSet() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveBlockSetLocked(time.Now())
}

func (s *Store) effectiveBlockSetLocked(now time.Time) []string {
	var out []string
	for _, d := range s.doc.Blocklist {
		covered := false
		for _, a := range s.doc.Allowances {
			if a.Active(now) && Matches(d, a.Domain) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// ActiveAllowances returns non-expired allowances, pruning expired ones
// from storage as a side effect (spec.md §4.1).
func (s *Store) ActiveAllowances() ([]Allowance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var active []Allowance
	pruned := false
	for domain, a := range s.doc.Allowances {
		if a.Active(now) {
			active = append(active, a)
		} else {
			delete(s.doc.Allowances, domain)
			pruned = true
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Domain < active[j].Domain })
	if pruned {
		if err := s.saveLocked(); err != nil {
			return active, err
		}
	}
	return active, nil
}

// ActiveLocks returns non-expired hard lockouts, pruning expired ones.
func (s *Store) ActiveLocks() ([]Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var active []Lockout
	pruned := false
	for domain, l := range s.doc.Locks {
		if l.Active(now) {
			active = append(active, l)
		} else {
			delete(s.doc.Locks, domain)
			pruned = true
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Domain < active[j].Domain })
	if pruned {
		if err := s.saveLocked(); err != nil {
			return active, err
		}
	}
	return active, nil
}

// RemainingMinutes returns the ceiling of remaining minutes for any
// active allowance covering domain, or 0 (spec.md §4.1).
func (s *Store) RemainingMinutes(raw string) (int, error) {
	domain, err := Canonicalize(raw)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	for _, a := range s.doc.Allowances {
		if a.Active(now) && Matches(domain, a.Domain) {
			return a.RemainingMinutes(now), nil
		}
	}
	return 0, nil
}

// RecordDelayAccess advances the delay-session bookkeeping for domain and
// returns the required wait in seconds for this access, along with
// whether the caller is still within the prior session's free-passage
// window (spec.md §4.1 Delay progression).
func (s *Store) RecordDelayAccess(raw string) (waitSeconds int, withinWindow bool, err error) {
	domain, cerr := Canonicalize(raw)
	if cerr != nil {
		return 0, false, cerr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	session, ok := s.doc.DelaySessions[domain]
	if !ok {
		session = DelaySession{Domain: domain, LastResetDate: localDateString(now)}
	}
	resetIfNewDay(&session, now)

	if withinSessionWindow(session.LastAccessAt, now) {
		session.LastAccessAt = now
		s.doc.DelaySessions[domain] = session
		return 0, true, s.saveLocked()
	}

	wait := RequiredDelaySeconds(session.AccessCountToday)
	session.AccessCountToday++
	session.LastAccessAt = now
	s.doc.DelaySessions[domain] = session
	return wait, false, s.saveLocked()
}

// Path returns the file this store persists to.
func (s *Store) Path() string { return s.path }

// Watch starts watching the persisted file for out-of-band edits (e.g. a
// hard lockout installed by direct file edit, spec.md §3 Lifecycle). On a
// write event it reloads the document under the mutation lock and calls
// onChange. Watch is best-effort: a failure to start the watcher is
// logged and swallowed, since it is not load-bearing for correctness.
func (s *Store) Watch(onChange func()) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("could not start policy file watcher", "error", err)
		return
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		s.logger.Warn("could not watch policy directory", "error", err)
		w.Close()
		return
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					s.logger.Warn("failed to reload policy document after external edit", "error", err)
					continue
				}
				s.logger.Info("reloaded policy document after external edit", "path", s.path)
				if onChange != nil {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("policy file watcher error", "error", err)
			}
		}
	}()
}

func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if doc.Allowances == nil {
		doc.Allowances = map[string]Allowance{}
	}
	if doc.Locks == nil {
		doc.Locks = map[string]Lockout{}
	}
	if doc.DelaySessions == nil {
		doc.DelaySessions = map[string]DelaySession{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	return nil
}

// StopWatch releases the watcher, if one was started.
func (s *Store) StopWatch() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
