// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/focusshield/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	s, err := Load(path, nil, []Category{CategorySocial})
	require.NoError(t, err)
	return s
}

func TestLoadSeedsDefaultsOnFirstRun(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.Shield())
	blocked, err := s.IsBlocked("twitter.com")
	require.NoError(t, err)
	assert.True(t, blocked)
}

// TestReloadDefaultsToDeny covers invariant spec.md §8: reloading the
// persisted document never drops to an unblocked state by default.
func TestReloadDefaultsToDeny(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	s1, err := Load(path, nil, []Category{CategorySocial})
	require.NoError(t, err)
	require.NoError(t, s1.Save())

	s2, err := Load(path, nil, nil)
	require.NoError(t, err)
	blocked, err := s2.IsBlocked("twitter.com")
	require.NoError(t, err)
	assert.True(t, blocked, "blocklist must survive a reload")
	assert.True(t, s2.Shield(), "shield must survive a reload")
}

func TestSubdomainCoverage(t *testing.T) {
	s := newTestStore(t)
	for _, d := range []string{"twitter.com", "m.twitter.com", "api.twitter.com"} {
		blocked, err := s.IsBlocked(d)
		require.NoError(t, err)
		assert.True(t, blocked, d)
	}
	blocked, err := s.IsBlocked("nottwitter.com")
	require.NoError(t, err)
	assert.False(t, blocked)
}

// TestAllowanceDominance covers spec.md §8: an active allowance on a
// domain takes precedence over its blocklist membership, including
// subdomains of the allowed domain.
func TestAllowanceDominance(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Grant("twitter.com", 5, "homework")
	require.NoError(t, err)

	blocked, err := s.IsBlocked("twitter.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, err = s.IsBlocked("m.twitter.com")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestGrantRejectsOutOfRangeMinutes(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Grant("twitter.com", 0, "x")
	require.Error(t, err)
	_, err = s.Grant("twitter.com", 31, "x")
	require.Error(t, err)
	_, err = s.Grant("twitter.com", 30, "x")
	require.NoError(t, err)
}

// TestAllowanceExpiryIsMonotonic covers spec.md §8: once an allowance
// expires it never re-activates.
func TestAllowanceExpiryIsMonotonic(t *testing.T) {
	a := Allowance{Domain: "twitter.com", ExpiresAt: time.Now().Add(-time.Second)}
	assert.False(t, a.Active(time.Now()))
	assert.False(t, a.Active(time.Now().Add(time.Hour)))
}

// TestHardLockoutVetoesGrant covers spec.md §8: a hard lockout overrides
// any attempt to grant an allowance on the same or a covered domain.
func TestHardLockoutVetoesGrant(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddLock("twitter.com", time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	_, err = s.Grant("twitter.com", 5, "please")
	require.Error(t, err)
	assert.Equal(t, errors.KindLockout, errors.GetKind(err))

	_, err = s.Grant("m.twitter.com", 5, "please")
	require.Error(t, err, "lockout must cover subdomains")
}

// TestHardLockoutVetoesRemoveBlock covers spec.md §8: a hard lockout
// blocks removal of the domain from the blocklist too.
func TestHardLockoutVetoesRemoveBlock(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddBlock("gamblingsite.example")
	require.NoError(t, err)
	_, err = s.AddLock("gamblingsite.example", time.Now().Add(time.Hour))
	require.NoError(t, err)

	err = s.RemoveBlock("gamblingsite.example")
	require.Error(t, err)
}

func TestLockoutExpires(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddLock("twitter.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	locks, err := s.ActiveLocks()
	require.NoError(t, err)
	assert.Empty(t, locks, "expired lock must be pruned")
}

// TestBlockAddIsIdempotent covers spec.md §8 idempotence: re-adding an
// already-blocked domain does not duplicate it or error.
func TestBlockAddIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddBlock("example.com")
	require.NoError(t, err)
	_, err = s.AddBlock("example.com")
	require.NoError(t, err)

	doc := s.Snapshot()
	count := 0
	for _, d := range doc.Blocklist {
		if d == "example.com" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEffectiveBlockSetExcludesAllowed(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddBlock("example.com")
	require.NoError(t, err)
	_, err = s.Grant("example.com", 5, "x")
	require.NoError(t, err)

	set := s.EffectiveBlockSet()
	for _, d := range set {
		assert.NotEqual(t, "example.com", d)
	}
}

func TestRevokeRestoresBlock(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddBlock("example.com")
	require.NoError(t, err)
	_, err = s.Grant("example.com", 5, "x")
	require.NoError(t, err)
	require.NoError(t, s.Revoke("example.com"))

	blocked, err := s.IsBlocked("example.com")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestRemainingMinutesCeiling(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Grant("example.com", 1, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, a.GrantedMinutes)

	mins, err := s.RemainingMinutes("example.com")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mins, 1)
	assert.LessOrEqual(t, mins, 1)
}

// TestDelayProgressionDoublesAndCaps covers spec.md §4.1 / §8: repeated
// accesses outside the free-passage window double the wait up to the
// 160s ceiling.
func TestDelayProgressionDoublesAndCaps(t *testing.T) {
	s := newTestStore(t)
	waits := []int{}
	for i := 0; i < 6; i++ {
		wait, within, err := s.RecordDelayAccess("slow.example")
		require.NoError(t, err)
		assert.False(t, within)
		waits = append(waits, wait)
		// force the session window to have elapsed between accesses
		s.mu.Lock()
		sess := s.doc.DelaySessions["slow.example"]
		sess.LastAccessAt = time.Now().Add(-SessionWindow - time.Second)
		s.doc.DelaySessions["slow.example"] = sess
		s.mu.Unlock()
	}
	assert.Equal(t, []int{10, 20, 40, 80, 160, 160}, waits)
}

func TestDelayWithinWindowIsFree(t *testing.T) {
	s := newTestStore(t)
	_, within, err := s.RecordDelayAccess("slow.example")
	require.NoError(t, err)
	assert.False(t, within)

	wait, within, err := s.RecordDelayAccess("slow.example")
	require.NoError(t, err)
	assert.True(t, within)
	assert.Equal(t, 0, wait)
}

func TestClearDisablesShieldAndAllowances(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Grant("example.com", 5, "x")
	require.NoError(t, err)
	require.NoError(t, s.Clear())

	assert.False(t, s.Shield())
	allowances, err := s.ActiveAllowances()
	require.NoError(t, err)
	assert.Empty(t, allowances)
}

func TestSaveIsAtomic(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save())

	s2, err := Load(s.Path(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, s.Shield(), s2.Shield())
}
