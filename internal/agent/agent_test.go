// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package agent

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirePFCtl skips pf-backed tests on hosts without pfctl (i.e. not
// BSD/macOS) — the anchor surface is exercised in CI on macOS runners
// only, matching the teacher's platform-gated integration tests.
func requirePFCtl(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("pfctl"); err != nil {
		t.Skip("pfctl not available on this host")
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	hostsPath := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(hostsPath, []byte("127.0.0.1 localhost\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pf.conf"), []byte("# base\n"), 0644))
	return Config{
		MirrorPath:  filepath.Join(dir, "mirror.yaml"),
		HostsPath:   hostsPath,
		PFRulesPath: filepath.Join(dir, "focusshield.rules"),
		PFConfPath:  filepath.Join(dir, "pf.conf"),
	}
}

func TestStartRestoresBeforeServing(t *testing.T) {
	requirePFCtl(t)
	cfg := testConfig(t)

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.mirror.SetShield(true))
	require.NoError(t, a.mirror.SetApplied([]string{"twitter.com"}))

	assert.Equal(t, StateInitializing, a.State())
	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, StateServing, a.State())

	region, err := a.hosts.Region()
	require.NoError(t, err)
	assert.Contains(t, region, "twitter.com")
}

func TestGrantRemovesFromAppliedSet(t *testing.T) {
	requirePFCtl(t)
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.mirror.SetShield(true))
	require.NoError(t, a.SetBlocklist([]string{"twitter.com", "reddit.com"}))

	require.NoError(t, a.Grant("twitter.com", 5, "homework"))

	region, err := a.hosts.Region()
	require.NoError(t, err)
	assert.NotContains(t, region, "twitter.com")
	assert.Contains(t, region, "reddit.com")
}

func TestExpirySweepReEnforcesExpiredAllowance(t *testing.T) {
	requirePFCtl(t)
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.mirror.SetShield(true))
	require.NoError(t, a.SetBlocklist([]string{"twitter.com"}))
	require.NoError(t, a.Grant("twitter.com", 1, "test"))
	require.NoError(t, a.mirror.SetAllowance("twitter.com", time.Now().Add(-time.Second)))

	a.prevActive = map[string]bool{"twitter.com": true}
	a.sweepOnce()

	region, err := a.hosts.Region()
	require.NoError(t, err)
	assert.Contains(t, region, "twitter.com")
}

func TestStatusReportsBlockedCount(t *testing.T) {
	requirePFCtl(t)
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.SetBlocklist([]string{"a.example", "b.example"}))

	st := a.Status()
	assert.Equal(t, 2, st.BlockedCount)
}
