// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/focusshield/internal/agent"
)

func requirePFCtl(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("pfctl"); err != nil {
		t.Skip("pfctl not available on this host")
	}
}

func startTestServer(t *testing.T) (*Client, func()) {
	t.Helper()
	requirePFCtl(t)

	dir := t.TempDir()
	hostsPath := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(hostsPath, []byte("127.0.0.1 localhost\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pf.conf"), []byte("# base\n"), 0644))

	a, err := agent.New(agent.Config{
		MirrorPath:  filepath.Join(dir, "mirror.yaml"),
		HostsPath:   hostsPath,
		PFRulesPath: filepath.Join(dir, "focusshield.rules"),
		PFConfPath:  filepath.Join(dir, "pf.conf"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	srv := NewServer(filepath.Join(dir, "agent.sock"), a, nil)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)

	client := NewClient(filepath.Join(dir, "agent.sock"))
	cleanup := func() {
		cancel()
		srv.Close()
	}
	return client, cleanup
}

func TestStatusRoundTrip(t *testing.T) {
	client, cleanup := startTestServer(t)
	defer cleanup()

	time.Sleep(50 * time.Millisecond)
	resp, err := client.Status()
	require.NoError(t, err)
	require.NotNil(t, resp.Status)
	assert.True(t, resp.Status.Running)
}

func TestBlocklistThenGrant(t *testing.T) {
	client, cleanup := startTestServer(t)
	defer cleanup()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, client.Blocklist([]string{"twitter.com"}))
	require.NoError(t, client.Grant("twitter.com", 5, "test"))
	require.NoError(t, client.Revoke("twitter.com"))
}

func TestUnknownOpErrors(t *testing.T) {
	client, cleanup := startTestServer(t)
	defer cleanup()
	time.Sleep(50 * time.Millisecond)

	_, err := client.call(Request{Op: "bogus"})
	require.Error(t, err)
}
