// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/focusshield/internal/agent"
	"grimm.is/focusshield/internal/agent/ipc"
	"grimm.is/focusshield/internal/policy"
)

func requirePFCtl(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("pfctl"); err != nil {
		t.Skip("pfctl not available on this host")
	}
}

func newTestServer(t *testing.T) *Server {
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

	sockPath := filepath.Join(dir, "agent.sock")
	ipcSrv := ipc.NewServer(sockPath, a, nil)
	require.NoError(t, ipcSrv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	go ipcSrv.Serve(ctx)
	t.Cleanup(cancel)
	time.Sleep(30 * time.Millisecond)

	store, err := policy.Load(filepath.Join(dir, "policy.yaml"), nil, []policy.Category{policy.CategorySocial})
	require.NoError(t, err)

	srv, err := New(Options{
		Store:     store,
		AgentSock: sockPath,
		TokenPath: filepath.Join(dir, "token"),
		AuditPath: filepath.Join(dir, "audit.log"),
	})
	require.NoError(t, err)
	require.NoError(t, srv.Startup())
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"shield":true`)
}

func TestBlockAndCheck(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/block", map[string]string{"domain": "example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/check/example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"blocked":true`)
}

func TestGrantOutOfRangeRejected(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/api/block", map[string]string{"domain": "example.com"})

	rec := doJSON(t, srv, http.MethodPost, "/api/grant", map[string]any{"domain": "example.com", "minutes": 120, "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHardLockoutVetoesGrantOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/api/block", map[string]string{"domain": "example.com"})
	_, err := srv.store.AddLock("example.com", time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/api/grant", map[string]any{"domain": "example.com", "minutes": 5, "reason": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHardLockoutVetoesUnblockOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/api/block", map[string]string{"domain": "example.com"})
	_, err := srv.store.AddLock("example.com", time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodDelete, "/api/block/example.com", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestToolSurfaceRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/tool", map[string]string{"name": "status"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/tool?token="+srv.token, strings.NewReader(`{"name":"status"}`))
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "focusshield_")
}
