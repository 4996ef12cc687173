// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureReferenceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "pf.conf")
	require.NoError(t, os.WriteFile(confPath, []byte("# base config\n"), 0644))

	a := New(filepath.Join(dir, "focusshield.rules"), confPath, nil)
	require.NoError(t, a.EnsureReference())
	require.NoError(t, a.EnsureReference())

	data, err := os.ReadFile(confPath)
	require.NoError(t, err)
	count := 0
	for i := 0; i+len(`anchor "focusshield"`) <= len(data); i++ {
		if string(data[i:i+len(`anchor "focusshield"`)]) == `anchor "focusshield"` {
			count++
		}
	}
	// One append writes the `anchor` line and the `load anchor` line, and
	// both contain the needle; a second append would make this 4.
	assert.Equal(t, 2, count)
}

func TestRenderRulesTagsDynamicDomain(t *testing.T) {
	a := New("/nonexistent/focusshield.rules", "/nonexistent/pf.conf", nil)
	a.includeStatic = true
	a.dynamicIPs["twitter.com"] = []string{"1.2.3.4"}

	rendered := a.renderRules()
	assert.Contains(t, rendered, "# twitter.com")
	assert.Contains(t, rendered, "1.2.3.4")
}
