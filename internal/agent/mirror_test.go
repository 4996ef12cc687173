// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package agent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	m1, err := LoadMirror(path)
	require.NoError(t, err)
	require.NoError(t, m1.SetShield(true))
	require.NoError(t, m1.SetApplied([]string{"twitter.com", "reddit.com"}))
	require.NoError(t, m1.SetAllowance("youtube.com", time.Now().Add(time.Hour)))

	m2, err := LoadMirror(path)
	require.NoError(t, err)
	assert.True(t, m2.Shield())
	assert.Equal(t, []string{"reddit.com", "twitter.com"}, m2.Applied())
	assert.True(t, m2.ActiveAllowanceDomains(time.Now())["youtube.com"])
}

func TestRemoveAndAddApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	m, err := LoadMirror(path)
	require.NoError(t, err)
	require.NoError(t, m.SetApplied([]string{"twitter.com"}))

	require.NoError(t, m.RemoveApplied("twitter.com"))
	assert.Empty(t, m.Applied())

	require.NoError(t, m.AddApplied("twitter.com"))
	require.NoError(t, m.AddApplied("twitter.com"))
	assert.Equal(t, []string{"twitter.com"}, m.Applied())
}

func TestClearDropsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	m, err := LoadMirror(path)
	require.NoError(t, err)
	require.NoError(t, m.SetShield(true))
	require.NoError(t, m.SetApplied([]string{"twitter.com"}))
	require.NoError(t, m.SetAllowance("twitter.com", time.Now().Add(time.Hour)))

	require.NoError(t, m.Clear())
	assert.False(t, m.Shield())
	assert.Empty(t, m.Applied())
	assert.Empty(t, m.ActiveAllowanceDomains(time.Now()))
}
