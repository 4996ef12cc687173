// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package hosttable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAndClearRestoresOriginalContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	original := "127.0.0.1 localhost\n::1 localhost\n# a user comment\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))

	tbl := New(path, nil)
	require.NoError(t, tbl.Apply([]string{"twitter.com"}))

	region, err := tbl.Region()
	require.NoError(t, err)
	assert.Contains(t, region, "0.0.0.0 twitter.com")
	assert.Contains(t, region, ":: twitter.com")
	assert.Contains(t, region, "0.0.0.0 www.twitter.com")
	assert.Contains(t, region, "0.0.0.0 mobile.twitter.com")

	require.NoError(t, tbl.Clear())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(after), "127.0.0.1 localhost")
	assert.Contains(t, string(after), "# a user comment")
	assert.NotContains(t, string(after), beginSentinel)
}

func TestApplyIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte("127.0.0.1 localhost\n"), 0644))

	tbl := New(path, nil)
	require.NoError(t, tbl.Apply([]string{"reddit.com", "twitter.com"}))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, tbl.Apply([]string{"reddit.com", "twitter.com"}))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestYoutubeServiceVariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	tbl := New(path, nil)
	require.NoError(t, tbl.Apply([]string{"youtube.com"}))
	region, err := tbl.Region()
	require.NoError(t, err)

	for _, name := range []string{
		"0.0.0.0 youtube.com",
		"0.0.0.0 m.youtube.com",
		"0.0.0.0 music.youtube.com",
		"0.0.0.0 youtu.be",
		"0.0.0.0 youtube-nocookie.com",
	} {
		assert.Contains(t, region, name)
	}
}

func TestEmptyDomainsClearsRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte("127.0.0.1 localhost\n"), 0644))
	tbl := New(path, nil)

	require.NoError(t, tbl.Apply([]string{"twitter.com"}))
	require.NoError(t, tbl.Apply(nil))

	region, err := tbl.Region()
	require.NoError(t, err)
	assert.Empty(t, region)
}
