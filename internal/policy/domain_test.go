// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/focusshield/internal/errors"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Twitter.com", "twitter.com"},
		{"www.twitter.com", "twitter.com"},
		{"twitter.com.", "twitter.com"},
		{"WWW.Reddit.COM", "reddit.com"},
		{"m.youtube.com", "m.youtube.com"},
	}
	for _, c := range cases {
		got, err := Canonicalize(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestCanonicalizeRejects(t *testing.T) {
	bad := []string{
		"https://twitter.com",
		"twitter.com/path",
		"no dot here",
		"",
		"twitter.com ",
		"twitter .com",
	}
	for _, in := range bad {
		_, err := Canonicalize(in)
		require.Error(t, err, in)
		assert.Equal(t, errors.KindValidation, errors.GetKind(err), in)
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("twitter.com", "twitter.com"))
	assert.True(t, Matches("m.twitter.com", "twitter.com"))
	assert.True(t, Matches("a.b.twitter.com", "twitter.com"))
	assert.False(t, Matches("nottwitter.com", "twitter.com"))
	assert.False(t, Matches("twitter.com", "m.twitter.com"))
}
