// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppleScriptForKnownBrowsers(t *testing.T) {
	for _, app := range knownBrowsers {
		script := appleScriptFor(app, "youtube.com")
		require.NotEmpty(t, script)
		assert.Contains(t, script, app)
		assert.Contains(t, script, `"youtube.com"`)
	}
}

func TestAppleScriptForEscapesQuotes(t *testing.T) {
	script := appleScriptFor("Safari", `evil".com`)
	assert.NotContains(t, script, `"evil".com"`)
	assert.Contains(t, script, `evil\".com`)
}

func TestAppleScriptForUnknownAppIsEmpty(t *testing.T) {
	assert.Empty(t, appleScriptFor("Internet Explorer", "example.com"))
}

func TestCloseTabsNoOpWithoutOsascript(t *testing.T) {
	c := &Closer{osascriptPath: ""}
	// Must not panic and must not attempt exec.Command with an empty path.
	c.CloseTabs("example.com")
	assert.True(t, strings.HasPrefix("example.com", "example"))
}
