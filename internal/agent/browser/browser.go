// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package browser drives the scriptable interface of known macOS browsers
// to close open tabs on a blocked domain (spec.md §4.2 surface 4). This
// surface is not load-bearing for correctness — failures are logged and
// ignored (spec.md §7 BestEffortFailure).
package browser

import (
	"fmt"
	"os/exec"
	"strings"

	"grimm.is/focusshield/internal/logging"
)

// knownBrowsers lists the AppleScript application names this package
// knows how to drive. Outside macOS, CloseTabs is a no-op.
var knownBrowsers = []string{"Safari", "Google Chrome"}

// Closer closes browser tabs matching a domain via osascript.
type Closer struct {
	logger      *logging.Logger
	osascriptPath string
}

// New returns a Closer. If osascript is unavailable (non-macOS hosts),
// CloseTabs becomes a logged no-op.
func New(logger *logging.Logger) *Closer {
	path, _ := exec.LookPath("osascript")
	return &Closer{logger: logger, osascriptPath: path}
}

// CloseTabs closes every open tab in every known browser whose URL
// contains domain. Each browser is attempted independently; a failure on
// one does not abort the others.
func (c *Closer) CloseTabs(domain string) {
	if c.osascriptPath == "" {
		if c.logger != nil {
			c.logger.Debug("osascript unavailable, skipping tab close", "domain", domain)
		}
		return
	}
	for _, app := range knownBrowsers {
		if err := c.closeInApp(app, domain); err != nil && c.logger != nil {
			c.logger.Warn("tab close failed", "browser", app, "domain", domain, "error", err)
		}
	}
}

func (c *Closer) closeInApp(app, domain string) error {
	script := appleScriptFor(app, domain)
	cmd := exec.Command(c.osascriptPath, "-e", script)
	_, err := cmd.CombinedOutput()
	return err
}

// appleScriptFor renders the per-application tab-closing script. Safari
// and Chrome expose slightly different scripting dictionaries for
// enumerating tabs across windows.
func appleScriptFor(app, domain string) string {
	escaped := strings.ReplaceAll(domain, `"`, `\"`)
	switch app {
	case "Safari":
		return fmt.Sprintf(`tell application "Safari"
	repeat with w in windows
		repeat with t in tabs of w
			if (URL of t contains "%s") then close t
		end repeat
	end repeat
end tell`, escaped)
	case "Google Chrome":
		return fmt.Sprintf(`tell application "Google Chrome"
	repeat with w in windows
		repeat with t in tabs of w
			if (URL of t contains "%s") then close t
		end repeat
	end repeat
end tell`, escaped)
	default:
		return ""
	}
}
