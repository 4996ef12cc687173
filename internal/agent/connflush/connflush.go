// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package connflush tears down live TCP/UDP state entries for resolved
// IPs so that browsers and native apps holding keep-alive connections
// observe a block immediately (spec.md §4.2 surface 3). This is
// best-effort: failures are logged and swallowed, never surfaced as a
// request failure (spec.md §7 BestEffortFailure).
package connflush

import (
	"os/exec"

	"grimm.is/focusshield/internal/errors"
	"grimm.is/focusshield/internal/logging"
)

// Flusher kills pf state table entries by destination address.
type Flusher struct {
	logger    *logging.Logger
	pfctlPath string
}

// New returns a Flusher.
func New(logger *logging.Logger) *Flusher {
	pfctl := "pfctl"
	if p, err := exec.LookPath("pfctl"); err == nil {
		pfctl = p
	}
	return &Flusher{logger: logger, pfctlPath: pfctl}
}

// KillByIP tears down every pf state entry whose destination matches ip.
// Errors are logged at Warn and returned wrapped as KindBestEffort so
// callers can choose to log-and-continue without inspecting the message.
func (f *Flusher) KillByIP(ip string) error {
	cmd := exec.Command(f.pfctlPath, "-k", ip)
	out, err := cmd.CombinedOutput()
	if err != nil {
		wrapped := errors.Attr(errors.Wrapf(err, errors.KindBestEffort, "pfctl -k %s", ip), "output", string(out))
		if f.logger != nil {
			f.logger.Warn("connection flush failed", "ip", ip, "error", err)
		}
		return wrapped
	}
	if f.logger != nil {
		f.logger.Info("flushed live connections", "ip", ip)
	}
	return nil
}

// KillByIPs flushes every ip, not aborting on failures; each failure is
// logged by KillByIP and otherwise discarded.
func (f *Flusher) KillByIPs(ips []string) {
	for _, ip := range ips {
		_ = f.KillByIP(ip)
	}
}
