// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import "time"

// MaxDelaySeconds caps the progressive-friction wait (spec.md §4.1).
const MaxDelaySeconds = 160

// SessionWindow is the idle-rolling free-passage window after a delay is
// passed (spec.md §4.1).
const SessionWindow = 15 * time.Minute

// RequiredDelaySeconds returns the wait, in seconds, for the nth access
// today to a delayed domain: min(10*2^n, 160).
func RequiredDelaySeconds(accessCountToday int) int {
	n := accessCountToday
	if n < 0 {
		n = 0
	}
	secs := 10
	for i := 0; i < n; i++ {
		secs *= 2
		if secs >= MaxDelaySeconds {
			return MaxDelaySeconds
		}
	}
	if secs > MaxDelaySeconds {
		secs = MaxDelaySeconds
	}
	return secs
}

// withinSessionWindow reports whether the last access is still within the
// idle-rolling free-passage window.
func withinSessionWindow(lastAccess, now time.Time) bool {
	if lastAccess.IsZero() {
		return false
	}
	return now.Sub(lastAccess) < SessionWindow
}

// localDateString renders t as a YYYY-MM-DD string in local time, used
// to detect the local-midnight reset boundary.
func localDateString(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// resetIfNewDay zeroes the access counter when the session's last reset
// date differs from now's local date.
func resetIfNewDay(s *DelaySession, now time.Time) {
	today := localDateString(now)
	if s.LastResetDate != today {
		s.LastResetDate = today
		s.AccessCountToday = 0
	}
}
