// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hosttable owns the sentinel-delimited region of the OS hosts
// file (spec.md §4.2 surface 1, §6 Host-override region). Mutation is
// always strip-then-rewrite: the region is never edited in place.
package hosttable

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"grimm.is/focusshield/internal/errors"
	"grimm.is/focusshield/internal/logging"
)

const (
	beginSentinel = "# BEGIN FOCUS SHIELD BLOCK"
	endSentinel   = "# END FOCUS SHIELD BLOCK"
)

// serviceVariants is the fixed, closed table of service-specific host-name
// variants added alongside the bare domain and its www. form (spec.md §4.2
// surface 1).
var serviceVariants = map[string][]string{
	"youtube.com":  {"m.", "music.", "youtu.be", "youtube-nocookie.com"},
	"twitter.com":  {"mobile."},
	"x.com":        {"mobile."},
	"reddit.com":   {"old.", "new.", "i."},
	"facebook.com": {"m.", "mobile.", "touch.", "web."},
	"instagram.com": {"m.", "i.", "graph."},
	"tiktok.com":   {"m.", "www.", "vm."},
}

// Table owns the hosts file at path.
type Table struct {
	path   string
	logger *logging.Logger
}

// New returns a Table bound to path (typically /etc/hosts).
func New(path string, logger *logging.Logger) *Table {
	return &Table{path: path, logger: logger}
}

// expandNames returns every host name that must be emitted for domain:
// the bare domain, its www. variant (unless already a www. name, per
// Canonicalize upstream), and any closed-table service variants. A
// youtu.be-style variant that replaces rather than prefixes the domain is
// handled specially: entries that already contain a dot-separated TLD
// swap are passed through verbatim.
func expandNames(domain string) []string {
	names := map[string]bool{domain: true, "www." + domain: true}

	if extra, ok := serviceVariants[domain]; ok {
		for _, v := range extra {
			if strings.Contains(v, ".") && !strings.HasSuffix(v, ".") {
				// a full replacement host name, e.g. "youtu.be",
				// "youtube-nocookie.com", not a prefix.
				names[v] = true
				continue
			}
			names[v+domain] = true
		}
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// renderRegion builds the sentinel-bracketed block for the given
// effective domain set. Each entry is rendered as two lines, IPv4 then
// IPv6 null routes (spec.md §6 Host-override region).
func renderRegion(domains []string) string {
	if len(domains) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(beginSentinel + "\n")
	for _, d := range domains {
		for _, name := range expandNames(d) {
			fmt.Fprintf(&b, "0.0.0.0 %s\n", name)
			fmt.Fprintf(&b, ":: %s\n", name)
		}
	}
	b.WriteString(endSentinel + "\n")
	return b.String()
}

// stripRegion removes any existing sentinel-bracketed block from content,
// preserving everything else byte-for-byte (spec.md §8 property 6,
// Sentinel safety).
func stripRegion(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	inRegion := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case trimmed == beginSentinel:
			inRegion = true
			continue
		case trimmed == endSentinel:
			inRegion = false
			continue
		case inRegion:
			continue
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Apply rewrites the sentinel region to reflect domains exactly: empty
// domains clears the region entirely (spec.md Invariant 1, shield=false
// case). The write is temp-file + fsync + rename, guarded by an advisory
// flock so concurrent agent instances cannot interleave (spec.md
// Invariant 4, §9 Resource scoping).
func (t *Table) Apply(domains []string) error {
	lockPath := t.path + ".focusshield.lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return errors.Wrapf(err, errors.KindSurfaceApply, "open lock file %s", lockPath)
	}
	defer lf.Close()
	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX); err != nil {
		return errors.Wrapf(err, errors.KindSurfaceApply, "flock %s", lockPath)
	}
	defer unix.Flock(int(lf.Fd()), unix.LOCK_UN)

	current, err := os.ReadFile(t.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.KindSurfaceApply, "read hosts file %s", t.path)
	}

	stripped := stripRegion(string(current))
	stripped = strings.TrimRight(stripped, "\n")

	region := renderRegion(domains)
	var desired string
	if region == "" {
		desired = stripped + "\n"
	} else {
		desired = stripped + "\n\n" + region
	}

	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, ".hosts-focusshield-*")
	if err != nil {
		return errors.Wrapf(err, errors.KindSurfaceApply, "create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(desired); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.KindSurfaceApply, "write temp hosts file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.KindSurfaceApply, "fsync temp hosts file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.KindSurfaceApply, "close temp hosts file")
	}
	info, err := os.Stat(t.path)
	if err == nil {
		os.Chmod(tmpPath, info.Mode())
	} else {
		os.Chmod(tmpPath, 0644)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, errors.KindSurfaceApply, "rename %s to %s", tmpPath, t.path)
	}

	if t.logger != nil {
		t.logger.Info("applied host-table region", "domains", len(domains))
	}
	return nil
}

// Clear removes the sentinel region, leaving the rest of the file intact.
func (t *Table) Clear() error {
	return t.Apply(nil)
}

// Region reads back the currently applied sentinel-bracketed block, for
// tests and diagnostics.
func (t *Table) Region() (string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	inRegion := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == beginSentinel:
			inRegion = true
			b.WriteString(line + "\n")
		case line == endSentinel:
			b.WriteString(line + "\n")
			inRegion = false
		case inRegion:
			b.WriteString(line + "\n")
		}
	}
	return b.String(), scanner.Err()
}
