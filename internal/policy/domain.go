// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"strings"

	"grimm.is/focusshield/internal/errors"
)

// Canonicalize normalizes a caller-supplied domain into its canonical
// form (spec.md §3): lower-case, no scheme, no trailing dot, leading
// "www." stripped. Inputs carrying a scheme prefix, whitespace, or
// missing a dot are rejected as KindValidation.
func Canonicalize(raw string) (string, error) {
	if strings.ContainsAny(raw, " \t\r\n") {
		return "", errors.Errorf(errors.KindValidation, "domain contains whitespace: %q", raw)
	}
	if strings.Contains(raw, "://") {
		return "", errors.Errorf(errors.KindValidation, "domain must not include a scheme: %q", raw)
	}

	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, "www.")

	if d == "" {
		return "", errors.New(errors.KindValidation, "domain is empty")
	}
	if !strings.Contains(d, ".") {
		return "", errors.Errorf(errors.KindValidation, "domain has no dot: %q", raw)
	}
	if strings.ContainsAny(d, "/?#@") {
		return "", errors.Errorf(errors.KindValidation, "domain contains invalid characters: %q", raw)
	}

	return d, nil
}

// Matches reports whether query q is covered by stored pattern p: either
// an exact match, or q is a subdomain of p (spec.md §3 matching rule).
// Both arguments are assumed already canonical.
func Matches(query, pattern string) bool {
	if query == pattern {
		return true
	}
	return strings.HasSuffix(query, "."+pattern)
}
