// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package control

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"strings"

	"grimm.is/focusshield/internal/errors"
)

// LoadOrCreateToken reads the bearer token at path, generating and
// persisting a new 256-bit token with owner-only permission if the file
// does not yet exist (spec.md §4.3 Authentication, §6 "one for the
// bearer token (600 perms)").
func LoadOrCreateToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !os.IsNotExist(err) {
		return "", errors.Wrapf(err, errors.KindInternal, "read token file %s", path)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "generate bearer token")
	}
	token := hex.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "write token file %s", path)
	}
	return token, nil
}

// tokenFromRequest extracts the bearer token from either the
// Authorization header or the token query parameter (spec.md §4.3
// Authentication).
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// requireBearerToken wraps handler with bearer-token authentication for
// the remote tool surface (spec.md §4.3, §6 Optional remote tool
// surface). Loopback REST handlers do not use this middleware.
func (s *Server) requireBearerToken(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokenFromRequest(r) != s.token {
			writeError(w, http.StatusUnauthorized, errors.New(errors.KindPermission, "invalid or missing bearer token"))
			return
		}
		handler(w, r)
	}
}
