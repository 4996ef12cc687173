// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package control

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mitchellh/go-ps"

	"grimm.is/focusshield/internal/errors"
	"grimm.is/focusshield/internal/policy"
)

// errorBody is the `{error: string}` shape spec.md §6 HTTP API mandates
// for every error response.
type errorBody struct {
	Error string `json:"error"`
}

// statusForKind maps an error Kind to the HTTP status code the control
// server returns (SPEC_FULL.md §10.2).
func statusForKind(k errors.Kind) int {
	switch k {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindLockout, errors.KindPermission:
		return http.StatusForbidden
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindAgentUnavailable:
		return http.StatusBadGateway
	case errors.KindSurfaceApply:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeErrorForKind(w http.ResponseWriter, err error) {
	writeError(w, statusForKind(errors.GetKind(err)), err)
}

func requestID() string { return uuid.NewString() }

// handleStatus implements `GET /status`.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	allowances, _ := s.store.ActiveAllowances()
	daemonRunning := false
	if procs, err := ps.Processes(); err == nil {
		for _, p := range procs {
			if p.Executable() == "focusshield-agentd" {
				daemonRunning = true
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"running":           true,
		"shield":            s.store.Shield(),
		"daemon_running":    daemonRunning,
		"blocked_count":     len(s.store.EffectiveBlockSet()),
		"active_allowances": len(allowances),
	})
}

// handleListBlocked implements `GET /api/blocked`.
func (s *Server) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"domains": s.store.Snapshot().Blocklist})
}

// handleAddBlock implements `POST /api/block`.
func (s *Server) handleAddBlock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	domain, err := s.store.AddBlock(body.Domain)
	if err != nil {
		writeErrorForKind(w, err)
		return
	}

	if err := s.agent.Blocklist(s.store.EffectiveBlockSet()); err != nil {
		s.audit.record("block", domain, err.Error(), false)
	} else {
		s.audit.record("block", domain, "", true)
	}
	if err := s.agent.EnforceBlock(domain); err != nil && s.logger != nil {
		s.logger.Warn("enforce-block failed", "domain", domain, "error", err)
	}
	s.refreshGauges()
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain})
}

// handleRemoveBlock implements `DELETE /api/block/{domain}`.
func (s *Server) handleRemoveBlock(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	if err := s.store.RemoveBlock(domain); err != nil {
		writeErrorForKind(w, err)
		return
	}
	if err := s.agent.Blocklist(s.store.EffectiveBlockSet()); err != nil && s.logger != nil {
		s.logger.Warn("re-drive after unblock failed", "domain", domain, "error", err)
	}
	s.audit.record("unblock", domain, "", true)
	s.refreshGauges()
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain})
}

// handleCheck implements `GET /api/check/{domain}`.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	blocked, err := s.store.IsBlocked(domain)
	if err != nil {
		writeErrorForKind(w, err)
		return
	}
	minutes, _ := s.store.RemainingMinutes(domain)
	_, locked := s.store.IsHardLocked(domain)

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":            domain,
		"blocked":           blocked,
		"allowance_minutes": minutes,
		"shield_active":     s.store.Shield(),
		"locked":            locked,
	})
}

// handleGrant implements `POST /api/grant`.
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Domain  string `json:"domain"`
		Minutes int    `json:"minutes"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := s.store.Grant(body.Domain, body.Minutes, body.Reason)
	if err != nil {
		writeErrorForKind(w, err)
		return
	}

	if err := s.agent.Grant(a.Domain, body.Minutes, body.Reason); err != nil {
		_ = s.store.Revoke(a.Domain)
		writeErrorForKind(w, err)
		return
	}
	s.metrics.GrantsIssued.Inc()
	s.audit.record("grant", a.Domain, requestID(), true)
	s.refreshGauges()
	writeJSON(w, http.StatusOK, a)
}

// handleRevoke implements `DELETE /api/grant/{domain}`.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	if err := s.store.Revoke(domain); err != nil {
		writeErrorForKind(w, err)
		return
	}
	if err := s.agent.Revoke(domain); err != nil && s.logger != nil {
		s.logger.Warn("agent revoke cascade failed", "domain", domain, "error", err)
	}
	s.metrics.Revocations.Inc()
	s.audit.record("revoke", domain, "", true)
	s.refreshGauges()
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain})
}

// handleAllowances implements `GET /api/allowances`.
func (s *Server) handleAllowances(w http.ResponseWriter, r *http.Request) {
	allowances, err := s.store.ActiveAllowances()
	if err != nil {
		writeErrorForKind(w, err)
		return
	}
	type allowanceView struct {
		policy.Allowance
		RemainingMinutes int `json:"remaining_minutes"`
	}
	now := time.Now()
	views := make([]allowanceView, 0, len(allowances))
	for _, a := range allowances {
		views = append(views, allowanceView{Allowance: a, RemainingMinutes: a.RemainingMinutes(now)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowances": views})
}

// handleShieldEnable implements `POST /api/shield/enable`.
func (s *Server) handleShieldEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SetShield(true); err != nil {
		writeErrorForKind(w, err)
		return
	}
	if err := s.agent.Enable(); err != nil {
		writeErrorForKind(w, err)
		return
	}
	s.audit.record("shield_enable", "", "", true)
	writeJSON(w, http.StatusOK, map[string]any{"shield": true})
}

// handleShieldDisable implements `POST /api/shield/disable`.
func (s *Server) handleShieldDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SetShield(false); err != nil {
		writeErrorForKind(w, err)
		return
	}
	if err := s.agent.Disable(); err != nil && s.logger != nil {
		s.logger.Warn("agent disable failed", "error", err)
	}
	s.audit.record("shield_disable", "", "", true)
	writeJSON(w, http.StatusOK, map[string]any{"shield": false})
}

// handleListDelayed implements `GET /api/delayed`.
func (s *Server) handleListDelayed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"domains": s.store.Snapshot().Delayed})
}

// handleAddDelay implements `POST /api/delay`.
func (s *Server) handleAddDelay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	domain, err := s.store.AddDelay(body.Domain)
	if err != nil {
		writeErrorForKind(w, err)
		return
	}
	s.audit.record("delay_add", domain, "", true)
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain})
}

// handleRemoveDelay implements `DELETE /api/delay/{domain}`.
func (s *Server) handleRemoveDelay(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	if err := s.store.RemoveDelay(domain); err != nil {
		writeErrorForKind(w, err)
		return
	}
	s.audit.record("delay_remove", domain, "", true)
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain})
}

// handleListLocks implements `GET /api/locks`.
func (s *Server) handleListLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := s.store.ActiveLocks()
	if err != nil {
		writeErrorForKind(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locks": locks})
}

// handleAddLock implements `POST /api/lock`. This is an internal
// maintenance path, not part of spec.md §6's public remote tool surface —
// hard lockouts are installed out-of-band (spec.md §3 Lifecycle) and this
// loopback-only endpoint is the privileged escape hatch for doing so
// without a direct file edit.
func (s *Server) handleAddLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Domain string    `json:"domain"`
		Until  policyTime `json:"until"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	domain, err := s.store.AddLock(body.Domain, body.Until.Time)
	if err != nil {
		writeErrorForKind(w, err)
		return
	}
	s.audit.record("lock_add", domain, body.Until.Time.String(), true)
	s.refreshGauges()
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain, "until": body.Until})
}

// handleRemoveLock implements `DELETE /api/lock/{domain}`. Per spec.md
// §3, a lockout "cannot itself be lifted by the control API while still
// in effect — only by direct edit of the persisted file"; this handler
// only succeeds once the lockout has already expired and is pending
// prune.
func (s *Server) handleRemoveLock(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	if lock, active := s.store.IsHardLocked(domain); active {
		writeErrorForKind(w, errors.Attr(errors.Errorf(errors.KindLockout, "%s is still locked until %s", domain, lock.Until.Format("2006-01-02")), "until", lock.Until))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain})
}

// handleFlushDNS implements `POST /api/flush-dns`.
func (s *Server) handleFlushDNS(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.FlushDNS(); err != nil && s.logger != nil {
		s.logger.Warn("flush-dns failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"flushed": true})
}
