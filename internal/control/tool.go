// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package control

import (
	"encoding/json"
	"net/http"

	"grimm.is/focusshield/internal/errors"
)

// toolCall is the structured envelope for the optional remote tool
// surface (spec.md §6): "a small set of structured tool calls that map
// 1:1 to the REST surface (status, list, check, grant with the
// 30-minute public cap, add-block, remove-block with the hard-lockout
// refusal)".
type toolCall struct {
	Name    string `json:"name"`
	Domain  string `json:"domain,omitempty"`
	Minutes int    `json:"minutes,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// handleTool dispatches a bearer-token-authenticated tool call onto the
// same store/agent operations the REST handlers use, enforcing the same
// 30-minute public grant cap and hard-lockout refusal (spec.md §6).
func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	var call toolCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch call.Name {
	case "status":
		s.handleStatus(w, r)
	case "list":
		writeJSON(w, http.StatusOK, map[string]any{"domains": s.store.Snapshot().Blocklist})
	case "check":
		blocked, err := s.store.IsBlocked(call.Domain)
		if err != nil {
			writeErrorForKind(w, err)
			return
		}
		minutes, _ := s.store.RemainingMinutes(call.Domain)
		writeJSON(w, http.StatusOK, map[string]any{"domain": call.Domain, "blocked": blocked, "allowance_minutes": minutes})
	case "grant":
		a, err := s.store.Grant(call.Domain, call.Minutes, call.Reason)
		if err != nil {
			writeErrorForKind(w, err)
			return
		}
		if err := s.agent.Grant(a.Domain, call.Minutes, call.Reason); err != nil {
			_ = s.store.Revoke(a.Domain)
			writeErrorForKind(w, err)
			return
		}
		s.metrics.GrantsIssued.Inc()
		s.audit.record("tool_grant", a.Domain, "", true)
		writeJSON(w, http.StatusOK, a)
	case "add-block":
		domain, err := s.store.AddBlock(call.Domain)
		if err != nil {
			writeErrorForKind(w, err)
			return
		}
		if err := s.agent.EnforceBlock(domain); err != nil && s.logger != nil {
			s.logger.Warn("tool add-block enforce failed", "domain", domain, "error", err)
		}
		s.audit.record("tool_add_block", domain, "", true)
		writeJSON(w, http.StatusOK, map[string]any{"domain": domain})
	case "remove-block":
		if err := s.store.RemoveBlock(call.Domain); err != nil {
			writeErrorForKind(w, err)
			return
		}
		if err := s.agent.Blocklist(s.store.EffectiveBlockSet()); err != nil && s.logger != nil {
			s.logger.Warn("tool remove-block re-drive failed", "domain", call.Domain, "error", err)
		}
		s.audit.record("tool_remove_block", call.Domain, "", true)
		writeJSON(w, http.StatusOK, map[string]any{"domain": call.Domain})
	default:
		writeError(w, http.StatusBadRequest, errors.Errorf(errors.KindValidation, "unknown tool: %s", call.Name))
	}
}
