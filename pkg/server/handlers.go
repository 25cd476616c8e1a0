package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"adwatch-hq/sentinel/pkg/audit"
	"adwatch-hq/sentinel/pkg/policy/engine"
	"adwatch-hq/sentinel/pkg/policy/quota"
	"adwatch-hq/sentinel/pkg/storage"
)

// errorResponse is the JSON shape for transport-level failures. Policy
// rejections are not errors; they return 200 with allowed=false.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// decisionStatus maps a decision to an HTTP status. Storage unavailability
// is the one rejection that is a server-side failure.
func decisionStatus(d *engine.Decision) int {
	if d.ReasonCode == engine.ReasonEngineUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var action engine.Action
	if !s.decode(w, r, &action) {
		return
	}

	decision := s.engine.Evaluate(r.Context(), &action)
	if s.auditor != nil {
		s.auditor.RecordDecision(&action, decision)
	}
	s.writeJSON(w, decisionStatus(decision), decision)
}

func (s *Server) handleCheckBatch(w http.ResponseWriter, r *http.Request) {
	var actions []*engine.Action
	if !s.decode(w, r, &actions) {
		return
	}

	result := s.engine.EvaluateBatch(r.Context(), actions)
	if s.auditor != nil {
		for i, decision := range result.Details {
			s.auditor.RecordDecision(actions[i], decision)
		}
	}
	s.writeJSON(w, http.StatusOK, result)
}

type executionRequest struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

func (s *Server) handleRecordExecution(w http.ResponseWriter, r *http.Request) {
	var req executionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Kind == "" {
		s.writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	snap, err := s.engine.RecordExecution(r.Context(), engine.Kind(req.Kind), req.Count)
	if err != nil {
		if errors.Is(err, quota.ErrLimitReached) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.auditor != nil {
		count := req.Count
		if count <= 0 {
			count = 1
		}
		s.auditor.RecordExecution(req.Kind, count)
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleQuotaStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.QuotaStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

type quotaResetRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (s *Server) handleQuotaReset(w http.ResponseWriter, r *http.Request) {
	var req quotaResetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		s.writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	snap, err := s.engine.ResetQuota(r.Context(), req.Reason)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.auditor != nil {
		s.auditor.RecordQuotaReset(req.Reason, req.Actor)
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEmergencyState(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.EmergencyState(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

type emergencyActivateRequest struct {
	Reason      string `json:"reason"`
	TriggeredBy string `json:"triggered_by"`
}

func (s *Server) handleEmergencyActivate(w http.ResponseWriter, r *http.Request) {
	var req emergencyActivateRequest
	if !s.decode(w, r, &req) {
		return
	}

	state, err := s.engine.ActivateEmergency(r.Context(), req.Reason, req.TriggeredBy)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.auditor != nil {
		s.auditor.RecordEmergency(true, state.Reason, state.TriggeredBy)
	}
	s.writeJSON(w, http.StatusOK, state)
}

type emergencyDeactivateRequest struct {
	DeactivatedBy string `json:"deactivated_by"`
	Reason        string `json:"reason"`
}

func (s *Server) handleEmergencyDeactivate(w http.ResponseWriter, r *http.Request) {
	var req emergencyDeactivateRequest
	if !s.decode(w, r, &req) {
		return
	}

	state, err := s.engine.DeactivateEmergency(r.Context(), req.DeactivatedBy, req.Reason)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.auditor != nil {
		s.auditor.RecordEmergency(false, req.Reason, req.DeactivatedBy)
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleWhitelistList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Whitelist().List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if entries == nil {
		entries = []*storage.WhitelistEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

type whitelistAddRequest struct {
	EntityID   string `json:"entity_id"`
	EntityText string `json:"entity_text"`
	Reason     string `json:"reason"`
}

func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	var req whitelistAddRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.EntityID == "" {
		s.writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	entry, err := s.engine.Whitelist().Add(r.Context(), req.EntityID, req.EntityText, req.Reason)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEntry) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.auditor != nil {
		s.auditor.RecordWhitelistChange(req.EntityID, true, req.Reason)
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entity_id")
	if entityID == "" {
		s.writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	removed, err := s.engine.Whitelist().Remove(r.Context(), entityID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "entity is not whitelisted")
		return
	}
	if s.auditor != nil {
		s.auditor.RecordWhitelistChange(entityID, false, "")
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleRuleSet(w http.ResponseWriter, r *http.Request) {
	rules, err := s.engine.RuleSet()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		s.writeError(w, http.StatusNotFound, "audit trail is not enabled")
		return
	}

	eventType := audit.EventType(r.URL.Query().Get("event_type"))
	records, err := s.auditStore.ListRecent(r.Context(), eventType, 100)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// The engine fails closed on storage problems, so health is defined by
	// the ability to read engine state.
	if _, err := s.engine.EmergencyState(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
