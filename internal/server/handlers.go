package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/elicit-dev/elicit/internal/domain"
	"github.com/elicit-dev/elicit/internal/scenario"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error body with the given status code.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleScenarioList(w http.ResponseWriter, r *http.Request) {
	scenarios, err := s.deps.Scenarios.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list scenarios")
		writeJSONError(w, http.StatusInternalServerError, "failed to load scenarios")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios})
}

func (s *Server) handleScenarioGet(w http.ResponseWriter, r *http.Request) {
	sc, err := s.deps.Scenarios.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "scenario not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to load scenario")
		writeJSONError(w, http.StatusInternalServerError, "failed to load scenario")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// savedSessionRequest is the PUT /api/session body.
type savedSessionRequest struct {
	ScenarioID string           `json:"scenarioId"`
	Messages   []domain.Message `json:"messages"`
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(r.Context(), sessionKey(r))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load saved session")
		writeJSONError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		writeJSONError(w, http.StatusNotFound, "no resumable session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionPut(w http.ResponseWriter, r *http.Request) {
	var req savedSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !scenario.ValidID(req.ScenarioID) {
		writeJSONError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	if len(req.Messages) > maxRequestMessages {
		writeJSONError(w, http.StatusBadRequest, "too many messages")
		return
	}

	sess := domain.SavedSession{
		ScenarioID: req.ScenarioID,
		Messages:   req.Messages,
		SavedAt:    time.Now(),
	}
	if err := s.deps.Sessions.Put(r.Context(), sessionKey(r), sess); err != nil {
		s.log.Error().Err(err).Msg("failed to save session")
		writeJSONError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Delete(r.Context(), sessionKey(r)); err != nil {
		s.log.Error().Err(err).Msg("failed to delete saved session")
		writeJSONError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
