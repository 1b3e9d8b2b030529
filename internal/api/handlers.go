package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// envelope is the uniform response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		zap.L().Warn("api: write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, ErrDomainNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "Domain not found"})
	case eris.Is(err, ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "Task not found"})
	case eris.Is(err, ErrNotRetryable):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Only failed tasks can be retried"})
	case eris.Is(err, ErrCorruptPayload):
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: "Task payload is corrupt"})
	default:
		zap.L().Error("api: internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: "Internal server error"})
	}
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	domainID := chi.URLParam(r, "domainID")
	userID := chi.URLParam(r, "userID")

	tasks, err := s.StartAnalysis(r.Context(), domainID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, envelope{
		Success: true,
		Message: "Analysis started",
		Data:    tasks,
	})
}

func (s *Service) handleRetry(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	task, err := s.Retry(r.Context(), taskID, r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Task queued for retry",
		Data:    task,
	})
}

func (s *Service) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Task found",
		Data:    task,
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
}
