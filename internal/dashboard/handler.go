package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/todotray/todotray/internal/engine"
)

type completeRequest struct {
	ID string `json:"id"`
}

type snoozeRequest struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type resolveRequest struct {
	Account  string `json:"account"`
	ThreadID string `json:"thread_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// commandStatus maps a command error to an HTTP status code.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrActionNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeCommandResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeJSON(w, commandStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return false
	}
	return true
}

// handleState returns the current aggregated snapshot
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.store.Current())
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.store.Current().Version,
		"clients": s.ClientCount(),
	})
}

// handleSnoozes lists the configured snooze option labels
func (s *Server) handleSnoozes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"labels": s.commands.SnoozeLabels()})
}

// handleRefresh schedules a background refresh cycle
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.refresher.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// handleComplete completes an actionable item
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	s.writeCommandResult(w, s.commands.Complete(req.ID))
}

// handleSnooze hides an item until its wake time
func (s *Server) handleSnooze(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || req.Label == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	s.writeCommandResult(w, s.commands.Snooze(req.ID, req.Label))
}

// handleResolve marks a notification thread as read
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == "" || req.ThreadID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	s.writeCommandResult(w, s.commands.ResolveNotification(req.Account, req.ThreadID))
}

// handleAutostartToggle flips the login-item registration
func (s *Server) handleAutostartToggle(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	enabled, err := s.commands.ToggleAutostart()
	if err != nil {
		writeJSON(w, commandStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}
