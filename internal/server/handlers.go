package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/api"
	"github.com/wolfeidau/faceterm/internal/coordinator"
	"github.com/wolfeidau/faceterm/internal/terminal"
)

const maxBodyBytes = 1 << 20

func (s *Server) listTerminals(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")

	terminals := s.coordinator.Terminals(orgID)
	if terminals == nil {
		terminals = []string{}
	}

	writeJSON(w, http.StatusOK, api.TerminalsResponse{OrgID: orgID, Terminals: terminals})
}

func (s *Server) addTerminal(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")

	var req api.TerminalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TerminalID == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("terminalId is required"))
		return
	}

	if err := s.coordinator.AddTerminal(r.Context(), orgID, req.TerminalID); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, api.TerminalsResponse{OrgID: orgID, Terminals: s.coordinator.Terminals(orgID)})
}

func (s *Server) replaceTerminal(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")
	oldID := chi.URLParam(r, "terminal")

	var req api.TerminalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TerminalID == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("terminalId is required"))
		return
	}

	if err := s.coordinator.ReplaceTerminal(r.Context(), orgID, oldID, req.TerminalID); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, api.TerminalsResponse{OrgID: orgID, Terminals: s.coordinator.Terminals(orgID)})
}

func (s *Server) removeTerminal(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")
	terminalID := chi.URLParam(r, "terminal")

	if err := s.coordinator.RemoveTerminal(r.Context(), orgID, terminalID); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")

	var req api.PersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.coordinator.Register(r.Context(), orgID, req.UserID, req.Name, req.ImageURL); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) addPerson(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")

	var req api.PersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ok, err := s.coordinator.AddPerson(r.Context(), orgID, req.UserID, req.Name, req.ImageURL)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, api.AddPersonResponse{Success: ok})
}

// statusFor maps coordinator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrInvalidRegistration):
		return http.StatusBadRequest
	case errors.Is(err, terminal.ErrNoTerminalRegistered), errors.Is(err, terminal.ErrTerminalNotFound):
		return http.StatusNotFound
	case errors.Is(err, terminal.ErrTerminalConflict):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrAckTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, coordinator.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, coordinator.ErrStopped), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	evt := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		evt = zerolog.Ctx(r.Context()).Error()
	}
	evt.Err(err).Int("status", status).Msg("Request failed")

	writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
