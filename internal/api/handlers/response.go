package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dom/chat-relay/internal/domain"
)

const (
	msgUnauthorized       = "Unauthorized"
	msgInvalidCredentials = "Invalid credentials"
	msgUserExists         = "User already exists"
	msgChatNotFound       = "Chat not found"
	msgUserNotFound       = "User not found"
	msgProcessingFailed   = "Failed to process message"
	msgInternal           = "Internal server error"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto its HTTP status. Causes of
// server-side failures are logged and never sent to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, domain.ErrEmailExists):
		writeError(w, http.StatusBadRequest, msgUserExists)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrUpstream):
		slog.Error("completion provider failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, msgProcessingFailed)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
