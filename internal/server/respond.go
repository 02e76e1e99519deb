package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/suraj5sky/sky-tts/internal/account"
	"github.com/suraj5sky/sky-tts/internal/extract"
	"github.com/suraj5sky/sky-tts/internal/tts"
)

type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Status: "error", Message: message})
}

// writeDomainError maps sentinel errors to status codes. Anything unmapped
// is a 500 with a generic message so internals never leak to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tts.ErrVoiceNotFound):
		writeError(w, http.StatusNotFound, "Voice not found")
	case errors.Is(err, tts.ErrVoiceNotAvailable):
		writeError(w, http.StatusBadRequest, "Voice is not available for synthesis yet")
	case errors.Is(err, tts.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, "Invalid synthesis parameters")
	case errors.Is(err, tts.ErrAllProvidersExhausted):
		writeError(w, http.StatusBadGateway, "Speech synthesis failed on all providers")
	case errors.Is(err, tts.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Speech service unavailable")
	case errors.Is(err, tts.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Speech synthesis timed out")
	case errors.Is(err, account.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, account.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "Session expired, please log in again")
	case errors.Is(err, account.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, account.ErrUnknownPlan):
		writeError(w, http.StatusBadRequest, "Unknown subscription plan")
	case errors.Is(err, account.ErrBadSignature):
		writeError(w, http.StatusUnauthorized, "Invalid webhook signature")
	case errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, extract.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "Only .txt and .docx files are supported")
	case errors.Is(err, extract.ErrEmptyDocument):
		writeError(w, http.StatusBadRequest, "Document contains no readable text")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
