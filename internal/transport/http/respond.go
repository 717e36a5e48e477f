package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rtm-python/est/internal/domain"
	"go.uber.org/zap"
)

type errorPayload struct {
	Message  string   `json:"message"`
	Problems []string `json:"problems,omitempty"`
	// Redirect names the view a player client should move to: catalog, play or result.
	Redirect string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTestNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrNameNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionComplete),
		errors.Is(err, domain.ErrSessionIncomplete),
		errors.Is(err, domain.ErrTaskAnswered),
		errors.Is(err, domain.ErrOpenTaskExists),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExtensionNotFound),
		errors.Is(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorBody(err error) errorPayload {
	payload := errorPayload{Message: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		payload.Problems = verr.Problems
	}
	payload.Redirect = redirectOf(err)
	return payload
}

func redirectOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionComplete):
		return "result"
	case errors.Is(err, domain.ErrSessionIncomplete),
		errors.Is(err, domain.ErrTaskAnswered),
		errors.Is(err, domain.ErrOpenTaskExists),
		errors.Is(err, domain.ErrConflict):
		return "play"
	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrTestNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return "catalog"
	}
	return ""
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeJSON(w, status, errorPayload{Message: "internal error"})
		return
	}
	writeJSON(w, status, errorBody(err))
}
