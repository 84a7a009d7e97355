package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/parley-chat/parley/backend/internal/models"
)

// writeJSON is a helper function to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes and writes the
// message as the response.
func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errorStatus(err))
}

// errorStatus translates the error taxonomy into status codes. Unknown
// errors are treated as bad requests: they come from local validation.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSelfReport), errors.Is(err, models.ErrRecipientBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrRemoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
