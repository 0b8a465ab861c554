package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to write JSON response", "error", err)
		}
	}
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// mapDomainErrorToHTTPStatus converts domain sentinel errors to HTTP status codes.
func mapDomainErrorToHTTPStatus(err error) int {
	var limitErr *domain.AttachmentLimitError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAttachmentType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &limitErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotSender):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRetractionExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrCaseClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrChannelUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError maps err and writes the error payload in one step.
func respondWithDomainError(w http.ResponseWriter, err error) {
	respondWithError(w, mapDomainErrorToHTTPStatus(err), err.Error())
}
