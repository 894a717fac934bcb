package api

import (
	"errors"
	"net/http"

	"github.com/lexiconlabs/ankibridge/internal/domain"
	"github.com/lexiconlabs/ankibridge/internal/service"
)

// MapErrorToStatusCode maps service-level errors to HTTP status codes.
// Ownership failures are reported as not-found so the existence of other
// users' cards is not revealed.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrCardNotFound), errors.Is(err, service.ErrNotOwner):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotRetryable):
		return http.StatusConflict
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for an error. Internal
// details stay in the logs.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrCardNotFound), errors.Is(err, service.ErrNotOwner):
		return "Card not found"
	case errors.Is(err, service.ErrNotRetryable):
		return "Card is not in a retryable state"
	case domain.IsValidationError(err):
		return err.Error()
	default:
		return "An internal error occurred"
	}
}
