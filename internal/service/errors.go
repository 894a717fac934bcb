package service

import (
	"errors"
	"fmt"

	"github.com/lexiconlabs/ankibridge/internal/store"
)

// Common sentinel errors for CardService
var (
	// ErrCardNotFound indicates that the card does not exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrNotOwner indicates the caller does not own the card it is
	// operating on. Surfaced identically to not-found so existence of
	// other users' cards is not revealed.
	ErrNotOwner = errors.New("card not owned by caller")

	// ErrNotRetryable indicates a retry reset was requested for a card that
	// is not in the failed state.
	ErrNotRetryable = errors.New("card is not in a retryable state")
)

// CardServiceError wraps errors from the card service with context.
type CardServiceError struct {
	// Operation is the operation that failed (e.g., "create_card", "delete_card")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for CardServiceError.
func (e *CardServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("card service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("card service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *CardServiceError) Unwrap() error {
	return e.Err
}

// NewCardServiceError creates a new CardServiceError.
// It returns known sentinel errors directly without wrapping.
func NewCardServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrCardNotFound) || errors.Is(err, ErrNotOwner) || errors.Is(err, ErrNotRetryable) {
		return err
	}

	// Map store-level sentinels to service-level ones.
	if errors.Is(err, store.ErrCardNotFound) {
		return ErrCardNotFound
	}

	return &CardServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
