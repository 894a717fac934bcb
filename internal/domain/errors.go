package domain

import "errors"

// Validation rejection errors. Each one maps to a stable machine-readable
// reason via RejectionReason so callers can surface it without string
// matching on the error text.
var (
	// ErrMissingType is returned when the card type is absent or not one of
	// the supported values.
	ErrMissingType = errors.New("card type must be one of vocabulary, verb, phrase, grammar")

	// ErrMissingFront is returned when the front text is empty after trimming.
	ErrMissingFront = errors.New("card front cannot be empty")

	// ErrMissingBack is returned when the back text is empty after trimming.
	ErrMissingBack = errors.New("card back cannot be empty")

	// ErrMalformedMetadata is returned when the metadata payload is present
	// but is not a well-formed JSON object.
	ErrMalformedMetadata = errors.New("card metadata must be a JSON object")

	// ErrCardOwnerEmpty is returned when a card's owner ID is empty or nil.
	ErrCardOwnerEmpty = errors.New("card owner ID cannot be empty")

	// ErrCardIDEmpty is returned when a card ID is empty or nil.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrInvalidDeliveryState is returned when a delivery state value is not
	// one of pending, delivered, or failed.
	ErrInvalidDeliveryState = errors.New("invalid delivery state")

	// ErrInvalidTransition is returned when a delivery state change does not
	// follow the allowed lifecycle (pending to a terminal state, or an
	// explicit retry reset from failed back to pending).
	ErrInvalidTransition = errors.New("invalid delivery state transition")
)

// RejectionReason returns the stable reason code for a validation rejection
// ("missing_type", "missing_front", "missing_back", "malformed_metadata"),
// or the empty string if the error is not a validation rejection.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingType):
		return "missing_type"
	case errors.Is(err, ErrMissingFront):
		return "missing_front"
	case errors.Is(err, ErrMissingBack):
		return "missing_back"
	case errors.Is(err, ErrMalformedMetadata):
		return "malformed_metadata"
	default:
		return ""
	}
}

// IsValidationError reports whether err is one of the input validation
// rejections, as opposed to an infrastructure failure.
func IsValidationError(err error) bool {
	return RejectionReason(err) != ""
}
