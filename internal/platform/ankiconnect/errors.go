package ankiconnect

import (
	"errors"
	"fmt"
)

// TransientError indicates a delivery failure expected to resolve on retry:
// the target was unreachable, timed out, or answered with something that
// could not be parsed. The sync worker leaves the card pending.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient delivery failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient delivery failure: %s", e.Reason)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError indicates the application rejected the payload; retrying
// the same card cannot succeed. The sync worker marks the card failed.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery failure: %s", e.Reason)
}

// IsTransient reports whether err classifies as a transient delivery failure.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsPermanent reports whether err classifies as a permanent delivery failure.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}
