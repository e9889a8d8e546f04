package orchestrator

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed request before any round is opened.
// It is the only error Deliberate surfaces to the caller; every request
// that passes validation produces an outcome.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deliberation request: %s", e.Reason)
}

// IsValidationError returns true if the error is a request validation
// failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
