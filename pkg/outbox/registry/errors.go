package registry

import "errors"

// NonRetryableError marks an event that will fail the same way on every
// attempt. The relay parks it and consumers ack it.
type NonRetryableError struct {
	cause error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{cause: err}
}

func (e NonRetryableError) Error() string {
	if e.cause == nil {
		return "non-retryable error"
	}
	return "non-retryable: " + e.cause.Error()
}

func (e NonRetryableError) Unwrap() error { return e.cause }

// IsNonRetryable reports whether err or anything it wraps is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}
