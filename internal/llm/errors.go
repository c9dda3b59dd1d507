package llm

import (
	"errors"
	"fmt"
)

// RetryableError marks a transient provider failure (rate limit, 5xx,
// transport error). Retry gives up on anything else.
type RetryableError struct {
	StatusCode int
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm: retryable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm: retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// AuthError is a missing or rejected credential. Never retried.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return "llm: " + e.Provider + " authentication error: " + e.Message
}

// ParseError means the model answered but the answer did not decode into
// the expected shape. Raw keeps the answer for the logs.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return "llm: malformed response: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
