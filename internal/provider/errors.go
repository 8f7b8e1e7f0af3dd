package provider

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingCredential is returned when a provider is built without an API key.
	ErrMissingCredential = errors.New("missing api credential")
	// ErrUnsupportedModel is matched by every *UnsupportedModelError.
	ErrUnsupportedModel = errors.New("unsupported model")
)

// UnsupportedModelError reports a logical model name the provider does not map.
type UnsupportedModelError struct {
	Provider string
	Model    string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("%s: unsupported model %q", e.Provider, e.Model)
}

func (e *UnsupportedModelError) Is(target error) bool {
	return target == ErrUnsupportedModel
}

// RemoteError carries a non-success HTTP response from the inference service.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("failed to %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("failed to %s: status %d - %s", e.Op, e.StatusCode, e.Body)
}

// TimeoutError is returned when a polled operation does not reach a terminal
// state within its attempt budget or deadline.
type TimeoutError struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %d attempts (%s)", e.Op, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
