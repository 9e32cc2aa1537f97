// Package errs holds the typed errors shared by the search and dispatch core.
package errs

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when no agent or tool matches a requested name.
type NotFoundError struct {
	Kind string // "tool", "agent", "source"
	Name string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "item"
	}
	return fmt.Sprintf("%s '%s' not found", kind, e.Name)
}

// MissingParameterError is returned when a declarative HTTP tool path references a
// placeholder that the caller did not supply.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required path parameter: %s", e.Name)
}

// HTTPError reports a non-2xx upstream response.
type HTTPError struct {
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	if e.StatusText == "" {
		return fmt.Sprintf("HTTP error: status %d", e.Status)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.Status, e.StatusText)
}

// InvalidInputError reports malformed search input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid search input: " + e.Reason
}

// SourceUnavailableError records a capability source whose listing call failed.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidInput reports whether err wraps an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}

// Message returns the error text, or the empty string for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
