package userweb

import "errors"

var (
	// ErrUnknownUser is returned when a username does not resolve to a home directory
	ErrUnknownUser = errors.New("unknown user")
	// ErrNoSite is returned when the user has no www directory
	ErrNoSite = errors.New("no site")
	// ErrPathTraversal is returned when a path escapes the site root
	ErrPathTraversal = errors.New("path traversal")
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrMethodNotAllowed is returned when no handler exists for the request method
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrHandlerExecutionFailed is returned when an executable handler fails
	ErrHandlerExecutionFailed = errors.New("handler execution failed")
	// ErrMalformedBody is returned when a request body cannot be interpreted
	ErrMalformedBody = errors.New("malformed body")
	// ErrTransclusionUnresolved is reported for inclusion markers that could not be expanded
	ErrTransclusionUnresolved = errors.New("transclusion unresolved")
)

// MethodError carries the methods a target does accept alongside ErrMethodNotAllowed.
type MethodError struct {
	Allow []string
}

func (e *MethodError) Error() string { return ErrMethodNotAllowed.Error() }

func (e *MethodError) Unwrap() error { return ErrMethodNotAllowed }
