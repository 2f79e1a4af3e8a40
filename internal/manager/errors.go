package manager

import (
	"errors"

	"imaged/internal/catalog"
	"imaged/internal/loader"
)

// notFoundError signals an unknown artifact uid (404).
type notFoundError struct{ uid string }

func (e notFoundError) Error() string { return "model not found: " + e.uid }

// ErrNotFound returns an error for a uid missing from the catalog.
func ErrNotFound(uid string) error { return notFoundError{uid: uid} }

// IsNotFound reports whether err indicates an unknown uid.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// loaderNotFoundError signals that no loader accepts the artifact (422).
type loaderNotFoundError struct {
	uid string
	err error
}

func (e loaderNotFoundError) Error() string { return "no loader for " + e.uid + ": " + e.err.Error() }
func (e loaderNotFoundError) Unwrap() error { return e.err }

// IsLoaderNotFound reports whether err indicates no suitable loader.
func IsLoaderNotFound(err error) bool {
	var e loaderNotFoundError
	return errors.As(err, &e)
}

// loadFailureError wraps the cause of a failed loader invocation (500).
type loadFailureError struct {
	uid    string
	loader string
	err    error
}

func (e loadFailureError) Error() string {
	return "load " + e.uid + " via " + e.loader + " failed: " + e.err.Error()
}
func (e loadFailureError) Unwrap() error { return e.err }

// IsLoadFailure reports whether err came from a failed loader invocation.
func IsLoadFailure(err error) bool {
	var e loadFailureError
	return errors.As(err, &e)
}

// tooBusyError signals admission timeout or a slot transition in progress (429).
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// notLoadedError signals an operation that needs a loaded model (409).
type notLoadedError struct{}

func (notLoadedError) Error() string { return "no model loaded" }

// ErrNotLoaded is returned when no model is loaded.
var ErrNotLoaded error = notLoadedError{}

// IsNotLoaded reports whether err indicates an empty slot.
func IsNotLoaded(err error) bool {
	var e notLoadedError
	return errors.As(err, &e)
}

// invalidRequestError signals a rejected generation request (400).
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// IsInvalidRequest reports whether err indicates bad generation parameters.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}

// IsStorageError reports whether err came from index or storage root I/O.
func IsStorageError(err error) bool { return catalog.IsStorageError(err) }

// IsDependencyUnavailable reports whether err indicates a missing runtime (503).
func IsDependencyUnavailable(err error) bool { return loader.IsDependencyUnavailable(err) }
