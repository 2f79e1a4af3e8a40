package loader

import "errors"

var (
	// ErrNoLoader is returned when no loader accepts an artifact.
	ErrNoLoader = errors.New("no suitable loader")
	// ErrAlreadyRegistered is returned when a plugin name is registered twice.
	ErrAlreadyRegistered = errors.New("loader already registered")
	// ErrUnknownPlugin is returned for a configured plugin name with no factory.
	ErrUnknownPlugin = errors.New("unknown loader plugin")
)

// dependencyUnavailableError signals a missing runtime (inference backend,
// translator build) so callers can report 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err, or anything it wraps, is a
// missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}
