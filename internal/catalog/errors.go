package catalog

import (
	"errors"
	"fmt"
)

// StorageError reports an unreadable, malformed or unwritable index snapshot,
// or an unreadable storage root.
type StorageError struct {
	Op   string // load, save or scan
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
