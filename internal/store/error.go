package store

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompatibleFormat is returned when a stored object was written by an
	// incompatible (different major) format version.
	ErrIncompatibleFormat = errors.New("incompatible store format")

	// ErrNoObject is returned when a directory holds neither a simulation nor a group.
	ErrNoObject = errors.New("no simulation or simulation group found")
)

// PersistenceConflictError is returned when a save target already exists and
// overwriting was not requested.
type PersistenceConflictError struct {
	Path string
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("%s already exists, use overwrite to replace it", e.Path)
}

// NewPersistenceConflictError creates a new PersistenceConflictError
func NewPersistenceConflictError(path string) *PersistenceConflictError {
	return &PersistenceConflictError{Path: path}
}

// IsPersistenceConflict checks if an error is a PersistenceConflictError
func IsPersistenceConflict(err error) bool {
	var pe *PersistenceConflictError
	return errors.As(err, &pe)
}
