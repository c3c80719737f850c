// Package errdefs holds the error types shared by every layer of the restart engine.
//
// Scheduler and persistence failures live next to the code that produces them
// (scheduler.SubmissionError, store.PersistenceConflictError); the types here are
// the ones raised from several packages at once.
package errdefs

import (
	"errors"
	"fmt"
	"io/fs"
)

// ValidationError reports a rejected value or precondition: out-of-bounds
// parameter values, missing source directories, an empty group, starting a
// simulation twice.
type ValidationError struct {
	Subject string // What was being validated (parameter name, directory, simulation)
	Reason  string // Human readable reason
}

func (e *ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, e.Reason)
}

// Is allows errors.Is to match any ValidationError
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// Validation creates a new ValidationError
func Validation(subject string, format string, a ...interface{}) *ValidationError {
	return &ValidationError{
		Subject: subject,
		Reason:  fmt.Sprintf(format, a...),
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MissingArtifactError reports an expected file (log, script, checkpoint) that is absent.
type MissingArtifactError struct {
	Artifact string // Logical name, e.g. "cleanup script", "checkpoint"
	Path     string // Expected location
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Artifact, e.Path)
}

// Unwrap lets errors.Is(err, fs.ErrNotExist) succeed.
func (e *MissingArtifactError) Unwrap() error {
	return fs.ErrNotExist
}

// MissingArtifact creates a new MissingArtifactError
func MissingArtifact(artifact, path string) *MissingArtifactError {
	return &MissingArtifactError{
		Artifact: artifact,
		Path:     path,
	}
}

// IsMissingArtifact checks if an error is a MissingArtifactError
func IsMissingArtifact(err error) bool {
	var me *MissingArtifactError
	return errors.As(err, &me)
}
