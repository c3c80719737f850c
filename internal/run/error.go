package run

import "errors"

var (
	// ErrDirectoryNotEmpty indicates files would be rendered over an existing run
	ErrDirectoryNotEmpty = errors.New("work directory exists and is not empty")

	// ErrAlreadySubmitted indicates a second submission of the same run
	ErrAlreadySubmitted = errors.New("run has already been submitted")

	// ErrCleanFailed indicates the cleanup script exited non-zero
	ErrCleanFailed = errors.New("cleanup script failed")
)
