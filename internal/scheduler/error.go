package scheduler

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrSchedulerNotFound indicates the scheduler binary was not found
	ErrSchedulerNotFound = errors.New("scheduler binary not found in PATH")

	// ErrScriptNotFound indicates the script file was not found
	ErrScriptNotFound = errors.New("script file not found")

	// ErrInvalidScriptFormat indicates the script has invalid format
	ErrInvalidScriptFormat = errors.New("invalid script format")

	// ErrJobIDParseFailed indicates parsing job ID from output failed
	ErrJobIDParseFailed = errors.New("failed to parse job ID from scheduler output")

	// ErrInvalidTimeFormat indicates time format is invalid
	ErrInvalidTimeFormat = errors.New("invalid time format")
)

// ParseError represents an error parsing scheduler directives
type ParseError struct {
	Scheduler string // Scheduler name (e.g., "SLURM")
	Line      int    // Line number where error occurred
	Content   string // Line content
	Reason    string // Reason for parse failure
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s parse error at line %d (%s): %s",
			e.Scheduler, e.Line, e.Content, e.Reason)
	}
	return fmt.Sprintf("%s parse error: %s", e.Scheduler, e.Reason)
}

// SubmissionError represents an error during job submission
type SubmissionError struct {
	Scheduler string // Scheduler name
	Script    string // Script submitted
	Output    string // Scheduler output
	Err       error  // Underlying error
}

func (e *SubmissionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s submission failed for %s: %v\nOutput: %s",
			e.Scheduler, e.Script, e.Err, e.Output)
	}
	return fmt.Sprintf("%s submission failed for %s: %v",
		e.Scheduler, e.Script, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// QueryError represents a failed live-queue lookup
type QueryError struct {
	Scheduler string // Scheduler name
	JobID     string // Job queried
	Output    string // Scheduler output
	Err       error  // Underlying error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s queue lookup failed for job %s: %v",
		e.Scheduler, e.JobID, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ScriptCreationError represents an error creating a batch script
type ScriptCreationError struct {
	Path string // Script path
	Err  error  // Underlying error
}

func (e *ScriptCreationError) Error() string {
	return fmt.Sprintf("failed to create batch script at %s: %v", e.Path, e.Err)
}

func (e *ScriptCreationError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewParseError creates a new ParseError
func NewParseError(scheduler string, line int, content string, reason string) *ParseError {
	return &ParseError{
		Scheduler: scheduler,
		Line:      line,
		Content:   content,
		Reason:    reason,
	}
}

// NewSubmissionError creates a new SubmissionError
func NewSubmissionError(scheduler string, script string, output string, err error) *SubmissionError {
	return &SubmissionError{
		Scheduler: scheduler,
		Script:    script,
		Output:    output,
		Err:       err,
	}
}

// NewQueryError creates a new QueryError
func NewQueryError(scheduler string, jobID string, output string, err error) *QueryError {
	return &QueryError{
		Scheduler: scheduler,
		JobID:     jobID,
		Output:    output,
		Err:       err,
	}
}

// NewScriptCreationError creates a new ScriptCreationError
func NewScriptCreationError(path string, err error) *ScriptCreationError {
	return &ScriptCreationError{
		Path: path,
		Err:  err,
	}
}

// IsParseError checks if an error is a ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsSubmissionError checks if an error is a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// IsQueryError checks if an error is a QueryError
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
