// Package scheduler provides the batch-scheduler interface used to submit runs
// and to look them up in the live queue.
package scheduler

import (
	"context"
	"os"
	"os/exec"
)

// SchedulerType represents the type of job scheduler
type SchedulerType string

const (
	SchedulerUnknown SchedulerType = ""
	SchedulerSLURM   SchedulerType = "SLURM"
)

// JobState is the live-queue state of a submitted job.
type JobState string

const (
	JobAbsent  JobState = ""   // Not (or no longer) in the queue
	JobPending JobState = "PD" // Queued
	JobRunning JobState = "R"  // Running
)

// InQueue reports whether the job is still known to the scheduler.
func (s JobState) InQueue() bool {
	return s != JobAbsent
}

// SchedulerInfo holds information about the detected scheduler
type SchedulerInfo struct {
	Type      string // Scheduler type (e.g., "SLURM")
	Binary    string // Path to the submission binary (e.g., "/usr/bin/sbatch")
	QueueBin  string // Path to the queue-listing binary (e.g., "/usr/bin/squeue")
	Version   string // Scheduler version (if available)
	InJob     bool   // Whether we're currently inside a scheduled job
	Available bool   // Whether scheduler is available for job submission
}

// Scheduler defines the interface for job schedulers
type Scheduler interface {
	// WriteScript renders desc into a batch script inside dir and returns its path
	WriteScript(desc *BatchDescriptor, dir string) (string, error)

	// Submit submits the script from workDir and returns the job ID
	Submit(ctx context.Context, scriptPath string, workDir string) (string, error)

	// QueryState looks the job up in the live queue
	QueryState(ctx context.Context, jobID string) (JobState, error)

	// GetInfo returns information about the scheduler
	GetInfo() *SchedulerInfo
}

// SubmitDescriptor writes desc into dir and submits it from there.
func SubmitDescriptor(ctx context.Context, s Scheduler, desc *BatchDescriptor, dir string) (string, error) {
	script, err := s.WriteScript(desc, dir)
	if err != nil {
		return "", err
	}
	return s.Submit(ctx, script, dir)
}

// Runner executes an external command in dir and returns its combined output.
type Runner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// IsInsideJob checks if we're currently running inside a scheduler job.
// This is useful to avoid nested job submission.
func IsInsideJob() bool {
	_, ok := os.LookupEnv("SLURM_JOB_ID")
	return ok
}
