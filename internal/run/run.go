// Package run models one submission of a simulation stage: a work directory,
// its rendered inputs, a batch descriptor and the job handle the scheduler
// returned.
package run

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/input"
	"github.com/PieterjanRobbe/ftxctl/internal/parameter"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// Run is created unsubmitted, written once and submitted once. A restart
// always creates a new Run.
type Run struct {
	WorkDir   string                     `yaml:"work_dir"`
	Inputs    *input.TemplateInputSet    `yaml:"inputs"`
	Batch     *scheduler.BatchDescriptor `yaml:"batch"`
	JobID     string                     `yaml:"job_id,omitempty"`
	StdoutLog string                     `yaml:"stdout_log,omitempty"`
	Layout    Layout                     `yaml:"layout"`
}

// New creates an unsubmitted run in workDir.
func New(workDir string, inputs *input.TemplateInputSet, batch *scheduler.BatchDescriptor, layout Layout) *Run {
	r := &Run{
		Inputs: inputs,
		Batch:  batch,
		Layout: layout,
	}
	r.ChangeWorkDir(workDir)
	return r
}

// ChangeWorkDir moves the run and rebinds SIM_ROOT to the new directory.
func (r *Run) ChangeWorkDir(workDir string) {
	r.WorkDir = workDir
	if r.Inputs.Parameters == nil {
		r.Inputs.Parameters = parameter.Set{}
	}
	r.Inputs.Parameters.Bind(SimRootParameter, workDir)
}

// HasStarted reports whether the run holds a job handle.
func (r *Run) HasStarted() bool {
	return r.JobID != ""
}

// Path resolves name inside the work directory. Absolute names are returned
// as they are.
func (r *Run) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.WorkDir, name)
}

// WriteFiles renders the inputs into the work directory, creating it when
// absent. A non-empty directory is only written over when overwrite is set.
func (r *Run) WriteFiles(overwrite bool) error {
	empty, err := utils.IsDirEmpty(r.WorkDir)
	if err != nil {
		return err
	}
	if !empty && !overwrite {
		return fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, r.WorkDir)
	}
	if err := utils.EnsureDir(r.WorkDir); err != nil {
		return err
	}
	if err := r.Inputs.Write(r.WorkDir); err != nil {
		return err
	}
	utils.PrintDebug("Rendered %d input files into %s", len(r.Inputs.Files), utils.StylePath(r.WorkDir))
	return nil
}

// Submit fills the single-run command placeholders and submits the batch
// descriptor from the work directory. Runs with a detached descriptor are
// submitted by their group and return immediately.
func (r *Run) Submit(ctx context.Context, sched scheduler.Scheduler) error {
	if r.Batch == nil || r.Batch.Detached {
		return nil
	}
	if r.HasStarted() {
		return fmt.Errorf("%w: job %s in %s", ErrAlreadySubmitted, r.JobID, r.WorkDir)
	}

	r.Batch.UpdateCommands(scheduler.SingleRunFields(r.Layout.ConfigFile, r.Layout.PlatformFile))
	jobID, err := scheduler.SubmitDescriptor(ctx, sched, r.Batch, r.WorkDir)
	if err != nil {
		return err
	}
	r.JobID = jobID
	if output, ok := r.Batch.Setting("output"); ok {
		r.StdoutLog = output
	}
	return nil
}

// Clean runs the cleanup script inside the work directory.
func (r *Run) Clean(ctx context.Context) error {
	script := r.Path(r.Layout.CleanScript)
	if !utils.FileExists(script) {
		return errdefs.MissingArtifact("cleanup script", script)
	}
	if err := os.Chmod(script, utils.PermExec); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "bash", script)
	cmd.Dir = r.WorkDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v\n%s", ErrCleanFailed, script, err, strings.TrimSpace(string(output)))
	}
	utils.PrintDebug("Cleaned %s", utils.StylePath(r.WorkDir))
	return nil
}

// Status combines the live queue with the run's logs. A job still in the queue
// is queued or running whatever its logs say, since they may hold stale
// markers. Otherwise the completion log is checked before the scheduler
// stdout log, and a missing or failing warning log means errored.
func (r *Run) Status(ctx context.Context, sched scheduler.Scheduler) (Status, error) {
	if !r.HasStarted() {
		return StatusNotSubmitted, nil
	}

	state, err := sched.QueryState(ctx, r.JobID)
	if err != nil {
		return StatusUnknown, err
	}
	switch state {
	case scheduler.JobRunning:
		return StatusRunning, nil
	case scheduler.JobPending:
		return StatusQueued, nil
	}

	finished, err := r.HasFinished()
	if err != nil {
		return StatusUnknown, err
	}
	if finished {
		return StatusFinished, nil
	}

	timedOut, err := r.HasExceededTimeLimit()
	if err != nil {
		return StatusUnknown, err
	}
	if timedOut {
		return StatusTimedOut, nil
	}

	errored, err := r.HasErrored()
	if err != nil {
		return StatusUnknown, err
	}
	if errored {
		return StatusErrored, nil
	}
	return StatusFailed, nil
}

// HasFinished looks for the finalize marker in the completion log.
func (r *Run) HasFinished() (bool, error) {
	return containsOptional(r.Path(r.Layout.CompletionLog), FinishedMarker)
}

// HasExceededTimeLimit looks for the time-limit marker in the scheduler stdout log.
func (r *Run) HasExceededTimeLimit() (bool, error) {
	log := r.stdoutLog()
	if log == "" {
		return false, nil
	}
	return containsOptional(r.Path(log), TimeLimitMarker)
}

// HasErrored reports an absent warning log or one that contains ERROR.
func (r *Run) HasErrored() (bool, error) {
	path := r.Path(r.Layout.WarningLog)
	if !utils.FileExists(path) {
		return true, nil
	}
	return utils.FileContains(path, ErrorMarker)
}

func (r *Run) stdoutLog() string {
	if r.StdoutLog != "" {
		return r.StdoutLog
	}
	if r.Batch != nil {
		if output, ok := r.Batch.Setting("output"); ok {
			return output
		}
	}
	return ""
}

// containsOptional treats a missing file as not containing the marker.
func containsOptional(path, marker string) (bool, error) {
	found, err := utils.FileContains(path, marker)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return found, err
}

// CompletionLogLines reads the completion log for restart-parameter mining.
func (r *Run) CompletionLogLines() ([]string, error) {
	path := r.Path(r.Layout.CompletionLog)
	if !utils.FileExists(path) {
		return nil, errdefs.MissingArtifact("completion log", path)
	}
	return utils.ReadLines(path)
}

// Clone returns a copy with independent inputs and batch descriptor.
func (r *Run) Clone() *Run {
	c := *r
	c.Inputs = r.Inputs.Clone()
	c.Batch = r.Batch.Clone()
	return &c
}
