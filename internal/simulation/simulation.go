// Package simulation tracks one logical simulation across restarts and
// decides what its next run should be.
package simulation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/PieterjanRobbe/ftxctl/internal/checkpoint"
	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// Env carries the collaborators a simulation needs to act.
type Env struct {
	Scheduler scheduler.Scheduler
	Extractor checkpoint.Extractor
}

// Action is the outcome of a step decision.
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionRestart
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionRestart:
		return "restart"
	default:
		return "none"
	}
}

// Simulation is an append-only history of runs. While the history is empty
// the next run to start is held in Pending.
type Simulation struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Path    string     `yaml:"path"`
	Runs    []*run.Run `yaml:"runs"`
	Pending *run.Run   `yaml:"pending,omitempty"`
}

// New creates an unstarted simulation rooted at the initial run's work
// directory. The simulation is named after that directory.
func New(initial *run.Run) *Simulation {
	return &Simulation{
		ID:      uuid.NewString(),
		Name:    filepath.Base(initial.WorkDir),
		Path:    initial.WorkDir,
		Pending: initial,
	}
}

// Current returns the last run of the history, or the pending run.
func (s *Simulation) Current() *run.Run {
	if len(s.Runs) > 0 {
		return s.Runs[len(s.Runs)-1]
	}
	return s.Pending
}

// HasStarted reports whether the first run was submitted.
func (s *Simulation) HasStarted() bool {
	return len(s.Runs) > 0 && s.Runs[0].HasStarted()
}

// Start moves the pending run into init_<name>, renders it, submits it and
// appends it to the history. A failed submission removes the rendered
// directory again.
func (s *Simulation) Start(ctx context.Context, env Env) error {
	if s.HasStarted() || len(s.Runs) > 0 {
		return errdefs.Validation(s.Name, "simulation has already started, use restart instead")
	}
	r := s.Pending
	if r == nil {
		return errdefs.Validation(s.Name, "no run to start")
	}

	r.ChangeWorkDir(filepath.Join(s.Path, "init_"+s.Name))
	if r.Batch != nil && !r.Batch.Detached {
		if _, ok := r.Batch.Setting("job-name"); !ok {
			r.Batch.UpdateSetting("job-name", s.Name)
		}
	}
	if err := r.WriteFiles(false); err != nil {
		return err
	}
	if err := r.Submit(ctx, env.Scheduler); err != nil {
		if rmErr := os.RemoveAll(r.WorkDir); rmErr != nil {
			utils.PrintWarning("Failed to remove %s: %v", utils.StylePath(r.WorkDir), rmErr)
		}
		return err
	}

	s.Runs = append(s.Runs, r)
	s.Pending = nil
	utils.PrintDebug("Started %s", s.PrintName())
	return nil
}

// Restart copies the current run into restart_<name>_<k>, seeds it with the
// last checkpoint and the log-mined parameters, and submits it. k is the
// number of runs so far. On failure the new directory is removed and the
// history is left as it was.
func (s *Simulation) Restart(ctx context.Context, env Env) error {
	if !s.HasStarted() {
		return errdefs.Validation(s.Name, "simulation has not started, use start instead")
	}
	prev := s.Current()
	dest := filepath.Join(s.Path, fmt.Sprintf("restart_%s_%d", s.Name, len(s.Runs)))

	next, err := s.prepareRestart(ctx, env, prev, dest)
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			utils.PrintWarning("Failed to remove %s: %v", utils.StylePath(dest), rmErr)
		}
		return err
	}

	s.Runs = append(s.Runs, next)
	utils.PrintDebug("Restarted %s in %s", s.Name, utils.StylePath(dest))
	return nil
}

func (s *Simulation) prepareRestart(ctx context.Context, env Env, prev *run.Run, dest string) (*run.Run, error) {
	if err := utils.ReplaceDir(prev.WorkDir, dest); err != nil {
		return nil, err
	}

	next := prev.Clone()
	next.JobID = ""
	next.StdoutLog = ""
	next.ChangeWorkDir(dest)

	layout := next.Layout
	extractor := env.Extractor
	if extractor == nil {
		extractor = checkpoint.NewCommandExtractor("")
	}
	if err := extractor.Extract(ctx, next.Path(layout.CheckpointSource), next.Path(layout.CheckpointFile)); err != nil {
		return nil, err
	}

	stateSrc := next.Path(layout.StateSource)
	if !utils.FileExists(stateSrc) {
		return nil, errdefs.MissingArtifact("engine state", stateSrc)
	}
	if err := utils.CopyFile(stateSrc, next.Path(layout.StateFile)); err != nil {
		return nil, err
	}

	if err := applyRestartParameters(next); err != nil {
		return nil, err
	}

	if err := next.WriteFiles(true); err != nil {
		return nil, err
	}
	if err := next.Clean(ctx); err != nil {
		return nil, err
	}
	if err := next.Submit(ctx, env.Scheduler); err != nil {
		return nil, err
	}
	return next, nil
}

func applyRestartParameters(r *run.Run) error {
	params := r.Inputs.Parameters
	if err := params.SetText(StartModeParameter, RestartStartMode); err != nil {
		return err
	}
	if err := params.SetValue(AbsTolParameter, RestartTolerance); err != nil {
		return err
	}
	if err := params.SetValue(RelTolParameter, RestartTolerance); err != nil {
		return err
	}

	lines, err := r.CompletionLogLines()
	if err != nil {
		return err
	}
	assignments, err := MineRestartParameters(lines, params)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		if err := params.SetValue(a.Name, a.Value); err != nil {
			return err
		}
		utils.PrintDebug("Restart parameter %s = %v", utils.StyleName(a.Name), a.Value)
	}
	return nil
}

// Status delegates to the current run.
func (s *Simulation) Status(ctx context.Context, sched scheduler.Scheduler) (run.Status, error) {
	if !s.HasStarted() {
		return run.StatusNotSubmitted, nil
	}
	return s.Current().Status(ctx, sched)
}

// HasUnknownStatus reports a started simulation that is neither queued,
// running, timed out nor finished.
func (s *Simulation) HasUnknownStatus(ctx context.Context, sched scheduler.Scheduler) (bool, error) {
	if !s.HasStarted() {
		return false, nil
	}
	status, err := s.Status(ctx, sched)
	if err != nil {
		return true, err
	}
	switch status {
	case run.StatusQueued, run.StatusRunning, run.StatusTimedOut, run.StatusFinished:
		return false, nil
	}
	return true, nil
}

// NextAction decides what Step would do without doing it.
func (s *Simulation) NextAction(ctx context.Context, sched scheduler.Scheduler) (Action, error) {
	if !s.HasStarted() {
		return ActionStart, nil
	}
	status, err := s.Status(ctx, sched)
	if err != nil {
		return ActionNone, err
	}
	if status == run.StatusTimedOut {
		return ActionRestart, nil
	}
	return ActionNone, nil
}

// Step starts an unstarted simulation and restarts a timed-out one. Anything
// else is left alone.
func (s *Simulation) Step(ctx context.Context, env Env) (Action, error) {
	action, err := s.NextAction(ctx, env.Scheduler)
	if err != nil {
		return ActionNone, err
	}
	switch action {
	case ActionStart:
		return action, s.Start(ctx, env)
	case ActionRestart:
		return action, s.Restart(ctx, env)
	}
	return ActionNone, nil
}

// PrintName is the name with the stage of the current run.
func (s *Simulation) PrintName() string {
	switch n := len(s.Runs); {
	case n == 1:
		return s.Name + " (init)"
	case n > 1:
		return fmt.Sprintf("%s (restart %d)", s.Name, n-1)
	}
	return s.Name
}

// StatusLine renders "<name> (<stage>) <status phrase>".
func (s *Simulation) StatusLine(ctx context.Context, sched scheduler.Scheduler) (string, error) {
	status, err := s.Status(ctx, sched)
	return s.PrintName() + " " + status.Phrase(), err
}

// PrintStatus prints the status line of the simulation.
func (s *Simulation) PrintStatus(ctx context.Context, sched scheduler.Scheduler) {
	line, err := s.StatusLine(ctx, sched)
	if err != nil {
		utils.PrintWarning("%s: %v", s.Name, err)
	}
	utils.PrintMessage("%s", line)
}

// DeleteLastRun removes the current run's directory and drops it from the
// history. Deleting the only run makes it pending again, without a job.
func (s *Simulation) DeleteLastRun() error {
	n := len(s.Runs)
	if n == 0 {
		return nil
	}
	last := s.Runs[n-1]
	if err := os.RemoveAll(last.WorkDir); err != nil {
		return err
	}
	s.Runs = s.Runs[:n-1]
	if n == 1 {
		last.JobID = ""
		last.StdoutLog = ""
		s.Pending = last
	}
	return nil
}

// DeleteAllRuns removes every run directory and makes the first run pending
// again.
func (s *Simulation) DeleteAllRuns() error {
	if len(s.Runs) == 0 {
		return nil
	}
	for _, r := range s.Runs {
		if err := os.RemoveAll(r.WorkDir); err != nil {
			return err
		}
	}
	first := s.Runs[0]
	first.JobID = ""
	first.StdoutLog = ""
	s.Runs = nil
	s.Pending = first
	return nil
}

// Mark records the history length so a failed group submission can undo the
// runs appended after it.
type Mark struct {
	runs    int
	pending *run.Run
}

// Mark returns the current position in the history.
func (s *Simulation) Mark() Mark {
	return Mark{runs: len(s.Runs), pending: s.Pending}
}

// Rollback drops every run appended since m and removes its directory.
func (s *Simulation) Rollback(m Mark) error {
	if m.runs > len(s.Runs) {
		return nil
	}
	for _, r := range s.Runs[m.runs:] {
		if err := os.RemoveAll(r.WorkDir); err != nil {
			return err
		}
	}
	s.Runs = s.Runs[:m.runs]
	s.Pending = m.pending
	return nil
}
