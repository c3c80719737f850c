// Package schedulertest provides an in-memory scheduler for tests.
package schedulertest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
)

// Submission records one Submit call.
type Submission struct {
	Script  string
	WorkDir string
	Desc    *scheduler.BatchDescriptor
	JobID   string
}

// Fake hands out sequential job IDs and answers queue lookups from States.
type Fake struct {
	NextID      int
	SubmitErr   error
	QueryErr    error
	States      map[string]scheduler.JobState
	Submissions []Submission

	written map[string]*scheduler.BatchDescriptor
}

// New returns a Fake whose first job ID is 1000.
func New() *Fake {
	return &Fake{
		NextID:  1000,
		States:  make(map[string]scheduler.JobState),
		written: make(map[string]*scheduler.BatchDescriptor),
	}
}

// WriteScript records a snapshot of desc; nothing touches the disk.
func (f *Fake) WriteScript(desc *scheduler.BatchDescriptor, dir string) (string, error) {
	path := filepath.Join(dir, scheduler.ScriptName)
	f.written[path] = desc.Clone()
	return path, nil
}

// Submit assigns the next job ID, or fails with SubmitErr wrapped as a
// SubmissionError. A successful job starts out pending.
func (f *Fake) Submit(ctx context.Context, scriptPath string, workDir string) (string, error) {
	if f.SubmitErr != nil {
		return "", scheduler.NewSubmissionError("fake", scriptPath, "", f.SubmitErr)
	}
	desc, ok := f.written[scriptPath]
	if !ok {
		return "", scheduler.NewSubmissionError("fake", scriptPath, "", errors.New("script was never written"))
	}
	jobID := fmt.Sprintf("%d", f.NextID)
	f.NextID++
	f.States[jobID] = scheduler.JobPending
	f.Submissions = append(f.Submissions, Submission{
		Script:  scriptPath,
		WorkDir: workDir,
		Desc:    desc,
		JobID:   jobID,
	})
	return jobID, nil
}

// QueryState returns the recorded state; unknown IDs are absent.
func (f *Fake) QueryState(ctx context.Context, jobID string) (scheduler.JobState, error) {
	if f.QueryErr != nil {
		return scheduler.JobAbsent, scheduler.NewQueryError("fake", jobID, "", f.QueryErr)
	}
	return f.States[jobID], nil
}

// GetInfo describes the fake.
func (f *Fake) GetInfo() *scheduler.SchedulerInfo {
	return &scheduler.SchedulerInfo{Type: "fake", Available: true}
}

// Finish removes every job from the queue.
func (f *Fake) Finish() {
	for id := range f.States {
		f.States[id] = scheduler.JobAbsent
	}
}
