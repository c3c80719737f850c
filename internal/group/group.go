// Package group submits the runs of several simulations as one shared
// scheduler job.
package group

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// DefaultResourceSetting is the batch setting scaled by the number of
// simulations in a submission.
const DefaultResourceSetting = "nodes"

// Group owns the only live batch descriptor of its members; theirs are
// detached at construction.
type Group struct {
	Path            string                     `yaml:"path"`
	Simulations     []*simulation.Simulation   `yaml:"simulations"`
	Batch           *scheduler.BatchDescriptor `yaml:"batch"`
	ResourceSetting string                     `yaml:"resource_setting"`
	ResourceUnit    int                        `yaml:"resource_unit"`
	RunNumber       int                        `yaml:"run_number"`
}

// New builds a group rooted at path. The shared descriptor and the
// per-simulation resource unit come from the first simulation.
func New(path string, sims []*simulation.Simulation, resourceSetting string) (*Group, error) {
	if len(sims) == 0 {
		return nil, errdefs.Validation("simulation group", "a simulation group needs at least one simulation, got 0")
	}
	if resourceSetting == "" {
		resourceSetting = DefaultResourceSetting
	}

	first := sims[0].Current()
	if first == nil || first.Batch == nil || first.Batch.Detached {
		return nil, errdefs.Validation(sims[0].Name, "first simulation has no batch descriptor to share")
	}
	batch := first.Batch.Clone()

	unit := 1
	if value, ok := batch.Setting(resourceSetting); ok {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			return nil, errdefs.Validation(resourceSetting, "expected a positive integer, got %q", value)
		}
		unit = n
	}

	for _, sim := range sims {
		for _, r := range sim.Runs {
			r.Batch = scheduler.Detached()
		}
		if sim.Pending != nil {
			sim.Pending.Batch = scheduler.Detached()
		}
	}

	return &Group{
		Path:            path,
		Simulations:     sims,
		Batch:           batch,
		ResourceSetting: resourceSetting,
		ResourceUnit:    unit,
		RunNumber:       -1,
	}, nil
}

// Start starts every simulation that has not started yet, in one submission.
func (g *Group) Start(ctx context.Context, env simulation.Env) (int, error) {
	var selected []*simulation.Simulation
	var actions []simulation.Action
	for _, sim := range g.Simulations {
		if !sim.HasStarted() {
			selected = append(selected, sim)
			actions = append(actions, simulation.ActionStart)
		}
	}
	return g.apply(ctx, env, selected, actions)
}

// Step starts unstarted simulations and restarts timed-out ones, in one
// submission. Decisions are made for every member before anything changes.
func (g *Group) Step(ctx context.Context, env simulation.Env) (int, error) {
	var selected []*simulation.Simulation
	var actions []simulation.Action
	for _, sim := range g.Simulations {
		action, err := sim.NextAction(ctx, env.Scheduler)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", sim.Name, err)
		}
		if action != simulation.ActionNone {
			selected = append(selected, sim)
			actions = append(actions, action)
		}
	}
	return g.apply(ctx, env, selected, actions)
}

// apply writes every selected run, then submits them together. Any failure
// rolls every selected simulation back to where it was.
func (g *Group) apply(ctx context.Context, env simulation.Env, selected []*simulation.Simulation, actions []simulation.Action) (int, error) {
	if len(selected) == 0 {
		utils.PrintDebug("No simulation in %s needs a submission", utils.StylePath(g.Path))
		return 0, nil
	}

	marks := make([]simulation.Mark, len(selected))
	rollback := func(upTo int) {
		for i := 0; i < upTo; i++ {
			if err := selected[i].Rollback(marks[i]); err != nil {
				utils.PrintWarning("Failed to roll back %s: %v", selected[i].Name, err)
			}
		}
	}

	for i, sim := range selected {
		marks[i] = sim.Mark()
		var err error
		switch actions[i] {
		case simulation.ActionStart:
			err = sim.Start(ctx, env)
		case simulation.ActionRestart:
			err = sim.Restart(ctx, env)
		}
		if err != nil {
			rollback(i)
			return 0, fmt.Errorf("%s: %w", sim.Name, err)
		}
	}

	if err := g.submit(ctx, env.Scheduler, selected); err != nil {
		rollback(len(selected))
		return 0, err
	}
	return len(selected), nil
}

// submit performs the shared submission and fans the job handle out.
func (g *Group) submit(ctx context.Context, sched scheduler.Scheduler, selected []*simulation.Simulation) error {
	runNumber := g.RunNumber + 1
	output := fmt.Sprintf("log.slurm.stdOut.%d", runNumber)

	configs := make([]string, len(selected))
	for i, sim := range selected {
		r := sim.Current()
		configs[i] = filepath.Join(r.WorkDir, r.Layout.ConfigFile)
	}
	first := selected[0].Current()

	g.Batch.Reset()
	g.Batch.UpdateSetting("output", output)
	g.Batch.UpdateSetting(g.ResourceSetting, strconv.Itoa(len(selected)*g.ResourceUnit))
	g.Batch.UpdateCommands(scheduler.CommandFields{
		ConfigFiles:  strings.Join(configs, ","),
		LogFile:      fmt.Sprintf("log.framework.%d", runNumber),
		PlatformFile: filepath.Join(first.WorkDir, first.Layout.PlatformFile),
		StdoutFile:   fmt.Sprintf("log.stdOut.%d", runNumber),
		StderrFile:   fmt.Sprintf("log.stdErr.%d", runNumber),
	})

	jobID, err := scheduler.SubmitDescriptor(ctx, sched, g.Batch, g.Path)
	if err != nil {
		return err
	}

	g.RunNumber = runNumber
	stdoutLog := filepath.Join(g.Path, output)
	for _, sim := range selected {
		r := sim.Current()
		r.JobID = jobID
		r.StdoutLog = stdoutLog
	}
	utils.PrintSuccess("Submitted %s simulations as job %s", utils.StyleNumber(len(selected)), utils.StyleNumber(jobID))
	return nil
}

// PrintStatus prints the status line of every member.
func (g *Group) PrintStatus(ctx context.Context, sched scheduler.Scheduler) {
	for _, sim := range g.Simulations {
		sim.PrintStatus(ctx, sched)
	}
}
