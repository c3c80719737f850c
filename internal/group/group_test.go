package group

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PieterjanRobbe/ftxctl/internal/checkpoint"
	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/input"
	"github.com/PieterjanRobbe/ftxctl/internal/parameter"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler/schedulertest"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"github.com/stretchr/testify/require"
)

const nodesPerSimulation = 3

func newTestSimulation(t *testing.T, root, name string) *simulation.Simulation {
	t.Helper()
	params := parameter.Set{}
	params.Add(parameter.NewText(simulation.StartModeParameter, "INIT"))
	for _, pname := range []string{simulation.AbsTolParameter, simulation.RelTolParameter, simulation.MaxTSParameter, simulation.InitTimeParameter} {
		p, err := parameter.New(pname, 1e-4)
		require.NoError(t, err)
		params.Add(p)
	}
	inputs := &input.TemplateInputSet{
		Parameters: params,
		Files: map[string][]string{
			"ips.ftx.config": {"SIM_ROOT = {SIM_ROOT}\n"},
			"clean.sh":       {"rm -f log.ftx\n"},
		},
	}
	batch := scheduler.NewBatchDescriptor(
		[]scheduler.Setting{{Flag: "nodes", Value: "3"}, {Flag: "time", Value: "01:00:00"}},
		[]string{"ips.py --simulation={config_files} --platform={platform_file} --log={log_file}"},
	)
	return simulation.New(run.New(filepath.Join(root, name), inputs, batch, run.DefaultLayout()))
}

func newTestGroup(t *testing.T, names ...string) *Group {
	t.Helper()
	root := t.TempDir()
	var sims []*simulation.Simulation
	for _, name := range names {
		sims = append(sims, newTestSimulation(t, root, name))
	}
	g, err := New(root, sims, DefaultResourceSetting)
	require.NoError(t, err)
	return g
}

func testEnv() (simulation.Env, *schedulertest.Fake) {
	sched := schedulertest.New()
	return simulation.Env{Scheduler: sched, Extractor: checkpoint.CopyExtractor{}}, sched
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewRejectsEmptyGroup(t *testing.T) {
	_, err := New(t.TempDir(), nil, "")
	require.True(t, errdefs.IsValidationError(err))
}

func TestNewDetachesMembers(t *testing.T) {
	g := newTestGroup(t, "a", "b")
	require.Equal(t, nodesPerSimulation, g.ResourceUnit)
	require.Equal(t, -1, g.RunNumber)
	for _, sim := range g.Simulations {
		require.True(t, sim.Current().Batch.Detached)
	}
	require.False(t, g.Batch.Detached)
}

func TestNewRejectsBadResourceUnit(t *testing.T) {
	root := t.TempDir()
	sim := newTestSimulation(t, root, "a")
	sim.Current().Batch.UpdateSetting("nodes", "many")
	_, err := New(root, []*simulation.Simulation{sim}, "nodes")
	require.True(t, errdefs.IsValidationError(err))
}

func TestStartSubmitsOnce(t *testing.T) {
	g := newTestGroup(t, "a", "b", "c")
	env, sched := testEnv()

	n, err := g.Start(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Len(t, sched.Submissions, 1)
	require.Equal(t, g.Path, sched.Submissions[0].WorkDir)
	require.Equal(t, 0, g.RunNumber)

	desc := sched.Submissions[0].Desc
	nodes, _ := desc.Setting("nodes")
	require.Equal(t, "9", nodes)
	output, _ := desc.Setting("output")
	require.Equal(t, "log.slurm.stdOut.0", output)

	var configs []string
	for _, sim := range g.Simulations {
		r := sim.Current()
		require.Equal(t, "1000", r.JobID)
		require.Equal(t, filepath.Join(g.Path, "log.slurm.stdOut.0"), r.StdoutLog)
		configs = append(configs, filepath.Join(r.WorkDir, "ips.ftx.config"))
	}
	platform := filepath.Join(g.Simulations[0].Current().WorkDir, "conf.ips")
	require.Equal(t,
		"ips.py --simulation="+strings.Join(configs, ",")+" --platform="+platform+" --log=log.framework.0",
		desc.Commands[0])
}

func TestStepMixedMembers(t *testing.T) {
	g := newTestGroup(t, "finished", "timed_out", "fresh")
	env, sched := testEnv()
	ctx := context.Background()

	_, err := g.Start(ctx, env)
	require.NoError(t, err)
	finished, timedOut, fresh := g.Simulations[0], g.Simulations[1], g.Simulations[2]
	require.NoError(t, fresh.DeleteAllRuns())

	sched.Finish()
	writeFile(t, filepath.Join(g.Path, "log.slurm.stdOut.0"), "*** CANCELLED DUE TO TIME LIMIT ***\n")
	for _, sim := range []*simulation.Simulation{finished, timedOut} {
		r := sim.Current()
		writeFile(t, r.Path(r.Layout.WarningLog), "")
		writeFile(t, r.Path(r.Layout.CheckpointSource), "h5")
		writeFile(t, r.Path(r.Layout.StateSource), "tridyn")
		writeFile(t, r.Path(r.Layout.CompletionLog), "driver time (in loop) 1.0\n")
	}
	writeFile(t, finished.Current().Path("log.ftx"), run.FinishedMarker+"\n")

	status, err := finished.Status(ctx, sched)
	require.NoError(t, err)
	require.Equal(t, run.StatusFinished, status)
	status, err = timedOut.Status(ctx, sched)
	require.NoError(t, err)
	require.Equal(t, run.StatusTimedOut, status)

	n, err := g.Step(ctx, env)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, sched.Submissions, 2)

	desc := sched.Submissions[1].Desc
	nodes, _ := desc.Setting("nodes")
	require.Equal(t, "6", nodes)
	output, _ := desc.Setting("output")
	require.Equal(t, "log.slurm.stdOut.1", output)

	require.Len(t, finished.Runs, 1)
	require.Equal(t, "1000", finished.Current().JobID)

	require.Len(t, timedOut.Runs, 2)
	require.Equal(t, "1001", timedOut.Current().JobID)
	require.DirExists(t, filepath.Join(timedOut.Path, "restart_timed_out_1"))
	require.Equal(t, filepath.Join(g.Path, "log.slurm.stdOut.1"), timedOut.Current().StdoutLog)

	require.Len(t, fresh.Runs, 1)
	require.Equal(t, "1001", fresh.Current().JobID)
	require.FileExists(t, filepath.Join(fresh.Current().WorkDir, "ips.ftx.config"))
}

func TestStepNothingToDo(t *testing.T) {
	g := newTestGroup(t, "a")
	env, sched := testEnv()
	ctx := context.Background()

	_, err := g.Start(ctx, env)
	require.NoError(t, err)

	n, err := g.Step(ctx, env)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, sched.Submissions, 1)
	require.Equal(t, 0, g.RunNumber)
}

func TestFailedSubmissionLeavesEveryHandleUnset(t *testing.T) {
	g := newTestGroup(t, "a", "b", "c")
	env, sched := testEnv()
	sched.SubmitErr = errors.New("sbatch: error: QOSMaxNodePerJobLimit")

	_, err := g.Step(context.Background(), env)
	require.True(t, scheduler.IsSubmissionError(err))
	require.Equal(t, -1, g.RunNumber)
	for _, sim := range g.Simulations {
		require.Empty(t, sim.Runs)
		require.False(t, sim.HasStarted())
		require.Empty(t, sim.Current().JobID)
		require.NoDirExists(t, filepath.Join(sim.Path, "init_"+sim.Name))
	}

	sched.SubmitErr = nil
	n, err := g.Step(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestStepQueryFailureChangesNothing(t *testing.T) {
	g := newTestGroup(t, "a")
	env, sched := testEnv()
	ctx := context.Background()
	_, err := g.Start(ctx, env)
	require.NoError(t, err)

	sched.QueryErr = errors.New("controller down")
	_, err = g.Step(ctx, env)
	require.True(t, scheduler.IsQueryError(err))
	require.Len(t, sched.Submissions, 1)
}
