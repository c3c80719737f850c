package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/PieterjanRobbe/ftxctl/internal/checkpoint"
	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/group"
	"github.com/PieterjanRobbe/ftxctl/internal/input"
	"github.com/PieterjanRobbe/ftxctl/internal/parameter"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler/schedulertest"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"github.com/stretchr/testify/require"
)

func newTestSimulation(t *testing.T, root, name string) *simulation.Simulation {
	t.Helper()
	params := parameter.Set{}
	p, err := parameter.New("burstingFactor", 2e8, parameter.WithBounds(1e2, 1e9), parameter.WithLogScale())
	require.NoError(t, err)
	params.Add(p)
	params.Add(parameter.NewText(simulation.StartModeParameter, "INIT"))
	inputs := &input.TemplateInputSet{
		Parameters: params,
		Files: map[string][]string{
			"ips.ftx.config": {"SIM_ROOT = {SIM_ROOT}\n", "burstingFactor = {burstingFactor}\n"},
		},
	}
	batch := scheduler.NewBatchDescriptor(
		[]scheduler.Setting{{Flag: "nodes", Value: "2"}, {Flag: "output", Value: "log.slurm.stdOut"}},
		[]string{"ips.py --simulation={config_files}"},
	)
	return simulation.New(run.New(filepath.Join(root, name), inputs, batch, run.DefaultLayout()))
}

func TestSaveAndLoadSimulation(t *testing.T) {
	sim := newTestSimulation(t, t.TempDir(), "sim_1")
	sched := schedulertest.New()
	require.NoError(t, sim.Start(context.Background(), simulation.Env{Scheduler: sched, Extractor: checkpoint.CopyExtractor{}}))

	require.NoError(t, SaveSimulation(sim, false))
	loaded, err := LoadSimulation(sim.Path)
	require.NoError(t, err)

	require.Equal(t, sim.ID, loaded.ID)
	require.Equal(t, sim.Name, loaded.Name)
	require.Len(t, loaded.Runs, 1)
	require.Nil(t, loaded.Pending)

	r := loaded.Current()
	require.Equal(t, "1000", r.JobID)
	require.Equal(t, sim.Current().WorkDir, r.WorkDir)
	require.Equal(t, sim.Current().Inputs.Files, r.Inputs.Files)
	require.Equal(t, 2e8, r.Inputs.Parameters["burstingFactor"].Value)
	require.True(t, r.Inputs.Parameters["burstingFactor"].LogScale)
	require.Equal(t, sim.Current().Batch.Settings, r.Batch.Settings)
	require.Equal(t, run.DefaultLayout(), r.Layout)
}

func TestSaveRefusesToOverwrite(t *testing.T) {
	sim := newTestSimulation(t, t.TempDir(), "sim_1")
	require.NoError(t, SaveSimulation(sim, false))

	err := SaveSimulation(sim, false)
	require.True(t, IsPersistenceConflict(err))

	sim.Name = "renamed"
	require.NoError(t, SaveSimulation(sim, true))
	loaded, err := LoadSimulation(sim.Path)
	require.NoError(t, err)
	require.Equal(t, "renamed", loaded.Name)

	leftovers, err := filepath.Glob(filepath.Join(sim.Path, ".simulation.yaml.*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestSaveAndLoadGroup(t *testing.T) {
	root := t.TempDir()
	g, err := group.New(root, []*simulation.Simulation{
		newTestSimulation(t, root, "a"),
		newTestSimulation(t, root, "b"),
	}, group.DefaultResourceSetting)
	require.NoError(t, err)

	require.NoError(t, SaveGroup(g, false))
	kind, err := Detect(root)
	require.NoError(t, err)
	require.Equal(t, KindGroup, kind)

	loaded, err := LoadGroup(root)
	require.NoError(t, err)
	require.Len(t, loaded.Simulations, 2)
	require.Equal(t, 2, loaded.ResourceUnit)
	require.Equal(t, -1, loaded.RunNumber)
	require.True(t, loaded.Simulations[1].Pending.Batch.Detached)
}

func TestLoadChecksFormatAndKind(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "newer major version",
			content: "format: v2.0.0\nkind: simulation\nobject:\n  name: x\n",
			check: func(t *testing.T, err error) {
				require.True(t, errors.Is(err, ErrIncompatibleFormat))
			},
		},
		{
			name:    "missing version",
			content: "kind: simulation\nobject:\n  name: x\n",
			check: func(t *testing.T, err error) {
				require.True(t, errors.Is(err, ErrIncompatibleFormat))
			},
		},
		{
			name:    "wrong kind",
			content: "format: v1.3.0\nkind: output\nobject:\n  name: x\n",
			check: func(t *testing.T, err error) {
				require.True(t, errdefs.IsValidationError(err))
			},
		},
		{
			name:    "compatible minor version",
			content: "format: v1.3.0\nkind: simulation\nobject:\n  name: x\n",
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, SimulationFile)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadSimulation(dir)
			tt.check(t, err)
		})
	}
}

func TestLoadMissingAndDetectEmpty(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSimulation(dir)
	require.True(t, errdefs.IsMissingArtifact(err))

	_, err = Detect(dir)
	require.True(t, errors.Is(err, ErrNoObject))
}
