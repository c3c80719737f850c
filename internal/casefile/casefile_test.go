package casefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/stretchr/testify/require"
)

const testDefinition = `
input:
  source: inputs
  parameters:
    SBV_W: {nominal: 8.79, lower: 8.68, upper: 8.9}
    burstingFactor: {nominal: 2e8, lower: 1e2, upper: 1e9, log_scale: true}
    END_TIME: {nominal: 1}
    START_MODE: {nominal: INIT}
cases:
  PISCES:
    parameters: {SBV_W: 8.8}
profiles:
  debug:
    parameters: {END_TIME: 0.01}
    settings: {time: "00:30:00", qos: debug}
batch:
  settings:
    nodes: 2
    time: "24:00:00"
    output: log.slurm.stdOut
  commands:
    - ips.py --simulation={config_files} --platform={platform_file}
`

func writeDefinition(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inputs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inputs", "ips.ftx.config"), []byte("SBV_W = {SBV_W}\n"), 0644))
	path := filepath.Join(dir, "definition.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinition), 0644))
	return path
}

func TestResolveAppliesCaseThenProfile(t *testing.T) {
	def, err := Load(writeDefinition(t))
	require.NoError(t, err)

	r, err := def.Resolve(Selection{Case: "PISCES", Profile: "debug"})
	require.NoError(t, err)

	require.Equal(t, 8.8, r.Parameters["SBV_W"].Value)
	require.Equal(t, 8.68, r.Parameters["SBV_W"].Lower)
	require.Equal(t, 0.01, r.Parameters["END_TIME"].Value)
	require.True(t, r.Parameters["END_TIME"].IsDeterministic())
	require.Equal(t, "INIT", r.Parameters["START_MODE"].String())
	require.True(t, r.Parameters["burstingFactor"].LogScale)

	require.Equal(t, []scheduler.Setting{
		{Flag: "nodes", Value: "2"},
		{Flag: "time", Value: "00:30:00"},
		{Flag: "output", Value: "log.slurm.stdOut"},
		{Flag: "qos", Value: "debug"},
	}, r.Settings)
	require.True(t, filepath.IsAbs(r.Source))
}

func TestResolveErrors(t *testing.T) {
	def, err := Load(writeDefinition(t))
	require.NoError(t, err)

	tests := []struct {
		name string
		sel  Selection
	}{
		{"unknown case", Selection{Case: "ITER"}},
		{"unknown profile", Selection{Profile: "production"}},
		{"unknown parameter", Selection{Set: map[string]string{"missing": "1"}}},
		{"out of bounds", Selection{Set: map[string]string{"SBV_W": "20"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := def.Resolve(tt.sel)
			require.True(t, errdefs.IsValidationError(err), "got %v", err)
		})
	}
}

func TestSimulationStagesInputs(t *testing.T) {
	def, err := Load(writeDefinition(t))
	require.NoError(t, err)
	r, err := def.Resolve(Selection{Set: map[string]string{"SBV_W": "8.7"}})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "sim_1")
	sim, err := r.Simulation(dir, run.DefaultLayout())
	require.NoError(t, err)
	require.Equal(t, "sim_1", sim.Name)
	require.False(t, sim.HasStarted())

	pending := sim.Current()
	require.Contains(t, pending.Inputs.Files, "ips.ftx.config")
	require.Equal(t, 8.7, pending.Inputs.Parameters["SBV_W"].Value)
	require.Equal(t, "ips.py --simulation={config_files} --platform={platform_file}", pending.Batch.TemplateCommands[0])

	// the resolved set stays untouched
	require.NotContains(t, r.Parameters, run.SimRootParameter)
}

func TestGroupSamplesReproducibly(t *testing.T) {
	def, err := Load(writeDefinition(t))
	require.NoError(t, err)
	r, err := def.Resolve(Selection{})
	require.NoError(t, err)

	build := func() []float64 {
		g, err := r.Group(t.TempDir(), run.DefaultLayout(), GroupOptions{Count: 3, Seed: 42})
		require.NoError(t, err)
		require.Len(t, g.Simulations, 3)
		require.Equal(t, 2, g.ResourceUnit)
		var values []float64
		for _, sim := range g.Simulations {
			p := sim.Current().Inputs.Parameters["SBV_W"]
			require.GreaterOrEqual(t, p.Value, 8.68)
			require.LessOrEqual(t, p.Value, 8.9)
			require.Equal(t, 1.0, sim.Current().Inputs.Parameters["END_TIME"].Value)
			values = append(values, p.Value)
		}
		require.Equal(t, "sample_0", g.Simulations[0].Name)
		return values
	}
	require.Equal(t, build(), build())

	_, err = r.Group(t.TempDir(), run.DefaultLayout(), GroupOptions{Count: 0})
	require.True(t, errdefs.IsValidationError(err))
}

func TestLoadRequiresSourceAndCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  commands: [x]\n"), 0644))
	_, err := Load(path)
	require.True(t, errdefs.IsValidationError(err))

	require.NoError(t, os.WriteFile(path, []byte("input:\n  source: x\n"), 0644))
	_, err = Load(path)
	require.True(t, errdefs.IsValidationError(err))
}

func TestLoadMergesBaseScript(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/bash\n#SBATCH --nodes=4\n#SBATCH --constraint=cpu\n#SBATCH --exclusive\n\nmodule load python\nips.py --simulation={config_files}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.sbatch"), []byte(script), 0644))
	definition := "input:\n  source: inputs\nbatch:\n  script: base.sbatch\n  settings: {nodes: 2, qos: regular}\n"
	path := filepath.Join(dir, "ftx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(definition), 0644))

	def, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Settings{
		{Flag: "nodes", Value: "2"},
		{Flag: "constraint", Value: "cpu"},
		{Flag: "exclusive"},
		{Flag: "qos", Value: "regular"},
	}, def.Batch.Settings)
	require.Equal(t, []string{"module load python", "ips.py --simulation={config_files}"}, def.Batch.Commands)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.sbatch"), []byte("no shebang\n"), 0644))
	_, err = Load(path)
	require.ErrorIs(t, err, scheduler.ErrInvalidScriptFormat)
}
