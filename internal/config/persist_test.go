package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func isolate(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	if err := InitViper(); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}

	cfg := Load()
	want := Default()
	if cfg.Scheduler != want.Scheduler || cfg.Group != want.Group || cfg.Restart != want.Restart {
		t.Errorf("Load() = %+v; want defaults %+v", cfg, want)
	}
}

func TestLoadReadsUserConfigAndEnv(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".config", "ftxctl", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	content := "restart:\n  checkpoint_command: cp {in} {out}\nscheduler:\n  sbatch_bin: /opt/slurm/bin/sbatch\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FTXCTL_GROUP_RESOURCE_SETTING", "ntasks")

	if err := InitViper(); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}
	cfg := Load()

	if cfg.Restart.CheckpointCommand != "cp {in} {out}" {
		t.Errorf("CheckpointCommand = %q", cfg.Restart.CheckpointCommand)
	}
	if cfg.Scheduler.SbatchBin != "/opt/slurm/bin/sbatch" {
		t.Errorf("SbatchBin = %q", cfg.Scheduler.SbatchBin)
	}
	if cfg.Group.ResourceSetting != "ntasks" {
		t.Errorf("ResourceSetting = %q; want ntasks from env", cfg.Group.ResourceSetting)
	}
	if cfg.Scheduler.SqueueBin != "squeue" {
		t.Errorf("SqueueBin = %q; want default", cfg.Scheduler.SqueueBin)
	}
}

func TestLoadReturnsIndependentConfigs(t *testing.T) {
	isolate(t)
	if err := InitViper(); err != nil {
		t.Fatal(err)
	}
	a := Load()
	a.Restart.CheckpointSource = "changed"
	if b := Load(); b.Restart.CheckpointSource == "changed" {
		t.Errorf("Load returned shared state")
	}
}

func TestLayoutUsesRestartSources(t *testing.T) {
	cfg := Default()
	cfg.Restart.CheckpointSource = "work/xolotl/xolotlStop.h5"
	layout := cfg.Layout()
	if layout.CheckpointSource != "work/xolotl/xolotlStop.h5" {
		t.Errorf("CheckpointSource = %q", layout.CheckpointSource)
	}
	if layout.StateSource != Default().Restart.StateSource {
		t.Errorf("StateSource = %q", layout.StateSource)
	}
}
