// Package config holds the ftxctl settings read from config files, the
// environment and command-line flags.
package config

import (
	"github.com/PieterjanRobbe/ftxctl/internal/checkpoint"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/spf13/viper"
)

const VERSION = "0.4.0"

// SchedulerConfig names the scheduler binaries.
type SchedulerConfig struct {
	SbatchBin string
	SqueueBin string
}

// GroupConfig controls shared submissions.
type GroupConfig struct {
	ResourceSetting string // batch setting multiplied by the number of simulations
}

// RestartConfig controls how a restart is seeded.
type RestartConfig struct {
	CheckpointCommand string // shell template with {in} and {out}
	CheckpointSource  string // engine checkpoint, relative to the run directory
	StateSource       string // engine state, relative to the run directory
}

// Config holds application settings. Every invocation gets its own copy
// from Load.
type Config struct {
	Debug     bool
	Quiet     bool
	Version   string
	Scheduler SchedulerConfig
	Group     GroupConfig
	Restart   RestartConfig
}

// Default returns a fresh Config with built-in values.
func Default() Config {
	layout := run.DefaultLayout()
	return Config{
		Version: VERSION,
		Scheduler: SchedulerConfig{
			SbatchBin: "sbatch",
			SqueueBin: "squeue",
		},
		Group: GroupConfig{
			ResourceSetting: "nodes",
		},
		Restart: RestartConfig{
			CheckpointCommand: checkpoint.DefaultCommand,
			CheckpointSource:  layout.CheckpointSource,
			StateSource:       layout.StateSource,
		},
	}
}

// Load returns a fresh Config with every key viper knows about applied on
// top of Default. InitViper must have run first.
func Load() Config {
	cfg := Default()
	cfg.Debug = viper.GetBool("debug")
	cfg.Quiet = viper.GetBool("quiet")

	if bin := viper.GetString("scheduler.sbatch_bin"); bin != "" {
		cfg.Scheduler.SbatchBin = bin
	}
	if bin := viper.GetString("scheduler.squeue_bin"); bin != "" {
		cfg.Scheduler.SqueueBin = bin
	}
	if setting := viper.GetString("group.resource_setting"); setting != "" {
		cfg.Group.ResourceSetting = setting
	}
	if command := viper.GetString("restart.checkpoint_command"); command != "" {
		cfg.Restart.CheckpointCommand = command
	}
	if source := viper.GetString("restart.checkpoint_source"); source != "" {
		cfg.Restart.CheckpointSource = source
	}
	if source := viper.GetString("restart.state_source"); source != "" {
		cfg.Restart.StateSource = source
	}
	return cfg
}

// Layout returns the run file layout with the configured restart sources.
func (c Config) Layout() run.Layout {
	layout := run.DefaultLayout()
	layout.CheckpointSource = c.Restart.CheckpointSource
	layout.StateSource = c.Restart.StateSource
	return layout
}
