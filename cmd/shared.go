package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/PieterjanRobbe/ftxctl/internal/checkpoint"
	"github.com/PieterjanRobbe/ftxctl/internal/config"
	"github.com/PieterjanRobbe/ftxctl/internal/group"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"github.com/PieterjanRobbe/ftxctl/internal/store"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"github.com/spf13/cobra"
)

// Exit codes used by various commands
const (
	// Generic error code
	ExitCodeError = 1
)

// newEnv builds the scheduler and checkpoint collaborators from cfg.
func newEnv(cfg config.Config) simulation.Env {
	return simulation.Env{
		Scheduler: scheduler.NewSlurmScheduler(cfg.Scheduler.SbatchBin, cfg.Scheduler.SqueueBin),
		Extractor: checkpoint.NewCommandExtractor(cfg.Restart.CheckpointCommand),
	}
}

// target is the object stored in one directory: a simulation or a group.
type target struct {
	Dir        string
	Kind       store.Kind
	Simulation *simulation.Simulation
	Group      *group.Group
}

// resolveDir accepts a directory or the path of a stored YAML file.
func resolveDir(path string) (string, error) {
	if path == "" {
		path = "."
	}
	if utils.FileExists(path) && utils.IsStateFile(path) {
		path = filepath.Dir(path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !utils.DirExists(abs) {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

func loadTarget(path string) (*target, error) {
	dir, err := resolveDir(path)
	if err != nil {
		return nil, err
	}
	kind, err := store.Detect(dir)
	if err != nil {
		return nil, err
	}

	t := &target{Dir: dir, Kind: kind}
	switch kind {
	case store.KindGroup:
		t.Group, err = store.LoadGroup(dir)
	default:
		t.Simulation, err = store.LoadSimulation(dir)
	}
	if err != nil {
		return nil, err
	}
	utils.PrintDebug("Loaded %s from %s", kind, utils.StylePath(dir))
	return t, nil
}

func (t *target) save() error {
	if t.Group != nil {
		return store.SaveGroup(t.Group, true)
	}
	return store.SaveSimulation(t.Simulation, true)
}

func (t *target) simulations() []*simulation.Simulation {
	if t.Group != nil {
		return t.Group.Simulations
	}
	return []*simulation.Simulation{t.Simulation}
}

// confirm asks a yes/no question. Without a terminal it refuses unless
// assumeYes is set, so cron jobs never block on a prompt.
func confirm(message string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !utils.IsInteractiveShell() {
		utils.PrintWarning("Not asking %q without a terminal; pass --yes to confirm", message)
		return false, nil
	}
	ok := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// stateFileCompletion completes directories and stored YAML files.
func stateFileCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	dir, prefix := filepath.Split(toComplete)
	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	entries, err := os.ReadDir(readDir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var suggestions []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}
		switch {
		case entry.IsDir():
			suggestions = append(suggestions, dir+name+"/")
		case name == store.SimulationFile || name == store.GroupFile:
			suggestions = append(suggestions, dir+name)
		}
	}
	return suggestions, cobra.ShellCompDirectiveNoSpace
}
