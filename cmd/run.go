package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/config"
	"github.com/PieterjanRobbe/ftxctl/internal/output"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"github.com/PieterjanRobbe/ftxctl/internal/store"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"github.com/spf13/cobra"
)

var assumeYes bool

// Action names accepted by `ftxctl run`.
type Action string

const (
	ActionStart         Action = "start"
	ActionStep          Action = "step"
	ActionStatus        Action = "status"
	ActionPostprocess   Action = "postprocess"
	ActionDeleteLastRun Action = "delete-last-run"
	ActionDeleteAllRuns Action = "delete-all-runs"
)

type actionSpec struct {
	Short   string
	Saves   bool // persist the object after a successful run
	Confirm string
	Run     func(ctx context.Context, t *target, env simulation.Env) error
}

// actions is the closed table of what `ftxctl run` can do.
var actions = map[Action]actionSpec{
	ActionStart: {
		Short: "Submit the first run of every simulation that has not started",
		Saves: true,
		Run:   runStart,
	},
	ActionStep: {
		Short: "Start or restart whatever needs it; leave the rest alone",
		Saves: true,
		Run:   runStep,
	},
	ActionStatus: {
		Short: "Print the status of every simulation",
		Run:   runStatus,
	},
	ActionPostprocess: {
		Short: "Collect surface and retention tables into output.yaml",
		Run:   runPostprocess,
	},
	ActionDeleteLastRun: {
		Short:   "Remove the last run of every simulation from disk and history",
		Saves:   true,
		Confirm: "Delete the last run of %s?",
		Run: func(ctx context.Context, t *target, env simulation.Env) error {
			for _, sim := range t.simulations() {
				if err := sim.DeleteLastRun(); err != nil {
					return err
				}
			}
			return nil
		},
	},
	ActionDeleteAllRuns: {
		Short:   "Remove every run of every simulation; the next start begins from scratch",
		Saves:   true,
		Confirm: "Delete ALL runs of %s?",
		Run: func(ctx context.Context, t *target, env simulation.Env) error {
			for _, sim := range t.simulations() {
				if err := sim.DeleteAllRuns(); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// actionNames returns the table keys in sorted order.
func actionNames() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// ParseAction validates name against the action table.
func ParseAction(name string) (Action, error) {
	a := Action(strings.TrimSpace(name))
	if _, ok := actions[a]; !ok {
		return "", fmt.Errorf("unknown action %q (expected one of: %s)", name, strings.Join(actionNames(), ", "))
	}
	return a, nil
}

var runCmd = &cobra.Command{
	Use:   "run <action> [path]",
	Short: "Perform an action on a saved simulation or simulation group",
	Long: `Perform an action on the simulation or simulation group saved in path
(default: the current directory). The object is saved again only when the
action succeeds; a failed action leaves the saved state untouched, so the same
command can simply be repeated.

Actions:
` + actionHelp(),
	Example: `  ftxctl run start ./PISCES
  ftxctl run step ./PISCES              # typically from cron
  ftxctl run status ./PISCES/simulation_group.yaml
  ftxctl run delete-last-run ./sim_1 --yes`,
	Args: cobra.RangeArgs(1, 2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return actionNames(), cobra.ShellCompDirectiveNoFileComp
		}
		return stateFileCompletion(cmd, args, toComplete)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := ParseAction(args[0])
		if err != nil {
			return err
		}
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		return performAction(cmd.Context(), action, path, newEnv(config.Load()))
	},
}

func actionHelp() string {
	var b strings.Builder
	for _, name := range actionNames() {
		fmt.Fprintf(&b, "  %-16s %s\n", name, actions[Action(name)].Short)
	}
	return b.String()
}

// performAction loads the object in path, runs the action and saves the
// object when the action asks for it.
func performAction(ctx context.Context, action Action, path string, env simulation.Env) error {
	if ctx == nil {
		ctx = context.Background()
	}
	spec := actions[action]

	t, err := loadTarget(path)
	if err != nil {
		return err
	}

	if spec.Confirm != "" {
		ok, err := confirm(fmt.Sprintf(spec.Confirm, t.Dir), assumeYes)
		if err != nil {
			return err
		}
		if !ok {
			utils.PrintNote("Cancelled")
			return nil
		}
	}

	if err := spec.Run(ctx, t, env); err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	if spec.Saves {
		return t.save()
	}
	return nil
}

func runStart(ctx context.Context, t *target, env simulation.Env) error {
	if t.Group != nil {
		_, err := t.Group.Start(ctx, env)
		return err
	}
	return t.Simulation.Start(ctx, env)
}

func runStep(ctx context.Context, t *target, env simulation.Env) error {
	if t.Group != nil {
		n, err := t.Group.Step(ctx, env)
		if err == nil && n == 0 {
			utils.PrintMessage("Nothing to submit")
		}
		return err
	}
	action, err := t.Simulation.Step(ctx, env)
	if err == nil && action == simulation.ActionNone {
		utils.PrintMessage("Nothing to submit for %s", utils.StyleName(t.Simulation.Name))
	}
	return err
}

func runStatus(ctx context.Context, t *target, env simulation.Env) error {
	if t.Group != nil {
		t.Group.PrintStatus(ctx, env.Scheduler)
		return nil
	}
	t.Simulation.PrintStatus(ctx, env.Scheduler)
	return nil
}

func runPostprocess(ctx context.Context, t *target, env simulation.Env) error {
	saved := 0
	for _, sim := range t.simulations() {
		bundle, err := output.Collect(sim)
		if err != nil {
			if t.Group == nil {
				return err
			}
			utils.PrintWarning("Skipping %s: %v", utils.StyleName(sim.Name), err)
			continue
		}
		path := filepath.Join(sim.Path, store.OutputFile)
		if err := store.Save(path, store.KindOutput, bundle, true); err != nil {
			return err
		}
		utils.PrintSuccess("Wrote %s", utils.StylePath(path))
		saved++
	}
	if saved == 0 {
		return fmt.Errorf("no simulation produced output")
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation before deleting runs")
	rootCmd.AddCommand(runCmd)
}
