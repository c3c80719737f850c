package cmd

import (
	"context"
	"fmt"

	"github.com/PieterjanRobbe/ftxctl/internal/config"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"github.com/spf13/cobra"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status [path...]",
	Short: "Show the status of saved simulations",
	Long: `Show one status line per simulation for every path given (default: the
current directory). Unlike 'run status', the lines are printed even with
--quiet, and a summary per status is printed for groups.`,
	Example: `  ftxctl status ./PISCES
  ftxctl status sim_1 sim_2 --verbose`,
	ValidArgsFunction: stateFileCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		env := newEnv(config.Load())
		for _, path := range args {
			t, err := loadTarget(path)
			if err != nil {
				return err
			}
			printStatus(cmd.Context(), t, env.Scheduler)
		}
		return nil
	},
}

func printStatus(ctx context.Context, t *target, sched scheduler.Scheduler) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.Group != nil {
		fmt.Println(utils.StyleTitle(fmt.Sprintf("Group %s (%d simulations, %d submissions)",
			t.Dir, len(t.Group.Simulations), t.Group.RunNumber+1)))
	}

	counts := make(map[string]int)
	var order []string
	for _, sim := range t.simulations() {
		status, err := sim.Status(ctx, sched)
		if err != nil {
			utils.PrintWarning("%s: %v", sim.Name, err)
		}
		line := sim.PrintName() + " " + styleStatus(status)
		if statusVerbose {
			line += fmt.Sprintf("  [id %s, %d runs", sim.ID, len(sim.Runs))
			if r := sim.Current(); r != nil && r.JobID != "" {
				line += ", job " + r.JobID
			}
			line += "]"
		}
		fmt.Println(line)

		if counts[status.Phrase()] == 0 {
			order = append(order, status.Phrase())
		}
		counts[status.Phrase()]++
	}

	if t.Group != nil {
		fmt.Println()
		for _, phrase := range order {
			fmt.Printf("  %s %s\n", utils.StyleNumber(counts[phrase]), phrase)
		}
	}
}

func styleStatus(status run.Status) string {
	phrase := status.Phrase()
	switch {
	case status == run.StatusFinished:
		return utils.StyleSuccess(phrase)
	case status.IsTerminal() || status == run.StatusUnknown:
		return utils.StyleWarning(phrase)
	default:
		return utils.StyleInfo(phrase)
	}
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "Also show simulation id, number of runs and job id")
	rootCmd.AddCommand(statusCmd)
}
