package cmd

import (
	"fmt"

	"github.com/PieterjanRobbe/ftxctl/internal/config"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:     "scheduler",
	Aliases: []string{"sched"},
	Short:   "Display scheduler information",
	Long: `Display information about the SLURM binaries ftxctl submits with.

Shows the sbatch and squeue paths, the SLURM version and availability status.`,
	Example: `  ftxctl scheduler           # Show scheduler information
  ftxctl sched               # Short alias`,
	Run: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	info := scheduler.NewSlurmScheduler(cfg.Scheduler.SbatchBin, cfg.Scheduler.SqueueBin).GetInfo()

	// Display scheduler information (no [FTX] prefix for structured output)
	fmt.Println("Scheduler Information:")
	fmt.Printf("  Type:      %s\n", utils.StyleInfo(info.Type))
	fmt.Printf("  Submit:    %s\n", utils.StylePath(info.Binary))
	fmt.Printf("  Queue:     %s\n", utils.StylePath(info.QueueBin))

	if info.Version != "" {
		fmt.Printf("  Version:   %s\n", utils.StyleNumber(info.Version))
	}

	switch {
	case info.Available:
		fmt.Printf("  Status:    %s\n", utils.StyleSuccess("Available"))
	case info.InJob:
		fmt.Printf("  Status:    %s (inside job)\n", utils.StyleWarning("Unavailable"))
		fmt.Println()
		fmt.Println("You are currently inside a SLURM job (detected via SLURM_JOB_ID).")
		fmt.Println("Call ftxctl from a login node or from cron instead.")
	default:
		fmt.Printf("  Status:    %s\n", utils.StyleError("Not Found"))
		fmt.Println()
		fmt.Println("sbatch was not found. Set scheduler.sbatch_bin with 'ftxctl config set'.")
	}
}
