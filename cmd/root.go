package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/config"
	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/store"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	debugMode bool
	quietMode bool
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "ftxctl",
	Short: "ftxctl: submit, restart and batch FTX simulations on SLURM clusters.",
	Long: `ftxctl drives long-running FTX simulations through a batch scheduler.

Every invocation loads the saved simulation (or simulation group), asks the
scheduler and the run logs what happened since the last call, and decides
what to do next: start, restart from the last checkpoint, or nothing.
It is safe to call from cron.`,
	Version:       config.VERSION,
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Step 1: .env in the working directory (or --env-file)
		if err := loadEnvFile(envFile); err != nil {
			return err
		}

		// Step 2: Initialize Viper (read config file, env vars)
		if err := config.InitViper(); err != nil {
			utils.PrintDebug("Error reading config file: %v", err)
		}

		// Step 3: Apply command-line flags (highest priority)
		utils.QuietMode = quietMode
		if debugMode {
			utils.DebugMode = true
			cfg := config.Load()
			utils.PrintDebug("Debug mode enabled")
			utils.PrintDebug("ftxctl Version: %s", utils.StyleInfo(config.VERSION))
			utils.PrintDebug("sbatch: %s, squeue: %s", cfg.Scheduler.SbatchBin, cfg.Scheduler.SqueueBin)
			utils.PrintDebug("Checkpoint command: %s", cfg.Restart.CheckpointCommand)
		}
		return nil
	},
}

func loadEnvFile(path string) error {
	if path == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// normalizeFlagName accepts snake_case spellings of dashed flags, so
// --dry_run and --env_file work like --dry-run and --env-file.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra's automatic error printing is silenced.
		utils.PrintError("%v", err)
		if errdefs.IsValidationError(err) || store.IsPersistenceConflict(err) {
			utils.PrintHint("Nothing was saved. Fix the cause and run the same command again.")
		}
		os.Exit(ExitCodeError)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Only print warnings and errors")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file instead of ./.env")
}
