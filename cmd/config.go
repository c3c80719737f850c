package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/config"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	showPath  bool
	initForce bool
)

// configKeysCompletion returns config keys for shell completion
func configKeysCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.Keys(), cobra.ShellCompDirectiveNoFileComp
	}
	if len(args) == 1 {
		return configValueCompletion(args[0]), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// configValueCompletion returns suggested values for a config key
func configValueCompletion(key string) []string {
	switch key {
	case "group.resource_setting":
		return []string{"nodes", "ntasks"}
	case "restart.checkpoint_command":
		return []string{"cp {in} {out}"}
	default:
		return nil
	}
}

// getConfigEnvVars returns the environment variable names that override the
// known keys, sorted.
func getConfigEnvVars() []string {
	vars := make([]string, 0, len(config.Keys()))
	for _, key := range config.Keys() {
		vars = append(vars, config.EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
	sort.Strings(vars)
	return vars
}

func isKnownKey(key string) bool {
	for _, k := range config.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ftxctl configuration",
	Long: `Manage ftxctl configuration settings.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (FTXCTL_*, also read from ./.env)
  3. User config file (~/.config/ftxctl/config.yaml)
  4. ~/.ftxctl/config.yaml
  5. System config file (/etc/ftxctl/config.yaml)
  6. ./config.yaml
  7. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showPath {
			configPath, err := config.GetUserConfigPath()
			if err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
			fmt.Println(configPath)
			return nil
		}

		fmt.Println(utils.StyleTitle("Config File:"))
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("  %s\n", utils.StylePath(used))
		} else {
			fmt.Printf("  %s (use 'ftxctl config init' to create)\n", utils.StyleWarning("No config file found"))
		}
		fmt.Println()

		cfg := config.Load()
		fmt.Println(utils.StyleTitle("Scheduler:"))
		fmt.Printf("  sbatch_bin:         %s\n", cfg.Scheduler.SbatchBin)
		fmt.Printf("  squeue_bin:         %s\n", cfg.Scheduler.SqueueBin)
		fmt.Println()
		fmt.Println(utils.StyleTitle("Group:"))
		fmt.Printf("  resource_setting:   %s\n", cfg.Group.ResourceSetting)
		fmt.Println()
		fmt.Println(utils.StyleTitle("Restart:"))
		fmt.Printf("  checkpoint_source:  %s\n", cfg.Restart.CheckpointSource)
		fmt.Printf("  state_source:       %s\n", cfg.Restart.StateSource)
		fmt.Printf("  checkpoint_command: %s\n", cfg.Restart.CheckpointCommand)
		fmt.Println()

		fmt.Println(utils.StyleTitle("Environment Variable Overrides:"))
		hasEnvOverrides := false
		for _, envVar := range getConfigEnvVars() {
			if val := os.Getenv(envVar); val != "" {
				fmt.Printf("  %s=%s\n", envVar, val)
				hasEnvOverrides = true
			}
		}
		if !hasEnvOverrides {
			fmt.Printf("  %s\n", utils.StyleInfo("none"))
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Get a configuration value",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := viper.Get(args[0])
		if value == nil {
			return fmt.Errorf("unknown config key: %s", args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the user config file.

Examples:
  ftxctl config set scheduler.sbatch_bin /opt/slurm/bin/sbatch
  ftxctl config set group.resource_setting ntasks
  ftxctl config set restart.checkpoint_command 'cp {in} {out}'`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if !isKnownKey(key) {
			utils.PrintWarning("'%s' is not a standard config key", key)
		}
		if key == "restart.checkpoint_command" && (!strings.Contains(value, "{in}") || !strings.Contains(value, "{out}")) {
			return fmt.Errorf("checkpoint command must contain {in} and {out}")
		}

		viper.Set(key, value)
		configPath, err := config.SaveConfig()
		if err != nil {
			return err
		}
		utils.PrintSuccess("Set %s = %s", utils.StyleInfo(key), utils.StyleInfo(value))
		utils.PrintNote("Config saved to: %s", configPath)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with defaults",
	Long:  "Create the user config file with default values and the sbatch/squeue binaries found in PATH.",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}

		if utils.FileExists(configPath) && !initForce {
			ok, err := confirm(fmt.Sprintf("Config file %s already exists. Overwrite?", configPath), false)
			if err != nil {
				return err
			}
			if !ok {
				utils.PrintNote("Cancelled")
				return nil
			}
		}

		path, updated, err := config.ForceDetectAndSave()
		if err != nil {
			return err
		}
		if updated {
			utils.PrintSuccess("Config file created with auto-detected settings")
		} else {
			utils.PrintSuccess("Config file created")
		}
		fmt.Printf("  Location: %s\n", utils.StylePath(path))

		fmt.Println()
		fmt.Println(utils.StyleTitle("Detected settings:"))
		for _, key := range []string{"scheduler.sbatch_bin", "scheduler.squeue_bin"} {
			bin := viper.GetString(key)
			if config.ValidateBinary(bin) {
				fmt.Printf("  %s: %s\n", key, bin)
			} else {
				fmt.Printf("  %s: %s\n", key, utils.StyleWarning("not found"))
			}
		}
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&showPath, "path", false, "Show only the config file path")
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file without asking")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(configCmd)
}
