package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// EnvPrefix prefixes every environment override, e.g. FTXCTL_GROUP_RESOURCE_SETTING.
const EnvPrefix = "FTXCTL"

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (FTXCTL_*)
// 3. User config file (~/.config/ftxctl/config.yaml)
// 4. System config file (/etc/ftxctl/config.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	// User config (highest priority)
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "ftxctl"))
	}

	// Home directory fallback
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".ftxctl"))
	}

	// System-wide config (lower priority)
	viper.AddConfigPath("/etc/ftxctl")

	// Current directory
	viper.AddConfigPath(".")

	// Environment variables
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults (lowest priority)
	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for all config keys
func setDefaults() {
	defaults := Default()
	viper.SetDefault("scheduler.sbatch_bin", defaults.Scheduler.SbatchBin)
	viper.SetDefault("scheduler.squeue_bin", defaults.Scheduler.SqueueBin)
	viper.SetDefault("group.resource_setting", defaults.Group.ResourceSetting)
	viper.SetDefault("restart.checkpoint_command", defaults.Restart.CheckpointCommand)
	viper.SetDefault("restart.checkpoint_source", defaults.Restart.CheckpointSource)
	viper.SetDefault("restart.state_source", defaults.Restart.StateSource)
}

// Keys lists the keys written by SaveConfig and shown by `config show`.
func Keys() []string {
	return []string{
		"scheduler.sbatch_bin",
		"scheduler.squeue_bin",
		"group.resource_setting",
		"restart.checkpoint_command",
		"restart.checkpoint_source",
		"restart.state_source",
	}
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".ftxctl", ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, "ftxctl", ConfigFilename+"."+ConfigType), nil
}

// SaveConfig saves current Viper config to user config file
func SaveConfig() (string, error) {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// ValidateBinary checks if a binary exists and is executable
func ValidateBinary(binPath string) bool {
	if binPath == "" {
		return false
	}

	// If it's a full path, check directly
	if filepath.IsAbs(binPath) {
		info, err := os.Stat(binPath)
		if err != nil {
			return false
		}
		return info.Mode()&0111 != 0
	}

	// Otherwise, try to find it in PATH
	_, err := exec.LookPath(binPath)
	return err == nil
}

// DetectSchedulerBins looks up sbatch and squeue in PATH.
// Missing binaries are returned as empty strings.
func DetectSchedulerBins() (sbatch string, squeue string) {
	if path, err := exec.LookPath("sbatch"); err == nil {
		sbatch = path
	}
	if path, err := exec.LookPath("squeue"); err == nil {
		squeue = path
	}
	return sbatch, squeue
}

// ForceDetectAndSave re-detects the scheduler binaries from the current PATH
// and writes the user config file. It returns the path written and whether
// any binary changed.
func ForceDetectAndSave() (string, bool, error) {
	updated := false

	sbatch, squeue := DetectSchedulerBins()
	if sbatch != "" && viper.GetString("scheduler.sbatch_bin") != sbatch {
		viper.Set("scheduler.sbatch_bin", sbatch)
		updated = true
	}
	if squeue != "" && viper.GetString("scheduler.squeue_bin") != squeue {
		viper.Set("scheduler.squeue_bin", squeue)
		updated = true
	}

	// Always save (even if nothing changed, to create the file)
	path, err := SaveConfig()
	if err != nil {
		return "", false, err
	}
	return path, updated, nil
}
