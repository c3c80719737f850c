package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFlagName(t *testing.T) {
	fs := pflag.NewFlagSet("define", pflag.ContinueOnError)
	var dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "")
	fs.SetNormalizeFunc(normalizeFlagName)

	require.NoError(t, fs.Parse([]string{"--dry_run"}))
	require.True(t, dryRun)
}

func TestRootAcceptsSnakeCaseFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("env_file"))
}
