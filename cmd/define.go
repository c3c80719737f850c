package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/casefile"
	"github.com/PieterjanRobbe/ftxctl/internal/config"
	"github.com/PieterjanRobbe/ftxctl/internal/store"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"github.com/spf13/cobra"
)

// defineOptions holds the flags of `ftxctl define`.
type defineOptions struct {
	Case      string
	Profile   string
	Set       []string
	Count     int
	Seed      int64
	Prefix    string
	Overwrite bool
	DryRun    bool
}

var defineOpts defineOptions

var defineCmd = &cobra.Command{
	Use:   "define <definition.yaml> <dir>",
	Short: "Create a simulation (or a group of sampled simulations) from a definition file",
	Long: `Read a definition file, apply the chosen case and profile, stage the input
files and save an unstarted simulation in dir.

With --count N, N simulations are created under dir with every parameter
that has bounds sampled from a generator seeded with --seed, and saved as one
simulation group that is submitted as a single job.`,
	Example: `  ftxctl define ftx.yaml ./sim_1 --case PISCES --profile debug
  ftxctl define ftx.yaml ./study --count 32 --seed 7 --set END_TIME=1
  ftxctl run start ./study`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDefine(args[0], args[1], defineOpts, config.Load())
	},
}

func parseSetFlags(values []string) (map[string]string, error) {
	set := make(map[string]string, len(values))
	for _, kv := range values {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --set %q, expected NAME=VALUE", kv)
		}
		set[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return set, nil
}

func runDefine(definitionPath, dir string, opts defineOptions, cfg config.Config) error {
	set, err := parseSetFlags(opts.Set)
	if err != nil {
		return err
	}
	// saved paths must not depend on the directory ftxctl is called from
	if dir, err = filepath.Abs(dir); err != nil {
		return err
	}

	def, err := casefile.Load(definitionPath)
	if err != nil {
		return err
	}
	resolved, err := def.Resolve(casefile.Selection{Case: opts.Case, Profile: opts.Profile, Set: set})
	if err != nil {
		return err
	}

	if opts.DryRun {
		fmt.Printf("%s %s\n", utils.StyleTitle("Source:"), resolved.Source)
		fmt.Println(utils.StyleTitle("Parameters:"))
		fmt.Print(resolved.Describe())
		return nil
	}

	if opts.Count > 0 {
		g, err := resolved.Group(dir, cfg.Layout(), casefile.GroupOptions{
			Count:           opts.Count,
			Seed:            opts.Seed,
			Prefix:          opts.Prefix,
			ResourceSetting: cfg.Group.ResourceSetting,
		})
		if err != nil {
			return err
		}
		if err := store.SaveGroup(g, opts.Overwrite); err != nil {
			return err
		}
		utils.PrintSuccess("Defined a group of %s simulations in %s", utils.StyleNumber(len(g.Simulations)), utils.StylePath(g.Path))
		utils.PrintHint("Submit with: ftxctl run start %s", g.Path)
		return nil
	}

	sim, err := resolved.Simulation(dir, cfg.Layout())
	if err != nil {
		return err
	}
	if err := store.SaveSimulation(sim, opts.Overwrite); err != nil {
		return err
	}
	utils.PrintSuccess("Defined simulation %s in %s", utils.StyleName(sim.Name), utils.StylePath(sim.Path))
	utils.PrintHint("Submit with: ftxctl run start %s", sim.Path)
	return nil
}

func init() {
	f := defineCmd.Flags()
	f.StringVar(&defineOpts.Case, "case", "", "Case whose parameter overrides to apply")
	f.StringVarP(&defineOpts.Profile, "profile", "p", "", "Profile whose parameter and scheduler overrides to apply")
	f.StringArrayVar(&defineOpts.Set, "set", nil, "Override a parameter, NAME=VALUE (repeatable)")
	f.IntVarP(&defineOpts.Count, "count", "n", 0, "Create a group of this many sampled simulations")
	f.Int64Var(&defineOpts.Seed, "seed", 1, "Seed for sampling with --count")
	f.StringVar(&defineOpts.Prefix, "prefix", "sample", "Directory prefix of group members")
	f.BoolVar(&defineOpts.Overwrite, "overwrite", false, "Replace an existing saved simulation or group")
	f.BoolVar(&defineOpts.DryRun, "dry-run", false, "Print the resolved parameters and exit")
	rootCmd.AddCommand(defineCmd)
}
