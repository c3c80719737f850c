// Package casefile reads the declarative YAML definition of a simulation
// campaign and turns a chosen case and profile into simulations.
//
// A definition looks like:
//
//	input:
//	  source: $HOME/ftx/inputs/PISCES
//	  parameters:
//	    SBV_W: {nominal: 8.79, lower: 8.68, upper: 8.9, description: surface binding energy}
//	    burstingFactor: {nominal: 2e8, lower: 1e2, upper: 1e9, log_scale: true}
//	    START_MODE: {nominal: INIT}
//	cases:
//	  PISCES:
//	    parameters: {SBV_W: 8.8}
//	profiles:
//	  debug:
//	    parameters: {END_TIME: 0.01}
//	    settings: {time: "00:30:00", qos: debug}
//	batch:
//	  script: perlmutter.sbatch # optional base script
//	  settings: {nodes: 1, time: "24:00:00", output: log.slurm.stdOut}
//	  commands:
//	    - ips.py --simulation={config_files} --platform={platform_file} --log={log_file}
package casefile

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/group"
	"github.com/PieterjanRobbe/ftxctl/internal/input"
	"github.com/PieterjanRobbe/ftxctl/internal/parameter"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/PieterjanRobbe/ftxctl/internal/scheduler"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"gopkg.in/yaml.v3"
)

// ParameterSpec declares one parameter. Nominal is a number or, for symbolic
// parameters, a string.
type ParameterSpec struct {
	Nominal     any      `yaml:"nominal"`
	Lower       *float64 `yaml:"lower,omitempty"`
	Upper       *float64 `yaml:"upper,omitempty"`
	LogScale    bool     `yaml:"log_scale,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Settings is an ordered mapping of scheduler flags to values. Order is kept
// so batch scripts list directives the way they were written.
type Settings []scheduler.Setting

// UnmarshalYAML decodes a mapping node while keeping key order.
func (s *Settings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: settings must be a mapping", node.Line)
	}
	out := make(Settings, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: setting %q must be a scalar", value.Line, key.Value)
		}
		out = append(out, scheduler.Setting{Flag: key.Value, Value: value.Value})
	}
	*s = out
	return nil
}

// Override holds the parameter values a case or profile replaces.
type Override struct {
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Settings   Settings       `yaml:"settings,omitempty"`
}

// Definition is a parsed definition file.
type Definition struct {
	Input struct {
		Source     string                   `yaml:"source"`
		Parameters map[string]ParameterSpec `yaml:"parameters"`
	} `yaml:"input"`
	Cases    map[string]Override `yaml:"cases,omitempty"`
	Profiles map[string]Override `yaml:"profiles,omitempty"`
	Batch    struct {
		Script   string   `yaml:"script,omitempty"` // existing sbatch script used as the base
		Settings Settings `yaml:"settings"`
		Commands []string `yaml:"commands"`
	} `yaml:"batch"`

	dir string
}

// Selection picks a case and a profile. Empty names select no overrides.
type Selection struct {
	Case    string
	Profile string
	Set     map[string]string // final NAME=VALUE overrides
}

// Load reads and parses a definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition file %s: %w", path, err)
	}
	if def.Input.Source == "" {
		return nil, errdefs.Validation("input.source", "missing in %s", path)
	}
	def.dir = filepath.Dir(path)
	if def.Batch.Script != "" {
		if err := def.mergeScript(); err != nil {
			return nil, err
		}
	}
	if len(def.Batch.Commands) == 0 {
		return nil, errdefs.Validation("batch.commands", "missing in %s", path)
	}
	return &def, nil
}

// mergeScript uses the directives and commands of batch.script as the base.
// Settings listed in the definition override the script's; commands listed
// in the definition replace the script's.
func (d *Definition) mergeScript() error {
	path := os.ExpandEnv(d.Batch.Script)
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.dir, path)
	}
	script, err := scheduler.ReadScript(path)
	if err != nil {
		return fmt.Errorf("batch.script: %w", err)
	}

	settings := script.TemplateSettings
	for _, s := range d.Batch.Settings {
		settings = setSetting(settings, s)
	}
	d.Batch.Settings = settings
	if len(d.Batch.Commands) == 0 {
		d.Batch.Commands = script.TemplateCommands
	}
	return nil
}

// Resolved is a definition with a case and profile applied.
type Resolved struct {
	Source     string
	Parameters parameter.Set
	Settings   []scheduler.Setting
	Commands   []string
}

// Resolve applies the case, then the profile, then the Set overrides.
func (d *Definition) Resolve(sel Selection) (*Resolved, error) {
	values := make(map[string]any, len(d.Input.Parameters))
	for name, spec := range d.Input.Parameters {
		values[name] = spec.Nominal
	}
	settings := append([]scheduler.Setting(nil), d.Batch.Settings...)

	for _, layer := range []struct {
		kind, name string
		table      map[string]Override
	}{
		{"case", sel.Case, d.Cases},
		{"profile", sel.Profile, d.Profiles},
	} {
		if layer.name == "" {
			continue
		}
		o, ok := layer.table[layer.name]
		if !ok {
			return nil, errdefs.Validation(layer.kind, "unknown %s %q", layer.kind, layer.name)
		}
		for name, v := range o.Parameters {
			if _, ok := values[name]; !ok {
				return nil, errdefs.Validation(name, "%s %q overrides an undeclared parameter", layer.kind, layer.name)
			}
			values[name] = v
		}
		for _, s := range o.Settings {
			settings = setSetting(settings, s)
		}
	}

	for name, raw := range sel.Set {
		if _, ok := values[name]; !ok {
			return nil, errdefs.Validation(name, "unknown parameter")
		}
		values[name] = parseScalar(raw)
	}

	params := parameter.Set{}
	for name, spec := range d.Input.Parameters {
		p, err := buildParameter(name, spec, values[name])
		if err != nil {
			return nil, err
		}
		params.Add(p)
	}

	source := os.ExpandEnv(d.Input.Source)
	if !filepath.IsAbs(source) {
		source = filepath.Join(d.dir, source)
	}

	return &Resolved{
		Source:     source,
		Parameters: params,
		Settings:   settings,
		Commands:   append([]string(nil), d.Batch.Commands...),
	}, nil
}

func setSetting(settings []scheduler.Setting, s scheduler.Setting) []scheduler.Setting {
	for i := range settings {
		if settings[i].Flag == s.Flag {
			settings[i].Value = s.Value
			return settings
		}
	}
	return append(settings, s)
}

func parseScalar(raw string) any {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}

func buildParameter(name string, spec ParameterSpec, value any) (*parameter.Parameter, error) {
	var nominal float64
	switch v := value.(type) {
	case int:
		nominal = float64(v)
	case float64:
		nominal = v
	case string:
		if spec.Lower != nil || spec.Upper != nil || spec.LogScale {
			return nil, errdefs.Validation(name, "symbolic value %q cannot have bounds", v)
		}
		p := parameter.NewText(name, v)
		p.Description = spec.Description
		return p, nil
	case nil:
		return nil, errdefs.Validation(name, "missing nominal value")
	default:
		return nil, errdefs.Validation(name, "unsupported value %v", v)
	}

	opts := []parameter.Option{parameter.WithDescription(spec.Description)}
	if spec.Lower != nil || spec.Upper != nil {
		lower, upper := nominal, nominal
		if spec.Lower != nil {
			lower = *spec.Lower
		}
		if spec.Upper != nil {
			upper = *spec.Upper
		}
		opts = append(opts, parameter.WithBounds(lower, upper))
	}
	if spec.LogScale {
		opts = append(opts, parameter.WithLogScale())
	}
	return parameter.New(name, nominal, opts...)
}

// Simulation stages the inputs and returns an unstarted simulation rooted at dir.
func (r *Resolved) Simulation(dir string, layout run.Layout) (*simulation.Simulation, error) {
	return r.simulation(dir, r.Parameters.Clone(), layout)
}

func (r *Resolved) simulation(dir string, params parameter.Set, layout run.Layout) (*simulation.Simulation, error) {
	inputs, err := input.Stage(r.Source, params)
	if err != nil {
		return nil, err
	}
	batch := scheduler.NewBatchDescriptor(r.Settings, r.Commands)
	return simulation.New(run.New(dir, inputs, batch, layout)), nil
}

// GroupOptions control how Group draws its members.
type GroupOptions struct {
	Count           int
	Seed            int64
	Prefix          string // member directory prefix, "sample" by default
	ResourceSetting string
}

// Group builds count simulations under root, each with its non-deterministic
// parameters sampled from a source seeded with opts.Seed, and wraps them in a
// group.
func (r *Resolved) Group(root string, layout run.Layout, opts GroupOptions) (*group.Group, error) {
	if opts.Count < 1 {
		return nil, errdefs.Validation("count", "expected at least 1, got %d", opts.Count)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "sample"
	}
	width := len(strconv.Itoa(opts.Count - 1))

	rng := rand.New(rand.NewSource(opts.Seed))
	sims := make([]*simulation.Simulation, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		params := r.Parameters.Clone()
		params.SampleAll(rng)
		name := fmt.Sprintf("%s_%0*d", prefix, width, i)
		sim, err := r.simulation(filepath.Join(root, name), params, layout)
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return group.New(root, sims, opts.ResourceSetting)
}

// Describe lists the resolved parameters, one "name = value" per line.
func (r *Resolved) Describe() string {
	var b strings.Builder
	for _, name := range r.Parameters.Names() {
		p := r.Parameters[name]
		fmt.Fprintf(&b, "%s = %s", name, p.String())
		if !p.IsDeterministic() && p.Kind == parameter.KindNumber {
			fmt.Fprintf(&b, " [%g, %g]", p.Lower, p.Upper)
			if p.LogScale {
				b.WriteString(" log")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
