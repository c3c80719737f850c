package scheduler

import (
	"strings"
)

// Setting is one scheduler directive, written as `#SBATCH --<Flag>=<Value>`.
type Setting struct {
	Flag  string `yaml:"flag"`
	Value string `yaml:"value"`
}

// CommandFields are the per-submission values substituted into command
// templates.
type CommandFields struct {
	ConfigFiles  string // {config_files}
	LogFile      string // {log_file}
	PlatformFile string // {platform_file}
	StdoutFile   string // {stdout_file}
	StderrFile   string // {stderr_file}
}

// SingleRunFields are the file names used when a run is submitted on its own
// from its work directory.
func SingleRunFields(configFile, platformFile string) CommandFields {
	return CommandFields{
		ConfigFiles:  configFile,
		LogFile:      "log.framework",
		PlatformFile: platformFile,
		StdoutFile:   "log.stdOut",
		StderrFile:   "log.stdErr",
	}
}

func (f CommandFields) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{config_files}", f.ConfigFiles,
		"{log_file}", f.LogFile,
		"{platform_file}", f.PlatformFile,
		"{stdout_file}", f.StdoutFile,
		"{stderr_file}", f.StderrFile,
	)
}

// BatchDescriptor is the set of directives plus the command sequence submitted
// as one scheduler job. The template fields are kept so a descriptor can be
// reset before every reuse.
type BatchDescriptor struct {
	Settings         []Setting `yaml:"settings"`
	Commands         []string  `yaml:"commands"`
	TemplateSettings []Setting `yaml:"template_settings"`
	TemplateCommands []string  `yaml:"template_commands"`
	Detached         bool      `yaml:"detached,omitempty"`
}

// NewBatchDescriptor creates a descriptor whose template is the given settings
// and commands.
func NewBatchDescriptor(settings []Setting, commands []string) *BatchDescriptor {
	d := &BatchDescriptor{
		TemplateSettings: append([]Setting(nil), settings...),
		TemplateCommands: append([]string(nil), commands...),
	}
	d.Reset()
	return d
}

// Detached returns a descriptor that never submits. Group members carry one
// so that only the group submits on their behalf.
func Detached() *BatchDescriptor {
	return &BatchDescriptor{Detached: true}
}

// Reset restores settings and commands to the template.
func (d *BatchDescriptor) Reset() {
	d.Settings = append([]Setting(nil), d.TemplateSettings...)
	d.Commands = append([]string(nil), d.TemplateCommands...)
}

// Setting returns the value of flag.
func (d *BatchDescriptor) Setting(flag string) (string, bool) {
	for _, s := range d.Settings {
		if s.Flag == flag {
			return s.Value, true
		}
	}
	return "", false
}

// UpdateSetting replaces the value of flag, appending it when absent.
func (d *BatchDescriptor) UpdateSetting(flag, value string) {
	for i := range d.Settings {
		if d.Settings[i].Flag == flag {
			d.Settings[i].Value = value
			return
		}
	}
	d.Settings = append(d.Settings, Setting{Flag: flag, Value: value})
}

// UpdateCommands renders the command templates with fields.
func (d *BatchDescriptor) UpdateCommands(fields CommandFields) {
	r := fields.replacer()
	d.Commands = make([]string, len(d.TemplateCommands))
	for i, cmd := range d.TemplateCommands {
		d.Commands[i] = r.Replace(cmd)
	}
}

// Clone returns an independent copy.
func (d *BatchDescriptor) Clone() *BatchDescriptor {
	if d == nil {
		return nil
	}
	return &BatchDescriptor{
		Settings:         append([]Setting(nil), d.Settings...),
		Commands:         append([]string(nil), d.Commands...),
		TemplateSettings: append([]Setting(nil), d.TemplateSettings...),
		TemplateCommands: append([]string(nil), d.TemplateCommands...),
		Detached:         d.Detached,
	}
}
