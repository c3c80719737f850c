// Package store persists simulations, groups and output bundles as versioned
// YAML documents.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/group"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written into every document. Documents with a different
// major version are refused on load.
const FormatVersion = "v1.0.0"

const (
	SimulationFile = "simulation.yaml"
	GroupFile      = "simulation_group.yaml"
	OutputFile     = "output.yaml"
)

// Kind tags the object held by a document.
type Kind string

const (
	KindSimulation Kind = "simulation"
	KindGroup      Kind = "simulation_group"
	KindOutput     Kind = "output"
)

type document[T any] struct {
	Format string `yaml:"format"`
	Kind   Kind   `yaml:"kind"`
	Object T      `yaml:"object"`
}

// Save writes obj to path. An existing file is only replaced when overwrite is
// set. The document is written to a temporary file first, so a failed save
// leaves the previous contents in place.
func Save[T any](path string, kind Kind, obj T, overwrite bool) error {
	if !overwrite && utils.FileExists(path) {
		return NewPersistenceConflictError(path)
	}

	data, err := yaml.Marshal(document[T]{Format: FormatVersion, Kind: kind, Object: obj})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	dir := filepath.Dir(path)
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), utils.PermFile); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	utils.PrintDebug("Saved %s to %s", kind, utils.StylePath(path))
	return nil
}

// Load reads a document of the given kind from path.
func Load[T any](path string, kind Kind) (T, error) {
	var doc document[T]
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc.Object, errdefs.MissingArtifact(string(kind), path)
		}
		return doc.Object, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc.Object, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := checkFormat(doc.Format); err != nil {
		return doc.Object, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Kind != kind {
		return doc.Object, errdefs.Validation(path, "holds a %s, not a %s", doc.Kind, kind)
	}
	return doc.Object, nil
}

func checkFormat(format string) error {
	if !semver.IsValid(format) {
		return fmt.Errorf("%w: invalid format version %q", ErrIncompatibleFormat, format)
	}
	if semver.Major(format) != semver.Major(FormatVersion) {
		return fmt.Errorf("%w: found %s, expected %s.x", ErrIncompatibleFormat, format, semver.Major(FormatVersion))
	}
	return nil
}

// SaveSimulation writes sim to <sim.Path>/simulation.yaml.
func SaveSimulation(sim *simulation.Simulation, overwrite bool) error {
	return Save(filepath.Join(sim.Path, SimulationFile), KindSimulation, sim, overwrite)
}

// LoadSimulation reads <dir>/simulation.yaml.
func LoadSimulation(dir string) (*simulation.Simulation, error) {
	return Load[*simulation.Simulation](filepath.Join(dir, SimulationFile), KindSimulation)
}

// SaveGroup writes g to <g.Path>/simulation_group.yaml.
func SaveGroup(g *group.Group, overwrite bool) error {
	return Save(filepath.Join(g.Path, GroupFile), KindGroup, g, overwrite)
}

// LoadGroup reads <dir>/simulation_group.yaml.
func LoadGroup(dir string) (*group.Group, error) {
	return Load[*group.Group](filepath.Join(dir, GroupFile), KindGroup)
}

// Detect reports which kind of object lives in dir. A group takes priority
// over a simulation.
func Detect(dir string) (Kind, error) {
	switch {
	case utils.FileExists(filepath.Join(dir, GroupFile)):
		return KindGroup, nil
	case utils.FileExists(filepath.Join(dir, SimulationFile)):
		return KindSimulation, nil
	default:
		return "", fmt.Errorf("%w in %s", ErrNoObject, dir)
	}
}
