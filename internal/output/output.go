// Package output gathers the surface and retention tables written by every run
// of a simulation into one bundle.
package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/run"
	"github.com/PieterjanRobbe/ftxctl/internal/simulation"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// Glob patterns, relative to a run's work directory.
const (
	SurfacePattern      = "work/workers__xolotlWorker_*/surface.txt"
	AllSurfacePattern   = "work/driver__xolotlFtridynDriver_*/allSurface.txt"
	RetentionPattern    = "work/workers__xolotlWorker_*/retentionOut.txt"
	AllRetentionPattern = "work/driver__xolotlFtridynDriver_*/allRetentionOut.txt"
	TridynPattern       = "work/workers__xolotlWorker_*/tridyn.dat"
)

// Series is a time series.
type Series struct {
	Time  []float64 `yaml:"time"`
	Value []float64 `yaml:"value"`
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Time) }

// Bundle is the postprocessed output of one simulation.
type Bundle struct {
	Simulation    string  `yaml:"simulation"`
	Runs          int     `yaml:"runs"`
	Surface       Series  `yaml:"surface"`             // surface growth, relative to the first point
	Content       Series  `yaml:"content"`             // He content
	Retention     Series  `yaml:"retention,omitempty"` // He retention in percent
	StickingCoeff float64 `yaml:"sticking_coeff,omitempty"`
}

// Collect builds the bundle for sim from the files of every run in its history.
func Collect(sim *simulation.Simulation) (*Bundle, error) {
	if len(sim.Runs) == 0 {
		return nil, errdefs.Validation(sim.Name, "simulation has not started")
	}

	b := &Bundle{Simulation: sim.Name, Runs: len(sim.Runs)}

	surface, err := gather(sim.Runs, SurfacePattern, AllSurfacePattern, true)
	if err != nil {
		return nil, err
	}
	retention, err := gather(sim.Runs, RetentionPattern, AllRetentionPattern, false)
	if err != nil {
		return nil, err
	}
	if len(surface) == 0 && len(retention) == 0 {
		return nil, errdefs.MissingArtifact("surface or retention table", filepath.Join(sim.Path, "*", SurfacePattern))
	}

	if len(surface) > 0 {
		baseline := surface[0][1]
		for _, row := range surface {
			b.Surface.Time = append(b.Surface.Time, row[0])
			b.Surface.Value = append(b.Surface.Value, row[1]-baseline)
		}
	}

	if len(retention) > 1 {
		// the first row is the initial state
		for _, row := range retention[1:] {
			if len(row) < 3 {
				return nil, errdefs.Validation("retention table", "expected at least 3 columns, got %d", len(row))
			}
			b.Content.Time = append(b.Content.Time, row[0])
			b.Content.Value = append(b.Content.Value, row[2])
		}

		coeff, err := stickingCoeff(sim.Runs)
		if err != nil {
			utils.PrintWarning("Skipping He retention for %s: %v", utils.StyleName(sim.Name), err)
		} else {
			b.StickingCoeff = coeff
			for _, row := range retention[1:] {
				if len(row) < 6 {
					return nil, errdefs.Validation("retention table", "expected at least 6 columns, got %d", len(row))
				}
				b.Retention.Time = append(b.Retention.Time, row[0])
				b.Retention.Value = append(b.Retention.Value, 100*(row[2]+row[5])/(row[1]*coeff))
			}
		}
	}

	return b, nil
}

// gather reads every non-empty file matching the patterns in every run and
// merges their unique rows.
func gather(runs []*run.Run, workerPattern, driverPattern string, pairs bool) (Table, error) {
	var tables []Table
	for _, pattern := range []string{workerPattern, driverPattern} {
		for _, r := range runs {
			matches, err := filepath.Glob(r.Path(pattern))
			if err != nil {
				return nil, err
			}
			for _, path := range matches {
				t, err := ReadTable(path)
				if err != nil {
					return nil, err
				}
				if len(t) == 0 {
					continue
				}
				if pairs && pattern == workerPattern {
					if t, err = t.Pairs(); err != nil {
						return nil, fmt.Errorf("%s: %w", path, err)
					}
				}
				tables = append(tables, t)
			}
		}
	}
	return Unique(tables...), nil
}

// stickingCoeff reads the He sticking coefficient from the last tridyn.dat
// found in the run history.
func stickingCoeff(runs []*run.Run) (float64, error) {
	var last string
	for _, r := range runs {
		matches, err := filepath.Glob(r.Path(TridynPattern))
		if err != nil {
			return 0, err
		}
		if len(matches) > 0 {
			last = matches[len(matches)-1]
		}
	}
	if last == "" {
		return 0, errdefs.MissingArtifact("tridyn.dat", TridynPattern)
	}

	lines, err := utils.ReadLines(last)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "He") {
			continue
		}
		fields := strings.Fields(line)
		coeff, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid sticking coefficient: %w", last, err)
		}
		if coeff == 0 {
			return 0, errdefs.Validation("sticking coefficient", "zero in %s", last)
		}
		return coeff, nil
	}
	return 0, errdefs.Validation(last, "no He line")
}
