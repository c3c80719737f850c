package simulation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/parameter"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// Parameters rewritten for every restart.
const (
	StartModeParameter = "START_MODE"
	AbsTolParameter    = "ts_atol"
	RelTolParameter    = "ts_rtol"

	RestartStartMode = "RESTART"
	RestartTolerance = 1e-3
)

// Parameters mined from the completion log.
const (
	LoopNParameter        = "LOOP_N"
	LoopTimeStepParameter = "LOOP_TIME_STEP"
	StartStopParameter    = "start_stop"
	MaxDtParameter        = "ts_adapt_dt_max"
	InitTimeParameter     = "INIT_TIME"
	MaxTSParameter        = "XOLOTL_MAX_TS"
	VoidPortionParameter  = "voidPortion"
	GridSizeParameter     = "grid_size"
)

// Restart markers in the completion log.
const (
	TimeStepMarker    = "check for updates in time steps"
	NoUpdateMarker    = "no update"
	MaxDtMarker       = "change in Xolotls"
	DriverTimeMarker  = "driver time (in loop)"
	VoidPortionMarker = "updated the values of voidPortion"
	GridMarker        = "updated the values of grid"
)

// Below this initial time the prior XOLOTL_MAX_TS is kept; from it on the
// limit is raised to LateMaxTS.
const (
	MaxTSTimeThreshold = 5.0
	LateMaxTS          = 0.1
)

// Assignment is one restart parameter value found in the log.
type Assignment struct {
	Name  string
	Value float64
}

// MineRestartParameters scans lines for the last occurrence of each restart
// marker. Absent markers leave their parameters out; malformed marker lines
// are reported and skipped. params supplies the prior XOLOTL_MAX_TS.
func MineRestartParameters(lines []string, params parameter.Set) ([]Assignment, error) {
	var out []Assignment
	add := func(name string, value float64) {
		out = append(out, Assignment{Name: name, Value: value})
	}
	warn := func(marker string, line int, err error) {
		utils.PrintWarning("Skipping restart marker %q at line %d: %v", marker, line+1, err)
	}

	if i := utils.LastLineContaining(lines, TimeStepMarker); i >= 0 {
		if n, err := parseLoopN(lines[i]); err != nil {
			warn(TimeStepMarker, i, err)
		} else {
			add(LoopNParameter, float64(n))
		}
		if step, stop, err := parseTimeStepUpdate(lines, i); err != nil {
			warn(TimeStepMarker, i, err)
		} else {
			add(LoopTimeStepParameter, step)
			add(StartStopParameter, stop)
		}
	}

	if i := utils.LastLineContaining(lines, MaxDtMarker); i >= 0 {
		if v, err := lastFloat(lineAt(lines, i+1)); err != nil {
			warn(MaxDtMarker, i, err)
		} else {
			add(MaxDtParameter, v)
		}
	}

	if i := utils.LastLineContaining(lines, DriverTimeMarker); i >= 0 {
		if initTime, err := lastFloat(lines[i]); err != nil {
			warn(DriverTimeMarker, i, err)
		} else {
			add(InitTimeParameter, initTime)
			maxTS := LateMaxTS
			if initTime < MaxTSTimeThreshold {
				prior, err := params.Get(MaxTSParameter)
				if err != nil {
					return nil, err
				}
				maxTS = prior.Value
			}
			add(MaxTSParameter, maxTS)
		}
	}

	if i := utils.LastLineContaining(lines, VoidPortionMarker); i >= 0 {
		if v, err := lastFloat(lines[i]); err != nil {
			warn(VoidPortionMarker, i, err)
		} else {
			add(VoidPortionParameter, v)
		}
	}

	if i := utils.LastLineContaining(lines, GridMarker); i >= 0 {
		if v, err := lastInt(lines[i]); err != nil {
			warn(GridMarker, i, err)
		} else {
			add(GridSizeParameter, float64(v))
		}
	}

	return out, nil
}

// parseLoopN reads the third token with its trailing punctuation dropped,
// e.g. "... loop 12: check for updates in time steps".
func parseLoopN(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || len(fields[2]) < 2 {
		return 0, fmt.Errorf("no loop number in %q", line)
	}
	token := fields[2]
	return strconv.Atoi(token[:len(token)-1])
}

// parseTimeStepUpdate reads the loop time step and sub-step length that
// follow the time-step marker at line i. A "no update" line carries both as
// the first two parenthesized values; otherwise they are tokens 7 and 10 of
// the third line below, the latter with a leading character dropped.
func parseTimeStepUpdate(lines []string, i int) (float64, float64, error) {
	next := lineAt(lines, i+1)
	if strings.Contains(next, NoUpdateMarker) {
		values := parenthesized(next)
		if len(values) < 2 {
			return 0, 0, fmt.Errorf("expected two parenthesized values in %q", next)
		}
		step, err := strconv.ParseFloat(values[0], 64)
		if err != nil {
			return 0, 0, err
		}
		stop, err := strconv.ParseFloat(values[1], 64)
		if err != nil {
			return 0, 0, err
		}
		return step, stop, nil
	}

	line := lineAt(lines, i+3)
	fields := strings.Fields(line)
	if len(fields) < 10 || len(fields[9]) < 2 {
		return 0, 0, fmt.Errorf("expected at least 10 tokens in %q", line)
	}
	step, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return 0, 0, err
	}
	stop, err := strconv.ParseFloat(fields[9][1:], 64)
	if err != nil {
		return 0, 0, err
	}
	return step, stop, nil
}

// parenthesized returns the text between each "(" and the ")" that follows it.
func parenthesized(line string) []string {
	var values []string
	parts := strings.Split(line, "(")
	for _, part := range parts[1:] {
		if value, _, ok := strings.Cut(part, ")"); ok {
			values = append(values, strings.TrimSpace(value))
		}
	}
	return values
}

func lineAt(lines []string, i int) string {
	if i < 0 || i >= len(lines) {
		return ""
	}
	return lines[i]
}

func lastToken(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty line")
	}
	return fields[len(fields)-1], nil
}

func lastFloat(line string) (float64, error) {
	token, err := lastToken(line)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(token, 64)
}

func lastInt(line string) (int, error) {
	token, err := lastToken(line)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(token)
}
