package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// ScriptName is the batch script written into each submission directory.
const ScriptName = "batchscript.sbatch"

// SlurmScheduler implements the Scheduler interface for SLURM
type SlurmScheduler struct {
	sbatchBin string
	squeueBin string
	run       Runner
}

// NewSlurmScheduler creates a SLURM scheduler. Empty binary paths are looked up
// in PATH when first needed, so status-only commands work on machines without
// sbatch.
func NewSlurmScheduler(sbatchBin, squeueBin string) *SlurmScheduler {
	return NewSlurmSchedulerWithRunner(sbatchBin, squeueBin, ExecRunner)
}

// NewSlurmSchedulerWithRunner creates a SLURM scheduler that executes commands
// through run.
func NewSlurmSchedulerWithRunner(sbatchBin, squeueBin string, run Runner) *SlurmScheduler {
	if sbatchBin == "" {
		sbatchBin = "sbatch"
	}
	if squeueBin == "" {
		squeueBin = "squeue"
	}
	return &SlurmScheduler{
		sbatchBin: sbatchBin,
		squeueBin: squeueBin,
		run:       run,
	}
}

// resolveBinary returns an absolute path for bin, or ErrSchedulerNotFound.
func resolveBinary(bin string) (string, error) {
	if filepath.Base(bin) == bin {
		path, err := exec.LookPath(bin)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
		}
		return path, nil
	}
	if absPath, err := filepath.Abs(bin); err == nil {
		bin = absPath
	}
	info, err := os.Stat(bin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrSchedulerNotFound, bin)
	}
	return bin, nil
}

// IsAvailable checks if SLURM is available and we're not inside a SLURM job
func (s *SlurmScheduler) IsAvailable() bool {
	if _, err := resolveBinary(s.sbatchBin); err != nil {
		return false
	}
	return !IsInsideJob()
}

// GetInfo returns information about the SLURM scheduler
func (s *SlurmScheduler) GetInfo() *SchedulerInfo {
	info := &SchedulerInfo{
		Type:     string(SchedulerSLURM),
		Binary:   s.sbatchBin,
		QueueBin: s.squeueBin,
		InJob:    IsInsideJob(),
	}
	info.Available = s.IsAvailable()
	if bin, err := resolveBinary(s.sbatchBin); err == nil {
		info.Binary = bin
		if version, err := s.getSlurmVersion(bin); err == nil {
			info.Version = version
		}
	}
	if bin, err := resolveBinary(s.squeueBin); err == nil {
		info.QueueBin = bin
	}
	return info
}

// getSlurmVersion attempts to get the SLURM version
func (s *SlurmScheduler) getSlurmVersion(bin string) (string, error) {
	output, err := s.run(context.Background(), "", bin, "--version")
	if err != nil {
		return "", err
	}

	// Parse version from output like "slurm 23.02.6"
	parts := strings.Fields(strings.TrimSpace(string(output)))
	if len(parts) >= 2 {
		return parts[1], nil
	}
	return "", fmt.Errorf("unexpected version output: %s", output)
}

// WriteScript writes the shebang, one #SBATCH directive per setting and the
// commands into dir/batchscript.sbatch.
func (s *SlurmScheduler) WriteScript(desc *BatchDescriptor, dir string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", NewScriptCreationError(dir, err)
	}
	scriptPath := filepath.Join(dir, ScriptName)

	file, err := os.Create(scriptPath)
	if err != nil {
		return "", NewScriptCreationError(scriptPath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintln(writer, "#!/bin/bash")
	for _, setting := range desc.Settings {
		value := setting.Value
		if setting.Flag == "time" {
			value, err = normalizeSlurmTime(value)
			if err != nil {
				return "", NewScriptCreationError(scriptPath, err)
			}
		}
		if value == "" {
			fmt.Fprintf(writer, "#SBATCH --%s\n", setting.Flag)
		} else {
			fmt.Fprintf(writer, "#SBATCH --%s=%s\n", setting.Flag, value)
		}
	}
	fmt.Fprintln(writer, "")
	for _, cmd := range desc.Commands {
		fmt.Fprintln(writer, cmd)
	}

	if err := writer.Flush(); err != nil {
		return "", NewScriptCreationError(scriptPath, err)
	}
	if err := os.Chmod(scriptPath, utils.PermExec); err != nil {
		return "", NewScriptCreationError(scriptPath, err)
	}

	utils.PrintDebug("Wrote batch script %s", utils.StylePath(scriptPath))
	return scriptPath, nil
}

// Submit runs sbatch from workDir and takes the job ID from the last token of
// its output.
func (s *SlurmScheduler) Submit(ctx context.Context, scriptPath string, workDir string) (string, error) {
	if IsInsideJob() {
		utils.PrintDebug("Submitting from inside SLURM job %s", os.Getenv("SLURM_JOB_ID"))
	}

	output, err := s.run(ctx, workDir, s.sbatchBin, scriptPath)
	if err != nil {
		return "", NewSubmissionError("SLURM", scriptPath, string(output), err)
	}

	jobID, err := parseJobID(string(output))
	if err != nil {
		return "", NewSubmissionError("SLURM", scriptPath, string(output), err)
	}

	utils.PrintDebug("Submitted %s as job %s", utils.StylePath(scriptPath), utils.StyleNumber(jobID))
	return jobID, nil
}

func parseJobID(output string) (string, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return "", ErrJobIDParseFailed
	}
	// --parsable prints "<id>;<cluster>"
	jobID, _, _ := strings.Cut(fields[len(fields)-1], ";")
	if _, err := strconv.ParseUint(jobID, 10, 64); err != nil {
		return "", fmt.Errorf("%w: %q", ErrJobIDParseFailed, jobID)
	}
	return jobID, nil
}

// QueryState runs `squeue --job <id>`. The state code is the fourth token from
// the end of the listing; an unknown job id or a header-only listing means the
// job has left the queue.
func (s *SlurmScheduler) QueryState(ctx context.Context, jobID string) (JobState, error) {
	output, err := s.run(ctx, "", s.squeueBin, "--job", jobID)
	text := string(output)
	if err != nil {
		if strings.Contains(text, "Invalid job id") {
			return JobAbsent, nil
		}
		return JobAbsent, NewQueryError("SLURM", jobID, text, err)
	}
	return parseQueueState(text), nil
}

func parseQueueState(output string) JobState {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return JobAbsent
	}
	fields := strings.Fields(output)
	if len(fields) < 4 {
		return JobAbsent
	}
	return JobState(fields[len(fields)-4])
}

// normalizeSlurmTime accepts SLURM time specs and Go durations ("36h") and
// writes them the way sbatch expects.
func normalizeSlurmTime(value string) (string, error) {
	d, err := parseSlurmTimeSpec(value)
	if err != nil {
		d, err = utils.ParseDuration(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidTimeFormat, value)
		}
	}
	if d <= 0 {
		return value, nil
	}
	return formatSlurmTimeSpec(d), nil
}
func parseSlurmTimeSpec(timeStr string) (time.Duration, error) {
	timeStr = strings.TrimSpace(timeStr)
	if timeStr == "" {
		return 0, nil
	}

	var days int64
	hms := timeStr
	if idx := strings.Index(hms, "-"); idx >= 0 {
		dayPart := hms[:idx]
		if parsed, err := strconv.ParseInt(dayPart, 10, 64); err == nil {
			days = parsed
		} else {
			return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
		}
		hms = strings.TrimSpace(hms[idx+1:])
	}

	var hours, minutes, seconds int64
	if hms != "" {
		parts := strings.Split(hms, ":")
		switch len(parts) {
		case 3:
			h, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
			}
			hours = h
			m, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
			}
			minutes = m
			s, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
			}
			seconds = s
		case 2:
			h, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
			}
			hours = h
			m, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
			}
			minutes = m
		case 1:
			m, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
			}
			minutes = m
		default:
			return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
		}
	}

	totalSeconds := days*24*3600 + hours*3600 + minutes*60 + seconds
	return time.Duration(totalSeconds) * time.Second, nil
}

func formatSlurmTimeSpec(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	total := int64(d.Seconds())
	days := total / (24 * 3600)
	rem := total % (24 * 3600)
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
