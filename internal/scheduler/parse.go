package scheduler

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var directiveRe = regexp.MustCompile(`^\s*#SBATCH\s+(.+)$`)

// readFileLines opens a file and returns all its lines.
func readFileLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}
	return lines, nil
}

// ReadScript parses a batch script written by WriteScript back into a
// descriptor. The parsed settings and commands become the template.
func ReadScript(path string) (*BatchDescriptor, error) {
	lines, err := readFileLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "#!") {
		return nil, fmt.Errorf("%w: %s has no shebang", ErrInvalidScriptFormat, path)
	}

	var settings []Setting
	var commands []string
	for i, line := range lines[1:] {
		if m := directiveRe.FindStringSubmatch(line); m != nil {
			setting, err := parseDirective(m[1])
			if err != nil {
				return nil, NewParseError("SLURM", i+2, line, err.Error())
			}
			settings = append(settings, setting)
			continue
		}
		if strings.TrimSpace(line) == "" && len(commands) == 0 {
			continue
		}
		commands = append(commands, line)
	}
	return NewBatchDescriptor(settings, commands), nil
}

// parseDirective handles "--flag=value", "--flag value" and bare "--flag".
func parseDirective(directive string) (Setting, error) {
	directive = strings.TrimSpace(directive)
	if !strings.HasPrefix(directive, "--") {
		return Setting{}, fmt.Errorf("only long options are supported")
	}
	directive = strings.TrimPrefix(directive, "--")
	if flag, value, ok := strings.Cut(directive, "="); ok {
		return Setting{Flag: flag, Value: value}, nil
	}
	if flag, value, ok := strings.Cut(directive, " "); ok {
		return Setting{Flag: flag, Value: strings.TrimSpace(value)}, nil
	}
	return Setting{Flag: directive}, nil
}
