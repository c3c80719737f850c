// Package checkpoint materializes the restart checkpoint of a new run from the
// engine checkpoint left by the previous one.
package checkpoint

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// DefaultCommand keeps the last time step of a Xolotl HDF5 checkpoint. It
// expects keepLastTS.py on PYTHONPATH.
const DefaultCommand = `python3 -c "import sys, keepLastTS; keepLastTS.keepLastTS(inFile=sys.argv[1], outFile=sys.argv[2])" {in} {out}`

// Extractor writes the restart checkpoint dst from the engine checkpoint src.
type Extractor interface {
	Extract(ctx context.Context, src, dst string) error
}

// CommandExtractor runs a shell command template. {in} and {out} expand to
// the quoted positional arguments "$1" and "$2", so they must not be quoted
// again in the template.
// by the source and destination paths.
type CommandExtractor struct {
	Template string
}

// NewCommandExtractor returns an extractor for template, or for DefaultCommand
// when template is empty.
func NewCommandExtractor(template string) *CommandExtractor {
	if strings.TrimSpace(template) == "" {
		template = DefaultCommand
	}
	return &CommandExtractor{Template: template}
}

// Extract removes any existing dst and runs the command.
func (e *CommandExtractor) Extract(ctx context.Context, src, dst string) error {
	if err := prepare(src, dst); err != nil {
		return err
	}

	command := strings.NewReplacer("{in}", `"$1"`, "{out}", `"$2"`).Replace(e.Template)
	utils.PrintDebug("Extracting checkpoint: %s (in=%s, out=%s)", utils.StyleCommand(command), utils.StylePath(src), utils.StylePath(dst))

	cmd := exec.CommandContext(ctx, "bash", "-c", command, "extract-checkpoint", src, dst)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("checkpoint extraction failed: %w\n%s", err, strings.TrimSpace(string(output)))
	}
	if !utils.FileExists(dst) {
		return errdefs.MissingArtifact("restart checkpoint", dst)
	}
	return nil
}

// CopyExtractor copies the engine checkpoint unchanged. It suits engines whose
// checkpoint already holds a single time step.
type CopyExtractor struct{}

// Extract removes any existing dst and copies src over it.
func (CopyExtractor) Extract(ctx context.Context, src, dst string) error {
	if err := prepare(src, dst); err != nil {
		return err
	}
	return utils.CopyFile(src, dst)
}

func prepare(src, dst string) error {
	if !utils.FileExists(src) {
		return errdefs.MissingArtifact("checkpoint", src)
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale checkpoint %s: %w", dst, err)
	}
	return nil
}
