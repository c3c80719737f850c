package utils

import (
	"os"

	"golang.org/x/term"
)

// IsInteractiveShell reports whether both stdin and stdout are attached to a terminal.
// Prompts are only shown when this is true; cron-driven invocations never block.
func IsInteractiveShell() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
