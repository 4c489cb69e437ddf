// Package tui holds the interactive prompts. Every prompt has a
// non-interactive answer so scripts and CI never block on input.
package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"TRAVIS",
	"CIRCLECI",
	"BUILDKITE",
}

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(message string, defaultValue bool) (bool, error)
}

// HuhConfirmer asks on the terminal.
type HuhConfirmer struct{}

// Confirm displays a yes/no confirmation prompt.
func (HuhConfirmer) Confirm(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

// IsInteractive returns true if stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ShouldPrompt reports whether prompts may be shown: stdin is a terminal
// and no CI environment is detected.
func ShouldPrompt() bool {
	return shouldPrompt(os.Getenv, IsInteractive)
}

func shouldPrompt(getenv func(string) string, interactive func() bool) bool {
	for _, key := range ciEnvVars {
		if getenv(key) != "" {
			return false
		}
	}
	return interactive()
}

// ConfirmOrDefault asks c when prompting is possible and otherwise returns
// fallback without asking.
func ConfirmOrDefault(c Confirmer, message string, fallback bool) (bool, error) {
	if !ShouldPrompt() {
		return fallback, nil
	}
	return c.Confirm(message, fallback)
}
