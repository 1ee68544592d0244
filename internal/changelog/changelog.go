// SPDX-License-Identifier: MPL-2.0

// Package changelog extracts release notes from the repository history and
// renders them for terminal display.
package changelog

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultCommand is the changelog extraction command used when the
// configuration supplies none. ${latestTag} expands to the previous release
// tag; with no prior tag the range collapses to the full history.
const DefaultCommand = `git log --no-color --pretty=format:"* %s (%h)" ${latestTag:+${latestTag}..}HEAD`

// CommandRunner abstracts the shell runner.
type CommandRunner interface {
	Run(ctx context.Context, command string, vars map[string]string) (string, error)
}

// Extract runs the changelog command template and returns the trimmed text.
// An empty result is not an error; the caller warns and carries on.
func Extract(ctx context.Context, runner CommandRunner, commandTemplate string, vars map[string]string) (string, error) {
	if strings.TrimSpace(commandTemplate) == "" {
		commandTemplate = DefaultCommand
	}

	out, err := runner.Run(ctx, commandTemplate, vars)
	if err != nil {
		return "", fmt.Errorf("extracting changelog: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Render renders the changelog markdown for terminal display, falling back
// to the raw text when rendering fails.
func Render(text string) string {
	if text == "" {
		return ""
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
