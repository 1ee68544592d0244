// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for castoff.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"castoff/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging and full error chains
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// ci forces non-interactive execution
	ci bool
	// dryRun previews the release without mutating anything
	dryRun bool

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "castoff",
		Short: "Automated versioning and package releasing",
		Long: TitleStyle.Render("castoff") + SubtitleStyle.Render(" - automated versioning and package releasing") + `

castoff drives a release end to end: it resolves the next version,
runs your hooks, bumps version-carrying files, commits, tags and
pushes, creates a GitHub release with assets, and publishes to npm.
An optional distribution repository is released in lockstep.

` + SubtitleStyle.Render("Examples:") + `
  castoff release patch     Release the next patch version
  castoff release -i minor  Release the next minor version
  castoff release --ci      Fully scripted release (no prompts)
  castoff release --dry-run Show what would happen
  castoff init              Create a starter castoff.toml`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./castoff.toml)")
	rootCmd.PersistentFlags().BoolVar(&ci, "ci", false, "non-interactive mode, never prompt")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report what would be done without doing it")

	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(initCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay renders actionable errors with their suggestions;
// other errors fall back to their plain message.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
