// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"castoff/internal/beacon"
	"castoff/internal/config"
	"castoff/internal/pipeline"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	incrementFlag string
	preidFlag     string
	otpFlag       string

	// releaseCmd runs the release pipeline.
	releaseCmd = &cobra.Command{
		Use:   "release [increment]",
		Short: "Run the release pipeline",
		Long: `Run the release pipeline: resolve the next version, run hooks,
bump files, commit, tag, push, create the GitHub release and publish
to npm.

The increment is patch, minor, major, prepatch, preminor, premajor,
prerelease, or an explicit version like 2.1.0. Without one, castoff
asks interactively (or fails under --ci).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRelease,
	}
)

func init() {
	releaseCmd.Flags().StringVarP(&incrementFlag, "increment", "i", "", "version increment or explicit version")
	releaseCmd.Flags().StringVar(&preidFlag, "preid", "", "pre-release channel (e.g. beta)")
	releaseCmd.Flags().StringVar(&otpFlag, "otp", "", "one-time passcode for npm publish")
}

func runRelease(cmd *cobra.Command, args []string) error {
	logger := log.Default()

	cfg, cfgPath, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1}
	}
	if cfgPath != "" {
		logger.Debug("loaded config", "path", cfgPath)
	}

	if ci {
		cfg.UI.Interactive = false
	}
	if verbose || cfg.UI.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if otpFlag != "" {
		cfg.Npm.OTP = otpFlag
	}

	inc := incrementFlag
	if inc == "" && len(args) > 0 {
		inc = args[0]
	}

	b := beacon.New(cfg.Beacon.URL, Version)

	p := pipeline.New(cfg, ".",
		pipeline.WithLogger(logger),
		pipeline.WithBeacon(b),
		pipeline.WithDryRun(dryRun),
		pipeline.WithIncrement(inc),
		pipeline.WithPreid(preidFlag),
		pipeline.WithUserAgent("castoff/"+Version),
	)

	if _, err := p.Run(cmd.Context()); err != nil {
		b.Send(beacon.EventException, map[string]any{"error": err.Error()})
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1}
	}
	return nil
}
