// SPDX-License-Identifier: MPL-2.0

// Package registry publishes the package to an npm-compatible registry by
// driving the registry CLI through the shell runner. Publish failures caused
// by a rejected one-time passcode are recoverable through an operator
// re-prompt loop; everything else propagates unchanged.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrOTPRequired is the sentinel wrapped by OTPError.
var ErrOTPRequired = errors.New("one-time passcode required")

type (
	// CommandRunner abstracts the shell runner so tests can stub the
	// publish invocation.
	CommandRunner interface {
		Run(ctx context.Context, command string, vars map[string]string) (string, error)
	}

	// OTPError indicates the registry rejected the publish for a missing,
	// invalid, or expired one-time passcode.
	OTPError struct {
		Output string
	}

	// PublishParams describes one publish invocation.
	PublishParams struct {
		Name    string
		Version string
		// Tag is the explicit distribution-tag override; empty derives the
		// tag from the pre-release channel or falls back to DefaultTag.
		Tag        string
		DefaultTag string
		PreRelease bool
		Channel    string
		// OTP is the passcode supplied up front (config or flag). The
		// interactive loop replaces it when the registry rejects it.
		OTP string
		// Path is the directory or tarball argument to publish.
		Path string
	}

	// Receipt records a successful publish. Owned by the pipeline once
	// returned.
	Receipt struct {
		Name      string
		Version   string
		Tag       string
		Published bool
	}

	// Client wraps the publish operation.
	Client struct {
		runner   CommandRunner
		logger   *log.Logger
		registry string
		dryRun   bool

		// promptOTP suspends the publish loop to ask the operator for a
		// fresh passcode. Nil in non-interactive sessions: an OTP failure
		// is then fatal on the first occurrence.
		promptOTP func(ctx context.Context) (string, error)
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error implements the error interface.
func (e *OTPError) Error() string {
	return "registry rejected one-time passcode"
}

// Unwrap returns ErrOTPRequired so callers can use errors.Is.
func (e *OTPError) Unwrap() error { return ErrOTPRequired }

// WithRegistry sets a custom registry URL passed to the publish command.
func WithRegistry(url string) ClientOption {
	return func(c *Client) { c.registry = url }
}

// WithDryRun passes the registry CLI's own dry-run flag through to the real
// publish command. Unlike the forge client, the command still runs: the
// registry tool reports what it would have published.
func WithDryRun(dryRun bool) ClientOption {
	return func(c *Client) { c.dryRun = dryRun }
}

// WithOTPPrompt installs the interactive re-prompt used when a passcode is
// rejected. Without it, OTP failures are fatal.
func WithOTPPrompt(prompt func(ctx context.Context) (string, error)) ClientOption {
	return func(c *Client) { c.promptOTP = prompt }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a publish client running commands through runner.
func NewClient(runner CommandRunner, opts ...ClientOption) *Client {
	c := &Client{runner: runner, logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveTag computes the effective distribution tag: an explicit override
// wins, then the pre-release channel, then the default tag.
func ResolveTag(explicit string, preRelease bool, channel, defaultTag string) string {
	if explicit != "" {
		return explicit
	}
	if preRelease && channel != "" {
		return channel
	}
	if defaultTag == "" {
		return "latest"
	}
	return defaultTag
}

// Publish runs the publish command. A rejected one-time passcode suspends
// into the operator prompt and retries with the fresh code; the loop is
// bounded only by the operator declining. Any other failure propagates.
func (c *Client) Publish(ctx context.Context, p PublishParams) (*Receipt, error) {
	tag := ResolveTag(p.Tag, p.PreRelease, p.Channel, p.DefaultTag)
	otp := p.OTP

	for {
		command := c.buildCommand(p, tag, otp)
		out, err := c.runner.Run(ctx, command, map[string]string{
			"version": p.Version,
			"name":    p.Name,
		})
		if err == nil {
			if out != "" {
				c.logger.Debug("publish output", "out", out)
			}
			return &Receipt{Name: p.Name, Version: p.Version, Tag: tag, Published: true}, nil
		}

		if !isOTPFailure(err) {
			return nil, fmt.Errorf("publishing %s@%s: %w", p.Name, p.Version, err)
		}
		if c.promptOTP == nil {
			return nil, &OTPError{Output: err.Error()}
		}

		c.logger.Warn("one-time passcode was rejected, asking for a fresh one")
		fresh, promptErr := c.promptOTP(ctx)
		if promptErr != nil {
			return nil, fmt.Errorf("reading one-time passcode: %w", promptErr)
		}
		otp = fresh
	}
}

// buildCommand assembles the publish command line.
func (c *Client) buildCommand(p PublishParams, tag, otp string) string {
	parts := []string{"npm", "publish"}
	if p.Path != "" && p.Path != "." {
		parts = append(parts, p.Path)
	}
	parts = append(parts, "--tag", tag)
	if c.registry != "" {
		parts = append(parts, "--registry", c.registry)
	}
	if otp != "" {
		parts = append(parts, "--otp", otp)
	}
	if c.dryRun {
		parts = append(parts, "--dry-run")
	}
	return strings.Join(parts, " ")
}

// isOTPFailure classifies a publish error as a one-time-passcode rejection.
// Matches the registry CLI's EOTP code and its prose variants.
func isOTPFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "eotp") ||
		strings.Contains(msg, "one-time pass") ||
		strings.Contains(msg, "one time pass")
}
