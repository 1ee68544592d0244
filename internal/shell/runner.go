// SPDX-License-Identifier: MPL-2.0

// Package shell runs hook commands and registry invocations through an
// embedded POSIX shell (mvdan/sh). Template variables such as ${version}
// are injected as environment variables, so ordinary shell expansion covers
// the command templating contract.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Runner executes shell command strings in a tracked working directory.
// The zero value is not usable; construct with NewRunner.
type Runner struct {
	stdout io.Writer
	stderr io.Writer
	cwd    string
	// dirStack backs Pushd/Popd; the pipeline pushes into the dist working
	// copy and pops back out around the dist step group.
	dirStack []string
}

// Option configures a Runner during construction.
type Option func(*Runner)

// WithStdio sets the writers hook output streams to.
func WithStdio(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithDir sets the initial working directory.
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.cwd = dir
	}
}

// NewRunner creates a Runner rooted in the current directory.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{stdout: os.Stdout, stderr: os.Stderr}
	if wd, err := os.Getwd(); err == nil {
		r.cwd = wd
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the current working directory of the runner.
func (r *Runner) Dir() string { return r.cwd }

// Pushd enters dir, remembering the previous directory.
func (r *Runner) Pushd(dir string) {
	r.dirStack = append(r.dirStack, r.cwd)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.cwd, dir)
	}
	r.cwd = dir
}

// Popd returns to the directory active before the matching Pushd.
func (r *Runner) Popd() {
	if len(r.dirStack) == 0 {
		return
	}
	r.cwd = r.dirStack[len(r.dirStack)-1]
	r.dirStack = r.dirStack[:len(r.dirStack)-1]
}

// Run executes command and returns its trimmed stdout. Stderr is captured
// separately and folded into the error on failure.
func (r *Runner) Run(ctx context.Context, command string, vars map[string]string) (string, error) {
	var stdout, stderr bytes.Buffer
	err := r.exec(ctx, command, vars, &stdout, &stderr)
	out := strings.TrimRight(stdout.String(), "\n")
	if err != nil {
		errOut := strings.TrimSpace(stderr.String())
		if errOut != "" {
			return out, fmt.Errorf("%w: %s", err, errOut)
		}
		return out, err
	}
	return out, nil
}

// RunHook executes a hook command, streaming output to the runner's stdio.
// Empty commands are skipped silently per the hook contract.
func (r *Runner) RunHook(ctx context.Context, command string, vars map[string]string) error {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	return r.exec(ctx, command, vars, r.stdout, r.stderr)
}

// exec parses and interprets a command string with vars layered over the
// process environment.
func (r *Runner) exec(ctx context.Context, command string, vars map[string]string, stdout, stderr io.Writer) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "command")
	if err != nil {
		return fmt.Errorf("parsing command: %w", err)
	}

	env := os.Environ()
	for k, v := range vars {
		env = append(env, k+"="+v)
	}

	runner, err := interp.New(
		interp.Dir(r.cwd),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("creating interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return fmt.Errorf("command exited with status %d", int(exitStatus))
		}
		return fmt.Errorf("running command: %w", err)
	}
	return nil
}

// Copy copies every file matching the glob patterns (relative to from) into
// to, preserving relative paths. Patterns support doublestar globs.
func (r *Runner) Copy(globs []string, from, to string) error {
	if !filepath.IsAbs(from) {
		from = filepath.Join(r.cwd, from)
	}
	if !filepath.IsAbs(to) {
		to = filepath.Join(r.cwd, to)
	}

	for _, pattern := range globs {
		matches, err := doublestar.FilepathGlob(filepath.Join(from, pattern))
		if err != nil {
			return fmt.Errorf("expanding glob %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, statErr := os.Stat(match)
			if statErr != nil || info.IsDir() {
				continue
			}
			rel, relErr := filepath.Rel(from, match)
			if relErr != nil {
				return fmt.Errorf("resolving %s: %w", match, relErr)
			}
			if copyErr := copyFile(match, filepath.Join(to, rel), info.Mode()); copyErr != nil {
				return copyErr
			}
		}
	}
	return nil
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
