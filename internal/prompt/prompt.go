// SPDX-License-Identifier: MPL-2.0

// Package prompt wraps charmbracelet/huh behind the pipeline's gate
// contract: in non-interactive sessions every prompt resolves immediately
// without rendering, and step actions run under a spinner instead of a
// confirmation.
package prompt

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"golang.org/x/term"
)

// ErrCancelled is returned when the operator aborts a prompt.
var ErrCancelled = errors.New("cancelled by operator")

type (
	// Choice is one labeled option in a selection menu.
	Choice struct {
		Label string
		Value string
	}

	// Prompter renders interactive questions, or short-circuits them when
	// the session is non-interactive.
	Prompter struct {
		interactive bool
	}
)

// New creates a Prompter. interactive=false turns every prompt into its
// pass-through default.
func New(interactive bool) *Prompter {
	return &Prompter{interactive: interactive}
}

// Interactive reports whether prompts actually render.
func (p *Prompter) Interactive() bool { return p.interactive }

// Confirm asks a yes/no question. Non-interactive sessions answer yes:
// gating decided the step should run before the question is ever posed.
func (p *Prompter) Confirm(title, description string) (bool, error) {
	if !p.interactive {
		return true, nil
	}

	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, err
	}
	return ok, nil
}

// Select renders a choice menu and returns the chosen value. The empty
// string means the operator picked the escape option (when offered via an
// empty-valued choice).
func (p *Prompter) Select(title string, choices []Choice) (string, error) {
	if !p.interactive {
		return "", ErrCancelled
	}

	options := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		options = append(options, huh.NewOption(c.Label, c.Value))
	}

	var value string
	err := huh.NewSelect[string]().
		Title(title).
		Options(options...).
		Value(&value).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", err
	}
	return value, nil
}

// Input asks for a free-form line of text.
func (p *Prompter) Input(title, placeholder string) (string, error) {
	if !p.interactive {
		return "", ErrCancelled
	}

	var value string
	err := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&value).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", err
	}
	return value, nil
}

// Spin runs action. Non-interactive sessions show a progress spinner that
// nothing interrupts; interactive sessions run the action directly so any
// pending prompt output prints synchronously.
func (p *Prompter) Spin(ctx context.Context, title string, action func() error) error {
	if p.interactive || !isOutputTerminal() {
		return action()
	}
	return spinner.New().
		Title(title).
		Context(ctx).
		ActionWithErr(func(context.Context) error { return action() }).
		Run()
}

// isOutputTerminal reports whether stdout is a terminal. Scripted runs (CI
// logs, pipes) get plain sequential output instead of spinner animation.
func isOutputTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
