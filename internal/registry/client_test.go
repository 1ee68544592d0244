// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// scriptedRunner returns queued results for successive Run calls and records
// the commands it received.
type scriptedRunner struct {
	results  []error
	commands []string
}

func (s *scriptedRunner) Run(_ context.Context, command string, _ map[string]string) (string, error) {
	s.commands = append(s.commands, command)
	if len(s.results) == 0 {
		return "", nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return "", err
}

func TestResolveTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		explicit   string
		preRelease bool
		channel    string
		defaultTag string
		want       string
	}{
		{"pre-release derives channel", "", true, "beta", "", "beta"},
		{"stable falls back to default", "", false, "", "", "latest"},
		{"custom default tag", "", false, "", "next", "next"},
		{"explicit overrides channel", "nightly", true, "beta", "", "nightly"},
		{"explicit overrides default", "nightly", false, "", "latest", "nightly"},
		{"pre-release without channel", "", true, "", "", "latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ResolveTag(tt.explicit, tt.preRelease, tt.channel, tt.defaultTag)
			if got != tt.want {
				t.Errorf("ResolveTag = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPublish_Success(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{}
	c := NewClient(runner)

	receipt, err := c.Publish(t.Context(), PublishParams{
		Name:    "widget",
		Version: "2.0.0-beta.3",
		Channel: "beta", PreRelease: true,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if !receipt.Published {
		t.Error("Published = false")
	}
	if receipt.Tag != "beta" {
		t.Errorf("Tag = %q, want beta", receipt.Tag)
	}
	if len(runner.commands) != 1 {
		t.Fatalf("got %d commands, want 1", len(runner.commands))
	}
	if want := "npm publish --tag beta"; runner.commands[0] != want {
		t.Errorf("command = %q, want %q", runner.commands[0], want)
	}
}

func TestPublish_CommandFlags(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{}
	c := NewClient(runner, WithRegistry("https://registry.example.com"), WithDryRun(true))

	_, err := c.Publish(t.Context(), PublishParams{
		Name: "widget", Version: "1.0.0", OTP: "123456", Path: "dist/pkg",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := runner.commands[0]
	for _, want := range []string{"dist/pkg", "--tag latest", "--registry https://registry.example.com", "--otp 123456", "--dry-run"} {
		if !strings.Contains(got, want) {
			t.Errorf("command %q missing %q", got, want)
		}
	}
}

func TestPublish_OTPRetryInteractive(t *testing.T) {
	t.Parallel()

	otpErr := fmt.Errorf("command exited with status 1: npm ERR! code EOTP")
	runner := &scriptedRunner{results: []error{otpErr, nil}}

	prompts := 0
	c := NewClient(runner, WithOTPPrompt(func(context.Context) (string, error) {
		prompts++
		return "654321", nil
	}))

	receipt, err := c.Publish(t.Context(), PublishParams{Name: "widget", Version: "1.0.0", OTP: "000000"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if prompts != 1 {
		t.Errorf("prompts = %d, want exactly 1 per failure", prompts)
	}
	if !receipt.Published {
		t.Error("Published = false after OTP retry")
	}
	if len(runner.commands) != 2 {
		t.Fatalf("got %d publish attempts, want 2", len(runner.commands))
	}
	if !strings.Contains(runner.commands[1], "--otp 654321") {
		t.Errorf("retry command %q does not carry the fresh passcode", runner.commands[1])
	}
}

func TestPublish_OTPFailsWithoutPrompt(t *testing.T) {
	t.Parallel()

	otpErr := errors.New("npm ERR! This operation requires a one-time password")
	runner := &scriptedRunner{results: []error{otpErr}}
	c := NewClient(runner)

	_, err := c.Publish(t.Context(), PublishParams{Name: "widget", Version: "1.0.0"})
	if !errors.Is(err, ErrOTPRequired) {
		t.Fatalf("Publish = %v, want ErrOTPRequired", err)
	}
	if len(runner.commands) != 1 {
		t.Errorf("got %d attempts, want 1 (no retry without prompt)", len(runner.commands))
	}
}

func TestPublish_OtherFailuresPropagate(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{results: []error{errors.New("npm ERR! 403 Forbidden")}}
	prompts := 0
	c := NewClient(runner, WithOTPPrompt(func(context.Context) (string, error) {
		prompts++
		return "", nil
	}))

	_, err := c.Publish(t.Context(), PublishParams{Name: "widget", Version: "1.0.0"})
	if err == nil {
		t.Fatal("Publish succeeded, want error")
	}
	if errors.Is(err, ErrOTPRequired) {
		t.Error("non-OTP failure classified as OTP")
	}
	if prompts != 0 {
		t.Errorf("prompts = %d, want 0 for non-OTP failure", prompts)
	}
}

func TestPublish_OperatorGivesUp(t *testing.T) {
	t.Parallel()

	otpErr := errors.New("npm ERR! code EOTP")
	runner := &scriptedRunner{results: []error{otpErr, otpErr, otpErr}}

	prompts := 0
	c := NewClient(runner, WithOTPPrompt(func(context.Context) (string, error) {
		prompts++
		if prompts == 2 {
			return "", errors.New("user aborted")
		}
		return "111111", nil
	}))

	_, err := c.Publish(t.Context(), PublishParams{Name: "widget", Version: "1.0.0"})
	if err == nil {
		t.Fatal("Publish succeeded, want error after operator abort")
	}
	if prompts != 2 {
		t.Errorf("prompts = %d, want 2", prompts)
	}
}
