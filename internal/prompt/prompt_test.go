// SPDX-License-Identifier: MPL-2.0

package prompt

import (
	"errors"
	"testing"
)

func TestConfirm_NonInteractivePassesThrough(t *testing.T) {
	t.Parallel()

	p := New(false)
	ok, err := p.Confirm("Commit?", "")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !ok {
		t.Error("non-interactive Confirm = false, want true")
	}
}

func TestSelect_NonInteractiveCancels(t *testing.T) {
	t.Parallel()

	p := New(false)
	_, err := p.Select("Pick one", []Choice{{Label: "a", Value: "a"}})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Select = %v, want ErrCancelled", err)
	}
}

func TestInput_NonInteractiveCancels(t *testing.T) {
	t.Parallel()

	p := New(false)
	_, err := p.Input("Version", "1.0.0")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Input = %v, want ErrCancelled", err)
	}
}

func TestSpin_RunsAction(t *testing.T) {
	t.Parallel()

	// Test binaries never have a TTY on stdout, so both modes run the
	// action directly.
	for _, interactive := range []bool{true, false} {
		p := New(interactive)
		ran := false
		if err := p.Spin(t.Context(), "working", func() error { ran = true; return nil }); err != nil {
			t.Fatalf("Spin(interactive=%v): %v", interactive, err)
		}
		if !ran {
			t.Errorf("Spin(interactive=%v) did not run the action", interactive)
		}
	}
}

func TestSpin_PropagatesError(t *testing.T) {
	t.Parallel()

	p := New(true)
	wantErr := errors.New("boom")
	if err := p.Spin(t.Context(), "working", func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Spin error = %v, want %v", err, wantErr)
	}
}
