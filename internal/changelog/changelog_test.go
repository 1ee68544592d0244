// SPDX-License-Identifier: MPL-2.0

package changelog

import (
	"strings"
	"testing"

	"castoff/internal/shell"
)

func TestExtract_RunsTemplate(t *testing.T) {
	t.Parallel()

	runner := shell.NewRunner(shell.WithDir(t.TempDir()))
	out, err := Extract(t.Context(), runner, `echo "* fix: thing (${latestTag})"`, map[string]string{
		"latestTag": "1.0.0",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != "* fix: thing (1.0.0)" {
		t.Errorf("changelog = %q", out)
	}
}

func TestExtract_EmptyOutputIsNotAnError(t *testing.T) {
	t.Parallel()

	runner := shell.NewRunner(shell.WithDir(t.TempDir()))
	out, err := Extract(t.Context(), runner, "true", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != "" {
		t.Errorf("changelog = %q, want empty", out)
	}
}

func TestExtract_DefaultCommandTagRange(t *testing.T) {
	t.Parallel()

	// The default template expands to a tag range only when latestTag is
	// set; probe the expansion itself rather than running git.
	runner := shell.NewRunner(shell.WithDir(t.TempDir()))

	out, err := runner.Run(t.Context(), `echo ${latestTag:+${latestTag}..}HEAD`, map[string]string{"latestTag": "1.2.0"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "1.2.0..HEAD" {
		t.Errorf("range with tag = %q, want 1.2.0..HEAD", out)
	}

	out, err = runner.Run(t.Context(), `echo ${latestTag:+${latestTag}..}HEAD`, map[string]string{"latestTag": ""})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "HEAD" {
		t.Errorf("range without tag = %q, want HEAD", out)
	}
}

func TestRender_FallsBackToRawText(t *testing.T) {
	t.Parallel()

	text := "* fix: one\n* feat: two"
	got := Render(text)
	if got == "" {
		t.Error("Render returned empty output")
	}
	if !strings.Contains(got, "one") || !strings.Contains(got, "two") {
		t.Errorf("rendered output lost content: %q", got)
	}
}

func TestRender_Empty(t *testing.T) {
	t.Parallel()

	if got := Render(""); got != "" {
		t.Errorf("Render(empty) = %q, want empty", got)
	}
}
