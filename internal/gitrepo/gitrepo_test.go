// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gitcfg "github.com/go-git/go-git/v5/config"
)

// newTestRepo initializes a repository with one committed file.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	writeFile(t, dir, "README.md", "# test\n")
	if err := r.Stage([]string{"README.md"}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := r.Commit("initial commit"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return r
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func addRemote(t *testing.T, r *Repo, url string) {
	t.Helper()
	_, err := r.repo.CreateRemote(&gitcfg.RemoteConfig{Name: defaultRemote, URLs: []string{url}})
	if err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}
}

func TestOpen_NotARepo(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir())
	if !errors.Is(err, ErrNotRepo) {
		t.Fatalf("Open on plain dir = %v, want ErrNotRepo", err)
	}
}

func TestPreflight_NoRemote(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	if err := r.Preflight(true, false); !errors.Is(err, ErrNoRemote) {
		t.Fatalf("Preflight = %v, want ErrNoRemote", err)
	}
}

func TestPreflight_DirtyWorkTree(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	addRemote(t, r, "https://example.com/owner/repo.git")
	writeFile(t, r.Path(), "README.md", "dirty\n")

	if err := r.Preflight(true, false); !errors.Is(err, ErrDirtyWorkTree) {
		t.Fatalf("Preflight = %v, want ErrDirtyWorkTree", err)
	}
}

func TestPreflight_NoUpstream(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	addRemote(t, r, "https://example.com/owner/repo.git")

	if err := r.Preflight(true, true); !errors.Is(err, ErrNoUpstream) {
		t.Fatalf("Preflight = %v, want ErrNoUpstream", err)
	}
}

func TestPreflight_CleanWithRemote(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	addRemote(t, r, "https://example.com/owner/repo.git")

	if err := r.Preflight(true, false); err != nil {
		t.Fatalf("Preflight = %v, want nil", err)
	}
}

func TestStatus_ReportsChangeset(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)

	status, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != "" {
		t.Errorf("Status on clean tree = %q, want empty", status)
	}

	writeFile(t, r.Path(), "README.md", "changed\n")
	status, err = r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status == "" {
		t.Error("Status on dirty tree is empty, want changeset text")
	}
}

func TestLatestTag(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)

	tag, err := r.LatestTag()
	if err != nil {
		t.Fatalf("LatestTag: %v", err)
	}
	if tag != "" {
		t.Errorf("LatestTag on untagged repo = %q, want empty", tag)
	}

	for _, name := range []string{"1.0.0", "1.2.0", "1.1.0", "not-a-version"} {
		if err := r.Tag(name, ""); err != nil {
			t.Fatalf("Tag(%s): %v", name, err)
		}
	}

	tag, err = r.LatestTag()
	if err != nil {
		t.Fatalf("LatestTag: %v", err)
	}
	if tag != "1.2.0" {
		t.Errorf("LatestTag = %q, want 1.2.0", tag)
	}
}

func TestHasTag(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	if err := r.Tag("2.0.0", "release 2.0.0"); err != nil {
		t.Fatalf("Tag: %v", err)
	}

	if !r.HasTag("2.0.0") {
		t.Error("HasTag(2.0.0) = false, want true")
	}
	if r.HasTag("3.0.0") {
		t.Error("HasTag(3.0.0) = true, want false")
	}
}

func TestStage_SkipsMissingPaths(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	writeFile(t, r.Path(), "manifest.json", `{"version": "1.0.0"}`)

	if err := r.Stage([]string{"manifest.json", "does-not-exist.txt"}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := r.Commit("add manifest"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clean, err := r.IsClean()
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Error("working tree dirty after commit")
	}
}

func TestStageDir_RejectsInvalidTarget(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	if err := r.StageDir("no-such-dir"); err == nil {
		t.Fatal("StageDir on missing dir succeeded, want error")
	}
}

func TestReset_RestoresHeadContent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	writeFile(t, r.Path(), "README.md", "mutated\n")

	if err := r.Reset([]string{"README.md", "never-committed.txt"}); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(r.Path(), "README.md"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(got) != "# test\n" {
		t.Errorf("restored content = %q, want %q", got, "# test\n")
	}
}

func TestClone_LocalRepo(t *testing.T) {
	t.Parallel()

	src := newTestRepo(t)
	dest := filepath.Join(t.TempDir(), "clone")

	cloned, err := Clone(t.Context(), src.Path(), dest, "")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cloned.Path(), "README.md")); err != nil {
		t.Errorf("cloned worktree missing README.md: %v", err)
	}
}
