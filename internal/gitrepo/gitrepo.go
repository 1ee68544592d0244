// SPDX-License-Identifier: MPL-2.0

// Package gitrepo is the version-control backend for the release pipeline.
// It wraps go-git and exposes the narrow contract the pipeline depends on:
// preflight validation, tag lookup, staging, committing, tagging, pushing,
// and best-effort path restoration.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	git "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Sentinel errors for the distinct precondition failures the pipeline must
// tell apart.
var (
	ErrNotRepo       = errors.New("not a git repository")
	ErrNoRemote      = errors.New("no remote configured")
	ErrDirtyWorkTree = errors.New("working tree has uncommitted changes")
	ErrNoUpstream    = errors.New("current branch has no upstream")
)

const defaultRemote = "origin"

// Repo is a handle on one git working copy.
type Repo struct {
	path string
	repo *git.Repository
	auth transport.AuthMethod
}

// Open opens an existing repository rooted at path.
// Returns ErrNotRepo when path is not inside a git repository.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepo, path)
		}
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	return &Repo{path: path, repo: repo}, nil
}

// Init creates a new repository at path with a worktree. Used by tests and
// by the init command.
func Init(path string) (*Repo, error) {
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("initializing repository %s: %w", path, err)
	}
	return &Repo{path: path, repo: repo}, nil
}

// Clone clones url into dest and returns a handle on the working copy.
func Clone(ctx context.Context, url, dest string, token string) (*Repo, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}

	auth := tokenAuth(url, token)
	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:  url,
		Auth: auth,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}
	return &Repo{path: dest, repo: repo, auth: auth}, nil
}

// SetToken configures the auth token used for pushes against HTTP remotes.
func (r *Repo) SetToken(token string) {
	url, err := r.RemoteURL()
	if err != nil {
		return
	}
	r.auth = tokenAuth(url, token)
}

// Path returns the working copy root.
func (r *Repo) Path() string { return r.path }

// Preflight validates that the repository is usable for a release:
// a remote must be configured, the working tree clean (when required),
// and the current branch tracking an upstream (when required).
func (r *Repo) Preflight(requireClean, requireUpstream bool) error {
	if _, err := r.RemoteURL(); err != nil {
		return err
	}

	if requireClean {
		clean, err := r.IsClean()
		if err != nil {
			return err
		}
		if !clean {
			return ErrDirtyWorkTree
		}
	}

	if requireUpstream {
		has, err := r.HasUpstream()
		if err != nil {
			return err
		}
		if !has {
			return ErrNoUpstream
		}
	}

	return nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func (r *Repo) IsClean() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading status: %w", err)
	}
	return status.IsClean(), nil
}

// Status returns the textual changeset of the working tree, or "" when the
// tree is clean. Diagnostic only.
func (r *Repo) Status() (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("reading status: %w", err)
	}
	if status.IsClean() {
		return "", nil
	}
	return strings.TrimRight(status.String(), "\n"), nil
}

// HasUpstream reports whether the current branch has tracking configuration.
func (r *Repo) HasUpstream() (bool, error) {
	head, err := r.repo.Head()
	if err != nil {
		return false, fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return false, nil
	}

	cfg, err := r.repo.Config()
	if err != nil {
		return false, fmt.Errorf("reading config: %w", err)
	}

	branch, ok := cfg.Branches[head.Name().Short()]
	if !ok {
		return false, nil
	}
	return branch.Remote != "" && branch.Merge != "", nil
}

// RemoteURL returns the first URL of the origin remote.
// Returns ErrNoRemote when no remote is configured.
func (r *Repo) RemoteURL() (string, error) {
	remote, err := r.repo.Remote(defaultRemote)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", ErrNoRemote
		}
		return "", fmt.Errorf("resolving remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", ErrNoRemote
	}
	return urls[0], nil
}

// LatestTag returns the highest semantic-version tag in the repository, or
// "" when no semver-shaped tag exists. Non-semver tags are ignored.
func (r *Repo) LatestTag() (string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return "", fmt.Errorf("listing tags: %w", err)
	}
	defer iter.Close()

	var bestName string
	var best *semver.Version
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		v, parseErr := semver.NewVersion(strings.TrimPrefix(name, "v"))
		if parseErr != nil {
			return nil
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestName = name
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("iterating tags: %w", err)
	}
	return bestName, nil
}

// HasTag reports whether a tag with the given name exists.
func (r *Repo) HasTag(name string) bool {
	_, err := r.repo.Tag(name)
	return err == nil
}

// Stage adds the given paths (relative to the working copy root) to the
// index. Missing paths are skipped silently: a configured bump target that
// does not exist in this working copy is not an error.
func (r *Repo) Stage(paths []string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	for _, p := range paths {
		if _, statErr := os.Stat(filepath.Join(r.path, p)); statErr != nil {
			continue
		}
		if _, addErr := wt.Add(filepath.ToSlash(p)); addErr != nil {
			return fmt.Errorf("staging %s: %w", p, addErr)
		}
	}
	return nil
}

// StageDir stages an entire directory tree. The directory must exist inside
// the working copy.
func (r *Repo) StageDir(dir string) error {
	full := filepath.Join(r.path, dir)
	info, err := os.Stat(full)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("invalid stage directory %q", dir)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if _, err := wt.Add(filepath.ToSlash(dir)); err != nil {
		return fmt.Errorf("staging directory %s: %w", dir, err)
	}
	return nil
}

// Commit records the staged changes and returns the new commit hash.
func (r *Repo) Commit(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{Author: r.signature()})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return hash.String(), nil
}

// Tag creates an annotated tag pointing at HEAD.
func (r *Repo) Tag(name, annotation string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}
	if annotation == "" {
		annotation = name
	}
	_, err = r.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  r.signature(),
		Message: annotation,
	})
	if err != nil {
		return fmt.Errorf("tagging %s: %w", name, err)
	}
	return nil
}

// Push pushes the current branch and tags to origin.
// Already-up-to-date is not an error.
func (r *Repo) Push(ctx context.Context) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: defaultRemote,
		FollowTags: true,
		Auth:       r.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing: %w", err)
	}
	return nil
}

// Reset restores the given paths to their content at HEAD. Paths absent from
// HEAD are skipped. Used by the interrupt guard's best-effort revert.
func (r *Repo) Reset(paths []string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("resolving HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("resolving HEAD tree: %w", err)
	}

	var errs []error
	for _, p := range paths {
		file, fileErr := tree.File(filepath.ToSlash(p))
		if fileErr != nil {
			continue
		}
		contents, contentsErr := file.Contents()
		if contentsErr != nil {
			errs = append(errs, fmt.Errorf("reading %s from HEAD: %w", p, contentsErr))
			continue
		}
		if writeErr := os.WriteFile(filepath.Join(r.path, p), []byte(contents), 0o644); writeErr != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", p, writeErr))
		}
	}
	return errors.Join(errs...)
}

// signature builds the commit author, falling back to a fixed identity when
// no user is configured.
func (r *Repo) signature() *object.Signature {
	name, email := "castoff", "castoff@localhost"
	if cfg, err := r.repo.ConfigScoped(gitcfg.GlobalScope); err == nil {
		if cfg.User.Name != "" {
			name = cfg.User.Name
		}
		if cfg.User.Email != "" {
			email = cfg.User.Email
		}
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

// tokenAuth builds HTTP basic auth for token-authenticated remotes.
// SSH remotes rely on the ambient agent and get no explicit auth.
func tokenAuth(url, token string) transport.AuthMethod {
	if token == "" || !strings.HasPrefix(url, "http") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}
}
