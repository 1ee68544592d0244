// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"castoff/internal/config"
	"castoff/internal/forge"
	"castoff/internal/registry"
	"castoff/internal/version"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// GitClient is the version-control surface the pipeline depends on.
	// Satisfied by *gitrepo.Repo; faked in tests.
	GitClient interface {
		Preflight(requireClean, requireUpstream bool) error
		LatestTag() (string, error)
		HasTag(name string) bool
		Stage(paths []string) error
		StageDir(dir string) error
		Commit(message string) (string, error)
		Tag(name, annotation string) error
		Push(ctx context.Context) error
		Status() (string, error)
		Reset(paths []string) error
		RemoteURL() (string, error)
		SetToken(token string)
	}

	// ForgeClient creates the remote release record and uploads assets.
	ForgeClient interface {
		CreateRelease(ctx context.Context, p forge.ReleaseParams) (*forge.Release, error)
		UploadAssets(ctx context.Context, rel *forge.Release, paths []string) error
	}

	// Publisher publishes a package version to the registry.
	Publisher interface {
		Publish(ctx context.Context, p registry.PublishParams) (*registry.Receipt, error)
	}

	// Target bundles the clients and configuration for one repository's
	// pass through the release step group. The same code path serves the
	// primary repository and the optional dist repository.
	Target struct {
		Name     string
		Dir      string
		Git      GitClient
		Forge    ForgeClient
		Registry Publisher
		GitCfg   config.GitConfig
		Github   config.GithubConfig
		Npm      config.NpmConfig
		Hooks    config.Hooks

		// NeedsTag allows the dist flow to suppress tagging when the tag
		// already exists in the dist repository.
		NeedsTag bool

		// OnCommit fires once the commit sub-step has recorded the bump.
		// The primary flow uses it to stand down the interrupt guard:
		// past this point a failure must not revert the bumped files.
		OnCommit func()
	}

	// StepOutcome records how one sub-step of the group ended.
	StepOutcome int

	// GroupResult is the per-target outcome of a step-group run.
	GroupResult struct {
		Outcomes map[string]StepOutcome
		Release  *forge.Release
		Receipt  *registry.Receipt
	}
)

const (
	StepSkippedGate StepOutcome = iota
	StepSkippedDryRun
	StepDeclined
	StepRan
)

// Step names used as outcome keys and prompt titles.
const (
	stepCommit  = "commit"
	stepTag     = "tag"
	stepPush    = "push"
	stepRelease = "release"
	stepPublish = "publish"
)

// runStepGroup executes the commit, tag, push, create-release and publish
// sub-steps for one target, then the after-release hook. Each sub-step is
// gated by configuration; in interactive mode the operator confirms each
// gated step and may decline it without failing the run.
func (p *Pipeline) runStepGroup(ctx context.Context, t *Target, d *version.Decision, changelog string, vars map[string]string) (*GroupResult, error) {
	res := &GroupResult{Outcomes: make(map[string]StepOutcome)}

	commitGate := t.GitCfg.Commit
	tagGate := t.GitCfg.Tag && t.NeedsTag
	pushGate := t.GitCfg.Push
	releaseGate := t.Github.Release
	publishGate := t.Npm.Publish && !t.Npm.Private

	tagName := expand(t.GitCfg.TagName, vars)

	err := p.step(ctx, res, stepCommit, commitGate, true, fmt.Sprintf("Commit (%s)?", t.Name), func() error {
		_, err := t.Git.Commit(expand(t.GitCfg.CommitMessage, vars))
		return err
	})
	if err != nil {
		return res, err
	}
	if res.Outcomes[stepCommit] == StepRan && t.OnCommit != nil {
		t.OnCommit()
	}

	err = p.step(ctx, res, stepTag, tagGate, true, fmt.Sprintf("Tag %s (%s)?", tagName, t.Name), func() error {
		return t.Git.Tag(tagName, expand(t.GitCfg.TagAnnotation, vars))
	})
	if err != nil {
		return res, err
	}

	err = p.step(ctx, res, stepPush, pushGate, true, fmt.Sprintf("Push (%s)?", t.Name), func() error {
		return t.Git.Push(ctx)
	})
	if err != nil {
		return res, err
	}

	// The forge client handles dry-run itself: it skips the network but
	// still marks the release record so summary output stays consistent.
	err = p.step(ctx, res, stepRelease, releaseGate, false, fmt.Sprintf("Create release %s (%s)?", tagName, t.Name), func() error {
		rel, err := t.Forge.CreateRelease(ctx, forge.ReleaseParams{
			TagName:    tagName,
			Name:       expand(t.Github.ReleaseName, vars),
			Body:       changelog,
			Prerelease: d.IsPreRelease(),
			Draft:      t.Github.Draft,
		})
		if err != nil {
			return err
		}
		res.Release = rel

		assets, err := expandAssets(t.Dir, t.Github.Assets)
		if err != nil {
			return err
		}
		if len(assets) == 0 {
			return nil
		}
		return t.Forge.UploadAssets(ctx, rel, assets)
	})
	if err != nil {
		return res, err
	}

	// Publish in dry-run still invokes the client, which passes --dry-run
	// through to the real command instead of skipping.
	err = p.step(ctx, res, stepPublish, publishGate, false, fmt.Sprintf("Publish %s@%s (%s)?", vars["name"], d.Next, t.Name), func() error {
		rec, err := t.Registry.Publish(ctx, registry.PublishParams{
			Name:       vars["name"],
			Version:    d.Next.String(),
			Tag:        t.Npm.Tag,
			DefaultTag: "latest",
			PreRelease: d.IsPreRelease(),
			Channel:    d.PreReleaseChannel(),
			OTP:        t.Npm.OTP,
			Path:       t.Dir,
		})
		if err != nil {
			return err
		}
		res.Receipt = rec
		return nil
	})
	if err != nil {
		return res, err
	}

	if err := p.runHook(ctx, t.Hooks.AfterRelease, vars); err != nil {
		return res, err
	}

	return res, nil
}

// step runs one gated sub-step. mutating marks steps the pipeline itself
// must skip under dry-run; the forge and registry clients implement their
// own dry-run semantics and are invoked regardless.
func (p *Pipeline) step(ctx context.Context, res *GroupResult, name string, gate, mutating bool, question string, fn func() error) error {
	if !gate {
		res.Outcomes[name] = StepSkippedGate
		return nil
	}
	if mutating && p.dryRun {
		p.logger.Info("dry run, skipping step", "step", name)
		res.Outcomes[name] = StepSkippedDryRun
		return nil
	}

	if p.prompter.Interactive() {
		ok, err := p.prompter.Confirm(question, "")
		if err != nil {
			return err
		}
		if !ok {
			p.logger.Info("step declined", "step", name)
			res.Outcomes[name] = StepDeclined
			return nil
		}
		if err := fn(); err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
	} else {
		if err := p.prompter.Spin(ctx, name, fn); err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
	}

	res.Outcomes[name] = StepRan
	return nil
}

// expand substitutes ${var} references using the release vars.
func expand(template string, vars map[string]string) string {
	return os.Expand(template, func(key string) string {
		return vars[key]
	})
}

// expandAssets resolves asset glob patterns relative to dir.
func expandAssets(dir string, patterns []string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid asset pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}
