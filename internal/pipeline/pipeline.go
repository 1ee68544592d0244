// SPDX-License-Identifier: MPL-2.0

// Package pipeline drives the ordered release flow: preflight, version
// resolution, file bumping, staging, and the commit/tag/push/release/
// publish step group, repeated for an optional dist repository.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"castoff/internal/beacon"
	"castoff/internal/changelog"
	"castoff/internal/config"
	"castoff/internal/forge"
	"castoff/internal/gitrepo"
	"castoff/internal/issue"
	"castoff/internal/manifest"
	"castoff/internal/prompt"
	"castoff/internal/registry"
	"castoff/internal/shell"
	"castoff/internal/version"

	"github.com/charmbracelet/log"
)

// distStagingDir is where the dist repository is cloned, nested under the
// primary working copy and removed once the dist release completes.
const distStagingDir = ".castoff-dist"

type (
	// Shell is the process-running surface the pipeline depends on.
	// Satisfied by *shell.Runner.
	Shell interface {
		Run(ctx context.Context, command string, vars map[string]string) (string, error)
		RunHook(ctx context.Context, command string, vars map[string]string) error
		Copy(globs []string, from, to string) error
		Pushd(dir string)
		Popd()
	}

	// Pipeline is the release state machine. Construct with New, run once
	// with Run.
	Pipeline struct {
		cfg      *config.Config
		root     string
		git      GitClient
		sh       Shell
		prompter *prompt.Prompter
		logger   *log.Logger
		beacon   *beacon.Client
		out      io.Writer

		dryRun    bool
		increment string
		preid     string
		userAgent string

		newForge     func(gh config.GithubConfig, token string) ForgeClient
		newPublisher func(npm config.NpmConfig) Publisher
		openDist     func(ctx context.Context, url, dest, token string) (GitClient, error)
	}

	// Option configures a Pipeline during construction.
	Option func(*Pipeline)

	// Result summarizes a completed run.
	Result struct {
		Name     string
		Previous string
		Version  string
		Primary  *GroupResult
		Dist     *GroupResult
		Duration time.Duration
	}
)

// WithGit injects the version-control client (defaults to opening root).
func WithGit(g GitClient) Option {
	return func(p *Pipeline) { p.git = g }
}

// WithShell injects the process runner.
func WithShell(s Shell) Option {
	return func(p *Pipeline) { p.sh = s }
}

// WithPrompter injects the prompt renderer.
func WithPrompter(pr *prompt.Prompter) Option {
	return func(p *Pipeline) { p.prompter = pr }
}

// WithLogger injects the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithBeacon enables lifecycle event reporting.
func WithBeacon(b *beacon.Client) Option {
	return func(p *Pipeline) { p.beacon = b }
}

// WithOutput redirects summary output.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithDryRun suppresses local mutations and routes the dry-run flag into
// the forge and registry clients.
func WithDryRun(dryRun bool) Option {
	return func(p *Pipeline) { p.dryRun = dryRun }
}

// WithIncrement overrides the configured increment (from the -i flag).
func WithIncrement(inc string) Option {
	return func(p *Pipeline) { p.increment = inc }
}

// WithPreid overrides the configured pre-release channel.
func WithPreid(preid string) Option {
	return func(p *Pipeline) { p.preid = preid }
}

// WithUserAgent sets the User-Agent the forge clients send.
func WithUserAgent(ua string) Option {
	return func(p *Pipeline) { p.userAgent = ua }
}

// WithForgeFactory replaces forge client construction (tests).
func WithForgeFactory(f func(gh config.GithubConfig, token string) ForgeClient) Option {
	return func(p *Pipeline) { p.newForge = f }
}

// WithPublisherFactory replaces registry client construction (tests).
func WithPublisherFactory(f func(npm config.NpmConfig) Publisher) Option {
	return func(p *Pipeline) { p.newPublisher = f }
}

// WithDistOpener replaces dist repository cloning (tests).
func WithDistOpener(f func(ctx context.Context, url, dest, token string) (GitClient, error)) Option {
	return func(p *Pipeline) { p.openDist = f }
}

// New builds a Pipeline over the repository at root.
func New(cfg *config.Config, root string, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		root:   root,
		logger: log.Default(),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.prompter == nil {
		p.prompter = prompt.New(cfg.UI.Interactive)
	}
	if p.sh == nil {
		p.sh = shell.NewRunner(shell.WithDir(root))
	}
	if p.newForge == nil {
		p.newForge = p.defaultForgeFactory
	}
	if p.newPublisher == nil {
		p.newPublisher = p.defaultPublisherFactory
	}
	if p.openDist == nil {
		p.openDist = func(ctx context.Context, url, dest, token string) (GitClient, error) {
			return gitrepo.Clone(ctx, url, dest, token)
		}
	}
	return p
}

func (p *Pipeline) defaultForgeFactory(gh config.GithubConfig, token string) ForgeClient {
	opts := []forge.ClientOption{
		forge.WithToken(token),
		forge.WithDryRun(p.dryRun),
		forge.WithLogger(p.logger),
	}
	if gh.APIBaseURL != "" {
		opts = append(opts, forge.WithBaseURL(gh.APIBaseURL))
	}
	if p.userAgent != "" {
		opts = append(opts, forge.WithUserAgent(p.userAgent))
	}
	return forge.NewClient(gh.Owner, gh.Repo, opts...)
}

func (p *Pipeline) defaultPublisherFactory(npm config.NpmConfig) Publisher {
	opts := []registry.ClientOption{
		registry.WithDryRun(p.dryRun),
		registry.WithLogger(p.logger),
	}
	if npm.Registry != "" {
		opts = append(opts, registry.WithRegistry(npm.Registry))
	}
	if p.prompter.Interactive() {
		opts = append(opts, registry.WithOTPPrompt(func(ctx context.Context) (string, error) {
			return p.prompter.Input("One-time passcode", "123456")
		}))
	}
	return registry.NewClient(p.sh, opts...)
}

// Run executes the release. Fatal errors abort the run; the caller owns
// exit-code translation.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()

	if p.git == nil {
		repo, openErr := gitrepo.Open(p.root)
		if openErr != nil {
			return nil, issue.NotARepo(p.root, openErr)
		}
		p.git = repo
	}

	name := p.cfg.Name
	if name == "" {
		name = p.manifestName()
	}
	if name == "" {
		abs, absErr := filepath.Abs(p.root)
		if absErr != nil {
			abs = p.root
		}
		name = filepath.Base(abs)
	}

	p.beacon.Send(beacon.EventStart, map[string]any{"name": name})

	if err = p.preflight(); err != nil {
		return nil, err
	}
	token := os.Getenv(p.cfg.Github.TokenEnv)
	if token != "" {
		p.git.SetToken(token)
	}

	baseVars := map[string]string{"name": name}
	if err = p.runHook(ctx, p.cfg.Hooks.BeforeStart, baseVars); err != nil {
		return nil, err
	}

	latestTag, _ := p.git.LatestTag()
	decision, suppliedUpFront, err := p.resolveVersion(ctx, name, latestTag)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"name":          name,
		"version":       decision.Next.String(),
		"latestVersion": decision.Previous.String(),
		"latestTag":     latestTag,
	}

	var guard *Guard
	if p.prompter.Interactive() && len(p.cfg.Files) > 0 && p.cfg.Git.RequireClean && !p.dryRun {
		guard = Arm(p.cfg.Files, p.git, p.logger)
	}
	defer func() {
		if guard == nil {
			return
		}
		if err != nil {
			guard.Abort()
		} else {
			guard.Disarm()
		}
	}()

	changelogText := ""
	if suppliedUpFront {
		changelogText = p.extractChangelog(ctx, vars)
	}

	if err = p.bumpFiles(ctx, decision, vars); err != nil {
		return nil, err
	}

	if !suppliedUpFront {
		changelogText = p.extractChangelog(ctx, vars)
	}
	if changelogText == "" {
		p.logger.Warn("changelog is empty")
	} else if p.prompter.Interactive() {
		fmt.Fprintln(p.out, changelog.Render(changelogText))
	}

	if err = p.stage(ctx, vars); err != nil {
		return nil, err
	}

	ghCfg, err := p.resolveGithub(p.cfg.Github)
	if err != nil {
		return nil, err
	}

	distGit, distState, err := p.prepareDist(ctx, decision, vars)
	if err != nil {
		return nil, err
	}

	primary := &Target{
		Name:     "primary",
		Dir:      p.root,
		Git:      p.git,
		Forge:    p.newForge(ghCfg, token),
		Registry: p.newPublisher(p.cfg.Npm),
		GitCfg:   p.cfg.Git,
		Github:   ghCfg,
		Npm:      p.cfg.Npm,
		Hooks:    p.cfg.Hooks,
		NeedsTag: true,
		// Once the commit records the bump, a later failure must not
		// revert the files out from under it.
		OnCommit: func() {
			if guard != nil {
				guard.Disarm()
				guard = nil
			}
		},
	}

	res = &Result{Name: name, Previous: decision.Previous.String(), Version: decision.Next.String()}

	res.Primary, err = p.runStepGroup(ctx, primary, decision, changelogText, vars)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		guard.Disarm()
		guard = nil
	}

	if distGit != nil {
		res.Dist, err = p.releaseDist(ctx, distGit, distState, decision, changelogText, vars)
		if err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	p.printSummary(res)
	p.beacon.Send(beacon.EventEnd, map[string]any{
		"name":        name,
		"version":     res.Version,
		"duration_ms": res.Duration.Milliseconds(),
	})

	return res, nil
}

// manifestName reads the package name from the first bump target that
// declares one (typically package.json).
func (p *Pipeline) manifestName() string {
	for _, f := range p.cfg.Files {
		name, err := manifest.ReadName(filepath.Join(p.root, f))
		if err != nil {
			continue
		}
		return name
	}
	return ""
}

// preflight enforces the repository preconditions before any mutation.
func (p *Pipeline) preflight() error {
	if err := p.git.Preflight(p.cfg.Git.RequireClean, p.cfg.Git.RequireUpstream); err != nil {
		switch {
		case errors.Is(err, gitrepo.ErrDirtyWorkTree):
			status, _ := p.git.Status()
			return issue.DirtyWorkTree(status, err)
		case errors.Is(err, gitrepo.ErrNoUpstream):
			return issue.NoUpstream("current branch", err)
		default:
			return err
		}
	}

	if _, err := p.git.RemoteURL(); err != nil {
		return issue.NewContext().
			WithOperation("start release").
			WithSuggestion("Add a remote with 'git remote add origin <url>'").
			Wrap(err).
			BuildError()
	}

	if p.cfg.Github.Release && !p.dryRun && os.Getenv(p.cfg.Github.TokenEnv) == "" {
		return issue.MissingToken(p.cfg.Github.TokenEnv)
	}
	return nil
}

// resolveVersion chooses the baseline, applies the increment, and falls
// back to the interactive choice loop when no increment was supplied.
func (p *Pipeline) resolveVersion(ctx context.Context, name, latestTag string) (*version.Decision, bool, error) {
	registryVersion := p.registryVersion(ctx, name)

	baseline := version.ChooseBaseline(latestTag, registryVersion)
	for _, w := range baseline.Warnings {
		p.logger.Warn(w)
	}

	inc := p.increment
	if inc == "" {
		inc = p.cfg.Increment
	}
	channel := p.preid
	if channel == "" {
		channel = p.cfg.Preid
	}
	suppliedUpFront := inc != ""

	decision, err := version.Bump(baseline.Version, version.BumpOptions{Increment: inc, Channel: channel})
	if err != nil {
		return nil, false, err
	}
	decision.FromTag = baseline.FromTag

	if decision.Next == nil && p.prompter.Interactive() {
		if err := p.promptVersion(decision); err != nil {
			return nil, false, err
		}
	}

	if err := decision.Validate(); err != nil {
		return nil, false, err
	}
	p.logger.Info("version resolved", "previous", decision.Previous.String(), "next", decision.Next.String())
	return decision, suppliedUpFront, nil
}

// promptVersion is the interactive version-choice loop: an increment menu
// first, then a literal version input, until a valid version is set or the
// operator cancels out.
func (p *Pipeline) promptVersion(d *version.Decision) error {
	candidates := d.Candidates()
	increments := []version.Increment{
		version.IncrementPatch, version.IncrementMinor, version.IncrementMajor,
		version.IncrementPrePatch, version.IncrementPreMinor, version.IncrementPreMajor,
		version.IncrementPreRelease,
	}

	for d.Next == nil {
		choices := make([]prompt.Choice, 0, len(increments)+1)
		for _, inc := range increments {
			next, ok := candidates[inc]
			if !ok {
				continue
			}
			choices = append(choices, prompt.Choice{
				Label: fmt.Sprintf("%s (%s)", inc, next),
				Value: next,
			})
		}
		choices = append(choices, prompt.Choice{Label: "Other (specify)", Value: ""})

		selected, err := p.prompter.Select("Select the next version", choices)
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) {
				return nil
			}
			return err
		}

		if selected == "" {
			raw, err := p.prompter.Input("Version", d.Previous.String())
			if err != nil {
				if errors.Is(err, prompt.ErrCancelled) {
					return nil
				}
				return err
			}
			if err := d.SetNext(raw); err != nil {
				p.logger.Warn("invalid version", "input", raw)
				continue
			}
			return nil
		}

		return d.SetNext(selected)
	}
	return nil
}

// registryVersion asks the registry for the latest published version.
// Best-effort: any failure yields an empty baseline.
func (p *Pipeline) registryVersion(ctx context.Context, name string) string {
	if !p.cfg.Npm.Publish {
		return ""
	}
	out, err := p.sh.Run(ctx, "npm view ${name} version", map[string]string{"name": name})
	if err != nil {
		p.logger.Debug("registry version lookup failed", "error", err)
		return ""
	}
	return strings.TrimSpace(out)
}

// bumpFiles runs the bump hooks around the manifest rewrite.
func (p *Pipeline) bumpFiles(ctx context.Context, d *version.Decision, vars map[string]string) error {
	if err := p.runHook(ctx, p.cfg.Hooks.BeforeBump, vars); err != nil {
		return err
	}

	if len(p.cfg.Files) > 0 && !p.dryRun {
		bumped, skipped, err := manifest.BumpAll(p.root, p.cfg.Files, d.Previous.String(), d.Next.String())
		if err != nil {
			return fmt.Errorf("bumping files: %w", err)
		}
		for _, f := range skipped {
			p.logger.Warn("bump target not found", "file", f)
		}
		p.logger.Info("bumped files", "count", len(bumped))
	}

	return p.runHook(ctx, p.cfg.Hooks.AfterBump, vars)
}

func (p *Pipeline) extractChangelog(ctx context.Context, vars map[string]string) string {
	text, err := changelog.Extract(ctx, p.sh, p.cfg.Git.ChangelogCmd, vars)
	if err != nil {
		p.logger.Warn("changelog extraction failed", "error", err)
		return ""
	}
	return text
}

// stage runs the pre-stage hook, stages bump targets and the optional
// stage directory, and reports the resulting changeset.
func (p *Pipeline) stage(ctx context.Context, vars map[string]string) error {
	if err := p.runHook(ctx, p.cfg.Hooks.BeforeStage, vars); err != nil {
		return err
	}
	if p.dryRun {
		return nil
	}

	if len(p.cfg.Files) > 0 {
		if err := p.git.Stage(p.cfg.Files); err != nil {
			return fmt.Errorf("staging files: %w", err)
		}
	}
	if p.cfg.Git.StageDir != "" {
		if err := p.git.StageDir(p.cfg.Git.StageDir); err != nil {
			return err
		}
	}

	changeset, err := p.git.Status()
	if err == nil && strings.TrimSpace(changeset) == "" {
		p.logger.Warn("empty changeset, nothing staged")
	} else if err == nil {
		p.logger.Debug("changeset", "status", changeset)
	}
	return nil
}

// resolveGithub fills owner/repo from the origin remote when the config
// leaves them blank.
func (p *Pipeline) resolveGithub(gh config.GithubConfig) (config.GithubConfig, error) {
	if !gh.Release || (gh.Owner != "" && gh.Repo != "") {
		return gh, nil
	}
	remote, err := p.git.RemoteURL()
	if err != nil {
		return gh, err
	}
	owner, repo, err := parseOwnerRepo(remote)
	if err != nil {
		return gh, issue.NewContext().
			WithOperation("resolve release repository").
			WithResource(remote).
			WithSuggestion("Set github.owner and github.repo explicitly in castoff.toml").
			Wrap(err).
			BuildError()
	}
	if gh.Owner == "" {
		gh.Owner = owner
	}
	if gh.Repo == "" {
		gh.Repo = repo
	}
	return gh, nil
}

type distState struct {
	stagingDir string
	token      string
}

// prepareDist clones the dist repository into the staging directory,
// copies the built artifacts in, bumps its manifests and stages the tree.
// Returns a nil client when no dist repo is configured.
func (p *Pipeline) prepareDist(ctx context.Context, d *version.Decision, vars map[string]string) (GitClient, *distState, error) {
	dist := p.cfg.Dist
	if dist == nil {
		return nil, nil, nil
	}
	if p.dryRun {
		p.logger.Info("dry run, skipping dist repository")
		return nil, nil, nil
	}

	state := &distState{
		stagingDir: filepath.Join(p.root, distStagingDir),
		token:      os.Getenv(dist.Github.TokenEnv),
	}

	distGit, err := p.openDist(ctx, dist.Repo, state.stagingDir, state.token)
	if err != nil {
		return nil, nil, fmt.Errorf("cloning dist repository: %w", err)
	}

	from := p.root
	if dist.StageDir != "" {
		from = filepath.Join(p.root, dist.StageDir)
	}
	if len(dist.Files) > 0 {
		if err := p.sh.Copy(dist.Files, from, state.stagingDir); err != nil {
			return nil, nil, fmt.Errorf("copying dist files: %w", err)
		}
	}

	if len(dist.BumpFiles) > 0 {
		if _, _, err := manifest.BumpAll(state.stagingDir, dist.BumpFiles, d.Previous.String(), d.Next.String()); err != nil {
			return nil, nil, fmt.Errorf("bumping dist files: %w", err)
		}
	}

	if dist.BeforeStage != "" {
		p.sh.Pushd(state.stagingDir)
		err := p.runHook(ctx, dist.BeforeStage, vars)
		p.sh.Popd()
		if err != nil {
			return nil, nil, err
		}
	}

	if err := distGit.StageDir("."); err != nil {
		return nil, nil, err
	}
	return distGit, state, nil
}

// releaseDist runs the step group against the dist repository and removes
// the staging directory afterwards.
func (p *Pipeline) releaseDist(ctx context.Context, distGit GitClient, state *distState, d *version.Decision, changelogText string, vars map[string]string) (*GroupResult, error) {
	dist := p.cfg.Dist

	ghCfg := dist.Github
	if ghCfg.Release && (ghCfg.Owner == "" || ghCfg.Repo == "") {
		remote, err := distGit.RemoteURL()
		if err == nil {
			if owner, repo, perr := parseOwnerRepo(remote); perr == nil {
				if ghCfg.Owner == "" {
					ghCfg.Owner = owner
				}
				if ghCfg.Repo == "" {
					ghCfg.Repo = repo
				}
			}
		}
	}

	tagName := expand(dist.Git.TagName, vars)
	target := &Target{
		Name:     "dist",
		Dir:      state.stagingDir,
		Git:      distGit,
		Forge:    p.newForge(ghCfg, state.token),
		Registry: p.newPublisher(dist.Npm),
		GitCfg:   dist.Git,
		Github:   ghCfg,
		Npm:      dist.Npm,
		NeedsTag: !distGit.HasTag(tagName),
	}

	if changeset, err := distGit.Status(); err == nil && strings.TrimSpace(changeset) == "" {
		p.logger.Warn("dist changeset is empty")
	}

	p.sh.Pushd(state.stagingDir)
	res, err := p.runStepGroup(ctx, target, d, changelogText, vars)
	p.sh.Popd()
	if err != nil {
		return res, err
	}

	if rmErr := os.RemoveAll(state.stagingDir); rmErr != nil {
		p.logger.Warn("failed to remove dist staging directory", "error", rmErr)
	}
	return res, nil
}

// runHook executes one hook command; empty hooks are skipped silently.
func (p *Pipeline) runHook(ctx context.Context, command string, vars map[string]string) error {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	if p.prompter.Interactive() {
		return p.sh.RunHook(ctx, command, vars)
	}
	return p.prompter.Spin(ctx, command, func() error {
		return p.sh.RunHook(ctx, command, vars)
	})
}

// parseOwnerRepo extracts "owner" and "repo" from https and ssh remote
// URLs (https://host/owner/repo.git, git@host:owner/repo.git).
func parseOwnerRepo(remote string) (owner, repo string, err error) {
	s := strings.TrimSuffix(remote, ".git")

	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
		parts := strings.Split(s, "/")
		if len(parts) < 3 {
			return "", "", fmt.Errorf("cannot parse remote url %q", remote)
		}
		return parts[1], parts[2], nil
	}

	if idx := strings.Index(s, ":"); idx >= 0 && strings.Contains(s[:idx], "@") {
		parts := strings.Split(s[idx+1:], "/")
		if len(parts) < 2 {
			return "", "", fmt.Errorf("cannot parse remote url %q", remote)
		}
		return parts[0], parts[1], nil
	}

	return "", "", fmt.Errorf("cannot parse remote url %q", remote)
}
