// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"castoff/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "castoff"
	// ConfigFileName is the primary config file searched for in the
	// repository root.
	ConfigFileName = "castoff.toml"
	// HiddenConfigFileName is the dotted fallback.
	HiddenConfigFileName = ".castoff.toml"
)

// LoadOptions control config resolution.
type LoadOptions struct {
	// ConfigFilePath, when set via --config, is used exclusively and
	// must exist.
	ConfigFilePath string

	// Dir is the directory searched for castoff.toml and .castoff.toml.
	// Empty means the current working directory.
	Dir string
}

// Load resolves the release configuration: defaults, then the config
// file (if any), then CASTOFF_* environment variables. It returns the
// config and the path of the file it was loaded from ("" when running
// on defaults alone).
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewContext().
				WithOperation("load release config").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'castoff init' to create a starter config").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := mergeFile(v, opts.ConfigFilePath); err != nil {
			return nil, "", err
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		for _, name := range []string{ConfigFileName, HiddenConfigFileName} {
			path := filepath.Join(opts.Dir, name)
			if !fileExists(path) {
				continue
			}
			if err := mergeFile(v, path); err != nil {
				return nil, "", err
			}
			resolvedPath = path
			break
		}
		// No config file is fine, defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("name", defaults.Name)
	v.SetDefault("increment", defaults.Increment)
	v.SetDefault("preid", defaults.Preid)
	v.SetDefault("files", defaults.Files)
	v.SetDefault("hooks.before_start", defaults.Hooks.BeforeStart)
	v.SetDefault("hooks.before_bump", defaults.Hooks.BeforeBump)
	v.SetDefault("hooks.after_bump", defaults.Hooks.AfterBump)
	v.SetDefault("hooks.before_stage", defaults.Hooks.BeforeStage)
	v.SetDefault("hooks.after_release", defaults.Hooks.AfterRelease)
	v.SetDefault("git.require_clean", defaults.Git.RequireClean)
	v.SetDefault("git.require_upstream", defaults.Git.RequireUpstream)
	v.SetDefault("git.commit", defaults.Git.Commit)
	v.SetDefault("git.commit_message", defaults.Git.CommitMessage)
	v.SetDefault("git.tag", defaults.Git.Tag)
	v.SetDefault("git.tag_name", defaults.Git.TagName)
	v.SetDefault("git.tag_annotation", defaults.Git.TagAnnotation)
	v.SetDefault("git.push", defaults.Git.Push)
	v.SetDefault("git.stage_dir", defaults.Git.StageDir)
	v.SetDefault("git.changelog_cmd", defaults.Git.ChangelogCmd)
	v.SetDefault("github.release", defaults.Github.Release)
	v.SetDefault("github.release_name", defaults.Github.ReleaseName)
	v.SetDefault("github.draft", defaults.Github.Draft)
	v.SetDefault("github.assets", defaults.Github.Assets)
	v.SetDefault("github.owner", defaults.Github.Owner)
	v.SetDefault("github.repo", defaults.Github.Repo)
	v.SetDefault("github.token_env", defaults.Github.TokenEnv)
	v.SetDefault("github.api_base_url", defaults.Github.APIBaseURL)
	v.SetDefault("npm.publish", defaults.Npm.Publish)
	v.SetDefault("npm.private", defaults.Npm.Private)
	v.SetDefault("npm.tag", defaults.Npm.Tag)
	v.SetDefault("npm.otp", defaults.Npm.OTP)
	v.SetDefault("npm.registry", defaults.Npm.Registry)
	v.SetDefault("beacon.url", defaults.Beacon.URL)
	v.SetDefault("ui.interactive", defaults.UI.Interactive)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return issue.NewContext().
			WithOperation("load release config").
			WithResource(path).
			Wrap(err).
			BuildError()
	}
	defer f.Close()

	if err := v.MergeConfig(f); err != nil {
		return issue.NewContext().
			WithOperation("load release config").
			WithResource(path).
			WithSuggestion("Check that the file contains valid TOML syntax").
			Wrap(err).
			BuildError()
	}
	return nil
}

// validate checks constraints a TOML parse cannot express.
func validate(cfg *Config) error {
	if cfg.Dist != nil && cfg.Dist.Repo == "" {
		return issue.NewContext().
			WithOperation("validate release config").
			WithResource("dist.repo").
			WithSuggestion("Set dist.repo to the distribution repository clone URL").
			WithSuggestion("Or remove the [dist] section to release a single repository").
			Wrap(fmt.Errorf("dist section present without a repo")).
			BuildError()
	}
	if cfg.Github.TokenEnv == "" {
		cfg.Github.TokenEnv = "GITHUB_TOKEN"
	}
	if cfg.Dist != nil {
		if cfg.Dist.Github.TokenEnv == "" {
			cfg.Dist.Github.TokenEnv = cfg.Github.TokenEnv
		}
		defaults := DefaultConfig()
		if cfg.Dist.Git.CommitMessage == "" {
			cfg.Dist.Git.CommitMessage = defaults.Git.CommitMessage
		}
		if cfg.Dist.Git.TagName == "" {
			cfg.Dist.Git.TagName = defaults.Git.TagName
		}
		if cfg.Dist.Git.TagAnnotation == "" {
			cfg.Dist.Git.TagAnnotation = defaults.Git.TagAnnotation
		}
		if cfg.Dist.Github.ReleaseName == "" {
			cfg.Dist.Github.ReleaseName = defaults.Github.ReleaseName
		}
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateTOML renders a starter configuration file for 'castoff init'.
func GenerateTOML(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("# castoff release configuration\n\n")
	if cfg.Name != "" {
		sb.WriteString(fmt.Sprintf("name = %q\n", cfg.Name))
	}
	if cfg.Increment != "" {
		sb.WriteString(fmt.Sprintf("increment = %q\n", cfg.Increment))
	}
	if len(cfg.Files) > 0 {
		sb.WriteString("files = [")
		for i, f := range cfg.Files {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%q", f))
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\n[git]\n")
	sb.WriteString(fmt.Sprintf("commit_message = %q\n", cfg.Git.CommitMessage))
	sb.WriteString(fmt.Sprintf("tag_name = %q\n", cfg.Git.TagName))
	sb.WriteString(fmt.Sprintf("push = %v\n", cfg.Git.Push))

	sb.WriteString("\n[github]\n")
	sb.WriteString(fmt.Sprintf("release = %v\n", cfg.Github.Release))
	sb.WriteString(fmt.Sprintf("release_name = %q\n", cfg.Github.ReleaseName))

	sb.WriteString("\n[npm]\n")
	sb.WriteString(fmt.Sprintf("publish = %v\n", cfg.Npm.Publish))

	return sb.String()
}
