// SPDX-License-Identifier: MPL-2.0

package config

type (
	// Config is the full release configuration.
	Config struct {
		// Name identifies the package being released. When empty the
		// pipeline reads it from the first bump file that declares one
		// (package.json), falling back to the repository directory name.
		Name string `mapstructure:"name"`

		// Increment is the default version increment (patch, minor,
		// major, prepatch, preminor, premajor, prerelease or an explicit
		// semver literal). Empty means resolve interactively or from the
		// command line.
		Increment string `mapstructure:"increment"`

		// Preid is the pre-release channel used by the pre* increments
		// (e.g. "beta" yields 1.2.0-beta.0).
		Preid string `mapstructure:"preid"`

		// Files lists manifest files whose version field is bumped,
		// relative to the repository root.
		Files []string `mapstructure:"files"`

		Hooks  Hooks        `mapstructure:"hooks"`
		Git    GitConfig    `mapstructure:"git"`
		Github GithubConfig `mapstructure:"github"`
		Npm    NpmConfig    `mapstructure:"npm"`
		Dist   *DistConfig  `mapstructure:"dist"`
		Beacon BeaconConfig `mapstructure:"beacon"`
		UI     UIConfig     `mapstructure:"ui"`
	}

	// Hooks are shell commands run at fixed points in the release.
	// Empty hooks are skipped. Commands may reference ${version},
	// ${latestVersion}, ${name} and ${latestTag}.
	Hooks struct {
		BeforeStart  string `mapstructure:"before_start"`
		BeforeBump   string `mapstructure:"before_bump"`
		AfterBump    string `mapstructure:"after_bump"`
		BeforeStage  string `mapstructure:"before_stage"`
		AfterRelease string `mapstructure:"after_release"`
	}

	// GitConfig controls the local repository steps.
	GitConfig struct {
		RequireClean    bool   `mapstructure:"require_clean"`
		RequireUpstream bool   `mapstructure:"require_upstream"`
		Commit          bool   `mapstructure:"commit"`
		CommitMessage   string `mapstructure:"commit_message"`
		Tag             bool   `mapstructure:"tag"`
		TagName         string `mapstructure:"tag_name"`
		TagAnnotation   string `mapstructure:"tag_annotation"`
		Push            bool   `mapstructure:"push"`
		StageDir        string `mapstructure:"stage_dir"`
		ChangelogCmd    string `mapstructure:"changelog_cmd"`
	}

	// GithubConfig controls the forge release step.
	GithubConfig struct {
		Release     bool     `mapstructure:"release"`
		ReleaseName string   `mapstructure:"release_name"`
		Draft       bool     `mapstructure:"draft"`
		Assets      []string `mapstructure:"assets"`
		Owner       string   `mapstructure:"owner"`
		Repo        string   `mapstructure:"repo"`
		TokenEnv    string   `mapstructure:"token_env"`
		APIBaseURL  string   `mapstructure:"api_base_url"`
	}

	// NpmConfig controls the registry publish step.
	NpmConfig struct {
		Publish  bool   `mapstructure:"publish"`
		Private  bool   `mapstructure:"private"`
		Tag      string `mapstructure:"tag"`
		OTP      string `mapstructure:"otp"`
		Registry string `mapstructure:"registry"`
	}

	// DistConfig describes an optional secondary distribution repository
	// that receives built artifacts and is released in lockstep with the
	// source repository. A nil DistConfig disables the feature.
	DistConfig struct {
		// Repo is the clone URL of the distribution repository.
		Repo string `mapstructure:"repo"`

		// StageDir is the directory whose contents are copied into the
		// distribution clone.
		StageDir string `mapstructure:"stage_dir"`

		// Files are glob patterns selecting which staged files to copy.
		Files []string `mapstructure:"files"`

		// BumpFiles lists manifests inside the distribution repo to bump.
		BumpFiles []string `mapstructure:"bump_files"`

		// BeforeStage runs inside the distribution clone before staging.
		BeforeStage string `mapstructure:"before_stage"`

		Git    GitConfig    `mapstructure:"git"`
		Github GithubConfig `mapstructure:"github"`
		Npm    NpmConfig    `mapstructure:"npm"`
	}

	// BeaconConfig controls anonymous lifecycle event reporting.
	BeaconConfig struct {
		// URL receives start/end/exception events. Empty disables the
		// beacon entirely.
		URL string `mapstructure:"url"`
	}

	// UIConfig holds presentation defaults that flags may override.
	UIConfig struct {
		Interactive bool `mapstructure:"interactive"`
		Verbose     bool `mapstructure:"verbose"`
	}
)

// DefaultConfig returns the built-in defaults: commit, tag and push are
// on, forge release and registry publish are on, the dist repo is off.
func DefaultConfig() *Config {
	return &Config{
		Git: GitConfig{
			RequireClean:    true,
			RequireUpstream: true,
			Commit:          true,
			CommitMessage:   "Release ${version}",
			Tag:             true,
			TagName:         "${version}",
			TagAnnotation:   "Release ${version}",
			Push:            true,
		},
		Github: GithubConfig{
			Release:     true,
			ReleaseName: "${version}",
			TokenEnv:    "GITHUB_TOKEN",
		},
		Npm: NpmConfig{
			Publish: true,
		},
		UI: UIConfig{
			Interactive: true,
		},
	}
}
