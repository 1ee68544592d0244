// SPDX-License-Identifier: MPL-2.0

// Package version resolves the next release version from a baseline version
// and an increment directive. It wraps Masterminds/semver for parsing and
// ordering; the pre-release bump rules mirror the conventional
// patch/minor/major and prepatch/preminor/premajor/prerelease keywords.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

// Increment is a semantic-version bump category.
type Increment string

const (
	// IncrementPatch bumps the patch component.
	IncrementPatch Increment = "patch"
	// IncrementMinor bumps the minor component and resets patch.
	IncrementMinor Increment = "minor"
	// IncrementMajor bumps the major component and resets minor and patch.
	IncrementMajor Increment = "major"
	// IncrementPrePatch bumps patch and starts a new pre-release sequence.
	IncrementPrePatch Increment = "prepatch"
	// IncrementPreMinor bumps minor and starts a new pre-release sequence.
	IncrementPreMinor Increment = "preminor"
	// IncrementPreMajor bumps major and starts a new pre-release sequence.
	IncrementPreMajor Increment = "premajor"
	// IncrementPreRelease bumps the numeric suffix of an existing pre-release,
	// or starts one from a stable version.
	IncrementPreRelease Increment = "prerelease"
)

type (
	// InvalidVersionError is returned when an increment token is neither a
	// recognized keyword nor a valid literal version, or when resolution
	// finished without producing a version.
	InvalidVersionError struct {
		Input  string
		Reason string
	}

	// Decision is the outcome of version resolution. Next stays nil until a
	// version has been resolved; Validate enforces that before use.
	Decision struct {
		Previous *semver.Version
		Next     *semver.Version
		Channel  string
		// FromTag records whether the baseline came from a git tag rather
		// than a registry-reported version. Informational only.
		FromTag bool
	}

	// BumpOptions carries the increment directive for Bump.
	BumpOptions struct {
		// Increment is a keyword, a literal version string, or empty.
		// Empty defers resolution to the interactive flow.
		Increment string
		// Channel is the pre-release identifier (e.g. "beta") combined with
		// pre-release increments.
		Channel string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid version: %s", e.Reason)
	}
	return fmt.Sprintf("invalid version or increment %q", e.Input)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// ParseIncrement reports whether s is a recognized increment keyword.
func ParseIncrement(s string) (Increment, bool) {
	switch inc := Increment(strings.ToLower(s)); inc {
	case IncrementPatch, IncrementMinor, IncrementMajor,
		IncrementPrePatch, IncrementPreMinor, IncrementPreMajor, IncrementPreRelease:
		return inc, true
	default:
		return "", false
	}
}

// IsPreRelease reports whether the increment produces a pre-release version.
func (i Increment) IsPreRelease() bool {
	switch i {
	case IncrementPrePatch, IncrementPreMinor, IncrementPreMajor, IncrementPreRelease:
		return true
	default:
		return false
	}
}

// Bump resolves the next version from the baseline according to opts.
//
// An empty increment yields a Decision with Next unset, deferring the choice
// to the interactive flow. A non-empty increment that is neither a keyword
// nor a parseable literal version fails with InvalidVersionError.
func Bump(current string, opts BumpOptions) (*Decision, error) {
	prev, err := parseBaseline(current)
	if err != nil {
		return nil, err
	}

	d := &Decision{Previous: prev, Channel: opts.Channel}

	if opts.Increment == "" {
		return d, nil
	}

	if inc, ok := ParseIncrement(opts.Increment); ok {
		next, bumpErr := apply(prev, inc, opts.Channel)
		if bumpErr != nil {
			return nil, bumpErr
		}
		d.Next = next
		return d, nil
	}

	// Not a keyword: accept a literal version string.
	literal, parseErr := semver.NewVersion(opts.Increment)
	if parseErr != nil {
		return nil, &InvalidVersionError{Input: opts.Increment}
	}
	d.Next = literal
	return d, nil
}

// SetNext installs an explicitly chosen version, used by the interactive
// resolution loop. It fails with InvalidVersionError on unparseable input.
func (d *Decision) SetNext(raw string) error {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return &InvalidVersionError{Input: raw}
	}
	d.Next = v
	return nil
}

// Validate fails with InvalidVersionError when no version was resolved.
// It must be called after resolution and before any file is bumped.
func (d *Decision) Validate() error {
	if d.Next == nil {
		return &InvalidVersionError{Reason: "no version was resolved"}
	}
	return nil
}

// IsPreRelease reports whether the resolved version carries a pre-release
// identifier.
func (d *Decision) IsPreRelease() bool {
	return d.Next != nil && d.Next.Prerelease() != ""
}

// PreReleaseChannel returns the leading identifier of the resolved version's
// pre-release suffix ("1.2.0-beta.1" yields "beta"), or "" for stable
// versions and purely numeric suffixes.
func (d *Decision) PreReleaseChannel() string {
	if d.Next == nil {
		return ""
	}
	return channelOf(d.Next.Prerelease())
}

// Candidates returns the next version for every increment keyword, used to
// build the interactive choice menu. Keywords that fail to apply are omitted.
func (d *Decision) Candidates() map[Increment]string {
	out := make(map[Increment]string)
	for _, inc := range []Increment{
		IncrementPatch, IncrementMinor, IncrementMajor,
		IncrementPrePatch, IncrementPreMinor, IncrementPreMajor, IncrementPreRelease,
	} {
		if v, err := apply(d.Previous, inc, d.Channel); err == nil {
			out[inc] = v.String()
		}
	}
	return out
}

// parseBaseline parses the baseline version, tolerating a leading "v" and
// treating the empty string as 0.0.0 (a repository with no prior release).
func parseBaseline(current string) (*semver.Version, error) {
	if current == "" {
		current = "0.0.0"
	}
	v, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return nil, &InvalidVersionError{Input: current}
	}
	return v, nil
}

// apply computes the next version for one increment keyword.
func apply(v *semver.Version, inc Increment, channel string) (*semver.Version, error) {
	switch inc {
	case IncrementPatch:
		next := v.IncPatch()
		return &next, nil
	case IncrementMinor:
		next := v.IncMinor()
		return &next, nil
	case IncrementMajor:
		next := v.IncMajor()
		return &next, nil
	case IncrementPrePatch:
		return semver.New(v.Major(), v.Minor(), v.Patch()+1, preIdent(channel), ""), nil
	case IncrementPreMinor:
		return semver.New(v.Major(), v.Minor()+1, 0, preIdent(channel), ""), nil
	case IncrementPreMajor:
		return semver.New(v.Major()+1, 0, 0, preIdent(channel), ""), nil
	case IncrementPreRelease:
		return nextPreRelease(v, channel)
	default:
		return nil, &InvalidVersionError{Input: string(inc)}
	}
}

// nextPreRelease bumps the numeric suffix of an existing pre-release of the
// same channel, or starts a fresh pre-release sequence otherwise.
func nextPreRelease(v *semver.Version, channel string) (*semver.Version, error) {
	pre := v.Prerelease()
	if pre == "" {
		// No existing pre-release: behaves like prepatch.
		return semver.New(v.Major(), v.Minor(), v.Patch()+1, preIdent(channel), ""), nil
	}

	if channel != "" && channelOf(pre) != channel {
		// Channel switch: restart the sequence on the same base version.
		return semver.New(v.Major(), v.Minor(), v.Patch(), channel+".0", ""), nil
	}

	idents := strings.Split(pre, ".")
	last := idents[len(idents)-1]
	if n, err := strconv.Atoi(last); err == nil {
		idents[len(idents)-1] = strconv.Itoa(n + 1)
	} else {
		idents = append(idents, "0")
	}

	return semver.New(v.Major(), v.Minor(), v.Patch(), strings.Join(idents, "."), ""), nil
}

// preIdent builds the initial pre-release suffix for a channel.
func preIdent(channel string) string {
	if channel == "" {
		return "0"
	}
	return channel + ".0"
}

// channelOf extracts the channel identifier from a pre-release suffix.
// Purely numeric suffixes have no channel.
func channelOf(pre string) string {
	if pre == "" {
		return ""
	}
	first := strings.SplitN(pre, ".", 2)[0]
	if _, err := strconv.Atoi(first); err == nil {
		return ""
	}
	return first
}
