// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
)

func TestBump_Keywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		current   string
		increment string
		channel   string
		want      string
	}{
		{"patch", "1.0.0", "patch", "", "1.0.1"},
		{"minor", "1.2.3", "minor", "", "1.3.0"},
		{"major", "1.2.3", "major", "", "2.0.0"},
		{"patch finalizes prerelease", "1.2.1-beta.0", "patch", "", "1.2.1"},
		{"prepatch", "1.2.0", "prepatch", "beta", "1.2.1-beta.0"},
		{"preminor", "1.2.0", "preminor", "beta", "1.3.0-beta.0"},
		{"premajor", "1.2.0", "premajor", "rc", "2.0.0-rc.0"},
		{"prerelease from stable", "1.1.0", "prerelease", "beta", "1.1.1-beta.0"},
		{"prerelease bumps suffix", "1.2.0-beta.0", "prerelease", "beta", "1.2.0-beta.1"},
		{"prerelease keeps channel without preid", "1.2.0-beta.3", "prerelease", "", "1.2.0-beta.4"},
		{"prerelease channel switch", "1.2.0-alpha.4", "prerelease", "beta", "1.2.0-beta.0"},
		{"prerelease numeric suffix", "1.2.0-0", "prerelease", "", "1.2.0-1"},
		{"prerelease appends counter", "1.2.0-beta", "prerelease", "beta", "1.2.0-beta.0"},
		{"upper-case keyword", "1.0.0", "PATCH", "", "1.0.1"},
		{"literal version", "1.0.0", "3.2.1", "", "3.2.1"},
		{"v-prefixed baseline", "v2.0.0", "patch", "", "2.0.1"},
		{"empty baseline", "", "minor", "", "0.1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := Bump(tt.current, BumpOptions{Increment: tt.increment, Channel: tt.channel})
			if err != nil {
				t.Fatalf("Bump(%q, %q) error: %v", tt.current, tt.increment, err)
			}
			if d.Next == nil {
				t.Fatalf("Bump(%q, %q) resolved no version", tt.current, tt.increment)
			}
			if got := d.Next.String(); got != tt.want {
				t.Errorf("Bump(%q, %q) = %q, want %q", tt.current, tt.increment, got, tt.want)
			}
		})
	}
}

func TestBump_KeywordsAreStrictlyGreater(t *testing.T) {
	t.Parallel()

	bases := []string{"0.0.1", "1.0.0", "1.2.3", "2.0.0-beta.1", "10.4.2"}
	keywords := []string{"patch", "minor", "major", "prepatch", "preminor", "premajor", "prerelease"}

	for _, base := range bases {
		baseVer := semver.MustParse(base)
		for _, kw := range keywords {
			d, err := Bump(base, BumpOptions{Increment: kw, Channel: "beta"})
			if err != nil {
				t.Fatalf("Bump(%q, %q) error: %v", base, kw, err)
			}
			if !d.Next.GreaterThan(baseVer) {
				t.Errorf("Bump(%q, %q) = %s, not greater than base", base, kw, d.Next)
			}
		}
	}
}

func TestBump_InvalidIncrement(t *testing.T) {
	t.Parallel()

	for _, inc := range []string{"bogus", "1.2", "patsh", "vnext"} {
		_, err := Bump("1.0.0", BumpOptions{Increment: inc})
		if err == nil {
			t.Fatalf("Bump with increment %q succeeded, want error", inc)
		}
		if !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Bump error for %q = %v, want ErrInvalidVersion", inc, err)
		}
	}
}

func TestBump_EmptyIncrementDefersResolution(t *testing.T) {
	t.Parallel()

	d, err := Bump("1.0.0", BumpOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Next != nil {
		t.Fatalf("Next = %v, want nil for deferred resolution", d.Next)
	}
	if err := d.Validate(); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("Validate on unresolved decision = %v, want ErrInvalidVersion", err)
	}
}

func TestDecision_Validate(t *testing.T) {
	t.Parallel()

	d, err := Bump("1.0.0", BumpOptions{Increment: "patch"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate after successful resolution = %v, want nil", err)
	}
}

func TestDecision_SetNext(t *testing.T) {
	t.Parallel()

	d, _ := Bump("1.0.0", BumpOptions{}) //nolint:errcheck // Valid baseline cannot fail.
	if err := d.SetNext("not-a-version"); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("SetNext with garbage = %v, want ErrInvalidVersion", err)
	}
	if err := d.SetNext("2.0.0"); err != nil {
		t.Fatalf("SetNext(2.0.0) error: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate after SetNext = %v, want nil", err)
	}
}

func TestDecision_PreReleaseChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    string
	}{
		{"2.0.0-beta.3", "beta"},
		{"1.0.0-rc.1", "rc"},
		{"1.0.0-0", ""},
		{"1.0.0", ""},
	}

	for _, tt := range tests {
		d, err := Bump("0.1.0", BumpOptions{Increment: tt.version})
		if err != nil {
			t.Fatalf("Bump literal %q error: %v", tt.version, err)
		}
		if got := d.PreReleaseChannel(); got != tt.want {
			t.Errorf("PreReleaseChannel(%q) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestDecision_Candidates(t *testing.T) {
	t.Parallel()

	d, err := Bump("1.2.3", BumpOptions{Channel: "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cands := d.Candidates()
	if got := cands[IncrementPatch]; got != "1.2.4" {
		t.Errorf("patch candidate = %q, want 1.2.4", got)
	}
	if got := cands[IncrementPreMajor]; got != "2.0.0-beta.0" {
		t.Errorf("premajor candidate = %q, want 2.0.0-beta.0", got)
	}
	if len(cands) != 7 {
		t.Errorf("got %d candidates, want 7", len(cands))
	}
}

func TestChooseBaseline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		tag          string
		registry     string
		wantVersion  string
		wantFromTag  bool
		wantWarnings int
	}{
		{"tag only", "v1.2.0", "", "1.2.0", true, 0},
		{"registry only", "", "1.1.0", "1.1.0", false, 0},
		{"agreement", "v1.0.0", "1.0.0", "1.0.0", true, 0},
		{"tag ahead", "v1.1.0", "1.0.0", "1.1.0", true, 1},
		{"registry ahead", "v1.0.0", "1.2.0", "1.2.0", false, 1},
		{"neither", "", "", "", false, 0},
		{"garbage tag", "nightly", "1.0.0", "1.0.0", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := ChooseBaseline(tt.tag, tt.registry)
			if b.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", b.Version, tt.wantVersion)
			}
			if b.FromTag != tt.wantFromTag {
				t.Errorf("FromTag = %v, want %v", b.FromTag, tt.wantFromTag)
			}
			if len(b.Warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings (%v), want %d", len(b.Warnings), b.Warnings, tt.wantWarnings)
			}
		})
	}
}
