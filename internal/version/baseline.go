// SPDX-License-Identifier: MPL-2.0

package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Baseline is the chosen starting point for version resolution.
type Baseline struct {
	Version string
	// FromTag is true when the git tag won over the registry-reported
	// version. Used only for warning messages downstream.
	FromTag bool
	// Warnings collects non-fatal observations made while choosing;
	// they inform the operator and never block the pipeline.
	Warnings []string
}

// ChooseBaseline picks the baseline version from the latest git tag and the
// registry-reported version. When both are present and disagree, the higher
// one wins under semantic-version ordering and a warning records the
// mismatch. Either value may be empty.
func ChooseBaseline(tagVersion, registryVersion string) Baseline {
	tag, tagErr := semver.NewVersion(trimV(tagVersion))
	reg, regErr := semver.NewVersion(trimV(registryVersion))

	switch {
	case tagErr == nil && regErr == nil:
		b := Baseline{Version: tag.String(), FromTag: true}
		if !tag.Equal(reg) {
			b.Warnings = append(b.Warnings, fmt.Sprintf(
				"latest git tag (%s) and registry version (%s) differ", tag, reg))
			if reg.GreaterThan(tag) {
				b.Version = reg.String()
				b.FromTag = false
			}
		}
		return b
	case tagErr == nil:
		return Baseline{Version: tag.String(), FromTag: true}
	case regErr == nil:
		return Baseline{Version: reg.String(), FromTag: false}
	default:
		return Baseline{}
	}
}

// trimV strips a single leading "v" so tag names like v1.2.3 parse.
func trimV(s string) string {
	if len(s) > 1 && s[0] == 'v' {
		return s[1:]
	}
	return s
}
