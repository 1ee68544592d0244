// SPDX-License-Identifier: MPL-2.0

// Package config loads castoff's release configuration. Settings are
// layered: built-in defaults, then castoff.toml (or .castoff.toml) from
// the repository root, then CASTOFF_* environment variables, then
// command-line flags applied by the caller.
package config
