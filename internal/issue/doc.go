// SPDX-License-Identifier: MPL-2.0

// Package issue provides structured, user-facing errors for release
// preconditions and failures, with suggestions on how to resolve them.
package issue
