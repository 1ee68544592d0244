// SPDX-License-Identifier: MPL-2.0

package issue

import "fmt"

// Precondition constructors for the release preflight. Each returns an
// ActionableError whose suggestions tell the operator how to get the
// repository into a releasable state.

// DirtyWorkTree reports uncommitted changes blocking a release.
func DirtyWorkTree(status string, cause error) *ActionableError {
	return NewContext().
		WithOperation("start release").
		WithSuggestion("Commit or stash your changes before releasing").
		WithSuggestion("Pending changes:\n" + status).
		Wrap(cause).
		Build()
}

// NoUpstream reports a branch without an upstream to push to.
func NoUpstream(branch string, cause error) *ActionableError {
	return NewContext().
		WithOperation("start release").
		WithResource(branch).
		WithSuggestion(fmt.Sprintf("Set an upstream with 'git push -u origin %s'", branch)).
		Wrap(cause).
		Build()
}

// MissingToken reports an unset forge token environment variable.
func MissingToken(envVar string) *ActionableError {
	return NewContext().
		WithOperation("authenticate with the forge").
		WithResource(envVar).
		WithSuggestion(fmt.Sprintf("Export %s with a token that has repo scope", envVar)).
		WithSuggestion("Or disable forge releases with github.release = false").
		Build()
}

// NotARepo reports that the working directory is not a git repository.
func NotARepo(dir string, cause error) *ActionableError {
	return NewContext().
		WithOperation("open repository").
		WithResource(dir).
		WithSuggestion("Run castoff from inside a git repository").
		Wrap(cause).
		Build()
}
