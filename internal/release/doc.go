// SPDX-License-Identifier: MPL-2.0

// Package release registers the release workflow targets on top of the
// packaging targets: preflight checks, version bump, commit and tag through
// configurable version-control commands, install and test commands, remote
// host tests, and publishing of built packages with a YAML index.
//
// Version-control and remote operations are plain external commands; in test
// mode the destructive ones (commit, tag) are logged instead of run.
package release
