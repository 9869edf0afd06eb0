// SPDX-License-Identifier: MPL-2.0

// Package taskgraph is the build target registry and executor.
//
// A Graph holds named targets. Task targets run their actions at most once
// per graph; file targets run only when their path is missing or older than
// a file dependency. Run walks dependencies depth-first in declaration order,
// memoizing every target that completed. Cycles are rejected when a target is
// registered or extended, and Validate re-checks the whole graph with a
// topological sort.
package taskgraph
