// SPDX-License-Identifier: MPL-2.0

package taskgraph

import (
	"context"
	"fmt"
	"os"
)

// Kind distinguishes task targets from file targets.
const (
	KindTask Kind = iota
	KindFile
)

type (
	// Kind is the target variant.
	Kind int

	// Action is the work a target performs.
	Action func(ctx context.Context) error

	// Target is a named node of the build graph.
	Target struct {
		// Name identifies the target. For file targets it is the path.
		Name string
		Kind Kind
		// Deps are run in declaration order before the target's actions.
		Deps    []string
		Actions []Action
		// Description is shown by target listings. Described targets are
		// considered operator-facing.
		Description string
	}
)

// String returns the kind label.
func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Task creates a task target. A nil action makes a pure grouping target.
func Task(name string, deps []string, action Action) *Target {
	return newTarget(name, KindTask, deps, action)
}

// File creates a file target producing path.
func File(path string, deps []string, action Action) *Target {
	return newTarget(path, KindFile, deps, action)
}

// Directory creates a file target that creates path and its parents.
func Directory(path string, deps ...string) *Target {
	return File(path, deps, func(context.Context) error {
		return os.MkdirAll(path, 0o755)
	})
}

func newTarget(name string, kind Kind, deps []string, action Action) *Target {
	t := &Target{
		Name: name,
		Kind: kind,
		Deps: append([]string(nil), deps...),
	}
	if action != nil {
		t.Actions = []Action{action}
	}
	return t
}

// Describe sets the description and returns t.
func (t *Target) Describe(desc string) *Target {
	t.Description = desc
	return t
}

// Exposed reports whether the target is meant to be invoked by an operator.
func (t *Target) Exposed() bool { return t.Description != "" }
