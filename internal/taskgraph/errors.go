// SPDX-License-Identifier: MPL-2.0

package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTarget is the sentinel wrapped by DuplicateTargetError.
	ErrDuplicateTarget = errors.New("duplicate target")
	// ErrCyclicDependency is the sentinel wrapped by CycleError.
	ErrCyclicDependency = errors.New("dependency cycle detected")
	// ErrUnknownTarget is the sentinel wrapped by UnknownTargetError.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrOutputMissing is returned when a file target's action succeeds
	// without producing its path.
	ErrOutputMissing = errors.New("action did not create its output")
)

type (
	// DuplicateTargetError is returned when a target name is registered twice.
	DuplicateTargetError struct {
		Name string
	}

	// CycleError indicates that the dependency relation contains a cycle.
	CycleError struct {
		// Cycle lists the targets on the cycle in dependency order, with the
		// first target repeated at the end.
		Cycle []string
	}

	// UnknownTargetError is returned when a target name is neither registered
	// nor an existing file.
	UnknownTargetError struct {
		Name string
		// NeededBy is the target that declared the dependency, if any.
		NeededBy string
	}

	// ActionError reports the target whose action failed.
	ActionError struct {
		Target string
		Err    error
	}
)

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target %q already registered", e.Name)
}

// Unwrap returns ErrDuplicateTarget for errors.Is() compatibility.
func (e *DuplicateTargetError) Unwrap() error { return ErrDuplicateTarget }

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCyclicDependency for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

func (e *UnknownTargetError) Error() string {
	if e.NeededBy != "" {
		return fmt.Sprintf("don't know how to build target %q (needed by %q)", e.Name, e.NeededBy)
	}
	return fmt.Sprintf("don't know how to build target %q", e.Name)
}

// Unwrap returns ErrUnknownTarget for errors.Is() compatibility.
func (e *UnknownTargetError) Unwrap() error { return ErrUnknownTarget }

func (e *ActionError) Error() string {
	return fmt.Sprintf("target %q failed: %v", e.Target, e.Err)
}

// Unwrap returns the underlying action error.
func (e *ActionError) Unwrap() error { return e.Err }
