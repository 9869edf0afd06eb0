// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrReleaseVersionRequired is returned when a release is attempted
	// without an explicit version.
	ErrReleaseVersionRequired = errors.New("a release version is required")
	// ErrVersionConflict is returned when the requested version equals the
	// current one and no tag reuse suffix was given.
	ErrVersionConflict = errors.New("release version equals current version")
	// ErrDirtyWorkingTree is the sentinel wrapped by DirtyTreeError.
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes")
	// ErrPublishDirUnset is returned by publish when no publish directory is
	// configured.
	ErrPublishDirUnset = errors.New("publish directory is not configured")
)

// DirtyTreeError lists the changes reported by the status command.
type DirtyTreeError struct {
	Changes []string
}

func (e *DirtyTreeError) Error() string {
	const shown = 5
	changes := e.Changes
	suffix := ""
	if len(changes) > shown {
		suffix = fmt.Sprintf(" (and %d more)", len(changes)-shown)
		changes = changes[:shown]
	}
	return fmt.Sprintf("working tree has uncommitted changes: %s%s", strings.Join(changes, "; "), suffix)
}

// Unwrap returns ErrDirtyWorkingTree for errors.Is() compatibility.
func (e *DirtyTreeError) Unwrap() error { return ErrDirtyWorkingTree }
