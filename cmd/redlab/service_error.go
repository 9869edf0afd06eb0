// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redlab/redlab/internal/issue"
	"github.com/redlab/redlab/internal/release"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/toolexec"
	"github.com/redlab/redlab/pkg/types"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. When the CLI layer receives a ServiceError, it renders the
// styled error message (if present) before formatting the underlying error.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints any styled message first, then the optional
// issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// classifyError maps a failed run to an issue catalog ID and the process
// exit code. A failing external tool passes its own exit status through.
func classifyError(err error) (issueID issue.Id, code types.ExitCode) {
	code = types.ExitFailure

	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		issueID = ae.Issue
	}

	var exitErr *toolexec.ExitError
	if errors.As(err, &exitErr) && !exitErr.ExitCode.IsSuccess() {
		code = exitErr.ExitCode.Clamp()
	}

	switch {
	case issueID != 0:
	case errors.Is(err, release.ErrDirtyWorkingTree):
		issueID = issue.DirtyWorkingTreeId
	case errors.Is(err, release.ErrVersionConflict):
		issueID = issue.VersionConflictId
	case errors.Is(err, release.ErrReleaseVersionRequired):
		issueID = issue.ReleaseVersionRequiredId
	case errors.Is(err, taskgraph.ErrCyclicDependency):
		issueID = issue.DependencyCycleId
	case errors.Is(err, taskgraph.ErrUnknownTarget):
		issueID = issue.UnknownTargetId
	case errors.Is(err, toolexec.ErrHostsFailed):
		issueID = issue.HostsFailedId
	case errors.Is(err, toolexec.ErrMissingTool):
		issueID = issue.MissingToolId
		if exitErr == nil {
			code = types.ExitNotFound
		}
	default:
		var actionErr *taskgraph.ActionError
		if errors.As(err, &actionErr) {
			issueID = issue.TargetFailedId
		}
	}
	return issueID, code
}

// newRunError wraps a failed run for rendering and exit status. Actionable
// errors get a styled message with their suggestions.
func newRunError(err error, verbose bool) *ExitError {
	issueID, code := classifyError(err)
	var styled string
	var ae *issue.ActionableError
	if errors.As(err, &ae) && (ae.HasSuggestions() || verbose) {
		styled = fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	}
	return &ExitError{Code: code, Err: newServiceError(err, issueID, styled)}
}
