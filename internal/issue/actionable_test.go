// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	errMissingTool = errors.New("required tool not found")
	errDirtyTree   = errors.New("working tree has uncommitted changes")
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "missing tool",
			err: &ActionableError{
				Operation: "build native package",
				Resource:  "native-package",
				Cause:     fmt.Errorf("%w: epm", errMissingTool),
			},
			want: "failed to build native package: native-package: required tool not found: epm",
		},
		{
			name: "dirty tree without resource",
			err: &ActionableError{
				Operation: "prepare release",
				Cause:     errDirtyTree,
			},
			want: "failed to prepare release: working tree has uncommitted changes",
		},
		{
			name: "unknown target without cause",
			err: &ActionableError{
				Operation: "run target",
				Resource:  "nativ-package",
			},
			want: "failed to run target: nativ-package",
		},
		{
			name: "cause only",
			err:  &ActionableError{Cause: errDirtyTree},
			want: "working tree has uncommitted changes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_UnwrapsToCause(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("build native package").
		WithIssue(MissingToolId).
		Wrap(fmt.Errorf("%w: mkepmlist", errMissingTool)).
		BuildError()

	if !errors.Is(err, errMissingTool) {
		t.Errorf("errors.Is(%v, errMissingTool) = false", err)
	}
	if (&ActionableError{Operation: "run target"}).Unwrap() != nil {
		t.Error("Unwrap() without a cause should be nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     *ActionableError
		verbose bool
		want    string
	}{
		{
			name: "suggestions",
			err: &ActionableError{
				Operation:   "prepare release",
				Suggestions: []string{"Commit or stash your changes", "Set RELTEST=1 to rehearse"},
				Cause:       errDirtyTree,
			},
			want: "failed to prepare release: working tree has uncommitted changes\n" +
				"\n  • Commit or stash your changes" +
				"\n  • Set RELTEST=1 to rehearse",
		},
		{
			name: "chain hidden unless verbose",
			err: &ActionableError{
				Operation: "run target",
				Resource:  "publish",
				Cause:     fmt.Errorf("copy artifact: %w", errMissingTool),
			},
			want: "failed to run target: publish: copy artifact: required tool not found",
		},
		{
			name: "verbose chain",
			err: &ActionableError{
				Operation: "run target",
				Resource:  "native-package",
				Cause:     fmt.Errorf("define strategies: %w", fmt.Errorf("%w: epm", errMissingTool)),
			},
			verbose: true,
			want: "failed to run target: native-package: define strategies: required tool not found: epm\n" +
				"\nError chain:" +
				"\n  1. define strategies: required tool not found: epm" +
				"\n  2. required tool not found: epm" +
				"\n  3. required tool not found",
		},
		{
			name: "verbose chain lists joined errors",
			err: &ActionableError{
				Operation: "run",
				Cause:     errors.Join(errors.New(`invalid target name "-x"`), errors.New(`invalid release version "v1.2"`)),
			},
			verbose: true,
			want: "failed to run: invalid target name \"-x\"\ninvalid release version \"v1.2\"\n" +
				"\nError chain:" +
				"\n  1. invalid target name \"-x\"\ninvalid release version \"v1.2\"" +
				"\n    1.1. invalid target name \"-x\"" +
				"\n    1.2. invalid release version \"v1.2\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tt.want, tt.err.Format(tt.verbose)); diff != "" {
				t.Errorf("Format() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestErrorContext_BuildError(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("run default target").
		WithSuggestion("Name a target: redlab run <target>").
		WithSuggestion("").
		WithSuggestion("Set default_target in the project file").
		WithIssue(UnknownTargetId).
		BuildError()

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError() = %T, want *ActionableError", err)
	}
	want := &ActionableError{
		Operation: "run default target",
		Suggestions: []string{
			"Name a target: redlab run <target>",
			"Set default_target in the project file",
		},
		Issue: UnknownTargetId,
	}
	if diff := cmp.Diff(want, ae); diff != "" {
		t.Errorf("BuildError() mismatch (-want +got):\n%s", diff)
	}
	if !ae.HasSuggestions() {
		t.Error("HasSuggestions() = false")
	}
	if (&ActionableError{}).HasSuggestions() {
		t.Error("HasSuggestions() on an empty error = true")
	}
}

func TestErrorContext_BuildsIndependentErrors(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().
		WithOperation("test on host").
		WithSuggestion("Check the ssh configuration").
		WithIssue(HostsFailedId)

	first := ctx.Wrap(errors.New("alpha: exit status 255")).BuildError()
	ctx.WithSuggestion("Rerun with TESTHOSTS limited to the failing hosts")
	second := ctx.Wrap(errors.New("beta: exit status 1")).BuildError()

	var a, b *ActionableError
	if !errors.As(first, &a) || !errors.As(second, &b) {
		t.Fatal("BuildError() should return *ActionableError")
	}
	if a.Cause.Error() == b.Cause.Error() {
		t.Error("each error should keep the cause it was built with")
	}
	if len(a.Suggestions) != 1 || len(b.Suggestions) != 2 {
		t.Errorf("suggestions = %d and %d, want 1 and 2", len(a.Suggestions), len(b.Suggestions))
	}
}
