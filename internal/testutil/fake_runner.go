// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"strings"

	"github.com/redlab/redlab/internal/toolexec"
	"github.com/redlab/redlab/pkg/types"
)

type (
	// Response is the scripted outcome of a matched command.
	Response struct {
		Result toolexec.Result
		// Err simulates a command that could not be started.
		Err error
		// Effect runs before the result is returned, e.g. to create the file a
		// packaging tool would have produced.
		Effect func(cmd toolexec.Command) error
	}

	rule struct {
		prefix string
		resp   Response
	}

	// FakeRunner is a toolexec.Runner that records every command and answers
	// from rules matched against the rendered command line.
	//
	// A rule matches when the command line ("name arg1 arg2 ...") starts with
	// its prefix. Rules are tried in registration order; unmatched commands
	// succeed with empty output.
	FakeRunner struct {
		Calls []toolexec.Command
		rules []rule
	}
)

// NewFakeRunner creates a FakeRunner with no rules.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers a response for commands whose line starts with prefix.
func (f *FakeRunner) On(prefix string, resp Response) *FakeRunner {
	f.rules = append(f.rules, rule{prefix: prefix, resp: resp})
	return f
}

// OnOutput is shorthand for a successful command printing stdout.
func (f *FakeRunner) OnOutput(prefix, stdout string) *FakeRunner {
	return f.On(prefix, Response{Result: toolexec.Result{Stdout: stdout}})
}

// OnExit is shorthand for a command exiting with code and stderr.
func (f *FakeRunner) OnExit(prefix string, code int, stderr string) *FakeRunner {
	return f.On(prefix, Response{Result: toolexec.Result{ExitCode: types.ExitCode(code), Stderr: stderr}})
}

// Run implements toolexec.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd toolexec.Command) (toolexec.Result, error) {
	f.Calls = append(f.Calls, cmd)
	line := Line(cmd)
	for _, r := range f.rules {
		if !strings.HasPrefix(line, r.prefix) {
			continue
		}
		if r.resp.Effect != nil {
			if err := r.resp.Effect(cmd); err != nil {
				return toolexec.Result{ExitCode: 1, Stderr: err.Error()}, nil
			}
		}
		return r.resp.Result, r.resp.Err
	}
	return toolexec.Result{}, nil
}

// Lines returns every recorded command as a space-joined line.
func (f *FakeRunner) Lines() []string {
	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, Line(c))
	}
	return lines
}

// Count returns how many recorded commands start with prefix.
func (f *FakeRunner) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(Line(c), prefix) {
			n++
		}
	}
	return n
}

// Line joins a command's name and arguments with single spaces.
func Line(cmd toolexec.Command) string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}
