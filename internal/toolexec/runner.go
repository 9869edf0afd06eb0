// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/redlab/redlab/pkg/types"

	"mvdan.cc/sh/v3/syntax"
)

// ErrToolFailed is the sentinel wrapped by ExitError.
var ErrToolFailed = errors.New("external tool failed")

type (
	// Command describes one external tool invocation.
	Command struct {
		// Name is the executable, looked up on PATH when not a path.
		Name string
		// Args are passed verbatim; no shell is involved.
		Args []string
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env holds extra KEY=VALUE pairs appended to the inherited environment.
		Env []string
	}

	// Result is the captured outcome of a command that was started.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode types.ExitCode
	}

	// Runner executes external commands synchronously.
	//
	// Run returns an error only when the command could not be started at all
	// (missing binary, bad working directory, canceled context). A command that
	// ran and exited non-zero is reported through Result.ExitCode with a nil
	// error, so callers decide whether the status is fatal.
	Runner interface {
		Run(ctx context.Context, cmd Command) (Result, error)
	}

	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of helper-process implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// ExecRunnerOption configures an ExecRunner.
	ExecRunnerOption func(*ExecRunner)

	// ExecRunner is the os/exec backed Runner.
	ExecRunner struct {
		execCommand ExecCommandFunc
		baseEnv     []string
	}

	// ExitError reports a command that ran but exited non-zero.
	ExitError struct {
		Command  Command
		ExitCode types.ExitCode
		Stdout   string
		Stderr   string
	}
)

// WithExecCommand overrides how exec.Cmd values are created.
func WithExecCommand(fn ExecCommandFunc) ExecRunnerOption {
	return func(r *ExecRunner) {
		r.execCommand = fn
	}
}

// WithBaseEnv replaces the inherited environment (os.Environ by default).
func WithBaseEnv(env []string) ExecRunnerOption {
	return func(r *ExecRunner) {
		r.baseEnv = env
	}
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(opts ...ExecRunnerOption) *ExecRunner {
	r := &ExecRunner{execCommand: exec.CommandContext}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the command, waits for it and captures its output.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Name == "" {
		return Result{ExitCode: types.ExitFailure}, errors.New("empty command")
	}

	cmd := r.execCommand(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 || r.baseEnv != nil {
		base := r.baseEnv
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(append([]string{}, base...), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = types.ExitCode(exitErr.ExitCode()).Clamp()
			return result, nil
		}
		result.ExitCode = types.ExitNotFound
		return result, fmt.Errorf("failed to run %s: %w", c.Name, err)
	}

	return result, nil
}

// Success reports whether the command exited zero.
func (r Result) Success() bool { return r.ExitCode.IsSuccess() }

// Output returns stdout followed by stderr, for logs and error reports.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// RunChecked runs cmd and converts a non-zero exit into an *ExitError.
func RunChecked(ctx context.Context, runner Runner, cmd Command) (Result, error) {
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if !res.Success() {
		return res, &ExitError{
			Command:  cmd,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, nil
}

// String renders the command as a shell-quoted line for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, word := range append([]string{c.Name}, c.Args...) {
		quoted, err := syntax.Quote(word, syntax.LangBash)
		if err != nil {
			quoted = fmt.Sprintf("%q", word)
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command.Name, e.ExitCode)
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		msg += ": " + lastLine(detail)
	}
	return msg
}

// Unwrap returns ErrToolFailed for errors.Is() compatibility.
func (e *ExitError) Unwrap() error { return ErrToolFailed }

// Output returns the combined captured output of the failed command.
func (e *ExitError) Output() string {
	return Result{Stdout: e.Stdout, Stderr: e.Stderr}.Output()
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
