// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is a failure the user can act on: what redlab was doing,
	// the project file, target or host it was working on, what to try next and
	// optionally the catalog issue whose guide the CLI prints.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load project").
	//		WithResource("./redlab.cue").
	//		WithSuggestion("Run 'redlab init' to create one").
	//		WithIssue(issue.ProjectFileNotFoundId).
	//		Wrap(cause).
	//		BuildError()
	ActionableError struct {
		Operation   string
		Resource    string
		Suggestions []string
		Issue       Id
		Cause       error
	}

	// ErrorContext builds an ActionableError.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext creates an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error renders "failed to <operation>: <resource>: <cause>", leaving out
// the parts that are not set.
func (e *ActionableError) Error() string {
	parts := make([]string, 0, 3)
	if e.Operation != "" {
		parts = append(parts, "failed to "+e.Operation)
	}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// HasSuggestions reports whether there is anything for the user to try.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// Format renders the message followed by one bulleted line per suggestion.
// In verbose mode the cause chain follows, one numbered line per wrapped
// error; errors joined with errors.Join are listed branch by branch.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteByte('\n')
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nError chain:")
		writeChain(&b, e.Cause, "", 1)
	}
	return b.String()
}

// writeChain numbers err and everything it wraps. Joined errors become
// nested "n.m." entries.
func writeChain(b *strings.Builder, err error, prefix string, n int) {
	for err != nil {
		label := fmt.Sprintf("%s%d.", prefix, n)
		fmt.Fprintf(b, "\n  %s%s %s", strings.Repeat("  ", strings.Count(prefix, ".")), label, err.Error())

		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for i, branch := range joined.Unwrap() {
				writeChain(b, branch, label, i+1)
			}
			return
		}
		err = errors.Unwrap(err)
		n++
	}
}

// WithOperation sets the verb phrase for what failed, e.g. "run target".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource sets the file, target or host involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithSuggestion appends a hint. Empty hints are ignored.
func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	if s != "" {
		c.err.Suggestions = append(c.err.Suggestions, s)
	}
	return c
}

// WithIssue links the catalog guide the CLI renders for this failure.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.Issue = id
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// BuildError returns a new ActionableError holding a copy of the context, so
// one ErrorContext can produce several errors.
func (c *ErrorContext) BuildError() error {
	ae := c.err
	ae.Suggestions = append([]string(nil), c.err.Suggestions...)
	return &ae
}
