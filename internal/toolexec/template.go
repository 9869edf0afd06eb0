// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// ErrEmptyCommand is returned when a command line renders to no words.
var ErrEmptyCommand = errors.New("empty command line")

// templateFuncs are available to command templates: quote shell-quotes one
// word, words shell-quotes and space-joins a list.
var templateFuncs = template.FuncMap{
	"quote": quoteWord,
	"words": func(list []string) string {
		quoted := make([]string, 0, len(list))
		for _, w := range list {
			quoted = append(quoted, quoteWord(w))
		}
		return strings.Join(quoted, " ")
	},
}

// ParseCommand renders line as a text/template against data and splits the
// result into words using POSIX shell quoting rules. No shell runs the
// command; quoting only groups words ("ssh host 'cd dir; ./test'" yields
// three words). Environment references are left unexpanded.
func ParseCommand(line string, data any) (Command, error) {
	rendered := line
	if strings.Contains(line, "{{") {
		tmpl, err := template.New("command").Funcs(templateFuncs).Option("missingkey=error").Parse(line)
		if err != nil {
			return Command{}, fmt.Errorf("parse command template %q: %w", line, err)
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, data); err != nil {
			return Command{}, fmt.Errorf("render command template %q: %w", line, err)
		}
		rendered = sb.String()
	}

	words, err := shell.Fields(rendered, keepVariable)
	if err != nil {
		return Command{}, fmt.Errorf("split command %q: %w", rendered, err)
	}
	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{Name: words[0], Args: words[1:]}, nil
}

func quoteWord(w string) string {
	quoted, err := syntax.Quote(w, syntax.LangPOSIX)
	if err != nil {
		return fmt.Sprintf("%q", w)
	}
	return quoted
}

// keepVariable leaves $NAME references for the remote or child shell.
func keepVariable(name string) string {
	return "$" + name
}
