// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redlab/redlab/internal/taskgraph"

	"github.com/spf13/cobra"
)

// newTargetsCommand creates the `redlab targets` command.
func newTargetsCommand(app *App) *cobra.Command {
	var all bool

	targetsCmd := &cobra.Command{
		Use:     "targets",
		Aliases: []string{"list"},
		Short:   "List the available targets",
		Long: `List the targets defined for this project, in definition order.

By default only targets with a description are shown. Use --all to include
file targets and internal steps.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(app.listTargets(cmd.Context(), all))
		},
	}

	targetsCmd.Flags().BoolVarP(&all, "all", "a", false, "include undescribed targets")

	return targetsCmd
}

func (a *App) listTargets(ctx context.Context, all bool) error {
	s, err := a.newSession(ctx, nil)
	if err != nil {
		return err
	}

	var shown []*taskgraph.Target
	width := 0
	for _, t := range s.graph.Targets() {
		if !all && !t.Exposed() {
			continue
		}
		shown = append(shown, t)
		width = max(width, len(t.Name))
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Targets for "+s.project.Name+":"))
	for _, t := range shown {
		line := "  " + TargetStyle.Render(t.Name) + strings.Repeat(" ", width-len(t.Name)+2)
		if t.Description != "" {
			line += SubtitleStyle.Render(t.Description)
		} else {
			line += VerboseStyle.Render("(" + t.Kind.String() + ")")
		}
		fmt.Fprintln(a.stdout, strings.TrimRight(line, " "))
	}

	for _, skip := range s.selection.Skipped {
		fmt.Fprintln(a.stdout, WarningStyle.Render(fmt.Sprintf("  %s packaging unavailable: %v", skip.Name, skip.Reason)))
	}
	return nil
}
