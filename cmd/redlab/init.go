// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/redlab/redlab/internal/config"
	"github.com/redlab/redlab/internal/issue"

	"github.com/spf13/cobra"
)

// newInitCommand creates the `redlab init` command.
func newInitCommand(app *App) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a redlab.cue project file",
		Long: `Create a redlab.cue project file with default settings.

The project name defaults to the name of the directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(app.initProject(args, force))
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing project file")

	return initCmd
}

func (a *App) initProject(args []string, force bool) error {
	dir := a.flags.dir
	if dir == "" {
		dir = "."
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	name := filepath.Base(absDir)
	if len(args) > 0 {
		name = args[0]
	}

	path, err := config.CreateProjectFile(absDir, name, force)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("create project file").
			WithResource(absDir).
			WithSuggestion("Use --force to overwrite an existing project file").
			Wrap(err).
			BuildError()
	}

	fmt.Fprintln(a.stdout, SuccessStyle.Render("Created ")+path)
	fmt.Fprintln(a.stdout, SubtitleStyle.Render("Edit it, then run: ")+TargetStyle.Render("redlab targets"))
	return nil
}
