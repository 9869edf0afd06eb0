// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/redlab/redlab/internal/config"

	"github.com/spf13/cobra"
)

// newVersionCommand creates the `redlab version` command.
func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the redlab version and the project version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(app.printVersion(cmd.Context()))
		},
	}
}

// printVersion prints the tool version and, inside a project, the project's
// version: the configured version or what its version probe reports.
func (a *App) printVersion(ctx context.Context) error {
	fmt.Fprintln(a.stdout, TitleStyle.Render("redlab")+" "+getVersionString())

	p, err := a.Config.Load(ctx, a.loadOptions(nil))
	if errors.Is(err, config.ErrProjectFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	md, err := newMetadata(p, a.Runner, a.newLogger())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, TargetStyle.Render(p.Name)+" "+md.ResolveVersion(ctx))
	return nil
}
