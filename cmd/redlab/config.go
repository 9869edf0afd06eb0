// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/redlab/redlab/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `redlab config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the project configuration",
		Long: `Inspect the project configuration.

The project is read from 'redlab.cue' or 'redlab.toml' in the current
directory, with ` + config.EnvVersion + `, ` + config.EnvReuse + `, ` + config.EnvTestMode + ` and ` + config.EnvTestHosts + ` applied on top.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective project configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Config.Load(cmd.Context(), app.loadOptions(nil))
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(p))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the project file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Config.Load(cmd.Context(), app.loadOptions(nil))
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, p.File)
			return nil
		},
	})

	return cfgCmd
}
