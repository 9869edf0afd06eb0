// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/redlab/redlab/internal/config"
	"github.com/redlab/redlab/internal/issue"
	"github.com/redlab/redlab/internal/release"
	"github.com/redlab/redlab/pkg/types"

	"github.com/spf13/cobra"
)

// newRunCommand creates the `redlab run` command.
func newRunCommand(app *App) *cobra.Command {
	var dryRun bool

	runCmd := &cobra.Command{
		Use:   "run [target...]",
		Short: "Run build and release targets",
		Long: `Run one or more targets and everything they depend on.

With no target the default target runs. Release overrides can also be given
through the ` + config.EnvVersion + `, ` + config.EnvReuse + `, ` + config.EnvTestMode + ` and ` + config.EnvTestHosts + ` environment variables;
flags win over the environment.`,
		Example: `  redlab run
  redlab run native-package rpm-package
  redlab run release --rel 1.2.4
  redlab run release --rel 1.2.3 --reuse b
  redlab run hosttest --hosts "alpha,beta"
  redlab run --dry-run release --rel 1.2.4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(app.runTargets(cmd.Context(), cmd, args, dryRun))
		},
	}

	runCmd.Flags().String("rel", "", "version to release (overrides "+config.EnvVersion+")")
	runCmd.Flags().String("reuse", "", "tag suffix to re-release an existing version (overrides "+config.EnvReuse+")")
	runCmd.Flags().Bool("test-mode", false, "simulate commits and tags and skip the working tree check (overrides "+config.EnvTestMode+")")
	runCmd.Flags().String("hosts", "", "comma or space separated test hosts (overrides "+config.EnvTestHosts+")")
	runCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the targets that would run, in order, without running them")

	return runCmd
}

func (a *App) runTargets(ctx context.Context, cmd *cobra.Command, args []string, dryRun bool) error {
	for _, arg := range args {
		if ok, errs := types.TargetName(arg).IsValid(); !ok {
			return errors.Join(errs...)
		}
	}

	s, err := a.newSession(ctx, cmd.Flags())
	if err != nil {
		return err
	}
	a.installLogger(s)

	names := make([]string, 0, len(args))
	for _, arg := range args {
		names = append(names, s.resolveTarget(arg))
	}
	if len(names) == 0 {
		name, err := s.defaultTarget()
		if err != nil {
			return err
		}
		names = []string{name}
	}

	if dryRun {
		return a.printPlan(s, names)
	}

	if err := s.graph.RunAll(ctx, names...); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, SuccessStyle.Render("✔ ")+strings.Join(names, " ")+SubtitleStyle.Render(" completed"))
	return nil
}

// resolveTarget maps a file target given relative to the project root onto
// the registered path. Other names are returned unchanged.
func (s *session) resolveTarget(name string) string {
	if _, ok := s.graph.Lookup(name); ok || filepath.IsAbs(name) {
		return name
	}
	if path := rootPath(s.project, name); path != name {
		if _, ok := s.graph.Lookup(path); ok {
			return path
		}
	}
	return name
}

// defaultTarget returns the target run when none is named.
func (s *session) defaultTarget() (string, error) {
	if _, ok := s.graph.Lookup(release.DefaultTarget); ok {
		return release.DefaultTarget, nil
	}
	return "", issue.NewErrorContext().
		WithOperation("run default target").
		WithSuggestion("Name a target: redlab run <target>").
		WithSuggestion("Set default_target in the project file").
		WithIssue(issue.UnknownTargetId).
		BuildError()
}

// printPlan prints every target the run would visit, in execution order,
// each at most once.
func (a *App) printPlan(s *session, names []string) error {
	var order []string
	for _, name := range names {
		plan, err := s.graph.Plan(name)
		if err != nil {
			return err
		}
		for _, step := range plan {
			if !slices.Contains(order, step) {
				order = append(order, step)
			}
		}
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Plan:"))
	for i, step := range order {
		fmt.Fprintf(a.stdout, "  %s %s\n", VerboseStyle.Render(fmt.Sprintf("%2d.", i+1)), TargetStyle.Render(step))
	}
	return nil
}
