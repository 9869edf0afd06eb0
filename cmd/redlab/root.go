// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redlab/redlab/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the redlab command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redlab",
		Short: "Declarative build orchestration and packaging",
		Long: TitleStyle.Render("redlab") + SubtitleStyle.Render(" - Declarative build orchestration and packaging") + `

redlab reads project metadata from 'redlab.cue' (or 'redlab.toml') and
builds a graph of targets that stage the project and produce native,
portable, tarball and RPM packages, then tag, test and publish releases.

` + SubtitleStyle.Render("Examples:") + `
  redlab init                       Create a redlab.cue for this directory
  redlab targets                    List the available targets
  redlab run                        Run the default target
  redlab run native-package         Build the native package
  redlab run release --rel 1.2.4    Make a release`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.projectFile, "project", "", "project file (default is ./redlab.cue or ./redlab.toml)")
	rootCmd.PersistentFlags().StringVarP(&app.flags.dir, "dir", "C", "", "directory to search for the project file")

	rootCmd.AddCommand(newRunCommand(app))
	rootCmd.AddCommand(newTargetsCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newInitCommand(app))
	rootCmd.AddCommand(newVersionCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code.Clamp()))
		}
		os.Exit(1)
	}
}

// fail renders err with its catalog guidance and returns the ExitError
// carrying the process status.
func (a *App) fail(err error) error {
	if err == nil {
		return nil
	}
	exitErr := newRunError(err, a.flags.verbose)
	var svcErr *ServiceError
	if errors.As(exitErr, &svcErr) {
		renderServiceError(a.stderr, svcErr)
	}
	return exitErr
}

// installLogger makes the run logger the slog default for package-level logging.
func (a *App) installLogger(s *session) {
	slog.SetDefault(slog.New(s.logger))
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
