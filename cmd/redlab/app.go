// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/redlab/redlab/internal/config"
	"github.com/redlab/redlab/internal/toolexec"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra handler receives an App and builds its session
	// through it.
	App struct {
		Config   ConfigProvider
		Runner   toolexec.Runner
		LookPath toolexec.LookPathFunc
		stdout   io.Writer
		stderr   io.Writer

		flags globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Runner   toolexec.Runner
		LookPath toolexec.LookPathFunc
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// ConfigProvider loads the project using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Project, error)
	}

	globalFlags struct {
		verbose     bool
		projectFile string
		dir         string
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:   deps.Config,
		Runner:   deps.Runner,
		LookPath: deps.LookPath,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Runner == nil {
		app.Runner = toolexec.NewExecRunner()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// newLogger builds the run logger: Info by default, Debug with --verbose.
func (a *App) newLogger() *log.Logger {
	level := log.InfoLevel
	if a.flags.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}
