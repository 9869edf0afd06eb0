// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/redlab/redlab/internal/fsutil"
	"github.com/redlab/redlab/internal/manifest"
	"github.com/redlab/redlab/internal/project"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/toolexec"

	"github.com/charmbracelet/log"
)

const (
	// StageTarget copies the project file list into the staging directory.
	StageTarget = "stage"
	// PackageTarget builds every enabled package.
	PackageTarget = "package"
	// RemotePackageTarget builds native packages on the package hosts.
	RemotePackageTarget = "remote-package"
)

// ErrUnavailable is returned by Define when a strategy cannot be set up for
// this project. The strategy is skipped, not treated as a failure.
var ErrUnavailable = errors.New("packaging strategy unavailable")

type (
	// PackageStrategy is one packaging backend.
	PackageStrategy interface {
		// Name identifies the strategy in configuration and logs.
		Name() string
		// PackageTarget is the task that produces the strategy's packages.
		PackageTarget() string
		// RequiredTools are the executables the strategy runs.
		RequiredTools() []string
		// Define registers the strategy's targets.
		Define(ctx context.Context, env *Env) error
		// Artifacts lists package files produced by a completed build.
		Artifacts(ctx context.Context, env *Env) ([]string, error)
	}

	// VersionUpdater is implemented by strategies that keep a copy of the
	// project version in a source file of their own.
	VersionUpdater interface {
		// UpdateVersion rewrites that file and reports whether it changed.
		UpdateVersion(ctx context.Context, env *Env) (path string, changed bool, err error)
	}

	// Settings are the project's packaging options.
	Settings struct {
		// Disabled names strategies turned off by the project.
		Disabled []string
		// SourceDeps are files whose modification rebuilds every manifest,
		// typically the project file and the version file.
		SourceDeps []string
		// SpecFile is the project's RPM spec.
		SpecFile string
		// RPMRelease is written to the spec's Release: line.
		RPMRelease string
		// PackageHosts build native packages remotely.
		PackageHosts []string
		// RemoteDir is the project checkout on remote hosts.
		RemoteDir string
		// Program is the build tool invoked on remote hosts.
		Program string
	}

	// Env is everything a strategy needs to register its targets.
	Env struct {
		Metadata  *project.Metadata
		Graph     *taskgraph.Graph
		Manifests *manifest.Builder
		Runner    toolexec.Runner
		Caps      toolexec.Capabilities
		Logger    *log.Logger
		Settings  Settings
	}

	// Skip records a strategy that was not defined and why.
	Skip struct {
		Name   string
		Reason error
	}

	// Selection is the outcome of DefineAll.
	Selection struct {
		Active  []PackageStrategy
		Skipped []Skip
	}

	// dependent is implemented by strategies that build on another one.
	dependent interface {
		DependsOn() []string
	}
)

// Registry returns every strategy in definition order.
func Registry() []PackageStrategy {
	return []PackageStrategy{
		NewNative(),
		NewPortable(),
		NewArchive(),
		NewRPM(),
	}
}

// RequiredTools returns the union of tools needed by the given strategies,
// plus ssh for remote builds, in first-seen order.
func RequiredTools(strategies []PackageStrategy) []string {
	var tools []string
	for _, s := range strategies {
		for _, tool := range s.RequiredTools() {
			if !slices.Contains(tools, tool) {
				tools = append(tools, tool)
			}
		}
	}
	if !slices.Contains(tools, "ssh") {
		tools = append(tools, "ssh")
	}
	return tools
}

// DefineAll registers the stage target, every available strategy, the
// aggregate package target and, when package hosts are configured, the
// remote package target.
func DefineAll(ctx context.Context, env *Env, strategies []PackageStrategy) (*Selection, error) {
	if env.Logger == nil {
		env.Logger = log.New(io.Discard)
	}
	if err := defineStage(ctx, env); err != nil {
		return nil, err
	}

	sel := &Selection{}
	active := make(map[string]bool)
	for _, s := range strategies {
		if reason := gate(env, s, active); reason != nil {
			env.Logger.Warn("skipping packaging strategy", "strategy", s.Name(), "reason", reason)
			sel.Skipped = append(sel.Skipped, Skip{Name: s.Name(), Reason: reason})
			continue
		}
		if err := s.Define(ctx, env); err != nil {
			if errors.Is(err, ErrUnavailable) {
				env.Logger.Warn("skipping packaging strategy", "strategy", s.Name(), "reason", err)
				sel.Skipped = append(sel.Skipped, Skip{Name: s.Name(), Reason: err})
				continue
			}
			return nil, fmt.Errorf("define %s packaging: %w", s.Name(), err)
		}
		active[s.Name()] = true
		sel.Active = append(sel.Active, s)
	}

	deps := make([]string, 0, len(sel.Active))
	for _, s := range sel.Active {
		deps = append(deps, s.PackageTarget())
	}
	pkg := taskgraph.Task(PackageTarget, deps, nil).Describe("Build every enabled package")
	if err := env.Graph.Register(pkg); err != nil {
		return nil, err
	}

	if err := defineRemotePackage(env); err != nil {
		return nil, err
	}
	return sel, nil
}

func gate(env *Env, s PackageStrategy, active map[string]bool) error {
	if slices.Contains(env.Settings.Disabled, s.Name()) {
		return errors.New("disabled by project configuration")
	}
	if err := env.Caps.Require(s.RequiredTools()...); err != nil {
		return err
	}
	if d, ok := s.(dependent); ok {
		for _, name := range d.DependsOn() {
			if !active[name] {
				return fmt.Errorf("%w: needs the %s strategy", ErrUnavailable, name)
			}
		}
	}
	return nil
}

func defineStage(ctx context.Context, env *Env) error {
	md := env.Metadata
	codeDir := md.CodeDir(ctx)
	stage := taskgraph.Task(StageTarget, nil, func(context.Context) error {
		files, err := md.BuildFileList()
		if err != nil {
			return err
		}
		n, err := fsutil.CopyFiles(md.Root, codeDir, files)
		if err != nil {
			return err
		}
		env.Logger.Info("staged project files", "files", n, "dir", codeDir)
		return nil
	}).Describe("Copy the project files into " + codeDir)
	return env.Graph.Register(stage)
}

func defineRemotePackage(env *Env) error {
	hosts := env.Settings.PackageHosts
	if len(hosts) == 0 {
		return nil
	}
	if !env.Caps.Has("ssh") {
		env.Logger.Warn("skipping remote package builds", "reason", &toolexec.MissingToolError{Tools: []string{"ssh"}})
		return nil
	}
	program := env.Settings.Program
	if program == "" {
		program = "redlab"
	}
	remote := taskgraph.Task(RemotePackageTarget, nil, func(ctx context.Context) error {
		return toolexec.RunOnHosts(ctx, env.Runner, hosts,
			func(host string) toolexec.Command {
				script := fmt.Sprintf("%s run %s", program, NativeTarget)
				if env.Settings.RemoteDir != "" {
					script = fmt.Sprintf("cd %s && %s", env.Settings.RemoteDir, script)
				}
				return toolexec.Command{Name: "ssh", Args: []string{host, script}}
			},
			func(host string, res toolexec.Result, err error) {
				if err != nil || !res.Success() {
					env.Logger.Error("remote package build failed", "host", host, "exit", res.ExitCode, "error", err)
					return
				}
				env.Logger.Info("remote package build finished", "host", host)
			})
	}).Describe("Build native packages on " + strings.Join(hosts, ", "))
	return env.Graph.Register(remote)
}

// manifestDeps returns the prerequisites shared by every manifest target.
func manifestDeps(env *Env) []string {
	return append([]string{StageTarget}, env.Settings.SourceDeps...)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
