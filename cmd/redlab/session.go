// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redlab/redlab/internal/config"
	"github.com/redlab/redlab/internal/manifest"
	"github.com/redlab/redlab/internal/project"
	"github.com/redlab/redlab/internal/release"
	"github.com/redlab/redlab/internal/strategy"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/toolexec"
	"github.com/redlab/redlab/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

// session is one fully defined build: the loaded project, its metadata and
// the validated target graph.
type session struct {
	project   *config.Project
	metadata  *project.Metadata
	graph     *taskgraph.Graph
	selection *strategy.Selection
	caps      toolexec.Capabilities
	logger    *log.Logger
}

// newSession loads the project and defines every target. flags carries the
// release overrides of the invoking command and may be nil.
func (a *App) newSession(ctx context.Context, flags *pflag.FlagSet) (*session, error) {
	p, err := a.Config.Load(ctx, a.loadOptions(flags))
	if err != nil {
		return nil, err
	}
	if ok, errs := types.ReleaseVersion(p.Release.Version).IsValid(); !ok {
		return nil, errors.Join(errs...)
	}

	logger := a.newLogger()
	md, err := newMetadata(p, a.Runner, logger)
	if err != nil {
		return nil, err
	}

	commands := mergeCommands(release.DefaultCommands(), p.Commands)
	registry := strategy.Registry()
	tools := append(strategy.RequiredTools(registry), commands.Tools()...)
	caps := toolexec.Detect(a.LookPath, tools...)
	logger.Debug("detected tools", "found", caps.Tools())

	graph := taskgraph.New(taskgraph.WithLogger(logger))
	builder := manifest.NewBuilder(a.Runner,
		manifest.WithOwnerRules(p.OwnerRules),
		manifest.WithLogger(logger),
	)
	env := &strategy.Env{
		Metadata:  md,
		Graph:     graph,
		Manifests: builder,
		Runner:    a.Runner,
		Caps:      caps,
		Logger:    logger,
		Settings: strategy.Settings{
			Disabled:     p.Packaging.Disabled(),
			SourceDeps:   sourceDeps(p),
			SpecFile:     specFile(p),
			RPMRelease:   p.RPMRelease,
			PackageHosts: p.PackageHosts,
			RemoteDir:    p.RemoteDir,
			Program:      config.AppName,
		},
	}

	sel, err := strategy.DefineAll(ctx, env, registry)
	if err != nil {
		return nil, err
	}

	_, err = release.Define(ctx, env, sel, release.Options{
		Version:       p.Release.Version,
		Reuse:         p.Release.Reuse,
		TestMode:      p.Release.TestMode,
		Hosts:         p.TestHosts,
		RemoteDir:     p.RemoteDir,
		VersionFile:   rootPath(p, p.VersionFile),
		VersionConst:  p.VersionConst,
		TestDir:       p.Release.TestDir,
		DocsDir:       p.Release.DocsDir,
		OutputDir:     p.Release.OutputDir,
		DefaultTarget: p.DefaultTarget,
		Commands:      commands,
		Out:           a.stdout,
	})
	if err != nil {
		return nil, err
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}

	return &session{
		project:   p,
		metadata:  md,
		graph:     graph,
		selection: sel,
		caps:      caps,
		logger:    logger,
	}, nil
}

// loadOptions applies the global --project and --dir flags.
func (a *App) loadOptions(flags *pflag.FlagSet) config.LoadOptions {
	return config.LoadOptions{
		ProjectFile: a.flags.projectFile,
		Dir:         a.flags.dir,
		Flags:       flags,
	}
}

// newMetadata maps the project file onto Metadata. Paths are resolved
// against the project root so the build works from any directory.
func newMetadata(p *config.Project, runner toolexec.Runner, logger *log.Logger) (*project.Metadata, error) {
	opts := []project.Option{project.WithLogger(logger)}
	version := p.Release.Version
	if version == "" {
		version = p.Version
	}
	if version != "" {
		opts = append(opts, project.WithVersion(version))
	}
	if p.VersionProbe != "" {
		probe, err := toolexec.ParseCommand(p.VersionProbe, p)
		if err != nil {
			return nil, fmt.Errorf("version_probe: %w", err)
		}
		opts = append(opts, project.WithProbeCommand(probe))
	}

	md := project.New(p.Name, runner, opts...)
	setIfNotEmpty(&md.Product, p.Product)
	setIfNotEmpty(&md.License, p.License)
	setIfNotEmpty(&md.Readme, p.Readme)
	setIfNotEmpty(&md.OS, p.OS)
	md.Summary = p.Summary
	md.Description = p.Description
	md.Author = p.Author
	md.Email = p.Email
	md.URL = p.URL
	md.Vendor = p.Vendor
	md.Copyright = p.Copyright

	md.Root = p.Root
	md.PackageDir = rootPath(p, p.PackageDir)
	md.PublishDir = rootPath(p, p.PublishDir)
	md.Files = p.Files
	md.Excludes = p.Excludes
	for _, d := range p.Directories {
		md.Directories = append(md.Directories, project.DirectoryEntry{Source: d.Source, Prefix: d.Prefix})
	}
	for _, r := range p.Requires {
		md.AddDependency(r.Name, r.Version)
	}
	return md, nil
}

// mergeCommands overlays the project's command lines on the defaults.
func mergeCommands(base release.Commands, override config.Commands) release.Commands {
	setIfNotEmpty(&base.Status, override.Status)
	setIfNotEmpty(&base.Commit, override.Commit)
	setIfNotEmpty(&base.Tag, override.Tag)
	setIfNotEmpty(&base.Install, override.Install)
	setIfNotEmpty(&base.Test, override.Test)
	setIfNotEmpty(&base.HostTest, override.HostTest)
	setIfNotEmpty(&base.Docs, override.Docs)
	return base
}

// sourceDeps are the files whose changes regenerate every manifest: the
// project file, the version file and any configured extras. Missing files
// are left out; the graph only accepts existing files as implicit targets.
func sourceDeps(p *config.Project) []string {
	deps := []string{p.File}
	candidates := append([]string{p.VersionFile}, p.SourceDeps...)
	for _, c := range candidates {
		if c == "" {
			continue
		}
		path := rootPath(p, c)
		if _, err := os.Stat(path); err == nil {
			deps = append(deps, path)
		}
	}
	return deps
}

// specFile returns the configured spec file, or conf/redhat/<name>.spec.
func specFile(p *config.Project) string {
	if p.SpecFile != "" {
		return rootPath(p, p.SpecFile)
	}
	return filepath.Join(p.Root, "conf", "redhat", p.Name+".spec")
}

func rootPath(p *config.Project, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
