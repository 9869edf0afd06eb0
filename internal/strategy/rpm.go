// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redlab/redlab/internal/fsutil"
	"github.com/redlab/redlab/internal/manifest"
	"github.com/redlab/redlab/internal/project"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/toolexec"

	"github.com/bmatcuk/doublestar/v4"
)

// RPMTarget builds binary and source RPMs.
const RPMTarget = "rpm-package"

// RPM builds packages with rpmbuild from the project's spec file and the
// source tarball, inside a private top directory under the package dir.
type RPM struct{}

// NewRPM returns the RPM strategy.
func NewRPM() *RPM { return &RPM{} }

// Name returns "rpm".
func (s *RPM) Name() string { return "rpm" }

// PackageTarget returns RPMTarget.
func (s *RPM) PackageTarget() string { return RPMTarget }

// RequiredTools returns rpmbuild.
func (s *RPM) RequiredTools() []string { return []string{"rpmbuild"} }

// DependsOn names the archive strategy, which provides the sources.
func (s *RPM) DependsOn() []string { return []string{"archive"} }

// TopDir is the rpmbuild _topdir.
func TopDir(md *project.Metadata) string {
	return filepath.Join(md.PackageDir, "rpm")
}

// SpecPath is the versioned copy of the project spec used for the build.
func SpecPath(ctx context.Context, md *project.Metadata) string {
	return filepath.Join(TopDir(md), md.StageName(ctx)+".spec")
}

// Define registers the spec copy and the rpmbuild task. It reports
// ErrUnavailable when the project has no spec file.
func (s *RPM) Define(ctx context.Context, env *Env) error {
	md := env.Metadata
	src := env.Settings.SpecFile
	if src == "" {
		return fmt.Errorf("%w: no spec file configured", ErrUnavailable)
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: spec file %s: %v", ErrUnavailable, src, err)
	}

	version := md.ResolveVersion(ctx)
	spec := SpecPath(ctx, md)
	topDir := TopDir(md)
	tarball := Tarball(ctx, md)

	specTarget := taskgraph.File(spec, append([]string{src}, env.Settings.SourceDeps...), func(context.Context) error {
		_, err := manifest.RewriteSpecFile(src, spec, version, env.Settings.RPMRelease)
		return err
	})
	if err := env.Graph.Register(specTarget); err != nil {
		return err
	}

	pkg := taskgraph.Task(RPMTarget, []string{ArchiveTarget, spec}, func(ctx context.Context) error {
		sources := filepath.Join(topDir, "SOURCES")
		if err := fsutil.CopyFile(tarball, filepath.Join(sources, filepath.Base(tarball))); err != nil {
			return err
		}
		_, err := toolexec.RunChecked(ctx, env.Runner, toolexec.Command{
			Name: "rpmbuild",
			Args: []string{"-ba", "--define", "_topdir " + absPath(topDir), absPath(spec)},
		})
		return err
	}).Describe("Build binary and source RPMs")
	return env.Graph.Register(pkg)
}

// UpdateVersion rewrites the project spec file in place.
func (s *RPM) UpdateVersion(ctx context.Context, env *Env) (string, bool, error) {
	src := env.Settings.SpecFile
	changed, err := manifest.RewriteSpecFile(src, src, env.Metadata.ResolveVersion(ctx), env.Settings.RPMRelease)
	return src, changed, err
}

// Artifacts lists the built RPMs and SRPMs.
func (s *RPM) Artifacts(_ context.Context, env *Env) ([]string, error) {
	topDir := TopDir(env.Metadata)
	if _, err := os.Stat(topDir); os.IsNotExist(err) {
		return nil, nil
	}
	var out []string
	for _, pattern := range []string{"RPMS/**/*.rpm", "SRPMS/*.rpm"} {
		matches, err := doublestar.Glob(os.DirFS(topDir), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			out = append(out, filepath.Join(topDir, m))
		}
	}
	return out, nil
}
