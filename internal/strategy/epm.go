// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redlab/redlab/internal/project"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/toolexec"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// NativeTarget builds the platform's native package format.
	NativeTarget = "native-package"
	// PortableTarget builds an EPM portable package.
	PortableTarget = "portable-package"
)

// EPM builds packages with the epm tool from a list file assembled by the
// manifest builder. Native and Portable differ only in the epm format.
type EPM struct {
	format string
}

// NewNative returns the strategy producing the platform's native packages.
func NewNative() *EPM { return &EPM{format: "native"} }

// NewPortable returns the strategy producing EPM portable packages.
func NewPortable() *EPM { return &EPM{format: "portable"} }

// Name returns the epm format.
func (s *EPM) Name() string { return s.format }

// PackageTarget returns "<format>-package".
func (s *EPM) PackageTarget() string { return s.format + "-package" }

// RequiredTools returns epm and its lister.
func (s *EPM) RequiredTools() []string { return []string{"epm", "mkepmlist"} }

// ListFile is the versioned manifest path for this format.
func (s *EPM) ListFile(ctx context.Context, md *project.Metadata) string {
	return filepath.Join(md.PackageDir, fmt.Sprintf("%s-%s-%s.list", md.StageName(ctx), md.OS, s.format))
}

// portableSuffix is the extension of every package epm writes with -f portable.
const portableSuffix = ".tar.gz"

// owns reports whether an output file was produced by this format. Native and
// portable packages share the output directory.
func (s *EPM) owns(file string) bool {
	portable := strings.HasSuffix(file, portableSuffix)
	if s.format == "portable" {
		return portable
	}
	return !portable
}

// OutputDir is where epm writes packages for the current OS.
func OutputDir(md *project.Metadata) string {
	return filepath.Join(md.PackageDir, "epm", md.OS)
}

// DefaultDirectories are used when the project declares no staged subtrees.
func DefaultDirectories(md *project.Metadata) []project.DirectoryEntry {
	return []project.DirectoryEntry{
		{Source: "bin", Prefix: "/usr/bin"},
		{Source: "lib", Prefix: "/usr/lib/" + md.Name},
	}
}

// Define registers the output directory, the list file and the package task.
func (s *EPM) Define(ctx context.Context, env *Env) error {
	md := env.Metadata
	outDir := OutputDir(md)
	listFile := s.ListFile(ctx, md)
	codeDir := md.CodeDir(ctx)

	if _, ok := env.Graph.Lookup(outDir); !ok {
		if err := env.Graph.Register(taskgraph.Directory(outDir)); err != nil {
			return err
		}
	}

	list := taskgraph.File(listFile, manifestDeps(env), func(ctx context.Context) error {
		entries := md.Directories
		if len(entries) == 0 {
			entries = DefaultDirectories(md)
		}
		staged := make([]project.DirectoryEntry, 0, len(entries))
		for _, e := range entries {
			staged = append(staged, project.DirectoryEntry{Source: filepath.Join(codeDir, e.Source), Prefix: e.Prefix})
		}
		m := env.Manifests.Build(ctx, md, staged)
		for _, w := range m.Warnings {
			env.Logger.Warn("list file is missing a directory", "list", listFile, "warning", w)
		}
		return m.WriteFile(listFile)
	})
	if err := env.Graph.Register(list); err != nil {
		return err
	}

	pkg := taskgraph.Task(s.PackageTarget(), []string{outDir, listFile}, func(ctx context.Context) error {
		_, err := toolexec.RunChecked(ctx, env.Runner, toolexec.Command{
			Name: "epm",
			Args: []string{"--output-dir", outDir, "-f", s.format, md.Name, listFile},
		})
		return err
	}).Describe(fmt.Sprintf("Build %s packages with epm", s.format))
	return env.Graph.Register(pkg)
}

// Artifacts lists the packages of this format in the output directory.
func (s *EPM) Artifacts(_ context.Context, env *Env) ([]string, error) {
	outDir := OutputDir(env.Metadata)
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(outDir), env.Metadata.Name+"*", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if s.owns(m) {
			out = append(out, filepath.Join(outDir, m))
		}
	}
	return out, nil
}
