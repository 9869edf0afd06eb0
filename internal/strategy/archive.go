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
)

// ArchiveTarget builds the source tarball.
const ArchiveTarget = "archive-package"

// Archive builds "<name>-<version>.tgz" from the staged tree with tar.
type Archive struct{}

// NewArchive returns the source tarball strategy.
func NewArchive() *Archive { return &Archive{} }

// Name returns "archive".
func (s *Archive) Name() string { return "archive" }

// PackageTarget returns ArchiveTarget.
func (s *Archive) PackageTarget() string { return ArchiveTarget }

// RequiredTools returns tar.
func (s *Archive) RequiredTools() []string { return []string{"tar"} }

// ManifestFile lists the staged paths the tarball contains.
func (s *Archive) ManifestFile(ctx context.Context, md *project.Metadata) string {
	return filepath.Join(md.PackageDir, md.StageName(ctx)+".manifest")
}

// Tarball is the archive path.
func Tarball(ctx context.Context, md *project.Metadata) string {
	return filepath.Join(md.PackageDir, md.StageName(ctx)+".tgz")
}

// Define registers the archive manifest and the tar task.
func (s *Archive) Define(ctx context.Context, env *Env) error {
	md := env.Metadata
	manifestPath := s.ManifestFile(ctx, md)
	tarball := Tarball(ctx, md)
	stageName := md.StageName(ctx)

	list := taskgraph.File(manifestPath, manifestDeps(env), func(context.Context) error {
		files, err := md.BuildFileList()
		if err != nil {
			return err
		}
		var sb strings.Builder
		for _, f := range files {
			sb.WriteString(filepath.ToSlash(filepath.Join(stageName, f)))
			sb.WriteByte('\n')
		}
		if err := os.MkdirAll(filepath.Dir(manifestPath), 0o755); err != nil {
			return err
		}
		return os.WriteFile(manifestPath, []byte(sb.String()), 0o644)
	})
	if err := env.Graph.Register(list); err != nil {
		return err
	}

	pkg := taskgraph.Task(ArchiveTarget, []string{manifestPath}, func(ctx context.Context) error {
		_, err := toolexec.RunChecked(ctx, env.Runner, toolexec.Command{
			Name: "tar",
			Args: []string{"-czf", absPath(tarball), "-C", absPath(md.PackageDir), "-T", absPath(manifestPath)},
		})
		return err
	}).Describe(fmt.Sprintf("Build %s", filepath.Base(tarball)))
	return env.Graph.Register(pkg)
}

// Artifacts returns the tarball when it exists.
func (s *Archive) Artifacts(ctx context.Context, env *Env) ([]string, error) {
	tarball := Tarball(ctx, env.Metadata)
	if _, err := os.Stat(tarball); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return []string{tarball}, nil
}
