// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/redlab/redlab/internal/fsutil"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// IndexFile is the package index written into the publish directory.
const IndexFile = "index.yaml"

type (
	// Index describes every package published for a project.
	Index struct {
		Name     string         `yaml:"name"`
		Packages []IndexPackage `yaml:"packages"`
	}

	// IndexPackage is one published package file.
	IndexPackage struct {
		File     string `yaml:"file"`
		Version  string `yaml:"version"`
		Strategy string `yaml:"strategy"`
		Size     int64  `yaml:"size"`
		SHA256   string `yaml:"sha256"`
	}
)

func (r *Releaser) publish(ctx context.Context) error {
	dir := r.env.Metadata.PkgPublishDir()
	if dir == "" {
		return ErrPublishDirUnset
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create publish directory: %w", err)
	}

	version := r.env.Metadata.ResolveVersion(ctx)
	seen := make(map[string]bool)
	var published []IndexPackage
	for _, s := range r.active {
		artifacts, err := s.Artifacts(ctx, r.env)
		if err != nil {
			return fmt.Errorf("list %s packages: %w", s.Name(), err)
		}
		for _, src := range artifacts {
			if seen[src] {
				continue
			}
			seen[src] = true

			dst := filepath.Join(dir, filepath.Base(src))
			if err := fsutil.CopyFile(src, dst); err != nil {
				return fmt.Errorf("publish %s: %w", src, err)
			}
			sum, size, err := fsutil.FileSHA256(dst)
			if err != nil {
				return err
			}
			published = append(published, IndexPackage{
				File:     filepath.Base(src),
				Version:  version,
				Strategy: s.Name(),
				Size:     size,
				SHA256:   sum,
			})
			r.env.Logger.Info("published", "file", dst)
		}
	}
	if len(published) == 0 {
		r.env.Logger.Warn("no packages found to publish")
	}
	return UpdateIndex(filepath.Join(dir, IndexFile), r.env.Metadata.Name, published)
}

func (r *Releaser) publishDocs(context.Context) error {
	src := r.docsDir()
	if _, err := os.Stat(src); err != nil {
		r.env.Logger.Warn("no documentation to publish", "dir", src, "error", err)
		return nil
	}
	files, err := doublestar.Glob(os.DirFS(src), "**", doublestar.WithFilesOnly())
	if err != nil {
		return err
	}
	dst := filepath.Join(r.env.Metadata.PkgPublishDir(), "apidocs")
	n, err := fsutil.CopyFiles(src, dst, files)
	if err != nil {
		return err
	}
	r.env.Logger.Info("published documentation", "files", n, "dir", dst)
	return nil
}

// UpdateIndex merges packages into the index at path. Entries with the same
// file name are replaced; the result is sorted by file name.
func UpdateIndex(path, name string, packages []IndexPackage) error {
	idx := Index{Name: name}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &idx); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		idx.Name = name
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, p := range packages {
		i := slices.IndexFunc(idx.Packages, func(existing IndexPackage) bool { return existing.File == p.File })
		if i >= 0 {
			idx.Packages[i] = p
			continue
		}
		idx.Packages = append(idx.Packages, p)
	}
	slices.SortFunc(idx.Packages, func(a, b IndexPackage) int { return strings.Compare(a.File, b.File) })

	out, err := yaml.Marshal(&idx)
	if err != nil {
		return fmt.Errorf("encode package index: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
