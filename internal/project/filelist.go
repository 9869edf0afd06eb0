// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFiles is the file set used when a project lists no patterns.
var DefaultFiles = []string{
	"install.rb",
	"[A-Z]*",
	"lib/**/*",
	"test/**/*",
	"bin/**/*",
	"ext/**/*",
	"examples/**/*",
	"conf/**/*",
}

// DefaultExcludes drops version-control metadata from every file list.
var DefaultExcludes = []string{
	"**/.svn/**",
	"**/.git/**",
	"**/.svn",
	"**/.git",
}

// BuildFileList expands Files (or DefaultFiles) relative to Root, removes
// anything matching Excludes or DefaultExcludes, and deduplicates while
// keeping first-occurrence order. Matches of one pattern are sorted.
// Only regular files are returned. The result is computed once and cached.
func (m *Metadata) BuildFileList() ([]string, error) {
	if m.fileListBuilt {
		return slices.Clone(m.fileList), m.fileListErr
	}
	m.fileListBuilt = true
	m.fileList, m.fileListErr = m.expandFiles()
	return slices.Clone(m.fileList), m.fileListErr
}

func (m *Metadata) expandFiles() ([]string, error) {
	patterns := m.Files
	if len(patterns) == 0 {
		patterns = DefaultFiles
	}
	excludes := append(slices.Clone(DefaultExcludes), m.Excludes...)
	for _, p := range append(slices.Clone(patterns), excludes...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid file pattern %q", p)
		}
	}

	fsys := os.DirFS(m.Root)
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		slices.Sort(matches)
		for _, match := range matches {
			if seen[match] || excluded(match, excludes) {
				continue
			}
			seen[match] = true
			out = append(out, match)
		}
	}
	return out, nil
}

func excluded(path string, excludes []string) bool {
	for _, pattern := range excludes {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
