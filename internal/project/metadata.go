// SPDX-License-Identifier: MPL-2.0

package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/redlab/redlab/internal/toolexec"
	"github.com/redlab/redlab/pkg/types"

	"github.com/charmbracelet/log"
)

// FallbackVersion is used when neither an override nor the version probe
// yields a version.
const FallbackVersion = "0.0.0"

// ErrVersionResolved is returned when the version override is changed after
// the version has been resolved.
var ErrVersionResolved = errors.New("version already resolved")

type (
	// DirectoryEntry is one staged subtree contributed to a package manifest:
	// files under Source are installed below Prefix.
	DirectoryEntry struct {
		Source string
		Prefix string
	}

	// Option configures a Metadata.
	Option func(*Metadata)

	// Metadata describes a project and lazily resolves its derived attributes.
	// It is not safe for concurrent use; a build runs single-threaded.
	Metadata struct {
		Name        string
		Product     string
		Summary     string
		Description string
		Author      string
		Email       string
		URL         string
		Vendor      string
		Copyright   string
		License     string
		Readme      string
		// OS labels per-platform artifacts such as list files.
		OS string

		// Root is the project source directory; globs and the probe run here.
		Root string
		// PackageDir receives staged trees and built packages.
		PackageDir string
		// PublishDir is where release artifacts are copied.
		PublishDir string

		// Files are doublestar glob patterns relative to Root.
		Files []string
		// Excludes are doublestar patterns removed from the expanded file list.
		Excludes []string
		// Directories are the staged subtrees merged into package manifests.
		Directories []DirectoryEntry

		runner toolexec.Runner
		logger *log.Logger

		versionOverride string
		probeCommand    toolexec.Command
		requires        Requirements

		probed       bool
		probeVersion string

		versionResolved bool
		version         string

		fileListBuilt bool
		fileList      []string
		fileListErr   error
	}
)

// WithVersion sets an explicit version that wins over the probe.
func WithVersion(v string) Option {
	return func(m *Metadata) {
		m.versionOverride = v
	}
}

// WithProbeCommand replaces the default "<root>/bin/<name> --version" probe.
func WithProbeCommand(cmd toolexec.Command) Option {
	return func(m *Metadata) {
		m.probeCommand = cmd
	}
}

// WithLogger sets the logger used for non-fatal warnings.
func WithLogger(l *log.Logger) Option {
	return func(m *Metadata) {
		m.logger = l
	}
}

// New creates Metadata for the named project. runner is used for the version
// probe only.
func New(name string, runner toolexec.Runner, opts ...Option) *Metadata {
	m := &Metadata{
		Name:       name,
		Product:    name,
		License:    "LICENSE",
		Readme:     "README",
		OS:         runtime.GOOS,
		Root:       ".",
		PackageDir: "pkg",
		runner:     runner,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	return m
}

// SetVersionOverride sets the explicit version. It fails once the version
// has been resolved, because a resolved version is immutable.
func (m *Metadata) SetVersionOverride(v string) error {
	if m.versionResolved {
		return fmt.Errorf("set version %q: %w (resolved to %q)", v, ErrVersionResolved, m.version)
	}
	m.versionOverride = v
	return nil
}

// HasVersionOverride reports whether an explicit version was supplied.
func (m *Metadata) HasVersionOverride() bool { return m.versionOverride != "" }

// ResolveVersion returns the effective version: the override when present,
// else the probed version of the built artifact, else FallbackVersion.
// The value is computed on first call and cached.
func (m *Metadata) ResolveVersion(ctx context.Context) string {
	if m.versionResolved {
		return m.version
	}
	if m.versionOverride != "" {
		m.version = m.versionOverride
	} else {
		m.version = m.CurrentVersion(ctx)
	}
	m.versionResolved = true
	return m.version
}

// CurrentVersion returns the version the built artifact reports about
// itself, ignoring any override. It shares the single probe with
// ResolveVersion; the probe runs at most once per Metadata.
func (m *Metadata) CurrentVersion(ctx context.Context) string {
	if m.probed {
		return m.probeVersion
	}
	m.probed = true
	m.probeVersion = m.probe(ctx)
	return m.probeVersion
}

// probe runs the version command. Failures are not errors: they are logged
// and the fallback version is returned.
func (m *Metadata) probe(ctx context.Context) string {
	cmd := m.probeCommand
	if cmd.Name == "" {
		cmd = toolexec.Command{
			Name: "./" + filepath.ToSlash(filepath.Join("bin", m.Name)),
			Args: []string{"--version"},
		}
	}
	if cmd.Dir == "" {
		cmd.Dir = m.Root
	}
	if m.runner == nil {
		m.logger.Warn("no runner for version probe; using fallback", "version", FallbackVersion)
		return FallbackVersion
	}

	res, err := m.runner.Run(ctx, cmd)
	if err != nil || !res.Success() {
		m.logger.Warn("could not retrieve current version; using fallback",
			"command", cmd.String(), "exit", res.ExitCode, "error", err, "version", FallbackVersion)
		return FallbackVersion
	}
	v := parseVersionOutput(res.Stdout)
	if v == "" {
		m.logger.Warn("version probe printed nothing; using fallback", "command", cmd.String(), "version", FallbackVersion)
		return FallbackVersion
	}
	if valid, _ := types.ReleaseVersion(v).IsValid(); !valid {
		m.logger.Debug("version probe output is not a plain version", "output", v)
	}
	return v
}

// parseVersionOutput takes the last whitespace-separated word of the trimmed
// output, so both "1.2.3" and "redlab 1.2.3" resolve to "1.2.3".
func parseVersionOutput(out string) string {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// AddDependency records a requirement. A repeated name overwrites the
// previous constraint but keeps its original position.
func (m *Metadata) AddDependency(name, constraint string) {
	m.requires.Set(name, constraint)
}

// Requires returns the requirements in insertion order.
func (m *Metadata) Requires() []Requirement {
	return m.requires.All()
}

// StageName is the directory name of the staged tree: "<name>-<version>".
func (m *Metadata) StageName(ctx context.Context) string {
	return m.Name + "-" + m.ResolveVersion(ctx)
}

// CodeDir is the staging directory inside PackageDir.
func (m *Metadata) CodeDir(ctx context.Context) string {
	return filepath.Join(m.PackageDir, m.StageName(ctx))
}

// PkgPublishDir is the per-project directory under PublishDir.
func (m *Metadata) PkgPublishDir() string {
	if m.PublishDir == "" {
		return ""
	}
	return filepath.Join(m.PublishDir, m.Name)
}
