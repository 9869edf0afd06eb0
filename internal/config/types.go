// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// StrategyNative builds the platform's native package format with epm.
	StrategyNative = "native"
	// StrategyPortable builds an epm portable installer.
	StrategyPortable = "portable"
	// StrategyArchive builds a gzipped tarball of the staged tree.
	StrategyArchive = "archive"
	// StrategyRPM builds binary and source RPMs from the project's spec file.
	StrategyRPM = "rpm"
)

var (
	// ErrInvalidProject is the sentinel error wrapped by InvalidProjectError.
	ErrInvalidProject = errors.New("invalid project")

	projectNamePattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)
	versionConstPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

type (
	// Directory maps a staged subtree onto an install prefix.
	Directory struct {
		Source string `json:"source" mapstructure:"source"`
		Prefix string `json:"prefix" mapstructure:"prefix"`
	}

	// Requirement is one package dependency emitted as a %requires line.
	Requirement struct {
		Name    string `json:"name" mapstructure:"name"`
		Version string `json:"version,omitempty" mapstructure:"version"`
	}

	// Packaging enables or disables individual package strategies.
	Packaging struct {
		Native   bool `json:"native,omitempty" mapstructure:"native"`
		Portable bool `json:"portable,omitempty" mapstructure:"portable"`
		Archive  bool `json:"archive,omitempty" mapstructure:"archive"`
		RPM      bool `json:"rpm,omitempty" mapstructure:"rpm"`
	}

	// Commands override the external command lines used by release targets.
	// Empty fields keep the built-in commands.
	Commands struct {
		Status   string `json:"status,omitempty" mapstructure:"status"`
		Commit   string `json:"commit,omitempty" mapstructure:"commit"`
		Tag      string `json:"tag,omitempty" mapstructure:"tag"`
		Install  string `json:"install,omitempty" mapstructure:"install"`
		Test     string `json:"test,omitempty" mapstructure:"test"`
		HostTest string `json:"host_test,omitempty" mapstructure:"host_test"`
		Docs     string `json:"docs,omitempty" mapstructure:"docs"`
	}

	// Release holds per-run release inputs. Version, Reuse and TestMode are
	// normally supplied through REL, REUSE and RELTEST.
	Release struct {
		Version   string `json:"version,omitempty" mapstructure:"version"`
		Reuse     string `json:"reuse,omitempty" mapstructure:"reuse"`
		TestMode  bool   `json:"test_mode,omitempty" mapstructure:"test_mode"`
		TestDir   string `json:"test_dir,omitempty" mapstructure:"test_dir"`
		DocsDir   string `json:"docs_dir,omitempty" mapstructure:"docs_dir"`
		OutputDir string `json:"output_dir,omitempty" mapstructure:"output_dir"`
	}

	// Project is the decoded project file merged with defaults, environment
	// and flags.
	Project struct {
		Name        string `json:"name" mapstructure:"name"`
		Product     string `json:"product,omitempty" mapstructure:"product"`
		Summary     string `json:"summary,omitempty" mapstructure:"summary"`
		Description string `json:"description,omitempty" mapstructure:"description"`
		Author      string `json:"author,omitempty" mapstructure:"author"`
		Email       string `json:"email,omitempty" mapstructure:"email"`
		URL         string `json:"url,omitempty" mapstructure:"url"`
		Vendor      string `json:"vendor,omitempty" mapstructure:"vendor"`
		Copyright   string `json:"copyright,omitempty" mapstructure:"copyright"`
		License     string `json:"license,omitempty" mapstructure:"license"`
		Readme      string `json:"readme,omitempty" mapstructure:"readme"`
		OS          string `json:"os,omitempty" mapstructure:"os"`

		Version      string `json:"version,omitempty" mapstructure:"version"`
		VersionProbe string `json:"version_probe,omitempty" mapstructure:"version_probe"`
		VersionFile  string `json:"version_file,omitempty" mapstructure:"version_file"`
		VersionConst string `json:"version_const,omitempty" mapstructure:"version_const"`

		PackageDir string `json:"package_dir,omitempty" mapstructure:"package_dir"`
		PublishDir string `json:"publish_dir,omitempty" mapstructure:"publish_dir"`

		Files       []string      `json:"files,omitempty" mapstructure:"files"`
		Excludes    []string      `json:"excludes,omitempty" mapstructure:"excludes"`
		Directories []Directory   `json:"directories,omitempty" mapstructure:"directories"`
		Requires    []Requirement `json:"requires,omitempty" mapstructure:"requires"`
		// OwnerRules keys are lowercased by the loader.
		OwnerRules map[string]string `json:"owner_rules,omitempty" mapstructure:"owner_rules"`

		Packaging  Packaging `json:"packaging,omitempty" mapstructure:"packaging"`
		SpecFile   string    `json:"spec_file,omitempty" mapstructure:"spec_file"`
		RPMRelease string    `json:"rpm_release,omitempty" mapstructure:"rpm_release"`
		SourceDeps []string  `json:"source_deps,omitempty" mapstructure:"source_deps"`

		PackageHosts []string `json:"package_hosts,omitempty" mapstructure:"package_hosts"`
		TestHosts    []string `json:"test_hosts,omitempty" mapstructure:"test_hosts"`
		RemoteDir    string   `json:"remote_dir,omitempty" mapstructure:"remote_dir"`

		DefaultTarget string   `json:"default_target,omitempty" mapstructure:"default_target"`
		Commands      Commands `json:"commands,omitempty" mapstructure:"commands"`
		Release       Release  `json:"release,omitempty" mapstructure:"release"`

		// File is the absolute path of the loaded project file.
		File string `json:"-" mapstructure:"-"`
		// Root is the directory holding File; relative paths resolve here.
		Root string `json:"-" mapstructure:"-"`
	}

	// InvalidFieldError describes one project field that failed validation.
	InvalidFieldError struct {
		Field  string
		Reason string
	}

	// InvalidProjectError collects every field error found by Validate.
	// It wraps ErrInvalidProject for errors.Is() compatibility.
	InvalidProjectError struct {
		FieldErrors []error
	}
)

// DefaultProject returns the settings used for fields a project file omits.
func DefaultProject() *Project {
	return &Project{
		License:    "LICENSE",
		Readme:     "README",
		PackageDir: "pkg",
		Packaging: Packaging{
			Native:   true,
			Portable: true,
			Archive:  true,
			RPM:      true,
		},
		RPMRelease:    "1%{?dist}",
		OwnerRules:    map[string]string{"luke": "0"},
		DefaultTarget: "package",
	}
}

// Error implements the error interface.
func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Error implements the error interface.
func (e *InvalidProjectError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("%s: %v", ErrInvalidProject, e.FieldErrors[0])
	}
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %d field errors: %s", ErrInvalidProject, len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidProject for errors.Is() compatibility.
func (e *InvalidProjectError) Unwrap() error { return ErrInvalidProject }

// Disabled returns the names of the strategies turned off.
func (p Packaging) Disabled() []string {
	var names []string
	if !p.Native {
		names = append(names, StrategyNative)
	}
	if !p.Portable {
		names = append(names, StrategyPortable)
	}
	if !p.Archive {
		names = append(names, StrategyArchive)
	}
	if !p.RPM {
		names = append(names, StrategyRPM)
	}
	return names
}

// Validate checks the constraints shared by CUE and TOML project files.
// CUE files are also checked against the embedded schema; TOML files rely
// on this alone.
func (p *Project) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &InvalidFieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	switch {
	case strings.TrimSpace(p.Name) == "":
		add("name", "must not be empty")
	case !projectNamePattern.MatchString(p.Name):
		add("name", "%q contains characters not allowed in package names", p.Name)
	}
	if strings.TrimSpace(p.PackageDir) == "" {
		add("package_dir", "must not be empty")
	}
	if p.VersionConst != "" && !versionConstPattern.MatchString(p.VersionConst) {
		add("version_const", "%q is not a constant name", p.VersionConst)
	}
	for i, d := range p.Directories {
		if strings.TrimSpace(d.Source) == "" {
			add(fmt.Sprintf("directories[%d].source", i), "must not be empty")
		}
		if !strings.HasPrefix(d.Prefix, "/") {
			add(fmt.Sprintf("directories[%d].prefix", i), "%q must be an absolute install path", d.Prefix)
		}
	}
	for i, r := range p.Requires {
		if strings.TrimSpace(r.Name) == "" {
			add(fmt.Sprintf("requires[%d].name", i), "must not be empty")
		}
	}

	if len(errs) > 0 {
		return &InvalidProjectError{FieldErrors: errs}
	}
	return nil
}
