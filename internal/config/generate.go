// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrProjectFileExists is returned by CreateProjectFile when a project file
// is already present and overwriting was not requested.
var ErrProjectFileExists = errors.New("project file already exists")

// CreateProjectFile writes a starter redlab.cue for the named project into
// dir and returns its path.
func CreateProjectFile(dir, name string, force bool) (string, error) {
	path := filepath.Join(dir, ProjectFileName+"."+ExtCUE)
	if !force {
		for _, ext := range []string{ExtCUE, ExtTOML} {
			existing := filepath.Join(dir, ProjectFileName+"."+ext)
			if fileExists(existing) {
				return "", fmt.Errorf("%w: %s", ErrProjectFileExists, existing)
			}
		}
	}

	p := DefaultProject()
	p.Name = name
	p.Summary = name
	p.VersionFile = filepath.Join("lib", name+".rb")
	p.SpecFile = filepath.Join("conf", "redhat", name+".spec")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(p)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write project file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders p as a CUE project file. Empty optional fields are
// omitted.
func GenerateCUE(p *Project) string {
	var sb strings.Builder

	sb.WriteString("// redlab project file\n\n")

	str := func(indent, key, val string) {
		if val != "" {
			fmt.Fprintf(&sb, "%s%s: %q\n", indent, key, val)
		}
	}
	list := func(key string, vals []string) {
		if len(vals) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s: [\n", key)
		for _, v := range vals {
			fmt.Fprintf(&sb, "\t%q,\n", v)
		}
		sb.WriteString("]\n")
	}

	str("", "name", p.Name)
	str("", "product", p.Product)
	str("", "summary", p.Summary)
	str("", "description", p.Description)
	str("", "author", p.Author)
	str("", "email", p.Email)
	str("", "url", p.URL)
	str("", "vendor", p.Vendor)
	str("", "copyright", p.Copyright)
	str("", "license", p.License)
	str("", "readme", p.Readme)
	str("", "os", p.OS)

	sb.WriteString("\n")
	str("", "version", p.Version)
	str("", "version_probe", p.VersionProbe)
	str("", "version_file", p.VersionFile)
	str("", "version_const", p.VersionConst)
	str("", "package_dir", p.PackageDir)
	str("", "publish_dir", p.PublishDir)

	list("files", p.Files)
	list("excludes", p.Excludes)

	if len(p.Directories) > 0 {
		sb.WriteString("\ndirectories: [\n")
		for _, d := range p.Directories {
			fmt.Fprintf(&sb, "\t{source: %q, prefix: %q},\n", d.Source, d.Prefix)
		}
		sb.WriteString("]\n")
	}

	if len(p.Requires) > 0 {
		sb.WriteString("\nrequires: [\n")
		for _, r := range p.Requires {
			if r.Version != "" {
				fmt.Fprintf(&sb, "\t{name: %q, version: %q},\n", r.Name, r.Version)
			} else {
				fmt.Fprintf(&sb, "\t{name: %q},\n", r.Name)
			}
		}
		sb.WriteString("]\n")
	}

	if len(p.OwnerRules) > 0 {
		sb.WriteString("\nowner_rules: {\n")
		for _, k := range slices.Sorted(maps.Keys(p.OwnerRules)) {
			fmt.Fprintf(&sb, "\t%q: %q\n", k, p.OwnerRules[k])
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\npackaging: {\n")
	fmt.Fprintf(&sb, "\tnative:   %v\n", p.Packaging.Native)
	fmt.Fprintf(&sb, "\tportable: %v\n", p.Packaging.Portable)
	fmt.Fprintf(&sb, "\tarchive:  %v\n", p.Packaging.Archive)
	fmt.Fprintf(&sb, "\trpm:      %v\n", p.Packaging.RPM)
	sb.WriteString("}\n")
	str("", "spec_file", p.SpecFile)
	str("", "rpm_release", p.RPMRelease)
	list("source_deps", p.SourceDeps)

	list("package_hosts", p.PackageHosts)
	list("test_hosts", p.TestHosts)
	str("", "remote_dir", p.RemoteDir)
	str("", "default_target", p.DefaultTarget)

	if p.Commands != (Commands{}) {
		sb.WriteString("\ncommands: {\n")
		str("\t", "status", p.Commands.Status)
		str("\t", "commit", p.Commands.Commit)
		str("\t", "tag", p.Commands.Tag)
		str("\t", "install", p.Commands.Install)
		str("\t", "test", p.Commands.Test)
		str("\t", "host_test", p.Commands.HostTest)
		str("\t", "docs", p.Commands.Docs)
		sb.WriteString("}\n")
	}

	if p.Release != (Release{}) {
		sb.WriteString("\nrelease: {\n")
		str("\t", "version", p.Release.Version)
		str("\t", "reuse", p.Release.Reuse)
		if p.Release.TestMode {
			sb.WriteString("\ttest_mode: true\n")
		}
		str("\t", "test_dir", p.Release.TestDir)
		str("\t", "docs_dir", p.Release.DocsDir)
		str("\t", "output_dir", p.Release.OutputDir)
		sb.WriteString("}\n")
	}

	return sb.String()
}
