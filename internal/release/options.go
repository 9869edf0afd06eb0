// SPDX-License-Identifier: MPL-2.0

package release

import (
	"io"
	"os"
	"slices"
	"strings"

	"github.com/redlab/redlab/internal/toolexec"
	"github.com/redlab/redlab/pkg/types"
)

type (
	// Commands are the external command templates the release targets run.
	// Each is a text/template rendered against CommandData and split into
	// words with shell quoting rules; no shell is involved.
	Commands struct {
		// Status prints uncommitted changes; any output means a dirty tree.
		Status string
		Commit string
		Tag    string
		// Install installs the project on this machine.
		Install string
		// Test runs the test suite inside Options.TestDir.
		Test string
		// HostTest runs the test suite on one remote host.
		HostTest string
		// Docs generates documentation into Options.DocsDir. Optional.
		Docs string
	}

	// CommandData is the template data for Commands.
	CommandData struct {
		Name      string
		Version   string
		Tag       string
		Files     []string
		Host      string
		RemoteDir string
	}

	// Options configure the release targets.
	Options struct {
		// Version is the requested release version. Releases require it.
		Version string
		// Reuse is appended to the tag to re-release an existing version.
		Reuse string
		// TestMode logs commits and tags instead of running them and skips
		// the working tree check.
		TestMode bool
		// Hosts run hosttest.
		Hosts []string
		// RemoteDir is the project checkout on remote hosts.
		RemoteDir string
		// VersionFile holds VersionConst, rewritten by update_version.
		VersionFile  string
		VersionConst string
		TestDir      string
		DocsDir      string
		// OutputDir receives per-host test output.
		OutputDir string
		// DefaultTarget is run by the default target.
		DefaultTarget string
		Commands      Commands
		// Out receives release banners.
		Out io.Writer
	}
)

// DefaultCommands use git for version control and ssh for remote tests.
func DefaultCommands() Commands {
	return Commands{
		Status:   "git status --porcelain",
		Commit:   `git commit -m {{quote (printf "Updated to version %s" .Version)}} {{words .Files}}`,
		Tag:      `git tag -a {{.Tag}} -m {{quote (printf "Adding release tag %s" .Tag)}}`,
		Install:  "ruby install.rb",
		Test:     "./test",
		HostTest: `ssh {{.Host}} {{quote (printf "cd %s/test && ./test" .RemoteDir)}}`,
	}
}

// Tools returns the executables the configured command lines start with,
// in field order and without duplicates. Lines that do not parse are
// skipped; they fail with a full error when their target runs.
func (c Commands) Tools() []string {
	var tools []string
	for _, line := range []string{c.Status, c.Commit, c.Tag, c.Install, c.Test, c.HostTest, c.Docs} {
		if line == "" {
			continue
		}
		cmd, err := toolexec.ParseCommand(line, CommandData{})
		if err != nil || slices.Contains(tools, cmd.Name) {
			continue
		}
		tools = append(tools, cmd.Name)
	}
	return tools
}

// TagName returns "REL_<version>" with dots replaced by underscores,
// followed by the reuse suffix treated the same way.
func TagName(version, reuse string) string {
	return "REL_" + types.ReleaseVersion(version).TagSuffix() + strings.ReplaceAll(reuse, ".", "_")
}

func (o *Options) setDefaults(name string) {
	if o.TestDir == "" {
		o.TestDir = "test"
	}
	if o.DocsDir == "" {
		o.DocsDir = "doc"
	}
	if o.OutputDir == "" {
		o.OutputDir = os.TempDir()
	}
	if o.VersionConst == "" {
		o.VersionConst = strings.ToUpper(name) + "VERSION"
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}
