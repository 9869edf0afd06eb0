// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog issue. The zero value means "no issue".
type Id int

const (
	ProjectFileNotFoundId Id = iota + 1
	ProjectFileInvalidId
	MissingToolId
	DirtyWorkingTreeId
	VersionConflictId
	ReleaseVersionRequiredId
	DependencyCycleId
	UnknownTargetId
	TargetFailedId
	HostsFailedId
)

type (
	// MarkdownMsg is catalog guidance written in Markdown.
	MarkdownMsg string

	// Issue is one entry of the troubleshooting catalog.
	Issue struct {
		id    Id
		mdMsg MarkdownMsg
	}
)

// Id returns the lookup key of the issue.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the raw guidance.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Render renders the guidance for a terminal with the named glamour style
// ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	projectFileNotFoundIssue = &Issue{
		id: ProjectFileNotFoundId,
		mdMsg: `
# No project file found!

redlab looks for ` + "`redlab.cue`" + `, then ` + "`redlab.toml`" + `, in the current directory.

## Things you can try:
- Run redlab from the project's top directory
- Create a starter project file:
~~~
$ redlab init
~~~
- Point at a file explicitly:
~~~
$ redlab --project path/to/redlab.cue targets
~~~`,
	}

	projectFileInvalidIssue = &Issue{
		id: ProjectFileInvalidId,
		mdMsg: `
# Invalid project file!

The project file has a syntax error or a field that does not match the schema.

## Common issues:
- Unknown field names (the schema is closed)
- ` + "`directories`" + ` prefixes that are not absolute install paths
- A ` + "`version_const`" + ` that is not an upper-case constant name

## Example:
~~~cue
name:    "tool"
summary: "Does useful things"
directories: [{source: "bin", prefix: "/usr/bin"}]
requires: [{name: "ruby", version: ">= 1.8"}]
~~~`,
	}

	missingToolIssue = &Issue{
		id: MissingToolId,
		mdMsg: `
# Required tool not found!

A packaging strategy or release step needs an external program that is not on your PATH.

## Things you can try:
- Install the missing tool (epm, mkepmlist, tar, rpmbuild, ssh)
- Disable the strategy in the project file:
~~~cue
packaging: {rpm: false}
~~~
- List what can still be built:
~~~
$ redlab targets
~~~`,
	}

	dirtyWorkingTreeIssue = &Issue{
		id: DirtyWorkingTreeId,
		mdMsg: `
# Uncommitted changes!

Releases are cut from a clean working tree so the tag matches what was built.

## Things you can try:
- Commit or stash the listed changes
- Rehearse the release without touching version control:
~~~
$ RELTEST=1 redlab run release
~~~`,
	}

	versionConflictIssue = &Issue{
		id: VersionConflictId,
		mdMsg: `
# Version already released!

The requested release version equals the current version.

## Things you can try:
- Pick the next version:
~~~
$ redlab run release --rel 1.2.4
~~~
- Re-release the same version under a new tag suffix:
~~~
$ REUSE=b redlab run release --rel 1.2.3
~~~`,
	}

	releaseVersionRequiredIssue = &Issue{
		id: ReleaseVersionRequiredId,
		mdMsg: `
# No release version!

Release targets need the version being released.

## Things you can try:
~~~
$ REL=1.2.4 redlab run release
$ redlab run release --rel 1.2.4
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle!

Two or more targets depend on each other, so no build order exists.

## Things you can try:
- Read the cycle printed above and remove one of its edges
- Check custom targets added with extra dependencies`,
	}

	unknownTargetIssue = &Issue{
		id: UnknownTargetId,
		mdMsg: `
# Unknown target!

The target is neither defined nor an existing file.

## Things you can try:
- List the available targets:
~~~
$ redlab targets --all
~~~
- Check for typos in the target name`,
	}

	targetFailedIssue = &Issue{
		id: TargetFailedId,
		mdMsg: `
# Target failed!

A build action returned an error and the run stopped. Targets that already
finished are not rerun when you fix the problem and try again.

## Things you can try:
- Rerun with ` + "`--verbose`" + ` to see every command and its output
- Preview what would run:
~~~
$ redlab run --dry-run <target>
~~~`,
	}

	hostsFailedIssue = &Issue{
		id: HostsFailedId,
		mdMsg: `
# Remote hosts failed!

Every host was attempted; the listed ones failed.

## Things you can try:
- Check ssh access to each host
- Inspect the saved per-host output in the output directory
- Limit the run to specific hosts:
~~~
$ TESTHOSTS="alpha beta" redlab run hosttest
~~~`,
	}

	issues = map[Id]*Issue{
		projectFileNotFoundIssue.Id():    projectFileNotFoundIssue,
		projectFileInvalidIssue.Id():     projectFileInvalidIssue,
		missingToolIssue.Id():            missingToolIssue,
		dirtyWorkingTreeIssue.Id():       dirtyWorkingTreeIssue,
		versionConflictIssue.Id():        versionConflictIssue,
		releaseVersionRequiredIssue.Id(): releaseVersionRequiredIssue,
		dependencyCycleIssue.Id():        dependencyCycleIssue,
		unknownTargetIssue.Id():          unknownTargetIssue,
		targetFailedIssue.Id():           targetFailedIssue,
		hostsFailedIssue.Id():            hostsFailedIssue,
	}
)

// Values returns every catalog issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id - b.id)
	})
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
