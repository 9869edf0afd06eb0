// SPDX-License-Identifier: MPL-2.0

package release

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/redlab/redlab/internal/manifest"
	"github.com/redlab/redlab/internal/project"
	"github.com/redlab/redlab/internal/strategy"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/testutil"
	"github.com/redlab/redlab/internal/toolexec"

	"github.com/google/go-cmp/cmp"
)

type fixture struct {
	root   string
	runner *testutil.FakeRunner
	env    *strategy.Env
	rel    *Releaser
	out    *bytes.Buffer
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, "bin", "tool"), "#!/bin/sh\n")
	testutil.MustWriteFile(t, filepath.Join(root, "lib", "tool.rb"), "module Tool\n  TOOLVERSION = '1.0.0'\nend\n")
	return root
}

// newFixture builds a graph for the project at root with only the archive
// strategy available. The built artifact reports version 1.0.0.
func newFixture(t *testing.T, root string, runner *testutil.FakeRunner, version string, configure func(*Options)) *fixture {
	t.Helper()

	runner.OnOutput("./bin/tool --version", "1.0.0\n")
	var opts []project.Option
	if version != "" {
		opts = append(opts, project.WithVersion(version))
	}
	md := project.New("tool", runner, opts...)
	md.Root = root
	md.PackageDir = filepath.Join(root, "pkg")
	md.PublishDir = filepath.Join(root, "downloads")
	md.Files = []string{"bin/*", "lib/**/*.rb"}

	env := &strategy.Env{
		Metadata:  md,
		Graph:     taskgraph.New(),
		Manifests: manifest.NewBuilder(runner),
		Runner:    runner,
		Caps:      toolexec.NewCapabilities(map[string]string{"tar": "/bin/tar", "rdoc": "/usr/bin/rdoc"}),
	}
	sel, err := strategy.DefineAll(context.Background(), env, strategy.Registry())
	if err != nil {
		t.Fatalf("DefineAll() error = %v", err)
	}

	out := &bytes.Buffer{}
	o := Options{
		Version:       version,
		VersionFile:   filepath.Join(root, "lib", "tool.rb"),
		Commands:      DefaultCommands(),
		OutputDir:     t.TempDir(),
		DefaultTarget: strategy.PackageTarget,
		Out:           out,
	}
	if configure != nil {
		configure(&o)
	}
	rel, err := Define(context.Background(), env, sel, o)
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	return &fixture{root: root, runner: runner, env: env, rel: rel, out: out}
}

func (f *fixture) run(name string) error {
	return f.env.Graph.Run(context.Background(), name)
}

// tarWritesArchive makes the fake tar produce the tarball it was asked for.
func tarWritesArchive(runner *testutil.FakeRunner) *testutil.FakeRunner {
	return runner.On("tar -czf", testutil.Response{
		Effect: func(cmd toolexec.Command) error {
			return os.WriteFile(cmd.Args[1], []byte("tarball"), 0o644)
		},
	})
}

func TestTagName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version, reuse, want string
	}{
		{"0.22.4", "", "REL_0_22_4"},
		{"0.22.4", "b.1", "REL_0_22_4b_1"},
		{"1.0", "_2", "REL_1_0_2"},
	}
	for _, tt := range tests {
		if got := TagName(tt.version, tt.reuse); got != tt.want {
			t.Errorf("TagName(%q, %q) = %q, want %q", tt.version, tt.reuse, got, tt.want)
		}
	}
}

func TestCommands_Tools(t *testing.T) {
	t.Parallel()

	cmds := DefaultCommands()
	cmds.Docs = "rdoc --op doc lib"
	cmds.Install = "{{ broken"

	want := []string{"git", "./test", "ssh", "rdoc"}
	if got := cmds.Tools(); !slices.Equal(got, want) {
		t.Errorf("Tools() = %v, want %v", got, want)
	}
}

func TestPrerelease_RequiresVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), testutil.NewFakeRunner(), "", nil)
	err := f.run(PrereleaseTarget)
	if !errors.Is(err, ErrReleaseVersionRequired) {
		t.Fatalf("expected ErrReleaseVersionRequired, got %v", err)
	}
	var actionErr *taskgraph.ActionError
	if !errors.As(err, &actionErr) || actionErr.Target != PrereleaseTarget {
		t.Errorf("failure not attributed to prerelease: %v", err)
	}
}

func TestPrerelease_VersionConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), testutil.NewFakeRunner(), "1.0.0", nil)
	if err := f.run(PrereleaseTarget); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	reuse := newFixture(t, newProject(t), testutil.NewFakeRunner(), "1.0.0", func(o *Options) { o.Reuse = "b" })
	if err := reuse.run(PrereleaseTarget); err != nil {
		t.Fatalf("prerelease with reuse suffix: %v", err)
	}
}

func TestPrerelease_WorkingTree(t *testing.T) {
	t.Parallel()

	dirty := newFixture(t, newProject(t),
		testutil.NewFakeRunner().OnOutput("git status --porcelain", " M lib/tool.rb\n?? notes.txt\n"), "1.1.0", nil)
	err := dirty.run(PrereleaseTarget)
	var treeErr *DirtyTreeError
	if !errors.As(err, &treeErr) {
		t.Fatalf("expected DirtyTreeError, got %v", err)
	}
	if diff := cmp.Diff([]string{"M lib/tool.rb", "?? notes.txt"}, treeErr.Changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, ErrDirtyWorkingTree) {
		t.Error("error does not wrap ErrDirtyWorkingTree")
	}

	clean := newFixture(t, newProject(t), testutil.NewFakeRunner(), "1.1.0", nil)
	if err := clean.run(PrereleaseTarget); err != nil {
		t.Fatalf("clean tree: %v", err)
	}

	testMode := newFixture(t, newProject(t),
		testutil.NewFakeRunner().OnOutput("git status", "?? junk\n"), "1.1.0", func(o *Options) { o.TestMode = true })
	if err := testMode.run(PrereleaseTarget); err != nil {
		t.Fatalf("test mode: %v", err)
	}
	if testMode.runner.Count("git status") != 0 {
		t.Error("test mode ran the status command")
	}
}

func TestUpdateVersion_SecondRunIsNoop(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	versionFile := filepath.Join(root, "lib", "tool.rb")

	first := newFixture(t, root, testutil.NewFakeRunner(), "1.1.0", nil)
	if err := first.run(CommitNewVersionTarget); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := testutil.MustReadFile(t, versionFile); !strings.Contains(got, "TOOLVERSION = '1.1.0'") {
		t.Errorf("version file not rewritten:\n%s", got)
	}
	wantCommit := "git commit -m Updated to version 1.1.0 " + versionFile
	if diff := cmp.Diff([]string{"./bin/tool --version", "git status --porcelain", wantCommit}, first.runner.Lines()); diff != "" {
		t.Errorf("first run commands mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(versionFile)
	if err != nil {
		t.Fatal(err)
	}

	second := newFixture(t, root, testutil.NewFakeRunner(), "1.1.0", nil)
	if err := second.run(CommitNewVersionTarget); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.runner.Count("git commit") != 0 {
		t.Error("second run committed again")
	}
	if len(second.rel.Rewritten()) != 0 {
		t.Errorf("second run rewrote %v", second.rel.Rewritten())
	}
	after, err := os.Stat(versionFile)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(info.ModTime()) {
		t.Error("version file was written on the second run")
	}
}

func TestCommitAndTag_TestModeSimulates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), testutil.NewFakeRunner(), "1.1.0", func(o *Options) { o.TestMode = true })
	if err := f.env.Graph.RunAll(context.Background(), CommitNewVersionTarget, TagTarget); err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if n := f.runner.Count("git"); n != 0 {
		t.Errorf("test mode ran %d git commands: %v", n, f.runner.Lines())
	}
	if len(f.rel.Rewritten()) != 1 {
		t.Errorf("version file should still be rewritten in test mode, got %v", f.rel.Rewritten())
	}
}

func TestTag_RunsTagCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), testutil.NewFakeRunner(), "1.1.0", func(o *Options) { o.Reuse = "a" })
	if err := f.run(TagTarget); err != nil {
		t.Fatalf("Run(tag) error = %v", err)
	}
	if f.runner.Count("git tag -a REL_1_1_0a -m Adding release tag REL_1_1_0a") != 1 {
		t.Errorf("tag command not run: %v", f.runner.Lines())
	}
}

func TestHostTest_ReportsEveryFailedHost(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner().
		OnExit("ssh culain", 1, "3 failures").
		OnExit("ssh freebsd1", 255, "no route to host")
	f := newFixture(t, newProject(t), runner, "1.1.0", func(o *Options) {
		o.Hosts = []string{"culain", "freebsd1", "fedora1"}
		o.RemoteDir = "src/tool"
	})

	err := f.run(HostTestTarget)
	var hostsErr *toolexec.HostsFailedError
	if !errors.As(err, &hostsErr) {
		t.Fatalf("expected HostsFailedError, got %v", err)
	}
	if diff := cmp.Diff([]string{"culain", "freebsd1"}, hostsErr.Hosts); diff != "" {
		t.Errorf("failed hosts mismatch (-want +got):\n%s", diff)
	}
	if f.runner.Count("ssh fedora1 cd src/tool/test && ./test") != 1 {
		t.Errorf("fedora1 not attempted: %v", f.runner.Lines())
	}
	out := testutil.MustReadFile(t, filepath.Join(f.rel.opts.OutputDir, "tool-culaintest.out"))
	if out != "3 failures" {
		t.Errorf("saved output = %q", out)
	}
}

func TestPublish_CopiesPackagesAndWritesIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), tarWritesArchive(testutil.NewFakeRunner()), "1.1.0", nil)
	if err := f.run(PublishTarget); err != nil {
		t.Fatalf("Run(publish) error = %v", err)
	}

	dir := f.env.Metadata.PkgPublishDir()
	if got := testutil.MustReadFile(t, filepath.Join(dir, "tool-1.1.0.tgz")); got != "tarball" {
		t.Errorf("published tarball = %q", got)
	}
	index := testutil.MustReadFile(t, filepath.Join(dir, IndexFile))
	for _, want := range []string{
		"name: tool",
		"file: tool-1.1.0.tgz",
		"version: 1.1.0",
		"strategy: archive",
		"size: 7",
	} {
		if !strings.Contains(index, want) {
			t.Errorf("index missing %q:\n%s", want, index)
		}
	}
}

func TestPublish_RequiresPublishDir(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), tarWritesArchive(testutil.NewFakeRunner()), "1.1.0", nil)
	f.env.Metadata.PublishDir = ""
	if err := f.run(PublishTarget); !errors.Is(err, ErrPublishDirUnset) {
		t.Fatalf("expected ErrPublishDirUnset, got %v", err)
	}
}

func TestUpdateIndex_Merges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), IndexFile)
	if err := UpdateIndex(path, "tool", []IndexPackage{{File: "tool-1.0.0.tgz", Version: "1.0.0"}}); err != nil {
		t.Fatal(err)
	}
	if err := UpdateIndex(path, "tool", []IndexPackage{
		{File: "tool-1.1.0.tgz", Version: "1.1.0"},
		{File: "tool-1.0.0.tgz", Version: "1.0.0", Size: 42},
	}); err != nil {
		t.Fatal(err)
	}

	got := testutil.MustReadFile(t, path)
	if strings.Count(got, "file: tool-1.0.0.tgz") != 1 || !strings.Contains(got, "size: 42") {
		t.Errorf("entry not replaced:\n%s", got)
	}
	if strings.Index(got, "tool-1.0.0.tgz") > strings.Index(got, "tool-1.1.0.tgz") {
		t.Errorf("entries not sorted:\n%s", got)
	}
}

func TestRelease_FullRunInTestMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), tarWritesArchive(testutil.NewFakeRunner()), "1.1.0", func(o *Options) {
		o.TestMode = true
		o.Commands.Docs = "rdoc -o doc lib"
	})
	testutil.MustWriteFile(t, filepath.Join(f.env.Metadata.PackageDir, "stale.list"), "old")

	if err := f.run(ReleaseTarget); err != nil {
		t.Fatalf("Run(release) error = %v", err)
	}

	executed := f.env.Graph.Executed()
	order := []string{PrereleaseTarget, ClobberTarget, UpdateVersionTarget, CommitNewVersionTarget, TagTarget,
		DocsTarget, strategy.StageTarget, strategy.ArchiveTarget, strategy.PackageTarget, PublishTarget, ReleaseTarget}
	last := -1
	for _, name := range order {
		i := slices.Index(executed, name)
		if i < 0 {
			t.Fatalf("%s did not run; executed %v", name, executed)
		}
		if i < last {
			t.Errorf("%s ran out of order; executed %v", name, executed)
		}
		last = i
	}

	if _, err := os.Stat(filepath.Join(f.env.Metadata.PackageDir, "stale.list")); !os.IsNotExist(err) {
		t.Error("clobber did not remove the package dir")
	}
	if f.runner.Count("rdoc -o doc lib") != 1 {
		t.Errorf("docs command not run: %v", f.runner.Lines())
	}
	if !strings.Contains(f.out.String(), "Release 1.1.0 complete.") {
		t.Errorf("completion banner missing:\n%s", f.out.String())
	}
}

func TestDocs_SkippedWhenToolMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), testutil.NewFakeRunner(), "1.1.0", func(o *Options) {
		o.Commands.Docs = "doxygen Doxyfile"
	})
	if _, ok := f.env.Graph.Lookup(DocsTarget); ok {
		t.Error("docs target registered without its tool")
	}
	release, _ := f.env.Graph.Lookup(ReleaseTarget)
	if slices.Contains(release.Deps, DocsTarget) {
		t.Error("release depends on a missing docs target")
	}
}

func TestDefaultTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newProject(t), tarWritesArchive(testutil.NewFakeRunner()), "1.1.0", nil)
	def, ok := f.env.Graph.Lookup(DefaultTarget)
	if !ok {
		t.Fatal("default target not registered")
	}
	if diff := cmp.Diff([]string{strategy.PackageTarget}, def.Deps); diff != "" {
		t.Errorf("default deps mismatch (-want +got):\n%s", diff)
	}
}
