// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/redlab/redlab/internal/manifest"
	"github.com/redlab/redlab/internal/project"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/testutil"
	"github.com/redlab/redlab/internal/toolexec"

	"github.com/google/go-cmp/cmp"
)

func allTools() toolexec.Capabilities {
	return toolexec.NewCapabilities(map[string]string{
		"epm":       "/usr/bin/epm",
		"mkepmlist": "/usr/bin/mkepmlist",
		"tar":       "/bin/tar",
		"rpmbuild":  "/usr/bin/rpmbuild",
		"ssh":       "/usr/bin/ssh",
	})
}

// newEnv lays out a small project under a temp dir and returns an Env whose
// paths are all absolute.
func newEnv(t *testing.T, runner *testutil.FakeRunner, caps toolexec.Capabilities) *Env {
	t.Helper()

	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, "bin", "tool"), "#!/bin/sh\n")
	testutil.MustWriteFile(t, filepath.Join(root, "lib", "tool.rb"), "TOOLVERSION = '1.0.0'\n")
	testutil.MustWriteFile(t, filepath.Join(root, "README"), "tool\n")
	testutil.MustWriteFile(t, filepath.Join(root, "conf", "redhat", "tool.spec"), "Name: tool\nVersion: 1.0.0\nRelease: 4\n")

	return envAt(root, "1.1.0", runner, caps)
}

// envAt returns a fresh Env over an existing project root, as a new redlab
// invocation would build it.
func envAt(root, version string, runner *testutil.FakeRunner, caps toolexec.Capabilities) *Env {
	md := project.New("tool", runner, project.WithVersion(version))
	md.Root = root
	md.PackageDir = filepath.Join(root, "pkg")
	md.OS = "linux"
	md.Files = []string{"README", "bin/*", "lib/**/*.rb"}

	return &Env{
		Metadata:  md,
		Graph:     taskgraph.New(),
		Manifests: manifest.NewBuilder(runner),
		Runner:    runner,
		Caps:      caps,
		Settings: Settings{
			SpecFile: filepath.Join(root, "conf", "redhat", "tool.spec"),
		},
	}
}

func names(strategies []PackageStrategy) []string {
	out := make([]string, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, s.Name())
	}
	return out
}

func TestRegistryOrder(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff([]string{"native", "portable", "archive", "rpm"}, names(Registry())); diff != "" {
		t.Errorf("Registry() mismatch (-want +got):\n%s", diff)
	}
	want := []string{"epm", "mkepmlist", "tar", "rpmbuild", "ssh"}
	if diff := cmp.Diff(want, RequiredTools(Registry())); diff != "" {
		t.Errorf("RequiredTools() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefineAll_AllToolsPresent(t *testing.T) {
	t.Parallel()

	env := newEnv(t, testutil.NewFakeRunner(), allTools())
	sel, err := DefineAll(context.Background(), env, Registry())
	if err != nil {
		t.Fatalf("DefineAll() error = %v", err)
	}
	if diff := cmp.Diff([]string{"native", "portable", "archive", "rpm"}, names(sel.Active)); diff != "" {
		t.Errorf("active strategies mismatch (-want +got):\n%s", diff)
	}
	pkg, ok := env.Graph.Lookup(PackageTarget)
	if !ok {
		t.Fatal("package target not registered")
	}
	if diff := cmp.Diff([]string{NativeTarget, PortableTarget, ArchiveTarget, RPMTarget}, pkg.Deps); diff != "" {
		t.Errorf("package deps mismatch (-want +got):\n%s", diff)
	}
	if err := env.Graph.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestDefineAll_MissingToolSkipsOnlyThatStrategy(t *testing.T) {
	t.Parallel()

	caps := toolexec.NewCapabilities(map[string]string{"tar": "/bin/tar"})
	env := newEnv(t, testutil.NewFakeRunner(), caps)

	sel, err := DefineAll(context.Background(), env, Registry())
	if err != nil {
		t.Fatalf("DefineAll() error = %v", err)
	}
	if diff := cmp.Diff([]string{"archive"}, names(sel.Active)); diff != "" {
		t.Errorf("active strategies mismatch (-want +got):\n%s", diff)
	}
	if len(sel.Skipped) != 3 {
		t.Fatalf("skipped = %+v, want 3 entries", sel.Skipped)
	}
	if !errors.Is(sel.Skipped[0].Reason, toolexec.ErrMissingTool) {
		t.Errorf("native skip reason = %v, want ErrMissingTool", sel.Skipped[0].Reason)
	}
	if _, ok := env.Graph.Lookup(NativeTarget); ok {
		t.Error("native-package registered without epm")
	}
	pkg, _ := env.Graph.Lookup(PackageTarget)
	if diff := cmp.Diff([]string{ArchiveTarget}, pkg.Deps); diff != "" {
		t.Errorf("package deps mismatch (-want +got):\n%s", diff)
	}
}

func TestDefineAll_RPMNeedsArchive(t *testing.T) {
	t.Parallel()

	env := newEnv(t, testutil.NewFakeRunner(), allTools())
	env.Settings.Disabled = []string{"archive"}

	sel, err := DefineAll(context.Background(), env, Registry())
	if err != nil {
		t.Fatalf("DefineAll() error = %v", err)
	}
	if diff := cmp.Diff([]string{"native", "portable"}, names(sel.Active)); diff != "" {
		t.Errorf("active strategies mismatch (-want +got):\n%s", diff)
	}
	rpmSkip := sel.Skipped[len(sel.Skipped)-1]
	if rpmSkip.Name != "rpm" || !errors.Is(rpmSkip.Reason, ErrUnavailable) {
		t.Errorf("rpm skip = %+v, want ErrUnavailable", rpmSkip)
	}
}

func TestDefineAll_RPMWithoutSpecFile(t *testing.T) {
	t.Parallel()

	env := newEnv(t, testutil.NewFakeRunner(), allTools())
	env.Settings.SpecFile = filepath.Join(env.Metadata.Root, "missing.spec")

	sel, err := DefineAll(context.Background(), env, Registry())
	if err != nil {
		t.Fatalf("DefineAll() error = %v", err)
	}
	if diff := cmp.Diff([]string{"native", "portable", "archive"}, names(sel.Active)); diff != "" {
		t.Errorf("active strategies mismatch (-want +got):\n%s", diff)
	}
}

func TestNativePackage_Run(t *testing.T) {
	t.Parallel()

	runner := epmListings()
	env := newEnv(t, runner, allTools())
	if _, err := DefineAll(context.Background(), env, Registry()); err != nil {
		t.Fatal(err)
	}

	if err := env.Graph.Run(context.Background(), NativeTarget); err != nil {
		t.Fatalf("Run(native-package) error = %v", err)
	}

	md := env.Metadata
	codeDir := md.CodeDir(context.Background())
	if got := testutil.MustReadFile(t, filepath.Join(codeDir, "lib", "tool.rb")); got != "TOOLVERSION = '1.0.0'\n" {
		t.Errorf("staged file content = %q", got)
	}

	listFile := filepath.Join(md.PackageDir, "tool-1.1.0-linux-native.list")
	lines := strings.Split(strings.TrimSuffix(testutil.MustReadFile(t, listFile), "\n"), "\n")
	wantTail := []string{
		"%version 1.1.0",
		"f 0755 0 0 /usr/bin/tool bin/tool",
		"f 0644 0 0 /usr/lib/tool/tool.rb lib/tool.rb",
	}
	if diff := cmp.Diff(wantTail, lines[len(lines)-3:]); diff != "" {
		t.Errorf("list file tail mismatch (-want +got):\n%s", diff)
	}

	wantCalls := []string{
		"mkepmlist --prefix /usr/bin " + filepath.Join(codeDir, "bin"),
		"mkepmlist --prefix /usr/lib/tool " + filepath.Join(codeDir, "lib"),
		"epm --output-dir " + filepath.Join(md.PackageDir, "epm", "linux") + " -f native tool " + listFile,
	}
	if diff := cmp.Diff(wantCalls, runner.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if info, err := os.Stat(OutputDir(md)); err != nil || !info.IsDir() {
		t.Errorf("output dir not created: %v", err)
	}
}

func epmListings() *testutil.FakeRunner {
	return testutil.NewFakeRunner().
		OnOutput("mkepmlist --prefix /usr/bin", "f 0755 luke luke /usr/bin/tool bin/tool\n").
		OnOutput("mkepmlist --prefix /usr/lib/tool", "f 0644 luke luke /usr/lib/tool/tool.rb lib/tool.rb\n")
}

func TestNativePackage_NewVersionRebuildsListFile(t *testing.T) {
	t.Parallel()

	first := newEnv(t, epmListings(), allTools())
	if _, err := DefineAll(context.Background(), first, Registry()); err != nil {
		t.Fatal(err)
	}
	if err := first.Graph.Run(context.Background(), NativeTarget); err != nil {
		t.Fatalf("first Run(native-package) error = %v", err)
	}

	runner := epmListings()
	second := envAt(first.Metadata.Root, "1.2.0", runner, allTools())
	if _, err := DefineAll(context.Background(), second, Registry()); err != nil {
		t.Fatal(err)
	}
	if err := second.Graph.Run(context.Background(), NativeTarget); err != nil {
		t.Fatalf("second Run(native-package) error = %v", err)
	}

	md := second.Metadata
	listFile := filepath.Join(md.PackageDir, "tool-1.2.0-linux-native.list")
	if got := testutil.MustReadFile(t, listFile); !strings.Contains(got, "%version 1.2.0\n") {
		t.Errorf("list file does not carry the new version:\n%s", got)
	}
	codeDir := md.CodeDir(context.Background())
	wantCalls := []string{
		"mkepmlist --prefix /usr/bin " + filepath.Join(codeDir, "bin"),
		"mkepmlist --prefix /usr/lib/tool " + filepath.Join(codeDir, "lib"),
		"epm --output-dir " + OutputDir(md) + " -f native tool " + listFile,
	}
	if diff := cmp.Diff(wantCalls, runner.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestRPMPackage_NewVersionRewritesSpecCopy(t *testing.T) {
	t.Parallel()

	writeTarball := testutil.Response{
		Effect: func(cmd toolexec.Command) error {
			return os.WriteFile(cmd.Args[1], []byte("tgz"), 0o644)
		},
	}
	caps := toolexec.NewCapabilities(map[string]string{"tar": "tar", "rpmbuild": "rpmbuild"})

	first := newEnv(t, testutil.NewFakeRunner().On("tar -czf", writeTarball), caps)
	if _, err := DefineAll(context.Background(), first, Registry()); err != nil {
		t.Fatal(err)
	}
	if err := first.Graph.Run(context.Background(), RPMTarget); err != nil {
		t.Fatalf("first Run(rpm-package) error = %v", err)
	}

	second := envAt(first.Metadata.Root, "1.2.0", testutil.NewFakeRunner().On("tar -czf", writeTarball), caps)
	if _, err := DefineAll(context.Background(), second, Registry()); err != nil {
		t.Fatal(err)
	}
	if err := second.Graph.Run(context.Background(), RPMTarget); err != nil {
		t.Fatalf("second Run(rpm-package) error = %v", err)
	}

	spec := testutil.MustReadFile(t, SpecPath(context.Background(), second.Metadata))
	if diff := cmp.Diff("Name: tool\nVersion: 1.2.0\nRelease: 1%{?dist}\n", spec); diff != "" {
		t.Errorf("spec mismatch (-want +got):\n%s", diff)
	}
}

func TestEPMArtifacts_SplitByFormat(t *testing.T) {
	t.Parallel()

	env := newEnv(t, testutil.NewFakeRunner(), allTools())
	outDir := OutputDir(env.Metadata)
	testutil.MustWriteFile(t, filepath.Join(outDir, "tool-1.1.0-linux-x86_64.rpm"), "rpm")
	testutil.MustWriteFile(t, filepath.Join(outDir, "tool-1.1.0-linux-x86_64.tar.gz"), "tgz")

	tests := []struct {
		strategy *EPM
		want     []string
	}{
		{NewNative(), []string{filepath.Join(outDir, "tool-1.1.0-linux-x86_64.rpm")}},
		{NewPortable(), []string{filepath.Join(outDir, "tool-1.1.0-linux-x86_64.tar.gz")}},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.Name(), func(t *testing.T) {
			t.Parallel()

			got, err := tt.strategy.Artifacts(context.Background(), env)
			if err != nil {
				t.Fatalf("Artifacts() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Artifacts() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNativePackage_EPMFailureNamesTarget(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner().OnExit("epm", 2, "epm: bad list file")
	env := newEnv(t, runner, allTools())
	if _, err := DefineAll(context.Background(), env, Registry()); err != nil {
		t.Fatal(err)
	}

	err := env.Graph.Run(context.Background(), PackageTarget)
	var actionErr *taskgraph.ActionError
	if !errors.As(err, &actionErr) || actionErr.Target != NativeTarget {
		t.Fatalf("expected ActionError for native-package, got %v", err)
	}
	var exitErr *toolexec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode != 2 {
		t.Errorf("expected ExitError with status 2, got %v", err)
	}
}

func TestArchiveAndRPM_Run(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner().On("tar -czf", testutil.Response{
		Effect: func(cmd toolexec.Command) error {
			return os.WriteFile(cmd.Args[1], []byte("tgz"), 0o644)
		},
	})
	env := newEnv(t, runner, toolexec.NewCapabilities(map[string]string{"tar": "tar", "rpmbuild": "rpmbuild"}))
	if _, err := DefineAll(context.Background(), env, Registry()); err != nil {
		t.Fatal(err)
	}

	if err := env.Graph.Run(context.Background(), RPMTarget); err != nil {
		t.Fatalf("Run(rpm-package) error = %v", err)
	}

	md := env.Metadata
	archiveManifest := testutil.MustReadFile(t, filepath.Join(md.PackageDir, "tool-1.1.0.manifest"))
	if diff := cmp.Diff("tool-1.1.0/README\ntool-1.1.0/bin/tool\ntool-1.1.0/lib/tool.rb\n", archiveManifest); diff != "" {
		t.Errorf("archive manifest mismatch (-want +got):\n%s", diff)
	}

	spec := testutil.MustReadFile(t, SpecPath(context.Background(), md))
	if diff := cmp.Diff("Name: tool\nVersion: 1.1.0\nRelease: 1%{?dist}\n", spec); diff != "" {
		t.Errorf("spec mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.MustReadFile(t, filepath.Join(TopDir(md), "SOURCES", "tool-1.1.0.tgz")); got != "tgz" {
		t.Errorf("tarball not copied into SOURCES: %q", got)
	}

	lines := runner.Lines()
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "tar -czf ") || !strings.HasPrefix(lines[1], "rpmbuild -ba --define _topdir ") {
		t.Errorf("unexpected commands: %v", lines)
	}

	archive := NewArchive()
	artifacts, err := archive.Artifacts(context.Background(), env)
	if err != nil || len(artifacts) != 1 || filepath.Base(artifacts[0]) != "tool-1.1.0.tgz" {
		t.Errorf("Artifacts() = %v, %v", artifacts, err)
	}
}

func TestRPMUpdateVersion_Idempotent(t *testing.T) {
	t.Parallel()

	env := newEnv(t, testutil.NewFakeRunner(), allTools())
	rpm := NewRPM()

	path, changed, err := rpm.UpdateVersion(context.Background(), env)
	if err != nil || !changed || path != env.Settings.SpecFile {
		t.Fatalf("first UpdateVersion() = %q, %v, %v", path, changed, err)
	}
	if _, changed, _ = rpm.UpdateVersion(context.Background(), env); changed {
		t.Error("second UpdateVersion() rewrote the spec")
	}
}

func TestRemotePackage_CollectsFailedHosts(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner().OnExit("ssh freebsd1", 255, "connection refused")
	env := newEnv(t, runner, allTools())
	env.Settings.PackageHosts = []string{"culain", "freebsd1"}
	env.Settings.RemoteDir = "src/tool"

	if _, err := DefineAll(context.Background(), env, Registry()); err != nil {
		t.Fatal(err)
	}
	err := env.Graph.Run(context.Background(), RemotePackageTarget)

	var hostsErr *toolexec.HostsFailedError
	if !errors.As(err, &hostsErr) {
		t.Fatalf("expected HostsFailedError, got %v", err)
	}
	if diff := cmp.Diff([]string{"freebsd1"}, hostsErr.Hosts); diff != "" {
		t.Errorf("failed hosts mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		"ssh culain cd src/tool && redlab run native-package",
		"ssh freebsd1 cd src/tool && redlab run native-package",
	}
	if diff := cmp.Diff(want, runner.Lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}
