// SPDX-License-Identifier: MPL-2.0

package project

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/redlab/redlab/internal/testutil"
)

func newTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		testutil.MustWriteFile(t, filepath.Join(root, f), f)
	}
	return root
}

func TestBuildFileList_DedupAndExclude(t *testing.T) {
	t.Parallel()

	root := newTree(t,
		"README",
		"lib/puppet.rb",
		"lib/puppet/type.rb",
		"lib/.svn/entries",
		"bin/puppet",
		"notes.txt",
	)

	md := New("puppet", nil)
	md.Root = root
	md.Files = []string{"lib/**/*.rb", "[A-Z]*", "lib/puppet.rb", "bin/*"}

	got, err := md.BuildFileList()
	if err != nil {
		t.Fatalf("BuildFileList() error = %v", err)
	}
	want := []string{"lib/puppet.rb", "lib/puppet/type.rb", "README", "bin/puppet"}
	if !slices.Equal(got, want) {
		t.Errorf("BuildFileList() = %v, want %v", got, want)
	}
}

func TestBuildFileList_DefaultPatterns(t *testing.T) {
	t.Parallel()

	root := newTree(t, "install.rb", "CHANGELOG", "lib/a.rb", "test/.svn/x", "test/t.rb", "scratch/x")

	md := New("puppet", nil)
	md.Root = root

	got, err := md.BuildFileList()
	if err != nil {
		t.Fatalf("BuildFileList() error = %v", err)
	}
	want := []string{"install.rb", "CHANGELOG", "lib/a.rb", "test/t.rb"}
	if !slices.Equal(got, want) {
		t.Errorf("BuildFileList() = %v, want %v", got, want)
	}
}

func TestBuildFileList_Cached(t *testing.T) {
	t.Parallel()

	root := newTree(t, "lib/a.rb")
	md := New("puppet", nil)
	md.Root = root
	md.Files = []string{"lib/*.rb"}

	first, err := md.BuildFileList()
	if err != nil {
		t.Fatal(err)
	}
	testutil.MustWriteFile(t, filepath.Join(root, "lib/b.rb"), "")
	second, _ := md.BuildFileList()

	if !slices.Equal(first, second) {
		t.Errorf("file list changed between calls: %v vs %v", first, second)
	}

	// Mutating the returned slice must not leak into the cache.
	second[0] = "mutated"
	third, _ := md.BuildFileList()
	if third[0] != "lib/a.rb" {
		t.Errorf("cache was mutated through returned slice: %v", third)
	}
}

func TestBuildFileList_ExtraExcludes(t *testing.T) {
	t.Parallel()

	root := newTree(t, "lib/a.rb", "lib/a.rb~", "lib/tmp/scratch.rb")
	md := New("puppet", nil)
	md.Root = root
	md.Files = []string{"lib/**/*"}
	md.Excludes = []string{"**/*~", "lib/tmp/**"}

	got, err := md.BuildFileList()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"lib/a.rb"}) {
		t.Errorf("BuildFileList() = %v", got)
	}
}

func TestBuildFileList_InvalidPattern(t *testing.T) {
	t.Parallel()

	md := New("puppet", nil)
	md.Root = os.TempDir()
	md.Files = []string{"lib/[a"}

	if _, err := md.BuildFileList(); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
