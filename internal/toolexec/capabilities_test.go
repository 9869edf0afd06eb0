// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"errors"
	"os/exec"
	"slices"
	"testing"
)

func TestDetect_ProbesEachToolOnce(t *testing.T) {
	t.Parallel()

	probes := map[string]int{}
	lookPath := func(file string) (string, error) {
		probes[file]++
		if file == "epm" {
			return "/usr/bin/epm", nil
		}
		return "", exec.ErrNotFound
	}

	caps := Detect(lookPath, "epm", "mkepmlist", "epm")

	if !caps.Has("epm") || caps.Path("epm") != "/usr/bin/epm" {
		t.Errorf("expected epm at /usr/bin/epm, got %q", caps.Path("epm"))
	}
	if caps.Has("mkepmlist") {
		t.Error("mkepmlist should be absent")
	}
	if probes["epm"] != 1 {
		t.Errorf("epm probed %d times, want 1", probes["epm"])
	}
	if got := caps.Tools(); !slices.Equal(got, []string{"epm", "mkepmlist"}) {
		t.Errorf("Tools() = %v", got)
	}
}

func TestCapabilitiesRequire(t *testing.T) {
	t.Parallel()

	caps := NewCapabilities(map[string]string{"tar": "/bin/tar", "rpmbuild": ""})

	if err := caps.Require("tar"); err != nil {
		t.Errorf("Require(tar) = %v", err)
	}

	err := caps.Require("tar", "rpmbuild", "epm")
	if !errors.Is(err, ErrMissingTool) {
		t.Fatalf("expected ErrMissingTool, got %v", err)
	}
	var missing *MissingToolError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingToolError, got %T", err)
	}
	if !slices.Equal(missing.Tools, []string{"rpmbuild", "epm"}) {
		t.Errorf("Tools = %v", missing.Tools)
	}
}
