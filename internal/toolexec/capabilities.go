// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// ErrMissingTool is the sentinel wrapped by MissingToolError.
var ErrMissingTool = errors.New("required tool not installed")

type (
	// LookPathFunc resolves an executable name to a path.
	LookPathFunc func(file string) (string, error)

	// Capabilities is the set of external tools detected at startup.
	// It is built once and passed to every component that gates behavior on a
	// tool being present; it is never re-probed during a run.
	Capabilities struct {
		paths map[string]string
	}

	// MissingToolError names the tools a component needed but did not find.
	MissingToolError struct {
		Tools []string
	}
)

// Detect probes each tool once with lookPath. A nil lookPath uses exec.LookPath.
func Detect(lookPath LookPathFunc, tools ...string) Capabilities {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	caps := Capabilities{paths: make(map[string]string, len(tools))}
	for _, tool := range tools {
		if _, seen := caps.paths[tool]; seen {
			continue
		}
		if path, err := lookPath(tool); err == nil {
			caps.paths[tool] = path
		} else {
			caps.paths[tool] = ""
		}
	}
	return caps
}

// NewCapabilities builds a Capabilities value from a fixed tool->path table.
// An empty path marks the tool as absent.
func NewCapabilities(paths map[string]string) Capabilities {
	caps := Capabilities{paths: make(map[string]string, len(paths))}
	for tool, path := range paths {
		caps.paths[tool] = path
	}
	return caps
}

// Has reports whether tool was found.
func (c Capabilities) Has(tool string) bool {
	return c.paths[tool] != ""
}

// Path returns the resolved path of tool, or "" when absent.
func (c Capabilities) Path(tool string) string {
	return c.paths[tool]
}

// Require returns a *MissingToolError listing every absent tool, or nil.
func (c Capabilities) Require(tools ...string) error {
	var missing []string
	for _, tool := range tools {
		if !c.Has(tool) {
			missing = append(missing, tool)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingToolError{Tools: missing}
}

// Tools lists every probed tool name in sorted order.
func (c Capabilities) Tools() []string {
	names := make([]string, 0, len(c.paths))
	for name := range c.paths {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Error implements the error interface for MissingToolError.
func (e *MissingToolError) Error() string {
	return fmt.Sprintf("required tool(s) not found on PATH: %s", strings.Join(e.Tools, ", "))
}

// Unwrap returns ErrMissingTool for errors.Is() compatibility.
func (e *MissingToolError) Unwrap() error { return ErrMissingTool }
