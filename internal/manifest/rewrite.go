// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultRelease is the RPM release written by RewriteSpec when none is given.
const DefaultRelease = "1%{?dist}"

var (
	specVersionLine = regexp.MustCompile(`^Version:`)
	specReleaseLine = regexp.MustCompile(`^Release:`)
)

// RewriteSpec copies an RPM spec from r to w, replacing the Version: and
// Release: lines. Every other line passes through unchanged and in order.
func RewriteSpec(r io.Reader, w io.Writer, version, release string) error {
	if release == "" {
		release = DefaultRelease
	}
	return rewriteLines(r, w, func(line string) string {
		switch {
		case specVersionLine.MatchString(line):
			return "Version: " + version
		case specReleaseLine.MatchString(line):
			return "Release: " + release
		default:
			return line
		}
	})
}

// RewriteSpecFile renders src through RewriteSpec into dst. src and dst may
// be the same path. dst is written only when its content would change; the
// result reports whether it was written.
func RewriteSpecFile(src, dst, version, release string) (bool, error) {
	in, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("read spec file: %w", err)
	}
	var out bytes.Buffer
	if err := RewriteSpec(bytes.NewReader(in), &out, version, release); err != nil {
		return false, fmt.Errorf("rewrite spec file %s: %w", src, err)
	}
	return writeIfChanged(dst, out.Bytes(), fileMode(src))
}

// RewriteVersionConst copies r to w, rewriting assignments of constName to
// version. Indentation and the quote style of the existing value are kept;
// unquoted values become double-quoted.
func RewriteVersionConst(r io.Reader, w io.Writer, constName, version string) error {
	assign := regexp.MustCompile(`^(\s*)` + regexp.QuoteMeta(constName) + `\s*=\s*(.?)`)
	return rewriteLines(r, w, func(line string) string {
		m := assign.FindStringSubmatch(line)
		if m == nil {
			return line
		}
		quote := `"`
		if m[2] == "'" {
			quote = "'"
		}
		return m[1] + constName + " = " + quote + version + quote
	})
}

// RewriteVersionFile rewrites constName in path to version. The file is left
// untouched when it already carries that version; the result reports whether
// it was written.
func RewriteVersionFile(path, constName, version string) (bool, error) {
	in, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read version file: %w", err)
	}
	var out bytes.Buffer
	if err := RewriteVersionConst(bytes.NewReader(in), &out, constName, version); err != nil {
		return false, fmt.Errorf("rewrite version file %s: %w", path, err)
	}
	return writeIfChanged(path, out.Bytes(), fileMode(path))
}

func rewriteLines(r io.Reader, w io.Writer, fn func(string) string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	bw := bufio.NewWriter(w)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if _, err := bw.WriteString(fn(line) + "\n"); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

func writeIfChanged(path string, content []byte, mode os.FileMode) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
