// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/redlab/redlab/internal/project"
	"github.com/redlab/redlab/internal/toolexec"
	"github.com/redlab/redlab/pkg/types"

	"github.com/charmbracelet/log"
)

// RequiresDirective is the header directive emitted once per requirement.
const RequiresDirective = "requires"

// ErrListingFailed is the sentinel wrapped by ListingError.
var ErrListingFailed = errors.New("directory listing failed")

// HeaderKeys are the header directives in their fixed rendering order.
// Every key is always rendered, even when its value is empty.
var HeaderKeys = []string{"product", "copyright", "vendor", "license", "readme", "description", "version"}

type (
	// ListCommandFunc builds the lister invocation for one directory entry.
	ListCommandFunc func(entry project.DirectoryEntry) toolexec.Command

	// Option configures a Builder.
	Option func(*Builder)

	// Builder renders manifest headers and assembles manifests from
	// directory listings. Headers are memoized per Metadata.
	Builder struct {
		runner      toolexec.Runner
		listCommand ListCommandFunc
		owners      map[string]string
		logger      *log.Logger
		headers     map[*project.Metadata][]string
	}

	// Manifest is a rendered header plus the merged listing lines.
	Manifest struct {
		Header []string
		Lines  []string
		// Warnings holds one *ListingError per directory entry whose listing
		// failed. Such entries contribute no lines.
		Warnings []error
	}

	// ListingError reports a directory listing that failed to run or exited
	// non-zero.
	ListingError struct {
		Entry    project.DirectoryEntry
		Command  string
		ExitCode types.ExitCode
		Stderr   string
		Err      error
	}
)

// DefaultOwnerRules maps the owner name the lister records on the build
// machine to the portable numeric owner.
func DefaultOwnerRules() map[string]string {
	return map[string]string{"luke": "0"}
}

// DefaultListCommand runs "mkepmlist --prefix <prefix> <source>".
func DefaultListCommand(entry project.DirectoryEntry) toolexec.Command {
	return toolexec.Command{
		Name: "mkepmlist",
		Args: []string{"--prefix", entry.Prefix, entry.Source},
	}
}

// WithListCommand replaces the lister invocation.
func WithListCommand(fn ListCommandFunc) Option {
	return func(b *Builder) {
		b.listCommand = fn
	}
}

// WithOwnerRules replaces the owner normalization rules. A nil or empty map
// disables normalization.
func WithOwnerRules(rules map[string]string) Option {
	return func(b *Builder) {
		b.owners = rules
	}
}

// WithLogger sets the logger used for listing warnings.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a Builder that runs listers through runner.
func NewBuilder(runner toolexec.Runner, opts ...Option) *Builder {
	b := &Builder{
		runner:      runner,
		listCommand: DefaultListCommand,
		owners:      DefaultOwnerRules(),
		headers:     make(map[*project.Metadata][]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.New(io.Discard)
	}
	return b
}

// Header renders the manifest header for md. The first call resolves the
// project version; later calls for the same Metadata return the same lines.
func (b *Builder) Header(ctx context.Context, md *project.Metadata) []string {
	if lines, ok := b.headers[md]; ok {
		return slices.Clone(lines)
	}

	values := map[string]string{
		"product":     md.Product,
		"copyright":   md.Copyright,
		"vendor":      md.Vendor,
		"license":     md.License,
		"readme":      md.Readme,
		"description": md.Description,
		"version":     md.ResolveVersion(ctx),
	}
	lines := make([]string, 0, len(HeaderKeys)+len(md.Requires()))
	for _, key := range HeaderKeys {
		lines = append(lines, directive(key, values[key]))
	}
	for _, req := range md.Requires() {
		lines = append(lines, directive(RequiresDirective, strings.TrimSpace(req.Name+" "+req.Constraint)))
	}

	b.headers[md] = lines
	return slices.Clone(lines)
}

// Build renders the header and appends the listing of each entry in order.
// Listing lines are owner-normalized; blank lines, lines re-declaring a
// header directive and repeated lines are dropped. A failed listing is
// recorded in Manifest.Warnings and contributes nothing.
func (b *Builder) Build(ctx context.Context, md *project.Metadata, entries []project.DirectoryEntry) *Manifest {
	m := &Manifest{Header: b.Header(ctx, md)}
	seen := make(map[string]bool)

	for _, entry := range entries {
		listing, err := b.list(ctx, entry)
		if err != nil {
			b.logger.Warn("directory listing failed; contributing no files",
				"source", entry.Source, "prefix", entry.Prefix, "error", err)
			m.Warnings = append(m.Warnings, err)
			continue
		}
		for _, line := range strings.Split(listing, "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			line = normalizeOwners(line, b.owners)
			if isHeaderDirective(line) || seen[line] {
				continue
			}
			seen[line] = true
			m.Lines = append(m.Lines, line)
		}
	}
	return m
}

func (b *Builder) list(ctx context.Context, entry project.DirectoryEntry) (string, error) {
	cmd := b.listCommand(entry)
	b.logger.Info("listing directory", "command", cmd.String())

	res, err := b.runner.Run(ctx, cmd)
	if err != nil {
		return "", &ListingError{Entry: entry, Command: cmd.String(), Err: err}
	}
	if !res.Success() {
		return "", &ListingError{Entry: entry, Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res.Stdout, nil
}

// String renders the manifest as newline-terminated lines.
func (m *Manifest) String() string {
	var sb strings.Builder
	for _, line := range m.Header {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	for _, line := range m.Lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteFile writes the rendered manifest to path, creating parent directories.
func (m *Manifest) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(m.String()), 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

func (e *ListingError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("list %s (prefix %s): %v", e.Entry.Source, e.Entry.Prefix, e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("list %s (prefix %s): exit status %d: %s",
			e.Entry.Source, e.Entry.Prefix, e.ExitCode, strings.TrimSpace(e.Stderr))
	default:
		return fmt.Sprintf("list %s (prefix %s): exit status %d", e.Entry.Source, e.Entry.Prefix, e.ExitCode)
	}
}

// Unwrap returns ErrListingFailed for errors.Is() compatibility.
func (e *ListingError) Unwrap() error { return ErrListingFailed }

func directive(key, value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return "%" + key
	}
	return "%" + key + " " + value
}

func isHeaderDirective(line string) bool {
	word, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	if !strings.HasPrefix(word, "%") {
		return false
	}
	key := strings.TrimPrefix(word, "%")
	if key == RequiresDirective {
		return true
	}
	return slices.Contains(HeaderKeys, key)
}

// normalizeOwners replaces whole whitespace-separated tokens found in rules,
// leaving the separators untouched.
func normalizeOwners(line string, rules map[string]string) string {
	if len(rules) == 0 {
		return line
	}
	var sb strings.Builder
	sb.Grow(len(line))
	start := -1
	emit := func(word string) {
		if repl, ok := rules[word]; ok {
			sb.WriteString(repl)
			return
		}
		sb.WriteString(word)
	}
	for i, r := range line {
		if unicode.IsSpace(r) {
			if start >= 0 {
				emit(line[start:i])
				start = -1
			}
			sb.WriteRune(r)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		emit(line[start:])
	}
	return sb.String()
}
