// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"

	"github.com/spf13/pflag"
)

// LoadOptions defines explicit project loading inputs.
type LoadOptions struct {
	// ProjectFile forces loading from a specific project file when set.
	ProjectFile string
	// Dir is searched for redlab.cue, then redlab.toml. Defaults to ".".
	Dir string
	// Flags supplies the command-line overrides named in FlagKeys.
	Flags *pflag.FlagSet
}

// Provider loads project settings from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Project, error)
}

type fileProvider struct{}

// NewProvider creates a project provider backed by project files.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads the project from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Project, error) {
	return loadWithOptions(ctx, opts)
}
