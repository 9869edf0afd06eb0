// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode"

	"github.com/redlab/redlab/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-viper/mapstructure/v2"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "redlab"
	// ProjectFileName is the name of the project file (without extension).
	ProjectFileName = "redlab"
	// ExtCUE is the extension of CUE project files.
	ExtCUE = "cue"
	// ExtTOML is the extension of TOML project files.
	ExtTOML = "toml"

	// EnvVersion overrides release.version.
	EnvVersion = "REL"
	// EnvReuse overrides release.reuse.
	EnvReuse = "REUSE"
	// EnvTestMode overrides release.test_mode. Any value other than
	// "", "0", "false", "no" and "off" enables test mode.
	EnvTestMode = "RELTEST"
	// EnvTestHosts overrides test_hosts with a comma or space separated list.
	EnvTestHosts = "TESTHOSTS"
)

// ErrProjectFileNotFound is returned when no project file can be located.
var ErrProjectFileNotFound = errors.New("project file not found")

//go:embed project_schema.cue
var projectSchema string

// FlagKeys maps command-line flag names to the project keys they override.
var FlagKeys = map[string]string{
	"rel":       "release.version",
	"reuse":     "release.reuse",
	"test-mode": "release.test_mode",
	"hosts":     "test_hosts",
}

var envKeys = map[string]string{
	"release.version":   EnvVersion,
	"release.reuse":     EnvReuse,
	"release.test_mode": EnvTestMode,
	"test_hosts":        EnvTestHosts,
}

// loadWithOptions locates the project file, layers it over the defaults,
// applies environment and flag overrides and validates the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Project, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load project canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultProject())

	path, err := resolveProjectFile(opts)
	if err != nil {
		return nil, err
	}

	var loadErr error
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case ExtCUE:
		loadErr = loadCUEIntoViper(v, path)
	case ExtTOML:
		loadErr = loadTOMLIntoViper(v, path)
	default:
		loadErr = fmt.Errorf("unsupported project file extension %q", filepath.Ext(path))
	}
	if loadErr != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load project").
			WithResource(path).
			WithSuggestion("Check that the file contains valid " + strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), ".")) + " syntax").
			WithSuggestion("Verify the project fields match the expected schema").
			WithSuggestion("Use 'redlab init' to generate a starting project file").
			WithIssue(issue.ProjectFileInvalidId).
			Wrap(loadErr).
			BuildError()
	}

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if err := bindFlags(v, opts.Flags); err != nil {
		return nil, err
	}

	var p Project
	if err := v.Unmarshal(&p, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		truthyStringHook,
		listStringHook,
	))); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse project").
			WithResource(path).
			WithSuggestion("Check the values of " + EnvVersion + ", " + EnvReuse + ", " + EnvTestMode + " and " + EnvTestHosts + " and of the run flags").
			WithIssue(issue.ProjectFileInvalidId).
			Wrap(err).
			BuildError()
	}
	p.File = path
	p.Root = filepath.Dir(path)

	if err := p.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate project").
			WithResource(path).
			WithSuggestion("Fix the fields listed above").
			WithSuggestion("Run 'redlab config show' to see the merged project settings").
			WithIssue(issue.ProjectFileInvalidId).
			Wrap(err).
			BuildError()
	}

	return &p, nil
}

// setDefaults registers every non-zero default so that partial project
// files merge over them key by key.
func setDefaults(v *viper.Viper, d *Project) {
	v.SetDefault("license", d.License)
	v.SetDefault("readme", d.Readme)
	v.SetDefault("package_dir", d.PackageDir)
	v.SetDefault("packaging.native", d.Packaging.Native)
	v.SetDefault("packaging.portable", d.Packaging.Portable)
	v.SetDefault("packaging.archive", d.Packaging.Archive)
	v.SetDefault("packaging.rpm", d.Packaging.RPM)
	v.SetDefault("rpm_release", d.RPMRelease)
	rules := make(map[string]any, len(d.OwnerRules))
	for user, uid := range d.OwnerRules {
		rules[user] = uid
	}
	v.SetDefault("owner_rules", rules)
	v.SetDefault("default_target", d.DefaultTarget)
	v.SetDefault("release.test_mode", d.Release.TestMode)
}

// bindFlags binds the flags named in FlagKeys that exist in fs. A bound
// flag only wins over the project file and environment when it was set.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// resolveProjectFile returns the absolute path of the project file: the
// explicit ProjectFile when set, otherwise redlab.cue or redlab.toml in Dir.
func resolveProjectFile(opts LoadOptions) (string, error) {
	if opts.ProjectFile != "" {
		if !fileExists(opts.ProjectFile) {
			return "", issue.NewErrorContext().
				WithOperation("load project").
				WithResource(opts.ProjectFile).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ProjectFileNotFoundId).
				Wrap(fmt.Errorf("%w: %s", ErrProjectFileNotFound, opts.ProjectFile)).
				BuildError()
		}
		return filepath.Abs(opts.ProjectFile)
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	for _, ext := range []string{ExtCUE, ExtTOML} {
		candidate := filepath.Join(dir, ProjectFileName+"."+ext)
		if fileExists(candidate) {
			return filepath.Abs(candidate)
		}
	}

	return "", issue.NewErrorContext().
		WithOperation("load project").
		WithResource(dir).
		WithSuggestion("Run redlab from the project's top directory").
		WithSuggestion("Create a project file with 'redlab init'").
		WithIssue(issue.ProjectFileNotFoundId).
		Wrap(fmt.Errorf("%w: no %s.%s or %s.%s in %s", ErrProjectFileNotFound,
			ProjectFileName, ExtCUE, ProjectFileName, ExtTOML, dir)).
		BuildError()
}

// loadCUEIntoViper parses a CUE project file, validates it against the
// #Project schema and merges it into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read project file: %w", err)
	}
	if err := checkFileSize(data, maxProjectFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	return mergeValidated(v, ctx, userValue, path)
}

// loadTOMLIntoViper decodes a TOML project file and validates the decoded
// tree against the same #Project schema as CUE files.
func loadTOMLIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read project file: %w", err)
	}
	if err := checkFileSize(data, maxProjectFileSize, path); err != nil {
		return err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ctx := cuecontext.New()
	userValue := ctx.Encode(raw)
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	return mergeValidated(v, ctx, userValue, path)
}

func mergeValidated(v *viper.Viper, ctx *cue.Context, userValue cue.Value, path string) error {
	schemaValue := ctx.CompileString(projectSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile project schema: %w", schemaValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Project"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var projectMap map[string]any
	if err := unified.Decode(&projectMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(projectMap); err != nil {
		return fmt.Errorf("failed to merge project: %w", err)
	}
	return nil
}

// truthyStringHook decodes strings into bools the way RELTEST is read:
// anything but an explicit false value is true.
func truthyStringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(data.(string))) {
	case "", "0", "false", "no", "off":
		return false, nil
	default:
		return true, nil
	}
}

// listStringHook splits strings into lists on commas and whitespace, as
// TESTHOSTS and --hosts are written.
func listStringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return strings.FieldsFunc(data.(string), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	}), nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
