// SPDX-License-Identifier: MPL-2.0

// Package config loads redlab project files.
//
// A project is described by redlab.cue or redlab.toml in the project's top
// directory. Both formats are validated against the embedded #Project CUE
// schema and merged over built-in defaults with Viper. The release inputs
// can be overridden by the REL, REUSE, RELTEST and TESTHOSTS environment
// variables and by the matching command-line flags, in that order of
// increasing precedence.
package config
