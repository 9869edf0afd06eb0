// SPDX-License-Identifier: MPL-2.0

// Package types defines small validated value types shared by the build
// packages: target names, release versions and process exit codes.
//
// This package is a leaf dependency: it imports only the standard library.
package types
