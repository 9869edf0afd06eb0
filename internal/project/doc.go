// SPDX-License-Identifier: MPL-2.0

// Package project holds the metadata that describes a buildable project:
// identity strings, the distributable file set, dependency requirements and
// the release version.
//
// Derived attributes are resolved lazily and exactly once. The version comes
// from an explicit override, else from running the built artifact with
// --version, else the fallback "0.0.0"; once resolved it never changes for the
// life of the Metadata value. The file list is expanded from glob patterns on
// first use and cached.
package project
