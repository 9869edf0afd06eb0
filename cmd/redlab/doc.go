// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for redlab.
//
// This package implements the Cobra command hierarchy for the redlab CLI:
// running build and release targets, listing them, and creating or
// inspecting the project file.
package cmd
