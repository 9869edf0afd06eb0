// SPDX-License-Identifier: MPL-2.0

// Package strategy defines the packaging backends and registers their
// targets into a build graph.
//
// Backends run in a fixed order: native EPM packages, portable EPM packages,
// a source archive, and an RPM built from that archive. Each one needs
// external tools; a backend whose tools were not detected at startup, or
// that the project disables, is skipped without affecting the others.
package strategy
