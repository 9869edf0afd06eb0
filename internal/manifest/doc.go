// SPDX-License-Identifier: MPL-2.0

// Package manifest renders packaging manifests (EPM list files) and rewrites
// the version-bearing files a release touches.
//
// A manifest is a fixed block of "%directive value" header lines followed by
// the file listings of each staged directory, as produced by an external
// lister. Listing failures degrade to an empty contribution plus a warning.
package manifest
