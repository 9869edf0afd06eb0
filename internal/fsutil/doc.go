// SPDX-License-Identifier: MPL-2.0

// Package fsutil holds the file operations shared by staging, packaging and
// publishing: mode-preserving copies and content digests.
package fsutil
