// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv),
// directory and file operations (MustChdir, MustMkdirAll, MustWriteFile, Touch)
// and FakeRunner, a scripted stand-in for external tools.
package testutil
