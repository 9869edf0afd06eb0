// SPDX-License-Identifier: MPL-2.0

// Package toolexec is the boundary between the build graph and the external
// binaries it drives (packagers, listers, archivers, version control, ssh).
//
// Everything outside this package talks to tools through the Runner interface:
// run a command synchronously, capture stdout and stderr, report the exit
// status. The production implementation wraps os/exec; tests substitute a
// scripted fake. Capabilities records which tools were found on PATH when the
// process started so that optional packaging backends can be gated once.
package toolexec
