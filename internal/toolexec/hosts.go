// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrHostsFailed is the sentinel wrapped by HostsFailedError.
var ErrHostsFailed = errors.New("command failed on one or more hosts")

type (
	// HostCommandFunc builds the command to run for one host.
	HostCommandFunc func(host string) Command

	// HostResultFunc observes each host's outcome. err is non-nil when the
	// command could not be started.
	HostResultFunc func(host string, res Result, err error)

	// HostsFailedError lists every host whose command failed.
	HostsFailedError struct {
		Hosts []string
	}
)

// RunOnHosts runs one command per host, sequentially and in order. Every host
// is attempted; if any fail, a *HostsFailedError naming all of them is
// returned after the last host. A cancelled context stops the fan-out.
func RunOnHosts(ctx context.Context, runner Runner, hosts []string, build HostCommandFunc, observe HostResultFunc) error {
	var failed []string
	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := runner.Run(ctx, build(host))
		if observe != nil {
			observe(host, res, err)
		}
		if err != nil || !res.Success() {
			failed = append(failed, host)
		}
	}
	if len(failed) > 0 {
		return &HostsFailedError{Hosts: failed}
	}
	return nil
}

// SplitHosts parses a comma or whitespace separated host list.
func SplitHosts(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func (e *HostsFailedError) Error() string {
	return fmt.Sprintf("failed on %d host(s): %s", len(e.Hosts), strings.Join(e.Hosts, ", "))
}

// Unwrap returns ErrHostsFailed for errors.Is() compatibility.
func (e *HostsFailedError) Unwrap() error { return ErrHostsFailed }
