// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidReleaseVersion is the sentinel error wrapped by InvalidReleaseVersionError.
var ErrInvalidReleaseVersion = errors.New("invalid release version")

type (
	// ReleaseVersion is a version string as handed to packaging tools
	// ("1.2.3", "0.22.4rc1"). The zero value means "not specified".
	ReleaseVersion string

	// InvalidReleaseVersionError is returned when a ReleaseVersion contains
	// whitespace or starts with something other than a digit.
	InvalidReleaseVersionError struct {
		Value ReleaseVersion
	}
)

// String returns the string representation of the ReleaseVersion.
func (v ReleaseVersion) String() string { return string(v) }

// IsValid returns whether the ReleaseVersion is usable. The zero value is valid.
func (v ReleaseVersion) IsValid() (bool, []error) {
	if v == "" {
		return true, nil
	}
	s := string(v)
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 || !unicode.IsDigit(rune(s[0])) {
		return false, []error{&InvalidReleaseVersionError{Value: v}}
	}
	return true, nil
}

// TagSuffix renders the version in the form used by release tags: every
// dot becomes an underscore ("1.2.3" -> "1_2_3").
func (v ReleaseVersion) TagSuffix() string {
	return strings.ReplaceAll(string(v), ".", "_")
}

// Error implements the error interface for InvalidReleaseVersionError.
func (e *InvalidReleaseVersionError) Error() string {
	return fmt.Sprintf("invalid release version %q: must start with a digit and contain no whitespace", e.Value)
}

// Unwrap returns ErrInvalidReleaseVersion for errors.Is() compatibility.
func (e *InvalidReleaseVersionError) Unwrap() error { return ErrInvalidReleaseVersion }
