// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidTargetName is the sentinel error wrapped by InvalidTargetNameError.
var ErrInvalidTargetName = errors.New("invalid target name")

type (
	// TargetName identifies a node in the build graph. Task targets use short
	// names ("package", "tag"); file targets use the path they produce.
	// A valid name is non-empty and contains no whitespace.
	TargetName string

	// InvalidTargetNameError is returned when a TargetName is empty or contains
	// whitespace.
	InvalidTargetNameError struct {
		Value TargetName
	}
)

// String returns the string representation of the TargetName.
func (n TargetName) String() string { return string(n) }

// IsValid returns whether the TargetName is valid.
func (n TargetName) IsValid() (bool, []error) {
	if n == "" || strings.IndexFunc(string(n), unicode.IsSpace) >= 0 {
		return false, []error{&InvalidTargetNameError{Value: n}}
	}
	return true, nil
}

// Error implements the error interface for InvalidTargetNameError.
func (e *InvalidTargetNameError) Error() string {
	return fmt.Sprintf("invalid target name %q: must be non-empty and contain no whitespace", e.Value)
}

// Unwrap returns ErrInvalidTargetName for errors.Is() compatibility.
func (e *InvalidTargetNameError) Unwrap() error { return ErrInvalidTargetName }
