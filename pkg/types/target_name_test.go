// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestTargetNameIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value TargetName
		want  bool
	}{
		{"task name", "package", true},
		{"file path", "pkg/redlab-linux-native.list", true},
		{"empty", "", false},
		{"space inside", "native package", false},
		{"trailing newline", "tag\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			valid, errs := tt.value.IsValid()
			if valid != tt.want {
				t.Fatalf("TargetName(%q).IsValid() = %v, want %v", tt.value, valid, tt.want)
			}
			if !valid && (len(errs) != 1 || !errors.Is(errs[0], ErrInvalidTargetName)) {
				t.Errorf("expected ErrInvalidTargetName, got %v", errs)
			}
		})
	}
}
