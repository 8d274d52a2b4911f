// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package validation

import (
	"strings"
)

var (
	truthy = []string{"yes", "true", "enable", "enabled", "1", "on", "y", "t"}
	falsey = []string{"no", "false", "disable", "disabled", "0", "off", "n", "f"}
)

// ParseBool parses yes/no style values. The second result is false when
// the string is empty or not recognised.
func ParseBool(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false, false
	}

	for _, val := range truthy {
		if s == val {
			return true, true
		}
	}
	for _, val := range falsey {
		if s == val {
			return false, true
		}
	}

	return false, false
}

func IsTruthy(s string) bool {
	value, wasSet := ParseBool(s)
	return wasSet && value
}

func IsFalsey(s string) bool {
	value, wasSet := ParseBool(s)
	return wasSet && !value
}
