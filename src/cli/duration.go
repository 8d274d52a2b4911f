// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package cli

import (
	"errors"
	"strconv"
	"time"
)

// ParseDuration parses durations such as "30s", "10m" or "1h 1d".
// An empty string and "0" both mean zero.
func ParseDuration(s string) (time.Duration, error) {
	var out int64

	var tmp string
	for _, c := range s {
		if c == ' ' {
			continue
		}

		if '0' <= c && c <= '9' {
			tmp += string(c)
			continue
		}

		val, err := strconv.ParseInt(tmp, 10, 64)
		if err != nil {
			return 0, errors.New("invalid format \"" + s + "\"")
		}

		switch c {
		case 's':
			out += val
		case 'm':
			out += val * 60
		case 'h':
			out += val * 60 * 60
		case 'd':
			out += val * 60 * 60 * 24
		case 'w':
			out += val * 60 * 60 * 24 * 7
		default:
			return 0, errors.New("invalid format \"" + s + "\"")
		}

		tmp = ""
	}

	// Bare "0"
	if tmp != "" {
		val, err := strconv.ParseInt(tmp, 10, 64)
		if err != nil || val != 0 {
			return 0, errors.New("invalid format \"" + s + "\": missing unit")
		}
	}

	return time.Duration(out) * time.Second, nil
}
