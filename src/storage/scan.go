// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package storage

import (
	"os"
	"strings"
)

type Stats struct {
	Count int64
	Bytes int64
}

// Scan counts the paste files in dir. Files that vanish while scanning are
// skipped.
func Scan(dir string) (Stats, error) {
	var st Stats

	entries, err := os.ReadDir(dir)
	if err != nil {
		return st, err
	}

	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		st.Count++
		st.Bytes += info.Size()
	}

	return st, nil
}
