// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

//go:build !windows

package privilege

import (
	"fmt"
	"os"
	"syscall"
)

// Drop switches every thread of the process to acc. It does nothing when
// not running as root.
func Drop(acc Account) error {
	if os.Geteuid() != 0 {
		return nil
	}

	// The syscall package applies these to all threads, not just the caller.
	// Groups first, while we still may
	if err := syscall.Setgroups([]int{acc.GID}); err != nil {
		return fmt.Errorf("failed to set groups: %w", err)
	}
	if err := syscall.Setgid(acc.GID); err != nil {
		return fmt.Errorf("failed to set GID %d: %w", acc.GID, err)
	}
	if err := syscall.Setuid(acc.UID); err != nil {
		return fmt.Errorf("failed to set UID %d: %w", acc.UID, err)
	}

	return nil
}
