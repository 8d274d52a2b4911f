// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

//go:build windows

package privilege

import "errors"

func Drop(acc Account) error {
	return errors.New("dropping privileges is not supported on windows")
}
