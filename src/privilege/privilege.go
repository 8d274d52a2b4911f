// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

// Package privilege switches the process to an unprivileged account once
// the listening socket is bound.
package privilege

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

// Account is the user and group the process runs as after Drop.
type Account struct {
	Name string
	UID  int
	GID  int
}

// Lookup resolves "user", "user:group", "uid" or "uid:gid". Without a
// group the user's primary group is used.
func Lookup(spec string) (Account, error) {
	name, group, hasGroup := strings.Cut(strings.TrimSpace(spec), ":")
	if name == "" {
		return Account{}, fmt.Errorf("empty user")
	}

	u, err := lookupUser(name)
	if err != nil {
		return Account{}, err
	}

	acc := Account{Name: u.Username}
	if acc.UID, err = strconv.Atoi(u.Uid); err != nil {
		return Account{}, fmt.Errorf("user %s: non-numeric uid %q", name, u.Uid)
	}

	gid := u.Gid
	if hasGroup {
		if gid, err = lookupGroup(group); err != nil {
			return Account{}, err
		}
	}
	if acc.GID, err = strconv.Atoi(gid); err != nil {
		return Account{}, fmt.Errorf("user %s: non-numeric gid %q", name, gid)
	}

	return acc, nil
}

func lookupUser(name string) (*user.User, error) {
	if _, err := strconv.Atoi(name); err == nil {
		u, err := user.LookupId(name)
		if err == nil {
			return u, nil
		}
		// Numeric IDs need not exist in the user database.
		return &user.User{Username: name, Uid: name, Gid: name}, nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", name, err)
	}
	return u, nil
}

func lookupGroup(name string) (string, error) {
	if _, err := strconv.Atoi(name); err == nil {
		return name, nil
	}

	g, err := user.LookupGroup(name)
	if err != nil {
		return "", fmt.Errorf("lookup group %s: %w", name, err)
	}
	return g.Gid, nil
}
