// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

//go:build !linux

package listener

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/casjay-forks/beans/src/portutil"
)

// Bind listens on port on every local address. The backlog is left to the
// runtime on this platform.
func Bind(port string) (net.Listener, error) {
	p, err := portutil.ParsePort(port)
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort("", strconv.Itoa(p)))
	if err != nil {
		return nil, fmt.Errorf("bind port %s: %w", port, err)
	}

	return ln, nil
}
