// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package portutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParsePort resolves a numeric port or a service name ("http") to a port
// number. Port 0 is allowed and asks the kernel for an ephemeral port.
func ParsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("port string is empty")
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 65535 {
			return 0, fmt.Errorf("port out of range: %d", n)
		}
		return n, nil
	}

	n, err := net.LookupPort("tcp", s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	return n, nil
}

// DisplayAddr formats a listener address for humans, replacing the
// unspecified address with "*".
func DisplayAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		return net.JoinHostPort("*", strconv.Itoa(tcp.Port))
	}
	return tcp.String()
}
