// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

//go:build linux

package listener

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/casjay-forks/beans/src/portutil"
)

// Bind listens on port on every local address with a backlog of exactly
// Backlog. An IPv6 socket that also accepts IPv4 is preferred; plain IPv4
// is used when the host has no IPv6.
func Bind(port string) (net.Listener, error) {
	p, err := portutil.ParsePort(port)
	if err != nil {
		return nil, err
	}

	ln, err := bindFamily(unix.AF_INET6, p)
	if errors.Is(err, unix.EAFNOSUPPORT) {
		ln, err = bindFamily(unix.AF_INET, p)
	}
	if err != nil {
		return nil, fmt.Errorf("bind port %s: %w", port, err)
	}

	return ln, nil
}

func bindFamily(family, port int) (net.Listener, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := setupSocket(fd, family, port); err != nil {
		unix.Close(fd)
		return nil, err
	}

	f := os.NewFile(uintptr(fd), "beans-listener")
	defer f.Close()

	return net.FileListener(f)
}

func setupSocket(fd, family, port int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}

	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
		sa = &unix.SockaddrInet6{Port: port}
	} else {
		sa = &unix.SockaddrInet4{Port: port}
	}

	if err := unix.Bind(fd, sa); err != nil {
		return os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, Backlog); err != nil {
		return os.NewSyscallError("listen", err)
	}

	return nil
}
