//go:build unix

package sockets

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func setIPv6Only(c syscall.RawConn, on bool) error {
	v := 0
	if on {
		v = 1
	}
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, v)
	})
	if err != nil {
		return err
	}
	return sockErr
}
