//go:build windows

package sockets

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func setIPv6Only(c syscall.RawConn, on bool) error {
	v := 0
	if on {
		v = 1
	}
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_IPV6, windows.IPV6_V6ONLY, v)
	})
	if err != nil {
		return err
	}
	return sockErr
}
