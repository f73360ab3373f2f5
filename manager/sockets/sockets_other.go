//go:build !unix && !windows

package sockets

import "syscall"

func setIPv6Only(syscall.RawConn, bool) error { return nil }
