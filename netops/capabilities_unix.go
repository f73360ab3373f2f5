//go:build unix

package netops

var defaultCapabilities = Capabilities{Unix: true, UnixPacket: true}
