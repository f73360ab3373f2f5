//go:build !unix

package netops

var defaultCapabilities = Capabilities{}
