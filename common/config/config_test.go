package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/OpenListTeam/wazero-netops/manager/resolver"
	"github.com/OpenListTeam/wazero-netops/netops"
)

const sample = `
log_level: debug
ipv6_only: false
permissions:
  allow_net: ["127.0.0.1", "example.com:443"]
  allow_read: ["/tmp/sockets"]
resolver:
  nameservers: ["127.0.0.1:5353"]
  timeout: 500ms
  cache_size: 64
  cache_ttl: 30s
transports:
  unixpacket: false
metrics:
  listen: ":9464"
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Equal(t, "debug", c.LogLevel)
	require.False(t, c.IPv6Only)
	require.Equal(t, []string{"127.0.0.1", "example.com:443"}, c.Permissions.AllowNet)
	require.Equal(t, 500*time.Millisecond, c.Resolver.Timeout)
	require.Equal(t, 64, c.Resolver.CacheSize)
	require.Equal(t, 30*time.Second, c.Resolver.CacheTTL)
	require.Nil(t, c.Transports.Unix)
	require.NotNil(t, c.Transports.UnixPacket)
	require.Equal(t, ":9464", c.Metrics.Listen)
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	c, err = Parse([]byte("permissions:\n  allow_all_net: true\n"))
	require.NoError(t, err)
	require.True(t, c.IPv6Only)
	require.Equal(t, "info", c.LogLevel)
	require.True(t, c.Permissions.AllowAllNet)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "listen_backlog: 5\n"},
		{"bad level", "log_level: loud\n"},
		{"bad duration", "resolver:\n  timeout: soon\n"},
		{"negative cache", "resolver:\n  cache_size: -1\n"},
		{"cache without ttl", "resolver:\n  cache_size: 8\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	path := filepath.Join(dir, "netops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	c, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", c.LogLevel)
}

func TestChecker(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	checker := c.Checker()

	require.NoError(t, checker.CheckNetwork("127.0.0.1", 80))
	require.NoError(t, checker.CheckNetwork("example.com", 443))
	require.ErrorIs(t, checker.CheckNetwork("example.com", 80), fs.ErrPermission)
	require.NoError(t, checker.CheckRead("/tmp/sockets/a.sock"))
	require.Error(t, checker.CheckRead("/etc/passwd"))
}

func TestNewResolver(t *testing.T) {
	c := Default()
	require.IsType(t, resolver.System{}, c.NewResolver())

	c.Resolver.Nameservers = []string{"127.0.0.1:53"}
	require.IsType(t, &resolver.DNS{}, c.NewResolver())

	c.Resolver.CacheSize = 4
	c.Resolver.CacheTTL = time.Minute
	require.IsType(t, &resolver.Cached{}, c.NewResolver())
}

func TestCapabilities(t *testing.T) {
	c := Default()
	require.Equal(t, netops.DefaultCapabilities(), c.Capabilities())

	off := false
	c.Transports.Unix = &off
	caps := c.Capabilities()
	require.False(t, caps.Unix)
	require.Equal(t, netops.DefaultCapabilities().UnixPacket, caps.UnixPacket)
}

func TestOptions(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	ops, err := netops.New(c.Options(zap.NewNop(), reg)...)
	require.NoError(t, err)
	defer ops.CloseAll()

	require.False(t, ops.Capabilities().UnixPacket)

	logger, err := c.NewLogger()
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zap.DebugLevel))
}
