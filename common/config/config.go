// Package config loads the YAML configuration of a netops host.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/OpenListTeam/wazero-netops/manager/permissions"
	"github.com/OpenListTeam/wazero-netops/manager/resolver"
	"github.com/OpenListTeam/wazero-netops/manager/sockets"
	"github.com/OpenListTeam/wazero-netops/netops"
)

const defaultResolverTimeout = 2 * time.Second

// Config is the host configuration.
type Config struct {
	LogLevel    string      `yaml:"log_level"`
	IPv6Only    bool        `yaml:"ipv6_only"`
	Permissions Permissions `yaml:"permissions"`
	Resolver    Resolver    `yaml:"resolver"`
	Transports  Transports  `yaml:"transports"`
	Metrics     Metrics     `yaml:"metrics"`
}

type Permissions struct {
	AllowAllNet  bool     `yaml:"allow_all_net"`
	AllowNet     []string `yaml:"allow_net"`
	AllowAllRead bool     `yaml:"allow_all_read"`
	AllowRead    []string `yaml:"allow_read"`
}

// Resolver selects the name resolver. With no nameservers the system
// resolver is used; a positive CacheSize wraps it in an LRU cache.
type Resolver struct {
	Nameservers []string      `yaml:"nameservers"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// Transports overrides platform capabilities. Nil keeps the default.
type Transports struct {
	Unix       *bool `yaml:"unix"`
	UnixPacket *bool `yaml:"unixpacket"`
}

type Metrics struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		IPv6Only: true,
		Resolver: Resolver{Timeout: defaultResolverTimeout},
	}
}

// Load reads the file at path. A missing file yields Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Parse decodes b on top of Default.
func Parse(b []byte) (*Config, error) {
	return Read(bytes.NewReader(b))
}

// Read decodes r on top of Default. Unknown keys are rejected.
func Read(r io.Reader) (*Config, error) {
	c := Default()
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.Resolver.Timeout < 0 {
		return fmt.Errorf("config: resolver.timeout must not be negative")
	}
	if c.Resolver.CacheSize < 0 {
		return fmt.Errorf("config: resolver.cache_size must not be negative")
	}
	if c.Resolver.CacheSize > 0 && c.Resolver.CacheTTL <= 0 {
		return fmt.Errorf("config: resolver.cache_ttl must be positive when the cache is enabled")
	}
	return nil
}

// NewLogger builds a production zap logger at LogLevel.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}

// Checker builds the permission checker.
func (c *Config) Checker() permissions.Checker {
	var opts []permissions.AllowlistOption
	if c.Permissions.AllowAllNet {
		opts = append(opts, permissions.AllowAllNet())
	}
	if c.Permissions.AllowAllRead {
		opts = append(opts, permissions.AllowAllRead())
	}
	opts = append(opts,
		permissions.AllowNet(c.Permissions.AllowNet...),
		permissions.AllowRead(c.Permissions.AllowRead...),
	)
	return permissions.NewAllowlist(opts...)
}

// NewResolver builds the resolver chain.
func (c *Config) NewResolver() resolver.Resolver {
	var r resolver.Resolver = resolver.System{}
	if len(c.Resolver.Nameservers) > 0 {
		timeout := c.Resolver.Timeout
		if timeout == 0 {
			timeout = defaultResolverTimeout
		}
		r = resolver.NewDNS(c.Resolver.Nameservers, timeout)
	}
	if c.Resolver.CacheSize > 0 {
		r = resolver.NewCached(r, c.Resolver.CacheSize, c.Resolver.CacheTTL)
	}
	return r
}

// Capabilities applies the transport overrides to the platform defaults.
func (c *Config) Capabilities() netops.Capabilities {
	caps := netops.DefaultCapabilities()
	if c.Transports.Unix != nil {
		caps.Unix = *c.Transports.Unix
	}
	if c.Transports.UnixPacket != nil {
		caps.UnixPacket = *c.Transports.UnixPacket
	}
	return caps
}

// Options returns the netops options described by c. logger and reg may be
// nil.
func (c *Config) Options(logger *zap.Logger, reg prometheus.Registerer) []netops.Option {
	opts := []netops.Option{
		netops.WithPermissions(c.Checker()),
		netops.WithResolver(c.NewResolver()),
		netops.WithCapabilities(c.Capabilities()),
		netops.WithSocketOptions(sockets.Options{IPv6Only: c.IPv6Only}),
	}
	if logger != nil {
		opts = append(opts, netops.WithLogger(logger))
	}
	if reg != nil {
		opts = append(opts, netops.WithRegisterer(reg))
	}
	return opts
}
