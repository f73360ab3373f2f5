// Package permissions decides whether a guest may reach a network endpoint
// or a filesystem path. Checks are evaluated on every call.
package permissions

import (
	"fmt"
	"io/fs"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Checker is consulted before any socket is bound or dialed.
type Checker interface {
	CheckNetwork(host string, port uint16) error
	CheckRead(path string) error
}

// Error is a permission denial.
type Error struct {
	Scope    string // "net" or "read"
	Resource string
}

func (e *Error) Error() string {
	return fmt.Sprintf("requires %s access to %q", e.Scope, e.Resource)
}

func (e *Error) Is(target error) bool {
	return target == fs.ErrPermission
}

// Allowlist grants access to listed hosts and path prefixes.
type Allowlist struct {
	mu           sync.RWMutex
	allowAllNet  bool
	allowAllRead bool
	hosts        map[string]bool
	hostPorts    map[string]bool
	readPaths    []string
}

// AllowlistOption configures an Allowlist.
type AllowlistOption func(*Allowlist)

// AllowAllNet grants every network check.
func AllowAllNet() AllowlistOption {
	return func(a *Allowlist) { a.allowAllNet = true }
}

// AllowAllRead grants every read check.
func AllowAllRead() AllowlistOption {
	return func(a *Allowlist) { a.allowAllRead = true }
}

// AllowNet adds "host" or "host:port" entries.
func AllowNet(entries ...string) AllowlistOption {
	return func(a *Allowlist) {
		for _, e := range entries {
			a.addNet(e)
		}
	}
}

// AllowRead adds path prefixes. Relative entries are made absolute.
func AllowRead(paths ...string) AllowlistOption {
	return func(a *Allowlist) {
		for _, p := range paths {
			a.addRead(p)
		}
	}
}

func NewAllowlist(opts ...AllowlistOption) *Allowlist {
	a := &Allowlist{
		hosts:     make(map[string]bool),
		hostPorts: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Allowlist) addNet(entry string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if host, port, err := net.SplitHostPort(entry); err == nil {
		a.hostPorts[net.JoinHostPort(normalizeHost(host), port)] = true
		return
	}
	a.hosts[normalizeHost(entry)] = true
}

func (a *Allowlist) addRead(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	a.mu.Lock()
	a.readPaths = append(a.readPaths, abs)
	a.mu.Unlock()
}

func (a *Allowlist) CheckNetwork(host string, port uint16) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.allowAllNet {
		return nil
	}
	h := normalizeHost(host)
	if a.hosts[h] || a.hostPorts[net.JoinHostPort(h, strconv.Itoa(int(port)))] {
		return nil
	}
	return &Error{Scope: "net", Resource: net.JoinHostPort(host, strconv.Itoa(int(port)))}
}

func (a *Allowlist) CheckRead(path string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.allowAllRead {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return &Error{Scope: "read", Resource: path}
	}
	for _, allowed := range a.readPaths {
		if isWithin(allowed, abs) {
			return nil
		}
	}
	return &Error{Scope: "read", Resource: path}
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(strings.Trim(host, "[]"), "."))
}

// isWithin compares element-wise, so "/tmp" does not cover "/tmpfoo".
func isWithin(root, path string) bool {
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// AllowAll grants everything.
type AllowAll struct{}

func (AllowAll) CheckNetwork(string, uint16) error { return nil }
func (AllowAll) CheckRead(string) error            { return nil }

// DenyAll rejects everything.
type DenyAll struct{}

func (DenyAll) CheckNetwork(host string, port uint16) error {
	return &Error{Scope: "net", Resource: net.JoinHostPort(host, strconv.Itoa(int(port)))}
}

func (DenyAll) CheckRead(path string) error {
	return &Error{Scope: "read", Resource: path}
}
