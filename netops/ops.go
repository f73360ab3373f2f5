// Package netops exposes TCP, UDP and Unix-domain sockets to a sandboxed
// caller through a handle table. Every resource is addressed by a rid; the
// caller never sees a file descriptor or a Go object.
package netops

import (
	"errors"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/OpenListTeam/wazero-netops/manager/permissions"
	"github.com/OpenListTeam/wazero-netops/manager/resolver"
	"github.com/OpenListTeam/wazero-netops/manager/resource"
	"github.com/OpenListTeam/wazero-netops/manager/sockets"
)

// Rid identifies a resource owned by an Ops instance.
type Rid = resource.Rid

// SocketAddr is the local or remote address reported to the caller.
type SocketAddr = sockets.SocketAddr

// ShutdownMode selects the stream direction to close: 0 = read, 1 = write.
type ShutdownMode = sockets.ShutdownMode

const (
	ShutdownRead  = sockets.ShutdownRead
	ShutdownWrite = sockets.ShutdownWrite
)

// Ops holds the resource table of one sandbox instance and serves the
// socket verbs against it. It is safe for concurrent use.
type Ops struct {
	table    *resource.Table
	perms    permissions.Checker
	resolver resolver.Resolver
	caps     Capabilities
	sockopts sockets.Options
	log      *zap.Logger

	registerer prometheus.Registerer
	metrics    *metrics
}

// Option configures an Ops.
type Option func(*Ops)

// WithPermissions sets the permission checker. The default denies
// everything.
func WithPermissions(c permissions.Checker) Option {
	return func(o *Ops) { o.perms = c }
}

// WithResolver sets the hostname resolver. The default is the Go resolver.
func WithResolver(r resolver.Resolver) Option {
	return func(o *Ops) { o.resolver = r }
}

// WithCapabilities overrides the platform transport capabilities.
func WithCapabilities(c Capabilities) Option {
	return func(o *Ops) { o.caps = c }
}

// WithSocketOptions sets options applied to every socket before bind or
// connect.
func WithSocketOptions(so sockets.Options) Option {
	return func(o *Ops) { o.sockopts = so }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Ops) { o.log = l }
}

// WithRegisterer registers the operation metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Ops) { o.registerer = r }
}

func New(opts ...Option) (*Ops, error) {
	o := &Ops{
		table:    resource.NewTable(),
		perms:    permissions.DenyAll{},
		resolver: resolver.System{},
		caps:     DefaultCapabilities(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = Logger()
	}
	o.metrics = newMetrics(o)
	if o.registerer != nil {
		if err := o.metrics.register(o.registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return o, nil
}

// Capabilities reports the transports this instance serves.
func (o *Ops) Capabilities() Capabilities { return o.caps }

// add inserts r into the table. When the table is torn down or out of rids
// the socket is closed so it does not outlive its handle.
func (o *Ops) add(op string, t Transport, r resource.Resource) (Rid, error) {
	rid, err := o.table.Add(r)
	if err != nil {
		if cerr := r.Close(); cerr != nil {
			o.log.Warn("close orphaned socket", zap.String("op", op), zap.Error(cerr))
		}
		return 0, newError(KindBadResource, op, t, "", err)
	}
	return rid, nil
}

// Close removes rid from the table and closes it. Closing a listener wakes
// any accept parked on it.
func (o *Ops) Close(rid Rid) (err error) {
	defer func() { o.metrics.observe(opClose, "", err) }()

	r, ok := o.table.Remove(rid)
	if !ok {
		return badResource(opClose, "", "bad resource id")
	}
	o.log.Debug("close resource", zap.Uint32("rid", rid), zap.String("kind", r.Name()))
	if cerr := r.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		return classify(opClose, "", "", cerr)
	}
	return nil
}

// Resources returns a snapshot of the open rids and their kinds.
func (o *Ops) Resources() map[Rid]string {
	out := make(map[Rid]string, o.table.Len())
	o.table.Range(func(rid resource.Rid, r resource.Resource) bool {
		out[rid] = r.Name()
		return true
	})
	return out
}

// CloseAll tears down every resource and wakes all parked accepts.
// Verbs that allocate resources fail afterwards.
func (o *Ops) CloseAll() error {
	err := o.table.Close()
	if err != nil {
		o.log.Warn("table teardown", zap.Error(err))
	}
	return err
}
