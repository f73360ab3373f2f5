// Package wasmhost exports the socket verbs of a netops.Ops to a wazero
// guest as the "netops" host module.
//
// Every export has the signature
//
//	(args_ptr, args_len, buf_ptr, buf_len, out_ptr, out_cap i32) -> i32
//
// args is the JSON request, buf the payload (send, write) or destination
// (receive, read), and out receives the JSON envelope {"ok":...} or
// {"err":{"kind":...,"message":...}}. The result is the envelope length, the
// negated required length when out_cap is too small, or -1 when a pointer is
// out of bounds.
package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/OpenListTeam/wazero-netops/common/bytespool"
	"github.com/OpenListTeam/wazero-netops/netops"
)

// ModuleName is the import module guests link against.
const ModuleName = "netops"

// Exported operations, in export order. Each is exported as "op_<name>".
var Operations = []string{
	netops.OpListen,
	netops.OpAccept,
	netops.OpConnect,
	netops.OpSend,
	netops.OpReceive,
	netops.OpShutdown,
	netops.OpClose,
	netops.OpRead,
	netops.OpWrite,
	netops.OpResources,
}

const errBounds int32 = -1

var (
	paramTypes = []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI32,
		api.ValueTypeI32, api.ValueTypeI32,
		api.ValueTypeI32, api.ValueTypeI32,
	}
	paramNames  = []string{"args_ptr", "args_len", "buf_ptr", "buf_len", "out_ptr", "out_cap"}
	resultTypes = []api.ValueType{api.ValueTypeI32}
)

// Host binds one netops.Ops to a wazero runtime.
type Host struct {
	ops *netops.Ops
	log *zap.Logger
}

// Option configures a Host.
type Option func(*Host)

func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.log = l }
}

func New(ops *netops.Ops, opts ...Option) *Host {
	h := &Host{ops: ops}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = netops.Logger()
	}
	return h
}

func (h *Host) builder(r wazero.Runtime) wazero.HostModuleBuilder {
	b := r.NewHostModuleBuilder(ModuleName)
	for _, op := range Operations {
		b.NewFunctionBuilder().
			WithGoModuleFunction(h.handler(op), paramTypes, resultTypes).
			WithParameterNames(paramNames...).
			Export("op_" + op)
	}
	return b
}

// Instantiate registers the host module with r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return h.builder(r).Instantiate(ctx)
}

// Compile compiles the host module without instantiating it.
func (h *Host) Compile(ctx context.Context, r wazero.Runtime) (wazero.CompiledModule, error) {
	return h.builder(r).Compile(ctx)
}

func (h *Host) handler(op string) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		ret := h.call(ctx, mod.Memory(), op,
			api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
			api.DecodeU32(stack[2]), api.DecodeU32(stack[3]),
			api.DecodeU32(stack[4]), api.DecodeU32(stack[5]))
		stack[0] = api.EncodeI32(ret)
	}
}

func (h *Host) call(ctx context.Context, mem api.Memory, op string, argsPtr, argsLen, bufPtr, bufLen, outPtr, outCap uint32) int32 {
	if mem == nil {
		return errBounds
	}
	args, ok := mem.Read(argsPtr, argsLen)
	if !ok {
		return errBounds
	}
	var guestBuf []byte
	if bufLen > 0 {
		if guestBuf, ok = mem.Read(bufPtr, bufLen); !ok {
			return errBounds
		}
	}
	if _, ok := mem.Read(outPtr, outCap); !ok {
		return errBounds
	}

	// Guest memory may move if the guest grows it while a call is parked,
	// so blocking reads land in host scratch space and are copied back.
	var result any
	var err error
	switch op {
	case netops.OpReceive, netops.OpRead:
		scratch := bytespool.Get(int(bufLen))
		result, err = h.ops.Dispatch(ctx, op, args, scratch)
		if err == nil {
			if n := resultSize(result); n > 0 && !mem.Write(bufPtr, scratch[:n]) {
				bytespool.Put(scratch)
				return errBounds
			}
		}
		bytespool.Put(scratch)
	default:
		result, err = h.ops.Dispatch(ctx, op, args, guestBuf)
	}

	if err != nil {
		h.log.Debug("guest operation failed", zap.String("op", op), zap.Error(err))
	}
	out := netops.EncodeResponse(result, err)
	if uint32(len(out)) > outCap {
		return -int32(len(out))
	}
	if !mem.Write(outPtr, out) {
		return errBounds
	}
	return int32(len(out))
}

func resultSize(result any) int {
	switch r := result.(type) {
	case netops.ReceiveResult:
		return r.Size
	case netops.ReadResult:
		return r.Size
	default:
		return 0
	}
}
