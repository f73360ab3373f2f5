package wasmhost

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/OpenListTeam/wazero-netops/manager/permissions"
	"github.com/OpenListTeam/wazero-netops/netops"
)

// memoryOnlyWasm is a module that defines and exports one page of memory.
var memoryOnlyWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

const (
	argsOff = 0
	bufOff  = 4096
	bufCap  = 4096
	outOff  = 8192
	outCap  = 4096
)

type envelope struct {
	Ok  json.RawMessage   `json:"ok"`
	Err *netops.ErrorBody `json:"err"`
}

type guest struct {
	t    *testing.T
	ctx  context.Context
	host *Host
	mod  api.Module
}

func setupHost(t *testing.T) *guest {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })

	ops, err := netops.New(netops.WithPermissions(permissions.AllowAll{}))
	require.NoError(t, err)
	t.Cleanup(func() { ops.CloseAll() })

	h := New(ops)
	_, err = h.Instantiate(ctx, r)
	require.NoError(t, err)

	mod, err := r.Instantiate(ctx, memoryOnlyWasm)
	require.NoError(t, err)
	require.NotNil(t, mod.Memory())

	return &guest{t: t, ctx: ctx, host: h, mod: mod}
}

// invoke runs op through the exported function body with guest memory.
func (g *guest) invoke(op, args string, payload []byte, bufLen uint32) (int32, envelope) {
	g.t.Helper()
	mem := g.mod.Memory()
	require.True(g.t, mem.Write(argsOff, []byte(args)))
	if payload != nil {
		require.True(g.t, mem.Write(bufOff, payload))
		bufLen = uint32(len(payload))
	}

	stack := []uint64{
		api.EncodeU32(argsOff), api.EncodeU32(uint32(len(args))),
		api.EncodeU32(bufOff), api.EncodeU32(bufLen),
		api.EncodeU32(outOff), api.EncodeU32(outCap),
	}
	g.host.handler(op)(g.ctx, g.mod, stack)
	ret := api.DecodeI32(stack[0])

	var env envelope
	if ret > 0 {
		out, ok := mem.Read(outOff, uint32(ret))
		require.True(g.t, ok)
		require.NoError(g.t, json.Unmarshal(out, &env))
	}
	return ret, env
}

func (g *guest) ok(op, args string, payload []byte, bufLen uint32, into any) {
	g.t.Helper()
	ret, env := g.invoke(op, args, payload, bufLen)
	require.Positive(g.t, ret)
	require.Nil(g.t, env.Err, "%s failed: %+v", op, env.Err)
	if into != nil {
		require.NoError(g.t, json.Unmarshal(env.Ok, into))
	}
}

func TestHostExports(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	ops, err := netops.New()
	require.NoError(t, err)

	compiled, err := New(ops).Compile(ctx, r)
	require.NoError(t, err)

	exported := compiled.ExportedFunctions()
	require.Len(t, exported, len(Operations))
	for _, op := range Operations {
		def, ok := exported["op_"+op]
		require.True(t, ok, "missing export op_%s", op)
		require.Len(t, def.ParamTypes(), 6)
		require.Equal(t, []api.ValueType{api.ValueTypeI32}, def.ResultTypes())
	}
}

func TestTCPThroughGuestMemory(t *testing.T) {
	g := setupHost(t)

	var ln netops.ListenResult
	g.ok(netops.OpListen, `{"transport":"tcp","hostname":"127.0.0.1","port":0}`, nil, 0, &ln)
	require.Equal(t, uint32(1), ln.Rid)
	require.NotZero(t, ln.LocalAddr.Port)

	var conn struct {
		Rid        uint32         `json:"rid"`
		LocalAddr  map[string]any `json:"localAddr"`
		RemoteAddr map[string]any `json:"remoteAddr"`
	}
	g.ok(netops.OpConnect, fmt.Sprintf(`{"transport":"tcp","hostname":"127.0.0.1","port":%d}`, ln.LocalAddr.Port), nil, 0, &conn)

	var acc struct {
		Rid        uint32         `json:"rid"`
		RemoteAddr map[string]any `json:"remoteAddr"`
	}
	g.ok(netops.OpAccept, `{"rid":1,"transport":"tcp"}`, nil, 0, &acc)
	require.Equal(t, conn.LocalAddr, acc.RemoteAddr)

	var wrote netops.SizeResult
	g.ok(netops.OpWrite, fmt.Sprintf(`{"rid":%d}`, conn.Rid), []byte("from guest"), 0, &wrote)
	require.Equal(t, 10, wrote.Size)

	var read netops.ReadResult
	g.ok(netops.OpRead, fmt.Sprintf(`{"rid":%d}`, acc.Rid), nil, bufCap, &read)
	got, ok := g.mod.Memory().Read(bufOff, uint32(read.Size))
	require.True(t, ok)
	require.Equal(t, "from guest", string(got))

	var resources map[string]string
	g.ok(netops.OpResources, `{}`, nil, 0, &resources)
	require.Equal(t, "tcpListener", resources["1"])
}

func TestUDPReceiveIntoGuestMemory(t *testing.T) {
	g := setupHost(t)

	var sock netops.ListenResult
	g.ok(netops.OpListen, `{"transport":"udp","hostname":"127.0.0.1","port":0}`, nil, 0, &sock)

	var sent netops.SizeResult
	g.ok(netops.OpSend, fmt.Sprintf(`{"rid":%d,"transport":"udp","hostname":"127.0.0.1","port":%d}`, sock.Rid, sock.LocalAddr.Port), []byte("ping"), 0, &sent)
	require.Equal(t, 4, sent.Size)

	// Clear the buffer so the copy-back is observable.
	require.True(t, g.mod.Memory().Write(bufOff, make([]byte, 8)))

	var recv netops.ReceiveResult
	g.ok(netops.OpReceive, fmt.Sprintf(`{"rid":%d,"transport":"udp"}`, sock.Rid), nil, 8, &recv)
	require.Equal(t, 4, recv.Size)
	require.Equal(t, sock.LocalAddr, recv.RemoteAddr)

	got, ok := g.mod.Memory().Read(bufOff, 4)
	require.True(t, ok)
	require.Equal(t, "ping", string(got))
}

func TestGuestErrors(t *testing.T) {
	g := setupHost(t)

	t.Run("error envelope", func(t *testing.T) {
		ret, env := g.invoke(netops.OpShutdown, `{"rid":1,"how":2}`, nil, 0)
		require.Positive(t, ret)
		require.NotNil(t, env.Err)
		require.Equal(t, netops.KindProtocolViolation, env.Err.Kind)
	})

	t.Run("output too small", func(t *testing.T) {
		mem := g.mod.Memory()
		args := `{"transport":"tcp","hostname":"127.0.0.1","port":0}`
		require.True(t, mem.Write(argsOff, []byte(args)))
		ret := g.host.call(g.ctx, mem, netops.OpListen, argsOff, uint32(len(args)), 0, 0, outOff, 4)
		require.Negative(t, ret)
		require.Greater(t, int(-ret), 4)
	})

	t.Run("out of bounds", func(t *testing.T) {
		mem := g.mod.Memory()
		ret := g.host.call(g.ctx, mem, netops.OpResources, mem.Size()-2, 16, 0, 0, outOff, outCap)
		require.Equal(t, errBounds, ret)

		ret = g.host.call(g.ctx, nil, netops.OpResources, 0, 0, 0, 0, 0, 0)
		require.Equal(t, errBounds, ret)
	})
}
