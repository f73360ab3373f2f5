package netops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Wire-level operation names accepted by Dispatch.
const (
	OpListen    = opListen
	OpAccept    = opAccept
	OpConnect   = opConnect
	OpSend      = opSend
	OpReceive   = opReceive
	OpShutdown  = opShutdown
	OpClose     = opClose
	OpRead      = opRead
	OpWrite     = opWrite
	OpResources = "resources"
)

// Request is the JSON argument object of every verb. The address is given
// either as hostname+port or as address (a path); which one is expected
// follows from the transport.
type Request struct {
	Rid       *uint32   `json:"rid,omitempty"`
	Transport Transport `json:"transport,omitempty"`
	Hostname  *string   `json:"hostname,omitempty"`
	Port      *uint16   `json:"port,omitempty"`
	Address   *string   `json:"address,omitempty"`
	How       *int      `json:"how,omitempty"`
}

// address picks the argument shape, IP first.
func (r *Request) address() Address {
	switch {
	case r.Hostname != nil && r.Port != nil:
		return IPAddr{Hostname: *r.Hostname, Port: *r.Port}
	case r.Address != nil:
		return PathAddr{Path: *r.Address}
	default:
		return nil
	}
}

// SizeResult is returned by send and write.
type SizeResult struct {
	Size int `json:"size"`
}

// ReadResult is returned by read. EOF is set once the peer has finished
// writing.
type ReadResult struct {
	Size int  `json:"size"`
	EOF  bool `json:"eof,omitempty"`
}

// Empty is returned by shutdown and close.
type Empty struct{}

// Dispatch decodes args for op and runs it. buf is the payload of send and
// write, and the destination of receive and read.
func (o *Ops) Dispatch(ctx context.Context, op string, args []byte, buf []byte) (any, error) {
	var req Request
	if len(args) > 0 {
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, newError(KindProtocolViolation, op, "", "malformed arguments", err)
		}
	}

	rid := func() (Rid, error) {
		if req.Rid == nil {
			return 0, newError(KindProtocolViolation, op, req.Transport, "missing rid", nil)
		}
		return *req.Rid, nil
	}

	switch op {
	case OpListen:
		return o.Listen(ctx, req.Transport, req.address())
	case OpConnect:
		return o.Connect(ctx, req.Transport, req.address())
	case OpAccept:
		id, err := rid()
		if err != nil {
			return nil, err
		}
		return o.Accept(ctx, id, req.Transport)
	case OpSend:
		id, err := rid()
		if err != nil {
			return nil, err
		}
		n, err := o.Send(ctx, id, req.Transport, req.address(), buf)
		if err != nil {
			return nil, err
		}
		return SizeResult{Size: n}, nil
	case OpReceive:
		id, err := rid()
		if err != nil {
			return nil, err
		}
		return o.Receive(ctx, id, req.Transport, buf)
	case OpShutdown:
		id, err := rid()
		if err != nil {
			return nil, err
		}
		if req.How == nil {
			return nil, newError(KindProtocolViolation, op, req.Transport, "missing how", nil)
		}
		mode, err := ParseShutdownMode(*req.How)
		if err != nil {
			return nil, err
		}
		if err := o.Shutdown(id, mode); err != nil {
			return nil, err
		}
		return Empty{}, nil
	case OpClose:
		id, err := rid()
		if err != nil {
			return nil, err
		}
		if err := o.Close(id); err != nil {
			return nil, err
		}
		return Empty{}, nil
	case OpRead:
		id, err := rid()
		if err != nil {
			return nil, err
		}
		n, err := o.Read(ctx, id, buf)
		if errors.Is(err, io.EOF) {
			return ReadResult{Size: n, EOF: true}, nil
		}
		if err != nil {
			return nil, err
		}
		return ReadResult{Size: n}, nil
	case OpWrite:
		id, err := rid()
		if err != nil {
			return nil, err
		}
		n, err := o.Write(ctx, id, buf)
		if err != nil {
			return nil, err
		}
		return SizeResult{Size: n}, nil
	case OpResources:
		return o.Resources(), nil
	default:
		return nil, newError(KindProtocolViolation, op, "", "unknown operation", nil)
	}
}

// Response is the JSON envelope written back to the caller.
type Response struct {
	Ok  any        `json:"ok,omitempty"`
	Err *ErrorBody `json:"err,omitempty"`
}

type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// EncodeResponse renders the outcome of Dispatch.
func EncodeResponse(result any, err error) []byte {
	var resp Response
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindIoError
		}
		resp.Err = &ErrorBody{Kind: kind, Message: err.Error()}
	} else {
		resp.Ok = result
	}
	b, merr := json.Marshal(resp)
	if merr != nil {
		b, _ = json.Marshal(Response{Err: &ErrorBody{Kind: KindIoError, Message: merr.Error()}})
	}
	return b
}
