package netops

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind categorizes an operation failure.
type Kind string

const (
	KindBadResource       Kind = "bad_resource"
	KindPermissionDenied  Kind = "permission_denied"
	KindResolutionFailed  Kind = "resolution_failed"
	KindIoError           Kind = "io_error"
	KindProtocolViolation Kind = "protocol_violation"
	KindUnsupported       Kind = "unsupported"
)

// Error is returned by every verb.
type Error struct {
	Kind      Kind
	Op        string
	Transport Transport
	Detail    string
	Cause     error
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Transport != "" {
			b.WriteByte(' ')
			b.WriteString(string(e.Transport))
		}
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

var (
	ErrBadResource       = &Error{Kind: KindBadResource}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrResolutionFailed  = &Error{Kind: KindResolutionFailed}
	ErrIoError           = &Error{Kind: KindIoError}
	ErrProtocolViolation = &Error{Kind: KindProtocolViolation}
	ErrUnsupported       = &Error{Kind: KindUnsupported}
)

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, op string, transport Transport, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Transport: transport, Detail: detail, Cause: cause}
}

func badResource(op string, transport Transport, detail string) *Error {
	return newError(KindBadResource, op, transport, detail, nil)
}

func wrongArgumentFormat(op string, transport Transport) *Error {
	return newError(KindProtocolViolation, op, transport, "wrong argument format", nil)
}

func unsupportedTransport(op string, transport Transport) *Error {
	return newError(KindUnsupported, op, transport, "unsupported transport protocol "+string(transport), nil)
}

// classify wraps an error from a socket call. OS permission errors such as
// EACCES on bind stay IoError; PermissionDenied is reserved for the
// permission checker.
func classify(op string, transport Transport, closedDetail string, err error) *Error {
	switch {
	case errors.Is(err, net.ErrClosed):
		return newError(KindBadResource, op, transport, closedDetail, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindIoError, op, transport, "interrupted", err)
	default:
		return newError(KindIoError, op, transport, "", err)
	}
}
