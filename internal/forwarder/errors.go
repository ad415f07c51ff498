package forwarder

import (
	"context"
	"errors"
	"net"
)

var (
	ErrUnknownEndpoint     = errors.New("unknown endpoint")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrCircuitOpen         = errors.New("circuit breaker open")
	ErrClientClosed        = errors.New("client closed request")
)

// Error is returned by Forward. Kind is one of the sentinel errors above and
// matches with errors.Is; Err is the underlying cause, if any.
type Error struct {
	Endpoint string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Endpoint + ": " + e.Kind.Error()
	}
	return e.Endpoint + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// kindLabel is the metrics label for an error kind.
func kindLabel(kind error) string {
	switch kind {
	case ErrUnknownEndpoint:
		return "unknown_endpoint"
	case ErrUpstreamTimeout:
		return "upstream_timeout"
	case ErrCircuitOpen:
		return "circuit_open"
	case ErrClientClosed:
		return "client_closed"
	default:
		return "upstream_unreachable"
	}
}

// classify maps a round-trip failure to an error kind. inbound is the
// caller's context, call the per-call context derived from it.
func classify(inbound, call context.Context, err error) error {
	if errors.Is(inbound.Err(), context.Canceled) {
		return ErrClientClosed
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(call.Err(), context.DeadlineExceeded) {
		return ErrUpstreamTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrUpstreamTimeout
	}

	return ErrUpstreamUnreachable
}
