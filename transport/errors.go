package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingHandler indicates a transport was built without both handlers.
	ErrMissingHandler = errors.New("data and error handlers are required")

	// ErrNotBound indicates a datagram transport was used before Bind.
	ErrNotBound = errors.New("transport not bound")

	// ErrAlreadyBound indicates Bind was called twice.
	ErrAlreadyBound = errors.New("transport already bound")

	// ErrNotConnected indicates a stream transport is not in the connected state.
	ErrNotConnected = errors.New("transport not connected")

	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrConnectionClosed indicates the remote end closed the stream.
	ErrConnectionClosed = errors.New("connection closed by peer")

	// ErrUnknownKind indicates an unsupported transport kind.
	ErrUnknownKind = errors.New("unknown transport kind")
)

// OpError carries the failing operation and remote address with the cause.
type OpError struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *OpError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(op, addr string, err error) *OpError {
	return &OpError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
