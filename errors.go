package stunsocket

import (
	"errors"
	"fmt"

	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
)

var (
	// ErrSocketClosed indicates the socket has been closed.
	ErrSocketClosed = errors.New("socket closed")

	// ErrNotListening indicates an operation that needs a transport was
	// called before Listen.
	ErrNotListening = errors.New("socket not listening")

	// ErrAlreadyListening indicates Listen was called twice.
	ErrAlreadyListening = errors.New("socket already listening")

	// ErrInvalidEndpoint indicates a remote endpoint that cannot be used.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrTransactionReplaced rejects a pending transaction whose id was
	// reused by a newer request before a response arrived.
	ErrTransactionReplaced = errors.New("transaction replaced by a newer request")

	// ErrUnexpectedKind is wrapped by ProtocolError.
	ErrUnexpectedKind = errors.New("unexpected message kind")
)

// SocketError wraps a failure of a socket operation with the remote it
// concerned.
type SocketError struct {
	Op     string // operation that caused the error
	Remote string // remote endpoint address
	Err    error  // underlying error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("socket %s %s: %v", e.Op, e.Remote, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// ProtocolError reports an inbound message a client socket must not receive,
// such as a request, or a kind the decoder could not classify. It is handed
// to the observer and never closes the socket.
type ProtocolError struct {
	Kind          packet.Kind
	TransactionID uint32
	From          transport.SenderInfo
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %s (transaction 0x%08x) from %s:%d", ErrUnexpectedKind, e.Kind, e.TransactionID, e.From.Address, e.From.Port)
}

func (e *ProtocolError) Unwrap() error {
	return ErrUnexpectedKind
}
