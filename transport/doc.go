// Package transport provides the datagram and stream transports a socket
// uses to reach one remote STUN endpoint.
//
// # Architecture
//
// Both implementations satisfy the Transport interface:
//
//	type Transport interface {
//	    Send(ctx context.Context, data []byte) error
//	    Close(ctx context.Context) error
//	    OnData(h DataHandler)
//	    OnError(h ErrorHandler)
//	    LocalAddr() net.Addr
//	    Kind() Kind
//	    State() State
//	}
//
// Constructors require a data handler and an error handler. Missing handlers
// are reported with ErrMissingHandler before any I/O happens.
//
// # Datagram Transport
//
//	t, err := NewUDPTransport("stun.example.net:3478", handlers)
//	local, err := t.Bind(ctx, "0.0.0.0:0")
//
// Each Send emits exactly one datagram and each inbound datagram produces
// exactly one data callback with the whole unit.
//
// # Stream Transport
//
//	t, err := DialTCP(ctx, "stun.example.net:3478", "", handlers, nil)
//
// Send queues bytes for a writer goroutine. Once more than HighWaterMark
// bytes are queued, Send waits until the queue drains or its context ends.
// Inbound bytes are delivered as read; the stream is not framed.
//
// # Failures
//
// Any I/O error moves a transport to StateFailed and calls the error handler
// exactly once. Errors observed while closing are not reported. Errors
// returned by methods are *OpError values wrapping the cause.
package transport
