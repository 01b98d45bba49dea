package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultHighWaterMark is the queued byte count above which Send waits for
// the outbound queue to drain.
const DefaultHighWaterMark = 16 * 1024

// StreamOptions tunes a stream transport.
type StreamOptions struct {
	HighWaterMark  int
	ReadBufferSize int
}

// DefaultStreamOptions returns the stream defaults.
func DefaultStreamOptions() *StreamOptions {
	return &StreamOptions{
		HighWaterMark:  DefaultHighWaterMark,
		ReadBufferSize: maxDatagramSize,
	}
}

func (o *StreamOptions) normalize() *StreamOptions {
	n := DefaultStreamOptions()
	if o == nil {
		return n
	}
	if o.HighWaterMark > 0 {
		n.HighWaterMark = o.HighWaterMark
	}
	if o.ReadBufferSize > 0 {
		n.ReadBufferSize = o.ReadBufferSize
	}
	return n
}

// TCPTransport is the stream transport. It is connected to one remote
// endpoint for its whole life. Outbound bytes are queued to a writer
// goroutine; inbound bytes are delivered as read, without framing.
type TCPTransport struct {
	remote string
	opts   *StreamOptions
	conn   net.Conn
	life   lifecycle

	mu      sync.Mutex
	onData  DataHandler
	queue   [][]byte
	queued  int
	drained chan struct{}
	wake    chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	eg        *errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

func newTCPTransport(remote string, h Handlers, opts *StreamOptions) (*TCPTransport, error) {
	if err := h.validate(); err != nil {
		return nil, newOpError("new", remote, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &TCPTransport{
		remote:  remote,
		opts:    opts.normalize(),
		onData:  h.OnData,
		drained: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	t.life.setErrorHandler(h.OnError)
	return t, nil
}

// DialTCP actively connects to remote and returns a connected transport.
// A non-empty local address fixes the source address and port.
func DialTCP(ctx context.Context, remote, local string, h Handlers, opts *StreamOptions) (*TCPTransport, error) {
	if remote == "" {
		return nil, newOpError("dial", remote, errors.New("remote address is required"))
	}
	t, err := newTCPTransport(remote, h, opts)
	if err != nil {
		return nil, err
	}

	t.life.set(StateConnecting)

	var d net.Dialer
	if local != "" {
		laddr, err := net.ResolveTCPAddr("tcp", local)
		if err != nil {
			t.abort()
			return nil, newOpError("dial", local, err)
		}
		d.LocalAddr = laddr
	}

	conn, err := d.DialContext(ctx, "tcp", remote)
	if err != nil {
		t.abort()
		return nil, newOpError("dial", remote, err)
	}

	t.start(conn)
	return t, nil
}

// NewStreamTransport adopts an already connected conn.
func NewStreamTransport(conn net.Conn, h Handlers, opts *StreamOptions) (*TCPTransport, error) {
	if conn == nil {
		return nil, newOpError("new", "", ErrNotConnected)
	}
	t, err := newTCPTransport(conn.RemoteAddr().String(), h, opts)
	if err != nil {
		return nil, err
	}
	t.start(conn)
	return t, nil
}

// abort marks a transport whose connect failed as closed.
func (t *TCPTransport) abort() {
	t.cancel()
	t.life.set(StateClosed)
}

func (t *TCPTransport) start(conn net.Conn) {
	t.conn = conn
	t.life.set(StateConnected)

	eg, ctx := errgroup.WithContext(t.ctx)
	t.eg = eg
	eg.Go(func() error { return t.readLoop() })
	eg.Go(func() error { return t.writeLoop(ctx) })

	logrus.WithFields(logrus.Fields{
		"function":    "TCPTransport.start",
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": t.remote,
	}).Debug("Stream transport connected")
}

// Send queues data for the writer. When the queue holds more than the high
// water mark, Send waits until it has drained before returning.
func (t *TCPTransport) Send(ctx context.Context, data []byte) error {
	if err := t.usable("send"); err != nil {
		return err
	}

	chunk := make([]byte, len(data))
	copy(chunk, data)

	t.mu.Lock()
	t.queue = append(t.queue, chunk)
	t.queued += len(chunk)
	flushed := t.queued <= t.opts.HighWaterMark
	queued := t.queued
	drained := t.drained
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}

	if flushed {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":    "TCPTransport.Send",
		"remote_addr": t.remote,
		"queued":      queued,
	}).Debug("High water, waiting for drain")

	select {
	case <-drained:
		logrus.WithFields(logrus.Fields{
			"function":    "TCPTransport.Send",
			"remote_addr": t.remote,
		}).Debug("Drained")
		return nil
	case <-ctx.Done():
		return newOpError("send", t.remote, ctx.Err())
	case <-t.ctx.Done():
		if err := t.life.failure(); err != nil {
			return newOpError("send", t.remote, err)
		}
		return newOpError("send", t.remote, ErrClosed)
	}
}

func (t *TCPTransport) usable(op string) error {
	switch t.life.get() {
	case StateConnected:
		return nil
	case StateClosing, StateClosed:
		return newOpError(op, t.remote, ErrClosed)
	case StateFailed:
		return newOpError(op, t.remote, t.life.failure())
	default:
		return newOpError(op, t.remote, ErrNotConnected)
	}
}

// writeLoop flushes the queue in order and signals drain when it empties.
func (t *TCPTransport) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
		}

		for {
			t.mu.Lock()
			if len(t.queue) == 0 {
				close(t.drained)
				t.drained = make(chan struct{})
				t.mu.Unlock()
				break
			}
			chunk := t.queue[0]
			t.queue[0] = nil
			t.queue = t.queue[1:]
			t.mu.Unlock()

			if _, err := t.conn.Write(chunk); err != nil {
				return t.handleIOError("write", err)
			}

			t.mu.Lock()
			t.queued -= len(chunk)
			t.mu.Unlock()
		}
	}
}

// readLoop delivers every chunk read from the connection.
func (t *TCPTransport) readLoop() error {
	buffer := make([]byte, t.opts.ReadBufferSize)
	from := t.conn.RemoteAddr()

	for {
		n, err := t.conn.Read(buffer)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])

			t.mu.Lock()
			h := t.onData
			t.mu.Unlock()

			if h != nil {
				h(data, senderInfoFromAddr(from, n))
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrConnectionClosed
			}
			return t.handleIOError("read", err)
		}
	}
}

// handleIOError fails the transport unless it is shutting down.
func (t *TCPTransport) handleIOError(op string, err error) error {
	if t.ctx.Err() != nil {
		return nil
	}

	opErr := newOpError(op, t.remote, err)
	logrus.WithFields(logrus.Fields{
		"function":    "TCPTransport.handleIOError",
		"remote_addr": t.remote,
		"error":       err.Error(),
	}).Error("Stream transport failed")

	t.life.fail(opErr)
	t.cancel()
	t.conn.Close()
	return opErr
}

// Close closes the connection and waits for the reader and writer to exit.
// Calling Close again returns the first result.
func (t *TCPTransport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.life.set(StateClosing)
		t.cancel()

		if t.conn == nil {
			t.life.set(StateClosed)
			return
		}

		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = newOpError("close", t.remote, err)
		}

		done := make(chan struct{})
		go func() {
			_ = t.eg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			t.closeErr = newOpError("close", t.remote, ctx.Err())
		}
		t.life.transition(StateClosing, StateClosed)

		logrus.WithFields(logrus.Fields{
			"function":    "TCPTransport.Close",
			"remote_addr": t.remote,
		}).Debug("Stream transport closed")
	})
	return t.closeErr
}

// OnData replaces the data handler.
func (t *TCPTransport) OnData(h DataHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = h
}

// OnError replaces the error handler.
func (t *TCPTransport) OnError(h ErrorHandler) {
	t.life.setErrorHandler(h)
}

// LocalAddr returns the local end of the connection.
func (t *TCPTransport) LocalAddr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// Kind returns KindStream.
func (t *TCPTransport) Kind() Kind {
	return KindStream
}

// State returns the current lifecycle state.
func (t *TCPTransport) State() State {
	return t.life.get()
}
