package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// packetReadTimeout bounds each read so the loop notices cancellation.
	packetReadTimeout = 100 * time.Millisecond

	// maxDatagramSize is the largest UDP payload.
	maxDatagramSize = 65536
)

// UDPTransport is the datagram transport. Each Send emits exactly one
// datagram to the remote endpoint and each inbound datagram produces exactly
// one data callback carrying the whole unit.
type UDPTransport struct {
	remote     string
	remoteAddr *net.UDPAddr
	conn       net.PacketConn
	onData     DataHandler
	mu         sync.RWMutex
	life       lifecycle
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
}

// NewUDPTransport creates an unbound datagram transport for remote
// ("host:port"). Nothing touches the network until Bind.
func NewUDPTransport(remote string, h Handlers) (*UDPTransport, error) {
	if err := h.validate(); err != nil {
		return nil, newOpError("new", remote, err)
	}
	if remote == "" {
		return nil, newOpError("new", remote, errors.New("remote address is required"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &UDPTransport{
		remote: remote,
		onData: h.OnData,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.life.setErrorHandler(h.OnError)
	return t, nil
}

// Bind resolves the remote endpoint, opens the local socket and starts the
// read loop. An empty local address picks an ephemeral port.
func (t *UDPTransport) Bind(ctx context.Context, local string) (net.Addr, error) {
	if !t.life.transition(StateUnbound, StateConnecting) {
		if t.life.get().terminal() {
			return nil, newOpError("bind", local, ErrClosed)
		}
		return nil, newOpError("bind", local, ErrAlreadyBound)
	}

	remoteAddr, err := net.ResolveUDPAddr("udp", t.remote)
	if err != nil {
		t.life.set(StateUnbound)
		return nil, newOpError("resolve", t.remote, err)
	}

	if local == "" {
		local = ":0"
	}
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", local)
	if err != nil {
		t.life.set(StateUnbound)
		return nil, newOpError("bind", local, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.remoteAddr = remoteAddr
	t.mu.Unlock()

	if !t.life.transition(StateConnecting, StateBound) {
		// Closed while binding.
		conn.Close()
		return nil, newOpError("bind", local, ErrClosed)
	}

	go t.processPackets()

	logrus.WithFields(logrus.Fields{
		"function":    "UDPTransport.Bind",
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": remoteAddr.String(),
	}).Debug("Datagram transport bound")

	return conn.LocalAddr(), nil
}

// Send writes data as a single datagram. It returns once the OS accepted it.
func (t *UDPTransport) Send(ctx context.Context, data []byte) error {
	if err := t.usable("send"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return newOpError("send", t.remote, err)
	}

	t.mu.RLock()
	conn, remoteAddr := t.conn, t.remoteAddr
	t.mu.RUnlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}

	if _, err := conn.WriteTo(data, remoteAddr); err != nil {
		return newOpError("send", t.remote, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "UDPTransport.Send",
		"remote_addr": t.remote,
		"size":        len(data),
	}).Debug("Datagram sent")
	return nil
}

func (t *UDPTransport) usable(op string) error {
	switch t.life.get() {
	case StateBound:
		return nil
	case StateClosing, StateClosed:
		return newOpError(op, t.remote, ErrClosed)
	case StateFailed:
		return newOpError(op, t.remote, t.life.failure())
	default:
		return newOpError(op, t.remote, ErrNotBound)
	}
}

// Close stops the read loop and releases the socket. Repeated calls return nil.
func (t *UDPTransport) Close(ctx context.Context) error {
	var err error
	t.closeOnce.Do(func() {
		wasBound := t.life.get() == StateBound || t.life.get() == StateFailed
		t.life.set(StateClosing)
		t.cancel()

		t.mu.RLock()
		conn := t.conn
		t.mu.RUnlock()

		if conn != nil {
			if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = newOpError("close", t.remote, cerr)
			}
		}
		if wasBound {
			select {
			case <-t.done:
			case <-ctx.Done():
				err = newOpError("close", t.remote, ctx.Err())
			}
		}
		t.life.transition(StateClosing, StateClosed)
	})
	return err
}

// OnData replaces the data handler.
func (t *UDPTransport) OnData(h DataHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = h
}

// OnError replaces the error handler.
func (t *UDPTransport) OnError(h ErrorHandler) {
	t.life.setErrorHandler(h)
}

// LocalAddr returns the bound address or nil.
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// Kind returns KindDatagram.
func (t *UDPTransport) Kind() Kind {
	return KindDatagram
}

// State returns the current lifecycle state.
func (t *UDPTransport) State() State {
	return t.life.get()
}

// processPackets handles incoming datagrams until Close.
func (t *UDPTransport) processPackets() {
	defer close(t.done)
	buffer := make([]byte, maxDatagramSize)

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
			if !t.processIncomingPacket(buffer) {
				return
			}
		}
	}
}

// processIncomingPacket reads one datagram and hands it to the data handler.
// Returns false when the loop must stop.
func (t *UDPTransport) processIncomingPacket(buffer []byte) bool {
	_ = t.conn.SetReadDeadline(time.Now().Add(packetReadTimeout))

	n, addr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		return t.handleReadError(err)
	}

	data := make([]byte, n)
	copy(data, buffer[:n])

	t.mu.RLock()
	h := t.onData
	t.mu.RUnlock()

	if h == nil {
		logrus.WithFields(logrus.Fields{
			"function":    "UDPTransport.processIncomingPacket",
			"remote_addr": addr.String(),
			"size":        n,
		}).Warn("Dropped datagram, no data handler")
		return true
	}

	h(data, senderInfoFromAddr(addr, n))
	return true
}

// handleReadError decides whether a read error ends the loop.
func (t *UDPTransport) handleReadError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if t.ctx.Err() != nil {
		return false
	}

	logrus.WithFields(logrus.Fields{
		"function": "UDPTransport.handleReadError",
		"error":    err.Error(),
	}).Error("Datagram transport failed")

	t.life.fail(newOpError("read", t.remote, err))
	return false
}
