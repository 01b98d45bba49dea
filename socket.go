package stunsocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/stunsocket/limits"
	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
	"github.com/sirupsen/logrus"
)

// closeTimeout bounds how long Close waits for the transport to release
// its resources.
const closeTimeout = 5 * time.Second

type socketState uint8

const (
	socketIdle socketState = iota
	socketListening
	socketActive
	socketFailed
	socketClosed
)

// Socket correlates requests with responses over one transport to one
// remote endpoint and forwards all other inbound traffic to an Observer.
type Socket struct {
	id        string
	remote    Endpoint
	decoder   packet.Decoder
	observer  Observer
	connector Connector
	clock     TimeProvider
	pending   *pendingTable
	counters  counters

	mu      sync.RWMutex
	state   socketState
	tr      transport.Transport
	local   net.Addr
	failure error

	closeOnce sync.Once
	closeErr  error
}

// New creates a socket for remote. It validates its arguments and performs
// no I/O; call Listen to bind or connect.
func New(remote Endpoint, opts *Options) (*Socket, error) {
	if err := remote.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	s := &Socket{
		id:        uuid.NewString(),
		remote:    remote,
		decoder:   opts.Decoder,
		observer:  opts.Observer,
		connector: opts.Connector,
		clock:     opts.TimeProvider,
		pending:   newPendingTable(),
	}

	logrus.WithFields(logrus.Fields{
		"function":  "New",
		"socket_id": s.id,
		"remote":    remote.Address(),
		"kind":      remote.Kind.String(),
	}).Debug("Created socket")

	return s, nil
}

// Listen binds a datagram socket to the local address in lo, or connects a
// stream socket to the remote endpoint from it. It returns the local address
// in use. ctx bounds the bind or connect.
func (s *Socket) Listen(ctx context.Context, lo ListenOptions) (net.Addr, error) {
	s.mu.Lock()
	switch s.state {
	case socketIdle:
		s.state = socketListening
	case socketClosed:
		s.mu.Unlock()
		return nil, s.opError("listen", ErrSocketClosed)
	default:
		s.mu.Unlock()
		return nil, s.opError("listen", ErrAlreadyListening)
	}
	s.mu.Unlock()

	tr, local, err := s.connector.Connect(ctx, s.remote.Kind, s.remote.Address(), lo.address(), transport.Handlers{
		OnData:  s.handleData,
		OnError: s.handleTransportError,
	})

	s.mu.Lock()
	if err != nil {
		if s.state == socketListening {
			s.state = socketIdle
		}
		s.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function":  "Socket.Listen",
			"socket_id": s.id,
			"remote":    s.remote.Address(),
			"error":     err.Error(),
		}).Error("Failed to open transport")
		return nil, s.opError("listen", err)
	}
	if s.state == socketClosed {
		s.mu.Unlock()
		_ = tr.Close(context.Background())
		return nil, s.opError("listen", ErrSocketClosed)
	}
	if s.state == socketFailed {
		s.tr = tr
		failure := s.failure
		s.mu.Unlock()
		return nil, failure
	}
	s.tr = tr
	s.local = local
	s.state = socketActive
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "Socket.Listen",
		"socket_id":  s.id,
		"local_addr": addrString(local),
		"remote":     s.remote.Address(),
		"kind":       s.remote.Kind.String(),
	}).Info("Socket listening")

	return local, nil
}

// Close releases the transport and rejects every pending transaction with
// ErrSocketClosed. It must not be called from an Observer method. Repeated
// calls return the first result.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = socketClosed
		tr := s.tr
		s.mu.Unlock()

		for _, tx := range s.pending.drain() {
			tx.reject(s.opError("close", ErrSocketClosed))
		}

		if tr != nil {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := tr.Close(ctx); err != nil {
				s.closeErr = s.opError("close", err)
			}
		}

		logrus.WithFields(logrus.Fields{
			"function":  "Socket.Close",
			"socket_id": s.id,
			"remote":    s.remote.Address(),
		}).Info("Socket closed")
	})
	return s.closeErr
}

// SendRequest sends msg and waits for the response carrying the same
// transaction id. The returned packet may be a success or an error
// response. When ctx ends first the pending entry is removed and the
// context error is returned.
func (s *Socket) SendRequest(ctx context.Context, msg []byte) (*packet.Packet, error) {
	tx, err := s.BeginRequest(ctx, msg)
	if err != nil {
		return nil, err
	}
	return tx.Wait(ctx)
}

// BeginRequest registers msg's transaction id and sends msg. It returns once
// the transport accepted the write. A request reusing the id of a pending
// transaction rejects that transaction with ErrTransactionReplaced.
func (s *Socket) BeginRequest(ctx context.Context, msg []byte) (*Transaction, error) {
	id, err := packet.TransactionID(msg)
	if err != nil {
		return nil, err
	}
	tr, err := s.transport("send")
	if err != nil {
		return nil, err
	}
	if err := s.validateSize(msg); err != nil {
		return nil, s.opError("send", err)
	}

	tx := newTransaction(id, s.clock, s.withdraw)
	old, err := s.register(tx)
	if err != nil {
		tx.reject(err)
		return nil, err
	}
	if old != nil {
		s.counters.transactionsReplaced.Add(1)
		old.reject(fmt.Errorf("transaction 0x%08x: %w", id, ErrTransactionReplaced))

		logrus.WithFields(logrus.Fields{
			"function":       "Socket.BeginRequest",
			"socket_id":      s.id,
			"transaction_id": id,
		}).Warn("Transaction id reused while pending, rejecting earlier request")
	}

	if err := tr.Send(ctx, msg); err != nil {
		s.pending.remove(tx)
		sendErr := s.opError("send", err)
		tx.reject(sendErr)

		logrus.WithFields(logrus.Fields{
			"function":       "Socket.BeginRequest",
			"socket_id":      s.id,
			"transaction_id": id,
			"error":          err.Error(),
		}).Error("Failed to send request")
		return nil, sendErr
	}
	s.counters.requestsSent.Add(1)

	logrus.WithFields(logrus.Fields{
		"function":       "Socket.BeginRequest",
		"socket_id":      s.id,
		"transaction_id": id,
		"size":           len(msg),
	}).Debug("Request sent")

	return tx, nil
}

// SendIndication sends msg without registering a transaction. It returns
// once the transport accepted the write.
func (s *Socket) SendIndication(ctx context.Context, msg []byte) error {
	tr, err := s.transport("send")
	if err != nil {
		return err
	}
	if err := s.validateSize(msg); err != nil {
		return s.opError("send", err)
	}
	if err := tr.Send(ctx, msg); err != nil {
		return s.opError("send", err)
	}
	s.counters.indicationsSent.Add(1)

	logrus.WithFields(logrus.Fields{
		"function":  "Socket.SendIndication",
		"socket_id": s.id,
		"size":      len(msg),
	}).Debug("Indication sent")
	return nil
}

// LocalAddr returns the local address, or nil before Listen.
func (s *Socket) LocalAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local
}

// Remote returns the remote endpoint.
func (s *Socket) Remote() Endpoint {
	return s.remote
}

// Stats returns a snapshot of the traffic counters.
func (s *Socket) Stats() Stats {
	return s.counters.snapshot()
}

// ID returns the socket's unique id, used to correlate log lines.
func (s *Socket) ID() string {
	return s.id
}

// Pending returns the number of outstanding transactions.
func (s *Socket) Pending() int {
	return s.pending.len()
}

// transport returns the active transport or the error describing why there
// is none.
func (s *Socket) transport(op string) (transport.Transport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.unusable(op); err != nil {
		return nil, err
	}
	return s.tr, nil
}

// register adds tx to the pending table while the socket is active. Close
// and transport failure change state under s.mu before draining the table,
// so a registered transaction is always seen by the drain.
func (s *Socket) register(tx *Transaction) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.unusable("send"); err != nil {
		return nil, err
	}
	return s.pending.add(tx), nil
}

// unusable reports why the socket cannot carry traffic. s.mu must be held.
func (s *Socket) unusable(op string) error {
	switch s.state {
	case socketActive:
		return nil
	case socketClosed:
		return s.opError(op, ErrSocketClosed)
	case socketFailed:
		return s.opError(op, s.failure)
	default:
		return s.opError(op, ErrNotListening)
	}
}

func (s *Socket) validateSize(msg []byte) error {
	if s.remote.Kind == transport.KindStream {
		return limits.ValidateStreamMessage(msg)
	}
	return limits.ValidateDatagramMessage(msg)
}

// withdraw removes an abandoned transaction from the pending table.
func (s *Socket) withdraw(tx *Transaction) {
	if s.pending.remove(tx) {
		logrus.WithFields(logrus.Fields{
			"function":       "Socket.withdraw",
			"socket_id":      s.id,
			"transaction_id": tx.id,
		}).Debug("Transaction abandoned by caller")
	}
}

func (s *Socket) opError(op string, err error) error {
	var se *SocketError
	if errors.As(err, &se) {
		return err
	}
	return &SocketError{Op: op, Remote: s.remote.Address(), Err: err}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
