package stunsocket

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
	"github.com/stretchr/testify/require"
)

// captureConnector hands out a prepared transport and keeps the handlers the
// socket registered so tests can inject inbound traffic.
type captureConnector struct {
	mu     sync.Mutex
	tr     transport.Transport
	err    error
	h      transport.Handlers
	remote string
	local  string
}

func (c *captureConnector) Connect(_ context.Context, _ transport.Kind, remote, local string, h transport.Handlers) (transport.Transport, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h = h
	c.remote = remote
	c.local = local
	if c.err != nil {
		return nil, nil, c.err
	}
	return c.tr, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}, nil
}

func (c *captureConnector) deliver(data []byte) {
	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	h.OnData(data, transport.SenderInfo{Address: "192.0.2.10", Port: 3478, Family: transport.FamilyIPv4, Size: len(data)})
}

func (c *captureConnector) fail(err error) {
	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	h.OnError(err)
}

// fakeTransport accepts every send.
type fakeTransport struct {
	mu    sync.Mutex
	sent  [][]byte
	state transport.State
}

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = transport.StateClosed
	return nil
}

func (f *fakeTransport) OnData(transport.DataHandler)   {}
func (f *fakeTransport) OnError(transport.ErrorHandler) {}
func (f *fakeTransport) LocalAddr() net.Addr            { return nil }
func (f *fakeTransport) Kind() transport.Kind           { return transport.KindDatagram }
func (f *fakeTransport) State() transport.State         { return f.state }

// recordingObserver collects every notification.
type recordingObserver struct {
	mu          sync.Mutex
	indications []*packet.Packet
	messages    [][]byte
	errs        []error
}

func (r *recordingObserver) HandleIndication(pkt *packet.Packet, _ transport.SenderInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indications = append(r.indications, pkt)
}

func (r *recordingObserver) HandleMessage(data []byte, _ transport.SenderInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, data)
}

func (r *recordingObserver) HandleError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingObserver) snapshot() (ind []*packet.Packet, msgs [][]byte, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(ind, r.indications...), append(msgs, r.messages...), append(errs, r.errs...)
}

var testEndpoint = Endpoint{Host: "192.0.2.10", Port: 3478, Kind: transport.KindDatagram}

// newListeningSocket returns a socket already listening on tr through a
// captureConnector.
func newListeningSocket(t *testing.T, tr transport.Transport, obs Observer) (*Socket, *captureConnector) {
	t.Helper()
	conn := &captureConnector{tr: tr}
	s, err := New(testEndpoint, &Options{Observer: obs, Connector: conn})
	require.NoError(t, err)
	_, err = s.Listen(context.Background(), ListenOptions{})
	require.NoError(t, err)
	return s, conn
}

func mustMessage(t require.TestingT, kind packet.Kind, id uint32) []byte {
	msg, err := packet.New(kind, id)
	require.NoError(t, err)
	return msg
}
