package stunsocket

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/opd-ai/stunsocket/factory"
	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
)

// Endpoint is the remote peer a socket talks to. It is fixed for the life
// of the socket.
type Endpoint struct {
	Host string
	Port int
	Kind transport.Kind
}

// Address returns the endpoint as "host:port".
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) validate() error {
	if e.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, e.Port)
	}
	if e.Kind != transport.KindDatagram && e.Kind != transport.KindStream {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, transport.ErrUnknownKind)
	}
	return nil
}

// ListenOptions selects the local address. The zero value binds an
// ephemeral port on all interfaces; for stream sockets it lets the OS pick
// the source address.
type ListenOptions struct {
	Address string
	Port    int
}

func (l ListenOptions) address() string {
	if l.Address == "" && l.Port == 0 {
		return ""
	}
	return net.JoinHostPort(l.Address, strconv.Itoa(l.Port))
}

// Connector creates a ready transport for the socket. The transport must
// deliver inbound data and failures to h. *factory.TransportFactory
// implements it.
type Connector interface {
	Connect(ctx context.Context, kind transport.Kind, remote, local string, h transport.Handlers) (transport.Transport, net.Addr, error)
}

// Options configures a Socket.
type Options struct {
	// Decoder classifies inbound bytes. Defaults to packet.Decode.
	Decoder packet.Decoder
	// Observer receives non-transactional traffic. Defaults to logging.
	Observer Observer
	// Connector builds the transport. Defaults to a TransportFactory with
	// environment overrides applied.
	Connector Connector
	// TimeProvider is used for transaction round trip times.
	TimeProvider TimeProvider
}

// NewOptions creates default options.
func NewOptions() *Options {
	return &Options{
		Decoder:      packet.Decode,
		Observer:     logObserver{},
		Connector:    factory.NewTransportFactory(),
		TimeProvider: RealTimeProvider{},
	}
}

// withDefaults fills nil fields from NewOptions without mutating o.
func (o *Options) withDefaults() *Options {
	n := &Options{}
	if o != nil {
		*n = *o
	}
	if n.Decoder == nil {
		n.Decoder = packet.Decode
	}
	if n.Observer == nil {
		n.Observer = logObserver{}
	}
	if n.Connector == nil {
		n.Connector = factory.NewTransportFactory()
	}
	n.TimeProvider = getTimeProvider(n.TimeProvider)
	return n
}
