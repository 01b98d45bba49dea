package stunsocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
	"github.com/pion/stun"
	"github.com/sirupsen/logrus"
)

// ErrNoMappedAddress indicates a success response carried neither
// XOR-MAPPED-ADDRESS nor MAPPED-ADDRESS.
var ErrNoMappedAddress = errors.New("response has no mapped address")

// Discoverer finds the reflexive transport address by sending a Binding
// request to each configured server in turn until one answers.
type Discoverer struct {
	servers []string
	timeout time.Duration
	kind    transport.Kind
	opts    *Options
}

// NewDiscoverer creates a discoverer with default public STUN servers.
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		servers: []string{
			"stun.l.google.com:19302",
			"stun1.l.google.com:19302",
			"stun.stunprotocol.org:3478",
			"stun.cloudflare.com:3478",
		},
		timeout: 5 * time.Second,
		kind:    transport.KindDatagram,
	}
}

// SetServers replaces the server list ("host:port" entries).
func (d *Discoverer) SetServers(servers []string) {
	d.servers = make([]string, len(servers))
	copy(d.servers, servers)
}

// SetTimeout sets the per-server timeout.
func (d *Discoverer) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// SetKind selects the transport used for queries.
func (d *Discoverer) SetKind(kind transport.Kind) {
	d.kind = kind
}

// SetOptions sets the socket options used for each query.
func (d *Discoverer) SetOptions(opts *Options) {
	d.opts = opts
}

// Discover returns the address the first responsive server reports for
// local. An empty ListenOptions binds an ephemeral port.
func (d *Discoverer) Discover(ctx context.Context, local ListenOptions) (net.Addr, error) {
	if len(d.servers) == 0 {
		return nil, errors.New("no STUN servers configured")
	}

	var lastErr error
	for _, server := range d.servers {
		addr, err := d.query(ctx, server, local)
		if err == nil {
			return addr, nil
		}
		lastErr = err

		logrus.WithFields(logrus.Fields{
			"function": "Discoverer.Discover",
			"server":   server,
			"error":    err.Error(),
		}).Debug("STUN server query failed")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("all STUN servers failed, last error: %w", lastErr)
}

// query asks one server for the mapped address.
func (d *Discoverer) query(ctx context.Context, server string, local ListenOptions) (net.Addr, error) {
	host, portStr, err := net.SplitHostPort(server)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("%w: port %q", ErrInvalidEndpoint, portStr)
	}

	sock, err := New(Endpoint{Host: host, Port: port, Kind: d.kind}, d.opts)
	if err != nil {
		return nil, err
	}
	defer sock.Close()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if _, err := sock.Listen(ctx, local); err != nil {
		return nil, err
	}

	req, _, err := packet.NewBindingRequest()
	if err != nil {
		return nil, err
	}
	resp, err := sock.SendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return MappedAddress(resp, d.kind)
}

// MappedAddress extracts the reflexive address from a Binding response,
// preferring XOR-MAPPED-ADDRESS. An error response becomes an error.
func MappedAddress(resp *packet.Packet, kind transport.Kind) (net.Addr, error) {
	if resp == nil || resp.Message == nil {
		return nil, ErrNoMappedAddress
	}
	if resp.Kind == packet.KindErrorResponse {
		var code stun.ErrorCodeAttribute
		if err := code.GetFrom(resp.Message); err != nil {
			return nil, fmt.Errorf("error response without error code: %w", err)
		}
		return nil, fmt.Errorf("server error %d: %s", code.Code, code.Reason)
	}

	var ip net.IP
	var port int
	var xor stun.XORMappedAddress
	if err := xor.GetFrom(resp.Message); err == nil {
		ip, port = xor.IP, xor.Port
	} else {
		var mapped stun.MappedAddress
		if err := mapped.GetFrom(resp.Message); err != nil {
			return nil, ErrNoMappedAddress
		}
		ip, port = mapped.IP, mapped.Port
	}

	if kind == transport.KindStream {
		return &net.TCPAddr{IP: ip, Port: port}, nil
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}
