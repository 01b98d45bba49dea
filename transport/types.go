package transport

import (
	"context"
	"net"
)

// Kind identifies the wire kind of a transport.
type Kind uint8

const (
	KindDatagram Kind = iota + 1
	KindStream
)

// String returns the network name used in addresses and logs.
func (k Kind) String() string {
	switch k {
	case KindDatagram:
		return "udp"
	case KindStream:
		return "tcp"
	default:
		return "unknown"
	}
}

// ParseKind maps a network name ("udp", "tcp") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "udp", "udp4", "udp6", "datagram":
		return KindDatagram, nil
	case "tcp", "tcp4", "tcp6", "stream":
		return KindStream, nil
	default:
		return 0, &OpError{Op: "parse", Addr: s, Err: ErrUnknownKind}
	}
}

// Family is the IP version of a peer address.
type Family string

const (
	FamilyIPv4 Family = "IPv4"
	FamilyIPv6 Family = "IPv6"
)

// SenderInfo describes where an inbound chunk came from.
type SenderInfo struct {
	Address string
	Port    int
	Family  Family
	// Size is the byte length of the delivered chunk.
	Size int
}

// DataHandler receives inbound bytes. The slice is owned by the handler.
type DataHandler func(data []byte, from SenderInfo)

// ErrorHandler receives a transport failure. It is called at most once per
// transport.
type ErrorHandler func(err error)

// Handlers bundles the two inbound callbacks every transport requires.
type Handlers struct {
	OnData  DataHandler
	OnError ErrorHandler
}

func (h Handlers) validate() error {
	if h.OnData == nil || h.OnError == nil {
		return ErrMissingHandler
	}
	return nil
}

// Transport is the capability set shared by the datagram and stream
// implementations. A transport talks to exactly one remote endpoint.
//
//go:generate go tool mockgen -destination=./mocks/transport_mock.go -package=mocks . Transport
type Transport interface {
	// Send hands data to the OS. It returns once the write was accepted.
	Send(ctx context.Context, data []byte) error

	// Close releases the underlying resource and waits for it to terminate.
	Close(ctx context.Context) error

	// OnData replaces the inbound data handler.
	OnData(h DataHandler)

	// OnError replaces the failure handler.
	OnError(h ErrorHandler)

	// LocalAddr returns the bound local address, or nil before bind/connect.
	LocalAddr() net.Addr

	// Kind reports the wire kind.
	Kind() Kind

	// State reports the lifecycle state.
	State() State
}

// senderInfoFromAddr builds a SenderInfo for a chunk of size n.
func senderInfoFromAddr(addr net.Addr, n int) SenderInfo {
	info := SenderInfo{Size: n}

	var ip net.IP
	switch a := addr.(type) {
	case *net.UDPAddr:
		ip, info.Port = a.IP, a.Port
	case *net.TCPAddr:
		ip, info.Port = a.IP, a.Port
	default:
		if addr != nil {
			info.Address = addr.String()
		}
		return info
	}

	info.Address = ip.String()
	info.Family = FamilyIPv6
	if ip.To4() != nil {
		info.Family = FamilyIPv4
	}
	return info
}
