// Package packet adapts STUN wire messages to the small view the socket layer
// needs: a message kind and a 32-bit transaction id.
//
// The socket never inspects attributes. It only asks a Decoder whether a chunk
// of bytes is a STUN message and, if so, which class it belongs to. Decode is
// the default Decoder and is backed by github.com/pion/stun.
//
// Example:
//
//	msg, id, err := packet.NewBindingRequest()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pkt, ok := packet.Decode(msg)
//	// ok == true, pkt.Kind == packet.KindRequest, pkt.TransactionID == id
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/stun"
)

const (
	// HeaderSize is the fixed STUN header length.
	HeaderSize = 20

	// transactionIDOffset is where the correlated 32 bits of the 96-bit
	// transaction id start.
	transactionIDOffset = 16
)

var (
	// ErrMessageTooShort is returned when an outbound message cannot carry a
	// transaction id.
	ErrMessageTooShort = errors.New("message shorter than STUN header")

	// ErrUnknownKind is returned when a Kind has no STUN class.
	ErrUnknownKind = errors.New("unknown packet kind")
)

// Kind identifies the class of a decoded packet.
type Kind uint8

const (
	// KindUnknown is never produced by Decode; custom decoders may return it.
	KindUnknown Kind = iota
	KindRequest
	KindSuccessResponse
	KindErrorResponse
	KindIndication
)

// String returns a human readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindSuccessResponse:
		return "success_response"
	case KindErrorResponse:
		return "error_response"
	case KindIndication:
		return "indication"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// IsResponse reports whether the kind completes a transaction.
func (k Kind) IsResponse() bool {
	return k == KindSuccessResponse || k == KindErrorResponse
}

// Packet is a decoded inbound message.
type Packet struct {
	Kind          Kind
	TransactionID uint32
	// Body is the attribute section following the header.
	Body []byte
	// Raw holds a private copy of the full message. When data holds more
	// than one message, Raw covers only the first and len(Raw) is the
	// number of bytes consumed.
	Raw []byte
	// Message is the pion/stun view of Raw. Nil for packets built by
	// custom decoders.
	Message *stun.Message
}

// Decoder turns raw bytes into a Packet. It returns false when the bytes are
// not a message it understands. A decoder that sets Raw to a prefix of data
// lets the socket dispatch the rest as further messages.
type Decoder func(data []byte) (*Packet, bool)

// Decode is the default Decoder.
func Decode(data []byte) (*Packet, bool) {
	if !stun.IsMessage(data) {
		return nil, false
	}

	m := new(stun.Message)
	if err := stun.Decode(data, m); err != nil {
		return nil, false
	}

	// stun.Decode keeps any bytes past the first message in m.Raw.
	m.Raw = m.Raw[:HeaderSize+int(m.Length)]

	return &Packet{
		Kind:          kindFromClass(m.Type.Class),
		TransactionID: binary.BigEndian.Uint32(m.TransactionID[stun.TransactionIDSize-4:]),
		Body:          m.Raw[HeaderSize:],
		Raw:           m.Raw,
		Message:       m,
	}, true
}

// TransactionID extracts the correlated transaction id from an encoded
// outbound message.
func TransactionID(msg []byte) (uint32, error) {
	if len(msg) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrMessageTooShort, len(msg))
	}
	return binary.BigEndian.Uint32(msg[transactionIDOffset:HeaderSize]), nil
}

func kindFromClass(c stun.MessageClass) Kind {
	switch c {
	case stun.ClassRequest:
		return KindRequest
	case stun.ClassSuccessResponse:
		return KindSuccessResponse
	case stun.ClassErrorResponse:
		return KindErrorResponse
	case stun.ClassIndication:
		return KindIndication
	default:
		return KindUnknown
	}
}

func classFromKind(k Kind) (stun.MessageClass, error) {
	switch k {
	case KindRequest:
		return stun.ClassRequest, nil
	case KindSuccessResponse:
		return stun.ClassSuccessResponse, nil
	case KindErrorResponse:
		return stun.ClassErrorResponse, nil
	case KindIndication:
		return stun.ClassIndication, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
}
