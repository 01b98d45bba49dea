package packet

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/pion/stun"
)

// New encodes a Binding message of the given kind whose correlated
// transaction id is id. The remaining 64 bits of the STUN transaction id are
// random. Extra setters (attributes) are applied after the header.
func New(kind Kind, id uint32, setters ...stun.Setter) ([]byte, error) {
	class, err := classFromKind(kind)
	if err != nil {
		return nil, err
	}

	var tid [stun.TransactionIDSize]byte
	if _, err := rand.Read(tid[:stun.TransactionIDSize-4]); err != nil {
		return nil, fmt.Errorf("failed to generate transaction ID: %w", err)
	}
	binary.BigEndian.PutUint32(tid[stun.TransactionIDSize-4:], id)

	all := make([]stun.Setter, 0, len(setters)+2)
	all = append(all, stun.NewTransactionIDSetter(tid), stun.NewType(stun.MethodBinding, class))
	all = append(all, setters...)

	m, err := stun.Build(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", kind, err)
	}
	return m.Raw, nil
}

// NewBindingRequest encodes a Binding request with a random transaction id
// and returns it together with its correlated id.
func NewBindingRequest(setters ...stun.Setter) ([]byte, uint32, error) {
	all := append([]stun.Setter{stun.TransactionID, stun.BindingRequest}, setters...)
	m, err := stun.Build(all...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build binding request: %w", err)
	}

	id, err := TransactionID(m.Raw)
	if err != nil {
		return nil, 0, err
	}
	return m.Raw, id, nil
}

// NewBindingIndication encodes a Binding indication, commonly used as a
// keepalive.
func NewBindingIndication(setters ...stun.Setter) ([]byte, error) {
	all := append([]stun.Setter{stun.TransactionID, stun.NewType(stun.MethodBinding, stun.ClassIndication)}, setters...)
	m, err := stun.Build(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to build binding indication: %w", err)
	}
	return m.Raw, nil
}

// Reply encodes a response to req echoing its full transaction id. Used by
// the demo server and tests.
func Reply(req *Packet, kind Kind, setters ...stun.Setter) ([]byte, error) {
	if req == nil || req.Message == nil {
		return nil, fmt.Errorf("%w: request has no STUN message", ErrUnknownKind)
	}
	if !kind.IsResponse() {
		return nil, fmt.Errorf("%w: %s is not a response", ErrUnknownKind, kind)
	}
	class, _ := classFromKind(kind)

	all := make([]stun.Setter, 0, len(setters)+2)
	all = append(all, stun.NewTransactionIDSetter(req.Message.TransactionID), stun.NewType(req.Message.Type.Method, class))
	all = append(all, setters...)

	m, err := stun.Build(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", kind, err)
	}
	return m.Raw, nil
}
