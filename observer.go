package stunsocket

import (
	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
	"github.com/sirupsen/logrus"
)

// Observer receives inbound traffic that does not complete a transaction.
// Methods are called on the transport's read goroutine, one at a time, in
// arrival order. They must not block and must not call Socket.Close.
type Observer interface {
	// HandleIndication receives a decoded indication.
	HandleIndication(pkt *packet.Packet, from transport.SenderInfo)

	// HandleMessage receives bytes the decoder did not recognise.
	HandleMessage(data []byte, from transport.SenderInfo)

	// HandleError receives protocol errors and transport failures that no
	// pending transaction absorbed.
	HandleError(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	OnIndication func(pkt *packet.Packet, from transport.SenderInfo)
	OnMessage    func(data []byte, from transport.SenderInfo)
	OnError      func(err error)
}

// HandleIndication calls OnIndication if set.
func (f ObserverFuncs) HandleIndication(pkt *packet.Packet, from transport.SenderInfo) {
	if f.OnIndication != nil {
		f.OnIndication(pkt, from)
	}
}

// HandleMessage calls OnMessage if set.
func (f ObserverFuncs) HandleMessage(data []byte, from transport.SenderInfo) {
	if f.OnMessage != nil {
		f.OnMessage(data, from)
	}
}

// HandleError calls OnError if set.
func (f ObserverFuncs) HandleError(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// logObserver is used when no observer is configured.
type logObserver struct{}

func (logObserver) HandleIndication(pkt *packet.Packet, from transport.SenderInfo) {
	logrus.WithFields(logrus.Fields{
		"function":       "logObserver.HandleIndication",
		"transaction_id": pkt.TransactionID,
		"from":           from.Address,
	}).Debug("Indication received without observer")
}

func (logObserver) HandleMessage(data []byte, from transport.SenderInfo) {
	logrus.WithFields(logrus.Fields{
		"function": "logObserver.HandleMessage",
		"size":     len(data),
		"from":     from.Address,
	}).Debug("Raw message received without observer")
}

func (logObserver) HandleError(err error) {
	logrus.WithFields(logrus.Fields{
		"function": "logObserver.HandleError",
		"error":    err.Error(),
	}).Error("Socket error without observer")
}
