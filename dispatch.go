package stunsocket

import (
	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
	"github.com/sirupsen/logrus"
)

// handleData is the transport data handler. It runs on the transport's read
// goroutine. A stream read may carry several messages back to back; each is
// dispatched in order and bytes that do not decode go to the observer.
func (s *Socket) handleData(data []byte, from transport.SenderInfo) {
	for len(data) > 0 {
		pkt, ok := s.decoder(data)
		if !ok || pkt == nil {
			s.counters.rawMessages.Add(1)
			s.observer.HandleMessage(data, from)
			return
		}
		s.dispatch(pkt, from)

		n := len(pkt.Raw)
		if n == 0 || n >= len(data) {
			return
		}
		data = data[n:]

		logrus.WithFields(logrus.Fields{
			"function":  "Socket.handleData",
			"socket_id": s.id,
			"consumed":  n,
			"remaining": len(data),
		}).Debug("Chunk holds more bytes after message")
	}
}

func (s *Socket) dispatch(pkt *packet.Packet, from transport.SenderInfo) {
	switch pkt.Kind {
	case packet.KindSuccessResponse, packet.KindErrorResponse:
		s.handleResponse(pkt, from)
	case packet.KindIndication:
		s.counters.indicationsReceived.Add(1)
		s.observer.HandleIndication(pkt, from)
	default:
		s.reportProtocolError(pkt, from)
	}
}

// handleResponse completes the matching transaction. Responses with no
// pending transaction are late, duplicated or unsolicited and are dropped.
func (s *Socket) handleResponse(pkt *packet.Packet, from transport.SenderInfo) {
	tx := s.pending.take(pkt.TransactionID)
	if tx == nil {
		s.counters.unsolicitedResponses.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":       "Socket.handleResponse",
			"socket_id":      s.id,
			"transaction_id": pkt.TransactionID,
			"kind":           pkt.Kind.String(),
			"from":           from.Address,
			"port":           from.Port,
		}).Warn("Dropping response with no pending transaction")
		return
	}

	if tx.resolve(pkt) {
		s.counters.responsesMatched.Add(1)
	}

	logrus.WithFields(logrus.Fields{
		"function":       "Socket.handleResponse",
		"socket_id":      s.id,
		"transaction_id": pkt.TransactionID,
		"kind":           pkt.Kind.String(),
		"rtt":            tx.RTT().String(),
	}).Debug("Transaction completed")
}

func (s *Socket) reportProtocolError(pkt *packet.Packet, from transport.SenderInfo) {
	s.counters.protocolErrors.Add(1)
	err := &ProtocolError{Kind: pkt.Kind, TransactionID: pkt.TransactionID, From: from}

	logrus.WithFields(logrus.Fields{
		"function":       "Socket.reportProtocolError",
		"socket_id":      s.id,
		"transaction_id": pkt.TransactionID,
		"kind":           pkt.Kind.String(),
		"from":           from.Address,
	}).Error("Unexpected message kind")

	s.observer.HandleError(err)
}

// handleTransportError is the transport error handler. The socket becomes
// failed; pending transactions are rejected with the failure, or the
// observer is told when there are none.
func (s *Socket) handleTransportError(err error) {
	s.mu.Lock()
	if s.state == socketClosed {
		s.mu.Unlock()
		return
	}
	failure := &SocketError{Op: "transport", Remote: s.remote.Address(), Err: err}
	s.state = socketFailed
	s.failure = failure
	s.mu.Unlock()

	s.counters.transportErrors.Add(1)
	pending := s.pending.drain()

	logrus.WithFields(logrus.Fields{
		"function":  "Socket.handleTransportError",
		"socket_id": s.id,
		"remote":    s.remote.Address(),
		"pending":   len(pending),
		"error":     err.Error(),
	}).Error("Transport failed")

	if len(pending) == 0 {
		s.observer.HandleError(failure)
		return
	}
	for _, tx := range pending {
		tx.reject(failure)
	}
}
