package stunsocket

import "sync/atomic"

// Stats is a snapshot of socket traffic counters.
type Stats struct {
	RequestsSent         uint64
	ResponsesMatched     uint64
	UnsolicitedResponses uint64
	TransactionsReplaced uint64
	IndicationsSent      uint64
	IndicationsReceived  uint64
	RawMessages          uint64
	ProtocolErrors       uint64
	TransportErrors      uint64
}

type counters struct {
	requestsSent         atomic.Uint64
	responsesMatched     atomic.Uint64
	unsolicitedResponses atomic.Uint64
	transactionsReplaced atomic.Uint64
	indicationsSent      atomic.Uint64
	indicationsReceived  atomic.Uint64
	rawMessages          atomic.Uint64
	protocolErrors       atomic.Uint64
	transportErrors      atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		RequestsSent:         c.requestsSent.Load(),
		ResponsesMatched:     c.responsesMatched.Load(),
		UnsolicitedResponses: c.unsolicitedResponses.Load(),
		TransactionsReplaced: c.transactionsReplaced.Load(),
		IndicationsSent:      c.indicationsSent.Load(),
		IndicationsReceived:  c.indicationsReceived.Load(),
		RawMessages:          c.rawMessages.Load(),
		ProtocolErrors:       c.protocolErrors.Load(),
		TransportErrors:      c.transportErrors.Load(),
	}
}
