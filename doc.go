// Package stunsocket correlates STUN requests with their responses over a
// datagram or stream transport.
//
// A Socket talks to one remote endpoint. Outbound requests are registered
// under the 32-bit transaction id found at byte offset 16 of the encoded
// message, and the first success or error response carrying that id
// completes the request. Indications, undecodable bytes and protocol errors
// are handed to an Observer.
//
// # Getting Started
//
//	sock, err := stunsocket.New(stunsocket.Endpoint{
//	    Host: "stun.example.net",
//	    Port: 3478,
//	    Kind: transport.KindDatagram,
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sock.Close()
//
//	if _, err := sock.Listen(ctx, stunsocket.ListenOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//
//	req, _, err := packet.NewBindingRequest()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
//	defer cancel()
//	resp, err := sock.SendRequest(ctx, req)
//
// # Observing Traffic
//
// Non-transactional traffic goes to the Observer set in Options. Use
// ObserverFuncs to supply only the callbacks you need:
//
//	opts := stunsocket.NewOptions()
//	opts.Observer = stunsocket.ObserverFuncs{
//	    OnIndication: func(pkt *packet.Packet, from transport.SenderInfo) {
//	        // keepalive or data indication
//	    },
//	    OnError: func(err error) {
//	        // *ProtocolError or a transport failure
//	    },
//	}
//
// Observer methods run on the transport's read goroutine in arrival order.
//
// # Transactions
//
// SendRequest blocks until the response arrives or ctx ends. BeginRequest
// returns a Transaction handle after the send so callers can pipeline
// requests and wait later. A response for an id with no pending
// transaction is logged and dropped. Reusing the id of a pending
// transaction rejects the earlier one with ErrTransactionReplaced.
//
// # Failures
//
// When the transport fails every pending transaction is rejected with a
// *SocketError wrapping the cause. If nothing was pending, the failure is
// reported to Observer.HandleError instead. The socket is unusable
// afterwards. Close rejects pending transactions with ErrSocketClosed.
//
// # Thread Safety
//
// Socket is safe for concurrent use.
package stunsocket
