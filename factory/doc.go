// Package factory creates the transport a socket talks through.
//
// The factory maps a transport kind to a concrete implementation, binds or
// connects it, and centralizes the tunables shared by every transport it
// creates. Sockets accept any value with the same Connect method, so tests
// can substitute their own.
//
// # Configuration
//
// The factory supports configuration via environment variables:
//   - STUNSOCKET_HIGH_WATER_MARK: queued stream bytes before Send waits for drain
//   - STUNSOCKET_READ_BUFFER_SIZE: stream read buffer size in bytes
//   - STUNSOCKET_CONNECT_TIMEOUT: integer milliseconds bounding bind/connect
//
// Out-of-range or unparsable values are logged and ignored.
//
// # Usage
//
//	f := factory.NewTransportFactory()
//	tr, local, err := f.Connect(ctx, transport.KindDatagram, "stun.example.net:3478", "", handlers)
//	if err != nil {
//	    return err
//	}
//	defer tr.Close(ctx)
package factory
