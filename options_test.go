package stunsocket

import (
	"testing"

	"github.com/opd-ai/stunsocket/factory"
	"github.com/opd-ai/stunsocket/transport"
	"github.com/stretchr/testify/assert"
)

func TestEndpoint_Address(t *testing.T) {
	assert.Equal(t, "192.0.2.1:3478", Endpoint{Host: "192.0.2.1", Port: 3478}.Address())
	assert.Equal(t, "[2001:db8::1]:3478", Endpoint{Host: "2001:db8::1", Port: 3478}.Address())
}

func TestListenOptions_Address(t *testing.T) {
	assert.Equal(t, "", ListenOptions{}.address())
	assert.Equal(t, ":5000", ListenOptions{Port: 5000}.address())
	assert.Equal(t, "127.0.0.1:0", ListenOptions{Address: "127.0.0.1"}.address())
}

func TestNewOptions(t *testing.T) {
	o := NewOptions()
	assert.NotNil(t, o.Decoder)
	assert.IsType(t, logObserver{}, o.Observer)
	assert.IsType(t, &factory.TransportFactory{}, o.Connector)
	assert.IsType(t, RealTimeProvider{}, o.TimeProvider)
}

func TestOptions_WithDefaultsKeepsCaller(t *testing.T) {
	obs := &recordingObserver{}
	o := &Options{Observer: obs}
	n := o.withDefaults()

	assert.Same(t, obs, n.Observer)
	assert.NotNil(t, n.Decoder)
	assert.NotNil(t, n.Connector)
	assert.Nil(t, o.Decoder, "caller options must not be modified")
}

func TestErrors_Format(t *testing.T) {
	serr := &SocketError{Op: "send", Remote: "192.0.2.1:3478", Err: ErrSocketClosed}
	assert.Equal(t, "socket send 192.0.2.1:3478: socket closed", serr.Error())
	assert.ErrorIs(t, serr, ErrSocketClosed)

	perr := &ProtocolError{TransactionID: 0x1234, From: transport.SenderInfo{Address: "192.0.2.1", Port: 3478}}
	assert.Equal(t, "unexpected message kind: unknown(0) (transaction 0x00001234) from 192.0.2.1:3478", perr.Error())
}
