package stunsocket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/stunsocket/packet"
	"github.com/opd-ai/stunsocket/transport"
	"github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mappingServer answers Binding requests with the sender's address in
// XOR-MAPPED-ADDRESS.
func mappingServer(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req, ok := packet.Decode(buf[:n])
			if !ok || req.Kind != packet.KindRequest {
				continue
			}
			udp := from.(*net.UDPAddr)
			resp, err := packet.Reply(req, packet.KindSuccessResponse, &stun.XORMappedAddress{IP: udp.IP, Port: udp.Port})
			if err != nil {
				return
			}
			conn.WriteTo(resp, from)
		}
	}()
	return conn.LocalAddr().String()
}

func TestDiscoverer_FallsBackToNextServer(t *testing.T) {
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	d := NewDiscoverer()
	d.SetServers([]string{silent.LocalAddr().String(), mappingServer(t)})
	d.SetTimeout(200 * time.Millisecond)

	addr, err := d.Discover(context.Background(), ListenOptions{Address: "127.0.0.1"})
	require.NoError(t, err)

	udp, ok := addr.(*net.UDPAddr)
	require.True(t, ok)
	assert.True(t, udp.IP.Equal(net.IPv4(127, 0, 0, 1)))
	assert.NotZero(t, udp.Port)
}

func TestDiscoverer_AllFail(t *testing.T) {
	d := NewDiscoverer()
	d.SetServers([]string{"not-a-server"})

	_, err := d.Discover(context.Background(), ListenOptions{})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	d.SetServers(nil)
	_, err = d.Discover(context.Background(), ListenOptions{})
	assert.Error(t, err)
}

func TestMappedAddress(t *testing.T) {
	reqRaw, _, err := packet.NewBindingRequest()
	require.NoError(t, err)
	req, ok := packet.Decode(reqRaw)
	require.True(t, ok)

	xorRaw, err := packet.Reply(req, packet.KindSuccessResponse, &stun.XORMappedAddress{IP: net.IPv4(203, 0, 113, 7), Port: 54321})
	require.NoError(t, err)
	xorResp, _ := packet.Decode(xorRaw)

	got, err := MappedAddress(xorResp, transport.KindDatagram)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7:54321", got.String())

	plainRaw, err := packet.Reply(req, packet.KindSuccessResponse, &stun.MappedAddress{IP: net.IPv4(198, 51, 100, 2), Port: 4000})
	require.NoError(t, err)
	plainResp, _ := packet.Decode(plainRaw)

	got, err = MappedAddress(plainResp, transport.KindStream)
	require.NoError(t, err)
	assert.IsType(t, &net.TCPAddr{}, got)
	assert.Equal(t, "198.51.100.2:4000", got.String())

	errRaw, err := packet.Reply(req, packet.KindErrorResponse, stun.CodeUnauthorized)
	require.NoError(t, err)
	errResp, _ := packet.Decode(errRaw)
	_, err = MappedAddress(errResp, transport.KindDatagram)
	assert.ErrorContains(t, err, "server error 401")

	emptyRaw, err := packet.Reply(req, packet.KindSuccessResponse)
	require.NoError(t, err)
	emptyResp, _ := packet.Decode(emptyRaw)
	_, err = MappedAddress(emptyResp, transport.KindDatagram)
	assert.ErrorIs(t, err, ErrNoMappedAddress)

	_, err = MappedAddress(nil, transport.KindDatagram)
	assert.ErrorIs(t, err, ErrNoMappedAddress)
}
