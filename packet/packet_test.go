package packet

import (
	"testing"

	"github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Kinds(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		id   uint32
	}{
		{"request", KindRequest, 0x12345678},
		{"success response", KindSuccessResponse, 0x12345678},
		{"error response", KindErrorResponse, 0xAAAAAAAA},
		{"indication", KindIndication, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := New(tt.kind, tt.id)
			require.NoError(t, err)

			pkt, ok := Decode(raw)
			require.True(t, ok)
			assert.Equal(t, tt.kind, pkt.Kind)
			assert.Equal(t, tt.id, pkt.TransactionID)
			assert.Empty(t, pkt.Body)
			assert.NotNil(t, pkt.Message)
		})
	}
}

func TestDecode_NotSTUN(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"http", []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")},
		{"short", []byte{0x00, 0x01, 0x00, 0x00}},
		{"bad cookie", make([]byte, HeaderSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, ok := Decode(tt.data)
			assert.False(t, ok)
			assert.Nil(t, pkt)
		})
	}
}

func TestDecode_TruncatedAttributes(t *testing.T) {
	raw, err := New(KindSuccessResponse, 7, stun.NewSoftware("stunsocket"))
	require.NoError(t, err)

	_, ok := Decode(raw[:len(raw)-2])
	assert.False(t, ok)
}

func TestDecode_BodyIsAttributeSection(t *testing.T) {
	raw, err := New(KindIndication, 9, stun.NewSoftware("stunsocket"))
	require.NoError(t, err)

	pkt, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, raw[HeaderSize:], pkt.Body)
}

func TestDecode_CopiesInput(t *testing.T) {
	raw, err := New(KindSuccessResponse, 42)
	require.NoError(t, err)

	pkt, ok := Decode(raw)
	require.True(t, ok)

	raw[19] ^= 0xFF
	assert.Equal(t, uint32(42), pkt.TransactionID)
	assert.NotEqual(t, raw[19], pkt.Raw[19])
}

func TestDecode_CoalescedMessagesConsumeFirst(t *testing.T) {
	first, err := New(KindSuccessResponse, 1, stun.NewSoftware("stunsocket"))
	require.NoError(t, err)
	second, err := New(KindErrorResponse, 2)
	require.NoError(t, err)

	chunk := append(append([]byte{}, first...), second...)
	pkt, ok := Decode(chunk)
	require.True(t, ok)
	assert.Equal(t, uint32(1), pkt.TransactionID)
	assert.Equal(t, first, pkt.Raw)
	assert.Equal(t, first[HeaderSize:], pkt.Body)

	rest, ok := Decode(chunk[len(pkt.Raw):])
	require.True(t, ok)
	assert.Equal(t, uint32(2), rest.TransactionID)
	assert.Equal(t, KindErrorResponse, rest.Kind)
}

func TestTransactionID(t *testing.T) {
	raw, err := New(KindRequest, 0x12345678)
	require.NoError(t, err)

	id, err := TransactionID(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), id)

	_, err = TransactionID(raw[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestNewBindingRequest(t *testing.T) {
	raw, id, err := NewBindingRequest()
	require.NoError(t, err)

	pkt, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, KindRequest, pkt.Kind)
	assert.Equal(t, id, pkt.TransactionID)
	assert.Equal(t, stun.MethodBinding, pkt.Message.Type.Method)
}

func TestNewBindingIndication(t *testing.T) {
	raw, err := NewBindingIndication()
	require.NoError(t, err)

	pkt, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, KindIndication, pkt.Kind)
}

func TestReply(t *testing.T) {
	raw, id, err := NewBindingRequest()
	require.NoError(t, err)
	req, ok := Decode(raw)
	require.True(t, ok)

	resp, err := Reply(req, KindErrorResponse)
	require.NoError(t, err)

	pkt, ok := Decode(resp)
	require.True(t, ok)
	assert.Equal(t, KindErrorResponse, pkt.Kind)
	assert.Equal(t, id, pkt.TransactionID)
	assert.Equal(t, req.Message.TransactionID, pkt.Message.TransactionID)

	_, err = Reply(req, KindIndication)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(KindUnknown, 1)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "request", KindRequest.String())
	assert.Equal(t, "success_response", KindSuccessResponse.String())
	assert.Equal(t, "error_response", KindErrorResponse.String())
	assert.Equal(t, "indication", KindIndication.String())
	assert.Equal(t, "unknown(0)", KindUnknown.String())
	assert.True(t, KindErrorResponse.IsResponse())
	assert.False(t, KindIndication.IsResponse())
}
