package rndc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testKey = "c3VwZXJzZWNyZXQ=" // base64("supersecret")

func TestPacketRoundTrip(t *testing.T) {
	nonce := uint64(42)
	p := NewPacket(testKey, map[string]string{"type": "status"}, &nonce)

	frame, err := p.ToBytes()
	require.NoError(t, err)

	parsed := &Packet{Key: testKey}
	require.NoError(t, parsed.Parse(frame))

	n, ok := parsed.NonceValue()
	require.True(t, ok)
	require.Equal(t, nonce, n)
	require.Equal(t, "status", parsed.Type())
}

func TestPacketMissingTypeSerializesAsNull(t *testing.T) {
	p := NewPacket(testKey, nil, nil)
	frame, err := p.ToBytes()
	require.NoError(t, err)

	parsed := &Packet{Key: testKey}
	require.NoError(t, parsed.Parse(frame))
	require.Equal(t, "", parsed.Type())
}

func TestPacketEmptyTypeSerializesAsNull(t *testing.T) {
	p := NewPacket(testKey, map[string]string{"type": ""}, nil)
	frame, err := p.ToBytes()
	require.NoError(t, err)

	parsed := &Packet{Key: testKey}
	require.NoError(t, parsed.Parse(frame))
	require.Equal(t, "", parsed.Type())
}

func TestPacketWrongKeyFailsSignatureVerification(t *testing.T) {
	p := NewPacket(testKey, map[string]string{"type": "status"}, nil)
	frame, err := p.ToBytes()
	require.NoError(t, err)

	parsed := &Packet{Key: "d3JvbmdrZXk="}
	err = parsed.Parse(frame)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestPacketTruncatedFrameIsMalformed(t *testing.T) {
	p := NewPacket(testKey, map[string]string{"type": "status"}, nil)
	frame, err := p.ToBytes()
	require.NoError(t, err)

	parsed := &Packet{Key: testKey}
	err = parsed.Parse(frame[:len(frame)-4])
	require.Error(t, err)
}

func TestPacketSerialsAreMonotonic(t *testing.T) {
	p1 := NewPacket(testKey, nil, nil)
	p2 := NewPacket(testKey, nil, nil)
	require.Less(t, p1.serial, p2.serial)
}

func TestPacketSurfacesServerError(t *testing.T) {
	p := NewPacket(testKey, map[string]string{"err": "unknown command"}, nil)
	frame, err := p.ToBytes()
	require.NoError(t, err)

	parsed := &Packet{Key: testKey}
	err = parsed.Parse(frame)
	require.Error(t, err)
	require.Equal(t, "unknown command", parsed.ErrText())

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "unknown command", serverErr.Text)
}

func TestPacketTextAccessor(t *testing.T) {
	p := NewPacket(testKey, map[string]string{"text": "server is up"}, nil)
	frame, err := p.ToBytes()
	require.NoError(t, err)

	parsed := &Packet{Key: testKey}
	require.NoError(t, parsed.Parse(frame))
	require.Equal(t, "server is up", parsed.Text())
}
