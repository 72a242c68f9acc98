package isccc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildPayload() *Table {
	ctrl := NewTable()
	ctrl.SetString("_ser", "1")
	ctrl.SetString("_tim", "1000")
	ctrl.SetString("_exp", "1060")

	data := NewTable()
	data.SetString("type", "status")

	payload := NewTable()
	payload.SetTable("_ctrl", ctrl)
	payload.SetTable("_data", data)
	return payload
}

func TestEnvelopeRoundTripAndVerify(t *testing.T) {
	key := []byte("super-secret-key")
	frame, err := BuildEnvelope(key, buildPayload())
	require.NoError(t, err)

	env, err := ParseEnvelope(key, frame)
	require.NoError(t, err)
	require.Equal(t, uint32(Version), env.Version)

	data, ok := env.Payload.GetTable("_data")
	require.True(t, ok)
	typ, _ := data.GetString("type")
	require.Equal(t, "status", typ)
}

func TestEnvelopeWrongKeyFailsVerification(t *testing.T) {
	frame, err := BuildEnvelope([]byte("abcd"), buildPayload())
	require.NoError(t, err)

	_, err = ParseEnvelope([]byte("meh"), frame)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestEnvelopeRejectsUnknownVersion(t *testing.T) {
	frame, err := BuildEnvelope([]byte("abcd"), buildPayload())
	require.NoError(t, err)

	// Corrupt the version field (bytes 4:8) to something other than 1.
	frame[7] = 2

	_, err = ParseEnvelope([]byte("abcd"), frame)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestEnvelopeRejectsTruncatedFrame(t *testing.T) {
	frame, err := BuildEnvelope([]byte("abcd"), buildPayload())
	require.NoError(t, err)

	_, err = ParseEnvelope([]byte("abcd"), frame[:len(frame)-5])
	require.ErrorIs(t, err, ErrTruncated)
}
