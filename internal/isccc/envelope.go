package isccc

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // protocol-mandated: RNDC v1 authenticates with HMAC-MD5, not a choice this codec gets to make
	"encoding/base64"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Version is the only envelope version this codec speaks.
const Version = 1

// Envelope is a parsed on-wire packet: the version, the auth table's
// signature, and the payload table (the merged _ctrl/_data entries).
type Envelope struct {
	Version   uint32
	Signature string // base64 HMAC-MD5, as read from _auth.hmd5
	Payload   *Table
}

// Sign computes Base64(HMAC-MD5(key, payload)), the signature carried in
// _auth.hmd5.
func Sign(key []byte, payload []byte) string {
	mac := hmac.New(md5.New, key)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BuildEnvelope serializes payload (the merged _ctrl/_data table) in
// canonical header-less form, signs it with key, and wraps the result in
// the full four-part wire frame: length, version, auth table, payload
// table.
func BuildEnvelope(key []byte, payload *Table) ([]byte, error) {
	payloadBytes, err := payload.MarshalNoHeader()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sig := Sign(key, payloadBytes)

	auth := NewTable()
	authInner := NewTable()
	authInner.SetString("hmd5", sig)
	auth.SetTable("_auth", authInner)

	authBytes, err := auth.MarshalNoHeader()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	body := make([]byte, 0, 4+len(authBytes)+len(payloadBytes))
	versionBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(versionBuf, Version)
	body = append(body, versionBuf...)
	body = append(body, authBytes...)
	body = append(body, payloadBytes...)

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// ParseEnvelope parses a full wire frame (length + version + auth table +
// payload table), verifies the HMAC-MD5 signature against key, and returns
// the payload table on success.
//
// The auth table's end is found by parsing its single "_auth" entry
// explicitly (UnmarshalSingleEntryTable) rather than assuming a fixed
// byte offset, so a differently sized _auth entry is still delimited
// correctly. Only one auth-table entry is read; a second entry would be
// taken as the start of the payload.
func ParseEnvelope(key []byte, frame []byte) (*Envelope, error) {
	if len(frame) < 8 {
		return nil, errors.WithStack(ErrTruncated)
	}

	total := binary.BigEndian.Uint32(frame[0:4])
	if uint64(4)+uint64(total) > uint64(len(frame)) {
		return nil, errors.WithStack(ErrTruncated)
	}
	body := frame[4 : 4+total]

	version := binary.BigEndian.Uint32(body[0:4])
	if version != Version {
		return nil, errors.WithStack(ErrBadVersion)
	}
	rest := body[4:]

	authTable, authLen, err := UnmarshalSingleEntryTable(rest)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	payloadBytes := rest[authLen:]

	authInner, ok := authTable.GetTable("_auth")
	if !ok {
		return nil, errors.WithStack(ErrNotATable)
	}
	sig, ok := authInner.GetString("hmd5")
	if !ok {
		return nil, errors.WithStack(ErrSignatureMismatch)
	}

	expected := Sign(key, payloadBytes)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, errors.WithStack(ErrSignatureMismatch)
	}

	payload, err := UnmarshalPayloadNoHeader(payloadBytes)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Envelope{Version: version, Signature: sig, Payload: payload}, nil
}
