package rndc

import "github.com/pkg/errors"

// Packet-level error taxonomy. Codec failures from
// internal/isccc are wrapped into one of these at the Packet boundary so
// callers never need to know about the wire codec directly.
var (
	// ErrSignatureMismatch means the envelope's HMAC-MD5 did not verify
	// against the key the caller supplied.
	ErrSignatureMismatch = errors.New("Couldn't validate response with provided key")
	// ErrMalformed covers truncated input and any other structurally
	// invalid frame that isn't specifically an unknown type tag.
	ErrMalformed = errors.New("rndc: malformed packet")
	// ErrUnknownTypeTag means the frame used a type tag this codec does
	// not understand.
	ErrUnknownTypeTag = errors.New("rndc: unknown type tag")
	// ErrExpired is returned when MaxSkew checking is enabled and a parsed
	// packet's _tim/_exp fields indicate it has expired. This check is an
	// optional, conservative extension -- see Packet.MaxSkew.
	ErrExpired = errors.New("rndc: packet expired")
)

// ServerError wraps the text of a _data.err field surfaced by the remote
// end.
type ServerError struct {
	Text string
}

func (e *ServerError) Error() string {
	return e.Text
}
