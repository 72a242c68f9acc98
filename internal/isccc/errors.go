package isccc

import "github.com/pkg/errors"

// Codec-level failures, raised while parsing a Value tree or verifying an
// envelope's signature. The packet layer catches these and turns them into
// its own error taxonomy (signature-mismatch, malformed, unknown-type-tag).
var (
	ErrTruncated          = errors.New("isccc: truncated input")
	ErrUnknownTag         = errors.New("isccc: unknown type tag")
	ErrBadVersion         = errors.New("isccc: unsupported envelope version")
	ErrSignatureMismatch  = errors.New("Couldn't validate response with provided key")
	ErrNotATable          = errors.New("isccc: expected a table at top level")
)
