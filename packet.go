package rndc

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/dnscontrol/rndc/internal/isccc"
	"github.com/pkg/errors"
)

// Packet is one framed RNDC message: an HMAC key, a control sub-table
// (_ctrl) and a data sub-table (_data), wrapped by internal/isccc to
// produce or consume on-wire bytes.
//
// A Packet is cheap and ephemeral -- Session builds one per outbound
// message and parses one per inbound message; nothing about it survives
// past the state transition that created it except the fields callers
// read back out (NonceValue, Text, ErrText).
type Packet struct {
	// Key is the Base64-encoded HMAC-MD5 key material. It is decoded once,
	// lazily, on first sign or verify.
	Key string
	// Data seeds the _data sub-table. A missing or empty "type" entry
	// serializes as the literal 4-byte "null"; every other entry is
	// carried verbatim, including an explicit empty string.
	Data map[string]string
	// Nonce, if non-nil, is echoed into _ctrl._nonce -- set on the client's
	// second (command) packet, using the value read from the server's
	// first reply.
	Nonce *uint64
	// Version is set to 1 by NewPacket, the only version this codec
	// speaks. ToBytes always writes envelope version 1 (isccc.Version);
	// a different value here does not change what goes on the wire.
	Version uint32
	// MaxSkew, when non-zero, makes Parse reject a packet when the current
	// time is more than MaxSkew past the packet's _exp. Zero (the default)
	// never checks.
	MaxSkew time.Duration

	serial     uint32
	decodedKey []byte

	parsedCtrl *isccc.Table
	parsedData *isccc.Table
	parseErr   error
}

// NewPacket creates a Packet ready to be serialized. serial is assigned
// immediately from the process-wide counter.
func NewPacket(key string, data map[string]string, nonce *uint64) *Packet {
	return &Packet{
		Key:     key,
		Data:    data,
		Nonce:   nonce,
		Version: 1,
		serial:  nextSerial(),
	}
}

func (p *Packet) decodeKey() ([]byte, error) {
	if p.decodedKey != nil {
		return p.decodedKey, nil
	}
	b, err := base64.StdEncoding.DecodeString(p.Key)
	if err != nil {
		return nil, errors.Wrapf(err, "rndc: key is not valid base64")
	}
	p.decodedKey = b
	return b, nil
}

func (p *Packet) buildDataTable() *isccc.Table {
	dt := isccc.NewTable()

	typeVal, hasType := p.Data["type"]
	if hasType && typeVal != "" {
		dt.SetString("type", typeVal)
	} else {
		dt.Set("type", isccc.Binary(nil))
	}

	for k, v := range p.Data {
		if k == "type" {
			continue
		}
		dt.SetString(k, v)
	}
	return dt
}

// ToBytes serializes the packet: it stamps _ctrl._tim/_exp with the
// current time, signs the canonical _ctrl+_data payload, and returns the
// full envelope.
func (p *Packet) ToBytes() ([]byte, error) {
	key, err := p.decodeKey()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	now := time.Now().Unix()

	ctrl := isccc.NewTable()
	ctrl.SetString("_ser", strconv.FormatUint(uint64(p.serial), 10))
	ctrl.SetString("_tim", strconv.FormatInt(now, 10))
	ctrl.SetString("_exp", strconv.FormatInt(now+60, 10))
	if p.Nonce != nil {
		ctrl.SetString("_nonce", strconv.FormatUint(*p.Nonce, 10))
	}

	version := p.Version
	if version == 0 {
		version = 1
	}

	payload := isccc.NewTable()
	payload.SetTable("_ctrl", ctrl)
	payload.SetTable("_data", p.buildDataTable())

	frame, err := isccc.BuildEnvelope(key, payload)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return frame, nil
}

// Parse populates the packet's _ctrl and _data from a received frame,
// verifying the HMAC-MD5 signature against Key. On success, NonceValue,
// Text and ErrText become readable; on failure, Error() describes what went
// wrong.
func (p *Packet) Parse(frame []byte) error {
	key, err := p.decodeKey()
	if err != nil {
		p.parseErr = err
		return errors.WithStack(err)
	}

	env, err := isccc.ParseEnvelope(key, frame)
	if err != nil {
		p.parseErr = classifyCodecError(err)
		return p.parseErr
	}

	ctrl, _ := env.Payload.GetTable("_ctrl")
	data, _ := env.Payload.GetTable("_data")
	p.parsedCtrl = ctrl
	p.parsedData = data

	if p.MaxSkew > 0 {
		if expired, err := p.isExpired(); err != nil {
			p.parseErr = err
			return err
		} else if expired {
			p.parseErr = ErrExpired
			return ErrExpired
		}
	}

	if errText := p.ErrText(); errText != "" {
		p.parseErr = &ServerError{Text: errText}
		return p.parseErr
	}

	return nil
}

func (p *Packet) isExpired() (bool, error) {
	if p.parsedCtrl == nil {
		return false, nil
	}
	expStr, ok := p.parsedCtrl.GetString("_exp")
	if !ok {
		return false, nil
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return false, errors.Wrapf(err, "rndc: malformed _exp field")
	}
	return time.Now().Unix() > exp+int64(p.MaxSkew/time.Second), nil
}

// classifyCodecError maps an internal/isccc error onto this package's
// Packet-level error taxonomy.
func classifyCodecError(err error) error {
	switch errors.Cause(err) {
	case isccc.ErrSignatureMismatch:
		return ErrSignatureMismatch
	case isccc.ErrUnknownTag:
		return ErrUnknownTypeTag
	default:
		return ErrMalformed
	}
}

// NonceValue returns the parsed _ctrl._nonce, if present.
func (p *Packet) NonceValue() (uint64, bool) {
	if p.parsedCtrl == nil {
		return 0, false
	}
	s, ok := p.parsedCtrl.GetString("_nonce")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Text returns the parsed _data.text, or "" if absent.
func (p *Packet) Text() string {
	if p.parsedData == nil {
		return ""
	}
	s, _ := p.parsedData.GetString("text")
	return s
}

// ErrText returns the parsed _data.err, or "" if absent.
func (p *Packet) ErrText() string {
	if p.parsedData == nil {
		return ""
	}
	s, _ := p.parsedData.GetString("err")
	return s
}

// Type returns the parsed _data.type, or "" if absent/null.
func (p *Packet) Type() string {
	if p.parsedData == nil {
		return ""
	}
	s, _ := p.parsedData.GetString("type")
	if s == "null" {
		return ""
	}
	return s
}

// Error returns the human-readable parse error, or "" if Parse succeeded.
func (p *Packet) Error() string {
	if p.parseErr == nil {
		return ""
	}
	return p.parseErr.Error()
}
