// Package isccc implements the ISC Command Channel wire format: a small
// tagged-variant serialization (binary strings, ordered tables, lists) used
// to carry the RNDC control protocol's key/value tree, plus the signed
// envelope that frames a complete on-wire packet.
//
// Every value is self-delimiting -- a 1-byte type tag plus a 4-byte
// length precede the body -- so a reader never needs an out-of-band
// length to know where one value ends and the next begins.
package isccc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Kind tags the type of an on-wire Value.
type Kind uint8

const (
	// KindString is accepted on read but never produced; this codec
	// treats it identically to KindBinary.
	KindString Kind = 0x00
	KindBinary Kind = 0x01
	KindTable  Kind = 0x02
	KindList   Kind = 0x03
)

// nullBinary is the literal 4-byte ASCII placeholder written for a Binary
// value whose source data is absent.
var nullBinary = []byte("null")

// Value is the ISCCC tagged union: exactly one of Bin, Tbl or List is
// meaningful, selected by Kind. There is no integer type on this wire --
// numbers travel as the ASCII decimal digits of a Binary value.
type Value struct {
	Kind Kind
	Bin  []byte
	Tbl  *Table
	List []Value
}

// Binary wraps raw bytes as a Value. A nil slice serializes as the literal
// "null", matching the source's handling of an absent value.
func Binary(b []byte) Value {
	return Value{Kind: KindBinary, Bin: b}
}

// String wraps the bytes of s as a Value.
func String(s string) Value {
	return Value{Kind: KindBinary, Bin: []byte(s)}
}

// TableValue wraps t as a Value.
func TableValue(t *Table) Value {
	return Value{Kind: KindTable, Tbl: t}
}

// ListValue wraps items as a Value.
func ListValue(items []Value) Value {
	return Value{Kind: KindList, List: items}
}

// IsNull reports whether v is a Binary value with no backing bytes, i.e.
// what will serialize as the 4-byte literal "null".
func (v Value) IsNull() bool {
	return v.Kind == KindBinary && v.Bin == nil
}

// Str returns the Binary payload as a string. It is the accessor used
// throughout the packet layer, since every scalar on this wire -- command
// names, response text, error strings, even numbers -- is carried as
// Binary.
func (v Value) Str() string {
	return string(v.Bin)
}

// Marshal serializes v in full form: a 1-byte type tag, a 4-byte
// big-endian length, then that many bytes of body.
func (v Value) Marshal() ([]byte, error) {
	body, err := v.marshalBody()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out := make([]byte, 5+len(body))
	out[0] = byte(v.Kind)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(body)))
	copy(out[5:], body)
	return out, nil
}

func (v Value) marshalBody() ([]byte, error) {
	switch v.Kind {
	case KindBinary, KindString:
		if v.Bin == nil {
			return append([]byte(nil), nullBinary...), nil
		}
		return v.Bin, nil
	case KindTable:
		if v.Tbl == nil {
			return []byte{}, nil
		}
		return v.Tbl.marshalEntries()
	case KindList:
		buf := make([]byte, 0, len(v.List)*8)
		for _, item := range v.List {
			b, err := item.Marshal()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			buf = append(buf, b...)
		}
		return buf, nil
	default:
		return nil, errors.Errorf("isccc: cannot marshal value of unknown kind %#x", byte(v.Kind))
	}
}

// Unmarshal parses one full (tag+length+body) Value from the front of data,
// returning the value and the number of bytes it consumed.
func Unmarshal(data []byte) (Value, int, error) {
	if len(data) < 5 {
		return Value{}, 0, errors.WithStack(ErrTruncated)
	}

	tag := Kind(data[0])
	length := binary.BigEndian.Uint32(data[1:5])
	if uint64(5)+uint64(length) > uint64(len(data)) {
		return Value{}, 0, errors.WithStack(ErrTruncated)
	}
	body := data[5 : 5+length]

	switch tag {
	case KindString, KindBinary:
		return Value{Kind: KindBinary, Bin: append([]byte(nil), body...)}, 5 + int(length), nil
	case KindTable:
		t, err := unmarshalTableEntries(body, len(body))
		if err != nil {
			return Value{}, 0, errors.WithStack(err)
		}
		return TableValue(t), 5 + int(length), nil
	case KindList:
		var items []Value
		offset := 0
		for offset < len(body) {
			item, n, err := Unmarshal(body[offset:])
			if err != nil {
				return Value{}, 0, errors.WithStack(err)
			}
			items = append(items, item)
			offset += n
		}
		return ListValue(items), 5 + int(length), nil
	default:
		return Value{}, 0, errors.WithStack(ErrUnknownTag)
	}
}
