package isccc

import (
	"sort"

	"github.com/pkg/errors"
)

// Table is an ordered mapping from short string keys (<= 255 bytes) to
// Values. Keys and Marshal both present entries in ascending byte-wise
// key order, whatever order they were inserted in, since that canonical
// form is what makes HMAC signing deterministic.
type Table struct {
	keys   []string
	values map[string]Value
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{values: make(map[string]Value)}
}

// Set inserts or replaces the value at key.
func (t *Table) Set(key string, v Value) *Table {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
	return t
}

// SetString is a convenience wrapper for Set(key, String(s)).
func (t *Table) SetString(key, s string) *Table {
	return t.Set(key, String(s))
}

// SetTable is a convenience wrapper for Set(key, TableValue(sub)).
func (t *Table) SetTable(key string, sub *Table) *Table {
	return t.Set(key, TableValue(sub))
}

// Get looks up key, reporting whether it was present.
func (t *Table) Get(key string) (Value, bool) {
	if t == nil {
		return Value{}, false
	}
	v, ok := t.values[key]
	return v, ok
}

// GetTable looks up key and asserts it is a Table value.
func (t *Table) GetTable(key string) (*Table, bool) {
	v, ok := t.Get(key)
	if !ok || v.Kind != KindTable {
		return nil, false
	}
	return v.Tbl, true
}

// GetString looks up key and returns its Binary payload as a string.
func (t *Table) GetString(key string) (string, bool) {
	v, ok := t.Get(key)
	if !ok {
		return "", false
	}
	return v.Str(), true
}

// Has reports whether key is present.
func (t *Table) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Keys returns the entry keys in canonical (ascending byte-wise) order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	out := append([]string(nil), t.keys...)
	sort.Strings(out)
	return out
}

// Merge copies every entry of other into t, overwriting on key collision,
// and returns t.
func (t *Table) Merge(other *Table) *Table {
	if other == nil {
		return t
	}
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		t.Set(k, v)
	}
	return t
}

// marshalEntries serializes t's entries, sorted canonically, with each
// entry written as a 1-byte key length, the key bytes, then the fully
// tagged/lengthed value.
func (t *Table) marshalEntries() ([]byte, error) {
	var buf []byte
	for _, key := range t.Keys() {
		if len(key) > 255 {
			return nil, errors.Errorf("isccc: table key %q exceeds 255 bytes", key)
		}
		v, _ := t.Get(key)
		body, err := v.Marshal()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		buf = append(buf, byte(len(key)))
		buf = append(buf, key...)
		buf = append(buf, body...)
	}
	return buf, nil
}

// MarshalNoHeader serializes t's entries without the outer type-tag and
// length header that Marshal(TableValue(t)) would add. This is the "header-
// less" form the envelope uses for both the auth table and the payload
// table: the outer length is instead carried by the
// packet's own 4-byte frame length.
func (t *Table) MarshalNoHeader() ([]byte, error) {
	if t == nil {
		return []byte{}, nil
	}
	return t.marshalEntries()
}

// unmarshalTableEntries parses table entries from the front of data up to
// exactly n bytes, requiring the entries to consume the buffer exactly.
// It is used both for values nested inside another value (their length is
// already known from the enclosing tag+length header) and, from
// UnmarshalPayloadNoHeader, for the header-less payload table.
func unmarshalTableEntries(data []byte, n int) (*Table, error) {
	t := NewTable()
	offset := 0
	for offset < n {
		if offset+1 > n {
			return nil, errors.WithStack(ErrTruncated)
		}
		keyLen := int(data[offset])
		offset++
		if offset+keyLen > n {
			return nil, errors.WithStack(ErrTruncated)
		}
		key := string(data[offset : offset+keyLen])
		offset += keyLen

		v, consumed, err := Unmarshal(data[offset:n])
		if err != nil {
			return nil, errors.WithStack(err)
		}
		offset += consumed
		t.Set(key, v)
	}
	if offset != n {
		return nil, errors.WithStack(ErrTruncated)
	}
	return t, nil
}

// UnmarshalPayloadNoHeader parses a header-less table serialization -- the
// form used for both halves of the envelope -- consuming the whole of data.
func UnmarshalPayloadNoHeader(data []byte) (*Table, error) {
	return unmarshalTableEntries(data, len(data))
}

// UnmarshalSingleEntryTable parses exactly one table entry from the front
// of data and returns it as a one-entry Table, plus the number of bytes
// consumed. It is how the envelope's auth table -- which carries no length
// header of its own, since it always holds exactly the single "_auth"
// entry -- is delimited: the entry's own tag+length header makes it (and
// therefore the table) self-terminating, so no fixed byte offset is
// needed to find where the payload table begins.
func UnmarshalSingleEntryTable(data []byte) (*Table, int, error) {
	if len(data) < 1 {
		return nil, 0, errors.WithStack(ErrTruncated)
	}
	keyLen := int(data[0])
	offset := 1
	if offset+keyLen > len(data) {
		return nil, 0, errors.WithStack(ErrTruncated)
	}
	key := string(data[offset : offset+keyLen])
	offset += keyLen

	v, consumed, err := Unmarshal(data[offset:])
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	offset += consumed

	t := NewTable()
	t.Set(key, v)
	return t, offset, nil
}
