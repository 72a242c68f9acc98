package isccc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	v := String("status")
	b, err := v.Marshal()
	require.NoError(t, err)

	parsed, n, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, "status", parsed.Str())
}

func TestNullBinarySerializesAsLiteral(t *testing.T) {
	v := Binary(nil)
	b, err := v.Marshal()
	require.NoError(t, err)

	// tag(1) + len(4) + "null"(4)
	require.Equal(t, byte(KindBinary), b[0])
	require.Equal(t, []byte("null"), b[5:])

	parsed, _, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, "null", parsed.Str())
}

func TestTableCanonicalOrderingIsInsertionOrderIndependent(t *testing.T) {
	t1 := NewTable()
	t1.SetString("_ser", "1")
	t1.SetString("_tim", "2")
	t1.SetString("_exp", "3")

	t2 := NewTable()
	t2.SetString("_exp", "3")
	t2.SetString("_ser", "1")
	t2.SetString("_tim", "2")

	b1, err := t1.MarshalNoHeader()
	require.NoError(t, err)
	b2, err := t2.MarshalNoHeader()
	require.NoError(t, err)

	require.Equal(t, b1, b2)
}

func TestTableRoundTrip(t *testing.T) {
	inner := NewTable()
	inner.SetString("type", "status")
	inner.SetString("text", "birdy")

	top := NewTable()
	top.SetTable("_data", inner)

	full, err := TableValue(top).Marshal()
	require.NoError(t, err)

	parsed, n, err := Unmarshal(full)
	require.NoError(t, err)
	require.Equal(t, len(full), n)
	require.Equal(t, KindTable, parsed.Kind)

	data, ok := parsed.Tbl.GetTable("_data")
	require.True(t, ok)
	text, ok := data.GetString("text")
	require.True(t, ok)
	require.Equal(t, "birdy", text)
}

func TestListRoundTrip(t *testing.T) {
	v := ListValue([]Value{String("a"), String("bb"), Binary(nil)})
	b, err := v.Marshal()
	require.NoError(t, err)

	parsed, n, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Len(t, parsed.List, 3)
	require.Equal(t, "a", parsed.List[0].Str())
	require.Equal(t, "bb", parsed.List[1].Str())
	require.Equal(t, "null", parsed.List[2].Str())
}

func TestUnmarshalTruncatedInput(t *testing.T) {
	v := String("status")
	b, err := v.Marshal()
	require.NoError(t, err)

	_, _, err = Unmarshal(b[:len(b)-2])
	require.ErrorIs(t, err, ErrTruncated)
}

func TestUnmarshalUnknownTag(t *testing.T) {
	b := []byte{0x7F, 0x00, 0x00, 0x00, 0x00}
	_, _, err := Unmarshal(b)
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestTableKeysExceeding255BytesRejected(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	tbl := NewTable()
	tbl.SetString(string(long), "x")

	_, err := tbl.MarshalNoHeader()
	require.Error(t, err)
}
