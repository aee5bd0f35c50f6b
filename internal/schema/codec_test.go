package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendValueBigEndian(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x65}, AppendValue(nil, I32(101)))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, AppendValue(nil, I32(-1)))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2A}, AppendValue(nil, U64(42)))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x07}, AppendValue(nil, EID(7)))
	assert.Empty(t, AppendValue(nil, Void()))
	// 1.5f32 = 0x3FC00000
	assert.Equal(t, []byte{0x3F, 0xC0, 0x00, 0x00}, AppendValue(nil, F32(1.5)))
}

func TestS32PadsAndTruncates(t *testing.T) {
	assert.Equal(t, []byte{'a', 'b', 0, 0}, AppendValue(nil, S32("ab")))
	assert.Equal(t, []byte{'a', 'b', 'c', 'd'}, AppendValue(nil, S32("abcdef")))

	v, rest, err := DecodeValue(Datatype{Kind: KindS32}, []byte{'h', 'i', 0, 0})
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, "hi", v.Str)
}

func TestDecodeValueRoundTrip(t *testing.T) {
	cases := []struct {
		dt Datatype
		v  Value
	}{
		{Datatype{Kind: KindI32}, I32(-12345)},
		{Datatype{Kind: KindU32}, U32(4000000000)},
		{Datatype{Kind: KindF32}, F32(3.25)},
		{Datatype{Kind: KindI64}, I64(-1 << 40)},
		{Datatype{Kind: KindU64}, U64(1 << 63)},
		{Datatype{Kind: KindF64}, F64(-2.5)},
		{Datatype{Kind: KindEID}, EID(99)},
		{Datatype{Kind: KindBlob, Size: 3}, Blob([]byte{1, 2, 3}, 3)},
	}
	for _, tc := range cases {
		buf := AppendValue(nil, tc.v)
		got, rest, err := DecodeValue(tc.dt, buf)
		require.NoError(t, err, tc.dt)
		assert.Empty(t, rest)
		assert.Equal(t, tc.v, got, tc.dt)
	}
}

func TestDecodeValueShortData(t *testing.T) {
	_, _, err := DecodeValue(Datatype{Kind: KindU64}, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBadFieldData)
}

func TestEncodeDecodeFields(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddTypes("Edge: { weight: f32, label: s32, hops: u32 };")
	require.NoError(t, err)
	ct, err := r.Get("Edge")
	require.NoError(t, err)

	in := map[string]Value{
		"weight": F32(1.5),
		"label":  S32("ab"),
		"hops":   U32(3),
	}
	buf := EncodeFields(ct, in)
	require.Len(t, buf, ct.ByteSize())

	out, err := DecodeFields(ct, buf)
	require.NoError(t, err)
	assert.Equal(t, F32(1.5), out["weight"])
	assert.Equal(t, "ab", out["label"].Str)
	assert.Equal(t, U32(3), out["hops"])
}

func TestDecodeFieldsWidthMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddTypes("P: { x: f32, y: f32 };")
	require.NoError(t, err)
	ct, err := r.Get("P")
	require.NoError(t, err)

	_, err = DecodeFields(ct, make([]byte, 7))
	assert.ErrorIs(t, err, ErrBadFieldData)
	_, err = DecodeFields(ct, make([]byte, 9))
	assert.ErrorIs(t, err, ErrBadFieldData)
}

func TestVoidComponentIsZeroWidth(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddTypes("void: void;")
	require.NoError(t, err)
	ct, err := r.Get("void")
	require.NoError(t, err)

	assert.Equal(t, 0, ct.ByteSize())
	buf := EncodeFields(ct, map[string]Value{SelfField: Void()})
	assert.Empty(t, buf)
	vals, err := DecodeFields(ct, nil)
	require.NoError(t, err)
	assert.Equal(t, Void(), vals[SelfField])
}
