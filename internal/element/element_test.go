package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareOrdersByKeyThenORPID(t *testing.T) {
	cases := []struct {
		a, b Element
		want int
	}{
		{Element{Key: 1, ORPID: 5}, Element{Key: 2, ORPID: 0}, -1},
		{Element{Key: 2, ORPID: 0}, Element{Key: 1, ORPID: 5}, 1},
		{Element{Key: 3, ORPID: 1}, Element{Key: 3, ORPID: 2}, -1},
		{Element{Key: 3, ORPID: 2}, Element{Key: 3, ORPID: 1}, 1},
		{Element{Key: 3, ORPID: 2}, Element{Key: 3, ORPID: 2}, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Compare(c.a, c.b), "Compare(%+v, %+v)", c.a, c.b)
	}
}

func TestLessMatchesCompare(t *testing.T) {
	a := Element{Key: 1, ORPID: 1}
	b := Element{Key: 1, ORPID: 2}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestCodecRoundTrip(t *testing.T) {
	codec := Codec{PayloadLen: 3}
	e := Element{Key: 0xDEADBEEF, ORPID: 0x1234567890, Payload: []byte{1, 2, 3}}

	buf := codec.Encode(nil, e)
	require.Len(t, buf, codec.EncodedSize())

	got, n := codec.Decode(buf)
	require.Equal(t, codec.EncodedSize(), n)
	assert.True(t, Equal(got, e), "decoded %+v, want %+v", got, e)
	assert.Equal(t, e.Payload, got.Payload)
}

func TestCodecAppendsToExistingBuffer(t *testing.T) {
	codec := Codec{PayloadLen: 0}
	dst := []byte{0xFF}
	buf := codec.Encode(dst, Element{Key: 1, ORPID: 2})
	require.Equal(t, byte(0xFF), buf[0], "Encode must append, not overwrite, the destination slice")
	assert.Len(t, buf, 1+codec.EncodedSize())
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	codec := Codec{PayloadLen: 2}
	buf := codec.Encode(nil, Element{Key: 1, ORPID: 2, Payload: []byte{9, 9}})
	e, _ := codec.Decode(buf)
	buf[HeaderSize] = 0
	assert.Equal(t, byte(9), e.Payload[0], "Decode must copy the payload, not alias the input buffer")
}
