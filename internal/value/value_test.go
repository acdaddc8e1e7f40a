package value

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalArgsRoundTrip(t *testing.T) {
	in := []any{nil, true, 42.0, "hi"}
	vals, err := MarshalArgs(in)
	require.NoError(t, err)
	out := UnmarshalArgs(vals)
	assert.Equal(t, in, out)
}

func TestMarshalArgsTooMany(t *testing.T) {
	args := make([]any, MaxArgs+1)
	_, err := MarshalArgs(args)
	assert.ErrorIs(t, err, ErrTooManyArgs)
}

func TestMarshalArgsUnsupportedType(t *testing.T) {
	_, err := MarshalArgs([]any{struct{ X int }{1}})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestUserdataCopiesBytes(t *testing.T) {
	raw := []byte{1, 2, 3}
	v := Userdata("mytype", raw)
	raw[0] = 99
	assert.Equal(t, byte(1), v.Raw[0], "userdata must copy, not alias")
	assert.Equal(t, "mytype", v.TypeName)
}

func TestMarshalArgsRoundTripsByteSliceAsUserdata(t *testing.T) {
	in := []any{[]byte{4, 5, 6}}
	vals, err := MarshalArgs(in)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, KindUserdata, vals[0].Kind)
	assert.Equal(t, "bytes", vals[0].TypeName)

	out := UnmarshalArgs(vals)
	assert.Equal(t, []byte{4, 5, 6}, out[0])
}

func TestEncodeAddrTCP(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8080}
	sa := EncodeAddr(addr)
	assert.Equal(t, FamilyInet, sa.Family)
	assert.Equal(t, 8080, sa.Port)
}

func TestEncodeAddrUnix(t *testing.T) {
	addr := &net.UnixAddr{Name: "/tmp/x.sock", Net: "unix"}
	sa := EncodeAddr(addr)
	assert.Equal(t, FamilyUnix, sa.Family)
	assert.Equal(t, "/tmp/x.sock", sa.IP)
}

func TestBuffersAdvanceAcrossBoundary(t *testing.T) {
	b := NewBuffers([]byte("abc"), []byte("defgh"))
	assert.Equal(t, 8, b.UnwrittenBytes())

	b.Advance(2) // consumes "ab"
	assert.Equal(t, 6, b.UnwrittenBytes())
	assert.False(t, b.Done())

	b.Advance(1) // consumes "c", crosses into second buffer
	rem := b.Remaining()
	require.Len(t, rem, 1)
	assert.Equal(t, "defgh", string(rem[0]))

	b.Advance(5)
	assert.True(t, b.Done())
	assert.Equal(t, 0, b.UnwrittenBytes())
}
