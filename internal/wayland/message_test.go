package wayland

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessageHeader(t *testing.T) {
	msg, err := EncodeMessage(7, 3, uint32(42), int32(-1))
	require.NoError(t, err)
	require.Len(t, msg, 16)

	sender, opcode, size, err := parseHeader(msg)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), sender)
	assert.Equal(t, uint16(3), opcode)
	assert.Equal(t, 16, size)

	dec := NewDecoder(msg[headerSize:])
	assert.Equal(t, uint32(42), dec.Uint())
	assert.Equal(t, int32(-1), dec.Int())
	assert.NoError(t, dec.Err())
}

func TestEncodeStringPadding(t *testing.T) {
	tests := []struct {
		in   string
		size int
	}{
		{"", 8 + 4 + 4},
		{"abc", 8 + 4 + 4},
		{"abcd", 8 + 4 + 8},
		{"wl_seat", 8 + 4 + 8},
		{"ext_idle_notifier_v1", 8 + 4 + 24},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			msg, err := EncodeMessage(2, 0, tt.in)
			require.NoError(t, err)
			assert.Len(t, msg, tt.size)
			assert.Zero(t, len(msg)%4)

			dec := NewDecoder(msg[headerSize:])
			assert.Equal(t, tt.in, dec.Text())
			assert.NoError(t, dec.Err())
		})
	}
}

func TestEncodeNewID(t *testing.T) {
	msg, err := EncodeMessage(2, 0, uint32(5), NewID{Interface: "wl_seat", Version: 7, ID: 9})
	require.NoError(t, err)

	dec := NewDecoder(msg[headerSize:])
	assert.Equal(t, uint32(5), dec.Uint())
	assert.Equal(t, "wl_seat", dec.Text())
	assert.Equal(t, uint32(7), dec.Uint())
	assert.Equal(t, uint32(9), dec.Uint())
	assert.NoError(t, dec.Err())
}

type testProxy struct {
	BaseProxy
	events []Message
}

func (p *testProxy) Dispatch(msg Message) {
	p.events = append(p.events, msg)
}

func TestEncodeProxyAsID(t *testing.T) {
	p := &testProxy{}
	p.SetID(12)

	msg, err := EncodeMessage(5, 1, p, uint32(30000))
	require.NoError(t, err)

	dec := NewDecoder(msg[headerSize:])
	assert.Equal(t, uint32(12), dec.Uint())
	assert.Equal(t, uint32(30000), dec.Uint())
}

func TestEncodeRejects(t *testing.T) {
	_, err := EncodeMessage(1, 0, 3.5)
	assert.Error(t, err)

	big := make([]byte, MaxMessageSize)
	_, err = EncodeMessage(1, 0, string(big))
	assert.Error(t, err)
}

func TestParseHeaderRejectsBadSizes(t *testing.T) {
	for _, size := range []uint32{0, 4, 10} {
		b := make([]byte, 8)
		byteOrder.PutUint32(b[0:4], 1)
		byteOrder.PutUint32(b[4:8], size<<16)
		_, _, _, err := parseHeader(b)
		assert.ErrorIs(t, err, ErrMalformedMessage, "size %d", size)
	}
}

func TestDecoderErrors(t *testing.T) {
	t.Run("truncated uint", func(t *testing.T) {
		dec := NewDecoder([]byte{1, 2})
		assert.Zero(t, dec.Uint())
		assert.ErrorIs(t, dec.Err(), ErrMalformedMessage)
		// sticks
		assert.Equal(t, "", dec.Text())
		assert.ErrorIs(t, dec.Err(), ErrMalformedMessage)
	})

	t.Run("string overrun", func(t *testing.T) {
		b := byteOrder.AppendUint32(nil, 64)
		b = append(b, 'a', 'b', 0, 0)
		dec := NewDecoder(b)
		assert.Equal(t, "", dec.Text())
		assert.ErrorIs(t, dec.Err(), ErrMalformedMessage)
	})

	t.Run("missing terminator", func(t *testing.T) {
		b := byteOrder.AppendUint32(nil, 4)
		b = append(b, 'a', 'b', 'c', 'd')
		dec := NewDecoder(b)
		assert.Equal(t, "", dec.Text())
		assert.ErrorIs(t, dec.Err(), ErrMalformedMessage)
	})

	t.Run("null string", func(t *testing.T) {
		dec := NewDecoder(byteOrder.AppendUint32(nil, 0))
		assert.Equal(t, "", dec.Text())
		assert.NoError(t, dec.Err())
	})
}
