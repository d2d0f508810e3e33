package ipc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestStatusResponseFraming(t *testing.T) {
	want := Status{Idle: true, IdleSeconds: 754, TimeoutSeconds: 30}
	msg, err := NewStatusResponse(want)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeMessage(&buf, msg))

	length := binary.BigEndian.Uint32(buf.Bytes()[:4])
	assert.Equal(t, int(length), buf.Len()-4)

	got, err := readMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeStatus, MessageType(got))

	st, err := ParseStatus(got)
	require.NoError(t, err)
	assert.Equal(t, want, st)
}

func TestStatusRequest(t *testing.T) {
	msg, err := NewStatusRequest()
	require.NoError(t, err)
	assert.Equal(t, TypeStatus, MessageType(msg))
	assert.Len(t, msg.GetFields(), 1)
}

func TestParseStatusErrors(t *testing.T) {
	errMsg, err := NewErrorResponse("connection lost")
	require.NoError(t, err)
	_, err = ParseStatus(errMsg)
	assert.EqualError(t, err, "server error: connection lost")

	unknown, err := structpb.NewStruct(map[string]interface{}{"type": "switch"})
	require.NoError(t, err)
	_, err = ParseStatus(unknown)
	assert.Error(t, err)

	noIdle, err := structpb.NewStruct(map[string]interface{}{"type": TypeStatus})
	require.NoError(t, err)
	_, err = ParseStatus(noIdle)
	assert.Error(t, err)

	assert.Equal(t, "", MessageType(nil))
}

func TestReadMessageLimits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(maxMessageSize+1)))
	_, err := readMessage(&buf)
	assert.Error(t, err)

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(10)))
	buf.Write([]byte{1, 2, 3})
	_, err = readMessage(&buf)
	assert.Error(t, err, "truncated body")
}
