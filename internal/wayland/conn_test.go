package wayland

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	conns := make([]*net.UnixConn, 2)
	for i, fd := range fds {
		f := os.NewFile(uintptr(fd), "wayland-test")
		c, err := net.FileConn(f)
		require.NoError(t, f.Close())
		require.NoError(t, err)
		conns[i] = c.(*net.UnixConn)
		t.Cleanup(func() { _ = c.Close() })
	}
	return conns[0], conns[1]
}

func mustEncode(t *testing.T, sender uint32, opcode uint16, args ...interface{}) []byte {
	t.Helper()
	msg, err := EncodeMessage(sender, opcode, args...)
	require.NoError(t, err)
	return msg
}

func TestConnPendingMessage(t *testing.T) {
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)

	_, ok, err := conn.PendingMessage()
	require.NoError(t, err)
	assert.False(t, ok, "nothing written yet")

	_, err = server.Write(mustEncode(t, 3, 1, uint32(9)))
	require.NoError(t, err)

	msg, ok, err := conn.PendingMessage()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(3), msg.Sender)
	assert.Equal(t, uint16(1), msg.Opcode)
	assert.Equal(t, uint32(9), msg.Decoder().Uint())

	_, ok, err = conn.PendingMessage()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnPartialMessage(t *testing.T) {
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)

	full := mustEncode(t, 4, 0, "seat0")
	_, err = server.Write(full[:6])
	require.NoError(t, err)

	_, ok, err := conn.PendingMessage()
	require.NoError(t, err)
	assert.False(t, ok, "half a header is not a message")

	_, err = server.Write(full[6:])
	require.NoError(t, err)

	msg, ok, err := conn.PendingMessage()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "seat0", msg.Decoder().Text())
}

func TestConnSeveralMessagesInOneRead(t *testing.T) {
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)

	var stream []byte
	for i := uint32(0); i < 3; i++ {
		stream = append(stream, mustEncode(t, 10+i, 0)...)
	}
	_, err = server.Write(stream)
	require.NoError(t, err)

	for i := uint32(0); i < 3; i++ {
		msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, 10+i, msg.Sender)
	}
}

func TestConnEOF(t *testing.T) {
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)

	require.NoError(t, server.CloseWrite())

	_, _, err = conn.PendingMessage()
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = conn.ReadMessage()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnMalformed(t *testing.T) {
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)

	bad := make([]byte, 8)
	byteOrder.PutUint32(bad[0:4], 1)
	byteOrder.PutUint32(bad[4:8], 6<<16)
	_, err = server.Write(bad)
	require.NoError(t, err)

	_, _, err = conn.PendingMessage()
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestConnFlushAndRelease(t *testing.T) {
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)

	conn.Queue(mustEncode(t, 1, 0, uint32(2)))
	assert.Equal(t, 12, conn.Buffered())
	require.NoError(t, conn.Flush())
	assert.Zero(t, conn.Buffered())

	peer, err := NewConn(server)
	require.NoError(t, err)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(5*time.Second)))
	msg, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), msg.Sender)

	conn.Release()
	assert.ErrorIs(t, conn.Flush(), ErrReleased)
	_, _, err = conn.PendingMessage()
	assert.ErrorIs(t, err, ErrReleased)

	// the socket itself is left open
	_, err = client.Write(mustEncode(t, 1, 0))
	assert.NoError(t, err)
}

func TestConnFlushAfterHangup(t *testing.T) {
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)

	require.NoError(t, server.Close())
	conn.Queue(mustEncode(t, 1, 0, uint32(2)))

	// the first write may still land in the socket buffer
	err = conn.Flush()
	if err == nil {
		conn.Queue(mustEncode(t, 1, 0, uint32(3)))
		err = conn.Flush()
	}
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestNewConnNil(t *testing.T) {
	_, err := NewConn(nil)
	assert.Error(t, err)
}
