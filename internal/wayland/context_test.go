package wayland

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*Context, *Conn) {
	t.Helper()
	client, server := socketPair(t)
	conn, err := NewConn(client)
	require.NoError(t, err)
	peer, err := NewConn(server)
	require.NoError(t, err)
	return NewContext(conn), peer
}

func TestContextRegister(t *testing.T) {
	ctx, _ := newTestContext(t)

	display := &testProxy{}
	ctx.RegisterDisplay(display)
	assert.Equal(t, DisplayID, display.ID())

	a, b := &testProxy{}, &testProxy{}
	ctx.Register(a)
	ctx.Register(b)
	assert.Equal(t, uint32(2), a.ID())
	assert.Equal(t, uint32(3), b.ID())
	assert.Same(t, ctx, a.Context())
	assert.Equal(t, Proxy(a), ctx.Lookup(2))

	ctx.Unregister(a)
	assert.Nil(t, ctx.Lookup(2))

	ctx.Forget(3)
	assert.Nil(t, ctx.Lookup(3))
}

func TestContextDispatchPending(t *testing.T) {
	ctx, peer := newTestContext(t)

	p := &testProxy{}
	ctx.Register(p)

	n, err := ctx.DispatchPending()
	require.NoError(t, err)
	assert.Zero(t, n)

	peer.Queue(mustEncode(t, p.ID(), 0))
	peer.Queue(mustEncode(t, 77, 0)) // unknown object
	peer.Queue(mustEncode(t, p.ID(), 1, uint32(5)))
	require.NoError(t, peer.Flush())

	n, err = ctx.DispatchPending()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, p.events, 2)
	assert.Equal(t, uint16(0), p.events[0].Opcode)
	assert.Equal(t, uint16(1), p.events[1].Opcode)
}

func TestContextSendAndDispatchOne(t *testing.T) {
	ctx, peer := newTestContext(t)

	p := &testProxy{}
	ctx.Register(p)
	require.NoError(t, ctx.SendRequest(p, 4, uint32(1)))

	peer.Queue(mustEncode(t, p.ID(), 2))
	require.NoError(t, peer.Flush())

	require.NoError(t, ctx.DispatchOne())
	require.Len(t, p.events, 1)
	assert.Equal(t, uint16(2), p.events[0].Opcode)

	// DispatchOne flushed the request first
	req, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, p.ID(), req.Sender)
	assert.Equal(t, uint16(4), req.Opcode)
}

type failingProxy struct {
	BaseProxy
	err error
}

func (p *failingProxy) Dispatch(Message) {
	p.Context().Fail(p.err)
}

func TestContextStickyError(t *testing.T) {
	ctx, peer := newTestContext(t)

	boom := errors.New("boom")
	p := &failingProxy{err: boom}
	ctx.Register(p)
	other := &testProxy{}
	ctx.Register(other)

	peer.Queue(mustEncode(t, p.ID(), 0))
	peer.Queue(mustEncode(t, other.ID(), 0))
	require.NoError(t, peer.Flush())

	n, err := ctx.DispatchPending()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Empty(t, other.events, "dispatch stops at the failure")

	_, err = ctx.DispatchPending()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, ctx.DispatchOne(), boom)

	ctx.Fail(errors.New("second"))
	assert.ErrorIs(t, ctx.Err(), boom, "first error wins")

	// requests still go out so objects can be destroyed
	require.NoError(t, ctx.SendRequest(other, 0))
	require.NoError(t, ctx.Flush())
}

func TestContextRelease(t *testing.T) {
	ctx, _ := newTestContext(t)

	p := &testProxy{}
	ctx.Register(p)
	ctx.Release()

	assert.Nil(t, ctx.Lookup(p.ID()))
	assert.ErrorIs(t, ctx.SendRequest(p, 0), ErrReleased)
	assert.ErrorIs(t, ctx.Flush(), ErrReleased)
	_, err := ctx.DispatchPending()
	assert.ErrorIs(t, err, ErrReleased)
}
