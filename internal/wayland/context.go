package wayland

import (
	"time"

	"github.com/bnema/wayidle/internal/logger"
)

// Proxy is the client side of a protocol object.
type Proxy interface {
	ID() uint32
	SetID(id uint32)
	Version() uint32
	SetVersion(version uint32)
	Context() *Context
	SetContext(ctx *Context)
	Dispatch(msg Message)
}

// BaseProxy carries the bookkeeping every Proxy needs. Embed it and implement Dispatch.
type BaseProxy struct {
	id      uint32
	version uint32
	ctx     *Context
}

func (p *BaseProxy) ID() uint32 {
	return p.id
}

func (p *BaseProxy) SetID(id uint32) {
	p.id = id
}

func (p *BaseProxy) Version() uint32 {
	return p.version
}

func (p *BaseProxy) SetVersion(version uint32) {
	p.version = version
}

func (p *BaseProxy) Context() *Context {
	return p.ctx
}

func (p *BaseProxy) SetContext(ctx *Context) {
	p.ctx = ctx
}

// Context owns the object table of one connection and routes events to proxies.
//
// The first transport or protocol failure is sticky: every later dispatch returns it.
// Requests can still be queued and flushed after a failure so that objects get a chance
// to be destroyed, until Release.
type Context struct {
	conn     *Conn
	objects  map[uint32]Proxy
	nextID   uint32
	err      error
	released bool
}

// NewContext creates an empty object table over conn.
func NewContext(conn *Conn) *Context {
	return &Context{
		conn:    conn,
		objects: make(map[uint32]Proxy),
		nextID:  DisplayID + 1,
	}
}

// RegisterDisplay installs the wl_display proxy under its fixed id.
func (c *Context) RegisterDisplay(p Proxy) {
	p.SetID(DisplayID)
	p.SetVersion(1)
	p.SetContext(c)
	c.objects[DisplayID] = p
}

// Register allocates a fresh client-side id for p.
func (c *Context) Register(p Proxy) {
	id := c.nextID
	c.nextID++
	p.SetID(id)
	p.SetContext(c)
	c.objects[id] = p
}

// Unregister removes p from the object table. Events still in flight for it are dropped.
func (c *Context) Unregister(p Proxy) {
	if c.objects[p.ID()] == p {
		delete(c.objects, p.ID())
	}
}

// Forget drops whatever object holds id, as announced by wl_display.delete_id.
func (c *Context) Forget(id uint32) {
	delete(c.objects, id)
}

// Lookup returns the proxy registered under id, or nil.
func (c *Context) Lookup(id uint32) Proxy {
	return c.objects[id]
}

// SendRequest queues a request from p. Nothing is written until the next flush.
func (c *Context) SendRequest(p Proxy, opcode uint16, args ...interface{}) error {
	if c.released {
		return ErrReleased
	}
	msg, err := EncodeMessage(p.ID(), opcode, args...)
	if err != nil {
		return err
	}
	c.conn.Queue(msg)
	return nil
}

// Fail records a fatal error. Only the first one is kept.
func (c *Context) Fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the sticky error, if any.
func (c *Context) Err() error {
	return c.err
}

// Flush writes queued requests to the compositor.
func (c *Context) Flush() error {
	if c.released {
		return ErrReleased
	}
	if err := c.conn.Flush(); err != nil {
		c.Fail(err)
		return err
	}
	return nil
}

// SetReadDeadline bounds the blocking read in DispatchOne.
func (c *Context) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// DispatchOne flushes, then blocks until one message arrives and dispatches it.
func (c *Context) DispatchOne() error {
	if c.err != nil {
		return c.err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	msg, err := c.conn.ReadMessage()
	if err != nil {
		c.Fail(err)
		return err
	}
	c.dispatch(msg)
	return c.err
}

// DispatchPending flushes, then dispatches every message that is available without
// waiting. It returns the number of messages dispatched.
func (c *Context) DispatchPending() (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if err := c.Flush(); err != nil {
		return 0, err
	}
	count := 0
	for {
		msg, ok, err := c.conn.PendingMessage()
		if err != nil {
			c.Fail(err)
			return count, err
		}
		if !ok {
			return count, nil
		}
		c.dispatch(msg)
		count++
		if c.err != nil {
			return count, c.err
		}
	}
}

func (c *Context) dispatch(msg Message) {
	proxy := c.objects[msg.Sender]
	if proxy == nil {
		// destroyed on our side, the compositor has not seen it yet
		logger.Debugf("Dropping event %d for unknown object %d", msg.Opcode, msg.Sender)
		return
	}
	proxy.Dispatch(msg)
}

// Release drops the object table and the socket. The socket itself stays open.
func (c *Context) Release() {
	c.conn.Release()
	c.objects = make(map[uint32]Proxy)
	c.released = true
	c.Fail(ErrReleased)
}

