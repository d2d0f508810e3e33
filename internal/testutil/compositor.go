// Package testutil provides an in-process fake compositor that speaks the Wayland wire
// protocol over a socketpair, for tests that need a live connection.
package testutil

import (
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bnema/wayidle/internal/wayland"
)

// Global is one advertised compositor global.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// DefaultGlobals advertises a compositor with a seat and an idle notifier.
func DefaultGlobals() []Global {
	return []Global{
		{Name: 1, Interface: "wl_compositor", Version: 6},
		{Name: 2, Interface: "wl_seat", Version: 9},
		{Name: 3, Interface: "ext_idle_notifier_v1", Version: 1},
		{Name: 4, Interface: "xdg_wm_base", Version: 5},
	}
}

// Request is one request the compositor received.
type Request struct {
	Interface string
	Object    uint32
	Opcode    uint16
}

// Options tweaks how the fake compositor behaves.
type Options struct {
	// IdledOnCreate sends idled as soon as a notification is created.
	IdledOnCreate bool

	// ErrorOnNotification answers the notification request with wl_display.error.
	ErrorOnNotification bool

	// IgnoreSync leaves wl_display.sync unanswered.
	IgnoreSync bool
}

// Compositor is the fake server side. Client is the connected socket to hand to the
// code under test; the test keeps ownership of it.
type Compositor struct {
	Client *net.UnixConn

	t       testing.TB
	server  *net.UnixConn
	conn    *wayland.Conn
	globals []Global
	opts    Options

	mu           sync.Mutex
	writeMu      sync.Mutex
	objects      map[uint32]string
	requests     []Request
	binds        []Global
	notification uint32
	timeoutMs    uint32
	serial       uint32
	done         chan struct{}
	serveErr     error
}

// NewCompositor starts a fake compositor advertising globals, or DefaultGlobals when
// none are given. It is shut down by t.Cleanup.
func NewCompositor(t testing.TB, opts Options, globals ...Global) *Compositor {
	t.Helper()

	if len(globals) == 0 {
		globals = DefaultGlobals()
	}

	client, server := socketPair(t)
	conn, err := wayland.NewConn(server)
	if err != nil {
		t.Fatalf("wrap server socket: %v", err)
	}

	c := &Compositor{
		Client:  client,
		t:       t,
		server:  server,
		conn:    conn,
		globals: globals,
		opts:    opts,
		objects: map[uint32]string{wayland.DisplayID: "wl_display"},
		done:    make(chan struct{}),
	}

	go c.serve()
	t.Cleanup(c.Shutdown)
	return c
}

// SocketPair returns two connected unix stream sockets.
func SocketPair(t testing.TB) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	return socketPair(t)
}

func socketPair(t testing.TB) (*net.UnixConn, *net.UnixConn) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	return fileConn(t, fds[0], "client"), fileConn(t, fds[1], "server")
}

func fileConn(t testing.TB, fd int, name string) *net.UnixConn {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		t.Fatalf("file conn %s: %v", name, err)
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		t.Fatalf("file conn %s is %T", name, conn)
	}
	return uc
}

func (c *Compositor) serve() {
	defer close(c.done)
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.serveErr = err
			c.mu.Unlock()
			return
		}
		if err := c.handle(msg); err != nil {
			c.mu.Lock()
			c.serveErr = err
			c.mu.Unlock()
			return
		}
	}
}

func (c *Compositor) handle(msg wayland.Message) error {
	c.mu.Lock()
	iface := c.objects[msg.Sender]
	c.requests = append(c.requests, Request{Interface: iface, Object: msg.Sender, Opcode: msg.Opcode})
	c.mu.Unlock()

	dec := msg.Decoder()
	switch iface {
	case "wl_display":
		switch msg.Opcode {
		case 0: // sync
			id := dec.Uint()
			if c.opts.IgnoreSync {
				return dec.Err()
			}
			c.mu.Lock()
			c.serial++
			serial := c.serial
			c.mu.Unlock()
			c.send(id, 0, serial)
			c.send(wayland.DisplayID, 1, id)
		case 1: // get_registry
			id := dec.Uint()
			c.track(id, "wl_registry")
			for _, g := range c.globals {
				c.send(id, 0, g.Name, g.Interface, g.Version)
			}
		}

	case "wl_registry":
		if msg.Opcode == 0 { // bind
			name := dec.Uint()
			bound := dec.Text()
			version := dec.Uint()
			id := dec.Uint()
			c.track(id, bound)
			c.mu.Lock()
			c.binds = append(c.binds, Global{Name: name, Interface: bound, Version: version})
			c.mu.Unlock()
			if bound == "wl_seat" {
				c.send(id, 0, uint32(3)) // capabilities: pointer | keyboard
				if version >= 2 {
					c.send(id, 1, "seat0")
				}
			}
		}

	case "ext_idle_notifier_v1":
		switch msg.Opcode {
		case 1, 2: // get_idle_notification, get_input_idle_notification
			id := dec.Uint()
			timeout := dec.Uint()
			c.track(id, "ext_idle_notification_v1")
			c.mu.Lock()
			c.notification = id
			c.timeoutMs = timeout
			c.mu.Unlock()
			if c.opts.ErrorOnNotification {
				c.send(wayland.DisplayID, 0, id, uint32(3), "idle notifications unavailable")
			} else if c.opts.IdledOnCreate {
				c.send(id, 0)
			}
		}
	}
	return dec.Err()
}

func (c *Compositor) track(id uint32, iface string) {
	c.mu.Lock()
	c.objects[id] = iface
	c.mu.Unlock()
}

func (c *Compositor) send(sender uint32, opcode uint16, args ...interface{}) {
	msg, err := wayland.EncodeMessage(sender, opcode, args...)
	if err != nil {
		c.t.Errorf("encode event: %v", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.Queue(msg)
	if err := c.conn.Flush(); err != nil && !errors.Is(err, wayland.ErrConnectionClosed) {
		c.t.Logf("send event: %v", err)
	}
}

// Notification returns the id of the idle notification object and its timeout, once
// the client has requested one.
func (c *Compositor) Notification() (id uint32, timeoutMs uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notification, c.timeoutMs
}

// SendIdled sends the idled event on the current notification.
func (c *Compositor) SendIdled() {
	c.t.Helper()
	id, _ := c.Notification()
	if id == 0 {
		c.t.Fatal("no idle notification was requested")
	}
	c.send(id, 0)
}

// SendResumed sends the resumed event on the current notification.
func (c *Compositor) SendResumed() {
	c.t.Helper()
	id, _ := c.Notification()
	if id == 0 {
		c.t.Fatal("no idle notification was requested")
	}
	c.send(id, 1)
}

// SendEvent sends an arbitrary event.
func (c *Compositor) SendEvent(sender uint32, opcode uint16, args ...interface{}) {
	c.send(sender, opcode, args...)
}

// SendError sends wl_display.error.
func (c *Compositor) SendError(object, code uint32, message string) {
	c.send(wayland.DisplayID, 0, object, code, message)
}

// Disconnect closes the compositor side of the socket.
func (c *Compositor) Disconnect() {
	_ = c.server.CloseWrite()
}

// Shutdown closes the client socket, waits for the compositor to drain every request
// and closes the server side. It is safe to call more than once.
func (c *Compositor) Shutdown() {
	_ = c.Client.Close()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.t.Errorf("fake compositor did not stop")
	}
	_ = c.server.Close()
}

// Requests returns every request received so far.
func (c *Compositor) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Count returns how many requests with opcode were sent to objects of iface.
func (c *Compositor) Count(iface string, opcode uint16) int {
	n := 0
	for _, r := range c.Requests() {
		if r.Interface == iface && r.Opcode == opcode {
			n++
		}
	}
	return n
}

// Binds returns the globals the client bound, in order.
func (c *Compositor) Binds() []Global {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Global, len(c.binds))
	copy(out, c.binds)
	return out
}
