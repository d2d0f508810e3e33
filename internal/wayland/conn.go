package wayland

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Conn frames messages over a unix socket it does not own. Requests are queued until
// Flush; incoming bytes are buffered until a whole message is available.
//
// Release drops the socket without closing it: whoever handed the socket over keeps
// ownership and must keep it open for as long as the Conn is in use.
type Conn struct {
	uc  *net.UnixConn
	raw syscall.RawConn

	in  []byte
	off int
	out []byte

	buf [MaxMessageSize]byte
}

// NewConn wraps an already connected compositor socket.
func NewConn(uc *net.UnixConn) (*Conn, error) {
	if uc == nil {
		return nil, errors.New("wayland: nil socket")
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("wayland: raw socket access: %w", err)
	}
	return &Conn{uc: uc, raw: raw}, nil
}

// Queue appends an encoded message to the outgoing buffer.
func (c *Conn) Queue(msg []byte) {
	c.out = append(c.out, msg...)
}

// Flush writes every queued message.
func (c *Conn) Flush() error {
	if c.uc == nil {
		return ErrReleased
	}
	written := 0
	for written < len(c.out) {
		n, err := c.uc.Write(c.out[written:])
		written += n
		if err != nil {
			c.out = c.out[:copy(c.out, c.out[written:])]
			if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
				return ErrConnectionClosed
			}
			return fmt.Errorf("wayland: flush: %w", err)
		}
	}
	c.out = c.out[:0]
	return nil
}

// Buffered reports how many queued request bytes have not been written yet.
func (c *Conn) Buffered() int {
	return len(c.out)
}

// ReadMessage returns the next message, blocking until one has fully arrived.
func (c *Conn) ReadMessage() (Message, error) {
	for {
		msg, ok, err := c.next()
		if err != nil || ok {
			return msg, err
		}
		if err := c.fill(); err != nil {
			return Message{}, err
		}
	}
}

// PendingMessage returns the next message only if it is already buffered or can be read
// from the socket without waiting. ok is false when nothing is pending.
func (c *Conn) PendingMessage() (msg Message, ok bool, err error) {
	for {
		msg, ok, err = c.next()
		if err != nil || ok {
			return msg, ok, err
		}
		got, err := c.tryFill()
		if err != nil || !got {
			return Message{}, false, err
		}
	}
}

// SetReadDeadline bounds blocking reads. A zero time removes the bound.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if c.uc == nil {
		return ErrReleased
	}
	return c.uc.SetReadDeadline(t)
}

// Release forgets the socket. Any queued requests that were not flushed are dropped.
func (c *Conn) Release() {
	c.uc = nil
	c.raw = nil
	c.in = nil
	c.off = 0
	c.out = nil
}

func (c *Conn) next() (Message, bool, error) {
	avail := c.in[c.off:]
	if len(avail) < headerSize {
		return Message{}, false, nil
	}
	sender, opcode, size, err := parseHeader(avail)
	if err != nil {
		return Message{}, false, err
	}
	if len(avail) < size {
		return Message{}, false, nil
	}
	args := make([]byte, size-headerSize)
	copy(args, avail[headerSize:size])
	c.off += size
	return Message{Sender: sender, Opcode: opcode, Args: args}, true, nil
}

func (c *Conn) compact() {
	if c.off == 0 {
		return
	}
	n := copy(c.in, c.in[c.off:])
	c.in = c.in[:n]
	c.off = 0
}

func (c *Conn) fill() error {
	if c.uc == nil {
		return ErrReleased
	}
	c.compact()
	n, err := c.uc.Read(c.buf[:])
	if n > 0 {
		c.in = append(c.in, c.buf[:n]...)
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("wayland: read: %w", err)
}

// tryFill performs a single read(2) that never parks the goroutine.
func (c *Conn) tryFill() (bool, error) {
	if c.raw == nil {
		return false, ErrReleased
	}
	c.compact()

	var (
		n    int
		rerr error
	)
	err := c.raw.Read(func(fd uintptr) bool {
		for {
			n, rerr = unix.Read(int(fd), c.buf[:])
			if rerr != unix.EINTR {
				return true
			}
		}
	})
	if err != nil {
		return false, fmt.Errorf("wayland: read: %w", err)
	}

	switch {
	case rerr == unix.EAGAIN:
		return false, nil
	case rerr == unix.ECONNRESET:
		return false, ErrConnectionClosed
	case rerr != nil:
		return false, fmt.Errorf("wayland: read: %w", rerr)
	case n == 0:
		return false, ErrConnectionClosed
	}

	c.in = append(c.in, c.buf[:n]...)
	return true, nil
}
