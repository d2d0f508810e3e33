package wayland

import (
	"encoding/binary"
	"fmt"
)

const (
	headerSize = 8

	// MaxMessageSize mirrors libwayland's limit for a single message.
	MaxMessageSize = 4096
)

var byteOrder = binary.NativeEndian

// Message is one framed request or event.
type Message struct {
	Sender uint32
	Opcode uint16
	Args   []byte
}

// NewID is an untyped new_id argument, as taken by wl_registry.bind.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

// EncodeMessage frames a message. Supported argument types are uint32, int32, string,
// NewID, and Proxy (encoded as its object id, which covers both object and typed new_id
// arguments).
func EncodeMessage(sender uint32, opcode uint16, args ...interface{}) ([]byte, error) {
	buf := make([]byte, headerSize, 32)
	for i, arg := range args {
		switch v := arg.(type) {
		case uint32:
			buf = byteOrder.AppendUint32(buf, v)
		case int32:
			buf = byteOrder.AppendUint32(buf, uint32(v))
		case string:
			buf = appendString(buf, v)
		case NewID:
			buf = appendString(buf, v.Interface)
			buf = byteOrder.AppendUint32(buf, v.Version)
			buf = byteOrder.AppendUint32(buf, v.ID)
		case Proxy:
			buf = byteOrder.AppendUint32(buf, v.ID())
		default:
			return nil, fmt.Errorf("wayland: unsupported argument %d of type %T", i, arg)
		}
	}

	if len(buf) > MaxMessageSize {
		return nil, fmt.Errorf("wayland: message of %d bytes exceeds %d", len(buf), MaxMessageSize)
	}

	byteOrder.PutUint32(buf[0:4], sender)
	byteOrder.PutUint32(buf[4:8], uint32(len(buf))<<16|uint32(opcode))
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	// length counts the trailing NUL
	n := len(s) + 1
	buf = byteOrder.AppendUint32(buf, uint32(n))
	buf = append(buf, s...)
	buf = append(buf, 0)
	for pad := padding(n); pad > 0; pad-- {
		buf = append(buf, 0)
	}
	return buf
}

func padding(n int) int {
	return (4 - n%4) % 4
}

// parseHeader decodes the sender, opcode and total size from the first 8 bytes.
func parseHeader(b []byte) (sender uint32, opcode uint16, size int, err error) {
	sender = byteOrder.Uint32(b[0:4])
	word := byteOrder.Uint32(b[4:8])
	size = int(word >> 16)
	opcode = uint16(word & 0xffff)
	if size < headerSize || size%4 != 0 {
		return 0, 0, 0, fmt.Errorf("%w: sender %d opcode %d size %d", ErrMalformedMessage, sender, opcode, size)
	}
	return sender, opcode, size, nil
}

// Decoder reads arguments out of a message body in order. The first failure sticks and
// every later read returns a zero value.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder returns a Decoder over a message body.
func NewDecoder(args []byte) *Decoder {
	return &Decoder{buf: args}
}

// Decoder returns a Decoder over the message arguments.
func (m Message) Decoder() *Decoder {
	return NewDecoder(m.Args)
}

func (d *Decoder) Uint() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.buf)-d.off < 4 {
		d.err = fmt.Errorf("%w: truncated argument at offset %d", ErrMalformedMessage, d.off)
		return 0
	}
	v := byteOrder.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

func (d *Decoder) Int() int32 {
	return int32(d.Uint())
}

// Text reads a string argument. A null string decodes as "".
func (d *Decoder) Text() string {
	n := int(d.Uint())
	if d.err != nil || n == 0 {
		return ""
	}
	end := d.off + n + padding(n)
	if n > len(d.buf)-d.off || end > len(d.buf) {
		d.err = fmt.Errorf("%w: string of %d bytes overruns message", ErrMalformedMessage, n)
		return ""
	}
	if d.buf[d.off+n-1] != 0 {
		d.err = fmt.Errorf("%w: string is not NUL terminated", ErrMalformedMessage)
		return ""
	}
	s := string(d.buf[d.off : d.off+n-1])
	d.off = end
	return s
}

// Err reports the first decoding failure.
func (d *Decoder) Err() error {
	return d.err
}
