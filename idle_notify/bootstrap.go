package idle_notify

import (
	"errors"
	"fmt"
	"net"

	"github.com/bnema/wayidle/internal/wayland"
)

// ErrInvalidDisplay is returned when the display handle is not something a Wayland
// connection can be taken from. It signals a bug in the caller.
var ErrInvalidDisplay = errors.New("idle_notify: display handle is not a wayland connection")

// DisplayProvider is implemented by host windowing layers that can lend out the
// compositor connection they own.
type DisplayProvider interface {
	WaylandConn() (*net.UnixConn, error)
}

// connect turns a display handle into a Conn. The socket is borrowed, not owned.
func connect(handle any) (*wayland.Conn, error) {
	var uc *net.UnixConn
	switch h := handle.(type) {
	case *net.UnixConn:
		uc = h
	case DisplayProvider:
		c, err := h.WaylandConn()
		if err != nil {
			return nil, fmt.Errorf("display provider: %w", err)
		}
		uc = c
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidDisplay, handle)
	}

	if uc == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrInvalidDisplay)
	}
	return wayland.NewConn(uc)
}
