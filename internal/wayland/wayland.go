// Package wayland implements the client side of the Wayland wire protocol on top of a
// borrowed unix socket: message framing, an object table and event dispatch.
//
// Dispatch is cooperative. Nothing in this package starts a goroutine; events are only
// read and delivered from inside DispatchOne and DispatchPending.
package wayland

import (
	"errors"
	"fmt"
)

// DisplayID is the object id the protocol reserves for wl_display.
const DisplayID uint32 = 1

var (
	// ErrConnectionClosed is returned when the compositor hung up.
	ErrConnectionClosed = errors.New("wayland: connection closed by compositor")

	// ErrMalformedMessage is returned when the byte stream cannot be framed.
	ErrMalformedMessage = errors.New("wayland: malformed message")

	// ErrReleased is returned by a Context used after Release.
	ErrReleased = errors.New("wayland: connection released")
)

// ProtocolError is the fatal error the compositor announces through wl_display.error.
type ProtocolError struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: protocol error on object %d (code %d): %s", e.ObjectID, e.Code, e.Message)
}
