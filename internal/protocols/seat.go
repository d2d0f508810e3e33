package protocols

import (
	"github.com/bnema/wayidle/internal/wayland"
)

const (
	SeatInterface = "wl_seat"

	// SeatMaxVersion is the newest wl_seat version this client speaks.
	SeatMaxVersion = 9

	seatReleaseSince = 5
)

// Seat is a bound wl_seat. It is only used as an argument; its capabilities and
// name events are ignored.
type Seat struct {
	wayland.BaseProxy
}

// NewSeat returns an unbound seat, ready for Registry.Bind.
func NewSeat() *Seat {
	return &Seat{}
}

// Release tells the compositor the seat is no longer used. Seats bound below version 5
// have no release request and are only forgotten locally.
func (s *Seat) Release() error {
	defer s.Context().Unregister(s)
	if s.Version() < seatReleaseSince {
		return nil
	}

	// Opcode 3: release
	const opcode = 3
	return s.Context().SendRequest(s, opcode)
}

// Dispatch handles wl_seat events
func (s *Seat) Dispatch(_ wayland.Message) {
	// capabilities and name are not needed to request idle notifications
}
