// Package protocols provides the Wayland objects needed to track idle time: the core
// wl_display, wl_registry, wl_callback and wl_seat, plus ext_idle_notify_v1.
package protocols

import (
	"github.com/bnema/wayidle/internal/logger"
	"github.com/bnema/wayidle/internal/wayland"
)

// Protocol interface names for the core protocol
const (
	DisplayInterface  = "wl_display"
	RegistryInterface = "wl_registry"
	CallbackInterface = "wl_callback"
)

// wl_display error codes
const (
	DisplayErrorInvalidObject  = 0
	DisplayErrorInvalidMethod  = 1
	DisplayErrorNoMemory       = 2
	DisplayErrorImplementation = 3
)

// Display is the singleton wl_display object, always id 1.
type Display struct {
	wayland.BaseProxy
}

// NewDisplay creates the display proxy for ctx.
func NewDisplay(ctx *wayland.Context) *Display {
	display := &Display{}
	ctx.RegisterDisplay(display)
	return display
}

// Sync asks the compositor to answer once every request sent so far has been handled.
func (d *Display) Sync() (*Callback, error) {
	callback := &Callback{}
	d.Context().Register(callback)

	// Opcode 0: sync
	const opcode = 0
	if err := d.Context().SendRequest(d, opcode, callback); err != nil {
		d.Context().Unregister(callback)
		return nil, err
	}
	return callback, nil
}

// GetRegistry creates the registry object. Globals are announced right after.
func (d *Display) GetRegistry() (*Registry, error) {
	registry := &Registry{}
	d.Context().Register(registry)
	registry.SetVersion(1)

	// Opcode 1: get_registry
	const opcode = 1
	if err := d.Context().SendRequest(d, opcode, registry); err != nil {
		d.Context().Unregister(registry)
		return nil, err
	}
	return registry, nil
}

// Roundtrip sends a sync and dispatches, blocking, until the compositor answers it.
func (d *Display) Roundtrip() error {
	callback, err := d.Sync()
	if err != nil {
		return err
	}

	done := false
	callback.SetDoneHandler(func(uint32) {
		done = true
	})

	for !done {
		if err := d.Context().DispatchOne(); err != nil {
			d.Context().Unregister(callback)
			return err
		}
	}
	return nil
}

// Dispatch handles wl_display events
func (d *Display) Dispatch(msg wayland.Message) {
	dec := msg.Decoder()
	switch msg.Opcode {
	case 0: // error
		perr := &wayland.ProtocolError{
			ObjectID: dec.Uint(),
			Code:     dec.Uint(),
			Message:  dec.Text(),
		}
		if err := dec.Err(); err != nil {
			d.Context().Fail(err)
			return
		}
		logger.Errorf("Compositor reported a protocol error: %v", perr)
		d.Context().Fail(perr)
	case 1: // delete_id
		id := dec.Uint()
		if dec.Err() == nil {
			d.Context().Forget(id)
		}
	}
}

// Callback is a one-shot wl_callback.
type Callback struct {
	wayland.BaseProxy
	onDone func(data uint32)
}

// SetDoneHandler sets the function called on the done event.
func (c *Callback) SetDoneHandler(fn func(data uint32)) {
	c.onDone = fn
}

// Dispatch handles wl_callback events
func (c *Callback) Dispatch(msg wayland.Message) {
	if msg.Opcode != 0 { // done
		return
	}
	data := msg.Decoder().Uint()
	if c.onDone != nil {
		c.onDone(data)
	}
}
