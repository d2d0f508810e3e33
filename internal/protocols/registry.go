package protocols

import (
	"github.com/bnema/wayidle/internal/wayland"
)

// RegistryGlobalEvent announces a global the compositor offers.
type RegistryGlobalEvent struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Registry is the wl_registry object.
type Registry struct {
	wayland.BaseProxy
	onGlobal       func(RegistryGlobalEvent)
	onGlobalRemove func(name uint32)
}

// SetGlobalHandler sets the function called for every global event. nil ignores them.
func (r *Registry) SetGlobalHandler(fn func(RegistryGlobalEvent)) {
	r.onGlobal = fn
}

// SetGlobalRemoveHandler sets the function called for every global_remove event.
func (r *Registry) SetGlobalRemoveHandler(fn func(name uint32)) {
	r.onGlobalRemove = fn
}

// Bind registers p and binds it to the global called name.
func (r *Registry) Bind(name uint32, iface string, version uint32, p wayland.Proxy) error {
	r.Context().Register(p)
	p.SetVersion(version)

	// Opcode 0: bind
	const opcode = 0
	err := r.Context().SendRequest(r, opcode, name, wayland.NewID{
		Interface: iface,
		Version:   version,
		ID:        p.ID(),
	})
	if err != nil {
		r.Context().Unregister(p)
		return err
	}
	return nil
}

// Dispatch handles wl_registry events
func (r *Registry) Dispatch(msg wayland.Message) {
	dec := msg.Decoder()
	switch msg.Opcode {
	case 0: // global
		ev := RegistryGlobalEvent{
			Name:      dec.Uint(),
			Interface: dec.Text(),
			Version:   dec.Uint(),
		}
		if dec.Err() != nil {
			r.Context().Fail(dec.Err())
			return
		}
		if r.onGlobal != nil {
			r.onGlobal(ev)
		}
	case 1: // global_remove
		name := dec.Uint()
		if dec.Err() == nil && r.onGlobalRemove != nil {
			r.onGlobalRemove(name)
		}
	}
}
