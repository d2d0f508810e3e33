package idle_notify

import (
	"errors"
	"fmt"

	"github.com/bnema/wayidle/internal/logger"
	"github.com/bnema/wayidle/internal/protocols"
	"github.com/bnema/wayidle/internal/wayland"
)

// ErrMissingGlobal matches every MissingGlobalError.
var ErrMissingGlobal = errors.New("idle_notify: required global not advertised")

// MissingGlobalError is returned when the compositor does not offer an interface the
// session needs, or only offers it below the minimum version.
type MissingGlobalError struct {
	Interface  string
	MinVersion uint32
}

func (e *MissingGlobalError) Error() string {
	return fmt.Sprintf("idle_notify: compositor does not advertise %s (version %d or newer)", e.Interface, e.MinVersion)
}

func (e *MissingGlobalError) Is(target error) bool {
	return target == ErrMissingGlobal
}

type global struct {
	name    uint32
	iface   string
	version uint32
}

// globalList is the snapshot taken during bootstrap. It is not kept up to date.
type globalList []global

// enumerateGlobals creates the registry and blocks for one round-trip, collecting every
// global announced in the meantime.
func enumerateGlobals(display *protocols.Display, roundtrip func() error) (*protocols.Registry, globalList, error) {
	registry, err := display.GetRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("get registry: %w", err)
	}

	var globals globalList
	registry.SetGlobalHandler(func(ev protocols.RegistryGlobalEvent) {
		globals = append(globals, global{name: ev.Name, iface: ev.Interface, version: ev.Version})
	})

	if err := roundtrip(); err != nil {
		return nil, nil, fmt.Errorf("enumerate globals: %w", err)
	}

	// later announcements are not tracked
	registry.SetGlobalHandler(nil)
	logger.Debugf("Compositor advertised %d globals", len(globals))
	return registry, globals, nil
}

func (l globalList) find(iface string) (global, bool) {
	for _, g := range l {
		if g.iface == iface {
			return g, true
		}
	}
	return global{}, false
}

// bind binds the first global implementing iface at the highest version both sides
// support.
func (l globalList) bind(registry *protocols.Registry, iface string, minVersion, maxVersion uint32, p wayland.Proxy) error {
	g, ok := l.find(iface)
	if !ok || g.version < minVersion {
		return &MissingGlobalError{Interface: iface, MinVersion: minVersion}
	}

	version := min(g.version, maxVersion)
	if err := registry.Bind(g.name, iface, version, p); err != nil {
		return fmt.Errorf("bind %s: %w", iface, err)
	}

	logger.Debugf("Bound %s version %d (global %d)", iface, version, g.name)
	return nil
}
