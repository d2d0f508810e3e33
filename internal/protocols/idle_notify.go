package protocols

import (
	"fmt"

	"github.com/bnema/wayidle/internal/wayland"
)

// Protocol interface names for idle notifications
const (
	IdleNotifierInterface     = "ext_idle_notifier_v1"
	IdleNotificationInterface = "ext_idle_notification_v1"

	// IdleNotifierMaxVersion is the newest ext_idle_notifier_v1 version this client speaks.
	IdleNotifierMaxVersion = 2

	inputIdleSince = 2
)

// IdleNotifier is the ext_idle_notifier_v1 factory.
type IdleNotifier struct {
	wayland.BaseProxy
}

// NewIdleNotifier returns an unbound notifier, ready for Registry.Bind.
func NewIdleNotifier() *IdleNotifier {
	return &IdleNotifier{}
}

// GetIdleNotification subscribes to idle/resume events for seat after timeoutMs
// milliseconds without activity. Idle inhibitors are honored.
func (n *IdleNotifier) GetIdleNotification(timeoutMs uint32, seat *Seat) (*IdleNotification, error) {
	// Opcode 1: get_idle_notification
	return n.createNotification(1, timeoutMs, seat)
}

// GetInputIdleNotification is like GetIdleNotification but ignores idle inhibitors.
// It needs version 2 of the notifier.
func (n *IdleNotifier) GetInputIdleNotification(timeoutMs uint32, seat *Seat) (*IdleNotification, error) {
	if n.Version() < inputIdleSince {
		return nil, fmt.Errorf("%s version %d has no get_input_idle_notification", IdleNotifierInterface, n.Version())
	}
	// Opcode 2: get_input_idle_notification
	return n.createNotification(2, timeoutMs, seat)
}

func (n *IdleNotifier) createNotification(opcode uint16, timeoutMs uint32, seat *Seat) (*IdleNotification, error) {
	notification := &IdleNotification{}
	n.Context().Register(notification)
	notification.SetVersion(n.Version())

	if err := n.Context().SendRequest(n, opcode, notification, timeoutMs, seat); err != nil {
		n.Context().Unregister(notification)
		return nil, err
	}
	return notification, nil
}

// Destroy destroys the notifier. Notifications created from it stay valid.
func (n *IdleNotifier) Destroy() error {
	// Opcode 0: destroy
	const opcode = 0
	err := n.Context().SendRequest(n, opcode)
	n.Context().Unregister(n)
	return err
}

// Dispatch handles incoming events
func (n *IdleNotifier) Dispatch(_ wayland.Message) {
	// ext_idle_notifier_v1 has no events
}

// IdleNotificationHandler receives idle notification events.
type IdleNotificationHandler interface {
	HandleIdled(*IdleNotification)
	HandleResumed(*IdleNotification)
}

// IdleNotification is a live ext_idle_notification_v1 subscription.
type IdleNotification struct {
	wayland.BaseProxy
	handler   IdleNotificationHandler
	destroyed bool
}

// SetHandler sets the event handler
func (n *IdleNotification) SetHandler(handler IdleNotificationHandler) {
	n.handler = handler
}

// Destroy sends the destroy request. Only the first call does anything.
func (n *IdleNotification) Destroy() error {
	if n.destroyed {
		return nil
	}
	n.destroyed = true

	// Opcode 0: destroy
	const opcode = 0
	err := n.Context().SendRequest(n, opcode)
	n.Context().Unregister(n)
	return err
}

// Destroyed reports whether Destroy was called.
func (n *IdleNotification) Destroyed() bool {
	return n.destroyed
}

// Dispatch handles incoming events
func (n *IdleNotification) Dispatch(msg wayland.Message) {
	if n.handler == nil {
		return
	}

	switch msg.Opcode {
	case 0: // idled
		n.handler.HandleIdled(n)
	case 1: // resumed
		n.handler.HandleResumed(n)
	}
}
