// Package idle_notify tracks how long the user has been idle, as reported by the
// compositor through the ext-idle-notify-v1 protocol.
//
// A Session borrows the Wayland connection of its host, subscribes to idle
// notifications for the first seat and answers IdleSeconds queries without blocking.
package idle_notify

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bnema/wayidle/internal/logger"
	"github.com/bnema/wayidle/internal/protocols"
	"github.com/bnema/wayidle/internal/wayland"
)

var (
	// ErrClosed is returned by queries on a closed Session.
	ErrClosed = errors.New("idle_notify: session is closed")

	// ErrInvalidTimeout is returned when the timeout does not fit the protocol's
	// millisecond field.
	ErrInvalidTimeout = errors.New("idle_notify: timeout out of range")
)

const maxTimeoutSeconds = math.MaxUint32 / 1000

// Session is one idle notification subscription. It is not safe for concurrent use.
type Session struct {
	ctx          *wayland.Context
	display      *protocols.Display
	registry     *protocols.Registry
	seat         *protocols.Seat
	notifier     *protocols.IdleNotifier
	notification *protocols.IdleNotification

	state     State
	timeout   uint32
	inputIdle bool
	opts      options
	closed    bool
}

// New subscribes to idle notifications on the connection behind handle, which must be a
// *net.UnixConn or a DisplayProvider. The compositor reports idle once no input has
// been seen for timeoutSeconds.
//
// New blocks for the round-trips needed to bind globals and settle the subscription.
// The connection is never closed by the Session.
func New(handle any, timeoutSeconds uint32, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if timeoutSeconds > maxTimeoutSeconds {
		return nil, fmt.Errorf("%w: %d seconds", ErrInvalidTimeout, timeoutSeconds)
	}

	conn, err := connect(handle)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ctx:     wayland.NewContext(conn),
		timeout: timeoutSeconds,
		opts:    o,
	}
	s.display = protocols.NewDisplay(s.ctx)

	if err := s.init(); err != nil {
		if rerr := s.release(); rerr != nil {
			logger.Debugf("Releasing failed idle session: %v", rerr)
		}
		return nil, err
	}

	logger.Debugf("Idle session ready (timeout %ds, input idle %t)", s.timeout, s.inputIdle)
	return s, nil
}

func (s *Session) init() error {
	registry, globals, err := enumerateGlobals(s.display, s.settle)
	if err != nil {
		return err
	}
	s.registry = registry

	s.seat = protocols.NewSeat()
	if err := globals.bind(registry, protocols.SeatInterface, 1, protocols.SeatMaxVersion, s.seat); err != nil {
		return err
	}

	s.notifier = protocols.NewIdleNotifier()
	if err := globals.bind(registry, protocols.IdleNotifierInterface, 1, protocols.IdleNotifierMaxVersion, s.notifier); err != nil {
		return err
	}

	notification, err := s.requestNotification()
	if err != nil {
		return fmt.Errorf("request idle notification: %w", err)
	}
	notification.SetHandler(notificationHandler{s})
	s.notification = notification

	// an already idle seat is reported right away
	return s.settle()
}

func (s *Session) requestNotification() (*protocols.IdleNotification, error) {
	timeoutMs := s.timeout * 1000

	if s.opts.inputIdle {
		if s.notifier.Version() >= 2 {
			s.inputIdle = true
			return s.notifier.GetInputIdleNotification(timeoutMs, s.seat)
		}
		logger.Warnf("%s version %d cannot ignore idle inhibitors, using a regular idle notification",
			protocols.IdleNotifierInterface, s.notifier.Version())
	}
	return s.notifier.GetIdleNotification(timeoutMs, s.seat)
}

type notificationHandler struct {
	s *Session
}

func (h notificationHandler) HandleIdled(*protocols.IdleNotification) {
	h.s.state.idle(h.s.opts.now())
}

func (h notificationHandler) HandleResumed(*protocols.IdleNotification) {
	h.s.state.resume()
}

// IdleSeconds returns the whole seconds elapsed since the compositor reported the seat
// idle, or 0 while it is active. Pending events are processed first; the call never
// waits for new ones.
//
// Transport and protocol errors are sticky: once one is returned, every later call
// returns it too.
func (s *Session) IdleSeconds() (uint64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := s.drainPending(); err != nil {
		return 0, err
	}
	return uint64(s.state.IdleFor(s.opts.now()) / time.Second), nil
}

// State returns a snapshot of the state machine as of the last processed event.
func (s *Session) State() State {
	return s.state
}

// Changed reports whether the state changed since the last call and clears the flag.
func (s *Session) Changed() bool {
	changed := s.state.Changed
	s.state.Changed = false
	return changed
}

// Timeout returns the idle timeout the notification was requested with.
func (s *Session) Timeout() time.Duration {
	return time.Duration(s.timeout) * time.Second
}

// InputIdle reports whether the notification ignores idle inhibitors.
func (s *Session) InputIdle() bool {
	return s.inputIdle
}

// Close destroys the notification and releases every protocol object. The borrowed
// connection stays open. Calling Close again does nothing.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.release()
}

func (s *Session) release() error {
	var errs []error

	if s.notification != nil {
		if err := s.notification.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy idle notification: %w", err))
		}
	}
	if s.notifier != nil && s.notifier.ID() != 0 {
		if err := s.notifier.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy idle notifier: %w", err))
		}
	}
	if s.seat != nil && s.seat.ID() != 0 {
		if err := s.seat.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release seat: %w", err))
		}
	}

	if err := s.ctx.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush teardown: %w", err))
	}
	s.ctx.Release()

	logger.Debug("Idle session released")
	return errors.Join(errs...)
}
