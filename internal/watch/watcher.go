// Package watch polls an idle source and turns its readings into events: idle and
// active transitions, plus a pause once the user has been away for long enough.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/wayidle/idle_notify"
	"github.com/bnema/wayidle/internal/logger"
)

// Source is what the watcher polls. *idle_notify.Session satisfies it.
type Source interface {
	IdleSeconds() (uint64, error)
	Changed() bool
	State() idle_notify.State
}

// EventKind identifies an Event.
type EventKind int

const (
	// EventIdle is emitted when the compositor reports the seat idle.
	EventIdle EventKind = iota
	// EventActive is emitted when the seat sees input again.
	EventActive
	// EventPaused is emitted once idle time reaches the pause threshold.
	EventPaused
	// EventResumed is emitted when idle time drops back below the threshold after a pause.
	EventResumed
)

func (k EventKind) String() string {
	switch k {
	case EventIdle:
		return "idle"
	case EventActive:
		return "active"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one observed change.
type Event struct {
	Kind        EventKind
	IdleSeconds uint64
	At          time.Time
}

// Config controls polling.
type Config struct {
	// Interval between two polls.
	Interval time.Duration

	// PauseAfter is the idle time after which EventPaused fires. Zero disables pausing.
	PauseAfter time.Duration
}

// Watcher polls a Source. It is not safe for concurrent use.
type Watcher struct {
	src    Source
	cfg    Config
	now    func() time.Time
	paused bool
	last   uint64
}

// New creates a watcher over src.
func New(src Source, cfg Config) (*Watcher, error) {
	if src == nil {
		return nil, errors.New("watch: nil source")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("watch: interval must be positive, got %s", cfg.Interval)
	}
	if cfg.PauseAfter < 0 {
		return nil, fmt.Errorf("watch: pause threshold must not be negative, got %s", cfg.PauseAfter)
	}
	return &Watcher{src: src, cfg: cfg, now: time.Now}, nil
}

// Paused reports whether the last poll left the watcher paused.
func (w *Watcher) Paused() bool {
	return w.paused
}

// Interval returns the polling interval.
func (w *Watcher) Interval() time.Duration {
	return w.cfg.Interval
}

// IdleSeconds returns the idle time seen by the last poll.
func (w *Watcher) IdleSeconds() uint64 {
	return w.last
}

// Idle reports the source's current idle state.
func (w *Watcher) Idle() bool {
	return w.src.State().Idle
}

// Poll reads the source once and returns the events it produced, in order.
func (w *Watcher) Poll() ([]Event, error) {
	secs, err := w.src.IdleSeconds()
	if err != nil {
		return nil, err
	}
	w.last = secs

	now := w.now()
	var events []Event

	if w.src.Changed() {
		kind := EventActive
		if w.src.State().Idle {
			kind = EventIdle
		}
		events = append(events, Event{Kind: kind, IdleSeconds: secs, At: now})
	}

	if w.cfg.PauseAfter > 0 {
		reached := time.Duration(secs)*time.Second >= w.cfg.PauseAfter
		switch {
		case reached && !w.paused:
			w.paused = true
			events = append(events, Event{Kind: EventPaused, IdleSeconds: secs, At: now})
		case !reached && w.paused:
			w.paused = false
			events = append(events, Event{Kind: EventResumed, IdleSeconds: secs, At: now})
		}
	}

	return events, nil
}

// Run polls every Interval and hands each event to handle until ctx is done or the
// source fails. A cancelled context is not an error.
func (w *Watcher) Run(ctx context.Context, handle func(Event)) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	logger.Debugf("Watching idle time every %s (pause after %s)", w.cfg.Interval, w.cfg.PauseAfter)

	for {
		events, err := w.Poll()
		if err != nil {
			return fmt.Errorf("poll idle time: %w", err)
		}
		for _, ev := range events {
			logger.Debug("Idle event", "kind", ev.Kind, "idle_seconds", ev.IdleSeconds)
			if handle != nil {
				handle(ev)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
