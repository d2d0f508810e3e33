package idle_notify

import "time"

// State is the idle state machine. IdleSince is set exactly when Idle is true.
type State struct {
	Idle bool

	// Changed is set on every transition and cleared by Session.Changed.
	Changed bool

	IdleSince time.Time
}

func (s *State) idle(now time.Time) {
	s.Idle = true
	s.Changed = true
	s.IdleSince = now
}

func (s *State) resume() {
	s.Idle = false
	s.Changed = true
	s.IdleSince = time.Time{}
}

// IdleFor returns how long the session has been idle at now, or 0 when active.
func (s State) IdleFor(now time.Time) time.Duration {
	if !s.Idle {
		return 0
	}
	d := now.Sub(s.IdleSince)
	if d < 0 {
		return 0
	}
	return d
}
