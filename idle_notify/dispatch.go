package idle_notify

import (
	"fmt"
	"time"
)

// settle blocks until the compositor has answered every request sent so far, delivering
// the events it produced on the way.
func (s *Session) settle() error {
	if s.opts.roundtripTimeout > 0 {
		if err := s.ctx.SetReadDeadline(time.Now().Add(s.opts.roundtripTimeout)); err != nil {
			return fmt.Errorf("set roundtrip deadline: %w", err)
		}
		defer func() {
			_ = s.ctx.SetReadDeadline(time.Time{})
		}()
	}

	if err := s.display.Roundtrip(); err != nil {
		return fmt.Errorf("roundtrip: %w", err)
	}
	return nil
}

// drainPending delivers the events that are already readable and returns without
// waiting for more.
func (s *Session) drainPending() error {
	if _, err := s.ctx.DispatchPending(); err != nil {
		return fmt.Errorf("dispatch pending events: %w", err)
	}
	return nil
}
