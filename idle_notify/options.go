package idle_notify

import "time"

type options struct {
	now              func() time.Time
	roundtripTimeout time.Duration
	inputIdle        bool
}

func defaultOptions() options {
	return options{now: time.Now}
}

// Option configures a Session.
type Option func(*options)

// WithClock replaces the clock used to timestamp idled events and compute idle time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRoundtripTimeout bounds every blocking round-trip. Zero waits forever.
func WithRoundtripTimeout(d time.Duration) Option {
	return func(o *options) {
		o.roundtripTimeout = d
	}
}

// WithInputIdle requests an input idle notification, which ignores idle inhibitors such
// as a playing video. Compositors with an older notifier get a regular notification.
func WithInputIdle() Option {
	return func(o *options) {
		o.inputIdle = true
	}
}
