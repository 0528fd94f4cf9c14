// Package signal owns the polled view of the call connection. The call
// application exposes state only through its UI, so the underlying driver
// is sampled on a fixed interval and transitions are debounced: a state is
// emitted once when it changes, never per sample.
package signal

import (
	"context"
	"log/slog"
	"time"

	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/logging"
)

const DefaultPollInterval = 1500 * time.Millisecond

type Signal struct {
	drv      driver.CallDriver
	interval time.Duration
	logger   *slog.Logger
}

func New(drv driver.CallDriver, interval time.Duration, logger *slog.Logger) *Signal {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Signal{
		drv:      drv,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "signal"),
	}
}

// Connect asks the driver to dial and leaves the call in the connecting
// state; Watch reports when the far end picks up or the dial dies.
func (s *Signal) Connect(ctx context.Context, target string) error {
	s.logger.Info("dialing", "target", target)
	return s.drv.Dial(ctx, target)
}

// Answer accepts the currently ringing call.
func (s *Signal) Answer(ctx context.Context) error {
	s.logger.Info("answering")
	return s.drv.Answer(ctx)
}

// Hangup is best-effort: the call application may already be gone, so a
// failure is logged and swallowed. Resources are released by the caller
// regardless.
func (s *Signal) Hangup(ctx context.Context) {
	if err := s.drv.Hangup(ctx); err != nil {
		s.logger.Warn("hangup_failed", "error", err.Error())
		return
	}
	s.logger.Info("hung_up")
}

// Watch polls the driver until the call ends or ctx is cancelled. Each
// observed transition is emitted exactly once; the channel closes after
// ENDED. Poll errors are logged and the previous state is retained, so a
// transiently unresponsive driver does not fake a hangup.
func (s *Signal) Watch(ctx context.Context) <-chan driver.LinkState {
	out := make(chan driver.LinkState, 4)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		last := driver.LinkNone
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			state, err := s.drv.State(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("poll_failed", "error", err.Error())
				continue
			}
			if state == last {
				continue
			}
			s.logger.Info("link_state", "from", last.String(), "to", state.String())
			last = state
			select {
			case out <- state:
			case <-ctx.Done():
				return
			}
			if state == driver.LinkEnded {
				return
			}
		}
	}()
	return out
}

// WaitConnected consumes states from Watch until CONNECTED, ENDED, or
// timeout. It returns true only for CONNECTED.
func WaitConnected(ctx context.Context, states <-chan driver.LinkState, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return false
		case state, ok := <-states:
			if !ok {
				return false
			}
			switch state {
			case driver.LinkConnected:
				return true
			case driver.LinkEnded:
				return false
			}
		}
	}
}
