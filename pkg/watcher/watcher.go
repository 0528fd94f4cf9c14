// Package watcher polls the call driver for ringing incoming calls and
// hands trusted callers to the orchestrator. Unknown callers are left
// ringing; the call application's own behavior applies.
package watcher

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/satriadi/bellhop/pkg/call"
	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/logging"
)

const DefaultPollInterval = 5 * time.Second

// Answerer is the orchestrator surface the watcher needs.
type Answerer interface {
	Answer(ctx context.Context, inc driver.IncomingCall) (*call.Session, error)
}

type Config struct {
	PollInterval time.Duration
	// TrustedCallers are the identities the agent answers for. Matching is
	// case-insensitive and ignores spaces and dashes, so "+1 555-0100"
	// matches "+15550100".
	TrustedCallers []string
}

type Status struct {
	Enabled       bool      `json:"enabled"`
	LastPoll      time.Time `json:"last_poll"`
	LastRing      time.Time `json:"last_ring"`
	AnsweredCalls int       `json:"answered_calls"`
	IgnoredCalls  int       `json:"ignored_calls"`
}

type Watcher struct {
	cfg      Config
	poller   driver.IncomingPoller
	answerer Answerer
	registry *call.Registry
	logger   *slog.Logger

	trusted map[string]struct{}

	mu      sync.Mutex
	enabled bool
	status  Status
	// lastHandle suppresses repeat triggers while the same call keeps
	// ringing across polls.
	lastHandle string
}

func New(cfg Config, poller driver.IncomingPoller, answerer Answerer, registry *call.Registry, logger *slog.Logger) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	trusted := make(map[string]struct{}, len(cfg.TrustedCallers))
	for _, c := range cfg.TrustedCallers {
		trusted[normalize(c)] = struct{}{}
	}
	return &Watcher{
		cfg:      cfg,
		poller:   poller,
		answerer: answerer,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		trusted:  trusted,
	}
}

func (w *Watcher) Enable() {
	w.mu.Lock()
	w.enabled = true
	w.status.Enabled = true
	w.mu.Unlock()
	w.logger.Info("watcher_enabled")
}

func (w *Watcher) Disable() {
	w.mu.Lock()
	w.enabled = false
	w.status.Enabled = false
	w.mu.Unlock()
	w.logger.Info("watcher_disabled")
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Run polls until ctx is cancelled. Answering blocks the loop for the
// whole call, which is intentional: there is only one call slot anyway.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// Poll checks once for a ringing call and handles it. Exposed for the
// control surface's manual trigger.
func (w *Watcher) Poll(ctx context.Context) {
	w.poll(ctx)
}

func (w *Watcher) poll(ctx context.Context) {
	w.mu.Lock()
	enabled := w.enabled
	w.status.LastPoll = time.Now()
	w.mu.Unlock()
	if !enabled {
		return
	}

	inc, ringing, err := w.poller.Incoming(ctx)
	if err != nil {
		w.logger.Warn("incoming_poll_failed", "error", err.Error())
		return
	}
	if !ringing {
		w.mu.Lock()
		w.lastHandle = ""
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.status.LastRing = time.Now()
	repeat := w.lastHandle == inc.Handle
	w.lastHandle = inc.Handle
	w.mu.Unlock()
	if repeat {
		return
	}

	if w.registry.Active() != nil {
		w.logger.Info("incoming_ignored_call_active", "handle", inc.Handle)
		return
	}
	if !w.isTrusted(inc) {
		w.mu.Lock()
		w.status.IgnoredCalls++
		w.mu.Unlock()
		w.logger.Info("incoming_ignored_untrusted",
			"handle", inc.Handle,
			"display", inc.Display)
		return
	}

	w.logger.Info("incoming_answering", "handle", inc.Handle)
	session, err := w.answerer.Answer(ctx, inc)
	if err != nil {
		w.logger.Error("incoming_answer_failed",
			"handle", inc.Handle,
			"error", err.Error())
		return
	}
	w.mu.Lock()
	w.status.AnsweredCalls++
	w.mu.Unlock()
	if session != nil {
		w.logger.Info("incoming_call_finished", "call_id", session.ID)
	}
}

func (w *Watcher) isTrusted(inc driver.IncomingCall) bool {
	if len(w.trusted) == 0 {
		return false
	}
	if _, ok := w.trusted[normalize(inc.Handle)]; ok {
		return true
	}
	_, ok := w.trusted[normalize(inc.Display)]
	return ok
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, s)
}
