// Package orchestrator drives a call end to end: route setup, dial or
// answer, greeting, the listen/transcribe/reply loop, and teardown. The
// audio route is always established before the call application is touched
// and always restored afterwards, whatever else fails in between.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/satriadi/bellhop/pkg/call"
	"github.com/satriadi/bellhop/pkg/capture"
	"github.com/satriadi/bellhop/pkg/dispatch"
	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/errorsx"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/respond"
	"github.com/satriadi/bellhop/pkg/route"
	"github.com/satriadi/bellhop/pkg/signal"
	"github.com/satriadi/bellhop/pkg/turn"
)

// End causes recorded on the session.
const (
	EndExitPhrase   = "exit_phrase"
	EndRemoteHangup = "remote_hangup"
	EndWatchdog     = "watchdog_timeout"
	EndCancelled    = "cancelled"
	EndNeverAnswer  = "never_connected"
	EndStreamClosed = "capture_closed"
)

// Response delivery modes.
const (
	ModeVoice = "voice"
	ModeText  = "text"
)

var defaultExitPhrases = []string{
	"goodbye", "hang up", "end call", "bye bye", "talk to you later",
}

type Config struct {
	Greeting         string
	SuppressGreeting bool
	ResponseMode     string
	MaxCallDuration  time.Duration
	ConnectTimeout   time.Duration
	ExitPhrases      []string
	// RepeatPrompt is spoken when a turn could not be transcribed.
	RepeatPrompt string
}

func (c Config) withDefaults() Config {
	if c.ResponseMode == "" {
		c.ResponseMode = ModeVoice
	}
	if c.MaxCallDuration <= 0 {
		c.MaxCallDuration = 600 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 45 * time.Second
	}
	if len(c.ExitPhrases) == 0 {
		c.ExitPhrases = defaultExitPhrases
	}
	if c.RepeatPrompt == "" {
		c.RepeatPrompt = "Sorry, I didn't catch that. Could you say it again?"
	}
	return c
}

// Recorder is the capture session surface the orchestrator needs.
type Recorder interface {
	Start(ctx context.Context) error
	Stop()
	Utterances() <-chan capture.Utterance
}

// Transcriber converts a finished segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, u capture.Utterance) (string, error)
}

type Orchestrator struct {
	cfg        Config
	routes     *route.Manager
	sig        *signal.Signal
	recorder   Recorder
	transcribe Transcriber
	responder  respond.Responder
	dispatcher *dispatch.Dispatcher
	gate       turn.Gate
	registry   *call.Registry
	store      *call.Store
	logger     *slog.Logger
	onSession  func(*call.Session)
}

func New(
	cfg Config,
	routes *route.Manager,
	sig *signal.Signal,
	recorder Recorder,
	transcribe Transcriber,
	responder respond.Responder,
	dispatcher *dispatch.Dispatcher,
	gate turn.Gate,
	registry *call.Registry,
	store *call.Store,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		routes:     routes,
		sig:        sig,
		recorder:   recorder,
		transcribe: transcribe,
		responder:  responder,
		dispatcher: dispatcher,
		gate:       gate,
		registry:   registry,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// OnSession registers a hook that sees each session right after it claims
// the call slot, before anything happens on the call.
func (o *Orchestrator) OnSession(fn func(*call.Session)) {
	o.onSession = fn
}

// Run places an outgoing call and runs it to completion. The returned
// session is fully torn down and persisted by the time Run returns.
func (o *Orchestrator) Run(ctx context.Context, target string) (*call.Session, error) {
	session := call.NewSession(call.Outgoing, target, "")
	if err := o.registry.Acquire(session); err != nil {
		return nil, err
	}
	if o.onSession != nil {
		o.onSession(session)
	}
	return session, o.runCall(ctx, session, func(callCtx context.Context) error {
		if err := o.sig.Connect(callCtx, target); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonDial)
		}
		return nil
	})
}

// Answer takes an already ringing incoming call. Route setup happens
// before the call is accepted, for the same reason it precedes dialing:
// the call application latches its audio device when the call goes live.
func (o *Orchestrator) Answer(ctx context.Context, inc driver.IncomingCall) (*call.Session, error) {
	session := call.NewSession(call.Incoming, inc.Handle, inc.Display)
	if err := o.registry.Acquire(session); err != nil {
		return nil, err
	}
	if o.onSession != nil {
		o.onSession(session)
	}
	return session, o.runCall(ctx, session, func(callCtx context.Context) error {
		if err := o.sig.Answer(callCtx); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonAnswer)
		}
		return nil
	})
}

// runCall owns the shared lifecycle. connect is the only step that differs
// between directions.
func (o *Orchestrator) runCall(ctx context.Context, session *call.Session, connect func(context.Context) error) error {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var rt *route.Route
	recording := false
	defer func() {
		o.teardown(ctx, session, rt, recording)
	}()

	o.gate.Reset("call_start")
	o.logger.Info("call_starting",
		"call_id", session.ID,
		"direction", string(session.Direction),
		"target", session.Target)

	var err error
	rt, err = o.routes.Setup(callCtx)
	if err != nil {
		session.End("route_setup_failed")
		return err
	}

	if err := connect(callCtx); err != nil {
		session.End("connect_failed")
		return err
	}

	states := o.sig.Watch(callCtx)
	if !signal.WaitConnected(callCtx, states, o.cfg.ConnectTimeout) {
		session.End(EndNeverAnswer)
		return errorsx.Wrap(errors.New("call was never connected"), errorsx.ReasonDial)
	}
	o.logger.Info("call_connected", "call_id", session.ID)

	greeting := o.cfg.Greeting
	if o.cfg.SuppressGreeting {
		greeting = ""
	}
	if o.cfg.ResponseMode == ModeText {
		o.dispatcher.Text(callCtx, session, session.Target, greeting)
	} else if err := o.dispatcher.Greet(callCtx, session, greeting); err != nil {
		o.logger.Warn("greeting_failed", "error", err.Error())
	}

	if err := o.recorder.Start(callCtx); err != nil {
		session.End("capture_failed")
		return err
	}
	recording = true

	cause := o.turnLoop(callCtx, session, states)
	session.End(cause)
	o.logger.Info("call_ended",
		"call_id", session.ID,
		"cause", cause,
		"duration_ms", session.Duration().Milliseconds())
	return nil
}

// turnLoop runs until something ends the call and returns the cause. The
// watchdog deadline is checked again after each blocking turn so a timeout
// that lands mid-transcription still tears down right after the in-flight
// work resolves.
func (o *Orchestrator) turnLoop(ctx context.Context, session *call.Session, states <-chan driver.LinkState) string {
	watchdog := time.NewTimer(o.cfg.MaxCallDuration)
	defer watchdog.Stop()
	deadline := time.Now().Add(o.cfg.MaxCallDuration)

	for {
		select {
		case <-ctx.Done():
			return EndCancelled

		case <-watchdog.C:
			o.logger.Warn("watchdog_fired", "call_id", session.ID)
			return EndWatchdog

		case state, ok := <-states:
			if !ok || state == driver.LinkEnded {
				return EndRemoteHangup
			}

		case u, ok := <-o.recorder.Utterances():
			if !ok {
				return EndStreamClosed
			}
			exit := o.handleTurn(ctx, session, u, deadline)
			if time.Now().After(deadline) {
				return EndWatchdog
			}
			if exit {
				return EndExitPhrase
			}
		}
	}
}

// handleTurn transcribes one utterance and, unless the watchdog expired
// while the transcription was in flight, produces the reply. It reports
// whether the caller asked to end the call.
func (o *Orchestrator) handleTurn(ctx context.Context, session *call.Session, u capture.Utterance, deadline time.Time) bool {
	if err := o.gate.BeginProcessing("utterance_closed"); err != nil {
		o.logger.Warn("gate_processing_failed", "error", err.Error())
	}

	text, err := o.transcribe.Transcribe(ctx, u)
	expired := time.Now().After(deadline)
	if err != nil {
		o.logger.Warn("turn_unintelligible",
			"utterance_id", u.ID,
			"error", err.Error())
		if !expired {
			o.prompt(ctx, session)
		}
		return false
	}
	if text == "" {
		_ = o.dispatcher.Speak(ctx, session, "")
		return false
	}

	session.Append(call.SpeakerCaller, text)
	o.logger.Info("caller_said", "call_id", session.ID, "chars", len(text))

	if o.isExitPhrase(text) {
		return true
	}
	if expired {
		return false
	}

	reply, err := o.responder.Respond(ctx, text, history(session))
	if err != nil {
		o.logger.Warn("responder_failed", "error", err.Error())
		o.prompt(ctx, session)
		return false
	}

	if o.cfg.ResponseMode == ModeText {
		o.dispatcher.Text(ctx, session, session.Target, reply)
		return false
	}
	_ = o.dispatcher.Speak(ctx, session, reply)
	return false
}

// prompt asks the caller to repeat themselves over whichever channel the
// call is configured to reply on.
func (o *Orchestrator) prompt(ctx context.Context, session *call.Session) {
	if o.cfg.ResponseMode == ModeText {
		o.dispatcher.Text(ctx, session, session.Target, o.cfg.RepeatPrompt)
		return
	}
	_ = o.dispatcher.Speak(ctx, session, o.cfg.RepeatPrompt)
}

func (o *Orchestrator) isExitPhrase(text string) bool {
	normalized := strings.ToLower(text)
	for _, phrase := range o.cfg.ExitPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// teardown runs every step unconditionally and in order: stop the
// recording, hang up, restore the audio route, persist the transcript,
// release the single-call slot. It uses a detached context so a cancelled
// call still restores the machine.
func (o *Orchestrator) teardown(ctx context.Context, session *call.Session, rt *route.Route, recording bool) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if recording {
		o.recorder.Stop()
	}
	o.sig.Hangup(cleanupCtx)
	if err := o.routes.Teardown(cleanupCtx, rt); err != nil {
		o.logger.Error("route_teardown_failed", "error", err.Error())
	}
	if o.store != nil {
		if path, err := o.store.Save(session); err != nil {
			o.logger.Error("transcript_save_failed", "error", err.Error())
		} else {
			o.logger.Info("transcript_saved", "call_id", session.ID, "path", path)
		}
	}
	o.registry.Release(session)
	o.gate.Reset("teardown")
}

func history(s *call.Session) []respond.Turn {
	entries := s.Transcript()
	turns := make([]respond.Turn, 0, len(entries))
	for _, e := range entries {
		turns = append(turns, respond.Turn{Speaker: e.Speaker, Text: e.Text})
	}
	return turns
}
