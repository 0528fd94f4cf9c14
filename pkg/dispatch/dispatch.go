// Package dispatch delivers agent replies into the call. It owns the
// SPEAKING phase of the turn gate: capture stays paused for the whole
// playback so the agent never transcribes its own voice.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/satriadi/bellhop/pkg/call"
	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/turn"
	"github.com/satriadi/bellhop/pkg/tts"
)

type Dispatcher struct {
	speaker tts.Speaker
	gate    turn.Gate
	texter  driver.TextSender // nil when the driver cannot send texts
	logger  *slog.Logger
}

func New(speaker tts.Speaker, gate turn.Gate, texter driver.TextSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		speaker: speaker,
		gate:    gate,
		texter:  texter,
		logger:  logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Speak plays the reply into the call and records it on the transcript.
// The gate moves to SPEAKING before playback starts and back to LISTENING
// when playback finishes, including when playback fails: a stuck SPEAKING
// state would deafen the rest of the call.
func (d *Dispatcher) Speak(ctx context.Context, session *call.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		if err := d.gate.BeginListening("empty_reply"); err != nil {
			d.logger.Debug("gate_already_listening", "error", err.Error())
		}
		return nil
	}

	if d.gate.State() == turn.StateListening {
		if err := d.gate.BeginProcessing("reply_ready"); err != nil {
			return err
		}
	}
	if err := d.gate.BeginSpeaking("reply_ready"); err != nil {
		return err
	}
	speakErr := d.speaker.Speak(ctx, text)
	if err := d.gate.EndSpeaking("reply_done"); err != nil {
		d.logger.Warn("gate_resume_failed", "error", err.Error())
	}

	if session != nil {
		session.Append(call.SpeakerAgent, text)
	}
	if speakErr != nil {
		d.logger.Warn("reply_playback_failed",
			"backend", d.speaker.Name(),
			"error", speakErr.Error())
		return speakErr
	}
	d.logger.Info("reply_spoken", "chars", len(text))
	return nil
}

// Greet speaks the opening line on a fresh call. The gate is still IDLE at
// that point, so it passes through LISTENING first to satisfy the
// transition rules.
func (d *Dispatcher) Greet(ctx context.Context, session *call.Session, greeting string) error {
	if strings.TrimSpace(greeting) == "" {
		if err := d.gate.BeginListening("no_greeting"); err != nil {
			return err
		}
		return nil
	}
	if d.gate.State() == turn.StateIdle {
		if err := d.gate.BeginListening("call_connected"); err != nil {
			return err
		}
	}
	return d.Speak(ctx, session, greeting)
}

// Text delivers a reply over the driver's text side channel instead of
// the voice path, records it, and reopens capture. The turn cycle stays
// intact in text mode: the gate never enters SPEAKING because nothing is
// played into the call.
func (d *Dispatcher) Text(ctx context.Context, session *call.Session, target, text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		d.SendText(ctx, target, text)
		if session != nil {
			session.Append(call.SpeakerAgent, text)
		}
	}
	if d.gate.State() != turn.StateListening {
		if err := d.gate.BeginListening("text_reply"); err != nil {
			d.logger.Warn("gate_resume_failed", "error", err.Error())
		}
	}
}

// SendText delivers a text message through the call driver, best effort.
// Drivers without text support make this a no-op.
func (d *Dispatcher) SendText(ctx context.Context, target, text string) {
	if d.texter == nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := d.texter.SendText(ctx, target, text); err != nil {
		d.logger.Warn("send_text_failed", "error", err.Error())
		return
	}
	d.logger.Info("text_sent", "chars", len(text))
}
