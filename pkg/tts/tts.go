package tts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/satriadi/bellhop/pkg/errorsx"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/resilience"
)

// Audio is one synthesized clip.
type Audio struct {
	Data       []byte
	Format     string // "wav", "mp3"
	SampleRate int
}

// Synthesizer turns reply text into an audio clip.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Player plays a clip into an output device. For live calls the device is
// the virtual microphone the call app reads from.
type Player interface {
	Play(ctx context.Context, a Audio) error
}

// Speaker delivers reply text into the call. Some backends synthesize and
// play in one step (a local say command), others compose a Synthesizer
// with a Player.
type Speaker interface {
	Name() string
	Speak(ctx context.Context, text string) error
}

// SynthSpeaker composes a Synthesizer and a Player into a Speaker.
// Synthesis is retried on rate limits; playback is not, since replaying a
// half-heard clip is worse than losing it.
type SynthSpeaker struct {
	synth  Synthesizer
	player Player
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func NewSynthSpeaker(synth Synthesizer, player Player, logger *slog.Logger) *SynthSpeaker {
	return &SynthSpeaker{
		synth:  synth,
		player: player,
		retry:  resilience.NewRetryPolicy(2, 500*time.Millisecond),
		logger: logging.NewComponentLogger(logger, "tts"),
	}
}

func (s *SynthSpeaker) Name() string { return s.synth.Name() }

func (s *SynthSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var clip Audio
	err := s.retry.Do(func() error {
		var synthErr error
		clip, synthErr = s.synth.Synthesize(ctx, text)
		return synthErr
	})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSynthesize)
	}

	if err := s.player.Play(ctx, clip); err != nil {
		s.logger.Warn("playback_failed",
			"backend", s.synth.Name(),
			"error", err.Error())
		return errorsx.Wrap(err, errorsx.ReasonPlayback)
	}
	return nil
}

var _ Speaker = (*SynthSpeaker)(nil)
