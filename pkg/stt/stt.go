package stt

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/satriadi/bellhop/pkg/audio"
	"github.com/satriadi/bellhop/pkg/capture"
	"github.com/satriadi/bellhop/pkg/errorsx"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/resilience"
)

// Transcriber converts one finished audio segment into text.
// Implementations are batch converters: whole segment in, plain text out,
// empty string when no speech was detected.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, u capture.Utterance) (string, error)
}

// Pipeline wraps a Transcriber with the resampling the converter expects
// and a circuit breaker so a converter that is down mid-call stops being
// hammered. Transcription failure is never fatal to the call: the
// orchestrator surfaces it as an unintelligible turn.
type Pipeline struct {
	transcriber Transcriber
	targetRate  int
	breaker     *resilience.CircuitBreaker
	logger      *slog.Logger
}

func NewPipeline(t Transcriber, targetRate int, logger *slog.Logger) *Pipeline {
	if targetRate <= 0 {
		targetRate = 16000
	}
	return &Pipeline{
		transcriber: t,
		targetRate:  targetRate,
		breaker:     resilience.NewCircuitBreaker(3, 15*time.Second),
		logger:      logging.NewComponentLogger(logger, "stt"),
	}
}

// Transcribe resamples the utterance to the converter's rate and runs it.
func (p *Pipeline) Transcribe(ctx context.Context, u capture.Utterance) (string, error) {
	if !p.breaker.Allow() {
		return "", errorsx.Wrap(errBreakerOpen, errorsx.ReasonSTTCircuitOpen)
	}

	if u.SampleRate != p.targetRate {
		resampled, err := audio.Resample(u.Samples, u.SampleRate, p.targetRate)
		if err != nil {
			return "", errorsx.Wrap(err, errorsx.ReasonTranscribe)
		}
		u.Samples = resampled
		u.SampleRate = p.targetRate
	}

	text, err := p.transcriber.Transcribe(ctx, u)
	if err != nil {
		p.breaker.OnError(err)
		p.logger.Warn("transcription_failed",
			"utterance_id", u.ID,
			"converter", p.transcriber.Name(),
			"error", err.Error())
		return "", errorsx.Wrap(err, errorsx.ReasonTranscribe)
	}
	p.breaker.OnSuccess()
	return strings.TrimSpace(text), nil
}

type breakerOpenError struct{}

func (breakerOpenError) Error() string { return "transcription converter circuit open" }

var errBreakerOpen = breakerOpenError{}
