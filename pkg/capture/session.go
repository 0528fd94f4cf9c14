// Package capture segments a continuous stream of routed call audio into
// discrete utterances on silence boundaries. Call audio arrives at a very
// low native amplitude, so a fixed gain is applied before silence analysis;
// the emitted samples stay pre-gain to avoid clipping the audio handed to
// transcription.
package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satriadi/bellhop/pkg/audio"
	"github.com/satriadi/bellhop/pkg/errorsx"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/turn"
)

// Utterance is one bounded speech segment.
type Utterance struct {
	ID         string
	Start      time.Time
	End        time.Time
	Samples    []int16
	SampleRate int
	// SilenceEnded is true when the segment was closed by a silence
	// boundary; false means it was cut by the max-length limit or by the
	// stream ending.
	SilenceEnded bool
	// Text is filled in by the transcription pipeline.
	Text string
}

// Duration is the wall time covered by the segment's samples.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}

type Config struct {
	SampleRate    int
	GainDb        float64
	SilenceLevel  float64
	SilenceHold   time.Duration
	MinUtterance  time.Duration
	MaxUtterance  time.Duration
	FrameDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.SilenceLevel <= 0 {
		c.SilenceLevel = 0.015
	}
	if c.SilenceHold <= 0 {
		c.SilenceHold = 1500 * time.Millisecond
	}
	if c.MinUtterance <= 0 {
		c.MinUtterance = 500 * time.Millisecond
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = 30 * time.Second
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = 20 * time.Millisecond
	}
	return c
}

// Session is a restartable recording session: a fresh Start after Stop
// begins a new independent segmentation run with its own utterance channel.
type Session struct {
	cfg    Config
	src    Source
	gate   turn.Gate
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	out     chan Utterance
}

func NewSession(src Source, gate turn.Gate, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg.withDefaults(),
		src:    src,
		gate:   gate,
		logger: logging.NewComponentLogger(logger, "capture"),
	}
}

// Start opens the capture stream and begins segmentation.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errorsx.Wrap(errors.New("capture already running"), errorsx.ReasonCapture)
	}

	stream, err := s.src.Open(ctx)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCapture)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.out = make(chan Utterance, 8)
	s.running = true
	s.wg.Add(1)
	go s.loop(runCtx, stream, s.out)
	return nil
}

// Utterances returns the channel for the current run. It closes when the
// stream ends or the session stops.
func (s *Session) Utterances() <-chan Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Stop ends the current run and waits for the reader to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Session) loop(ctx context.Context, stream io.ReadCloser, out chan Utterance) {
	defer s.wg.Done()
	defer close(out)
	defer stream.Close()

	frameSamples := int(s.cfg.FrameDuration.Seconds() * float64(s.cfg.SampleRate))
	frameBytes := frameSamples * 2
	buf := make([]byte, frameBytes)

	var (
		segment    []int16
		segStart   time.Time
		silenceRun time.Duration
	)

	flush := func(silenceEnded bool) {
		speech := time.Duration(len(segment))*time.Second/time.Duration(s.cfg.SampleRate) - silenceRun
		if speech < s.cfg.MinUtterance {
			if len(segment) > 0 {
				s.logger.Debug("segment_discarded", "samples", len(segment))
			}
			segment = nil
			silenceRun = 0
			return
		}
		u := Utterance{
			ID:           uuid.NewString(),
			Start:        segStart,
			End:          time.Now(),
			Samples:      segment,
			SampleRate:   s.cfg.SampleRate,
			SilenceEnded: silenceEnded,
		}
		segment = nil
		silenceRun = 0
		select {
		case out <- u:
			s.logger.Info("utterance_closed",
				"utterance_id", u.ID,
				"duration_ms", u.Duration().Milliseconds(),
				"silence_ended", silenceEnded)
		default:
			s.logger.Warn("utterance_dropped", "utterance_id", u.ID)
		}
	}

	for {
		if ctx.Err() != nil {
			flush(false)
			return
		}
		if _, err := io.ReadFull(stream, buf); err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Error("capture_read_error", "error", err.Error())
			}
			flush(false)
			return
		}

		// The gate pauses capture entirely during playback so the
		// outgoing synthesized audio can never come back as a false
		// utterance. Any partly open segment is the tail of our own
		// speech leaking in and is discarded.
		if !s.gate.CaptureAllowed() {
			segment = nil
			silenceRun = 0
			continue
		}

		raw := audio.DecodePCM16(buf)
		level := audio.RMS(audio.ApplyGainDb(raw, s.cfg.GainDb))

		if level >= s.cfg.SilenceLevel {
			if len(segment) == 0 {
				segStart = time.Now()
			}
			segment = append(segment, raw...)
			silenceRun = 0
		} else if len(segment) > 0 {
			segment = append(segment, raw...)
			silenceRun += s.cfg.FrameDuration
			if silenceRun >= s.cfg.SilenceHold {
				flush(true)
			}
		}

		if len(segment) > 0 {
			total := time.Duration(len(segment)) * time.Second / time.Duration(s.cfg.SampleRate)
			if total >= s.cfg.MaxUtterance {
				flush(false)
			}
		}
	}
}
