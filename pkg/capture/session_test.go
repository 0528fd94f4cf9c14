package capture

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/satriadi/bellhop/pkg/audio"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/turn"
)

const testRate = 8000

func pcmBurst(amplitude int16, seconds float64) []int16 {
	n := int(seconds * testRate)
	out := make([]int16, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amplitude
		} else {
			out[i] = -amplitude
		}
	}
	return out
}

func pcmSilence(seconds float64) []int16 {
	return make([]int16, int(seconds*testRate))
}

func listeningGate(t *testing.T) turn.Gate {
	t.Helper()
	g := turn.NewGate()
	if err := g.BeginListening("test"); err != nil {
		t.Fatalf("gate: %v", err)
	}
	return g
}

func runSession(t *testing.T, samples []int16, cfg Config, gate turn.Gate) []Utterance {
	t.Helper()
	cfg.SampleRate = testRate
	src := &ReaderSource{R: bytes.NewReader(audio.EncodePCM16(samples))}
	s := NewSession(src, gate, cfg, logging.InitLogger(logging.ParseLevel("error"), "text"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	var got []Utterance
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-s.Utterances():
			if !ok {
				return got
			}
			got = append(got, u)
		case <-deadline:
			t.Fatalf("session never drained, got %d utterances", len(got))
		}
	}
}

func TestSilenceBoundaryClosesUtterance(t *testing.T) {
	var samples []int16
	samples = append(samples, pcmBurst(8000, 1.0)...)
	samples = append(samples, pcmSilence(2.0)...)
	samples = append(samples, pcmBurst(8000, 1.0)...)
	samples = append(samples, pcmSilence(2.0)...)

	got := runSession(t, samples, Config{
		SilenceLevel: 0.05,
		SilenceHold:  1500 * time.Millisecond,
		MinUtterance: 500 * time.Millisecond,
	}, listeningGate(t))

	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(got))
	}
	for _, u := range got {
		if !u.SilenceEnded {
			t.Fatalf("expected silence-terminated utterance")
		}
		if u.Duration() < time.Second {
			t.Fatalf("expected at least the speech duration, got %v", u.Duration())
		}
	}
}

func TestBriefNoiseBelowFloorDiscarded(t *testing.T) {
	var samples []int16
	samples = append(samples, pcmBurst(8000, 0.2)...)
	samples = append(samples, pcmSilence(2.0)...)

	got := runSession(t, samples, Config{
		SilenceLevel: 0.05,
		SilenceHold:  1500 * time.Millisecond,
		MinUtterance: 500 * time.Millisecond,
	}, listeningGate(t))

	if len(got) != 0 {
		t.Fatalf("expected brief noise discarded, got %d", len(got))
	}
}

func TestMaxLengthCutsUtterance(t *testing.T) {
	samples := pcmBurst(8000, 3.0)

	got := runSession(t, samples, Config{
		SilenceLevel: 0.05,
		SilenceHold:  1500 * time.Millisecond,
		MinUtterance: 500 * time.Millisecond,
		MaxUtterance: time.Second,
	}, listeningGate(t))

	if len(got) < 2 {
		t.Fatalf("expected long burst cut into segments, got %d", len(got))
	}
	if got[0].SilenceEnded {
		t.Fatalf("expected timeout-terminated first segment")
	}
}

// TestLouderThresholdNeverMoreSegments checks the reconfiguration property:
// raising the silence amplitude level must never produce more segments for
// the same audio.
func TestLouderThresholdNeverMoreSegments(t *testing.T) {
	var samples []int16
	samples = append(samples, pcmBurst(2000, 1.0)...)
	samples = append(samples, pcmSilence(2.0)...)
	samples = append(samples, pcmBurst(12000, 1.0)...)
	samples = append(samples, pcmSilence(2.0)...)
	samples = append(samples, pcmBurst(5000, 1.0)...)
	samples = append(samples, pcmSilence(2.0)...)

	thresholds := []float64{0.01, 0.1, 0.3, 0.9}
	prev := -1
	for _, level := range thresholds {
		got := runSession(t, samples, Config{
			SilenceLevel: level,
			SilenceHold:  1500 * time.Millisecond,
			MinUtterance: 500 * time.Millisecond,
		}, listeningGate(t))
		if prev >= 0 && len(got) > prev {
			t.Fatalf("louder threshold %v produced %d segments, quieter run produced %d",
				level, len(got), prev)
		}
		prev = len(got)
	}
}

func TestCapturePausedWhileSpeaking(t *testing.T) {
	g := turn.NewGate()
	_ = g.BeginListening("test")
	_ = g.BeginProcessing("test")
	_ = g.BeginSpeaking("test")

	var samples []int16
	samples = append(samples, pcmBurst(8000, 1.0)...)
	samples = append(samples, pcmSilence(2.0)...)

	got := runSession(t, samples, Config{
		SilenceLevel: 0.05,
		SilenceHold:  1500 * time.Millisecond,
		MinUtterance: 500 * time.Millisecond,
	}, g)

	if len(got) != 0 {
		t.Fatalf("expected no utterances while gate is speaking, got %d", len(got))
	}
}

func TestSessionRestartable(t *testing.T) {
	g := listeningGate(t)
	logger := logging.InitLogger(logging.ParseLevel("error"), "text")

	var samples []int16
	samples = append(samples, pcmBurst(8000, 1.0)...)
	samples = append(samples, pcmSilence(2.0)...)
	data := audio.EncodePCM16(samples)

	src := &ReaderSource{R: bytes.NewReader(data)}
	s := NewSession(src, g, Config{
		SampleRate:   testRate,
		SilenceLevel: 0.05,
		SilenceHold:  1500 * time.Millisecond,
		MinUtterance: 500 * time.Millisecond,
	}, logger)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail while running")
	}
	first := 0
	for range s.Utterances() {
		first++
	}
	s.Stop()

	// A fresh start after stop begins an independent run.
	src.R = bytes.NewReader(data)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	second := 0
	for range s.Utterances() {
		second++
	}
	s.Stop()

	if first != 1 || second != 1 {
		t.Fatalf("expected one utterance per run, got %d and %d", first, second)
	}
}
