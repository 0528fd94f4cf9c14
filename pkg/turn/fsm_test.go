package turn

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

type captureListener struct {
	mu     sync.Mutex
	events []StateChange
}

func (c *captureListener) OnStateChange(event StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureListener) Events() []StateChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StateChange, len(c.events))
	copy(out, c.events)
	return out
}

func TestGateTurnCycle(t *testing.T) {
	g := NewGate()
	if g.State() != StateIdle {
		t.Fatalf("expected IDLE start, got %s", g.State())
	}
	if err := g.BeginListening("connected"); err != nil {
		t.Fatalf("listening: %v", err)
	}
	if !g.CaptureAllowed() {
		t.Fatalf("expected capture allowed while listening")
	}
	if err := g.BeginProcessing("utterance complete"); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if g.CaptureAllowed() {
		t.Fatalf("capture must stop during processing")
	}
	if err := g.BeginSpeaking("reply ready"); err != nil {
		t.Fatalf("speaking: %v", err)
	}
	if err := g.EndSpeaking("playback complete"); err != nil {
		t.Fatalf("end speaking: %v", err)
	}
	if !g.CaptureAllowed() {
		t.Fatalf("expected capture to resume after playback")
	}
}

func TestGateRejectsListeningToSpeaking(t *testing.T) {
	g := NewGate()
	if err := g.BeginListening("connected"); err != nil {
		t.Fatalf("listening: %v", err)
	}
	err := g.BeginSpeaking("skip processing")
	if err == nil {
		t.Fatalf("expected direct LISTENING to SPEAKING to be rejected")
	}
	if _, ok := err.(*InvalidTransitionError); !ok {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
}

func TestGateResetFromAnyState(t *testing.T) {
	g := NewGate()
	_ = g.BeginListening("connected")
	_ = g.BeginProcessing("turn")
	_ = g.BeginSpeaking("reply")
	g.Reset("teardown")
	if g.State() != StateIdle {
		t.Fatalf("expected IDLE after reset, got %s", g.State())
	}
	// Reset when already idle is a no-op.
	g.Reset("teardown")
	if g.State() != StateIdle {
		t.Fatalf("expected IDLE to be stable")
	}
}

// TestGateNoCapturePlaybackOverlap drives random transition timings and
// asserts from the event log that a capture window never overlaps a
// speaking window.
func TestGateNoCapturePlaybackOverlap(t *testing.T) {
	g := NewGate()
	listener := &captureListener{}
	g.AddListener(listener)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		_ = g.BeginListening("cycle")
		time.Sleep(time.Duration(rng.Intn(3)) * time.Millisecond)
		_ = g.BeginProcessing("cycle")
		if rng.Intn(2) == 0 {
			_ = g.BeginSpeaking("cycle")
			time.Sleep(time.Duration(rng.Intn(3)) * time.Millisecond)
			_ = g.EndSpeaking("cycle")
		} else {
			_ = g.BeginListening("no reply")
		}
		g.Reset("cycle end")
	}

	speaking := false
	for _, ev := range listener.Events() {
		switch ev.ToState {
		case StateSpeaking:
			if speaking {
				t.Fatalf("nested speaking window")
			}
			if ev.FromState == StateListening {
				t.Fatalf("speaking entered straight from listening")
			}
			speaking = true
		case StateListening:
			if speaking && ev.FromState != StateSpeaking {
				t.Fatalf("listening opened while speaking active")
			}
			speaking = false
		case StateIdle:
			speaking = false
		}
	}
}
