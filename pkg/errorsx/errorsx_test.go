package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	base := errors.New("device busy")
	err := Wrap(base, ReasonRoutingSetup)
	if Reason(err) != ReasonRoutingSetup {
		t.Fatalf("expected routing_setup, got %s", Reason(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to unwrap to base")
	}
}

func TestWrapKeepsFirstReason(t *testing.T) {
	err := Wrap(errors.New("dial failed"), ReasonDial)
	err = Wrap(err, ReasonAnswer)
	if !HasReason(err, ReasonDial) {
		t.Fatalf("expected first reason to stick, got %s", Reason(err))
	}
}

func TestReasonThroughFmtWrap(t *testing.T) {
	err := Wrap(errors.New("boom"), ReasonPlayback)
	outer := fmt.Errorf("speak: %w", err)
	if Reason(outer) != ReasonPlayback {
		t.Fatalf("expected playback through fmt wrap, got %s", Reason(outer))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonDial) != nil {
		t.Fatalf("expected nil for nil error")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown for nil error")
	}
}
