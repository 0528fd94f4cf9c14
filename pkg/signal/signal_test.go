package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satriadi/bellhop/pkg/driver"
	drivermock "github.com/satriadi/bellhop/pkg/driver/mock"
	"github.com/satriadi/bellhop/pkg/logging"
)

func testSignal(d driver.CallDriver) *Signal {
	return New(d, 5*time.Millisecond, logging.InitLogger(logging.ParseLevel("error"), "text"))
}

func collect(t *testing.T, ch <-chan driver.LinkState, deadline time.Duration) []driver.LinkState {
	t.Helper()
	var out []driver.LinkState
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s)
		case <-timer.C:
			t.Fatalf("watch did not finish, got %v", out)
		}
	}
}

func TestWatchDebouncesRepeatedSamples(t *testing.T) {
	d := drivermock.New()
	d.States = []driver.LinkState{
		driver.LinkConnecting, driver.LinkConnecting, driver.LinkConnecting,
		driver.LinkConnected, driver.LinkConnected,
		driver.LinkEnded,
	}
	s := testSignal(d)

	got := collect(t, s.Watch(context.Background()), time.Second)
	want := []driver.LinkState{driver.LinkConnecting, driver.LinkConnected, driver.LinkEnded}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestWatchSurvivesPollErrors(t *testing.T) {
	d := drivermock.New()
	d.States = []driver.LinkState{driver.LinkConnected, driver.LinkEnded}
	s := testSignal(d)

	// An early poll error must not emit an end state.
	d.StateErr = errors.New("driver busy")
	states := s.Watch(context.Background())
	time.Sleep(20 * time.Millisecond)
	d.StateErr = nil

	got := collect(t, states, time.Second)
	if len(got) == 0 || got[len(got)-1] != driver.LinkEnded {
		t.Fatalf("expected recovery then ENDED, got %v", got)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	d := drivermock.New()
	d.States = []driver.LinkState{driver.LinkConnected}
	s := testSignal(d)

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Watch(ctx)
	time.Sleep(15 * time.Millisecond)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("watch channel never closed after cancel")
		}
	}
}

func TestWaitConnected(t *testing.T) {
	ch := make(chan driver.LinkState, 2)
	ch <- driver.LinkConnecting
	ch <- driver.LinkConnected
	if !WaitConnected(context.Background(), ch, time.Second) {
		t.Fatalf("expected connected")
	}

	ended := make(chan driver.LinkState, 1)
	ended <- driver.LinkEnded
	if WaitConnected(context.Background(), ended, time.Second) {
		t.Fatalf("expected not connected on ENDED")
	}

	if WaitConnected(context.Background(), make(chan driver.LinkState), 10*time.Millisecond) {
		t.Fatalf("expected timeout to report not connected")
	}
}

func TestHangupBestEffort(t *testing.T) {
	d := drivermock.New()
	d.HangupErr = errors.New("app not responding")
	s := testSignal(d)
	// Must not panic or propagate.
	s.Hangup(context.Background())
	if d.Hangups() != 1 {
		t.Fatalf("expected hangup attempted")
	}
}
