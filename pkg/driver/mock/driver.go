// Package mock provides a scriptable call driver for tests.
package mock

import (
	"context"
	"sync"

	"github.com/satriadi/bellhop/pkg/driver"
)

type Driver struct {
	mu sync.Mutex

	// Scripted behavior.
	DialErr   error
	AnswerErr error
	HangupErr error
	StateErr  error
	States    []driver.LinkState
	Ringing   *driver.IncomingCall

	// Recorded activity.
	DialedTargets []string
	AnswerCalls   int
	HangupCalls   int
	SentTexts     []string

	stateIdx int
}

func New() *Driver { return &Driver{} }

func (d *Driver) Name() string { return "mock" }

func (d *Driver) Dial(ctx context.Context, target string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return d.DialErr
	}
	d.DialedTargets = append(d.DialedTargets, target)
	return nil
}

func (d *Driver) Answer(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AnswerErr != nil {
		return d.AnswerErr
	}
	d.AnswerCalls++
	return nil
}

func (d *Driver) Hangup(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.HangupCalls++
	return d.HangupErr
}

// State replays the scripted state sequence, holding the last entry once
// exhausted.
func (d *Driver) State(ctx context.Context) (driver.LinkState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.StateErr != nil {
		return driver.LinkNone, d.StateErr
	}
	if len(d.States) == 0 {
		return driver.LinkNone, nil
	}
	s := d.States[d.stateIdx]
	if d.stateIdx < len(d.States)-1 {
		d.stateIdx++
	}
	return s, nil
}

func (d *Driver) Incoming(ctx context.Context) (driver.IncomingCall, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Ringing == nil {
		return driver.IncomingCall{}, false, nil
	}
	return *d.Ringing, true, nil
}

func (d *Driver) SendText(ctx context.Context, target, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SentTexts = append(d.SentTexts, text)
	return nil
}

func (d *Driver) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.DialedTargets))
	copy(out, d.DialedTargets)
	return out
}

func (d *Driver) Answers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.AnswerCalls
}

func (d *Driver) Hangups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.HangupCalls
}

var (
	_ driver.CallDriver     = (*Driver)(nil)
	_ driver.IncomingPoller = (*Driver)(nil)
	_ driver.TextSender     = (*Driver)(nil)
)
