// Package mock provides a scriptable transcriber for tests.
package mock

import (
	"context"
	"sync"

	"github.com/satriadi/bellhop/pkg/capture"
	"github.com/satriadi/bellhop/pkg/stt"
)

type Transcriber struct {
	mu sync.Mutex

	// Texts are returned in order; the last one repeats once exhausted.
	Texts []string
	Err   error
	// Block, when non-nil, is closed by the test to release an in-flight
	// Transcribe call.
	Block chan struct{}

	calls int
}

func New(texts ...string) *Transcriber {
	return &Transcriber{Texts: texts}
}

func (t *Transcriber) Name() string { return "mock" }

func (t *Transcriber) Transcribe(ctx context.Context, u capture.Utterance) (string, error) {
	t.mu.Lock()
	block := t.Block
	idx := t.calls
	t.calls++
	err := t.Err
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Texts) == 0 {
		return "", nil
	}
	if idx >= len(t.Texts) {
		idx = len(t.Texts) - 1
	}
	return t.Texts[idx], nil
}

func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

var _ stt.Transcriber = (*Transcriber)(nil)
