// Package mock provides a scriptable responder for tests.
package mock

import (
	"context"
	"sync"

	"github.com/satriadi/bellhop/pkg/respond"
)

type Responder struct {
	mu sync.Mutex

	// Replies are returned in order; the last one repeats once exhausted.
	Replies []string
	Err     error

	inputs    []string
	histories [][]respond.Turn
}

func New(replies ...string) *Responder {
	return &Responder{Replies: replies}
}

func (r *Responder) Name() string { return "mock" }

func (r *Responder) Respond(ctx context.Context, input string, history []respond.Turn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.inputs)
	r.inputs = append(r.inputs, input)
	r.histories = append(r.histories, append([]respond.Turn(nil), history...))
	if r.Err != nil {
		return "", r.Err
	}
	if len(r.Replies) == 0 {
		return "", nil
	}
	if idx >= len(r.Replies) {
		idx = len(r.Replies) - 1
	}
	return r.Replies[idx], nil
}

func (r *Responder) Inputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.inputs...)
}

func (r *Responder) LastHistory() []respond.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.histories) == 0 {
		return nil
	}
	return r.histories[len(r.histories)-1]
}

var _ respond.Responder = (*Responder)(nil)
