package respond

import (
	"context"
	"sync"
)

// Static cycles through a fixed list of replies. Useful for scripted
// calls and as the fallback when no reply backend is configured.
type Static struct {
	mu      sync.Mutex
	replies []string
	next    int
}

func NewStatic(replies ...string) *Static {
	if len(replies) == 0 {
		replies = []string{"I'm sorry, could you repeat that?"}
	}
	return &Static{replies: replies}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Respond(ctx context.Context, input string, history []Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply := s.replies[s.next%len(s.replies)]
	s.next++
	return reply, nil
}

var _ Responder = (*Static)(nil)
