// Package mock provides scriptable speech backends for tests.
package mock

import (
	"context"
	"sync"

	"github.com/satriadi/bellhop/pkg/tts"
)

type Speaker struct {
	mu sync.Mutex

	Err    error
	spoken []string
}

func NewSpeaker() *Speaker { return &Speaker{} }

func (s *Speaker) Name() string { return "mock" }

func (s *Speaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return s.Err
}

func (s *Speaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type Synthesizer struct {
	Clip tts.Audio
	Err  error
}

func (s *Synthesizer) Name() string { return "mock" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	return s.Clip, s.Err
}

type Player struct {
	mu     sync.Mutex
	Err    error
	played []tts.Audio
}

func (p *Player) Play(ctx context.Context, a tts.Audio) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, a)
	return p.Err
}

func (p *Player) Played() []tts.Audio {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tts.Audio(nil), p.played...)
}

var (
	_ tts.Speaker     = (*Speaker)(nil)
	_ tts.Synthesizer = (*Synthesizer)(nil)
	_ tts.Player      = (*Player)(nil)
)
