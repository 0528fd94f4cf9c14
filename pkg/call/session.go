package call

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// Speaker labels for transcript entries.
const (
	SpeakerAgent  = "agent"
	SpeakerCaller = "caller"
)

// Entry is one line of the running transcript.
type Entry struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

// Session is one live call from dial (or answer) to teardown. Transcript
// appends are safe from the capture and dispatch goroutines.
type Session struct {
	ID        string
	Direction Direction
	Target    string
	Display   string
	StartedAt time.Time

	mu        sync.Mutex
	entries   []Entry
	endedAt   time.Time
	endCause  string
	observers []func(Entry)
}

func NewSession(direction Direction, target, display string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Direction: direction,
		Target:    target,
		Display:   display,
		StartedAt: time.Now(),
	}
}

// Append records one utterance with the current time. Observers run
// outside the lock so a slow one cannot stall capture or dispatch.
func (s *Session) Append(speaker, text string) Entry {
	e := Entry{Speaker: speaker, Text: text, Time: time.Now()}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	observers := make([]func(Entry), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(e)
	}
	return e
}

// AddObserver registers a callback for every appended entry. Used by the
// control surface to stream the transcript live.
func (s *Session) AddObserver(fn func(Entry)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Transcript returns a copy of the entries so far.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// End stamps the session once; later causes are ignored.
func (s *Session) End(cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedAt.IsZero() {
		s.endedAt = time.Now()
		s.endCause = cause
	}
}

func (s *Session) EndedAt() (time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt, s.endCause
}

func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.endedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}
