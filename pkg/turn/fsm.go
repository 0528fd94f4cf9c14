package turn

import (
	"sync"
	"time"
)

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes turn state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// stateMachine implements the finite state machine for turn management.
type stateMachine struct {
	currentState State
	mu           sync.RWMutex

	// State tracking
	speakingStartTime  time.Time
	listeningStartTime time.Time

	// Event emission
	stateChangeListeners []StateListener
}

// NewGate creates the turn gate in the IDLE state.
func NewGate() Gate {
	return &stateMachine{currentState: StateIdle}
}

// State returns the current state.
func (tm *stateMachine) State() State {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.currentState
}

// CaptureAllowed reports whether the recording session may consume audio.
func (tm *stateMachine) CaptureAllowed() bool {
	return tm.State() == StateListening
}

// transitionValid checks if a state transition is valid (must be called with lock held).
func (tm *stateMachine) transitionValid(from, to State) bool {
	validTransitions := map[State][]State{
		StateIdle:       {StateListening},
		StateListening:  {StateProcessing, StateIdle},
		StateProcessing: {StateSpeaking, StateListening, StateIdle},
		StateSpeaking:   {StateListening, StateIdle},
	}

	allowedStates, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return true
		}
	}
	return false
}

// transition moves to a new state with validation.
func (tm *stateMachine) transition(state State, reason string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if !tm.transitionValid(tm.currentState, state) {
		return &InvalidTransitionError{
			From: tm.currentState,
			To:   state,
		}
	}

	oldState := tm.currentState
	tm.currentState = state

	switch state {
	case StateListening:
		tm.listeningStartTime = time.Now()
	case StateSpeaking:
		tm.speakingStartTime = time.Now()
	}

	event := StateChange{
		FromState: oldState,
		ToState:   state,
		Timestamp: time.Now(),
		Reason:    reason,
	}

	// Notify listeners (release lock during notification to avoid deadlocks)
	listeners := make([]StateListener, len(tm.stateChangeListeners))
	copy(listeners, tm.stateChangeListeners)
	tm.mu.Unlock()

	for _, listener := range listeners {
		listener.OnStateChange(event)
	}

	tm.mu.Lock()
	return nil
}

// BeginListening opens the capture window. Valid from IDLE (call connected),
// PROCESSING (turn produced no reply) and SPEAKING (playback finished).
func (tm *stateMachine) BeginListening(reason string) error {
	return tm.transition(StateListening, reason)
}

// BeginProcessing closes the capture window for transcription and reply
// generation.
func (tm *stateMachine) BeginProcessing(reason string) error {
	return tm.transition(StateProcessing, reason)
}

// BeginSpeaking acquires the playback side of the gate. It fails unless a
// turn is being processed, which is what makes simultaneous capture and
// playback structurally impossible.
func (tm *stateMachine) BeginSpeaking(reason string) error {
	return tm.transition(StateSpeaking, reason)
}

// EndSpeaking releases playback and reopens capture. This transition is the
// sole trigger that lets the recording session resume.
func (tm *stateMachine) EndSpeaking(reason string) error {
	return tm.transition(StateListening, reason)
}

// Reset forces the gate back to IDLE from any state, for teardown.
func (tm *stateMachine) Reset(reason string) {
	tm.mu.Lock()
	if tm.currentState == StateIdle {
		tm.mu.Unlock()
		return
	}
	oldState := tm.currentState
	tm.currentState = StateIdle
	event := StateChange{
		FromState: oldState,
		ToState:   StateIdle,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	listeners := make([]StateListener, len(tm.stateChangeListeners))
	copy(listeners, tm.stateChangeListeners)
	tm.mu.Unlock()

	for _, listener := range listeners {
		listener.OnStateChange(event)
	}
}

// AddListener registers a listener for state change events.
func (tm *stateMachine) AddListener(listener StateListener) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.stateChangeListeners = append(tm.stateChangeListeners, listener)
}

// InvalidTransitionError represents an invalid state transition attempt
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
