package turn

type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

// Gate is the single mutual-exclusion point between capture and playback.
// Capture may only run while the gate reports LISTENING; playback may only
// run between a successful BeginSpeaking and the matching EndSpeaking. The
// two can therefore never be active at the same time.
type Gate interface {
	State() State
	CaptureAllowed() bool
	BeginListening(reason string) error
	BeginProcessing(reason string) error
	BeginSpeaking(reason string) error
	EndSpeaking(reason string) error
	Reset(reason string)
	AddListener(listener StateListener)
}
