package driver

import "context"

// LinkState is the connection state reported by the call application.
// It is a polled observation, never a push event.
type LinkState int

const (
	LinkNone LinkState = iota
	LinkConnecting
	LinkConnected
	LinkEnded
)

func (s LinkState) String() string {
	switch s {
	case LinkNone:
		return "NONE"
	case LinkConnecting:
		return "CONNECTING"
	case LinkConnected:
		return "CONNECTED"
	case LinkEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// IncomingCall describes a ringing call observed by polling.
type IncomingCall struct {
	Handle  string
	Display string
}

// CallDriver is the opaque command/result boundary to the call application.
// Every method is a synchronous command with a success/failure result; the
// core never assumes how the driver is implemented.
type CallDriver interface {
	Name() string
	// Dial asks the call application to place a call to target.
	Dial(ctx context.Context, target string) error
	// Answer accepts the currently ringing call.
	Answer(ctx context.Context) error
	// Hangup ends the active call. Callers treat failure as best-effort.
	Hangup(ctx context.Context) error
	// State samples the current connection state.
	State(ctx context.Context) (LinkState, error)
}

// IncomingPoller is implemented by drivers that can observe a ringing
// incoming call and identify the caller.
type IncomingPoller interface {
	Incoming(ctx context.Context) (IncomingCall, bool, error)
}

// TextSender is implemented by drivers with a text side channel.
type TextSender interface {
	SendText(ctx context.Context, target, text string) error
}
