package respond

import "context"

// Turn is one prior exchange handed to the responder as context.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Responder produces the agent's reply to what the caller just said.
// Returning an empty reply is valid and means stay quiet this turn.
type Responder interface {
	Name() string
	Respond(ctx context.Context, input string, history []Turn) (string, error)
}
