package gateway

import "context"

// Part is one piece of a prompt turn. Exactly one of Text or ImageURL is set.
type Part struct {
	Text     string
	ImageURL string
}

// Turn is a single role-tagged prompt message.
type Turn struct {
	Role  string
	Parts []Part
}

// TextTurn builds a turn with a single text part.
func TextTurn(role, text string) Turn {
	return Turn{Role: role, Parts: []Part{{Text: text}}}
}

// Completion is the provider-neutral call the gateway makes.
type Completion struct {
	Turns       []Turn
	Temperature float64
	MaxTokens   int
}

// Completer is a remote completion API.
//
// Complete returns the text of the first completion. Non-success answers
// are reported as *RemoteAPIError. Configured reports whether credentials
// are present; Complete is never called when it is false.
type Completer interface {
	Name() string
	Configured() bool
	Complete(ctx context.Context, c Completion) (string, error)
}
