package greeting

import "strings"

// DefaultMessage is served when no greeting is configured.
const DefaultMessage = "Hello from rahul"

// Greeter holds the greeting served on the root route. The message is fixed at
// construction and read concurrently by every request.
type Greeter struct {
	message string
}

// New returns a Greeter for message. Blank messages fall back to DefaultMessage.
func New(message string) *Greeter {
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultMessage
	}
	return &Greeter{message: message}
}

// Message returns the greeting.
func (g *Greeter) Message() string {
	return g.message
}
