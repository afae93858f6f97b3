package gateway

import "context"

// Messenger defines the interface for communication gateways (console,
// Telegram, Discord).
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Responder turns one user message into one reply. The conversation
// engine implements this.
type Responder interface {
	Turn(ctx context.Context, sessionID, input string) string
}
