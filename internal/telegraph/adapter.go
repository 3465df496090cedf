// Package telegraph bridges the charging assistant to chat platforms (Slack, Discord, etc.).
package telegraph

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must satisfy.
// Each adapter handles connection management and message sending/receiving
// for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string    // e.g. "slack", "discord"
	ChannelID string    // platform-specific channel identifier
	ThreadID  string    // thread/conversation identifier (empty if top-level)
	UserID    string    // platform-specific user identifier
	UserName  string    // human-readable username
	Text      string    // raw message text, or the value of a clicked button
	Timestamp time.Time // when the message was sent

	// Direct is set for one-to-one conversations with the bot.
	Direct bool
	// Interaction is set when Text came from a button click.
	Interaction bool
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string   // target channel
	ThreadID  string   // thread to reply in (empty for new top-level message)
	Text      string   // message text (platform-native formatting)
	Buttons   []Button // rendered below the text
}

// Button is a clickable element under a message. A button with a URL opens
// the link; any other button sends Value back as the user's next message.
type Button struct {
	Label string
	Value string
	URL   string
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}
