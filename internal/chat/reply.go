package chat

import (
	"fmt"
	"strings"
)

// QuickReply is a suggested follow-up the user can send with one click.
// Value is sent as the next turn; Label is what the button shows.
type QuickReply struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Message is one bot message.
type Message struct {
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quickReplies,omitempty"`
	// Slots are selectable HH:MM booking times.
	Slots []string `json:"slots,omitempty"`
}

// Reply is everything the bot says in response to one turn.
type Reply struct {
	Messages []Message `json:"messages"`
	// Redirect asks the client to open a page, e.g. the booking form.
	Redirect string `json:"redirect,omitempty"`
}

// Say appends a message.
func (r *Reply) Say(text string) {
	r.Messages = append(r.Messages, Message{Text: text})
}

// Sayf appends a formatted message.
func (r *Reply) Sayf(format string, args ...any) {
	r.Say(fmt.Sprintf(format, args...))
}

// Warn appends a warning message.
func (r *Reply) Warn(format string, args ...any) {
	r.Say("⚠️ " + fmt.Sprintf(format, args...))
}

// Offer attaches quick replies to the last message.
func (r *Reply) Offer(replies ...QuickReply) {
	if len(replies) == 0 {
		return
	}
	if len(r.Messages) == 0 {
		r.Messages = append(r.Messages, Message{})
	}
	last := &r.Messages[len(r.Messages)-1]
	last.QuickReplies = append(last.QuickReplies, replies...)
}

// Append adds other's messages after r's. A redirect in other wins.
func (r *Reply) Append(other Reply) {
	r.Messages = append(r.Messages, other.Messages...)
	if other.Redirect != "" {
		r.Redirect = other.Redirect
	}
}

// Text joins all message texts with newlines.
func (r Reply) Text() string {
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// QuickReplies returns every quick reply in message order.
func (r Reply) QuickReplies() []QuickReply {
	var out []QuickReply
	for _, m := range r.Messages {
		out = append(out, m.QuickReplies...)
	}
	return out
}

func qr(label, value string) QuickReply {
	return QuickReply{Label: label, Value: value}
}
