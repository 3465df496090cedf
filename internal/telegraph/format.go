package telegraph

import (
	"net/url"
	"strings"

	"github.com/zulandar/evbot/internal/chat"
)

// maxButtons is the most buttons one message carries. Slack allows 25
// elements per actions block and Discord 5 rows of 5 buttons.
const maxButtons = 25

// FormatOpts holds parameters for FormatReply.
type FormatOpts struct {
	ChannelID  string
	ThreadID   string
	SessionKey string // appended to booking links
	BaseURL    string // prefix for redirect paths, e.g. "http://localhost:8080"
}

// FormatReply renders a bot reply as one chat message. Message texts are
// joined, quick replies and slot times become buttons, and a redirect
// becomes a link button carrying the session key. An empty reply yields
// false.
func FormatReply(reply chat.Reply, opts FormatOpts) (OutboundMessage, bool) {
	msg := OutboundMessage{
		ChannelID: opts.ChannelID,
		ThreadID:  opts.ThreadID,
		Text:      reply.Text(),
	}

	limit := maxButtons
	if reply.Redirect != "" {
		limit--
	}
	seen := make(map[string]bool)
	add := func(b Button) {
		if len(msg.Buttons) >= limit || seen[b.Value] {
			return
		}
		seen[b.Value] = true
		msg.Buttons = append(msg.Buttons, b)
	}
	for _, m := range reply.Messages {
		for _, q := range m.QuickReplies {
			add(Button{Label: q.Label, Value: q.Value})
		}
		for _, s := range m.Slots {
			add(Button{Label: "🕐 " + s, Value: "select " + s})
		}
	}

	if reply.Redirect != "" {
		msg.Buttons = append(msg.Buttons, Button{
			Label: "📅 Open booking form",
			URL:   BookingURL(opts.BaseURL, reply.Redirect, opts.SessionKey),
		})
		if msg.Text == "" {
			msg.Text = "📅 Continue on the booking page."
		}
	}

	if msg.Text == "" && len(msg.Buttons) == 0 {
		return OutboundMessage{}, false
	}
	return msg, true
}

// BookingURL joins baseURL and path and adds the session query parameter.
func BookingURL(baseURL, path, sessionKey string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if sessionKey == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "session=" + url.QueryEscape(sessionKey)
}
