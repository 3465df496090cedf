package telegraph

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/zulandar/evbot/internal/chat"
)

// commandPrefix is the prefix that triggers command handling.
const commandPrefix = "!ev"

// Router classifies inbound chat messages and routes them to the
// appropriate handler: the assistant for conversation, the command
// handler for "!ev" commands, or ignore for bot/unrelated messages.
type Router struct {
	bot        *chat.Bot
	cmdHandler *CommandHandler
	adapter    Adapter
	botUserID  string // the bot's own user ID (to filter self-messages)
	baseURL    string
	out        io.Writer

	mu     sync.Mutex
	active map[string]bool // session keys with an ongoing conversation
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Bot        *chat.Bot
	CmdHandler *CommandHandler
	Adapter    Adapter
	BotUserID  string    // bot's user ID for self-message filtering
	BaseURL    string    // prefix for booking page links
	Out        io.Writer // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Bot == nil {
		return nil, fmt.Errorf("telegraph: router: bot is required")
	}
	if opts.CmdHandler == nil {
		return nil, fmt.Errorf("telegraph: router: command handler is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		bot:        opts.Bot,
		cmdHandler: opts.CmdHandler,
		adapter:    opts.Adapter,
		botUserID:  opts.BotUserID,
		baseURL:    opts.BaseURL,
		out:        out,
		active:     make(map[string]bool),
	}, nil
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. Command prefix "!ev" or @mention + command → command handler
//  3. Button click, direct message or ongoing conversation → assistant
//  4. @mention → start a conversation with the assistant
//  5. Everything else → ignore
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	// 1. Filter bot self-messages.
	if r.isSelfMessage(msg) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	fmt.Fprintf(r.out, "telegraph: router: recv [ch=%s thread=%s user=%s] %q\n",
		msg.ChannelID, msg.ThreadID, msg.UserName, truncate(text, 80))

	key := SessionKey(msg.ChannelID, msg.ThreadID)

	// 2. Command prefix ("!ev ...") or @mention with command ("@bot prefs").
	if isCommand(text) {
		fmt.Fprintf(r.out, "telegraph: router: → command\n")
		r.handleCommand(ctx, msg, key, text)
		return
	}
	if mentionCmd := extractMentionCommand(text); mentionCmd != "" {
		fmt.Fprintf(r.out, "telegraph: router: → mention-command %q\n", mentionCmd)
		r.handleCommand(ctx, msg, key, commandPrefix+" "+mentionCmd)
		return
	}

	// 3. Conversation already addressed to the bot.
	if msg.Interaction || msg.Direct || r.isActive(key) {
		fmt.Fprintf(r.out, "telegraph: router: → assistant [session=%s]\n", key)
		r.converse(ctx, msg, key, text)
		return
	}

	// 4. New conversation via @mention.
	if isMention(text) {
		stripped := stripMentions(text)
		if stripped == "" {
			stripped = "hello"
		}
		fmt.Fprintf(r.out, "telegraph: router: → new conversation [session=%s]\n", key)
		r.converse(ctx, msg, key, stripped)
		return
	}

	// 5. Unknown/unhandled message → ignore.
	fmt.Fprintf(r.out, "telegraph: router: → ignore (no mention, no conversation)\n")
}

// SessionKey returns the assistant session key for a channel/thread pair.
// Top-level channel messages use the channel ID as the thread.
func SessionKey(channelID, threadID string) string {
	return channelID + ":" + resolveThreadID(channelID, threadID)
}

// resolveThreadID returns the effective thread ID for session lookups.
// For top-level channel messages (empty threadID), the channel ID is used
// as the thread key so that follow-up messages in the same channel find
// the conversation even without an explicit thread.
func resolveThreadID(channelID, threadID string) string {
	if threadID == "" {
		return channelID
	}
	return threadID
}

// userKey scopes preferences to the platform user, so they follow the user
// across channels and threads.
func userKey(msg InboundMessage) string {
	if msg.UserID == "" {
		return ""
	}
	return msg.Platform + ":" + msg.UserID
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// converse hands text to the assistant and posts the reply.
func (r *Router) converse(ctx context.Context, msg InboundMessage, key, text string) {
	r.setActive(key, true)

	reply, err := r.bot.Handle(ctx, chat.Turn{
		SessionKey: key,
		UserKey:    userKey(msg),
		Text:       text,
	})
	if err != nil {
		log.Printf("telegraph: router: handle turn for %s: %v", key, err)
		r.send(ctx, OutboundMessage{
			ChannelID: msg.ChannelID,
			ThreadID:  msg.ThreadID,
			Text:      "⚠️ Something went wrong. Please try again.",
		})
		return
	}

	out, ok := FormatReply(reply, FormatOpts{
		ChannelID:  msg.ChannelID,
		ThreadID:   msg.ThreadID,
		SessionKey: key,
		BaseURL:    r.baseURL,
	})
	if !ok {
		return
	}
	r.send(ctx, out)
}

// handleCommand dispatches a "!ev" command and sends the response.
func (r *Router) handleCommand(ctx context.Context, msg InboundMessage, key, text string) {
	args := parseCommand(text)
	if len(args) > 0 && args[0] == "clear" {
		r.setActive(key, false)
	}
	response := r.cmdHandler.Execute(ctx, key, userKey(msg), text)
	r.send(ctx, OutboundMessage{
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		Text:      response,
	})
}

func (r *Router) send(ctx context.Context, msg OutboundMessage) {
	if err := r.adapter.Send(ctx, msg); err != nil {
		log.Printf("telegraph: router: send to %s: %v", msg.ChannelID, err)
	}
}

func (r *Router) isActive(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[key]
}

func (r *Router) setActive(key string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.active[key] = true
	} else {
		delete(r.active, key)
	}
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// isCommand returns true if the text starts with the command prefix.
func isCommand(text string) bool {
	return strings.HasPrefix(text, commandPrefix+" ") || text == commandPrefix
}

// mentionRe matches Slack <@U123> and Discord <@123> / <@!123> mentions.
var mentionRe = regexp.MustCompile(`<@!?[A-Za-z0-9]+>`)

// knownCommands is the set of top-level commands the CommandHandler supports.
var knownCommands = map[string]bool{
	"help":      true,
	"clear":     true,
	"prefs":     true,
	"favorites": true,
}

// extractMentionCommand checks if the message is a bot @mention followed by
// a known command. Returns the command text (without the mention) if so,
// or empty string if not.
func extractMentionCommand(text string) string {
	if !mentionRe.MatchString(text) {
		return ""
	}
	stripped := stripMentions(text)
	if stripped == "" {
		return ""
	}
	fields := strings.Fields(stripped)
	if len(fields) == 1 && knownCommands[strings.ToLower(fields[0])] {
		return strings.ToLower(fields[0])
	}
	return ""
}

// leadingNameRe matches a plain "@name" at the start of a message.
var leadingNameRe = regexp.MustCompile(`^@\S+`)

func stripMentions(text string) string {
	text = strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	return strings.TrimSpace(leadingNameRe.ReplaceAllString(text, ""))
}

// isMention returns true if the text contains an @mention pattern.
func isMention(text string) bool {
	return mentionRe.MatchString(text) || strings.HasPrefix(text, "@")
}
