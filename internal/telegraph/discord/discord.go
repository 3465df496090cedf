// Package discord implements the telegraph Adapter for Discord using the
// Gateway WebSocket. Quick replies are sent as message component buttons and
// clicks come back as component interactions.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/evbot/internal/telegraph"
)

const (
	// sendRetries bounds retries of a rate-limited REST call.
	sendRetries = 3

	// customIDPrefix marks component custom IDs that carry a quick reply value.
	customIDPrefix = "evbot_qr:"
	// Discord component limits.
	maxButtonsPerRow = 5
	maxRows          = 5
	maxButtonLabel   = 80
	maxCustomID      = 100
	maxContent       = 2000
)

var sendBackoff = telegraph.Backoff{Base: time.Second, Max: 30 * time.Second}

// session is the part of *discordgo.Session the adapter calls.
type session interface {
	Open() error
	Close() error
	Channel(channelID string) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	AddHandler(handler interface{}) func()
}

// gateway reads channels from the state cache instead of the REST API.
type gateway struct {
	*discordgo.Session
}

func (g gateway) Channel(channelID string) (*discordgo.Channel, error) {
	return g.State.Channel(channelID)
}

// Adapter connects the assistant to Discord.
type Adapter struct {
	sess      session
	botToken  string
	channelID string // fallback when an outbound message names no channel
	sendWait  telegraph.Backoff

	mu        sync.Mutex
	botUserID string
	connected bool
	closed    bool
	stop      context.CancelFunc
	handlers  []func()
	inbound   chan telegraph.InboundMessage
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string
	ChannelID string

	// Session replaces the real gateway session in tests.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	return &Adapter{
		sess:      opts.Session,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
		sendWait:  sendBackoff,
		inbound:   make(chan telegraph.InboundMessage, 100),
	}, nil
}

// Connect opens the gateway. discordgo resumes dropped sessions itself, so
// the adapter only tracks the bot's identity across reconnects.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = gateway{dg}
	}

	a.handlers = append(a.handlers,
		a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			a.SetBotUserID(r.User.ID)
			log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
		}),
		a.sess.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
			log.Printf("discord: gateway disconnected")
		}),
		a.sess.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
			log.Printf("discord: gateway session resumed")
		}),
	)

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.connected = true
	return nil
}

// Listen registers the message and interaction handlers and returns the
// inbound message stream.
func (a *Adapter) Listen(ctx context.Context) (<-chan telegraph.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}
	ctx, a.stop = context.WithCancel(ctx)

	a.handlers = append(a.handlers,
		a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			a.handleMessage(m)
		}),
		a.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			a.handleInteraction(ctx, i)
		}),
	)
	return a.inbound, nil
}

// Send posts a reply. A thread is its own channel in Discord, so ThreadID
// wins over ChannelID.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("discord: not connected")
	}

	channelID := firstNonEmpty(msg.ThreadID, msg.ChannelID, a.channelID)
	if channelID == "" {
		return fmt.Errorf("discord: no channel specified")
	}

	data := buildMessageSend(msg)
	err := telegraph.Retry(ctx, sendRetries, a.sendWait, rateLimited, func() error {
		_, err := a.sess.ChannelMessageSendComplex(channelID, data)
		return err
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close removes the handlers, closes the inbound stream and the gateway.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.stop != nil {
		a.stop()
	}
	for _, remove := range a.handlers {
		remove()
	}
	a.handlers = nil
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID once the gateway is ready.
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// SetBotUserID sets the ID whose messages are ignored.
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

// rateLimited recognizes a 429 that discordgo handed back instead of
// retrying itself, and reads its Retry-After seconds.
func rateLimited(err error) (time.Duration, bool) {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Response == nil || rest.Response.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	secs, perr := strconv.ParseFloat(rest.Response.Header.Get("Retry-After"), 64)
	if perr != nil || secs <= 0 {
		return 0, true
	}
	return time.Duration(secs * float64(time.Second)), true
}

// handleMessage forwards a user's message. The bot's own posts and other
// bots are dropped.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == a.BotUserID() {
		return
	}
	a.inbound <- a.inboundFrom(m.ChannelID, m.GuildID, m.ID, m.Author, m.Content)
}

// handleInteraction acknowledges a quick reply click and forwards its value.
// The acknowledgement is a deferred update; the reply arrives as a regular
// message. Slash commands and foreign components are ignored.
func (a *Adapter) handleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	value, ok := strings.CutPrefix(i.MessageComponentData().CustomID, customIDPrefix)
	if !ok || value == "" {
		return
	}
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	err := telegraph.Retry(ctx, sendRetries, a.sendWait, rateLimited, func() error {
		return a.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
	})
	if err != nil {
		log.Printf("discord: acknowledge interaction %s: %v", i.ID, err)
	}

	msg := a.inboundFrom(i.ChannelID, i.GuildID, i.ID, user, value)
	msg.Interaction = true
	a.inbound <- msg
}

// inboundFrom builds a message in the thread's parent channel. The snowflake
// ID carries the timestamp.
func (a *Adapter) inboundFrom(channel, guild, id string, user *discordgo.User, text string) telegraph.InboundMessage {
	channelID, threadID := a.resolveThread(channel)
	ts, _ := discordgo.SnowflakeTimestamp(id)
	return telegraph.InboundMessage{
		Platform:  "discord",
		ChannelID: channelID,
		ThreadID:  threadID,
		UserID:    user.ID,
		UserName:  user.Username,
		Text:      text,
		Timestamp: ts,
		Direct:    guild == "",
	}
}

// resolveThread maps a Discord channel ID to a (channel, thread) pair.
func (a *Adapter) resolveThread(id string) (channelID, threadID string) {
	if ch, err := a.sess.Channel(id); err == nil && ch.IsThread() {
		return ch.ParentID, id
	}
	return id, ""
}

func buildMessageSend(msg telegraph.OutboundMessage) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    clip(msg.Text, maxContent),
		Components: buildComponents(msg.Buttons),
	}
}

// buildComponents lays buttons out in action rows of five. Buttons beyond
// Discord's row limit are dropped.
func buildComponents(buttons []telegraph.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons) && len(rows) < maxRows; start += maxButtonsPerRow {
		end := min(start+maxButtonsPerRow, len(buttons))
		row := make([]discordgo.MessageComponent, 0, end-start)
		for _, b := range buttons[start:end] {
			row = append(row, buttonComponent(b))
		}
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

func buttonComponent(b telegraph.Button) discordgo.Button {
	label := clip(b.Label, maxButtonLabel)
	if b.URL != "" {
		return discordgo.Button{Label: label, Style: discordgo.LinkButton, URL: b.URL}
	}
	return discordgo.Button{
		Label:    label,
		Style:    discordgo.SecondaryButton,
		CustomID: clip(customIDPrefix+b.Value, maxCustomID),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
