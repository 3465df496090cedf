// Package slack implements the telegraph Adapter for Slack using Socket Mode.
// Quick replies are sent as Block Kit buttons and clicks come back through
// block_actions interactions.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/zulandar/evbot/internal/telegraph"
)

const (
	// sendRetries bounds retries of a rate-limited post.
	sendRetries = 3
	// reconnectAttempts bounds Socket Mode reconnects before the adapter gives up.
	reconnectAttempts = 10

	// actionBlockID identifies the quick reply buttons of a message.
	actionBlockID = "evbot_quick_replies"
	// actionIDPrefix prefixes the action ID of each button.
	actionIDPrefix = "evbot_qr_"
	// maxSectionText is Slack's limit for a section block's text.
	maxSectionText = 3000
	// maxButtonLabel is Slack's limit for a button's text.
	maxButtonLabel = 75
)

// sendBackoff paces retries when Slack gives no Retry-After.
var sendBackoff = telegraph.Backoff{Base: time.Second, Max: 30 * time.Second}

// slackClient is the part of the Web API the adapter calls.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
	GetUserInfo(userID string) (*slackapi.User, error)
}

// socketClient is the part of the Socket Mode client the adapter calls.
type socketClient interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

type socketModeClient struct {
	*socketmode.Client
}

func (c socketModeClient) EventsChan() chan socketmode.Event { return c.Events }

// Adapter connects the assistant to a Slack workspace.
type Adapter struct {
	client    slackClient
	socket    socketClient
	appToken  string
	botToken  string
	channelID string // fallback when an outbound message names no channel

	reconnect telegraph.Backoff
	sendWait  telegraph.Backoff

	mu        sync.Mutex
	botUserID string
	connected bool
	closed    bool
	stop      context.CancelFunc
	inbound   chan telegraph.InboundMessage
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	AppToken  string // xapp-... token for Socket Mode
	BotToken  string // xoxb-... token for the Web API
	ChannelID string

	// Client and Socket replace the real Slack clients in tests.
	Client slackClient
	Socket socketClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slack: app token is required for socket mode")
	}
	return &Adapter{
		client:    opts.Client,
		socket:    opts.Socket,
		appToken:  opts.AppToken,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
		reconnect: telegraph.ReconnectBackoff,
		sendWait:  sendBackoff,
		inbound:   make(chan telegraph.InboundMessage, 100),
	}, nil
}

// Connect authenticates the bot and records its user ID so its own messages
// can be ignored.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.client == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client = api
		a.socket = socketModeClient{socketmode.New(api)}
	}
	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID
	a.connected = true
	return nil
}

// Listen starts Socket Mode and returns the inbound message stream.
func (a *Adapter) Listen(ctx context.Context) (<-chan telegraph.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("slack: not connected")
	}
	ctx, a.stop = context.WithCancel(ctx)

	go func() {
		if err := telegraph.Redial(ctx, "slack", reconnectAttempts, a.reconnect, a.socket.Run); err != nil && ctx.Err() == nil {
			log.Printf("slack: socket mode stopped: %v", err)
		}
	}()
	go a.pump(ctx)
	return a.inbound, nil
}

// Send posts a reply. Buttons are rendered as a Block Kit actions block under
// the text.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("slack: not connected")
	}

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	options := buildMessageOptions(msg)
	err := telegraph.Retry(ctx, sendRetries, a.sendWait, rateLimited, func() error {
		_, _, err := a.client.PostMessage(channelID, options...)
		return err
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close stops listening and closes the inbound stream.
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
	close(a.inbound)
	return nil
}

// BotUserID returns the bot's Slack user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// rateLimited recognizes Slack's 429 and its Retry-After.
func rateLimited(err error) (time.Duration, bool) {
	var rle *slackapi.RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}

func (a *Adapter) pump(ctx context.Context) {
	events := a.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.dispatch(evt)
		}
	}
}

// dispatch acknowledges and routes one Socket Mode event.
func (a *Adapter) dispatch(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		payload, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.ack(evt)
		if payload.Type != slackevents.CallbackEvent {
			return
		}
		switch ev := payload.InnerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			a.handleMessage(ev)
		case *slackevents.AppMentionEvent:
			a.handleAppMention(ev)
		}
	case socketmode.EventTypeInteractive:
		cb, ok := evt.Data.(slackapi.InteractionCallback)
		if !ok {
			return
		}
		a.ack(evt)
		a.handleInteraction(cb)
	case socketmode.EventTypeConnected:
		log.Printf("slack: connected to Socket Mode")
	case socketmode.EventTypeConnectionError:
		log.Printf("slack: connection error: %v", evt.Data)
	}
}

func (a *Adapter) ack(evt socketmode.Event) {
	if evt.Request != nil {
		a.socket.Ack(*evt.Request)
	}
}

// handleMessage forwards a user's message. Edits, bot posts and channel
// messages that mention the bot are dropped; the latter also arrive as
// app_mention events.
func (a *Adapter) handleMessage(ev *slackevents.MessageEvent) {
	if ev.User == a.botUserID || ev.BotID != "" || ev.SubType != "" {
		return
	}
	direct := ev.ChannelType == "im"
	if !direct && a.mentionsBot(ev.Text) {
		return
	}
	msg := a.inboundFrom(ev.Channel, ev.ThreadTimeStamp, ev.User, ev.Text, ev.TimeStamp)
	msg.Direct = direct
	a.inbound <- msg
}

func (a *Adapter) handleAppMention(ev *slackevents.AppMentionEvent) {
	if ev.User == a.botUserID {
		return
	}
	a.inbound <- a.inboundFrom(ev.Channel, ev.ThreadTimeStamp, ev.User, ev.Text, ev.TimeStamp)
}

// handleInteraction turns quick reply clicks into messages carrying the
// button value. Link buttons have no value and are skipped.
func (a *Adapter) handleInteraction(cb slackapi.InteractionCallback) {
	if cb.Type != slackapi.InteractionTypeBlockActions {
		return
	}
	thread := cb.Container.ThreadTs
	if thread == "" {
		thread = cb.Message.ThreadTimestamp
	}
	for _, action := range cb.ActionCallback.BlockActions {
		if !strings.HasPrefix(action.ActionID, actionIDPrefix) || action.Value == "" {
			continue
		}
		msg := a.inboundFrom(cb.Channel.ID, thread, cb.User.ID, action.Value, action.ActionTs)
		msg.Interaction = true
		a.inbound <- msg
	}
}

func (a *Adapter) mentionsBot(text string) bool {
	return a.botUserID != "" && strings.Contains(text, "<@"+a.botUserID+">")
}

func (a *Adapter) inboundFrom(channel, thread, user, text, ts string) telegraph.InboundMessage {
	return telegraph.InboundMessage{
		Platform:  "slack",
		ChannelID: channel,
		ThreadID:  thread,
		UserID:    user,
		UserName:  a.displayName(user),
		Text:      text,
		Timestamp: parseTimestamp(ts),
	}
}

// displayName prefers the profile display name, then the real name, then
// the raw user ID.
func (a *Adapter) displayName(userID string) string {
	if userID == "" {
		return ""
	}
	user, err := a.client.GetUserInfo(userID)
	switch {
	case err != nil:
		return userID
	case user.Profile.DisplayName != "":
		return user.Profile.DisplayName
	case user.RealName != "":
		return user.RealName
	}
	return userID
}

// buildMessageOptions threads the reply and attaches button blocks. The text
// stays as the notification fallback.
func buildMessageOptions(msg telegraph.OutboundMessage) []slackapi.MsgOption {
	var options []slackapi.MsgOption
	if msg.ThreadID != "" {
		options = append(options, slackapi.MsgOptionTS(msg.ThreadID))
	}
	options = append(options, slackapi.MsgOptionText(msg.Text, false))
	if len(msg.Buttons) > 0 {
		options = append(options, slackapi.MsgOptionBlocks(buildBlocks(msg)...))
	}
	return options
}

// buildBlocks renders the text as a section and the buttons as one actions
// block.
func buildBlocks(msg telegraph.OutboundMessage) []slackapi.Block {
	var blocks []slackapi.Block
	if msg.Text != "" {
		text := slackapi.NewTextBlockObject(slackapi.MarkdownType, clip(msg.Text, maxSectionText), false, false)
		blocks = append(blocks, slackapi.NewSectionBlock(text, nil, nil))
	}
	elements := make([]slackapi.BlockElement, 0, len(msg.Buttons))
	for i, b := range msg.Buttons {
		elements = append(elements, buttonElement(i, b))
	}
	if len(elements) > 0 {
		blocks = append(blocks, slackapi.NewActionBlock(actionBlockID, elements...))
	}
	return blocks
}

// buttonElement renders a quick reply. Link buttons open their URL; the
// rest post their value back as a block action.
func buttonElement(i int, b telegraph.Button) *slackapi.ButtonBlockElement {
	label := slackapi.NewTextBlockObject(slackapi.PlainTextType, clip(b.Label, maxButtonLabel), true, false)
	btn := slackapi.NewButtonBlockElement(actionIDPrefix+strconv.Itoa(i), b.Value, label)
	if b.URL != "" {
		btn.URL = b.URL
		btn.Style = slackapi.StylePrimary
	}
	return btn
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// parseTimestamp reads the seconds of a Slack "1234567890.123456" timestamp.
func parseTimestamp(ts string) time.Time {
	sec, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
