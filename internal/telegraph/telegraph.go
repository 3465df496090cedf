package telegraph

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/zulandar/evbot/internal/chat"
)

// Daemon is the main telegraph process. It connects to a chat platform via
// an Adapter and pumps inbound messages through the Router to the assistant.
type Daemon struct {
	bot     *chat.Bot
	adapter Adapter
	channel string
	baseURL string
	sweeper *chat.Sweeper
	out     io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	Bot     *chat.Bot
	Adapter Adapter
	Channel string        // optional; receives online/shutdown notices
	BaseURL string        // prefix for booking page links
	Sweeper *chat.Sweeper // optional; runs alongside the message loop
	Out     io.Writer     // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Bot == nil {
		return nil, fmt.Errorf("telegraph: bot is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		bot:     opts.Bot,
		adapter: opts.Adapter,
		channel: opts.Channel,
		baseURL: opts.BaseURL,
		sweeper: opts.Sweeper,
		out:     out,
	}, nil
}

// Run starts the telegraph daemon. It connects the adapter, builds the
// Router, and blocks until the context is cancelled or the adapter's
// inbound channel closes. On shutdown it closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Telegraph connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	cmdHandler, err := NewCommandHandler(CommandHandlerOpts{Bot: d.bot})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: build command handler: %w", err)
	}

	router, err := NewRouter(RouterOpts{
		Bot:        d.bot,
		CmdHandler: cmdHandler,
		Adapter:    d.adapter,
		BotUserID:  botUserID,
		BaseURL:    d.baseURL,
		Out:        d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: build router: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: listen: %w", err)
	}

	if d.sweeper != nil {
		go d.sweeper.Run(ctx)
	}

	fmt.Fprintf(d.out, "Telegraph online\n")
	d.notify(ctx, "⚡ EV assistant online. Mention me or type `!ev help`.")

	// Main event loop: pump inbound messages until context is cancelled.
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Telegraph shutting down...\n")
			d.notify(context.Background(), "EV assistant going offline")
			if err := d.adapter.Close(); err != nil {
				log.Printf("telegraph: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Telegraph stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				// Adapter closed the channel.
				fmt.Fprintf(d.out, "Telegraph inbound channel closed\n")
				return nil
			}
			router.Handle(ctx, msg)
		}
	}
}

// notify posts a status line to the configured channel (best-effort).
func (d *Daemon) notify(ctx context.Context, text string) {
	if d.channel == "" {
		return
	}
	if err := d.adapter.Send(ctx, OutboundMessage{ChannelID: d.channel, Text: text}); err != nil {
		log.Printf("telegraph: send notice: %v", err)
	}
}
