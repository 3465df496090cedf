package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/telegraph"
	"golang.org/x/term"
)

func newChatCmd() *cobra.Command {
	var (
		configPath string
		session    string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long: `Reads one message per line and prints the assistant's reply.

Buttons are numbered; type the number to press one. /clear starts the
conversation over and /quit exits. Input may also be piped in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, configPath, session)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&session, "session", "s", "cli", "conversation session key")
	return cmd
}

func runChat(cmd *cobra.Command, configPath, session string) error {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	a, err := buildApp(cfg, gormDB)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	r := &repl{
		bot:         a.bot,
		session:     session,
		baseURL:     cfg.Server.BaseURL,
		out:         cmd.OutOrStdout(),
		interactive: isTerminal(in),
	}
	return r.run(cmd.Context(), in)
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// repl is a line-oriented conversation with the bot.
type repl struct {
	bot         *chat.Bot
	session     string
	baseURL     string
	out         io.Writer
	interactive bool

	// buttons from the last reply, pressed by number.
	buttons []telegraph.Button
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.interactive {
		fmt.Fprintln(r.out, "EV assistant. Type /quit to exit.")
	}

	scanner := bufio.NewScanner(in)
	for {
		if r.interactive {
			fmt.Fprint(r.out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := r.bot.Clear(ctx, r.session); err != nil {
				return fmt.Errorf("chat: clear: %w", err)
			}
			r.buttons = nil
			fmt.Fprintln(r.out, "🧹 Conversation cleared.")
			continue
		}

		reply, err := r.bot.Handle(ctx, chat.Turn{SessionKey: r.session, Text: r.resolve(line)})
		if err != nil {
			fmt.Fprintf(r.out, "⚠️ %v\n", err)
			continue
		}
		r.print(reply)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("chat: read input: %w", err)
	}
	return nil
}

// resolve maps a button number from the last reply to its value.
func (r *repl) resolve(line string) string {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(r.buttons) {
		return line
	}
	if b := r.buttons[n-1]; b.URL == "" {
		return b.Value
	}
	return line
}

func (r *repl) print(reply chat.Reply) {
	msg, ok := telegraph.FormatReply(reply, telegraph.FormatOpts{
		SessionKey: r.session,
		BaseURL:    r.baseURL,
	})
	r.buttons = nil
	if !ok {
		return
	}
	if msg.Text != "" {
		fmt.Fprintln(r.out, msg.Text)
	}
	r.buttons = msg.Buttons
	for i, b := range msg.Buttons {
		if b.URL != "" {
			fmt.Fprintf(r.out, "  [%d] %s: %s\n", i+1, b.Label, b.URL)
			continue
		}
		fmt.Fprintf(r.out, "  [%d] %s\n", i+1, b.Label)
	}
	fmt.Fprintln(r.out)
}
