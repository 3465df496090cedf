package telegraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/evbot/internal/chat"
)

// CommandHandler processes "!ev" commands from chat. Commands act on the
// conversation they are sent from.
type CommandHandler struct {
	bot *chat.Bot
}

// CommandHandlerOpts holds parameters for creating a CommandHandler.
type CommandHandlerOpts struct {
	Bot *chat.Bot
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(opts CommandHandlerOpts) (*CommandHandler, error) {
	if opts.Bot == nil {
		return nil, fmt.Errorf("telegraph: command handler: bot is required")
	}
	return &CommandHandler{bot: opts.Bot}, nil
}

// Execute parses and executes a "!ev" command string for the given
// conversation and user. Returns the response text to send back.
func (ch *CommandHandler) Execute(ctx context.Context, sessionKey, userKey, text string) string {
	args := parseCommand(text)
	if len(args) == 0 {
		return ch.helpText()
	}

	switch args[0] {
	case "help":
		return ch.helpText()
	case "clear":
		return ch.cmdClear(ctx, sessionKey)
	case "prefs":
		return ch.cmdPrefs(ctx, sessionKey, userKey)
	case "favorites":
		return ch.cmdFavorites(ctx, sessionKey, userKey)
	default:
		return fmt.Sprintf("Unknown command: `%s`\n\n%s", args[0], ch.helpText())
	}
}

// parseCommand strips the "!ev" prefix and splits the remaining text.
func parseCommand(text string) []string {
	text = strings.TrimSpace(text)
	if text == commandPrefix {
		return nil
	}
	text = strings.TrimPrefix(text, commandPrefix+" ")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Fields(strings.ToLower(text))
}

func (ch *CommandHandler) cmdClear(ctx context.Context, sessionKey string) string {
	if err := ch.bot.Clear(ctx, sessionKey); err != nil {
		return fmt.Sprintf("Error clearing conversation: %v", err)
	}
	return "🧹 Conversation cleared. Your saved preferences are kept."
}

func (ch *CommandHandler) cmdPrefs(ctx context.Context, sessionKey, userKey string) string {
	p, err := ch.bot.Preferences(ctx, sessionKey, userKey)
	if err != nil {
		return fmt.Sprintf("Error loading preferences: %v", err)
	}
	return formatPreferences(p)
}

func (ch *CommandHandler) cmdFavorites(ctx context.Context, sessionKey, userKey string) string {
	p, err := ch.bot.Preferences(ctx, sessionKey, userKey)
	if err != nil {
		return fmt.Sprintf("Error loading preferences: %v", err)
	}
	if len(p.Favorites) == 0 {
		return "⭐ No favorite stations yet. Say \"add <station> to favorites\" to save one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Favorites** (%d)\n", len(p.Favorites))
	for _, f := range p.Favorites {
		fmt.Fprintf(&b, "• %s\n", f)
	}
	return b.String()
}

// helpText returns usage information for all commands.
func (ch *CommandHandler) helpText() string {
	return "**EV Assistant Commands**\n" +
		"`!ev prefs`: saved vehicle, amenities and recent stations\n" +
		"`!ev favorites`: favorite stations\n" +
		"`!ev clear`: forget this conversation\n" +
		"`!ev help`: this message\n" +
		"Anything else is answered by the assistant."
}

// formatPreferences renders learned preferences for chat.
func formatPreferences(p chat.Preferences) string {
	var b strings.Builder
	b.WriteString("**Preferences**\n")
	fmt.Fprintf(&b, "Vehicle: %s\n", orDash(p.Vehicle))
	fmt.Fprintf(&b, "Favorites: %s\n", orDash(strings.Join(p.Favorites, ", ")))
	fmt.Fprintf(&b, "Amenities: %s\n", orDash(strings.Join(p.PreferredAmenities, ", ")))

	recent := p.VisitedStations
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	fmt.Fprintf(&b, "Recent stations: %s\n", orDash(strings.Join(recent, ", ")))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
