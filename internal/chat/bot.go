package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

// Turn is one inbound user message.
type Turn struct {
	SessionKey string
	UserKey    string // preference owner; defaults to SessionKey
	Text       string
	// Location, when set, replaces the session's reported position.
	Location *station.Coordinates
}

// Bot answers turns. It owns the per-turn order: cancel interrupt, active
// booking flow, armed connector follow-up, then classification.
type Bot struct {
	classifier  *Classifier
	dispatcher  *Dispatcher
	sessions    *Sessions
	transcripts *TranscriptStore
	forms       FormCloser
}

// FormCloser discards the booking form open for a session.
type FormCloser interface {
	Close(sessionKey string) bool
}

// BotOpts holds parameters for creating a Bot.
type BotOpts struct {
	Classifier  *Classifier // defaults to NewClassifier()
	Dispatcher  *Dispatcher
	Sessions    *Sessions
	Transcripts *TranscriptStore // optional
	Forms       FormCloser       // optional; closed on Clear
}

// NewBot creates a Bot.
func NewBot(opts BotOpts) (*Bot, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("chat: bot: dispatcher is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("chat: bot: sessions is required")
	}
	c := opts.Classifier
	if c == nil {
		c = NewClassifier()
	}
	return &Bot{
		classifier:  c,
		dispatcher:  opts.Dispatcher,
		sessions:    opts.Sessions,
		transcripts: opts.Transcripts,
		forms:       opts.Forms,
	}, nil
}

// Handle answers one turn.
func (b *Bot) Handle(ctx context.Context, t Turn) (Reply, error) {
	var reply Reply
	err := b.sessions.Do(ctx, t.SessionKey, t.UserKey, func(sess *Session) {
		if t.Location != nil && t.Location.Valid() {
			loc := *t.Location
			sess.Location = &loc
		}
		prev := sess.LastStation
		sess.RecordQuery(t.Text)

		var action string
		reply, action = b.respond(ctx, sess, t.Text)

		visited := ""
		if sess.LastStation != prev || stationScoped(action) {
			visited = sess.LastStation
		}
		sess.Learn(t.Text, action, visited)
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat: handle turn: %w", err)
	}
	b.record(ctx, t.SessionKey, t.Text, reply)
	return reply, nil
}

// respond picks the handler for text and returns the reply and the action
// name the turn is learned under.
func (b *Bot) respond(ctx context.Context, sess *Session, text string) (Reply, string) {
	if sess.Flow != nil {
		step := sess.Flow.Step
		return b.dispatcher.Continue(ctx, sess, text), "booking_flow:" + string(step)
	}
	if f := sess.FollowUp; f != nil {
		sess.FollowUp = nil
		if !IsCancel(text) {
			q := ConnectorQuery{Station: cleanName(text), Vehicle: f.Vehicle}
			return b.dispatcher.Dispatch(ctx, sess, q), q.Kind()
		}
	}
	intent := b.classifier.Classify(text, sess)
	return b.dispatcher.Dispatch(ctx, sess, intent), learnAction(intent)
}

// learnAction names an intent for preference counters. Amenity checks are
// counted under the amenity key so they register as amenity interest.
func learnAction(intent Intent) string {
	if c, ok := intent.(CheckAmenity); ok {
		return station.AmenityKey(c.Amenity)
	}
	return intent.Kind()
}

func stationScoped(action string) bool {
	switch action {
	case "station_query", "connector_query", "start_booking", "booking_command":
		return true
	}
	return isAmenityKey(action)
}

// Resume fills a newly opened booking form with the session's pending
// booking, if any.
func (b *Bot) Resume(ctx context.Context, sessionKey string, form BookingFormAdapter) (Reply, bool) {
	reply, ok := b.dispatcher.bridge.Resume(ctx, sessionKey, form)
	if ok {
		b.record(ctx, sessionKey, "", reply)
	}
	return reply, ok
}

// History returns the live transcript of a session.
func (b *Bot) History(ctx context.Context, sessionKey string) ([]models.ChatTurn, error) {
	if b.transcripts == nil {
		return nil, nil
	}
	return b.transcripts.Load(ctx, sessionKey)
}

// Clear forgets a conversation: its transcript, in-memory context and open
// booking form. Stored preferences are kept.
func (b *Bot) Clear(ctx context.Context, sessionKey string) error {
	b.sessions.Reset(sessionKey)
	if b.forms != nil {
		b.forms.Close(sessionKey)
	}
	if b.transcripts == nil {
		return nil
	}
	return b.transcripts.Clear(ctx, sessionKey)
}

// Preferences returns a copy of the preferences of a session.
func (b *Bot) Preferences(ctx context.Context, sessionKey, userKey string) (Preferences, error) {
	var p Preferences
	err := b.sessions.Do(ctx, sessionKey, userKey, func(sess *Session) {
		p = *sess.Prefs.Clone()
	})
	if err != nil {
		return Preferences{}, fmt.Errorf("chat: preferences: %w", err)
	}
	return p, nil
}

// record appends a turn to the transcript. Failures are logged.
func (b *Bot) record(ctx context.Context, sessionKey, userText string, reply Reply) {
	if b.transcripts == nil {
		return
	}
	if userText != "" {
		if err := b.transcripts.Append(ctx, sessionKey, RoleUser, userText); err != nil {
			log.Printf("chat: transcript for %s: %v", sessionKey, err)
			return
		}
	}
	if text := reply.Text(); text != "" {
		if err := b.transcripts.Append(ctx, sessionKey, RoleBot, text); err != nil {
			log.Printf("chat: transcript for %s: %v", sessionKey, err)
		}
	}
}
