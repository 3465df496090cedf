package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/evbot/internal/models"
	"gorm.io/gorm"
)

// DefaultTranscriptTTL is how long a transcript survives after its last write.
const DefaultTranscriptTTL = time.Hour

// Transcript roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// TranscriptStore persists conversation transcripts. A transcript expires
// TTL after its most recent turn.
type TranscriptStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// TranscriptStoreOpts holds parameters for creating a TranscriptStore.
type TranscriptStoreOpts struct {
	DB  *gorm.DB
	TTL time.Duration    // defaults to DefaultTranscriptTTL
	Now func() time.Time // defaults to time.Now
}

// NewTranscriptStore creates a TranscriptStore.
func NewTranscriptStore(opts TranscriptStoreOpts) (*TranscriptStore, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("chat: transcript store: db is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTranscriptTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TranscriptStore{db: opts.DB, ttl: ttl, now: now}, nil
}

// Append writes one turn to the session transcript. An expired transcript
// is discarded first so the new turn starts a fresh one.
func (ts *TranscriptStore) Append(ctx context.Context, sessionKey, role, content string) error {
	if _, err := ts.expireIfStale(ctx, sessionKey); err != nil {
		return err
	}
	seq, err := ts.nextSequence(ctx, sessionKey)
	if err != nil {
		return err
	}
	turn := models.ChatTurn{
		SessionKey: sessionKey,
		Sequence:   seq,
		Role:       role,
		Content:    content,
		CreatedAt:  ts.now(),
	}
	if err := ts.db.WithContext(ctx).Create(&turn).Error; err != nil {
		return fmt.Errorf("chat: append %s turn: %w", role, err)
	}
	return nil
}

// Load returns the live transcript for a session, ordered by sequence.
// An expired transcript is deleted and reported as empty.
func (ts *TranscriptStore) Load(ctx context.Context, sessionKey string) ([]models.ChatTurn, error) {
	expired, err := ts.expireIfStale(ctx, sessionKey)
	if err != nil || expired {
		return nil, err
	}
	var turns []models.ChatTurn
	if err := ts.db.WithContext(ctx).Where("session_key = ?", sessionKey).
		Order("sequence").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("chat: load transcript: %w", err)
	}
	return turns, nil
}

// Clear deletes a session transcript.
func (ts *TranscriptStore) Clear(ctx context.Context, sessionKey string) error {
	if err := ts.db.WithContext(ctx).Where("session_key = ?", sessionKey).
		Delete(&models.ChatTurn{}).Error; err != nil {
		return fmt.Errorf("chat: clear transcript: %w", err)
	}
	return nil
}

// PurgeExpired deletes every transcript whose last turn is older than the
// TTL and returns the number of turns removed.
func (ts *TranscriptStore) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := ts.now().Add(-ts.ttl)
	var keys []string
	if err := ts.db.WithContext(ctx).Model(&models.ChatTurn{}).
		Group("session_key").
		Having("MAX(created_at) < ?", cutoff).
		Pluck("session_key", &keys).Error; err != nil {
		return 0, fmt.Errorf("chat: find expired transcripts: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	result := ts.db.WithContext(ctx).Where("session_key IN ?", keys).Delete(&models.ChatTurn{})
	if result.Error != nil {
		return 0, fmt.Errorf("chat: purge transcripts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// expireIfStale deletes the transcript if its last turn is past the TTL.
func (ts *TranscriptStore) expireIfStale(ctx context.Context, sessionKey string) (bool, error) {
	var last models.ChatTurn
	result := ts.db.WithContext(ctx).Where("session_key = ?", sessionKey).
		Order("sequence DESC").Limit(1).Find(&last)
	if result.Error != nil {
		return false, fmt.Errorf("chat: transcript age: %w", result.Error)
	}
	if result.RowsAffected == 0 || ts.now().Sub(last.CreatedAt) <= ts.ttl {
		return false, nil
	}
	return true, ts.Clear(ctx, sessionKey)
}

// nextSequence returns the next sequence number for a session.
func (ts *TranscriptStore) nextSequence(ctx context.Context, sessionKey string) (int, error) {
	var maxSeq int
	result := ts.db.WithContext(ctx).Model(&models.ChatTurn{}).
		Where("session_key = ?", sessionKey).
		Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq)
	if result.Error != nil {
		return 0, fmt.Errorf("chat: next sequence: %w", result.Error)
	}
	return maxSeq + 1, nil
}
