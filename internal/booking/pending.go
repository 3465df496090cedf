package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPendingTTL is how long a deferred booking waits for its form.
const DefaultPendingTTL = 15 * time.Minute

var _ chat.PendingStore = (*PendingStore)(nil)

// PendingStore keeps one deferred booking per session in the
// pending_bookings table. A payload is returned by Take at most once.
type PendingStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// PendingStoreOpts holds parameters for creating a PendingStore.
type PendingStoreOpts struct {
	DB  *gorm.DB
	TTL time.Duration    // defaults to DefaultPendingTTL
	Now func() time.Time // defaults to time.Now
}

// NewPendingStore creates a PendingStore.
func NewPendingStore(opts PendingStoreOpts) (*PendingStore, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("booking: pending store: db is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PendingStore{db: opts.DB, ttl: ttl, now: now}, nil
}

// Put stores p for the session, replacing any earlier payload.
func (s *PendingStore) Put(ctx context.Context, sessionKey string, p chat.BookingPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("booking: encode pending booking: %w", err)
	}
	now := s.now()
	row := models.PendingBooking{
		SessionKey: sessionKey,
		Payload:    string(data),
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "created_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("booking: store pending booking for %s: %w", sessionKey, err)
	}
	return nil
}

// Take removes and returns the session's payload. An expired payload is
// removed and reported as absent.
func (s *PendingStore) Take(ctx context.Context, sessionKey string) (chat.BookingPayload, bool, error) {
	var row models.PendingBooking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_key = ?", sessionKey).First(&row).Error; err != nil {
			return err
		}
		return tx.Delete(&models.PendingBooking{}, row.ID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.BookingPayload{}, false, nil
	}
	if err != nil {
		return chat.BookingPayload{}, false, fmt.Errorf("booking: take pending booking for %s: %w", sessionKey, err)
	}
	if !s.now().Before(row.ExpiresAt) {
		return chat.BookingPayload{}, false, nil
	}
	var p chat.BookingPayload
	if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
		return chat.BookingPayload{}, false, fmt.Errorf("booking: decode pending booking for %s: %w", sessionKey, err)
	}
	return p, true, nil
}

// PurgeExpired deletes expired payloads and returns how many were removed.
func (s *PendingStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.PendingBooking{})
	if result.Error != nil {
		return 0, fmt.Errorf("booking: purge pending bookings: %w", result.Error)
	}
	return result.RowsAffected, nil
}
