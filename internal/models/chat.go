package models

import "time"

// ChatTurn stores a single line of a conversation transcript. A transcript
// is the ordered set of turns sharing a SessionKey.
type ChatTurn struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SessionKey string `gorm:"size:255;not null;index:idx_session_seq"`
	Sequence   int    `gorm:"not null;index:idx_session_seq"`
	Role       string `gorm:"size:16;not null"` // "user" or "bot"
	Content    string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

// UserProfile persists learned preferences across sessions. It never expires.
type UserProfile struct {
	UserKey            string         `gorm:"primaryKey;size:255"`
	Favorites          []string       `gorm:"type:text;serializer:json"`
	Vehicle            string         `gorm:"size:16"`
	PreferredAmenities []string       `gorm:"type:text;serializer:json"`
	VisitedStations    []string       `gorm:"type:text;serializer:json"`
	QueryCounts        map[string]int `gorm:"type:text;serializer:json"`
	UpdatedAt          time.Time
}
