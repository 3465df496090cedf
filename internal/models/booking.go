package models

import "time"

// Booking is a submitted charging reservation. Slot availability is derived
// from these rows: a slot is taken once overlapping bookings reach the
// station's slot count.
type Booking struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference       string    `gorm:"size:16;not null;uniqueIndex" json:"reference"`
	StationID       uint      `gorm:"not null;index:idx_station_day" json:"stationId"`
	Day             string    `gorm:"size:10;not null;index:idx_station_day" json:"date"` // YYYY-MM-DD
	StartTime       string    `gorm:"size:5;not null" json:"time"`                        // HH:MM
	DurationMinutes int       `gorm:"not null" json:"durationMinutes"`
	Vehicle         string    `gorm:"size:16;not null" json:"vehicle"`
	SessionKey      string    `gorm:"size:255;index" json:"-"`
	CreatedAt       time.Time `json:"createdAt"`

	Station Station `gorm:"foreignKey:StationID" json:"-"`
}

// PendingBooking holds a booking payload produced in chat while no booking
// form was open. It is consumed exactly once when the form opens.
type PendingBooking struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SessionKey string    `gorm:"size:255;not null;uniqueIndex"`
	Payload    string    `gorm:"type:text;not null"` // JSON-encoded booking payload
	ExpiresAt  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
}
