// Package booking is the server-side booking form: station slot
// availability, per-session form state, and bookings deferred until a form
// is opened.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
	"gorm.io/gorm"
)

// slotMinutes is the length of one slot in the availability grid.
const slotMinutes = 30

// dayFormat is the layout of models.Booking.Day.
const dayFormat = "2006-01-02"

// Availability computes the slot grid of a station on a day. A slot is
// booked once the bookings overlapping it reach the station's capacity.
type Availability struct {
	db *gorm.DB
}

// NewAvailability creates an Availability.
func NewAvailability(db *gorm.DB) (*Availability, error) {
	if db == nil {
		return nil, fmt.Errorf("booking: availability: db is required")
	}
	return &Availability{db: db}, nil
}

// Slots returns the grid for the station with exactly this name.
func (a *Availability) Slots(ctx context.Context, stationName string, day time.Time) ([]station.Slot, error) {
	var st models.Station
	err := a.db.WithContext(ctx).Where("name = ?", stationName).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", station.ErrNotFound, stationName)
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load station %q: %w", stationName, err)
	}
	return a.ForStation(ctx, st, day)
}

// ForStation returns the grid for st on day. Stations under repair have no
// slots.
func (a *Availability) ForStation(ctx context.Context, st models.Station, day time.Time) ([]station.Slot, error) {
	if st.Status == models.StatusRepair {
		return nil, nil
	}
	bookings, err := a.bookings(ctx, a.db, st.ID, day)
	if err != nil {
		return nil, err
	}
	times := station.CandidateTimes(st.OpeningHours)
	slots := make([]station.Slot, 0, len(times))
	for _, t := range times {
		start, _ := station.ParseClock(t)
		slots = append(slots, station.Slot{
			Time:   t,
			Booked: overlapping(bookings, start, start+slotMinutes) >= int(st.Slots),
		})
	}
	return slots, nil
}

// bookings loads the bookings of a station on a day through tx.
func (a *Availability) bookings(ctx context.Context, tx *gorm.DB, stationID uint, day time.Time) ([]models.Booking, error) {
	var rows []models.Booking
	if err := tx.WithContext(ctx).
		Where("station_id = ? AND day = ?", stationID, day.Format(dayFormat)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("booking: load bookings for station %d: %w", stationID, err)
	}
	return rows, nil
}

// overlapping counts the bookings whose interval intersects [from, to).
func overlapping(bookings []models.Booking, from, to int) int {
	n := 0
	for _, b := range bookings {
		start, err := station.ParseClock(b.StartTime)
		if err != nil {
			continue
		}
		dur := b.DurationMinutes
		if dur <= 0 {
			dur = slotMinutes
		}
		if start < to && start+dur > from {
			n++
		}
	}
	return n
}
