package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
	"gorm.io/gorm"
)

var (
	// ErrIncomplete is returned by Submit when required fields are missing.
	ErrIncomplete = errors.New("booking: form incomplete")
	// ErrSlotTaken is returned when the chosen time has no free capacity.
	ErrSlotTaken = errors.New("booking: slot no longer available")
	// ErrNotReady is returned when slots are requested before a station
	// and date are chosen.
	ErrNotReady = errors.New("booking: choose a station and date first")
)

// loadTimeout bounds one slot regeneration.
const loadTimeout = 5 * time.Second

// DurationOption is one selectable charging duration.
type DurationOption struct {
	Label   string `json:"label"`
	Minutes int    `json:"minutes"`
}

// DurationOptions are the durations the form offers.
var DurationOptions = []DurationOption{
	{"30 minutes", 30},
	{"1 hour", 60},
	{"1.5 hours", 90},
	{"2 hours", 120},
	{"3 hours", 180},
}

var _ chat.BookingFormAdapter = (*Form)(nil)

// Form is the booking form of one session. Changing the station or date
// regenerates the slot grid in the background; SlotsReady is closed when
// the grid for the current selection is loaded.
type Form struct {
	key   string
	avail *Availability
	now   func() time.Time
	ref   func() string

	mu       sync.Mutex
	options  []models.Station
	station  *models.Station
	day      time.Time
	duration int
	vehicle  string
	slot     string
	slots    []station.Slot
	loadErr  error
	ready    chan struct{}
	gen      int
	lastRef  string
}

// FormOpts holds parameters for creating a Form.
type FormOpts struct {
	SessionKey   string
	Stations     []models.Station // the station options
	Availability *Availability
	Now          func() time.Time // defaults to time.Now
	Reference    func() string    // defaults to a random EV###### reference
}

// NewForm creates an empty Form.
func NewForm(opts FormOpts) (*Form, error) {
	if opts.SessionKey == "" {
		return nil, fmt.Errorf("booking: form: session key is required")
	}
	if opts.Availability == nil {
		return nil, fmt.Errorf("booking: form: availability is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ref := opts.Reference
	if ref == nil {
		ref = randomReference
	}
	return &Form{
		key:     opts.SessionKey,
		avail:   opts.Availability,
		now:     now,
		ref:     ref,
		options: opts.Stations,
		ready:   make(chan struct{}),
	}, nil
}

func randomReference() string {
	return fmt.Sprintf("EV%06d", rand.IntN(1_000_000))
}

// SelectStation picks the option that best matches name.
func (f *Form) SelectStation(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := station.Best(f.options, name)
	if !ok {
		return "", fmt.Errorf("booking: no station option matches %q", name)
	}
	f.station = &st
	f.slot = ""
	f.regenerateLocked()
	return st.Name, nil
}

// SetDate sets the booking day. Past days are rejected.
func (f *Form) SetDate(ctx context.Context, day time.Time) error {
	y, m, d := day.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	now := f.now().In(day.Location())
	ny, nm, nd := now.Date()
	if day.Before(time.Date(ny, nm, nd, 0, 0, 0, 0, day.Location())) {
		return fmt.Errorf("booking: %s is in the past", day.Format(dayFormat))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.day = day
	f.slot = ""
	f.regenerateLocked()
	return nil
}

// SetDuration picks the option closest to minutes and returns its label.
func (f *Form) SetDuration(ctx context.Context, minutes int) (string, error) {
	if minutes <= 0 {
		return "", fmt.Errorf("booking: invalid duration %d", minutes)
	}
	best := DurationOptions[0]
	for _, o := range DurationOptions[1:] {
		if abs(o.Minutes-minutes) < abs(best.Minutes-minutes) {
			best = o
		}
	}
	f.mu.Lock()
	f.duration = best.Minutes
	f.mu.Unlock()
	return best.Label, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// SetVehicle sets the vehicle kind.
func (f *Form) SetVehicle(ctx context.Context, vehicle string) error {
	v := strings.ToLower(strings.TrimSpace(vehicle))
	if !station.IsVehicle(v) {
		return fmt.Errorf("booking: unsupported vehicle %q", vehicle)
	}
	f.mu.Lock()
	f.vehicle = v
	f.mu.Unlock()
	return nil
}

// SlotsReady returns a channel closed once the slots for the current
// station and date are loaded.
func (f *Form) SlotsReady() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// ListAvailableSlots waits for the current grid and returns a copy.
func (f *Form) ListAvailableSlots(ctx context.Context) ([]station.Slot, error) {
	for {
		f.mu.Lock()
		if f.station == nil || f.day.IsZero() {
			f.mu.Unlock()
			return nil, ErrNotReady
		}
		ready := f.ready
		f.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		f.mu.Lock()
		if ready == f.ready {
			slots, err := slices.Clone(f.slots), f.loadErr
			f.mu.Unlock()
			return slots, err
		}
		// The selection changed while waiting; wait for the new grid.
		f.mu.Unlock()
	}
}

// SelectSlot picks a free start time from the current grid.
func (f *Form) SelectSlot(ctx context.Context, hhmm string) error {
	want := station.NormalizeClock(hhmm)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		if s.Time == want && !s.Booked {
			f.slot = want
			return nil
		}
	}
	return fmt.Errorf("booking: slot %s is not available", want)
}

// Submit books the filled form and returns the booking reference. The
// capacity check and insert run in one transaction.
func (f *Form) Submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var missing []string
	if f.station == nil {
		missing = append(missing, "station is required")
	}
	if f.day.IsZero() {
		missing = append(missing, "date is required")
	}
	if f.slot == "" {
		missing = append(missing, "time slot is required")
	}
	if f.duration == 0 {
		missing = append(missing, "duration is required")
	}
	if f.vehicle == "" {
		missing = append(missing, "vehicle is required")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, "; "))
	}

	start, err := station.ParseClock(f.slot)
	if err != nil {
		return "", err
	}
	st := *f.station
	b := models.Booking{
		Reference:       f.ref(),
		StationID:       st.ID,
		Day:             f.day.Format(dayFormat),
		StartTime:       f.slot,
		DurationMinutes: f.duration,
		Vehicle:         f.vehicle,
		SessionKey:      f.key,
	}
	err = f.avail.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := f.avail.bookings(ctx, tx, st.ID, f.day)
		if err != nil {
			return err
		}
		for m := start; m < start+f.duration; m += slotMinutes {
			if overlapping(rows, m, m+slotMinutes) >= int(st.Slots) {
				return fmt.Errorf("%w: %s at %s", ErrSlotTaken, st.Name, station.FormatClock(m))
			}
		}
		if err := tx.Create(&b).Error; err != nil {
			return fmt.Errorf("booking: create booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	f.lastRef = b.Reference
	f.slot = ""
	f.regenerateLocked()
	return b.Reference, nil
}

// State is a snapshot of the form for display.
type State struct {
	SessionKey      string   `json:"session"`
	Station         string   `json:"station,omitempty"`
	Date            string   `json:"date,omitempty"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
	Vehicle         string   `json:"vehicle,omitempty"`
	Slot            string   `json:"slot,omitempty"`
	LastReference   string   `json:"lastReference,omitempty"`
	Stations        []string `json:"stations"`
}

// State returns a snapshot of the form.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := State{
		SessionKey:      f.key,
		DurationMinutes: f.duration,
		Vehicle:         f.vehicle,
		Slot:            f.slot,
		LastReference:   f.lastRef,
		Stations:        make([]string, len(f.options)),
	}
	for i, o := range f.options {
		s.Stations[i] = o.Name
	}
	if f.station != nil {
		s.Station = f.station.Name
	}
	if !f.day.IsZero() {
		s.Date = f.day.Format(dayFormat)
	}
	return s
}

// regenerateLocked starts loading the grid for the current selection.
// Callers hold f.mu.
func (f *Form) regenerateLocked() {
	f.gen++
	f.ready = make(chan struct{})
	f.slots = nil
	f.loadErr = nil
	if f.station == nil || f.day.IsZero() {
		return
	}
	go f.load(f.gen, *f.station, f.day, f.ready)
}

func (f *Form) load(gen int, st models.Station, day time.Time, ready chan struct{}) {
	defer close(ready)
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	slots, err := f.avail.ForStation(ctx, st, day)
	if err != nil {
		log.Printf("booking: load slots for %s: %v", f.key, err)
	}

	now := f.now().In(day.Location())
	if y, m, d := now.Date(); day.Equal(time.Date(y, m, d, 0, 0, 0, 0, day.Location())) {
		cutoff := now.Hour()*60 + now.Minute()
		for i := range slots {
			if t, err := station.ParseClock(slots[i].Time); err == nil && t <= cutoff {
				slots[i].Booked = true
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return
	}
	f.slots, f.loadErr = slots, err
}
