package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/evbot/internal/station"
)

// ErrNoForm is returned when a session has no open booking form.
var ErrNoForm = errors.New("chat: no booking form open")

// DefaultSlotsReadyTimeout bounds the wait for a form to regenerate slots.
const DefaultSlotsReadyTimeout = 1500 * time.Millisecond

// DefaultBookingPath is where clients are sent when no form is open.
const DefaultBookingPath = "/booking"

// BookingFormAdapter is the booking form as seen by the bridge.
type BookingFormAdapter interface {
	// SelectStation picks the closest station option and returns its name.
	SelectStation(ctx context.Context, name string) (string, error)
	SetDate(ctx context.Context, day time.Time) error
	// SetDuration picks the matching duration option and returns its label.
	SetDuration(ctx context.Context, minutes int) (string, error)
	SetVehicle(ctx context.Context, vehicle string) error
	// SlotsReady is closed once slots for the current station and date
	// have been regenerated.
	SlotsReady() <-chan struct{}
	ListAvailableSlots(ctx context.Context) ([]station.Slot, error)
	SelectSlot(ctx context.Context, hhmm string) error
	// Submit books the filled form and returns its reference.
	Submit(ctx context.Context) (string, error)
}

// FormLocator finds the booking form open for a session.
type FormLocator interface {
	Locate(sessionKey string) (BookingFormAdapter, bool)
}

// PendingStore holds a booking for a session until its form opens.
// Take returns the payload at most once.
type PendingStore interface {
	Put(ctx context.Context, sessionKey string, p BookingPayload) error
	Take(ctx context.Context, sessionKey string) (BookingPayload, bool, error)
}

// Bridge fills booking forms from completed booking payloads.
type Bridge struct {
	locator      FormLocator
	pending      PendingStore
	slotsTimeout time.Duration
	bookingPath  string
}

// BridgeOpts holds parameters for creating a Bridge.
type BridgeOpts struct {
	Locator           FormLocator
	Pending           PendingStore  // optional; without it absent forms cannot be deferred
	SlotsReadyTimeout time.Duration // defaults to DefaultSlotsReadyTimeout
	BookingPath       string        // defaults to DefaultBookingPath
}

// NewBridge creates a Bridge.
func NewBridge(opts BridgeOpts) (*Bridge, error) {
	if opts.Locator == nil {
		return nil, fmt.Errorf("chat: bridge: locator is required")
	}
	timeout := opts.SlotsReadyTimeout
	if timeout <= 0 {
		timeout = DefaultSlotsReadyTimeout
	}
	path := opts.BookingPath
	if path == "" {
		path = DefaultBookingPath
	}
	return &Bridge{
		locator:      opts.Locator,
		pending:      opts.Pending,
		slotsTimeout: timeout,
		bookingPath:  path,
	}, nil
}

// Form returns the open form for a session, or ErrNoForm.
func (b *Bridge) Form(sessionKey string) (BookingFormAdapter, error) {
	form, ok := b.locator.Locate(sessionKey)
	if !ok || form == nil {
		return nil, ErrNoForm
	}
	return form, nil
}

// Fill applies p to the session's open form. Without an open form the
// payload is stored for Resume and the reply redirects to the booking page.
func (b *Bridge) Fill(ctx context.Context, sessionKey string, p BookingPayload) Reply {
	form, err := b.Form(sessionKey)
	if err == nil {
		return b.fill(ctx, form, p)
	}

	var r Reply
	if b.pending == nil {
		r.Warn("The booking form is not open. Please open the booking page to continue.")
		return r
	}
	if err := b.pending.Put(ctx, sessionKey, p); err != nil {
		log.Printf("chat: store pending booking for %s: %v", sessionKey, err)
		r.Warn("Could not save your booking request. Please fill the booking form manually.")
		return r
	}
	r.Sayf("📋 Preparing booking for %s...", p.Station)
	r.Say("🔄 Opening booking page...")
	r.Redirect = b.bookingPath
	return r
}

// Resume fills a newly opened form with the session's pending booking.
// It reports false when nothing was pending.
func (b *Bridge) Resume(ctx context.Context, sessionKey string, form BookingFormAdapter) (Reply, bool) {
	if b.pending == nil {
		return Reply{}, false
	}
	p, ok, err := b.pending.Take(ctx, sessionKey)
	if err != nil {
		log.Printf("chat: take pending booking for %s: %v", sessionKey, err)
		return Reply{}, false
	}
	if !ok {
		return Reply{}, false
	}
	var r Reply
	r.Say("🔄 Completing your booking request...")
	r.Append(b.fill(ctx, form, p))
	return r, true
}

func (b *Bridge) fill(ctx context.Context, form BookingFormAdapter, p BookingPayload) Reply {
	var r Reply
	r.Sayf("📋 Filling booking form for %s...", p.Station)

	name, err := form.SelectStation(ctx, p.Station)
	if err != nil {
		r.Warn("Could not select station %q: %v. Please fill the form manually.", p.Station, err)
		return r
	}
	r.Sayf("✅ Station selected: %s", name)

	if !p.Date.IsZero() {
		if err := form.SetDate(ctx, p.Date); err != nil {
			r.Warn("Could not set date: %v", err)
		} else {
			r.Sayf("✅ Date set: %s", p.Date.Format("Mon, 2 Jan 2006"))
		}
	}
	if p.DurationMinutes > 0 {
		if label, err := form.SetDuration(ctx, p.DurationMinutes); err != nil {
			r.Warn("Could not set duration: %v", err)
		} else {
			r.Sayf("✅ Duration set: %s", label)
		}
	}
	if p.Vehicle != "" {
		if err := form.SetVehicle(ctx, p.Vehicle); err != nil {
			r.Warn("Could not set vehicle: %v", err)
		} else {
			r.Sayf("✅ Vehicle type: %s", p.Vehicle)
		}
	}

	if p.Time != "" && !b.selectTime(ctx, form, p.Time, &r) {
		return r
	}
	r.Say("✅ Form filled! Review the details and confirm the booking.")
	r.Offer(qr("Confirm booking", "confirm booking"))
	return r
}

// selectTime waits for the form's slots and picks the requested time, the
// nearest free time, or any free time, in that order.
func (b *Bridge) selectTime(ctx context.Context, form BookingFormAdapter, want string, r *Reply) bool {
	timer := time.NewTimer(b.slotsTimeout)
	defer timer.Stop()
	select {
	case <-form.SlotsReady():
	case <-timer.C:
		r.Warn("Time slots are still loading. Please select a time slot manually.")
		return false
	case <-ctx.Done():
		r.Warn("Time slot selection was interrupted. Please select a time slot manually.")
		return false
	}

	slots, err := form.ListAvailableSlots(ctx)
	if err != nil {
		r.Warn("Could not read time slots: %v", err)
		return false
	}
	free := station.Unbooked(slots)

	pick := ""
	for _, t := range free {
		if t == want {
			pick = t
			break
		}
	}
	if pick == "" {
		if nearest, ok := station.NearestTime(free, want); ok {
			pick = nearest
		} else if len(free) > 0 {
			pick = free[0]
		}
	}
	if pick == "" {
		r.Warn("Time slot %s is not available and no other slots are free. Please select a time manually.", want)
		return false
	}

	if err := form.SelectSlot(ctx, pick); err != nil {
		r.Warn("Could not select time slot %s: %v", pick, err)
		return false
	}
	if pick == want {
		r.Sayf("✅ Time slot selected: %s", pick)
	} else {
		r.Warn("Time slot %s is not available. Selected %s instead.", want, pick)
	}
	return true
}
