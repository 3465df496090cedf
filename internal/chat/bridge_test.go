package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/evbot/internal/station"
)

func newTestBridge(t *testing.T, forms map[string]*fakeForm, pending PendingStore) *Bridge {
	t.Helper()
	b, err := NewBridge(BridgeOpts{
		Locator:           &fakeLocator{forms: forms},
		Pending:           pending,
		SlotsReadyTimeout: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return b
}

func testPayload(hhmm string) BookingPayload {
	return BookingPayload{
		Station:         "Jaipur Charging Hub",
		Date:            time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		Time:            hhmm,
		DurationMinutes: 90,
		Vehicle:         "car",
	}
}

func TestNewBridge_RequiresLocator(t *testing.T) {
	if _, err := NewBridge(BridgeOpts{}); err == nil {
		t.Fatal("expected error for nil locator")
	}
}

// --- Slot selection tiers ---

func TestBridge_Fill(t *testing.T) {
	slots := []station.Slot{{Time: "10:00"}, {Time: "10:30", Booked: true}, {Time: "11:30"}}
	tests := []struct {
		name     string
		want     string
		wantSlot string
		contains string
		filled   bool
	}{
		{"exact", "10:00", "10:00", "✅ Time slot selected: 10:00", true},
		{"nearest", "10:30", "10:00", "⚠️ Time slot 10:30 is not available. Selected 10:00 instead.", true},
		{"nearest later", "11:15", "11:30", "Selected 11:30 instead.", true},
		{"unparseable falls back to first free", "soon", "10:00", "Selected 10:00 instead.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := newFakeForm(slots)
			b := newTestBridge(t, map[string]*fakeForm{"s": form}, nil)

			r := b.Fill(context.Background(), "s", testPayload(tt.want))
			assertContains(t, r.Text(), tt.contains)
			if form.slot != tt.wantSlot {
				t.Errorf("slot = %q, want %q", form.slot, tt.wantSlot)
			}
			if got := strings.Contains(r.Text(), "✅ Form filled!"); got != tt.filled {
				t.Errorf("filled = %v, want %v", got, tt.filled)
			}
			if form.duration != 90 || form.vehicle != "car" {
				t.Errorf("form = %+v", form)
			}
		})
	}
}

func TestBridge_FillNoFreeSlots(t *testing.T) {
	form := newFakeForm([]station.Slot{{Time: "10:00", Booked: true}})
	b := newTestBridge(t, map[string]*fakeForm{"s": form}, nil)

	r := b.Fill(context.Background(), "s", testPayload("10:00"))
	assertContains(t, r.Text(), "⚠️ Time slot 10:00 is not available and no other slots are free.")
	if strings.Contains(r.Text(), "Form filled") {
		t.Errorf("reported filled: %q", r.Text())
	}
	if form.slot != "" {
		t.Errorf("slot = %q, want none", form.slot)
	}
}

func TestBridge_FillSlotsNotReady(t *testing.T) {
	form := newFakeForm([]station.Slot{{Time: "10:00"}})
	form.ready = make(chan struct{})
	b := newTestBridge(t, map[string]*fakeForm{"s": form}, nil)

	r := b.Fill(context.Background(), "s", testPayload("10:00"))
	assertContains(t, r.Text(), "⚠️ Time slots are still loading. Please select a time slot manually.")
	if form.slot != "" {
		t.Errorf("slot = %q, want none", form.slot)
	}
	// Fields before the time are still applied.
	if form.station != "Jaipur Charging Hub" || form.duration != 90 {
		t.Errorf("form = %+v", form)
	}
}

func TestBridge_FillInterrupted(t *testing.T) {
	form := newFakeForm([]station.Slot{{Time: "10:00"}})
	form.ready = make(chan struct{})
	b := newTestBridge(t, map[string]*fakeForm{"s": form}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := b.Fill(ctx, "s", testPayload("10:00"))
	assertContains(t, r.Text(), "Time slot selection was interrupted")
}

func TestBridge_FillWithoutTime(t *testing.T) {
	form := newFakeForm(nil)
	b := newTestBridge(t, map[string]*fakeForm{"s": form}, nil)

	r := b.Fill(context.Background(), "s", testPayload(""))
	assertContains(t, r.Text(), "✅ Form filled!")
	if form.slot != "" {
		t.Errorf("slot = %q, want none", form.slot)
	}
}

func TestBridge_FillStationError(t *testing.T) {
	form := newFakeForm(nil)
	form.stationErr = errors.New("no such option")
	b := newTestBridge(t, map[string]*fakeForm{"s": form}, nil)

	r := b.Fill(context.Background(), "s", testPayload("10:00"))
	assertContains(t, r.Text(), `⚠️ Could not select station "Jaipur Charging Hub": no such option.`)
	if form.duration != 0 || form.vehicle != "" {
		t.Errorf("fields set after station failure: %+v", form)
	}
}

// --- Deferred bookings ---

func TestBridge_FillWithoutFormOrStore(t *testing.T) {
	b := newTestBridge(t, map[string]*fakeForm{}, nil)
	r := b.Fill(context.Background(), "s", testPayload("10:00"))
	assertContains(t, r.Text(), "The booking form is not open.")
	if r.Redirect != "" {
		t.Errorf("Redirect = %q, want none", r.Redirect)
	}
}

type failingPending struct{}

func (failingPending) Put(ctx context.Context, key string, p BookingPayload) error {
	return errors.New("disk full")
}

func (failingPending) Take(ctx context.Context, key string) (BookingPayload, bool, error) {
	return BookingPayload{}, false, errors.New("disk full")
}

func TestBridge_FillPendingStoreError(t *testing.T) {
	b := newTestBridge(t, map[string]*fakeForm{}, failingPending{})
	r := b.Fill(context.Background(), "s", testPayload("10:00"))
	assertContains(t, r.Text(), "Could not save your booking request.")
	if r.Redirect != "" {
		t.Errorf("Redirect = %q, want none", r.Redirect)
	}
	if _, ok := b.Resume(context.Background(), "s", newFakeForm(nil)); ok {
		t.Error("Resume reported a booking after a store error")
	}
}

func TestBridge_ResumeIsSingleUse(t *testing.T) {
	pending := newMemPending()
	b := newTestBridge(t, map[string]*fakeForm{}, pending)

	r := b.Fill(context.Background(), "s", testPayload("11:30"))
	if r.Redirect != DefaultBookingPath {
		t.Errorf("Redirect = %q, want %q", r.Redirect, DefaultBookingPath)
	}

	if _, ok := b.Resume(context.Background(), "other", newFakeForm(nil)); ok {
		t.Error("Resume filled a form for the wrong session")
	}

	form := newFakeForm([]station.Slot{{Time: "11:30"}})
	r, ok := b.Resume(context.Background(), "s", form)
	if !ok {
		t.Fatal("Resume reported nothing pending")
	}
	assertContains(t, r.Text(), "✅ Time slot selected: 11:30")
	if form.stationSets != 1 {
		t.Errorf("station set %d times, want 1", form.stationSets)
	}

	if _, ok := b.Resume(context.Background(), "s", newFakeForm(nil)); ok {
		t.Error("Resume returned the same booking twice")
	}
}

func TestBridge_CustomBookingPath(t *testing.T) {
	b, err := NewBridge(BridgeOpts{
		Locator:     &fakeLocator{forms: map[string]*fakeForm{}},
		Pending:     newMemPending(),
		BookingPath: "/booking?session=s",
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	if r := b.Fill(context.Background(), "s", testPayload("")); r.Redirect != "/booking?session=s" {
		t.Errorf("Redirect = %q", r.Redirect)
	}
}
