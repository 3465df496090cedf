package chat

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- Guided booking scenarios ---

func TestFlow_FullBooking(t *testing.T) {
	env := newTestEnv(t)
	form := newFakeForm(env.avail.slots)
	env.forms.forms["web:1"] = form

	r := env.handle(t, "web:1", "book")
	assertContains(t, r.Text(), "📅 Let's book a charging slot! Which station would you like to book?")
	if n := len(r.QuickReplies()); n != 5 {
		t.Errorf("station quick replies = %d, want 5", n)
	}

	r = env.handle(t, "web:1", "Jaipur Charging Hub")
	assertContains(t, r.Text(), "✅ Station: Jaipur Charging Hub")

	r = env.handle(t, "web:1", "today")
	assertContains(t, r.Text(), "✅ Date: Mon, 19 Oct 2026")
	if got := r.Messages[0].Slots; !reflect.DeepEqual(got, []string{"14:00", "14:30"}) {
		t.Errorf("slots = %v, want [14:00 14:30]", got)
	}

	r = env.handle(t, "web:1", "14:05")
	assertContains(t, r.Text(), "⚠️ 14:05 is not available. The nearest free slot is 14:00. Book 14:00 instead?")

	r = env.handle(t, "web:1", "yes")
	assertContains(t, r.Text(), "✅ Time: 14:00")

	r = env.handle(t, "web:1", "1 hour")
	assertContains(t, r.Text(), "🚗 Which vehicle are you charging?")

	r = env.handle(t, "web:1", "car")
	text := r.Text()
	assertContains(t, text, "📋 Booking summary:")
	assertContains(t, text, "⏱️ Duration: 1 hour")
	assertContains(t, text, "✅ Time slot selected: 14:00")
	assertContains(t, text, "✅ Form filled!")

	if form.stationSets != 1 {
		t.Errorf("station set %d times, want 1", form.stationSets)
	}
	if form.station != "Jaipur Charging Hub" {
		t.Errorf("form station = %q", form.station)
	}
	if form.slot != "14:00" {
		t.Errorf("form slot = %q, want 14:00", form.slot)
	}
	if form.duration != 60 {
		t.Errorf("form duration = %d, want 60", form.duration)
	}
	if form.vehicle != "car" {
		t.Errorf("form vehicle = %q, want car", form.vehicle)
	}
	if want := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC); !form.day.Equal(want) {
		t.Errorf("form day = %v, want %v", form.day, want)
	}

	prefs, err := env.bot.Preferences(context.Background(), "web:1", "")
	if err != nil {
		t.Fatalf("preferences: %v", err)
	}
	if prefs.Vehicle != "car" {
		t.Errorf("saved vehicle = %q, want car", prefs.Vehicle)
	}
	if prefs.QueryCounts["booking_flow:date"] != 1 {
		t.Errorf("QueryCounts = %v", prefs.QueryCounts)
	}

	// The flow is over; the next turn is classified again.
	r = env.handle(t, "web:1", "hello")
	assertContains(t, r.Text(), "👋 Hello!")
}

func TestFlow_NoFormStoresPending(t *testing.T) {
	env := newTestEnv(t)
	for _, text := range []string{"book Jaipur Charging Hub", "tomorrow", "14:30", "2 hours"} {
		env.handle(t, "web:1", text)
	}
	r := env.handle(t, "web:1", "bike")

	if env.pending.puts != 1 {
		t.Fatalf("pending puts = %d, want 1", env.pending.puts)
	}
	if r.Redirect != "/booking" {
		t.Errorf("Redirect = %q, want /booking", r.Redirect)
	}
	assertContains(t, r.Text(), "📋 Preparing booking for Jaipur Charging Hub...")
	assertContains(t, r.Text(), "🔄 Opening booking page...")

	p := env.pending.m["web:1"]
	if p.Station != "Jaipur Charging Hub" || p.Time != "14:30" || p.DurationMinutes != 120 || p.Vehicle != "bike" {
		t.Errorf("pending payload = %+v", p)
	}

	form := newFakeForm(env.avail.slots)
	resumed, ok := env.bot.Resume(context.Background(), "web:1", form)
	if !ok {
		t.Fatal("Resume reported nothing pending")
	}
	assertContains(t, resumed.Text(), "🔄 Completing your booking request...")
	if form.slot != "14:30" || form.vehicle != "bike" {
		t.Errorf("resumed form = %+v", form)
	}
	if _, ok := env.bot.Resume(context.Background(), "web:1", newFakeForm(nil)); ok {
		t.Error("pending booking resumed twice")
	}
}

func TestFlow_SavedVehicleSkipsVehicleStep(t *testing.T) {
	env := newTestEnv(t)
	env.forms.forms["web:1"] = newFakeForm(env.avail.slots)
	env.handle(t, "web:1", "my vehicle is a scooter")
	for _, text := range []string{"book Jaipur Charging Hub", "today", "14:00"} {
		env.handle(t, "web:1", text)
	}
	r := env.handle(t, "web:1", "30 minutes")
	assertContains(t, r.Text(), "🚗 Vehicle: scooter")
	if f := env.forms.forms["web:1"]; f.vehicle != "scooter" || f.duration != 30 {
		t.Errorf("form = %+v", f)
	}
}

func TestFlow_Cancel(t *testing.T) {
	env := newTestEnv(t)
	env.handle(t, "web:1", "book")
	env.handle(t, "web:1", "Udaipur EV Point")

	r := env.handle(t, "web:1", "cancel booking")
	if got := r.Messages[0].Text; got != "❌ Booking cancelled. How else can I help?" {
		t.Errorf("reply = %q", got)
	}
	r = env.handle(t, "web:1", "today")
	if strings.Contains(r.Text(), "✅ Date:") {
		t.Errorf("cancelled flow still answered: %q", r.Text())
	}
	if env.pending.puts != 0 {
		t.Errorf("cancelled flow stored %d bookings", env.pending.puts)
	}
}

// --- Step validation ---

func flowAtDate(t *testing.T, env *testEnv) *Session {
	t.Helper()
	sess := env.session()
	env.dispatcher.Dispatch(context.Background(), sess, StartBookingFlow{Station: "Jaipur Charging Hub"})
	if sess.Flow == nil || sess.Flow.Step != StepDate {
		t.Fatalf("flow = %+v, want date step", sess.Flow)
	}
	return sess
}

func TestFlow_DateValidation(t *testing.T) {
	env := newTestEnv(t)
	sess := flowAtDate(t, env)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"01/01/2020", "❌ That date is in the past."},
		{"32/13/2026", "❌ Invalid date."},
		{"next week", "❌ Invalid date."},
		{"custom date", "📅 Please type the date as DD/MM/YYYY."},
	}
	for _, tt := range tests {
		r := env.dispatcher.Continue(ctx, sess, tt.text)
		assertContains(t, r.Text(), tt.want)
		if sess.Flow.Step != StepDate {
			t.Errorf("%q: step = %s, want date", tt.text, sess.Flow.Step)
		}
	}
	if len(env.avail.calls) != 0 {
		t.Errorf("availability queried for invalid dates: %v", env.avail.calls)
	}

	env.dispatcher.Continue(ctx, sess, "21/10/2026")
	if want := []string{"Jaipur Charging Hub@2026-10-21"}; !reflect.DeepEqual(env.avail.calls, want) {
		t.Errorf("availability calls = %v, want %v", env.avail.calls, want)
	}
	if sess.Flow.Step != StepTime {
		t.Errorf("step = %s, want time", sess.Flow.Step)
	}
}

func TestFlow_TodayDropsPastSlots(t *testing.T) {
	env := newTestEnv(t)
	env.now = time.Date(2026, 10, 19, 16, 0, 0, 0, time.UTC)
	sess := flowAtDate(t, env)

	r := env.dispatcher.Continue(context.Background(), sess, "today")
	assertContains(t, r.Text(), "❌ No free slots at Jaipur Charging Hub on Mon, 19 Oct.")
	if sess.Flow.Step != StepDate {
		t.Errorf("step = %s, want date", sess.Flow.Step)
	}

	r = env.dispatcher.Continue(context.Background(), sess, "tomorrow")
	if got := r.Messages[0].Slots; !reflect.DeepEqual(got, []string{"14:00", "14:30"}) {
		t.Errorf("tomorrow slots = %v", got)
	}
}

func TestFlow_TimeValidation(t *testing.T) {
	env := newTestEnv(t)
	sess := flowAtDate(t, env)
	ctx := context.Background()
	env.dispatcher.Continue(ctx, sess, "today")

	r := env.dispatcher.Continue(ctx, sess, "soon")
	assertContains(t, r.Text(), "❌ Please pick one of the available times (HH:MM).")

	r = env.dispatcher.Continue(ctx, sess, "yes")
	assertContains(t, r.Text(), "❌ Please pick one of the available times")
	if sess.Flow.Step != StepTime {
		t.Errorf("yes without a suggestion advanced to %s", sess.Flow.Step)
	}

	env.dispatcher.Continue(ctx, sess, "16:00")
	if sess.Flow.Suggestion != "14:30" {
		t.Errorf("Suggestion = %q, want 14:30", sess.Flow.Suggestion)
	}
	env.dispatcher.Continue(ctx, sess, "14:00")
	if sess.Flow.Step != StepDuration || sess.Flow.Data.Time != "14:00" {
		t.Errorf("flow = %+v", sess.Flow)
	}
	if sess.Flow.Suggestion != "" {
		t.Errorf("Suggestion = %q after advancing", sess.Flow.Suggestion)
	}
}

func TestFlow_StationNotFound(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session()
	env.dispatcher.Dispatch(context.Background(), sess, StartBookingFlow{})
	r := env.dispatcher.Continue(context.Background(), sess, "Kota Plaza")
	assertContains(t, r.Text(), `❌ Station "Kota Plaza" not found. Please choose one of these:`)
	if sess.Flow.Step != StepStation {
		t.Errorf("step = %s, want station", sess.Flow.Step)
	}
}

func TestFlow_DayGivenBeforeStation(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session()
	ctx := context.Background()

	intent := NewClassifier().Classify("book a slot for tomorrow", sess)
	if intent != (StartBookingFlow{Day: "tomorrow"}) {
		t.Fatalf("Classify = %#v, want a flow for tomorrow", intent)
	}
	r := env.dispatcher.Dispatch(ctx, sess, intent)
	assertContains(t, r.Text(), "Which station would you like to book?")

	r = env.dispatcher.Continue(ctx, sess, "Jaipur Charging Hub")
	assertContains(t, r.Text(), "✅ Station: Jaipur Charging Hub")
	assertContains(t, r.Text(), "✅ Date: ")
	if want := []string{"Jaipur Charging Hub@2026-10-20"}; !reflect.DeepEqual(env.avail.calls, want) {
		t.Errorf("availability calls = %v, want %v", env.avail.calls, want)
	}
	if sess.Flow.Step != StepTime {
		t.Errorf("step = %s, want time", sess.Flow.Step)
	}
}

func TestFlow_FavoritesOfferedFirst(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session()
	sess.Prefs.AddFavorite("Udaipur EV Point")
	r := env.dispatcher.Dispatch(context.Background(), sess, StartBookingFlow{})
	vals := quickReplyValues(r)
	if len(vals) != 5 || vals[0] != "Udaipur EV Point" {
		t.Fatalf("quick replies = %v", vals)
	}
	for _, v := range vals[1:] {
		if v == "Udaipur EV Point" {
			t.Errorf("favorite offered twice: %v", vals)
		}
	}
}

// --- Parsers ---

func TestParseFlowDuration(t *testing.T) {
	tests := map[string]int{
		"30 minutes": 30,
		"1 hour":     60,
		"1.5 hours":  90,
		"2h":         120,
		"45 min":     45,
		"skip":       0,
		"0 min":      0,
		"forever":    0,
	}
	for in, want := range tests {
		if got := parseFlowDuration(in); got != want {
			t.Errorf("parseFlowDuration(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseFlowDate(t *testing.T) {
	now := time.Date(2026, 10, 19, 22, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"today", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), true},
		{"tomorrow", time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), true},
		{"05/11/2026", time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC), true},
		{"31/02/2026", time.Time{}, false},
		{"2026-11-05", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseFlowDate(tt.in, now)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("parseFlowDate(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsCancel(t *testing.T) {
	for _, s := range []string{"cancel", "Cancel booking", "stop", "stop it"} {
		if !IsCancel(s) {
			t.Errorf("IsCancel(%q) = false", s)
		}
	}
	for _, s := range []string{"cancel my subscription", "don't stop", "book"} {
		if IsCancel(s) {
			t.Errorf("IsCancel(%q) = true", s)
		}
	}
}
