package chat

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/evbot/internal/station"
)

// durationOptions are the labeled choices offered at the duration step.
var durationOptions = []struct {
	label   string
	minutes int
}{
	{"30 minutes", 30},
	{"1 hour", 60},
	{"1.5 hours", 90},
	{"2 hours", 120},
	{"3 hours", 180},
}

var (
	flowDateRe     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	flowDurationRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(minutes|minute|mins|min|m|hours|hour|hrs|hr|h)$`)
	cancelRe       = regexp.MustCompile(`^(?:cancel|stop)(?:\s+(?:booking|it|this))?$`)
	yesRe          = regexp.MustCompile(`^(?:yes|y|yeah|yep|ok|okay|sure)$`)
)

// IsCancel reports whether text interrupts an active booking flow.
func IsCancel(text string) bool {
	return cancelRe.MatchString(normalize(text).lower)
}

// startFlow enters the guided booking dialogue. A known station skips
// straight to the date step, and a known day past it.
func (d *Dispatcher) startFlow(ctx context.Context, sess *Session, name, day string) Reply {
	sess.StartBookingFlow().Day = day
	if name != "" {
		return d.flowStation(ctx, sess, name)
	}
	var r Reply
	r.Say("📅 Let's book a charging slot! Which station would you like to book?")
	offered := map[string]bool{}
	for _, f := range sess.Prefs.Favorites {
		r.Offer(qr("⭐ "+f, f))
		offered[strings.ToLower(f)] = true
	}
	if all, fail := d.stations(ctx); fail == nil {
		n := 0
		for _, st := range all {
			if n == maxAlternatives {
				break
			}
			if offered[strings.ToLower(st.Name)] {
				continue
			}
			r.Offer(qr(st.Name, st.Name))
			n++
		}
	}
	return r
}

// Continue feeds one turn of user input to the active booking flow.
func (d *Dispatcher) Continue(ctx context.Context, sess *Session, text string) Reply {
	if sess.Flow == nil {
		var r Reply
		r.Say(fallbackMessage)
		return r
	}
	if IsCancel(text) {
		sess.CancelBookingFlow()
		var r Reply
		r.Say("❌ Booking cancelled. How else can I help?")
		r.Offer(defaultQuickReplies()...)
		return r
	}
	text = strings.TrimSpace(text)
	switch sess.Flow.Step {
	case StepStation:
		return d.flowStation(ctx, sess, text)
	case StepDate:
		return d.flowDate(ctx, sess, text)
	case StepTime:
		return d.flowTime(ctx, sess, text)
	case StepDuration:
		return d.flowDuration(ctx, sess, text)
	case StepVehicle:
		return d.flowVehicle(ctx, sess, text)
	}
	sess.CancelBookingFlow()
	var r Reply
	r.Say(fallbackMessage)
	return r
}

func (d *Dispatcher) flowStation(ctx context.Context, sess *Session, text string) Reply {
	st, found, alts, fail := d.lookup(ctx, cleanName(text))
	if fail != nil {
		return *fail
	}
	var r Reply
	if !found {
		r.Sayf("❌ Station %q not found. Please choose one of these:", text)
		for _, a := range alts {
			r.Offer(qr(a, a))
		}
		return r
	}
	sess.Flow.Data.Station = st.Name
	sess.SetLastStation(st.Name)
	sess.AdvanceBookingFlow(StepDate)
	if day := sess.Flow.Day; day != "" {
		sess.Flow.Day = ""
		r.Sayf("✅ Station: %s", st.Name)
		next := d.flowDate(ctx, sess, day)
		r.Messages = append(r.Messages, next.Messages...)
		return r
	}
	r.Sayf("✅ Station: %s\n📅 Which date? Type 'today', 'tomorrow' or a date as DD/MM/YYYY.", st.Name)
	r.Offer(dateQuickReplies()...)
	return r
}

func (d *Dispatcher) flowDate(ctx context.Context, sess *Session, text string) Reply {
	var r Reply
	l := strings.ToLower(text)
	if l == "custom date" {
		r.Say("📅 Please type the date as DD/MM/YYYY.")
		return r
	}
	now := sess.now()
	day, ok := parseFlowDate(l, now)
	if !ok {
		r.Say("❌ Invalid date. Please use DD/MM/YYYY, 'today' or 'tomorrow'.")
		r.Offer(dateQuickReplies()...)
		return r
	}
	today := midnight(now)
	if day.Before(today) {
		r.Say("❌ That date is in the past. Please choose today or a later date.")
		r.Offer(dateQuickReplies()...)
		return r
	}

	actx, cancel := context.WithTimeout(ctx, d.timeout)
	slots, err := d.avail.Slots(actx, sess.Flow.Data.Station, day)
	cancel()
	if err != nil {
		r.Warn("Could not load time slots: %v", err)
		r.Offer(dateQuickReplies()...)
		return r
	}
	free := station.Unbooked(slots)
	if day.Equal(today) {
		free = laterThan(free, now.Hour()*60+now.Minute())
	}
	if len(free) == 0 {
		r.Sayf("❌ No free slots at %s on %s. Please choose another date.", sess.Flow.Data.Station, day.Format("Mon, 2 Jan"))
		r.Offer(dateQuickReplies()...)
		return r
	}

	sess.Flow.Data.Date = day
	sess.Flow.Slots = free
	sess.AdvanceBookingFlow(StepTime)
	r.Messages = append(r.Messages, Message{
		Text:  "✅ Date: " + day.Format("Mon, 2 Jan 2006") + "\n🕐 Pick a time or type it as HH:MM:",
		Slots: free,
	})
	return r
}

func (d *Dispatcher) flowTime(ctx context.Context, sess *Session, text string) Reply {
	flow := sess.Flow
	if flow.Suggestion != "" && yesRe.MatchString(strings.ToLower(text)) {
		return d.acceptTime(sess, flow.Suggestion)
	}

	// Slot buttons send "select HH:MM".
	if m := selectSlotRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		text = m[1]
	}

	var r Reply
	minutes, err := station.ParseClock(text)
	if err != nil {
		r.Messages = append(r.Messages, Message{
			Text:  "❌ Please pick one of the available times (HH:MM).",
			Slots: flow.Slots,
		})
		return r
	}
	want := station.FormatClock(minutes)
	for _, s := range flow.Slots {
		if s == want {
			return d.acceptTime(sess, want)
		}
	}
	nearest, ok := station.NearestTime(flow.Slots, want)
	if !ok {
		r.Sayf("❌ %s is not available and there are no other free slots.", want)
		return r
	}
	flow.Suggestion = nearest
	r.Messages = append(r.Messages, Message{
		Text:  "⚠️ " + want + " is not available. The nearest free slot is " + nearest + ". Book " + nearest + " instead?",
		Slots: flow.Slots,
	})
	r.Offer(qr("Yes, "+nearest, "yes"))
	return r
}

func (d *Dispatcher) acceptTime(sess *Session, hhmm string) Reply {
	sess.Flow.Data.Time = hhmm
	sess.AdvanceBookingFlow(StepDuration)
	var r Reply
	r.Sayf("✅ Time: %s\n⏱️ How long do you want to charge?", hhmm)
	for _, o := range durationOptions {
		r.Offer(qr(o.label, o.label))
	}
	r.Offer(qr("Skip", "skip"))
	return r
}

func (d *Dispatcher) flowDuration(ctx context.Context, sess *Session, text string) Reply {
	sess.Flow.Data.DurationMinutes = parseFlowDuration(strings.ToLower(text))
	if v := sess.Prefs.Vehicle; v != "" {
		sess.Flow.Data.Vehicle = v
		return d.completeFlow(ctx, sess)
	}
	sess.AdvanceBookingFlow(StepVehicle)
	var r Reply
	r.Say("🚗 Which vehicle are you charging?")
	r.Offer(qr("🚗 Car", "car"), qr("🏍️ Bike", "bike"), qr("🛵 Scooter", "scooter"), qr("Skip", "skip"))
	return r
}

func (d *Dispatcher) flowVehicle(ctx context.Context, sess *Session, text string) Reply {
	v := strings.ToLower(text)
	if station.IsVehicle(v) {
		sess.Flow.Data.Vehicle = v
		sess.Prefs.Vehicle = v
	}
	return d.completeFlow(ctx, sess)
}

// completeFlow ends the flow and hands the collected booking to the bridge.
func (d *Dispatcher) completeFlow(ctx context.Context, sess *Session) Reply {
	p := sess.Flow.Data
	sess.CancelBookingFlow()
	var r Reply
	r.Say(bookingSummary(p))
	r.Append(d.bridge.Fill(ctx, sess.Key, p))
	return r
}

// parseFlowDate accepts today, tomorrow or DD/MM/YYYY.
func parseFlowDate(l string, now time.Time) (time.Time, bool) {
	switch l {
	case "today":
		return midnight(now), true
	case "tomorrow":
		return midnight(now).AddDate(0, 0, 1), true
	}
	m := flowDateRe.FindStringSubmatch(l)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return calendarDate(year, month, day, now.Location())
}

// parseFlowDuration returns minutes for a labeled option or "N min|hours".
// Anything else, including skip, is 0.
func parseFlowDuration(l string) int {
	for _, o := range durationOptions {
		if l == o.label {
			return o.minutes
		}
	}
	m := flowDurationRe.FindStringSubmatch(l)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 0
	}
	if strings.HasPrefix(m[2], "h") {
		n *= 60
	}
	return int(n)
}

func durationLabel(minutes int) string {
	for _, o := range durationOptions {
		if o.minutes == minutes {
			return o.label
		}
	}
	return strconv.Itoa(minutes) + " minutes"
}

// laterThan keeps the times strictly after minute-of-day cutoff.
func laterThan(times []string, cutoff int) []string {
	var out []string
	for _, t := range times {
		if m, err := station.ParseClock(t); err == nil && m > cutoff {
			out = append(out, t)
		}
	}
	return out
}

func dateQuickReplies() []QuickReply {
	return []QuickReply{
		qr("Today", "today"),
		qr("Tomorrow", "tomorrow"),
		qr("Custom date", "custom date"),
	}
}
