package station

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	slotStep   = 30
	dayMinutes = 24 * 60

	// Default window for hours strings without an AM/PM range.
	defaultOpen  = 8 * 60
	defaultClose = 22 * 60
)

// Slot is one bookable start time on a given day.
type Slot struct {
	Time   string `json:"time"` // HH:MM
	Booked bool   `json:"booked"`
}

var hoursRangeRe = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)\s*(?:-|–|to)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)

// OpeningWindow parses an opening-hours string into minutes after midnight.
// "24/7" is the whole day; strings without a recognizable AM/PM range fall
// back to 08:00–22:00. The close time is exclusive only for 24-hour stations.
func OpeningWindow(hours string) (openMin, closeMin int) {
	h := strings.ToLower(strings.TrimSpace(hours))
	if h == "" || strings.Contains(h, "24/7") || strings.Contains(h, "24 hours") || strings.Contains(h, "24x7") {
		return 0, dayMinutes
	}
	m := hoursRangeRe.FindStringSubmatch(h)
	if m == nil {
		return defaultOpen, defaultClose
	}
	openMin = to24h(m[1], m[2], m[3])
	closeMin = to24h(m[4], m[5], m[6])
	if closeMin <= openMin {
		closeMin = dayMinutes
	}
	return openMin, closeMin
}

func to24h(hour, minute, meridiem string) int {
	h, _ := strconv.Atoi(hour)
	mi, _ := strconv.Atoi(minute)
	h %= 12
	if strings.EqualFold(meridiem, "pm") {
		h += 12
	}
	return h*60 + mi
}

// CandidateTimes returns the half-hourly start times for an opening-hours
// string, in chronological order. The closing time itself is included when
// it falls on a slot boundary before midnight.
func CandidateTimes(hours string) []string {
	openMin, closeMin := OpeningWindow(hours)
	start := (openMin + slotStep - 1) / slotStep * slotStep
	var out []string
	for m := start; m <= closeMin && m < dayMinutes; m += slotStep {
		out = append(out, FormatClock(m))
	}
	return out
}

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseClock parses "H:MM" or "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("station: invalid time %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	if h > 23 || mi > 59 {
		return 0, fmt.Errorf("station: invalid time %q", s)
	}
	return h*60 + mi, nil
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock rewrites "9:00" as "09:00". Invalid input is returned unchanged.
func NormalizeClock(s string) string {
	m, err := ParseClock(s)
	if err != nil {
		return s
	}
	return FormatClock(m)
}

// NearestTime returns the candidate closest to want. Ties go to the
// chronologically earlier candidate. Unparseable candidates are skipped.
func NearestTime(candidates []string, want string) (string, bool) {
	target, err := ParseClock(want)
	if err != nil {
		return "", false
	}
	type cand struct {
		s string
		m int
	}
	var cs []cand
	for _, c := range candidates {
		m, err := ParseClock(c)
		if err != nil {
			continue
		}
		cs = append(cs, cand{s: c, m: m})
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].m < cs[j].m })

	best, bestDiff := "", -1
	for _, c := range cs {
		d := c.m - target
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff {
			best, bestDiff = c.s, d
		}
	}
	return best, bestDiff >= 0
}

// Unbooked returns the times of the slots that are still free.
func Unbooked(slots []Slot) []string {
	var out []string
	for _, s := range slots {
		if !s.Booked {
			out = append(out, s.Time)
		}
	}
	return out
}
