package chat

import (
	"time"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

// FlowStep is a state of the guided booking dialogue.
type FlowStep string

// Booking flow steps, in order.
const (
	StepStation  FlowStep = "station"
	StepDate     FlowStep = "date"
	StepTime     FlowStep = "time"
	StepDuration FlowStep = "duration"
	StepVehicle  FlowStep = "vehicle"
)

// BookingFlow is an in-progress guided booking.
type BookingFlow struct {
	Step FlowStep
	Data BookingPayload

	// Slots are the free HH:MM start times for Data.Station on Data.Date.
	Slots []string
	// Suggestion is the nearest free slot offered for an unavailable time,
	// awaiting a yes.
	Suggestion string
	// Day is a date given before the station, applied once it is chosen.
	Day string
}

// QueryRecord is one classified turn in the session history.
type QueryRecord struct {
	Query   string
	Action  string
	Station string
	At      time.Time
}

// Session is the per-conversation context: what was asked last, which
// stations it resolved to and any dialogue in progress. A Session is not
// safe for concurrent use; Sessions serializes access.
type Session struct {
	Key string

	LastQuery    string
	LastStation  string
	LastStations []string
	LastAction   string
	History      []QueryRecord

	// LastField and LastAmenity are what the last station question asked,
	// reused by "what about <station>".
	LastField   string
	LastAmenity string

	Flow     *BookingFlow
	FollowUp *ConnectorFollowUp

	// Location is the user's reported position, if shared.
	Location *station.Coordinates
	Prefs    *Preferences

	// Now overrides the clock for relative dates. Nil means time.Now.
	Now func() time.Time
}

// NewSession creates a Session. A nil prefs gets an empty profile.
func NewSession(key string, prefs *Preferences) *Session {
	if prefs == nil {
		prefs = NewPreferences()
	}
	return &Session{Key: key, Prefs: prefs}
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RecordQuery remembers the latest raw user text.
func (s *Session) RecordQuery(text string) {
	s.LastQuery = text
}

// RecordStationResult remembers an ordered result set. The first station
// becomes the last station. An empty result leaves the context unchanged.
func (s *Session) RecordStationResult(stations []models.Station) {
	if len(stations) == 0 {
		return
	}
	names := make([]string, len(stations))
	for i, st := range stations {
		names[i] = st.Name
	}
	s.LastStations = names
	s.LastStation = names[0]
}

// RecordQuestion remembers the field or amenity of the last station question.
func (s *Session) RecordQuestion(field, amenity string) {
	s.LastField = field
	s.LastAmenity = amenity
}

// SetLastStation sets the station follow-up questions refer to.
func (s *Session) SetLastStation(name string) {
	s.LastStation = name
}

// StartBookingFlow replaces any active flow with a new one at the station step.
func (s *Session) StartBookingFlow() *BookingFlow {
	s.Flow = &BookingFlow{Step: StepStation}
	return s.Flow
}

// CancelBookingFlow discards the active flow, if any.
func (s *Session) CancelBookingFlow() {
	s.Flow = nil
}

// AdvanceBookingFlow moves the active flow to step and clears any pending
// suggestion. It is a no-op without an active flow.
func (s *Session) AdvanceBookingFlow(step FlowStep) {
	if s.Flow == nil {
		return
	}
	s.Flow.Step = step
	s.Flow.Suggestion = ""
}

// Learn records a handled turn: it appends to the history, counts the
// action, remembers the station as visited and notes amenity interest.
func (s *Session) Learn(query, action, stationName string) {
	s.LastAction = action
	s.History = append(s.History, QueryRecord{
		Query:   query,
		Action:  action,
		Station: stationName,
		At:      s.now(),
	})
	if s.Prefs == nil {
		s.Prefs = NewPreferences()
	}
	s.Prefs.Count(action)
	if stationName != "" {
		s.Prefs.AddVisited(stationName)
	}
	if isAmenityKey(action) {
		s.Prefs.AddAmenity(action)
	}
}

func isAmenityKey(k string) bool {
	for _, a := range models.AmenityKeys {
		if a == k {
			return true
		}
	}
	return false
}
