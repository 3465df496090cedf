// Package chat is the conversational core of evbot: it classifies free-text
// turns into intents, dispatches them against the station directory, drives
// the guided booking flow and hands completed bookings to a booking form.
package chat

import (
	"time"

	"github.com/zulandar/evbot/internal/station"
)

// Intent is the classified meaning of one user turn.
type Intent interface {
	// Kind names the intent for analytics and logging.
	Kind() string
}

// Station fields a StationQuery can ask about.
const (
	FieldGeneric    = ""
	FieldHours      = "hours"
	FieldPrice      = "price"
	FieldSpeed      = "speed"
	FieldAmenities  = "amenities"
	FieldPayment    = "payment"
	FieldAccess     = "access"
	FieldContact    = "contact"
	FieldConnectors = "connectors"
)

// Recommendation criteria.
const (
	RecommendCheapest = "cheapest"
	RecommendBest     = "best"
)

// Action names.
const (
	ActionListStations   = "list_stations"
	ActionShowSlots      = "show_slots"
	ActionSelectSlot     = "select_slot"
	ActionConfirmBooking = "confirm_booking"
)

// Personalization operations.
const (
	OpShowFavorites  = "show_favorites"
	OpAddFavorite    = "add_favorite"
	OpRemoveFavorite = "remove_favorite"
	OpSetVehicle     = "set_vehicle"
)

// SynonymIntent is a generic intent found through the synonym table.
type SynonymIntent struct {
	Name string
}

// StationQuery asks for one field of a named station.
type StationQuery struct {
	Name  string
	Field string
}

// BookingPayload is a fully or partially specified booking.
type BookingPayload struct {
	Station         string    `json:"station"`
	Date            time.Time `json:"date"`
	Time            string    `json:"time,omitempty"` // HH:MM
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	Vehicle         string    `json:"vehicle,omitempty"`
}

// BookingCommand is a one-shot booking typed in a single turn.
type BookingCommand struct {
	BookingPayload
}

// StartBookingFlow enters the guided booking dialogue, optionally with the
// station already known.
type StartBookingFlow struct {
	Station string
	Day     string // "today", "tomorrow" or DD/MM/YYYY, answered once a station is chosen
}

// CompareStations compares two stations side by side.
type CompareStations struct {
	Names [2]string
}

// FilterStations lists the stations matching every criterion.
type FilterStations struct {
	Criteria station.Criteria
}

// Recommend ranks stations by a criterion. A non-empty Among restricts the
// candidates to those station names.
type Recommend struct {
	Criterion string
	Among     []string
}

// ConnectorQuery asks which connectors a station offers, optionally checked
// against a vehicle kind.
type ConnectorQuery struct {
	Station string
	Vehicle string
}

// ConnectorFollowUp asks about vehicle support without naming a station.
// The next turn is read as the station name.
type ConnectorFollowUp struct {
	Vehicle string
}

// CheckAmenity asks whether a station has one amenity.
type CheckAmenity struct {
	Station string
	Amenity string
}

// SmartIntent is a high-confidence free-form request.
type SmartIntent struct {
	Action     string
	Confidence float64
	Params     map[string]string
}

// Action is an imperative command against the booking form or the list.
type Action struct {
	Name string
	Time string // HH:MM, select_slot only
}

// Personalize reads or changes the user's preferences.
type Personalize struct {
	Op      string
	Station string
	Vehicle string
}

// Fallback is returned when nothing else matched.
type Fallback struct {
	Message string
}

func (i SynonymIntent) Kind() string { return i.Name }
func (StationQuery) Kind() string { return "station_query" }
func (BookingCommand) Kind() string { return "booking_command" }
func (StartBookingFlow) Kind() string { return "start_booking" }
func (CompareStations) Kind() string { return "compare_stations" }
func (FilterStations) Kind() string { return "filter_stations" }
func (Recommend) Kind() string { return "recommend" }
func (ConnectorQuery) Kind() string { return "connector_query" }
func (ConnectorFollowUp) Kind() string { return "connector_followup" }
func (CheckAmenity) Kind() string { return "check_amenity" }
func (i SmartIntent) Kind() string { return "smart:" + i.Action }
func (a Action) Kind() string { return a.Name }
func (p Personalize) Kind() string { return p.Op }
func (Fallback) Kind() string { return "fallback" }
