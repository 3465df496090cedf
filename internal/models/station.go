package models

import "time"

// Station status values.
const (
	StatusAvailable = "Available"
	StatusBusy      = "Busy"
	StatusRepair    = "Repair"
)

// Access type values.
const (
	AccessPublic     = "Public"
	AccessPrivate    = "Private"
	AccessSemiPublic = "Semi-Public"
)

// Station is the normalized charging station record. Nested value objects
// are stored as embedded columns or JSON; reviews live in their own table.
type Station struct {
	ID                  uint        `gorm:"primaryKey;autoIncrement" json:"id" yaml:"-"`
	Name                string      `gorm:"size:128;not null;uniqueIndex" json:"name" yaml:"name"`
	Status              string      `gorm:"size:16;not null;default:Available;index" json:"status" yaml:"status"`
	Slots               uint        `gorm:"not null;default:0" json:"slots" yaml:"slots"`
	AccessType          string      `gorm:"size:16;not null;default:Public" json:"accessType" yaml:"access_type"`
	Address             Address     `gorm:"embedded;embeddedPrefix:address_" json:"address" yaml:"address"`
	Latitude            float64     `json:"latitude" yaml:"latitude"`
	Longitude           float64     `json:"longitude" yaml:"longitude"`
	Contact             Contact     `gorm:"embedded;embeddedPrefix:contact_" json:"contact" yaml:"contact"`
	Connectors          []Connector `gorm:"type:text;serializer:json" json:"connectorTypes" yaml:"connectors"`
	ChargingSpeed       string      `gorm:"size:32" json:"chargingSpeed" yaml:"charging_speed"`
	Pricing             *Pricing    `gorm:"type:text;serializer:json" json:"pricing,omitempty" yaml:"pricing"`
	Amenities           Amenities   `gorm:"embedded;embeddedPrefix:amenity_" json:"amenities" yaml:"amenities"`
	PaymentMethods      []string    `gorm:"type:text;serializer:json" json:"paymentMethods" yaml:"payment_methods"`
	OpeningHours        string      `gorm:"size:64" json:"openingHours" yaml:"opening_hours"`
	AverageWaitTime     string      `gorm:"size:32" json:"averageWaitTime,omitempty" yaml:"average_wait_time"`
	SpecialInstructions string      `gorm:"type:text" json:"specialInstructions,omitempty" yaml:"special_instructions"`
	CreatedAt           time.Time   `json:"-" yaml:"-"`
	UpdatedAt           time.Time   `json:"lastUpdated" yaml:"-"`

	Reviews []Review `gorm:"foreignKey:StationID;constraint:OnDelete:CASCADE" json:"reviews,omitempty" yaml:"reviews"`
}

// Address locates a station.
type Address struct {
	Street  string `gorm:"size:128" json:"street,omitempty" yaml:"street"`
	Area    string `gorm:"size:128" json:"area,omitempty" yaml:"area"`
	City    string `gorm:"size:64" json:"city,omitempty" yaml:"city"`
	State   string `gorm:"size:64" json:"state,omitempty" yaml:"state"`
	Pincode string `gorm:"size:16" json:"pincode,omitempty" yaml:"pincode"`
}

// Contact holds operator contact details.
type Contact struct {
	Phone    string `gorm:"size:32" json:"phone,omitempty" yaml:"phone"`
	Email    string `gorm:"size:128" json:"email,omitempty" yaml:"email"`
	Operator string `gorm:"size:64" json:"operator,omitempty" yaml:"operator"`
}

// Connector describes one connector type offered by a station.
type Connector struct {
	Type        string `json:"type" yaml:"type"`
	Count       int    `json:"count" yaml:"count"`
	PowerOutput string `json:"powerOutput,omitempty" yaml:"power_output"`
}

// Pricing is optional; a nil Pricing or zero PerUnit means unknown.
type Pricing struct {
	PerUnit     float64 `json:"perUnit" yaml:"per_unit"`
	PeakRate    float64 `json:"peakRate,omitempty" yaml:"peak_rate"`
	OffPeakRate float64 `json:"offPeakRate,omitempty" yaml:"off_peak_rate"`
	BookingFee  float64 `json:"bookingFee,omitempty" yaml:"booking_fee"`
	IdleFee     float64 `json:"idleFee,omitempty" yaml:"idle_fee"`
	Currency    string  `json:"currency,omitempty" yaml:"currency"`
}

// Review is a user review attached to a station.
type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id" yaml:"-"`
	StationID uint      `gorm:"not null;index" json:"stationId" yaml:"-"`
	Author    string    `gorm:"size:64;not null" json:"user" yaml:"author"`
	Text      string    `gorm:"type:text;not null" json:"text" yaml:"text"`
	Rating    int       `gorm:"not null" json:"rating" yaml:"rating"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
}

// HasPricing reports whether a per-unit rate is known.
func (s *Station) HasPricing() bool {
	return s.Pricing != nil && s.Pricing.PerUnit > 0
}
