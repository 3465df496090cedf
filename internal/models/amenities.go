package models

// Amenity keys, in display order.
const (
	AmenityRestroom             = "restroom"
	AmenityCafe                 = "cafe"
	AmenityWaitingArea          = "waitingArea"
	AmenityWifi                 = "wifi"
	AmenityParking              = "parking"
	AmenityCoveredParking       = "coveredParking"
	AmenitySecurity             = "security"
	AmenityWheelchairAccessible = "wheelchairAccessible"
)

// AmenityKeys lists every amenity key in display order.
var AmenityKeys = []string{
	AmenityRestroom,
	AmenityCafe,
	AmenityWaitingArea,
	AmenityWifi,
	AmenityParking,
	AmenityCoveredParking,
	AmenitySecurity,
	AmenityWheelchairAccessible,
}

// Amenities are the on-site facilities of a station.
type Amenities struct {
	Restroom             bool `json:"restroom" yaml:"restroom"`
	Cafe                 bool `json:"cafe" yaml:"cafe"`
	WaitingArea          bool `json:"waitingArea" yaml:"waiting_area"`
	Wifi                 bool `json:"wifi" yaml:"wifi"`
	Parking              bool `json:"parking" yaml:"parking"`
	CoveredParking       bool `json:"coveredParking" yaml:"covered_parking"`
	Security             bool `json:"security" yaml:"security"`
	WheelchairAccessible bool `json:"wheelchairAccessible" yaml:"wheelchair_accessible"`
}

// Has reports whether the amenity with the given key is present.
// Unknown keys report false.
func (a Amenities) Has(key string) bool {
	switch key {
	case AmenityRestroom:
		return a.Restroom
	case AmenityCafe:
		return a.Cafe
	case AmenityWaitingArea:
		return a.WaitingArea
	case AmenityWifi:
		return a.Wifi
	case AmenityParking:
		return a.Parking
	case AmenityCoveredParking:
		return a.CoveredParking
	case AmenitySecurity:
		return a.Security
	case AmenityWheelchairAccessible:
		return a.WheelchairAccessible
	}
	return false
}

// Present returns the keys of all amenities that are available.
func (a Amenities) Present() []string {
	var keys []string
	for _, k := range AmenityKeys {
		if a.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Count returns the number of amenities that are available.
func (a Amenities) Count() int {
	return len(a.Present())
}
