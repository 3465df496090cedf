package station

import (
	"strings"

	"github.com/zulandar/evbot/internal/models"
)

// amenityAliases maps user vocabulary to amenity keys.
var amenityAliases = map[string]string{
	"parking":           models.AmenityParking,
	"park":              models.AmenityParking,
	"covered parking":   models.AmenityCoveredParking,
	"wifi":              models.AmenityWifi,
	"wi-fi":             models.AmenityWifi,
	"internet":          models.AmenityWifi,
	"cafe":              models.AmenityCafe,
	"cafeteria":         models.AmenityCafe,
	"coffee":            models.AmenityCafe,
	"restroom":          models.AmenityRestroom,
	"toilet":            models.AmenityRestroom,
	"washroom":          models.AmenityRestroom,
	"bathroom":          models.AmenityRestroom,
	"waiting area":      models.AmenityWaitingArea,
	"security":          models.AmenitySecurity,
	"wheelchair":        models.AmenityWheelchairAccessible,
	"wheelchair access": models.AmenityWheelchairAccessible,
}

var amenityIcons = map[string]string{
	models.AmenityRestroom:             "🚻",
	models.AmenityCafe:                 "☕",
	models.AmenityWaitingArea:          "🪑",
	models.AmenityWifi:                 "📶",
	models.AmenityParking:              "🅿️",
	models.AmenityCoveredParking:       "🏠",
	models.AmenitySecurity:             "🔒",
	models.AmenityWheelchairAccessible: "♿",
}

var amenityLabels = map[string]string{
	models.AmenityRestroom:             "Restroom",
	models.AmenityCafe:                 "Cafe",
	models.AmenityWaitingArea:          "Waiting area",
	models.AmenityWifi:                 "WiFi",
	models.AmenityParking:              "Parking",
	models.AmenityCoveredParking:       "Covered parking",
	models.AmenitySecurity:             "Security",
	models.AmenityWheelchairAccessible: "Wheelchair accessible",
}

// AmenityKey resolves a user term to an amenity key. Unknown terms are
// returned lowercased, so they never match a station.
func AmenityKey(term string) string {
	t := strings.ToLower(strings.TrimSpace(term))
	if k, ok := amenityAliases[t]; ok {
		return k
	}
	for _, k := range models.AmenityKeys {
		if strings.EqualFold(k, t) {
			return k
		}
	}
	return t
}

// AmenityIcon returns the display icon for an amenity key.
func AmenityIcon(key string) string {
	if icon, ok := amenityIcons[key]; ok {
		return icon
	}
	return "✓"
}

// AmenityLabel returns the human label for an amenity key.
func AmenityLabel(key string) string {
	if l, ok := amenityLabels[key]; ok {
		return l
	}
	return key
}

// compatibility lists the connector types usable by each vehicle kind.
var compatibility = map[string][]string{
	"car":     {"CCS", "CHAdeMO", "Type 2", "Bharat DC"},
	"bike":    {"Type 2", "Type 1", "Bharat AC"},
	"scooter": {"Type 1", "Type 2", "Bharat AC"},
}

// Vehicles are the supported vehicle kinds.
var Vehicles = []string{"car", "bike", "scooter"}

// IsVehicle reports whether v is a supported vehicle kind.
func IsVehicle(v string) bool {
	_, ok := compatibility[strings.ToLower(v)]
	return ok
}

// CompatibleConnectors returns the station connectors usable by vehicle.
// The second result is false when the vehicle kind is unknown.
func CompatibleConnectors(s models.Station, vehicle string) ([]models.Connector, bool) {
	types, ok := compatibility[strings.ToLower(vehicle)]
	if !ok {
		return nil, false
	}
	var out []models.Connector
	for _, c := range s.Connectors {
		for _, t := range types {
			if strings.EqualFold(c.Type, t) {
				out = append(out, c)
				break
			}
		}
	}
	return out, true
}
