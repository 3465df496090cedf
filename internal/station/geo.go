package station

import (
	"fmt"
	"math"
	"sort"

	"github.com/zulandar/evbot/internal/models"
)

const earthRadiusKm = 6371.0

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Distance is a station paired with its distance from a reference point.
type Distance struct {
	Station models.Station
	Km      float64
}

// Label renders the distance as metres under 1 km, otherwise one-decimal km.
func (d Distance) Label() string {
	if d.Km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(d.Km*1000)))
	}
	return fmt.Sprintf("%.1fkm", d.Km)
}

// HaversineKm returns the great-circle distance in kilometres.
func HaversineKm(a, b Coordinates) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// Nearest returns up to limit stations sorted by distance from origin.
// A limit of zero or less returns all of them.
func Nearest(stations []models.Station, origin Coordinates, limit int) []Distance {
	out := make([]Distance, 0, len(stations))
	for _, s := range stations {
		out = append(out, Distance{
			Station: s,
			Km:      HaversineKm(origin, Coordinates{Lat: s.Latitude, Lng: s.Longitude}),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Km < out[j].Km })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
