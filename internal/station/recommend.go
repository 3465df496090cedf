package station

import (
	"sort"
	"strings"

	"github.com/zulandar/evbot/internal/models"
)

// Criteria narrows a station list. Empty fields are ignored; set fields
// are combined with AND.
type Criteria struct {
	AccessType string `json:"accessType,omitempty"` // exact match
	Speed      string `json:"speed,omitempty"`      // substring of ChargingSpeed
	Status     string `json:"status,omitempty"`     // exact match
	Amenity    string `json:"amenity,omitempty"`    // amenity key that must be present
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Describe renders the criteria for display, e.g. "Public, Fast, with wifi".
func (c Criteria) Describe() string {
	var parts []string
	if c.Status != "" {
		parts = append(parts, c.Status)
	}
	if c.AccessType != "" {
		parts = append(parts, c.AccessType)
	}
	if c.Speed != "" {
		parts = append(parts, c.Speed)
	}
	if c.Amenity != "" {
		parts = append(parts, "with "+AmenityLabel(c.Amenity))
	}
	return strings.Join(parts, ", ")
}

// Match reports whether s satisfies every set criterion.
func (c Criteria) Match(s models.Station) bool {
	if c.AccessType != "" && s.AccessType != c.AccessType {
		return false
	}
	if c.Speed != "" && !strings.Contains(s.ChargingSpeed, c.Speed) {
		return false
	}
	if c.Status != "" && s.Status != c.Status {
		return false
	}
	if c.Amenity != "" && !s.Amenities.Has(c.Amenity) {
		return false
	}
	return true
}

// Filter returns the stations matching c, preserving order.
func Filter(stations []models.Station, c Criteria) []models.Station {
	var out []models.Station
	for _, s := range stations {
		if c.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Cheapest returns the stations with known per-unit pricing, lowest first.
func Cheapest(stations []models.Station) []models.Station {
	var priced []models.Station
	for _, s := range stations {
		if s.HasPricing() {
			priced = append(priced, s)
		}
	}
	sort.SliceStable(priced, func(i, j int) bool {
		return priced[i].Pricing.PerUnit < priced[j].Pricing.PerUnit
	})
	return priced
}

// Score is the heuristic used for "best station" recommendations.
func Score(s models.Station) int {
	score := 0
	if s.Status == models.StatusAvailable {
		score += 10
	}
	if s.AccessType == models.AccessPublic {
		score += 5
	}
	switch {
	case strings.Contains(s.ChargingSpeed, "Ultra Fast"):
		score += 3
	case strings.Contains(s.ChargingSpeed, "Fast"):
		score += 2
	}
	return score + s.Amenities.Count()
}

// Scored is a station with its recommendation score.
type Scored struct {
	Station models.Station
	Score   int
}

// BestRanked returns all stations ordered by Score, highest first.
// Equal scores keep directory order.
func BestRanked(stations []models.Station) []Scored {
	out := make([]Scored, len(stations))
	for i, s := range stations {
		out[i] = Scored{Station: s, Score: Score(s)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Named returns the stations whose names appear in names, in names order.
func Named(stations []models.Station, names []string) []models.Station {
	byName := make(map[string]models.Station, len(stations))
	for _, s := range stations {
		byName[strings.ToLower(s.Name)] = s
	}
	var out []models.Station
	for _, n := range names {
		if s, ok := byName[strings.ToLower(n)]; ok {
			out = append(out, s)
		}
	}
	return out
}
