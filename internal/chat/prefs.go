package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zulandar/evbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxVisited caps the visited-stations history.
const maxVisited = 20

// Preferences are learned user settings kept across sessions.
type Preferences struct {
	Favorites          []string       `json:"favorites"`
	Vehicle            string         `json:"vehicle,omitempty"`
	PreferredAmenities []string       `json:"preferredAmenities"`
	VisitedStations    []string       `json:"visitedStations"`
	QueryCounts        map[string]int `json:"queryCounts"`
}

// NewPreferences returns an empty profile.
func NewPreferences() *Preferences {
	return &Preferences{QueryCounts: map[string]int{}}
}

// AddFavorite adds name to the favorites. It reports false if a station
// with the same name (ignoring case) is already there.
func (p *Preferences) AddFavorite(name string) bool {
	if indexFold(p.Favorites, name) >= 0 {
		return false
	}
	p.Favorites = append(p.Favorites, name)
	return true
}

// RemoveFavorite removes name from the favorites and returns the stored
// spelling, or false if it was not a favorite.
func (p *Preferences) RemoveFavorite(name string) (string, bool) {
	i := indexFold(p.Favorites, name)
	if i < 0 {
		return "", false
	}
	stored := p.Favorites[i]
	p.Favorites = slices.Delete(p.Favorites, i, i+1)
	return stored, true
}

// AddVisited moves name to the end of the visited list, keeping the most
// recent maxVisited entries.
func (p *Preferences) AddVisited(name string) {
	if i := indexFold(p.VisitedStations, name); i >= 0 {
		p.VisitedStations = slices.Delete(p.VisitedStations, i, i+1)
	}
	p.VisitedStations = append(p.VisitedStations, name)
	if over := len(p.VisitedStations) - maxVisited; over > 0 {
		p.VisitedStations = p.VisitedStations[over:]
	}
}

// AddAmenity records interest in an amenity key.
func (p *Preferences) AddAmenity(key string) {
	if !slices.Contains(p.PreferredAmenities, key) {
		p.PreferredAmenities = append(p.PreferredAmenities, key)
	}
}

// Count increments the counter for a query type.
func (p *Preferences) Count(action string) {
	if p.QueryCounts == nil {
		p.QueryCounts = map[string]int{}
	}
	p.QueryCounts[action]++
}

// Clone returns a deep copy.
func (p *Preferences) Clone() *Preferences {
	c := &Preferences{
		Favorites:          slices.Clone(p.Favorites),
		Vehicle:            p.Vehicle,
		PreferredAmenities: slices.Clone(p.PreferredAmenities),
		VisitedStations:    slices.Clone(p.VisitedStations),
		QueryCounts:        make(map[string]int, len(p.QueryCounts)),
	}
	for k, v := range p.QueryCounts {
		c.QueryCounts[k] = v
	}
	return c
}

func indexFold(list []string, name string) int {
	for i, v := range list {
		if strings.EqualFold(v, name) {
			return i
		}
	}
	return -1
}

// PreferenceStore loads and saves preferences by user key.
type PreferenceStore interface {
	Load(ctx context.Context, userKey string) (*Preferences, error)
	Save(ctx context.Context, userKey string, p *Preferences) error
}

// ProfileStore is a PreferenceStore backed by the user_profiles table.
type ProfileStore struct {
	db *gorm.DB
}

// NewProfileStore creates a ProfileStore.
func NewProfileStore(db *gorm.DB) (*ProfileStore, error) {
	if db == nil {
		return nil, fmt.Errorf("chat: profile store: db is required")
	}
	return &ProfileStore{db: db}, nil
}

// Load returns the stored profile, or an empty one for an unknown user.
func (s *ProfileStore) Load(ctx context.Context, userKey string) (*Preferences, error) {
	var row models.UserProfile
	err := s.db.WithContext(ctx).Where("user_key = ?", userKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewPreferences(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat: load profile %q: %w", userKey, err)
	}
	p := &Preferences{
		Favorites:          row.Favorites,
		Vehicle:            row.Vehicle,
		PreferredAmenities: row.PreferredAmenities,
		VisitedStations:    row.VisitedStations,
		QueryCounts:        row.QueryCounts,
	}
	if p.QueryCounts == nil {
		p.QueryCounts = map[string]int{}
	}
	return p, nil
}

// Save upserts the profile.
func (s *ProfileStore) Save(ctx context.Context, userKey string, p *Preferences) error {
	row := models.UserProfile{
		UserKey:            userKey,
		Favorites:          p.Favorites,
		Vehicle:            p.Vehicle,
		PreferredAmenities: p.PreferredAmenities,
		VisitedStations:    p.VisitedStations,
		QueryCounts:        p.QueryCounts,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_key"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("chat: save profile %q: %w", userKey, err)
	}
	return nil
}
