// Package station is the charging station directory: storage-backed lookups,
// fuzzy name search, distance ranking, filtering and recommendations.
package station

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/evbot/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a station id does not exist.
var ErrNotFound = errors.New("station: not found")

// ErrInvalidReview is returned when a review is missing fields or out of range.
var ErrInvalidReview = errors.New("station: invalid review")

// Directory is the read/review surface over station records.
type Directory interface {
	List(ctx context.Context) ([]models.Station, error)
	Search(ctx context.Context, query string) ([]models.Station, error)
	Get(ctx context.Context, id uint) (*models.Station, error)
	SubmitReview(ctx context.Context, stationID uint, in ReviewInput) (*models.Review, error)
}

// ReviewInput is a user-submitted review.
type ReviewInput struct {
	Author string `json:"user"`
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

// Validate checks required fields and the 1..5 rating range.
func (in ReviewInput) Validate() error {
	var errs []string
	if strings.TrimSpace(in.Author) == "" {
		errs = append(errs, "user is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		errs = append(errs, "text is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		errs = append(errs, fmt.Sprintf("rating %d must be between 1 and 5", in.Rating))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidReview, strings.Join(errs, "; "))
	}
	return nil
}

// Store implements Directory on top of GORM.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("station: store: db is required")
	}
	return &Store{db: db}, nil
}

// List returns every station in insertion order.
func (s *Store) List(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	if err := s.db.WithContext(ctx).Order("id").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("station: list: %w", err)
	}
	return stations, nil
}

// Search returns stations matching query, best match first.
func (s *Store) Search(ctx context.Context, query string) ([]models.Station, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(all, query), nil
}

// Get returns a station with its reviews.
func (s *Store) Get(ctx context.Context, id uint) (*models.Station, error) {
	var st models.Station
	err := s.db.WithContext(ctx).
		Preload("Reviews", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("station: get %d: %w", id, err)
	}
	return &st, nil
}

// SubmitReview validates and stores a review for an existing station.
func (s *Store) SubmitReview(ctx context.Context, stationID uint, in ReviewInput) (*models.Review, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Station{}).Where("id = ?", stationID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("station: review lookup %d: %w", stationID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, stationID)
	}
	r := models.Review{
		StationID: stationID,
		Author:    strings.TrimSpace(in.Author),
		Text:      strings.TrimSpace(in.Text),
		Rating:    in.Rating,
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, fmt.Errorf("station: create review: %w", err)
	}
	return &r, nil
}
