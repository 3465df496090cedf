package db

import (
	"fmt"

	"github.com/zulandar/evbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Station{},
		&models.Review{},
		&models.Booking{},
		&models.PendingBooking{},
		&models.ChatTurn{},
		&models.UserProfile{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every table managed by AutoMigrate.
func DropAll(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// stationColumns are the columns refreshed when a seeded station already exists.
var stationColumns = []string{
	"status", "slots", "access_type",
	"address_street", "address_area", "address_city", "address_state", "address_pincode",
	"latitude", "longitude",
	"contact_phone", "contact_email", "contact_operator",
	"connectors", "charging_speed", "pricing",
	"amenity_restroom", "amenity_cafe", "amenity_waiting_area", "amenity_wifi",
	"amenity_parking", "amenity_covered_parking", "amenity_security", "amenity_wheelchair_accessible",
	"payment_methods", "opening_hours", "average_wait_time", "special_instructions",
	"updated_at",
}

// SeedStations upserts stations by name. Reviews are inserted only for
// stations that had none, so re-seeding never duplicates them.
func SeedStations(db *gorm.DB, stations []models.Station) (int, error) {
	for _, s := range stations {
		reviews := s.Reviews
		s.Reviews = nil
		s.ID = 0

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns(stationColumns),
		}).Create(&s)
		if result.Error != nil {
			return 0, fmt.Errorf("db: seed station %q: %w", s.Name, result.Error)
		}

		var stored models.Station
		if err := db.Where("name = ?", s.Name).First(&stored).Error; err != nil {
			return 0, fmt.Errorf("db: reload station %q: %w", s.Name, err)
		}
		if len(reviews) == 0 {
			continue
		}
		var count int64
		if err := db.Model(&models.Review{}).Where("station_id = ?", stored.ID).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("db: count reviews for %q: %w", s.Name, err)
		}
		if count > 0 {
			continue
		}
		for i := range reviews {
			reviews[i].ID = 0
			reviews[i].StationID = stored.ID
		}
		if err := db.Create(&reviews).Error; err != nil {
			return 0, fmt.Errorf("db: seed reviews for %q: %w", s.Name, err)
		}
	}
	return len(stations), nil
}
