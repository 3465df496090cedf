package db

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/zulandar/evbot/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed seed/stations.yaml
var defaultSeed []byte

// seedFile is the on-disk layout of a station seed file.
type seedFile struct {
	Stations []models.Station `yaml:"stations"`
}

// ParseSeed decodes a YAML station seed and rejects unnamed or duplicate entries.
func ParseSeed(data []byte) ([]models.Station, error) {
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("db: parse seed: %w", err)
	}
	seen := make(map[string]bool, len(sf.Stations))
	for i, s := range sf.Stations {
		if s.Name == "" {
			return nil, fmt.Errorf("db: parse seed: stations[%d].name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("db: parse seed: duplicate station %q", s.Name)
		}
		seen[s.Name] = true
		if sf.Stations[i].Status == "" {
			sf.Stations[i].Status = models.StatusAvailable
		}
		if sf.Stations[i].AccessType == "" {
			sf.Stations[i].AccessType = models.AccessPublic
		}
	}
	return sf.Stations, nil
}

// LoadSeed reads stations from path, or the built-in seed when path is empty.
func LoadSeed(path string) ([]models.Station, error) {
	if path == "" {
		return ParseSeed(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("db: read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}
