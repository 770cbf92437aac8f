// Package poi loads the point-of-interest dataset and answers spatial and
// name queries against it. The dataset is read once and is immutable
// afterwards; reloading means building a new Index.
package poi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/eytandecker/skytour/internal/geo"
)

// ErrInvalidDataset is returned when the POI file cannot be parsed or
// contains an inconsistent entry.
var ErrInvalidDataset = errors.New("poi: invalid dataset")

// POI is a sightseeing point of interest.
type POI struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Latitude    float64  `json:"lat"`
	Longitude   float64  `json:"lon"`
	MinAltitude float64  `json:"min_altitude_ft"` // lowest AGL from which it is worth pointing out
	MaxDistance float64  `json:"max_distance_nm"` // beyond this it is not visible from the air
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Region      string   `json:"region,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Point returns the POI position.
func (p POI) Point() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// Load reads and validates a JSON array of POIs from path.
func Load(path string) ([]POI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("poi: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON array of POIs.
func Parse(data []byte) ([]POI, error) {
	var pois []POI
	if err := json.Unmarshal(data, &pois); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if err := Validate(pois); err != nil {
		return nil, err
	}
	return pois, nil
}

// Validate checks ids are present and unique, coordinates are in range and
// every POI has a positive useful distance.
func Validate(pois []POI) error {
	var errs []error
	seen := make(map[string]struct{}, len(pois))
	for i, p := range pois {
		switch {
		case p.ID == "":
			errs = append(errs, fmt.Errorf("entry %d: missing id", i))
			continue
		case p.Name == "":
			errs = append(errs, fmt.Errorf("%s: missing name", p.ID))
		}
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate id", p.ID))
		}
		seen[p.ID] = struct{}{}
		if !p.Point().Valid() {
			errs = append(errs, fmt.Errorf("%s: coordinates %.5f,%.5f out of range", p.ID, p.Latitude, p.Longitude))
		}
		if !(p.MaxDistance > 0) {
			errs = append(errs, fmt.Errorf("%s: max_distance_nm must be positive", p.ID))
		}
		if p.MinAltitude < 0 {
			errs = append(errs, fmt.Errorf("%s: min_altitude_ft must not be negative", p.ID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDataset, errors.Join(errs...))
	}
	return nil
}
