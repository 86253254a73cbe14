package models

import (
	"math"
	"time"
)

// Station is a single observation point from one feed snapshot. Numeric
// readings that the feed did not supply are nil; coordinates that the feed
// did not supply are NaN and must be checked with HasCoords before any
// geospatial use.
type Station struct {
	Name          string     `json:"name"`
	Lat           float64    `json:"lat"`
	Lon           float64    `json:"lon"`
	Temperature   float64    `json:"temperature"`
	Humidity      *float64   `json:"humidity"`
	Pressure      *float64   `json:"pressure"`
	PressureTrend *float64   `json:"pressure_trend"`
	WindSpeed     *float64   `json:"wind_speed"`
	WindDirection string     `json:"wind_direction"` // compass code, "C" for calm, "" unknown
	Condition     string     `json:"condition"`
	MeasuredAt    *time.Time `json:"measured_at"`
}

// HasCoords reports whether the station carries finite coordinates.
// Stations without them can still be selected by name but are excluded
// from nearest-neighbor search and map hit-testing.
func (s Station) HasCoords() bool {
	return !math.IsNaN(s.Lat) && !math.IsInf(s.Lat, 0) &&
		!math.IsNaN(s.Lon) && !math.IsInf(s.Lon, 0)
}

// Snapshot is the complete set of stations parsed from one fetch cycle.
// It is replaced atomically on every successful fetch; on failure the
// previous snapshot stays visible (stale-but-available policy).
type Snapshot struct {
	Stations  map[string]Station `json:"stations"`
	Source    string             `json:"source"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Empty reports whether zero stations survived parsing and filtering.
// This is a valid (if degenerate) result, distinct from a parse failure.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Stations) == 0
}

// Get looks a station up by its feed name.
func (s *Snapshot) Get(name string) (Station, bool) {
	if s == nil {
		return Station{}, false
	}
	st, ok := s.Stations[name]
	return st, ok
}
