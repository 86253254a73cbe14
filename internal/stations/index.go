package stations

import (
	"sort"
	"strings"

	"vrijeme-widget/internal/geo"
	"vrijeme-widget/internal/models"
)

// Index answers geospatial and display queries over one station snapshot.
// It is rebuilt whenever the snapshot is swapped; all queries scan only
// stations with finite coordinates.
type Index struct {
	snapshot *models.Snapshot

	// names of coordinate-bearing stations, sorted so that nearest ties
	// break deterministically (first encountered wins over a fixed order,
	// which is lexicographic by name).
	located []string
}

// NewIndex builds an index over the snapshot. A nil snapshot yields an
// index that answers every query with "nothing".
func NewIndex(snapshot *models.Snapshot) *Index {
	idx := &Index{snapshot: snapshot}
	if snapshot == nil {
		return idx
	}
	for name, st := range snapshot.Stations {
		if st.HasCoords() {
			idx.located = append(idx.located, name)
		}
	}
	sort.Strings(idx.located)
	return idx
}

// Snapshot returns the snapshot the index was built over.
func (idx *Index) Snapshot() *models.Snapshot { return idx.snapshot }

// Len is the number of stations usable for geospatial queries.
func (idx *Index) Len() int { return len(idx.located) }

// Match is a nearest-station query result.
type Match struct {
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distance_km"`
}

// Nearest finds the station closest to the given point by great-circle
// distance, or nil when no station has coordinates.
func (idx *Index) Nearest(lat, lon float64) *Match {
	var best *Match
	for _, name := range idx.located {
		st := idx.snapshot.Stations[name]
		d := geo.DistanceKm(lat, lon, st.Lat, st.Lon)
		if best == nil || d < best.DistanceKm {
			best = &Match{Name: name, DistanceKm: d}
		}
	}
	return best
}

// NearestWithinRadius is Nearest with a cutoff: it returns "" when the
// closest station is farther than radiusKm. Used for map-tap snapping,
// where the radius shrinks as the user zooms in.
func (idx *Index) NearestWithinRadius(lat, lon, radiusKm float64) string {
	m := idx.Nearest(lat, lon)
	if m == nil || m.DistanceKm > radiusKm {
		return ""
	}
	return m.Name
}

// NearestTwo returns the two closest stations in order. The second entry is
// nil when fewer than two stations carry coordinates.
func (idx *Index) NearestTwo(lat, lon float64) (*Match, *Match) {
	var first, second *Match
	for _, name := range idx.located {
		st := idx.snapshot.Stations[name]
		d := geo.DistanceKm(lat, lon, st.Lat, st.Lon)
		switch {
		case first == nil || d < first.DistanceKm:
			second = first
			first = &Match{Name: name, DistanceKm: d}
		case second == nil || d < second.DistanceKm:
			second = &Match{Name: name, DistanceKm: d}
		}
	}
	return first, second
}

// NearestTwoAverage averages the temperature of the two closest stations.
// It backs the far-match fallback: when the single nearest station is
// suspiciously far, the view can show a blended reading instead. Returns
// false when fewer than two stations are available.
func (idx *Index) NearestTwoAverage(lat, lon float64) (float64, bool) {
	first, second := idx.NearestTwo(lat, lon)
	if first == nil || second == nil {
		return 0, false
	}
	a := idx.snapshot.Stations[first.Name]
	b := idx.snapshot.Stations[second.Name]
	return (a.Temperature + b.Temperature) / 2, true
}

// DisplayName is a station name decomposed for presentation.
type DisplayName struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"` // empty when the name did not split
}

// ParseDisplayName splits a feed name into city and sub-location on the
// first occurrence of the feed's separator. With a whitelist, the split only
// happens when the prefix is a known city; with a nil whitelist the name
// always splits (for the feed whose names are uniformly "City, Sublocation").
func ParseDisplayName(name, separator string, cityWhitelist []string) DisplayName {
	if separator == "" {
		return DisplayName{Title: name}
	}
	i := strings.Index(name, separator)
	if i < 0 {
		return DisplayName{Title: name}
	}

	prefix := strings.TrimSpace(name[:i])
	suffix := strings.TrimSpace(name[i+len(separator):])
	if prefix == "" || suffix == "" {
		return DisplayName{Title: name}
	}

	if cityWhitelist != nil {
		allowed := false
		for _, city := range cityWhitelist {
			if prefix == city {
				allowed = true
				break
			}
		}
		if !allowed {
			return DisplayName{Title: name}
		}
	}

	return DisplayName{Title: prefix, Subtitle: suffix}
}
