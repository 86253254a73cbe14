package selection

import (
	"vrijeme-widget/internal/geoloc"
	"vrijeme-widget/internal/models"
	"vrijeme-widget/internal/stations"

	"go.uber.org/zap"
)

// FarDistanceKm is the warning threshold for "nearest" resolution: a match
// farther than this is flagged to the view as a presentation hint, not an
// error.
const FarDistanceKm = 20

// Kind tags a resolution outcome.
type Kind int

const (
	// KindStation is a concrete resolved station.
	KindStation Kind = iota
	// KindPending means selection is "nearest" and geolocation has not
	// finished; the view should show a waiting state, not an error.
	KindPending
	// KindGeoError means geolocation ended denied or unavailable; the view
	// shows cause-specific guidance and manual selection stays possible.
	KindGeoError
	// KindNoData means the snapshot holds zero stations.
	KindNoData
)

func (k Kind) String() string {
	switch k {
	case KindStation:
		return "station"
	case KindPending:
		return "pending"
	case KindGeoError:
		return "geo_error"
	default:
		return "no_data"
	}
}

// Resolution is the resolver's answer for one render cycle.
type Resolution struct {
	Kind Kind

	// Station fields, set when Kind == KindStation.
	Station    models.Station
	DistanceKm *float64 // non-nil only when resolved via "nearest"
	// Far flags a nearest match beyond FarDistanceKm. When at least two
	// located stations exist, AvgTemperature carries the blended reading of
	// the two closest ones for the view's far-match hint.
	Far            bool
	AvgTemperature *float64

	// Geolocation status, set when Kind == KindGeoError.
	GeoStatus geoloc.Status

	// Fallback is true when a stale persisted station name was demoted to
	// "nearest" during this resolution.
	Fallback bool
}

// Resolver turns (snapshot, persisted selection, geolocation state) into a
// Resolution, self-healing a selection that names a vanished station.
type Resolver struct {
	prefs  PreferenceStore
	logger *zap.Logger
}

func NewResolver(prefs PreferenceStore, logger *zap.Logger) *Resolver {
	return &Resolver{prefs: prefs, logger: logger}
}

// Selection reads the persisted selection, defaulting to "nearest" on first
// run.
func (r *Resolver) Selection() string {
	if v, ok := r.prefs.Get(KeySelection); ok && v != "" {
		return v
	}
	return NearestSentinel
}

// Select persists a user pick: a station name, or NearestSentinel.
func (r *Resolver) Select(value string) {
	if value == "" {
		value = NearestSentinel
	}
	r.prefs.Set(KeySelection, value)
}

// Resolve runs the resolution order: exact name lookup first, then the
// "nearest" path via geolocation, with the fallback demotion in between.
func (r *Resolver) Resolve(idx *stations.Index, geoStatus geoloc.Status, coords *geoloc.Coords) Resolution {
	snap := idx.Snapshot()
	if snap.Empty() {
		return Resolution{Kind: KindNoData}
	}

	sel := r.Selection()
	fellBack := false

	if sel != NearestSentinel {
		if st, ok := snap.Get(sel); ok {
			return Resolution{Kind: KindStation, Station: st}
		}
		// The previously selected station vanished from the new snapshot:
		// demote to "nearest", persist the correction, and re-resolve.
		if r.logger != nil {
			r.logger.Info("Selected station missing from snapshot, falling back to nearest",
				zap.String("selection", sel))
		}
		r.prefs.Set(KeySelection, NearestSentinel)
		fellBack = true
	}

	res := r.resolveNearest(idx, geoStatus, coords)
	res.Fallback = fellBack
	return res
}

func (r *Resolver) resolveNearest(idx *stations.Index, geoStatus geoloc.Status, coords *geoloc.Coords) Resolution {
	// Cached coordinates win even when the latest re-request failed: the
	// gateway keeps them sticky once granted.
	if coords == nil {
		switch geoStatus {
		case geoloc.StatusDenied, geoloc.StatusUnavailable:
			return Resolution{Kind: KindGeoError, GeoStatus: geoStatus}
		default:
			return Resolution{Kind: KindPending}
		}
	}

	m := idx.Nearest(coords.Lat, coords.Lon)
	if m == nil {
		// Stations exist but none carry coordinates.
		return Resolution{Kind: KindNoData}
	}

	st, _ := idx.Snapshot().Get(m.Name)
	d := m.DistanceKm
	res := Resolution{Kind: KindStation, Station: st, DistanceKm: &d}
	if d > FarDistanceKm {
		res.Far = true
		if avg, ok := idx.NearestTwoAverage(coords.Lat, coords.Lon); ok {
			res.AvgTemperature = &avg
		}
	}
	return res
}
