package feed

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"vrijeme-widget/internal/models"
)

// Parser turns one raw feed payload into a station snapshot. Implementations
// are selected by the data-source configuration; all of them normalize to the
// same models.Station shape. Zero stations after filtering is a valid result,
// not an error.
type Parser interface {
	// Source is the stable identifier of the feed variant.
	Source() string
	// Parse decodes the payload fetched at fetchedAt.
	Parse(payload []byte, fetchedAt time.Time) (*models.Snapshot, error)
}

// ParseError marks a malformed or unexpectedly shaped payload. It is distinct
// from transport failures so the caller can degrade to the last good snapshot
// in either case but log them apart.
type ParseError struct {
	Source string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s feed: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s feed: %s", e.Source, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// parseField applies the shared numeric extraction rule: surrounding
// whitespace stripped, a literal "-" or empty text means absent, anything
// else must parse as a float.
func parseField(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// optField is parseField for optional readings, returning nil when absent.
func optField(raw string) *float64 {
	if v, ok := parseField(raw); ok {
		return &v
	}
	return nil
}

// coordField parses a coordinate, mapping absence to NaN so downstream code
// has a single "no coordinates" representation.
func coordField(raw string) float64 {
	if v, ok := parseField(raw); ok {
		return v
	}
	return math.NaN()
}

// zagreb is the feed's local timezone. Both upstream feeds publish wall-clock
// times without an offset.
var zagreb = loadZagreb()

func loadZagreb() *time.Location {
	loc, err := time.LoadLocation("Europe/Zagreb")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}
