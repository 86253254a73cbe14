package feed

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"vrijeme-widget/internal/models"

	"go.uber.org/zap"
)

// Column layout of one row in the embedded array literal. The upstream page
// ships the station table as a script-level array; rows are positional, not
// keyed.
const (
	colType = iota
	colName
	colLat
	colLon
	colElevation
	colTime
	colTemperature
	colPressure
	colPressureTrend
	colHumidity
	colWindDirection
	colWindSpeed
	colDewpoint
)

// pljusakMarker precedes the array literal inside the fetched document.
const pljusakMarker = "var postaje ="

// pljusakStaleness is the measurement-age ceiling: rows older than this are
// dropped at parse time. The feed has minute-precision timestamps, so unlike
// the national feed it can carry long-dead stations.
const pljusakStaleness = 12 * time.Hour

// PljusakParser decodes the amateur network's feed: an HTML page embedding a
// script-level array literal, one row per station, columns by fixed index.
// This feed has no condition text; one is synthesized from the readings.
type PljusakParser struct {
	logger *zap.Logger
	now    func() time.Time // injectable clock for the staleness cutoff
}

func NewPljusakParser(logger *zap.Logger) *PljusakParser {
	return &PljusakParser{logger: logger, now: time.Now}
}

func (p *PljusakParser) Source() string { return "pljusak" }

func (p *PljusakParser) Parse(payload []byte, fetchedAt time.Time) (*models.Snapshot, error) {
	literal, err := extractArrayLiteral(payload)
	if err != nil {
		return nil, &ParseError{Source: p.Source(), Reason: "embedded array marker not found", Err: err}
	}

	var rows [][]any
	if err := json.Unmarshal(literal, &rows); err != nil {
		return nil, &ParseError{Source: p.Source(), Reason: "malformed array literal", Err: err}
	}

	cutoff := p.now().Add(-pljusakStaleness)
	stations := make(map[string]models.Station, len(rows))
	skipped := 0
	for _, row := range rows {
		station, ok := p.parseRow(row, cutoff)
		if !ok {
			skipped++
			continue
		}
		stations[station.Name] = station
	}

	if p.logger != nil {
		p.logger.Debug("Parsed pljusak feed",
			zap.Int("stations", len(stations)),
			zap.Int("skipped", skipped))
	}

	return &models.Snapshot{
		Stations:  stations,
		Source:    p.Source(),
		FetchedAt: fetchedAt,
	}, nil
}

func (p *PljusakParser) parseRow(row []any, cutoff time.Time) (models.Station, bool) {
	name := strings.TrimSpace(cellString(row, colName))
	if name == "" {
		return models.Station{}, false
	}

	temp, ok := cellFloat(row, colTemperature)
	if !ok {
		return models.Station{}, false
	}

	lat, latOK := cellFloat(row, colLat)
	lon, lonOK := cellFloat(row, colLon)
	if !latOK || !lonOK {
		return models.Station{}, false
	}

	measuredAt, ok := p.parseRowTime(cellString(row, colTime))
	if !ok || measuredAt.Before(cutoff) {
		return models.Station{}, false
	}

	humidity := cellOptFloat(row, colHumidity)
	windSpeed := cellOptFloat(row, colWindSpeed)
	dewpoint := cellOptFloat(row, colDewpoint)
	windDir := normalizeWindDirection(cellString(row, colWindDirection))

	return models.Station{
		Name:          name,
		Lat:           lat,
		Lon:           lon,
		Temperature:   temp,
		Humidity:      humidity,
		Pressure:      cellOptFloat(row, colPressure),
		PressureTrend: cellOptFloat(row, colPressureTrend),
		WindSpeed:     windSpeed,
		WindDirection: windDir,
		Condition:     SynthesizeCondition(temp, humidity, windSpeed, dewpoint),
		MeasuredAt:    &measuredAt,
	}, true
}

// parseRowTime reads the feed's minute-precision local timestamp.
func (p *PljusakParser) parseRowTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("02.01.2006 15:04", raw, zagreb)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func normalizeWindDirection(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return ""
	}
	return raw
}

// extractArrayLiteral locates the script-level array following the marker
// and returns it as JSON. The array is found by bracket-depth scanning, so
// formatting and nesting of the literal do not matter. The upstream page
// quotes strings with single quotes, which are rewritten wholesale; the
// feed never embeds quote characters inside values.
func extractArrayLiteral(payload []byte) ([]byte, error) {
	idx := bytes.Index(payload, []byte(pljusakMarker))
	if idx < 0 {
		return nil, errNoMarker
	}
	rest := payload[idx+len(pljusakMarker):]

	start := bytes.IndexByte(rest, '[')
	if start < 0 {
		return nil, errNoLiteral
	}
	rest = rest[start:]

	depth := 0
	for i, b := range rest {
		switch b {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				literal := rest[:i+1]
				return bytes.ReplaceAll(literal, []byte("'"), []byte(`"`)), nil
			}
		}
	}
	return nil, errNoLiteral
}

var (
	errNoMarker  = &ParseError{Source: "pljusak", Reason: "marker missing"}
	errNoLiteral = &ParseError{Source: "pljusak", Reason: "array literal missing"}
)

// cellString reads a row column as text, tolerating numbers.
func cellString(row []any, idx int) string {
	if idx >= len(row) {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// cellFloat reads a row column as a number, applying the shared "-"/empty
// absence rule to string cells. Non-finite values count as absent.
func cellFloat(row []any, idx int) (float64, bool) {
	if idx >= len(row) {
		return 0, false
	}
	switch v := row[idx].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case string:
		return parseField(v)
	default:
		return 0, false
	}
}

func cellOptFloat(row []any, idx int) *float64 {
	if v, ok := cellFloat(row, idx); ok {
		return &v
	}
	return nil
}
