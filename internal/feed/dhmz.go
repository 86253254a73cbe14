package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"vrijeme-widget/internal/models"

	"go.uber.org/zap"
)

// DHMZParser decodes the national met service's tag-structured XML feed
// (hrvatska1_n.xml). One global measurement timestamp applies to every
// station; stations missing a name, a data block, or a parseable
// temperature are silently skipped.
type DHMZParser struct {
	logger *zap.Logger
}

func NewDHMZParser(logger *zap.Logger) *DHMZParser {
	return &DHMZParser{logger: logger}
}

func (p *DHMZParser) Source() string { return "dhmz" }

type dhmzDocument struct {
	XMLName xml.Name   `xml:"Hrvatska"`
	Termin  dhmzTermin `xml:"DatumTermin"`
	Cities  []dhmzCity `xml:"Grad"`
}

type dhmzTermin struct {
	Date string `xml:"Datum"`  // dd.mm.yyyy
	Hour string `xml:"Termin"` // whole hour, local time
}

type dhmzCity struct {
	Name string    `xml:"GradIme"`
	Lat  string    `xml:"Lat"`
	Lon  string    `xml:"Lon"`
	Data *dhmzData `xml:"Podatci"`
}

type dhmzData struct {
	Temperature   string `xml:"Temp"`
	Humidity      string `xml:"Vlaga"`
	Pressure      string `xml:"Tlak"`
	PressureTrend string `xml:"TlakTend"`
	WindDirection string `xml:"VjetarSmjer"`
	WindSpeed     string `xml:"VjetarBrzina"`
	Condition     string `xml:"Vrijeme"`
}

func (p *DHMZParser) Parse(payload []byte, fetchedAt time.Time) (*models.Snapshot, error) {
	if !looksLikeXML(payload) {
		return nil, &ParseError{Source: p.Source(), Reason: "payload is not an XML document"}
	}

	var doc dhmzDocument
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, &ParseError{Source: p.Source(), Reason: "malformed XML", Err: err}
	}

	measuredAt, err := p.parseTermin(doc.Termin)
	if err != nil {
		return nil, &ParseError{Source: p.Source(), Reason: "missing measurement timestamp", Err: err}
	}

	stations := make(map[string]models.Station, len(doc.Cities))
	skipped := 0
	for _, city := range doc.Cities {
		name := strings.TrimSpace(city.Name)
		if name == "" || city.Data == nil {
			skipped++
			continue
		}
		temp, ok := parseField(city.Data.Temperature)
		if !ok {
			skipped++
			continue
		}

		at := measuredAt
		// Later duplicate entries overwrite earlier ones; the feed does not
		// emit duplicates in practice but the behavior is load-bearing.
		stations[name] = models.Station{
			Name:          name,
			Lat:           coordField(city.Lat),
			Lon:           coordField(city.Lon),
			Temperature:   temp,
			Humidity:      optField(city.Data.Humidity),
			Pressure:      optField(city.Data.Pressure),
			PressureTrend: optField(city.Data.PressureTrend),
			WindSpeed:     optField(city.Data.WindSpeed),
			WindDirection: strings.TrimSpace(city.Data.WindDirection),
			Condition:     strings.TrimSpace(city.Data.Condition),
			MeasuredAt:    &at,
		}
	}

	if p.logger != nil {
		p.logger.Debug("Parsed DHMZ feed",
			zap.Int("stations", len(stations)),
			zap.Int("skipped", skipped),
			zap.Time("measured_at", measuredAt))
	}

	return &models.Snapshot{
		Stations:  stations,
		Source:    p.Source(),
		FetchedAt: fetchedAt,
	}, nil
}

// parseTermin combines the document-level date and hour fields. The feed's
// timestamp has hour resolution only.
func (p *DHMZParser) parseTermin(t dhmzTermin) (time.Time, error) {
	date := strings.TrimSpace(t.Date)
	hour := strings.TrimSpace(t.Hour)
	if date == "" || hour == "" {
		return time.Time{}, fmt.Errorf("empty Datum/Termin")
	}
	parsed, err := time.ParseInLocation("02.01.2006 15", date+" "+hour, zagreb)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

// looksLikeXML is the cheap sanity check for a fetched body: anything that
// does not start with markup is treated as a parse failure rather than a
// transport failure.
func looksLikeXML(payload []byte) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf")), " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '<'
}
