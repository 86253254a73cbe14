package feed

import (
	"errors"
	"testing"
	"time"
)

const dhmzSample = `<?xml version="1.0" encoding="UTF-8"?>
<Hrvatska>
  <DatumTermin>
    <Datum>01.02.2026</Datum>
    <Termin>14</Termin>
  </DatumTermin>
  <Grad autom="0">
    <GradIme>Zagreb-Maksimir</GradIme>
    <Lat>45.82</Lat>
    <Lon>16.03</Lon>
    <Podatci>
      <Temp>3.4</Temp>
      <Vlaga>78</Vlaga>
      <Tlak>1021.3</Tlak>
      <TlakTend>+0.4</TlakTend>
      <VjetarSmjer>NE</VjetarSmjer>
      <VjetarBrzina>2.1</VjetarBrzina>
      <Vrijeme>vedro</Vrijeme>
    </Podatci>
  </Grad>
  <Grad autom="1">
    <GradIme>Split-Marjan</GradIme>
    <Lat>43.51</Lat>
    <Lon>16.43</Lon>
    <Podatci>
      <Temp>-</Temp>
      <Vlaga>60</Vlaga>
      <Tlak>1018.0</Tlak>
      <TlakTend>-</TlakTend>
      <VjetarSmjer>C</VjetarSmjer>
      <VjetarBrzina>-</VjetarBrzina>
      <Vrijeme>-</Vrijeme>
    </Podatci>
  </Grad>
  <Grad autom="0">
    <GradIme>Osijek</GradIme>
    <Lat>45.55</Lat>
    <Lon>18.70</Lon>
    <Podatci>
      <Temp>1.0</Temp>
      <Vlaga>-</Vlaga>
      <Tlak>-</Tlak>
      <TlakTend>-</TlakTend>
      <VjetarSmjer>N</VjetarSmjer>
      <VjetarBrzina>5.4</VjetarBrzina>
      <Vrijeme>oblačno</Vrijeme>
    </Podatci>
  </Grad>
</Hrvatska>`

func TestDHMZParseFiltersMissingTemperature(t *testing.T) {
	p := NewDHMZParser(nil)

	snap, err := p.Parse([]byte(dhmzSample), time.Now())
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}

	if len(snap.Stations) != 2 {
		t.Fatalf("got %d stations, want 2", len(snap.Stations))
	}
	if _, ok := snap.Stations["Split-Marjan"]; ok {
		t.Error("station without a parseable temperature must be dropped")
	}

	zg, ok := snap.Stations["Zagreb-Maksimir"]
	if !ok {
		t.Fatal("Zagreb-Maksimir missing from snapshot")
	}
	if zg.Temperature != 3.4 {
		t.Errorf("temperature = %v; want 3.4", zg.Temperature)
	}
	if zg.Humidity == nil || *zg.Humidity != 78 {
		t.Errorf("humidity = %v; want 78", zg.Humidity)
	}
	if zg.PressureTrend == nil || *zg.PressureTrend != 0.4 {
		t.Errorf("pressure trend = %v; want +0.4", zg.PressureTrend)
	}
	if zg.Condition != "vedro" {
		t.Errorf("condition = %q; want %q", zg.Condition, "vedro")
	}
	if !zg.HasCoords() {
		t.Error("Zagreb-Maksimir should have coordinates")
	}

	os, _ := snap.Stations["Osijek"]
	if os.Humidity != nil || os.Pressure != nil {
		t.Error("dash-valued readings must come back nil")
	}
}

func TestDHMZGlobalTimestamp(t *testing.T) {
	p := NewDHMZParser(nil)

	snap, err := p.Parse([]byte(dhmzSample), time.Now())
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}

	for name, st := range snap.Stations {
		if st.MeasuredAt == nil {
			t.Fatalf("%s has no measurement time", name)
		}
		if st.MeasuredAt.Hour() != 14 || st.MeasuredAt.Day() != 1 || st.MeasuredAt.Month() != time.February {
			t.Errorf("%s measured at %v; want 2026-02-01 14:00 local", name, st.MeasuredAt)
		}
	}
}

func TestDHMZParseErrors(t *testing.T) {
	p := NewDHMZParser(nil)

	cases := []struct {
		name    string
		payload string
	}{
		{"not xml", "503 Service Unavailable"},
		{"malformed xml", "<Hrvatska><Grad>"},
		{"missing timestamp", "<Hrvatska><Grad><GradIme>X</GradIme></Grad></Hrvatska>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tc.payload), time.Now())
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v; want *ParseError", err)
			}
		})
	}
}

func TestDHMZZeroStationsIsNotAnError(t *testing.T) {
	p := NewDHMZParser(nil)

	payload := `<Hrvatska><DatumTermin><Datum>01.02.2026</Datum><Termin>7</Termin></DatumTermin></Hrvatska>`
	snap, err := p.Parse([]byte(payload), time.Now())
	if err != nil {
		t.Fatalf("Parse() err = %v; empty feed must not be an error", err)
	}
	if !snap.Empty() {
		t.Errorf("snapshot should be empty, got %d stations", len(snap.Stations))
	}
}
