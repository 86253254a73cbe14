package feed

// Condition synthesis for the feed variant that carries no condition text.
// The cascade walks descending temperature bands; inside a band,
// humidity-derived descriptors outrank wind-derived ones, which outrank the
// band's plain label. Fog is checked before any band. The thresholds and
// phrases are fixed; changing them changes user-visible output.

// SynthesizeCondition maps current readings to a short phrase. Optional
// readings may be nil; a nil reading simply never satisfies a refinement.
func SynthesizeCondition(temp float64, humidity, windSpeed, dewpoint *float64) string {
	hum := deref(humidity, -1)
	wind := deref(windSpeed, 0)
	dew := deref(dewpoint, -999)

	// Fog: near-saturation, tight dewpoint spread, calm air, and a
	// temperature where radiation fog actually forms.
	if humidity != nil && dewpoint != nil &&
		hum >= 97 && temp-dew <= 1 && wind < 2 && temp >= -3 && temp <= 15 {
		return "Fog"
	}

	switch {
	case temp >= 36:
		switch {
		case hum >= 80:
			return "Oppressive heat"
		case hum >= 0 && hum <= 30:
			return "Dry heat"
		case wind >= 30:
			return "Hot and windy"
		default:
			return "Extreme heat"
		}
	case temp >= 30:
		switch {
		case hum >= 80:
			return "Oppressive"
		case hum >= 65:
			return "Muggy"
		case wind >= 30:
			return "Hot and windy"
		default:
			return "Very hot"
		}
	case temp >= 25:
		switch {
		case hum >= 80:
			return "Muggy"
		case hum >= 0 && hum <= 30:
			return "Dry heat"
		case wind >= 30:
			return "Warm and windy"
		default:
			return "Hot"
		}
	case temp >= 20:
		switch {
		case hum >= 85:
			return "Muggy"
		case hum >= 0 && hum <= 30:
			return "Warm and dry"
		case wind >= 30:
			return "Warm and windy"
		case wind >= 15:
			return "Warm with a breeze"
		default:
			return "Warm"
		}
	case temp >= 15:
		switch {
		case hum >= 90:
			return "Damp"
		case wind >= 50:
			return "Strong wind"
		case wind >= 30:
			return "Windy"
		case wind >= 15:
			return "Pleasant with a breeze"
		default:
			return "Pleasant"
		}
	case temp >= 10:
		switch {
		case hum >= 90:
			return "Damp and cool"
		case wind >= 50:
			return "Strong wind"
		case wind >= 30:
			return "Cool and windy"
		default:
			return "Cool"
		}
	case temp >= 5:
		switch {
		case hum >= 90:
			return "Damp and chilly"
		case wind >= 30:
			return "Chilly and windy"
		default:
			return "Chilly"
		}
	case temp >= 0:
		switch {
		case hum >= 90:
			return "Damp and cold"
		case wind >= 30:
			return "Cold and windy"
		default:
			return "Cold"
		}
	case temp >= -5:
		if wind >= 30 {
			return "Very cold and windy"
		}
		return "Very cold"
	case temp >= -10:
		if wind >= 20 {
			return "Freezing wind"
		}
		return "Freezing"
	default:
		return "Severe frost"
	}
}

func deref(v *float64, absent float64) float64 {
	if v == nil {
		return absent
	}
	return *v
}
