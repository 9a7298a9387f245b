package thermo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// toFloat coerces a decoded JSON value to a float64. Booleans are
// rejected: some firmwares report flags under value keys, and true must
// not read as 1 degree.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// round1 rounds half away from zero to one decimal place.
func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

// NormalizeTemperature converts a raw value to degrees Celsius with one
// decimal. Sensors report in three scales: centidegrees (2234), deci-
// degrees (223) and plain degrees (22.3); magnitude decides which.
// Returns nil for missing or non-numeric input.
func NormalizeTemperature(value any) *float64 {
	numeric, ok := toFloat(value)
	if !ok {
		return nil
	}
	abs := math.Abs(numeric)
	if abs > 1000 {
		numeric /= 100
	} else if abs > 150 {
		numeric /= 10
	}
	rounded := round1(numeric)
	return &rounded
}

// NormalizeHumidity converts a raw value to relative humidity percent
// with one decimal, using the same magnitude heuristic as temperature
// but with a 100 cutoff for the deci scale.
func NormalizeHumidity(value any) *float64 {
	numeric, ok := toFloat(value)
	if !ok {
		return nil
	}
	abs := math.Abs(numeric)
	if abs > 1000 {
		numeric /= 100
	} else if abs > 100 {
		numeric /= 10
	}
	rounded := round1(numeric)
	return &rounded
}

// firstNonEmpty returns the first value whose string form is non-blank,
// or "" when none qualifies. Numeric values stringify, so a numeric
// room id can still serve as a name of last resort.
func firstNonEmpty(values ...any) string {
	for _, value := range values {
		if value == nil {
			continue
		}
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case float64:
			text = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			text = v.String()
		case bool:
			text = strconv.FormatBool(v)
		default:
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text
		}
	}
	return ""
}
