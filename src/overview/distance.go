package overview

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Distance is a unit-qualified range read from an Overview row.
type Distance struct {
	Value  float64
	Unit   string // "m", "km" or "au"
	Meters float64
}

// InRange reports whether the distance is known and strictly below limit meters.
func (d Distance) InRange(limit float64) bool {
	return d.Unit != "" && d.Meters < limit
}

func (d Distance) String() string {
	if d.Unit == "" {
		return "unknown"
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64) + " " + d.Unit
}

// OCR output runs digits and units together ("24km") or splits thousands ("1,234 m").
var distancePattern = regexp.MustCompile(`(?i)([\d][\d,.]*)\s*(km|au|m)\b`)

// ParseDistance extracts the first distance token from text. "24 km" is 24000 meters,
// "1200 m" is 1200 meters and any AU distance is reported as +Inf meters.
func ParseDistance(text string) (Distance, bool) {
	m := distancePattern.FindStringSubmatch(text)
	if m == nil {
		return Distance{}, false
	}

	num := strings.ReplaceAll(m[1], ",", "")
	num = strings.TrimRight(num, ".")
	// Collapse stray dots so "1.2.3" reads as "12.3".
	if n := strings.Count(num, "."); n > 1 {
		num = strings.Replace(num, ".", "", n-1)
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Distance{}, false
	}

	unit := strings.ToLower(m[2])
	d := Distance{Value: value, Unit: unit}
	switch unit {
	case "km":
		d.Meters = value * 1000
	case "m":
		d.Meters = value
	case "au":
		d.Meters = math.Inf(1)
	}
	return d, true
}

// Label returns text with its distance token removed and whitespace collapsed. It is
// stable across polls while the distance column changes.
func Label(text string) string {
	stripped := distancePattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(stripped), " ")
}
