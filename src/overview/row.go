// Package overview models the text rows of the game's Overview panel: what a row says,
// where it is on screen and how far away its entity is.
package overview

import (
	"image"
	"strings"
)

// Row is one line of the Overview as read by OCR. Rows are produced fresh on every
// poll and are never retained.
type Row struct {
	Text string
	Box  image.Rectangle
}

// Center is the point a click on this row should land on.
func (r Row) Center() image.Point {
	return image.Pt((r.Box.Min.X+r.Box.Max.X)/2, (r.Box.Min.Y+r.Box.Max.Y)/2)
}

// Distance parses the row's distance column.
func (r Row) Distance() (Distance, bool) { return ParseDistance(r.Text) }

// Label is the row text without its distance.
func (r Row) Label() string { return Label(r.Text) }

var (
	DefaultAsteroidMarkers = []string{"Asteroid"}
	DefaultHostileMarkers  = []string{"Hostile", "Player"}
	DefaultOres            = []string{
		"Veldspar", "Scordite", "Pyroxeres", "Plagioclase",
		"Kernite", "Jaspet", "Omber", "Hemorphite", "Hedbergite",
	}
)

// Belt and cluster beacons contain "Asteroid" but cannot be mined. The misspellings
// are what tesseract produces for "Belt" on the game font.
var beltWords = []string{"belt", "bel", "delt", "beit", "belf", "cluster", "couster"}

// Classifier decides what a row represents by substring matching.
type Classifier struct {
	AsteroidMarkers []string
	HostileMarkers  []string
	Ores            []string
}

// NewClassifier returns a classifier with the default markers.
func NewClassifier() Classifier {
	return Classifier{
		AsteroidMarkers: DefaultAsteroidMarkers,
		HostileMarkers:  DefaultHostileMarkers,
		Ores:            DefaultOres,
	}
}

// IsHostile reports whether the row names a hostile or another player. Matching is
// case-sensitive so "Player" in a column header style font is not confused with ore text.
func (c Classifier) IsHostile(r Row) bool {
	for _, m := range c.HostileMarkers {
		if m != "" && strings.Contains(r.Text, m) {
			return true
		}
	}
	return false
}

// IsAsteroid reports whether the row is a minable asteroid.
func (c Classifier) IsAsteroid(r Row) bool {
	if c.IsHostile(r) {
		return false
	}
	if c.OreName(r) != "" {
		return true
	}
	lower := strings.ToLower(r.Text)
	for _, m := range c.AsteroidMarkers {
		if m == "" || !strings.Contains(lower, strings.ToLower(m)) {
			continue
		}
		if isBelt(lower) {
			return false
		}
		if d, ok := r.Distance(); ok && d.Unit == "au" {
			return false
		}
		return true
	}
	return false
}

// OreName returns the configured ore the row mentions, or "".
func (c Classifier) OreName(r Row) string {
	lower := strings.ToLower(r.Text)
	for _, ore := range c.Ores {
		if ore != "" && strings.Contains(lower, strings.ToLower(ore)) {
			return ore
		}
	}
	return ""
}

// FindHostile returns the first hostile row.
func (c Classifier) FindHostile(rows []Row) (Row, bool) {
	for _, r := range rows {
		if c.IsHostile(r) {
			return r, true
		}
	}
	return Row{}, false
}

// FindAsteroid returns the first asteroid row in Overview order.
func (c Classifier) FindAsteroid(rows []Row) (Row, bool) {
	for _, r := range rows {
		if c.IsAsteroid(r) {
			return r, true
		}
	}
	return Row{}, false
}

func isBelt(lower string) bool {
	for _, w := range lowerWords(lower) {
		for _, b := range beltWords {
			if w == b {
				return true
			}
		}
	}
	return strings.Contains(lower, "asteroid be")
}

func lowerWords(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == '(' || r == ')' || r == '-' || r == ','
	})
}
