package vision

import (
	"image"
	"sort"
	"strings"

	"asteroid-miner/src/ocr"
	"asteroid-miner/src/overview"
)

const (
	// lineTolerance groups words of one pass into a line by top edge, in screen pixels.
	// Larger values merge adjacent Overview rows.
	lineTolerance = 6
	// rowTolerance groups lines of different passes that describe the same row.
	rowTolerance = 10
)

// toScreen maps a word box from a padded, upscaled pass back to screen coordinates.
func toScreen(box image.Rectangle, origin image.Point, scale int) image.Rectangle {
	f := func(p image.Point) image.Point {
		return image.Pt((p.X-ocr.Padding)/scale+origin.X, (p.Y-ocr.Padding)/scale+origin.Y)
	}
	return image.Rectangle{Min: f(box.Min), Max: f(box.Max)}
}

// buildLines joins the words of one pass into rows. Words must already be in screen
// coordinates. Row boxes span the full capture width so a click lands mid-row.
func buildLines(words []ocr.Word, left, width int) []overview.Row {
	type line struct {
		top   int
		words []ocr.Word
	}
	var lines []*line
	for _, w := range words {
		var found *line
		for _, l := range lines {
			if abs(l.top-w.Box.Min.Y) < lineTolerance {
				found = l
				break
			}
		}
		if found == nil {
			found = &line{top: w.Box.Min.Y}
			lines = append(lines, found)
		}
		found.words = append(found.words, w)
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].top < lines[j].top })

	rows := make([]overview.Row, 0, len(lines))
	for _, l := range lines {
		sort.Slice(l.words, func(i, j int) bool { return l.words[i].Box.Min.X < l.words[j].Box.Min.X })
		texts := make([]string, len(l.words))
		top, bottom := l.words[0].Box.Min.Y, l.words[0].Box.Max.Y
		for i, w := range l.words {
			texts[i] = w.Text
			top = min(top, w.Box.Min.Y)
			bottom = max(bottom, w.Box.Max.Y)
		}
		rows = append(rows, overview.Row{
			Text: strings.Join(texts, " "),
			Box:  image.Rect(left, top, left+width, bottom),
		})
	}
	return rows
}

// mergePasses collapses rows from several passes that sit within rowTolerance of each
// other and keeps the most plausible reading of each.
func mergePasses(passes [][]overview.Row, c overview.Classifier) []overview.Row {
	var all []overview.Row
	for _, p := range passes {
		all = append(all, p...)
	}
	if len(all) == 0 {
		return nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Center().Y < all[j].Center().Y })

	var out []overview.Row
	group := []overview.Row{all[0]}
	for _, r := range all[1:] {
		if abs(r.Center().Y-group[len(group)-1].Center().Y) < rowTolerance {
			group = append(group, r)
			continue
		}
		out = append(out, pickBest(group, c))
		group = []overview.Row{r}
	}
	return append(out, pickBest(group, c))
}

// pickBest ranks a hostile reading first so no pass can hide one. After that it prefers
// a known ore, then any asteroid; ties go to the longer text.
func pickBest(group []overview.Row, c overview.Classifier) overview.Row {
	rank := func(r overview.Row) int {
		switch {
		case c.IsHostile(r):
			return 3
		case c.OreName(r) != "":
			return 2
		case c.IsAsteroid(r):
			return 1
		default:
			return 0
		}
	}
	best := group[0]
	for _, r := range group[1:] {
		rb, rr := rank(best), rank(r)
		if rr > rb || (rr == rb && len(r.Text) > len(best.Text)) {
			best = r
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
