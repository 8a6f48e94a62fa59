package readable

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperifyio/goreadable/internal/dom"
	"github.com/hyperifyio/goreadable/internal/patterns"
)

// runeLen measures text the way the scoring thresholds expect: in
// characters, so CJK prose is not inflated by its UTF-8 width.
func runeLen(s string) int { return utf8.RuneCountInString(s) }

// linkDensity is the share of id's text that sits inside anchors, clamped to
// [0, 1]. Text-free nodes have density 0.
func linkDensity(t *dom.Tree, id dom.NodeID) float64 {
	total := runeLen(t.TextContent(id))
	if total == 0 {
		return 0
	}
	links := 0
	for _, a := range t.FindAll(id, "a") {
		links += runeLen(t.TextContent(a))
	}
	d := float64(links) / float64(total)
	if d > 1 {
		return 1
	}
	return d
}

// classWeight scores class and id independently: -25 for a negative keyword,
// +25 for a positive one.
func classWeight(t *dom.Tree, pat *patterns.Table, id dom.NodeID) int {
	weight := 0
	for _, key := range [...]string{"class", "id"} {
		v := t.Attr(id, key)
		if v == "" {
			continue
		}
		if pat.Negative(v) {
			weight -= 25
		}
		if pat.Positive(v) {
			weight += 25
		}
	}
	return weight
}

// tagWeight is the base score a container gets from its tag alone.
func tagWeight(tag string) int {
	switch tag {
	case "div":
		return 5
	case "pre", "td", "blockquote":
		return 3
	case "address", "ol", "ul", "dl", "dd", "dt", "li", "form":
		return -3
	case "h1", "h2", "h3", "h4", "h5", "h6", "th":
		return -5
	}
	return 0
}

func initScore(t *dom.Tree, pat *patterns.Table, id dom.NodeID) float64 {
	return float64(tagWeight(t.Tag(id)) + classWeight(t, pat, id))
}

// segments counts the pieces text splits into around sep, so a string
// without sep is one segment.
func segments(text, sep string) int {
	return strings.Count(text, sep) + 1
}

// commaCount adds the ASCII and full-width comma segment counts.
func commaCount(text string) int {
	return segments(text, ",") + segments(text, "，")
}

// contribution is what a scored paragraph adds to its parent: one point,
// one per comma segment of either kind, and up to three for length.
func contribution(text string) float64 {
	n := runeLen(text)
	return float64(1 + segments(text, "，") + segments(text, ",") + min(3, n/100))
}
