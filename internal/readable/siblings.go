package readable

import (
	"github.com/hyperifyio/goreadable/internal/dom"
)

const (
	minSiblingThreshold = 10
	siblingScoreRatio   = 0.2
	// Unscored paragraphs join the article when they are long and mostly
	// free of links.
	siblingParagraphLen     = 80
	siblingParagraphDensity = 0.25
)

// siblingThreshold is the score a sibling must beat to join the article.
func siblingThreshold(candidateScore float64) float64 {
	return max(minSiblingThreshold, candidateScore*siblingScoreRatio)
}

// includeSibling decides whether sib joins the candidate in the article.
func (x *extraction) includeSibling(sib, candidate dom.NodeID, candidateScore float64) bool {
	if sib == candidate {
		return true
	}
	t := x.tree
	bonus := 0.0
	if class := t.Attr(sib, "class"); class != "" && class == t.Attr(candidate, "class") {
		bonus = candidateScore * siblingScoreRatio
	}
	if s, ok := x.scores.get(sib); ok && s+bonus > siblingThreshold(candidateScore) {
		return true
	}
	if t.Tag(sib) == "p" {
		density := linkDensity(t, sib)
		if runeLen(t.TextContent(sib)) > siblingParagraphLen && density < siblingParagraphDensity {
			return true
		}
		if density == 0 {
			return true
		}
	}
	return false
}

// aggregate builds a detached <div> holding the candidate and every sibling
// that passes includeSibling, in document order. Members that are neither
// paragraphs nor divs are retagged as divs.
func (x *extraction) aggregate(candidate dom.NodeID, candidateScore float64) dom.NodeID {
	t := x.tree
	container := t.NewElement("div")
	members := []dom.NodeID{candidate}
	if parent := t.Parent(candidate); parent != dom.None {
		members = t.Children(parent)
	}
	for _, sib := range members {
		if !x.includeSibling(sib, candidate, candidateScore) {
			continue
		}
		if tag := t.Tag(sib); tag != "p" && tag != "div" {
			t.SetTag(sib, "div")
		}
		t.Append(container, sib)
	}
	return container
}
