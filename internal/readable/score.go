package readable

import (
	"github.com/hyperifyio/goreadable/internal/dom"
)

// minScoredText is the shortest paragraph text that contributes a score.
const minScoredText = 25

// scoreTable maps node handles to scores and remembers first-seen order so
// ties resolve deterministically.
type scoreTable struct {
	order  []dom.NodeID
	scores map[dom.NodeID]float64
}

func newScoreTable() *scoreTable {
	return &scoreTable{scores: make(map[dom.NodeID]float64)}
}

func (s *scoreTable) get(id dom.NodeID) (float64, bool) {
	v, ok := s.scores[id]
	return v, ok
}

// seed records an initial score for id unless it already has one.
func (s *scoreTable) seed(id dom.NodeID, v float64) {
	if _, ok := s.scores[id]; ok {
		return
	}
	s.scores[id] = v
	s.order = append(s.order, id)
}

func (s *scoreTable) add(id dom.NodeID, v float64) {
	s.scores[id] += v
}

func (s *scoreTable) len() int { return len(s.order) }

// scoreParagraphs credits each scorable node's text to its parent (in full)
// and grandparent (half), seeding both with initScore on first contact.
func (x *extraction) scoreParagraphs(nodes []dom.NodeID) {
	t := x.tree
	for _, e := range nodes {
		parent := t.Parent(e)
		if parent == dom.None || !t.Attached(t.Root(), e) {
			continue
		}
		text := t.TextContent(e)
		if runeLen(text) < minScoredText {
			continue
		}
		grand := t.Parent(parent)
		x.scores.seed(parent, initScore(t, x.pat, parent))
		if grand != dom.None {
			x.scores.seed(grand, initScore(t, x.pat, grand))
		}
		c := contribution(text)
		x.scores.add(parent, c)
		if grand != dom.None {
			x.scores.add(grand, c*0.5)
		}
	}
}

// pickCandidate scales every score by (1 - link density) and returns the
// best node. The first node seen wins ties. With no scores at all the
// fallback node is seeded and returned.
func (x *extraction) pickCandidate(fallback dom.NodeID) (dom.NodeID, float64) {
	t := x.tree
	for _, id := range x.scores.order {
		x.scores.scores[id] *= 1 - linkDensity(t, id)
	}
	if x.scores.len() == 0 {
		x.scores.seed(fallback, initScore(t, x.pat, fallback))
		return fallback, x.scores.scores[fallback]
	}
	best := x.scores.order[0]
	bestScore := x.scores.scores[best]
	for _, id := range x.scores.order[1:] {
		if s := x.scores.scores[id]; s > bestScore {
			best, bestScore = id, s
		}
	}
	return best, bestScore
}
