package readable

import (
	"strings"

	"github.com/hyperifyio/goreadable/internal/dom"
	"github.com/hyperifyio/goreadable/internal/patterns"
)

// minLooseText is the trimmed length loose div text must exceed before it
// is promoted to a paragraph.
const minLooseText = 4

// normalizeParagraphs rewrites loosely structured divs into paragraphs and
// returns the nodes to score, in document order of discovery.
func (x *extraction) normalizeParagraphs(root dom.NodeID) []dom.NodeID {
	t := x.tree
	var scorable []dom.NodeID
	seen := make(map[dom.NodeID]bool)
	register := func(id dom.NodeID) {
		if !seen[id] {
			seen[id] = true
			scorable = append(scorable, id)
		}
	}

	// Snapshot first: new paragraphs are registered as they are created and
	// must not be visited a second time.
	var elems []dom.NodeID
	t.Walk(root, func(id dom.NodeID) bool {
		elems = append(elems, id)
		return true
	})

	for _, e := range elems {
		switch t.Tag(e) {
		case "p", "td", "pre":
			register(e)
		case "div":
			if !hasStructuralDescendant(t, e) {
				t.SetTag(e, "p")
				register(e)
				continue
			}
			x.splitLooseText(e, register)
		}
	}
	return scorable
}

func hasStructuralDescendant(t *dom.Tree, id dom.NodeID) bool {
	found := false
	t.Walk(id, func(n dom.NodeID) bool {
		if found {
			return false
		}
		if n != id && patterns.DivToP[t.Tag(n)] {
			found = true
			return false
		}
		return true
	})
	return found
}

// splitLooseText moves the leading text of a structural div and the trailing
// text of its children into paragraphs.
func (x *extraction) splitLooseText(div dom.NodeID, register func(dom.NodeID)) {
	t := x.tree
	if lead := strings.TrimSpace(t.Text(div)); runeLen(lead) > minLooseText {
		p := t.NewElement("p")
		t.SetText(p, lead)
		t.SetText(div, "")
		t.Insert(div, 0, p)
		register(p)
	}
	for _, child := range t.Children(div) {
		tail := strings.TrimSpace(t.Tail(child))
		if runeLen(tail) <= minLooseText {
			continue
		}
		if !patterns.Inline[t.Tag(child)] {
			p := t.NewElement("p")
			t.SetText(p, tail)
			t.SetTail(child, "")
			t.InsertAfter(child, p)
			register(p)
			continue
		}
		t.SetTail(child, tail)
		if prev := t.Prev(child); prev != dom.None && t.Tag(prev) == "p" {
			t.Append(prev, child)
			register(prev)
			continue
		}
		p := t.NewElement("p")
		t.InsertAfter(child, p)
		t.Append(p, child)
		register(p)
	}
}
