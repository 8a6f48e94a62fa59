package readable

import (
	"github.com/hyperifyio/goreadable/internal/dom"
)

// removeUnlikely detaches every element under root whose id+class looks like
// boilerplate. Matches are collected first and removed afterwards so the walk
// never sees a half-mutated tree. Returns the number of nodes removed.
func (x *extraction) removeUnlikely(root dom.NodeID) int {
	t := x.tree
	var marked []dom.NodeID
	t.Walk(root, func(id dom.NodeID) bool {
		if id == root {
			return true
		}
		if x.pat.Unlikely(t.Attr(id, "id") + t.Attr(id, "class")) {
			marked = append(marked, id)
			return false
		}
		return true
	})
	for _, id := range marked {
		t.Remove(id)
	}
	return len(marked)
}
