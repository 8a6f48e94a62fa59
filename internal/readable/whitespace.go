package readable

import (
	"strings"

	"github.com/hyperifyio/goreadable/internal/dom"
)

// inlineTags keep a single space at their edges when text around them is
// trimmed, so words on either side are not glued together.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "cite": true,
	"code": true, "del": true, "dfn": true, "em": true, "font": true, "i": true,
	"img": true, "ins": true, "kbd": true, "mark": true, "q": true, "s": true,
	"samp": true, "small": true, "span": true, "strike": true, "strong": true,
	"sub": true, "sup": true, "time": true, "u": true, "var": true,
}

// looseTailTags are the blocks whose tail text is wrapped into paragraphs.
// Beyond p and div these are the elements that close an open <p> when
// markup is parsed, leaving the text after them outside any paragraph.
var looseTailTags = map[string]bool{
	"p": true, "div": true, "address": true, "article": true, "aside": true,
	"blockquote": true, "details": true, "dl": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "main": true, "nav": true, "ol": true,
	"pre": true, "section": true, "table": true, "ul": true,
}

// isBlankRun reports whether s holds only whitespace, non-breaking spaces
// included, the filler found between runs of <br>.
func isBlankRun(s string) bool {
	return strings.TrimSpace(s) == ""
}

func (c *cleaner) normalizeWhitespace() {
	c.collapseBreaks()
	c.paragraphizeTails()
	c.trimText()
}

// collapseBreaks folds runs of <br> separated only by blanks into one <br>
// and drops a <br> that directly precedes a paragraph.
func (c *cleaner) collapseBreaks() {
	t := c.tree
	var marked []dom.NodeID
	for _, br := range t.FindAll(c.root, "br") {
		if !isBlankRun(t.Tail(br)) {
			continue
		}
		next := t.Next(br)
		if next == dom.None {
			continue
		}
		switch t.Tag(next) {
		case "br", "p":
			marked = append(marked, br)
		}
	}
	for _, br := range marked {
		t.SetTail(br, "")
		c.drop(br)
	}
}

// paragraphizeTails turns loose text following a block element into
// paragraphs of its own, one per non-empty line.
func (c *cleaner) paragraphizeTails() {
	t := c.tree
	for _, id := range t.Descendants(c.root) {
		if !looseTailTags[t.Tag(id)] {
			continue
		}
		tail := strings.TrimSpace(t.Tail(id))
		if tail == "" {
			continue
		}
		t.SetTail(id, "")
		ref := id
		for _, line := range strings.Split(tail, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			p := t.NewElement("p")
			t.SetText(p, line)
			t.InsertAfter(ref, p)
			ref = p
		}
	}
}

// trimText trims text at block boundaries, keeps one space next to inline
// elements and collapses whitespace runs. Preformatted content is left
// untouched.
func (c *cleaner) trimText() {
	t := c.tree
	var walk func(id dom.NodeID, inPre bool)
	walk = func(id dom.NodeID, inPre bool) {
		tag := t.Tag(id)
		inPre = inPre || tag == "pre"
		kids := t.Children(id)
		if !inPre {
			right := tag
			if len(kids) > 0 {
				right = t.Tag(kids[0])
			}
			t.SetText(id, c.tidy(t.Text(id), tag, right))
		}
		for i, k := range kids {
			walk(k, inPre)
			if inPre {
				continue
			}
			right := tag
			if i+1 < len(kids) {
				right = t.Tag(kids[i+1])
			}
			t.SetTail(k, c.tidy(t.Tail(k), t.Tag(k), right))
		}
	}
	walk(c.root, false)
}

// tidy collapses whitespace in s and trims each end unless the element on
// that side is inline.
func (c *cleaner) tidy(s, left, right string) string {
	if s == "" {
		return s
	}
	s = c.pat.Collapse(s)
	if !inlineTags[left] {
		s = strings.TrimLeft(s, " \t\r\n\f")
	}
	if !inlineTags[right] {
		s = strings.TrimRight(s, " \t\r\n\f")
	}
	return s
}
