package dom

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag never has content.
func IsVoid(tag string) bool { return voidElements[tag] }

// ToNode converts id and its subtree into a detached x/net/html element. The
// node's own tail is not included.
func (t *Tree) ToNode(id NodeID) *html.Node {
	if !t.valid(id) {
		return nil
	}
	n := &t.nodes[id]
	out := &html.Node{
		Type:     html.ElementNode,
		Data:     n.tag,
		DataAtom: atom.Lookup([]byte(n.tag)),
		Attr:     t.Attrs(id),
	}
	if voidElements[n.tag] {
		return out
	}
	if n.text != "" {
		out.AppendChild(&html.Node{Type: html.TextNode, Data: n.text})
	}
	for _, c := range n.children {
		out.AppendChild(t.ToNode(c))
		if tail := t.nodes[c].tail; tail != "" {
			out.AppendChild(&html.Node{Type: html.TextNode, Data: tail})
		}
	}
	return out
}

// Render serializes id and its subtree as HTML.
func (t *Tree) Render(w io.Writer, id NodeID) error {
	n := t.ToNode(id)
	if n == nil {
		return nil
	}
	return html.Render(w, n)
}

// RenderString serializes id and its subtree, returning "" on failure.
func (t *Tree) RenderString(id NodeID) string {
	var buf bytes.Buffer
	if err := t.Render(&buf, id); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serializes the content of id without its own start and end tags.
func (t *Tree) InnerHTML(id NodeID) string {
	n := t.ToNode(id)
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}
