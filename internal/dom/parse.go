package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse reads a full HTML document. Malformed markup is repaired the way a
// browser would. The returned tree is rooted at the <html> element.
func Parse(r io.Reader) (*Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var top *html.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			top = c
			break
		}
	}
	if top == nil {
		return nil, fmt.Errorf("parse html: no root element")
	}
	return FromNode(top), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// ParseFragment parses markup in a <body> context. A fragment made of one
// element (ignoring surrounding whitespace) becomes the root; anything else
// is wrapped in a <div>.
func ParseFragment(markup string) (*Tree, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	var single *html.Node
	count := 0
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			single = n
			count++
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				count += 2
			}
		}
	}
	if count == 1 {
		return FromNode(single), nil
	}
	wrapper := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		wrapper.AppendChild(n)
	}
	return FromNode(wrapper), nil
}

// FromNode copies an x/net/html element and its subtree into a new arena.
func FromNode(n *html.Node) *Tree {
	t := &Tree{}
	t.root = t.NewElement(n.Data)
	t.nodes[t.root].attrs = copyAttrs(n.Attr)
	t.build(t.root, n)
	return t
}

func (t *Tree) build(parent NodeID, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			id := t.NewElement(c.Data)
			t.nodes[id].attrs = copyAttrs(c.Attr)
			t.nodes[id].parent = parent
			t.nodes[parent].children = append(t.nodes[parent].children, id)
			t.build(id, c)
		case html.TextNode:
			t.appendText(parent, c.Data)
		}
	}
}

// appendText attaches character data at the end of parent's content: to the
// tail of its last child, or to its own text when it has no children.
func (t *Tree) appendText(parent NodeID, s string) {
	kids := t.nodes[parent].children
	if len(kids) == 0 {
		t.nodes[parent].text += s
		return
	}
	t.nodes[kids[len(kids)-1]].tail += s
}

func copyAttrs(in []html.Attribute) []html.Attribute {
	if len(in) == 0 {
		return nil
	}
	out := make([]html.Attribute, 0, len(in))
	for _, a := range in {
		a.Key = strings.ToLower(a.Key)
		out = append(out, a)
	}
	return out
}
