// Package dom holds a mutable element tree stored in an arena. Nodes are
// addressed by NodeID handles that stay stable for the lifetime of a Tree, so
// callers can key maps by them without worrying about structural equality.
//
// Text is modelled the way lxml does it: an element owns its leading text and
// the tail text that follows it inside its parent. Comments, doctypes and
// processing instructions are not represented.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeID is a handle into a Tree's arena.
type NodeID int32

// None is the zero handle for "no node".
const None NodeID = -1

type node struct {
	tag      string
	attrs    []html.Attribute
	text     string
	tail     string
	parent   NodeID
	children []NodeID
}

// Tree is an arena of element nodes with a single root.
type Tree struct {
	nodes []node
	root  NodeID
}

// New returns an empty tree whose root is a fresh element with the given tag.
func New(rootTag string) *Tree {
	t := &Tree{}
	t.root = t.NewElement(rootTag)
	return t
}

// Root returns the root element.
func (t *Tree) Root() NodeID { return t.root }

// Len reports how many nodes were ever allocated in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// NewElement allocates a detached element.
func (t *Tree) NewElement(tag string) NodeID {
	t.nodes = append(t.nodes, node{tag: strings.ToLower(tag), parent: None})
	return NodeID(len(t.nodes) - 1)
}

// Tag returns the lower-cased tag name, or "" for an invalid handle.
func (t *Tree) Tag(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].tag
}

// SetTag renames an element in place, keeping its attributes and subtree.
func (t *Tree) SetTag(id NodeID, tag string) {
	if t.valid(id) {
		t.nodes[id].tag = strings.ToLower(tag)
	}
}

// Attr returns the value of an attribute, or "" when absent.
func (t *Tree) Attr(id NodeID, key string) string {
	v, _ := t.LookupAttr(id, key)
	return v
}

// LookupAttr returns an attribute value and whether it is present.
func (t *Tree) LookupAttr(id NodeID, key string) (string, bool) {
	if !t.valid(id) {
		return "", false
	}
	for _, a := range t.nodes[id].attrs {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// Attrs returns a copy of the element's attributes in document order.
func (t *Tree) Attrs(id NodeID) []html.Attribute {
	if !t.valid(id) {
		return nil
	}
	out := make([]html.Attribute, len(t.nodes[id].attrs))
	copy(out, t.nodes[id].attrs)
	return out
}

// SetAttr sets an attribute, replacing an existing value in place.
func (t *Tree) SetAttr(id NodeID, key, val string) {
	if !t.valid(id) {
		return
	}
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Namespace == "" && strings.EqualFold(n.attrs[i].Key, key) {
			n.attrs[i].Val = val
			return
		}
	}
	n.attrs = append(n.attrs, html.Attribute{Key: strings.ToLower(key), Val: val})
}

// DelAttr removes an attribute if present.
func (t *Tree) DelAttr(id NodeID, key string) {
	if !t.valid(id) {
		return
	}
	n := &t.nodes[id]
	out := n.attrs[:0]
	for _, a := range n.attrs {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		out = append(out, a)
	}
	n.attrs = out
}

// Text returns the text before the element's first child.
func (t *Tree) Text(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].text
}

// SetText replaces the leading text.
func (t *Tree) SetText(id NodeID, s string) {
	if t.valid(id) {
		t.nodes[id].text = s
	}
}

// Tail returns the text that follows the element inside its parent.
func (t *Tree) Tail(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].tail
}

// SetTail replaces the tail text.
func (t *Tree) SetTail(id NodeID, s string) {
	if t.valid(id) {
		t.nodes[id].tail = s
	}
}

// Parent returns the parent handle or None. Parents are navigation only; a
// node is owned by the children list of its parent.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return None
	}
	return t.nodes[id].parent
}

// Children returns a snapshot of the element children.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	out := make([]NodeID, len(t.nodes[id].children))
	copy(out, t.nodes[id].children)
	return out
}

// Index returns the position of id among its parent's children, or -1.
func (t *Tree) Index(id NodeID) int {
	p := t.Parent(id)
	if p == None {
		return -1
	}
	for i, c := range t.nodes[p].children {
		if c == id {
			return i
		}
	}
	return -1
}

// Prev returns the previous sibling element or None.
func (t *Tree) Prev(id NodeID) NodeID {
	i := t.Index(id)
	if i <= 0 {
		return None
	}
	return t.nodes[t.nodes[id].parent].children[i-1]
}

// Next returns the next sibling element or None.
func (t *Tree) Next(id NodeID) NodeID {
	i := t.Index(id)
	if i < 0 {
		return None
	}
	sib := t.nodes[t.nodes[id].parent].children
	if i+1 >= len(sib) {
		return None
	}
	return sib[i+1]
}

// Attached reports whether id is root or has root among its ancestors.
func (t *Tree) Attached(root, id NodeID) bool {
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		if cur == root {
			return true
		}
	}
	return false
}

// detach unlinks id from its parent. The tail travels with the node.
func (t *Tree) detach(id NodeID) {
	p := t.Parent(id)
	if p == None {
		return
	}
	sib := t.nodes[p].children
	for i, c := range sib {
		if c == id {
			t.nodes[p].children = append(sib[:i:i], sib[i+1:]...)
			break
		}
	}
	t.nodes[id].parent = None
}

// Remove detaches id together with its tail text. Removing a detached node
// is a no-op.
func (t *Tree) Remove(id NodeID) {
	t.detach(id)
}

// Drop detaches id but keeps its tail text in the document by joining it to
// the previous sibling's tail, or to the parent's text when id is the first
// child. Dropping a detached node is a no-op.
func (t *Tree) Drop(id NodeID) {
	p := t.Parent(id)
	if p == None {
		return
	}
	if tail := t.nodes[id].tail; tail != "" {
		if prev := t.Prev(id); prev != None {
			t.nodes[prev].tail += tail
		} else {
			t.nodes[p].text += tail
		}
		t.nodes[id].tail = ""
	}
	t.detach(id)
}

// Insert places child at index among parent's children, moving it out of its
// current position first. Out of range indexes clamp to the ends.
func (t *Tree) Insert(parent NodeID, index int, child NodeID) {
	if !t.valid(parent) || !t.valid(child) || parent == child || t.Attached(child, parent) {
		return
	}
	t.detach(child)
	sib := t.nodes[parent].children
	if index < 0 {
		index = 0
	}
	if index > len(sib) {
		index = len(sib)
	}
	sib = append(sib, None)
	copy(sib[index+1:], sib[index:])
	sib[index] = child
	t.nodes[parent].children = sib
	t.nodes[child].parent = parent
}

// Append adds child as the last child of parent.
func (t *Tree) Append(parent, child NodeID) {
	if !t.valid(parent) {
		return
	}
	t.Insert(parent, len(t.nodes[parent].children), child)
}

// InsertAfter places n right after ref under ref's parent. No-op when ref is
// detached.
func (t *Tree) InsertAfter(ref, n NodeID) {
	p := t.Parent(ref)
	if p == None || ref == n {
		return
	}
	t.detach(n)
	t.Insert(p, t.Index(ref)+1, n)
}

// InsertBefore places n right before ref under ref's parent. No-op when ref
// is detached.
func (t *Tree) InsertBefore(ref, n NodeID) {
	p := t.Parent(ref)
	if p == None || ref == n {
		return
	}
	t.detach(n)
	t.Insert(p, t.Index(ref), n)
}

// Walk visits id and its descendants in document order. Returning false from
// fn skips the node's subtree.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if !t.valid(id) {
		return
	}
	if !fn(id) {
		return
	}
	for _, c := range t.nodes[id].children {
		t.Walk(c, fn)
	}
}

// Descendants returns every element below id in document order.
func (t *Tree) Descendants(id NodeID) []NodeID {
	var out []NodeID
	t.Walk(id, func(n NodeID) bool {
		if n != id {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindAll returns the descendants of id (id itself excluded) with the given
// tag, in document order.
func (t *Tree) FindAll(id NodeID, tag string) []NodeID {
	tag = strings.ToLower(tag)
	var out []NodeID
	t.Walk(id, func(n NodeID) bool {
		if n != id && t.nodes[n].tag == tag {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Count returns len(FindAll(id, tag)) without allocating the slice.
func (t *Tree) Count(id NodeID, tag string) int {
	tag = strings.ToLower(tag)
	n := 0
	t.Walk(id, func(c NodeID) bool {
		if c != id && t.nodes[c].tag == tag {
			n++
		}
		return true
	})
	return n
}

// TextContent flattens the text of id and its subtree, excluding id's own
// tail.
func (t *Tree) TextContent(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	var b strings.Builder
	t.writeText(&b, id)
	return b.String()
}

func (t *Tree) writeText(b *strings.Builder, id NodeID) {
	n := &t.nodes[id]
	b.WriteString(n.text)
	for _, c := range n.children {
		t.writeText(b, c)
		b.WriteString(t.nodes[c].tail)
	}
}
