package readable

import (
	"math"
	"strings"
	"testing"

	"github.com/hyperifyio/goreadable/internal/dom"
	"github.com/hyperifyio/goreadable/internal/patterns"
)

// newExtraction parses a full document without sanitizing and returns the
// per-call state plus the body handle.
func newExtraction(t *testing.T, markup string) (*extraction, dom.NodeID) {
	t.Helper()
	tree, err := dom.ParseString(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	bodies := tree.FindAll(tree.Root(), "body")
	if len(bodies) == 0 {
		t.Fatalf("no body in %q", markup)
	}
	return &extraction{tree: tree, pat: patterns.Default(), scores: newScoreTable()}, bodies[0]
}

func TestContribution(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"a,b，c", 5},
		{strings.Repeat("x", 250), 5},
		{strings.Repeat("x", 1000), 6},
		{strings.Repeat("中", 300), 6},
	}
	for _, c := range cases {
		if got := contribution(c.text); got != c.want {
			t.Errorf("contribution(%.20q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestClassWeight_ClassAndIDIndependently(t *testing.T) {
	x, body := newExtraction(t, `<body><div class="post" id="sidebar">x</div><div class="content" id="main">y</div><div>z</div></body>`)
	divs := x.tree.FindAll(body, "div")
	want := []int{0, 50, 0}
	for i, d := range divs {
		if got := classWeight(x.tree, x.pat, d); got != want[i] {
			t.Errorf("div %d weight = %d, want %d", i, got, want[i])
		}
	}
}

func TestLinkDensity_Bounds(t *testing.T) {
	x, body := newExtraction(t, `<body><div><p>plain <a href="/a">link</a></p><p><a href="/b">all link</a></p><p></p><img src="x.png"></div></body>`)
	x.tree.Walk(body, func(id dom.NodeID) bool {
		d := linkDensity(x.tree, id)
		if d < 0 || d > 1 || math.IsNaN(d) {
			t.Fatalf("density out of bounds for %s: %v", x.tree.Tag(id), d)
		}
		if x.tree.TextContent(id) == "" && d != 0 {
			t.Fatalf("text-free %s has density %v", x.tree.Tag(id), d)
		}
		return true
	})

	// Nested anchors count their text twice; the result is still clamped.
	tree := dom.New("div")
	outer := tree.NewElement("a")
	inner := tree.NewElement("a")
	tree.SetText(inner, "abc")
	tree.Append(outer, inner)
	tree.Append(tree.Root(), outer)
	if d := linkDensity(tree, tree.Root()); d != 1 {
		t.Fatalf("nested anchor density = %v, want 1", d)
	}
}

func TestScoreParagraphs_ParentAndGrandparent(t *testing.T) {
	x, body := newExtraction(t, `<body><div id="outer"><div id="inner"><p>`+prose+`</p><p>short</p></div></div></body>`)
	scorable := x.normalizeParagraphs(body)
	x.scoreParagraphs(scorable)
	divs := x.tree.FindAll(body, "div")
	outer, inner := divs[0], divs[1]
	c := contribution(prose)
	if s, _ := x.scores.get(inner); s != 5+c {
		t.Fatalf("inner score = %v, want %v", s, 5+c)
	}
	if s, _ := x.scores.get(outer); s != 5+c/2 {
		t.Fatalf("outer score = %v, want %v", s, 5+c/2)
	}
	if x.scores.len() != 2 {
		t.Fatalf("expected 2 scored nodes, got %d", x.scores.len())
	}
}

func TestPickCandidate_IsMaximum(t *testing.T) {
	x, body := newExtraction(t, sampleDocument())
	x.removeUnlikely(body)
	x.scoreParagraphs(x.normalizeParagraphs(body))
	best, bestScore := x.pickCandidate(body)
	if s, ok := x.scores.get(best); !ok || s != bestScore {
		t.Fatalf("candidate score %v not in table (%v, %v)", bestScore, s, ok)
	}
	for _, id := range x.scores.order {
		if s, _ := x.scores.get(id); s > bestScore {
			t.Fatalf("%s scores %v above candidate %v", x.tree.Tag(id), s, bestScore)
		}
	}
	if got := x.tree.Attr(best, "class"); got != "article-content" {
		t.Fatalf("candidate class = %q", got)
	}
}

func TestPickCandidate_FirstSeenWinsTies(t *testing.T) {
	x, body := newExtraction(t, `<body><div id="a"><p>`+prose+`</p></div><div id="b"><p>`+prose+`</p></div></body>`)
	x.scoreParagraphs(x.normalizeParagraphs(body))
	best, _ := x.pickCandidate(body)
	if got := x.tree.Attr(best, "id"); got != "a" {
		t.Fatalf("tie resolved to %q, want first seen", got)
	}
}

func TestPickCandidate_FallbackSeedsBody(t *testing.T) {
	x, body := newExtraction(t, `<body class="content"><span>tiny</span></body>`)
	x.scoreParagraphs(x.normalizeParagraphs(body))
	best, score := x.pickCandidate(body)
	if best != body {
		t.Fatalf("expected body fallback")
	}
	if score != 25 {
		t.Fatalf("fallback score = %v, want class weight 25", score)
	}
	if x.scores.len() != 1 {
		t.Fatalf("fallback should be seeded into the table")
	}
}

func TestRemoveUnlikely_MaybeRescues(t *testing.T) {
	x, body := newExtraction(t, `<body><div class="sidebar">a</div><div class="comment-main">b</div><div id="footer"><p>c</p></div><div>d</div></body>`)
	if n := x.removeUnlikely(body); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	got := x.tree.TextContent(body)
	if got != "bd" {
		t.Fatalf("remaining text = %q", got)
	}
}

func TestSiblingInclusion_Monotonic(t *testing.T) {
	long := strings.Repeat("word ", 30)
	x, body := newExtraction(t, `<body>
	<div id="cand"><p>`+prose+`</p><p>`+prose+`</p></div>
	<div id="strong"><p>`+prose+`</p></div>
	<div id="weak"><p>`+prose[:40]+`</p></div>
	<p>`+long+` <a href="/x">a short link</a></p>
	<p>plain and short</p>
	<p><a href="/y">only a link here</a></p>
	<ul><li>`+prose+`</li></ul>
	</body>`)
	x.scoreParagraphs(x.normalizeParagraphs(body))
	cand := x.tree.FindAll(body, "div")[0]
	siblings := x.tree.Children(body)

	included := func(score float64) map[dom.NodeID]bool {
		set := make(map[dom.NodeID]bool)
		for _, s := range siblings {
			if x.includeSibling(s, cand, score) {
				set[s] = true
			}
		}
		return set
	}
	prev := included(0)
	for _, score := range []float64{5, 10, 30, 60, 120, 500, 5000} {
		cur := included(score)
		if !cur[cand] {
			t.Fatalf("candidate excluded at score %v", score)
		}
		for id := range cur {
			if !prev[id] {
				t.Fatalf("raising score to %v added %s#%s", score, x.tree.Tag(id), x.tree.Attr(id, "id"))
			}
		}
		prev = cur
	}
}

func TestSiblingInclusion_ClassBonusNeedsExactMatch(t *testing.T) {
	x, body := newExtraction(t, `<body><div class="chunk"><p>`+prose+`</p></div><div class="chunk"><p>`+prose[:30]+`</p></div><div class="chunk wide"><p>`+prose[:30]+`</p></div></body>`)
	x.scoreParagraphs(x.normalizeParagraphs(body))
	divs := x.tree.Children(body)
	cand := divs[0]
	// Siblings score 5+3 = 8. The bonus adds 0.2*40 = 8 against a threshold
	// of max(10, 8) = 10.
	if !x.includeSibling(divs[1], cand, 40) {
		t.Fatalf("same class sibling should clear the threshold with the bonus")
	}
	if x.includeSibling(divs[2], cand, 40) {
		t.Fatalf("different class sibling should not get the bonus")
	}
}

func TestAggregate_RetagsAndKeepsOrder(t *testing.T) {
	x, body := newExtraction(t, `<body><p>`+prose+`</p><section id="cand"><p>`+prose+`</p></section><p><a href="/n">nav</a></p></body>`)
	x.scoreParagraphs(x.normalizeParagraphs(body))
	cand := x.tree.FindAll(body, "section")[0]
	container := x.aggregate(cand, 20)
	kids := x.tree.Children(container)
	if len(kids) != 2 {
		t.Fatalf("expected 2 members, got %d: %s", len(kids), x.tree.RenderString(container))
	}
	if x.tree.Tag(kids[0]) != "p" || x.tree.Tag(kids[1]) != "div" {
		t.Fatalf("unexpected members: %s", x.tree.RenderString(container))
	}
	if x.tree.Attr(kids[1], "id") != "cand" {
		t.Fatalf("candidate should follow the leading paragraph")
	}
}
