package readable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreadable/internal/dom"
	"github.com/hyperifyio/goreadable/internal/patterns"
)

// DefaultMaxCleanPasses bounds the cleaner's fixed-point loop.
const DefaultMaxCleanPasses = 10

// scoreAttr carries content scores across the serialize/re-parse boundary
// between cleaner passes. It never reaches the output.
const scoreAttr = "data-readable-score"

const (
	minBlockText      = 3
	minCleanCommas    = 10
	minCleanText      = 25
	maxEmbedText      = 75
	headerLinkDensity = 0.33
)

// cleaner runs the post-extraction passes over a serialized article.
type cleaner struct {
	pat       *patterns.Table
	maxPasses int

	// per pass
	tree   *dom.Tree
	root   dom.NodeID
	scores map[dom.NodeID]float64
}

// stampScores records the score of every scored node under root as an
// attribute so the next parse can recover it.
func stampScores(t *dom.Tree, root dom.NodeID, scores *scoreTable) {
	t.Walk(root, func(id dom.NodeID) bool {
		if s, ok := scores.get(id); ok {
			t.SetAttr(id, scoreAttr, strconv.FormatFloat(s, 'g', -1, 64))
		}
		return true
	})
}

// load parses markup and recovers stamped scores.
func (c *cleaner) load(markup string) error {
	t, err := dom.ParseFragment(markup)
	if err != nil {
		return err
	}
	c.tree, c.root = t, t.Root()
	c.scores = make(map[dom.NodeID]float64)
	t.Walk(c.root, func(id dom.NodeID) bool {
		if v, ok := t.LookupAttr(id, scoreAttr); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.scores[id] = f
			}
		}
		return true
	})
	return nil
}

// run iterates passes until the serialized length stops changing or the
// pass cap is hit. It returns the final tree and the number of passes.
func (c *cleaner) run(markup string) (*dom.Tree, int, error) {
	limit := c.maxPasses
	if limit <= 0 {
		limit = DefaultMaxCleanPasses
	}
	passes := 0
	for passes < limit {
		passes++
		if err := c.load(markup); err != nil {
			return nil, passes, fmt.Errorf("clean pass %d: %w", passes, err)
		}
		c.pass()
		next := c.tree.RenderString(c.root)
		log.Debug().Int("pass", passes).Int("before", len(markup)).Int("after", len(next)).Msg("clean pass")
		done := len(next) == len(markup)
		markup = next
		if done {
			break
		}
	}
	if c.tree == nil {
		return nil, passes, fmt.Errorf("clean: no passes ran")
	}
	c.tree.Walk(c.root, func(id dom.NodeID) bool {
		c.tree.DelAttr(id, scoreAttr)
		return true
	})
	return c.tree, passes, nil
}

func (c *cleaner) pass() {
	c.dropStructural()
	c.prepareArticle()
	c.dropEmptyParagraphs()
	c.normalizeWhitespace()
}

// drop removes id unless an earlier step already took it out of the tree.
func (c *cleaner) drop(id dom.NodeID) {
	if c.tree.Attached(c.root, id) && id != c.root {
		c.tree.Drop(id)
	}
}

// dropStructural removes near-empty paragraphs and divs and anchors without
// a destination.
func (c *cleaner) dropStructural() {
	t := c.tree
	var marked []dom.NodeID
	for _, id := range t.Descendants(c.root) {
		switch t.Tag(id) {
		case "p", "div":
			if runeLen(strings.TrimSpace(t.TextContent(id))) < minBlockText {
				marked = append(marked, id)
			}
		case "a":
			if t.Attr(id, "href") == "" {
				marked = append(marked, id)
			}
		}
	}
	for _, id := range marked {
		c.drop(id)
	}
}

func (c *cleaner) prepareArticle() {
	c.cleanConditionally("form")
	c.cleanTag("object")
	c.cleanTag("h1")
	if c.tree.Count(c.root, "h2") == 1 {
		c.cleanTag("h2")
	}
	c.cleanTag("iframe")
	c.cleanHeaders()
	c.cleanConditionally("table")
	c.cleanConditionally("ul")
	c.cleanConditionally("div")
}

// isVideo reports whether an object/embed points at a known video host,
// judged by its attribute values or, failing that, its markup.
func (c *cleaner) isVideo(id dom.NodeID) bool {
	for _, a := range c.tree.Attrs(id) {
		if c.pat.Video(a.Val) {
			return true
		}
	}
	return c.pat.Video(c.tree.RenderString(id))
}

func (c *cleaner) cleanTag(tag string) {
	for _, id := range c.tree.FindAll(c.root, tag) {
		if (tag == "object" || tag == "embed") && c.isVideo(id) {
			continue
		}
		c.drop(id)
	}
}

func (c *cleaner) cleanHeaders() {
	t := c.tree
	for _, tag := range [...]string{"h1", "h2", "h3"} {
		for _, id := range t.FindAll(c.root, tag) {
			if classWeight(t, c.pat, id) < 0 || linkDensity(t, id) > headerLinkDensity {
				c.drop(id)
			}
		}
	}
}

func (c *cleaner) nonVideoEmbeds(id dom.NodeID) int {
	n := 0
	for _, e := range c.tree.FindAll(id, "embed") {
		if !c.isVideo(e) {
			n++
		}
	}
	return n
}

// cleanConditionally drops elements of tag that look like boilerplate:
// negative weight, or few commas combined with image-, list-, input-, link-
// or embed-heavy content.
func (c *cleaner) cleanConditionally(tag string) {
	t := c.tree
	for _, id := range t.FindAll(c.root, tag) {
		if !t.Attached(c.root, id) {
			continue
		}
		weight := classWeight(t, c.pat, id)
		if float64(weight)+c.scores[id] < 0 {
			c.drop(id)
			continue
		}
		text := t.TextContent(id)
		if commaCount(text) >= minCleanCommas {
			continue
		}
		if c.suspicious(id, weight, text) {
			c.drop(id)
		}
	}
}

func (c *cleaner) suspicious(id dom.NodeID, weight int, text string) bool {
	t := c.tree
	p := t.Count(id, "p")
	img := t.Count(id, "img")
	li := t.Count(id, "li")
	input := t.Count(id, "input")
	embeds := c.nonVideoEmbeds(id)
	density := linkDensity(t, id)
	length := runeLen(text)
	tag := t.Tag(id)

	switch {
	case img > p && img > 1:
		return true
	case li > p && tag != "ul" && tag != "ol":
		return true
	case input > p/3:
		return true
	case length < minCleanText && (img == 0 || img > 3):
		return true
	case weight < 25 && density > 0.2:
		return true
	case weight >= 25 && density > 0.5:
		return true
	case (embeds == 1 && length < maxEmbedText) || embeds > 1:
		return true
	}
	return false
}

// dropEmptyParagraphs removes paragraphs with no text and no media.
func (c *cleaner) dropEmptyParagraphs() {
	t := c.tree
	for _, id := range t.FindAll(c.root, "p") {
		if t.Count(id, "img") > 0 || t.Count(id, "embed") > 0 || t.Count(id, "object") > 0 {
			continue
		}
		if strings.TrimSpace(t.TextContent(id)) == "" {
			c.drop(id)
		}
	}
}
