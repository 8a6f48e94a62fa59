// Package sanitize strips unsafe markup before and after extraction.
package sanitize

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hyperifyio/goreadable/internal/patterns"
)

// Sanitizer cleans an HTML document or fragment.
type Sanitizer interface {
	Sanitize(markup string) string
}

// Policy is a bluemonday policy tuned for readable output: user content
// elements, class and id kept for the extractor's weighting, rel=nofollow
// on links, no scripts, styles or event handlers. Embedded players survive
// only when they point at a known video host.
type Policy struct {
	p *bluemonday.Policy
}

// New builds a policy. videos restricts embed/object sources; nil disables
// embedded content entirely.
func New(videos *regexp.Regexp) *Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("html", "head", "body", "title")
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).Globally()
	p.AllowNoAttrs().OnElements("a", "span", "div", "form")
	p.AllowAttrs("action").OnElements("form")
	p.AllowAttrs("type", "name", "value").OnElements("input")
	p.RequireNoFollowOnLinks(true)
	if videos != nil {
		p.AllowAttrs("src").Matching(videos).OnElements("embed")
		p.AllowAttrs("data").Matching(videos).OnElements("object")
		p.AllowAttrs("type", "width", "height").OnElements("embed", "object")
		p.AllowAttrs("name", "value").OnElements("param")
	}
	return &Policy{p: p}
}

var defaultPolicy = sync.OnceValue(func() *Policy {
	return New(patterns.Default().VideoPattern())
})

// Default returns a shared policy built from the default pattern table.
func Default() *Policy { return defaultPolicy() }

// Sanitize implements Sanitizer. bluemonday policies are safe for
// concurrent use once built.
func (p *Policy) Sanitize(markup string) string {
	return p.p.Sanitize(markup)
}
