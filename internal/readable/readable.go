// Package readable extracts the main article from an HTML page.
//
// The pipeline runs over one mutable tree per call: boilerplate containers
// are filtered by class/id, loose div text is normalized into paragraphs,
// paragraphs score their parents and grandparents, the best-scoring node and
// its qualifying siblings become the article, and a cleaner strips
// low-value structures from the result until nothing more changes.
package readable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreadable/internal/decode"
	"github.com/hyperifyio/goreadable/internal/dom"
	"github.com/hyperifyio/goreadable/internal/patterns"
	"github.com/hyperifyio/goreadable/internal/sanitize"
)

// ErrMissingBody is returned when the parsed document has no <body>.
var ErrMissingBody = errors.New("document has no body")

// Article is the outcome of one extraction.
type Article struct {
	Title string
	// BaseURL is the URL links were resolved against, if any.
	BaseURL string
	// HTML is the sanitized article fragment.
	HTML string
	// Encoding names the decoding that succeeded for the raw input.
	Encoding string
	// Candidate describes the node picked as the article root, e.g.
	// "div#main.post".
	Candidate string
	// CandidateScore is its link-density adjusted score.
	CandidateScore float64
	// Fallback is true when no paragraph scored and the whole body was used.
	Fallback bool
	// Passes is how many cleaner passes ran.
	Passes int
}

// Extractor holds extraction settings. The zero value uses the default
// pattern table, the default sanitizer policy and the default decode chain.
// An Extractor is safe for concurrent use; every call owns its own tree and
// score table.
type Extractor struct {
	Patterns  *patterns.Table
	Sanitizer sanitize.Sanitizer
	// DisableSanitize skips both sanitizer runs.
	DisableSanitize bool
	Decoder         decode.Decoder
	// MaxCleanPasses caps the cleaner loop. Zero means DefaultMaxCleanPasses.
	MaxCleanPasses int
}

// extraction is the per-call state.
type extraction struct {
	tree   *dom.Tree
	pat    *patterns.Table
	scores *scoreTable
}

// Extract runs the default extractor.
func Extract(raw []byte, baseURL string) (string, error) {
	var x Extractor
	return x.Extract(raw, baseURL)
}

// Extract returns the sanitized article fragment for raw.
func (x *Extractor) Extract(raw []byte, baseURL string) (string, error) {
	a, err := x.ExtractArticle(raw, baseURL)
	if err != nil {
		return "", err
	}
	return a.HTML, nil
}

func (x *Extractor) patterns() *patterns.Table {
	if x.Patterns != nil {
		return x.Patterns
	}
	return patterns.Default()
}

func (x *Extractor) sanitize(markup string) string {
	if x.DisableSanitize {
		return markup
	}
	if x.Sanitizer != nil {
		return x.Sanitizer.Sanitize(markup)
	}
	return sanitize.Default().Sanitize(markup)
}

// ExtractArticle runs the whole pipeline and reports what it decided.
func (x *Extractor) ExtractArticle(raw []byte, baseURL string) (*Article, error) {
	decoded := x.Decoder.Decode(raw)
	meta := readMeta(decoded.Text)
	art := &Article{
		Title:    meta.Title,
		BaseURL:  effectiveBase(strings.TrimSpace(baseURL), meta.BaseHref),
		Encoding: decoded.Encoding,
	}

	tree, err := dom.ParseString(x.sanitize(decoded.Text))
	if err != nil {
		return nil, err
	}
	bodies := tree.FindAll(tree.Root(), "body")
	if len(bodies) == 0 {
		return nil, ErrMissingBody
	}
	body := bodies[0]

	ex := &extraction{tree: tree, pat: x.patterns(), scores: newScoreTable()}
	removed := ex.removeUnlikely(body)
	scorable := ex.normalizeParagraphs(body)
	ex.scoreParagraphs(scorable)
	art.Fallback = ex.scores.len() == 0
	candidate, score := ex.pickCandidate(body)
	art.Candidate = describe(tree, candidate)
	art.CandidateScore = score
	log.Debug().
		Int("unlikely_removed", removed).
		Int("scorable", len(scorable)).
		Int("scored", ex.scores.len()).
		Str("candidate", art.Candidate).
		Float64("score", score).
		Bool("fallback", art.Fallback).
		Msg("article candidate")

	container := ex.aggregate(candidate, score)
	stampScores(tree, container, ex.scores)

	c := &cleaner{pat: ex.pat, maxPasses: x.MaxCleanPasses}
	cleaned, passes, err := c.run(tree.RenderString(container))
	if err != nil {
		return nil, fmt.Errorf("clean article: %w", err)
	}
	art.Passes = passes
	makeLinksAbsolute(cleaned, cleaned.Root(), art.BaseURL)
	if !x.DisableSanitize {
		if n := dropForeignAnchors(cleaned, cleaned.Root()); n > 0 {
			log.Debug().Int("anchors", n).Msg("dropped anchors with non-web links")
		}
	}
	art.HTML = x.sanitize(cleaned.RenderString(cleaned.Root()))
	return art, nil
}

// describe renders a node as tag#id.class for logs and reports.
func describe(t *dom.Tree, id dom.NodeID) string {
	var b strings.Builder
	b.WriteString(t.Tag(id))
	if v := t.Attr(id, "id"); v != "" {
		b.WriteString("#")
		b.WriteString(v)
	}
	if v := strings.Fields(t.Attr(id, "class")); len(v) > 0 {
		b.WriteString(".")
		b.WriteString(strings.Join(v, "."))
	}
	return b.String()
}
