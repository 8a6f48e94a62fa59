// Package patterns holds the classification patterns the extractor matches
// against class/id attributes and serialized markup. A Table is immutable
// once built and safe for concurrent use.
package patterns

import (
	"fmt"
	"regexp"
	"sync"
)

const (
	defaultUnlikely = `combx|comment|community|disqus|extra|foot|header|menu|remark|rss|shoutbox|sidebar|sponsor|ad-break|agegate|pagination|pager|popup|tweet|twitter|googlead`
	defaultMaybe    = `and|article|body|column|main|shadow`
	defaultPositive = `article|body|content|entry|hentry|main|page|pagination|post|text|blog|story`
	defaultNegative = `combx|comment|com-|contact|foot|footer|footnote|masthead|media|meta|outbrain|promo|related|scroll|shoutbox|sidebar|sponsor|shopping|tags|tool|widget`
	defaultVideos   = `https?://(www\.)?(youtube|vimeo|youku|tudou)\.com`
	// Whitespace runs collapsed during final normalization.
	defaultNormalize = `\s{2,}`
)

// Table is a compiled, read-only pattern set.
type Table struct {
	unlikely  *regexp.Regexp
	maybe     *regexp.Regexp
	positive  *regexp.Regexp
	negative  *regexp.Regexp
	videos    *regexp.Regexp
	normalize *regexp.Regexp
}

// Overrides replaces individual default patterns. Empty fields keep the
// default. Patterns are matched case-insensitively.
type Overrides struct {
	Unlikely string `yaml:"unlikely" json:"unlikely"`
	Maybe    string `yaml:"maybe" json:"maybe"`
	Positive string `yaml:"positive" json:"positive"`
	Negative string `yaml:"negative" json:"negative"`
	Videos   string `yaml:"videos" json:"videos"`
}

// IsZero reports whether no override is set.
func (o Overrides) IsZero() bool { return o == Overrides{} }

var defaultTable = sync.OnceValue(func() *Table {
	t, err := Compile(Overrides{})
	if err != nil {
		panic(err)
	}
	return t
})

// Default returns the shared default table, compiled on first use.
func Default() *Table { return defaultTable() }

// Compile builds a table from the defaults plus overrides.
func Compile(o Overrides) (*Table, error) {
	pick := func(override, def string) string {
		if override != "" {
			return override
		}
		return def
	}
	t := &Table{}
	specs := []struct {
		name string
		expr string
		dst  **regexp.Regexp
	}{
		{"unlikely", pick(o.Unlikely, defaultUnlikely), &t.unlikely},
		{"maybe", pick(o.Maybe, defaultMaybe), &t.maybe},
		{"positive", pick(o.Positive, defaultPositive), &t.positive},
		{"negative", pick(o.Negative, defaultNegative), &t.negative},
		{"videos", pick(o.Videos, defaultVideos), &t.videos},
		{"normalize", defaultNormalize, &t.normalize},
	}
	for _, s := range specs {
		re, err := regexp.Compile(`(?i)` + s.expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", s.name, err)
		}
		*s.dst = re
	}
	return t, nil
}

// Unlikely reports whether key (id followed by class) names a boilerplate
// container and is not rescued by the maybe pattern.
func (t *Table) Unlikely(key string) bool {
	return t.unlikely.MatchString(key) && !t.maybe.MatchString(key)
}

// Positive reports a positive keyword hit.
func (t *Table) Positive(s string) bool { return t.positive.MatchString(s) }

// Negative reports a negative keyword hit.
func (t *Table) Negative(s string) bool { return t.negative.MatchString(s) }

// Video reports whether s references a known video host.
func (t *Table) Video(s string) bool { return t.videos.MatchString(s) }

// Collapse replaces whitespace runs of two or more characters with a single
// space.
func (t *Table) Collapse(s string) string { return t.normalize.ReplaceAllString(s, " ") }

// DivToP lists the tags whose presence below a div keeps it from being
// retagged as a paragraph.
var DivToP = map[string]bool{
	"a": true, "blockquote": true, "dl": true, "div": true, "img": true,
	"ol": true, "p": true, "pre": true, "table": true, "ul": true,
}

// Inline lists the formatting tags whose trailing text is folded into an
// adjacent paragraph.
var Inline = map[string]bool{
	"b": true, "i": true, "strong": true, "em": true, "a": true,
	"span": true, "del": true, "img": true,
}

// VideoPattern exposes the compiled video-host pattern for callers that
// need a *regexp.Regexp, such as attribute filters.
func (t *Table) VideoPattern() *regexp.Regexp { return t.videos }
