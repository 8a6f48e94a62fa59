package readable

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// docMeta is document-level information read before extraction mutates the
// tree.
type docMeta struct {
	Title string
	// BaseHref is the raw href of the first <base> element.
	BaseHref string
}

func readMeta(markup string) docMeta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return docMeta{}
	}
	var m docMeta
	m.Title = strings.Join(strings.Fields(doc.Find("head title").First().Text()), " ")
	if m.Title == "" {
		m.Title = strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		m.BaseHref = strings.TrimSpace(href)
	}
	return m
}

// effectiveBase combines the caller's base URL with the document's <base
// href>. A document base wins, resolved against the caller's URL when it is
// relative.
func effectiveBase(baseURL, baseHref string) string {
	if baseHref == "" {
		return baseURL
	}
	if baseURL != "" {
		return resolve(baseURL, baseHref)
	}
	if u, err := urlParser.Parse(baseHref); err == nil {
		return u.Href(false)
	}
	return ""
}
