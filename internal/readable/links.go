package readable

import (
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"

	"github.com/hyperifyio/goreadable/internal/dom"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// linkAttrs are the attributes holding a single URL reference.
var linkAttrs = [...]string{"href", "src", "action", "poster", "cite", "longdesc", "background"}

// webSchemes are the link schemes the output sanitizer lets through.
var webSchemes = map[string]bool{"http": true, "https": true, "mailto": true}

// resolve returns ref made absolute against base. ref stays unchanged when
// either cannot be parsed or the result would not be a web link, so a base
// such as ftp:// never turns a relative link into one the sanitizer strips.
func resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ref
	}
	u, err := urlParser.ParseRef(base, ref)
	if err != nil || !webSchemes[strings.ToLower(u.Scheme())] {
		return ref
	}
	return u.Href(false)
}

// webRef reports whether ref is relative or uses a web scheme.
func webRef(ref string) bool {
	u, err := urlParser.Parse(strings.TrimSpace(ref))
	if err != nil {
		return true
	}
	return webSchemes[strings.ToLower(u.Scheme())]
}

// dropForeignAnchors drops anchors whose href the sanitizer would remove,
// such as javascript: or ftp: links, the same way the cleaner drops anchors
// without a destination.
func dropForeignAnchors(t *dom.Tree, root dom.NodeID) int {
	var marked []dom.NodeID
	for _, id := range t.FindAll(root, "a") {
		if v := t.Attr(id, "href"); v != "" && !webRef(v) {
			marked = append(marked, id)
		}
	}
	for _, id := range marked {
		t.Drop(id)
	}
	return len(marked)
}

// makeLinksAbsolute rewrites every relative reference under root against
// base. An unparseable base leaves the tree untouched.
func makeLinksAbsolute(t *dom.Tree, root dom.NodeID, base string) {
	if base == "" {
		return
	}
	if _, err := urlParser.Parse(base); err != nil {
		return
	}
	t.Walk(root, func(id dom.NodeID) bool {
		for _, key := range linkAttrs {
			if v, ok := t.LookupAttr(id, key); ok && v != "" {
				t.SetAttr(id, key, resolve(base, v))
			}
		}
		if v, ok := t.LookupAttr(id, "srcset"); ok && v != "" {
			t.SetAttr(id, "srcset", resolveSrcset(base, v))
		}
		return true
	})
}

// resolveSrcset resolves each "url descriptor" candidate of a srcset.
func resolveSrcset(base, srcset string) string {
	parts := strings.Split(srcset, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		fields[0] = resolve(base, fields[0])
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, ", ")
}
