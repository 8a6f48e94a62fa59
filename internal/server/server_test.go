package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/goreadable/internal/archive"
	"github.com/hyperifyio/goreadable/internal/readable"
)

const page = `<html><head><title>Served</title></head><body>
<div class="sidebar"><p>Navigation, links, and more links everywhere in the sidebar.</p></div>
<div class="article-content">
<p>The first paragraph of the story, with enough words, commas, and detail to score well.</p>
<p>The second paragraph continues the story, adding more words, clauses, and <a href="/more">a link</a>.</p>
<p>The third paragraph closes the story, summarizing, concluding, and thanking the reader.</p>
</div></body></html>`

func newTestServer(t *testing.T, arch Archive, maxBody int64) *httptest.Server {
	t.Helper()
	return newServerWith(t, &readable.Extractor{}, arch, maxBody)
}

func newServerWith(t *testing.T, x Extractor, arch Archive, maxBody int64) *httptest.Server {
	t.Helper()
	h := New(Options{Extractor: x, Archive: arch, MaxBodyBytes: maxBody, Version: "test"})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, query, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/extract"+query, "text/html", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(b)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || got["status"] != "ok" || got["version"] != "test" {
		t.Fatalf("healthz = %d %v", resp.StatusCode, got)
	}
}

func TestExtract_HTML(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	resp, body := post(t, ts, "?base=https://example.com/story", page)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type %q", ct)
	}
	if !strings.Contains(body, "first paragraph") || strings.Contains(body, "sidebar") {
		t.Fatalf("unexpected article: %s", body)
	}
	if !strings.Contains(body, `href="https://example.com/more"`) {
		t.Fatalf("links not resolved: %s", body)
	}
	if resp.Header.Get("X-Readable-Candidate") == "" {
		t.Fatal("missing candidate header")
	}
}

func TestExtract_TextFormat(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	resp, body := post(t, ts, "?format=text", page)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if strings.Contains(body, "<p>") || !strings.Contains(body, "third paragraph") {
		t.Fatalf("expected plain text, got %q", body)
	}
}

func TestExtract_Errors(t *testing.T) {
	// Unsanitized so the frameset survives and the document has no body.
	ts := newServerWith(t, &readable.Extractor{DisableSanitize: true}, nil, 64)
	cases := []struct {
		name   string
		query  string
		body   string
		status int
	}{
		{"bad format", "?format=docx", page, http.StatusBadRequest},
		{"too large", "", page, http.StatusRequestEntityTooLarge},
		{"no body", "", "<frameset></frameset>", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := post(t, ts, tc.query, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tc.status, body)
			}
		})
	}
}

func TestArticles_FromArchive(t *testing.T) {
	store, err := archive.Open(context.Background(), filepath.Join(t.TempDir(), "a.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ts := newTestServer(t, store, 0)

	resp, err := http.Get(ts.URL + "/articles?url=https://example.com/story")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before archiving, got %d", resp.StatusCode)
	}

	if resp, body := post(t, ts, "?base=https://example.com/story", page); resp.StatusCode != http.StatusOK {
		t.Fatalf("extract: %d %s", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/articles?url=https://example.com/story&format=markdown")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("articles: %d %s", resp.StatusCode, b)
	}
	if !strings.Contains(string(b), "second paragraph") || resp.Header.Get("X-Readable-Digest") == "" {
		t.Fatalf("unexpected archived article: %s", b)
	}
}

func TestArticles_ArchiveDisabled(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	resp, err := http.Get(ts.URL + "/articles?url=x")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
