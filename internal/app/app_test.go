package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperifyio/goreadable/internal/archive"
	"github.com/hyperifyio/goreadable/internal/cache"
	"github.com/hyperifyio/goreadable/internal/fetch"
	"github.com/hyperifyio/goreadable/internal/readable"
)

const storyPage = `<html><head><title>Story</title></head><body>
<div id="comments"><p>Some reader comment, with commas, that should not be the article.</p></div>
<div class="post">
<p>The first paragraph of the story, with enough words, commas, and detail to score well.</p>
<p>The second paragraph continues the story, adding more words, clauses, and <a href="/next">a link</a>.</p>
<p>The third paragraph closes the story, summarizing, concluding, and thanking the reader.</p>
</div></body></html>`

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestRun_FileToFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "story.html")
	out := filepath.Join(dir, "story.txt")
	if err := os.WriteFile(in, []byte(storyPage), 0o644); err != nil {
		t.Fatal(err)
	}
	a := newTestApp(t, Config{InputPath: in, OutputPath: out, Format: "text"})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	if !strings.Contains(got, "first paragraph") || strings.Contains(got, "reader comment") {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRun_StdinToStdout(t *testing.T) {
	a := newTestApp(t, Config{InputPath: "-", BaseURL: "https://example.com/s/1"})
	var out bytes.Buffer
	a.stdin = strings.NewReader(storyPage)
	a.stdout = &out
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), `href="https://example.com/next"`) {
		t.Fatalf("links not resolved against base: %s", out.String())
	}
}

func TestRun_MissingBody(t *testing.T) {
	a := newTestApp(t, Config{InputPath: "-"})
	a.extractor.DisableSanitize = true
	a.stdin = strings.NewReader("<frameset></frameset>")
	a.stdout = &bytes.Buffer{}
	if err := a.Run(context.Background()); !errors.Is(err, readable.ErrMissingBody) {
		t.Fatalf("expected ErrMissingBody, got %v", err)
	}
}

func TestRun_FetchCachesAndArchives(t *testing.T) {
	var pageHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/story", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pageHits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(storyPage))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	cfg := Config{
		URL:               ts.URL + "/story",
		Format:            "markdown",
		CacheDir:          filepath.Join(dir, "cache"),
		ArchivePath:       filepath.Join(dir, "archive.db"),
		AllowPrivateHosts: true,
	}
	for i := 0; i < 2; i++ {
		a := newTestApp(t, cfg)
		var out bytes.Buffer
		a.stdout = &out
		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !strings.Contains(out.String(), "second paragraph") {
			t.Fatalf("run %d: unexpected markdown %q", i, out.String())
		}
		if !strings.Contains(out.String(), "("+ts.URL+"/next)") {
			t.Fatalf("run %d: link not absolute: %q", i, out.String())
		}
		a.Close()
	}
	if got := atomic.LoadInt32(&pageHits); got != 2 {
		t.Fatalf("expected 2 page requests (second conditional), got %d", got)
	}

	store, err := archive.Open(context.Background(), cfg.ArchivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	rec, err := store.Lookup(context.Background(), ts.URL+"/story")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Title != "Story" || !strings.Contains(rec.Text, "third paragraph") {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("identical content archived %d times", n)
	}
}

func TestRun_RobotsDisallowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	mux.HandleFunc("/story", func(w http.ResponseWriter, r *http.Request) {
		t.Error("page fetched despite robots.txt")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	a := newTestApp(t, Config{URL: ts.URL + "/story", AllowPrivateHosts: true})
	a.stdout = &bytes.Buffer{}
	if err := a.Run(context.Background()); !errors.Is(err, fetch.ErrRobotsDisallowed) {
		t.Fatalf("expected ErrRobotsDisallowed, got %v", err)
	}
}

func TestNew_InvalidPatterns(t *testing.T) {
	cfg := Config{InputPath: "-"}
	cfg.Patterns.Unlikely = "("
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected pattern compile error")
	}
}

func TestHandler_ServesExtract(t *testing.T) {
	a := newTestApp(t, Config{ServeAddr: ":0"})
	ts := httptest.NewServer(a.Handler())
	defer ts.Close()
	resp, err := http.Post(ts.URL+"/extract?format=text", "text/html", strings.NewReader(storyPage))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestNew_TrimsPageCache(t *testing.T) {
	dir := t.TempDir()
	store := &cache.Store{Dir: dir}
	for i := range 3 {
		e := cache.Entry{URL: fmt.Sprintf("https://news.example/%d", i), ContentType: "text/html"}
		if err := store.Put(context.Background(), e, bytes.Repeat([]byte("x"), 100)); err != nil {
			t.Fatal(err)
		}
	}
	newTestApp(t, Config{URL: "https://news.example/0", CacheDir: dir, CacheMaxBytes: 150})

	docs, err := filepath.Glob(filepath.Join(dir, "*.doc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("cache holds %d pages after trim, want 1", len(docs))
	}
}
