package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const articleURL = "https://news.example/2024/story.html"

func put(t *testing.T, s *Store, url, body string) {
	t.Helper()
	if err := s.Put(context.Background(), Entry{URL: url, ContentType: "text/html"}, []byte(body)); err != nil {
		t.Fatalf("put %s: %v", url, err)
	}
}

func TestStore_PutLookupBody(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: t.TempDir()}
	ctx := context.Background()
	e := Entry{URL: articleURL, ContentType: "text/html; charset=utf-8", ETag: `"v1"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"}
	if err := s.Put(ctx, e, []byte("<article><p>story</p></article>")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Lookup(ctx, articleURL)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ETag != `"v1"` || got.ContentType != e.ContentType || got.URL != articleURL || got.StoredAt.IsZero() {
		t.Fatalf("entry = %+v", got)
	}
	if !got.Conditional() {
		t.Fatalf("entry with validators should be conditional")
	}
	body, err := s.Body(ctx, articleURL)
	if err != nil || string(body) != "<article><p>story</p></article>" {
		t.Fatalf("body = %q (%v)", body, err)
	}
	if _, err := s.Lookup(ctx, "https://news.example/other"); !os.IsNotExist(err) {
		t.Fatalf("miss should be not-exist, got %v", err)
	}
}

func TestStore_NoDir(t *testing.T) {
	var s *Store
	if _, err := s.Lookup(context.Background(), articleURL); err != ErrNoDir {
		t.Fatalf("nil store: %v", err)
	}
	if err := (&Store{Dir: " "}).Clear(); err != ErrNoDir {
		t.Fatalf("blank clear: %v", err)
	}
}

func TestStore_TrimByCount(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: t.TempDir()}
	urls := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	for _, u := range urls {
		put(t, s, u, "page "+u)
		time.Sleep(10 * time.Millisecond)
	}
	// Reading the first page makes the second the oldest.
	if _, err := s.Body(context.Background(), urls[0]); err != nil {
		t.Fatal(err)
	}
	n, err := s.Trim(0, 2)
	if err != nil || n != 1 {
		t.Fatalf("trim removed %d (%v), want 1", n, err)
	}
	if _, err := s.Body(context.Background(), urls[1]); err == nil {
		t.Fatalf("least recently read page should be gone")
	}
	if _, err := s.Lookup(context.Background(), urls[1]); err == nil {
		t.Fatalf("its entry should be gone too")
	}
	if _, err := s.Body(context.Background(), urls[0]); err != nil {
		t.Fatalf("recently read page evicted: %v", err)
	}
}

func TestStore_TrimByBytes(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: t.TempDir()}
	put(t, s, "https://b.example/big", "0123456789")
	time.Sleep(10 * time.Millisecond)
	put(t, s, "https://b.example/small", "ab")
	n, err := s.Trim(5, 0)
	if err != nil || n != 1 {
		t.Fatalf("trim removed %d (%v), want 1", n, err)
	}
	if _, err := s.Body(context.Background(), "https://b.example/small"); err != nil {
		t.Fatalf("small page should remain: %v", err)
	}
	if n, _ := s.Trim(0, 0); n != 0 {
		t.Fatalf("no limits removed %d", n)
	}
}

func TestStore_PurgeOlderThan(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: t.TempDir()}
	ctx := context.Background()
	old := Entry{URL: "https://c.example/old", StoredAt: time.Now().Add(-48 * time.Hour).UTC()}
	if err := s.Put(ctx, old, []byte("old")); err != nil {
		t.Fatal(err)
	}
	put(t, s, "https://c.example/new", "new")
	if err := os.WriteFile(filepath.Join(s.Dir, "garbage"+metaExt), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := s.PurgeOlderThan(24 * time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("purged %d (%v), want 1", n, err)
	}
	if _, err := s.Body(ctx, old.URL); err == nil {
		t.Fatalf("old body should be gone")
	}
	if _, err := s.Body(ctx, "https://c.example/new"); err != nil {
		t.Fatalf("new body should stay: %v", err)
	}
}

func TestStore_PrivateModes(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: filepath.Join(t.TempDir(), "pages"), Private: true}
	put(t, s, articleURL, "hello")
	info, err := os.Stat(s.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	bodyPath, metaPath := s.paths(articleURL)
	for _, p := range []string{bodyPath, metaPath} {
		fi, err := os.Stat(p)
		if err != nil {
			t.Fatal(err)
		}
		if got := fi.Mode() & 0o777; got != 0o600 {
			t.Fatalf("%s mode = %o, want 0600", filepath.Base(p), got)
		}
	}
	raw, _ := os.ReadFile(metaPath)
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil || e.URL != articleURL {
		t.Fatalf("entry file = %s (%v)", raw, err)
	}
}

func TestStore_Clear(t *testing.T) {
	s := &Store{Dir: t.TempDir()}
	put(t, s, articleURL, "x")
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("want empty dir, got %d entries (%v)", len(entries), err)
	}
}
