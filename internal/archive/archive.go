// Package archive keeps extracted articles in a SQLite database so a page
// that was already processed can be looked up by URL without fetching it
// again.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Lookup when no record matches.
var ErrNotFound = errors.New("archive: not found")

// Record is one archived article.
type Record struct {
	ID      int64
	URL     string
	Title   string
	HTML    string
	Text    string
	Digest  string
	SavedAt time.Time
}

// Store wraps the archive database. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	url      TEXT NOT NULL,
	title    TEXT NOT NULL,
	html     TEXT NOT NULL,
	text     TEXT NOT NULL,
	digest   TEXT NOT NULL UNIQUE,
	saved_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS articles_url ON articles(url, saved_at);
`

// Open opens or creates the archive at path. ":memory:" gives a private
// in-memory archive.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive: empty path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Digest is the content key of an article: xxhash64 of its HTML fragment.
func Digest(html string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(html))
}

// Put stores an article. An article whose HTML was archived before is not
// duplicated; its URL, title and time are updated instead. The stored record
// is returned.
func (s *Store) Put(ctx context.Context, url, title, html, text string) (Record, error) {
	rec := Record{
		URL:     url,
		Title:   title,
		HTML:    html,
		Text:    text,
		Digest:  Digest(html),
		SavedAt: s.now().UTC(),
	}
	const q = `
INSERT INTO articles (url, title, html, text, digest, saved_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(digest) DO UPDATE SET
	url = excluded.url,
	title = excluded.title,
	saved_at = excluded.saved_at
RETURNING id`
	err := s.db.QueryRowContext(ctx, q,
		rec.URL, rec.Title, rec.HTML, rec.Text, rec.Digest, rec.SavedAt.UnixNano(),
	).Scan(&rec.ID)
	if err != nil {
		return Record{}, fmt.Errorf("archive put: %w", err)
	}
	log.Debug().Str("url", url).Str("digest", rec.Digest).Int64("id", rec.ID).Msg("archived article")
	return rec, nil
}

// Lookup returns the most recently saved article for url.
func (s *Store) Lookup(ctx context.Context, url string) (Record, error) {
	return s.scanOne(ctx, `
SELECT id, url, title, html, text, digest, saved_at
FROM articles WHERE url = ? ORDER BY saved_at DESC, id DESC LIMIT 1`, url)
}

// ByDigest returns the article with the given digest.
func (s *Store) ByDigest(ctx context.Context, digest string) (Record, error) {
	return s.scanOne(ctx, `
SELECT id, url, title, html, text, digest, saved_at
FROM articles WHERE digest = ?`, digest)
}

// Count returns how many articles are archived.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("archive count: %w", err)
	}
	return n, nil
}

func (s *Store) scanOne(ctx context.Context, q string, arg any) (Record, error) {
	var rec Record
	var saved int64
	err := s.db.QueryRowContext(ctx, q, arg).Scan(
		&rec.ID, &rec.URL, &rec.Title, &rec.HTML, &rec.Text, &rec.Digest, &saved,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("archive lookup: %w", err)
	}
	rec.SavedAt = time.Unix(0, saved).UTC()
	return rec, nil
}
