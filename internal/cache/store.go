// Package cache keeps fetched documents on disk so a repeated extraction of
// the same URL can revalidate with ETag/Last-Modified.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	bodyExt = ".doc"
	metaExt = ".json"
)

// ErrNoDir is returned by a Store without a directory.
var ErrNoDir = errors.New("cache: no directory configured")

// Entry holds the validators and content type stored next to a body.
type Entry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	StoredAt     time.Time `json:"stored_at"`
}

// Conditional reports whether the entry carries any validator.
func (e *Entry) Conditional() bool {
	return e != nil && (e.ETag != "" || e.LastModified != "")
}

// Store is a flat directory of <hash>.doc bodies and <hash>.json entries,
// where hash is the xxhash of the URL.
type Store struct {
	Dir string
	// Private creates the directory 0700 and files 0600.
	Private bool
}

func (s *Store) modes() (dir, file os.FileMode) {
	if s.Private {
		return 0o700, 0o600
	}
	return 0o755, 0o644
}

func (s *Store) prepare() error {
	if s == nil || s.Dir == "" {
		return ErrNoDir
	}
	dirMode, _ := s.modes()
	if err := os.MkdirAll(s.Dir, dirMode); err != nil {
		return err
	}
	if s.Private {
		return os.Chmod(s.Dir, dirMode)
	}
	return nil
}

func (s *Store) paths(url string) (body, meta string) {
	base := filepath.Join(s.Dir, fmt.Sprintf("%016x", xxhash.Sum64String(url)))
	return base + bodyExt, base + metaExt
}

// Lookup returns the stored entry for url.
func (s *Store) Lookup(_ context.Context, url string) (*Entry, error) {
	if err := s.prepare(); err != nil {
		return nil, err
	}
	_, metaPath := s.paths(url)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(metaPath), err)
	}
	return &e, nil
}

// Body returns the stored document for url and bumps its mtime for Trim.
func (s *Store) Body(_ context.Context, url string) ([]byte, error) {
	if err := s.prepare(); err != nil {
		return nil, err
	}
	bodyPath, _ := s.paths(url)
	b, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	_ = os.Chtimes(bodyPath, now, now)
	return b, nil
}

// Put writes body then e. The entry lands via rename, so an entry on disk
// always has its body.
func (s *Store) Put(_ context.Context, e Entry, body []byte) error {
	if err := s.prepare(); err != nil {
		return err
	}
	_, fileMode := s.modes()
	bodyPath, metaPath := s.paths(e.URL)
	if err := writeMode(bodyPath, body, fileMode); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	tmp := metaPath + ".tmp"
	if err := writeMode(tmp, data, fileMode); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return os.Rename(tmp, metaPath)
}

// Clear empties the directory.
func (s *Store) Clear() error {
	if s == nil || strings.TrimSpace(s.Dir) == "" {
		return ErrNoDir
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return err
	}
	return s.prepare()
}

func (s *Store) remove(base string) {
	_ = os.Remove(base + bodyExt)
	_ = os.Remove(base + metaExt)
}

// writeMode writes data and forces mode even over an existing file.
func writeMode(path string, data []byte, mode fs.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}
