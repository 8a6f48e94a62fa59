package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PurgeOlderThan drops entries stored more than maxAge ago. Entries that
// cannot be decoded are left alone.
func (s *Store) PurgeOlderThan(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	if s == nil || s.Dir == "" {
		return 0, ErrNoDir
	}
	metas, err := filepath.Glob(filepath.Join(s.Dir, "*"+metaExt))
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for _, p := range metas {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal(data, &e) != nil || !e.StoredAt.Before(cutoff) {
			continue
		}
		s.remove(strings.TrimSuffix(p, metaExt))
		removed++
	}
	return removed, nil
}

// Trim evicts least recently read bodies until at most maxBytes of bodies
// and maxEntries entries remain. Zero disables a limit.
func (s *Store) Trim(maxBytes int64, maxEntries int) (int, error) {
	if maxBytes <= 0 && maxEntries <= 0 {
		return 0, nil
	}
	if s == nil || s.Dir == "" {
		return 0, ErrNoDir
	}
	bodies, err := filepath.Glob(filepath.Join(s.Dir, "*"+bodyExt))
	if err != nil {
		return 0, err
	}
	type doc struct {
		base  string
		size  int64
		mtime time.Time
	}
	docs := make([]doc, 0, len(bodies))
	var total int64
	for _, p := range bodies {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		docs = append(docs, doc{strings.TrimSuffix(p, bodyExt), info.Size(), info.ModTime()})
		total += info.Size()
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].mtime.Before(docs[j].mtime) })

	left := len(docs)
	removed := 0
	for _, d := range docs {
		if (maxEntries <= 0 || left <= maxEntries) && (maxBytes <= 0 || total <= maxBytes) {
			break
		}
		s.remove(d.base)
		total -= d.size
		left--
		removed++
	}
	return removed, nil
}
