// Package server exposes extraction over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreadable/internal/archive"
	"github.com/hyperifyio/goreadable/internal/readable"
	"github.com/hyperifyio/goreadable/internal/render"
)

// DefaultMaxBodyBytes caps POST /extract bodies.
const DefaultMaxBodyBytes = 16 << 20

// Extractor turns a raw document into an article.
type Extractor interface {
	ExtractArticle(raw []byte, baseURL string) (*readable.Article, error)
}

// Archive stores and finds extracted articles.
type Archive interface {
	Put(ctx context.Context, url, title, html, text string) (archive.Record, error)
	Lookup(ctx context.Context, url string) (archive.Record, error)
}

// Options configures the handler.
type Options struct {
	Extractor Extractor
	// Archive is optional. When set, extracted articles with a base URL are
	// stored and GET /articles serves them.
	Archive      Archive
	MaxBodyBytes int64
	Version      string
}

type service struct {
	opts Options
}

// New returns the service router.
func New(opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &service{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.health)
	r.Post("/extract", s.extract)
	r.Get("/articles", s.article)
	return r
}

func (s *service) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.opts.Version})
}

// extract reads the raw document from the body. Query parameters: base (URL
// for link resolution) and format (html, text, markdown or pdf).
func (s *service) extract(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	base := r.URL.Query().Get("base")
	art, err := s.opts.Extractor.ExtractArticle(raw, base)
	if errors.Is(err, readable.ErrMissingBody) {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.opts.Archive != nil && base != "" {
		if _, err := s.opts.Archive.Put(r.Context(), base, art.Title, art.HTML, render.PlainText(art.HTML)); err != nil {
			log.Warn().Err(err).Str("base", base).Msg("archive failed")
		}
	}
	w.Header().Set("X-Readable-Candidate", art.Candidate)
	w.Header().Set("X-Readable-Passes", strconv.Itoa(art.Passes))
	writeArticle(w, art, format)
}

// article serves an archived article by ?url=.
func (s *service) article(w http.ResponseWriter, r *http.Request) {
	if s.opts.Archive == nil {
		writeError(w, http.StatusNotFound, errors.New("archive disabled"))
		return
	}
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u := r.URL.Query().Get("url")
	if u == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing url parameter"))
		return
	}
	rec, err := s.opts.Archive.Lookup(r.Context(), u)
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("X-Readable-Digest", rec.Digest)
	w.Header().Set("Last-Modified", rec.SavedAt.Format(http.TimeFormat))
	writeArticle(w, &readable.Article{Title: rec.Title, BaseURL: rec.URL, HTML: rec.HTML}, format)
}

func writeArticle(w http.ResponseWriter, art *readable.Article, format render.Format) {
	var buf bytes.Buffer
	if err := render.Write(&buf, art, format); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger logs one debug line per request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
