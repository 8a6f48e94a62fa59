package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreadable/internal/archive"
	"github.com/hyperifyio/goreadable/internal/cache"
	"github.com/hyperifyio/goreadable/internal/decode"
	"github.com/hyperifyio/goreadable/internal/fetch"
	"github.com/hyperifyio/goreadable/internal/patterns"
	"github.com/hyperifyio/goreadable/internal/readable"
	"github.com/hyperifyio/goreadable/internal/render"
	"github.com/hyperifyio/goreadable/internal/robots"
	"github.com/hyperifyio/goreadable/internal/sanitize"
	"github.com/hyperifyio/goreadable/internal/server"
)

// ErrNoInput is returned when neither an input file, stdin nor a URL was
// given.
var ErrNoInput = errors.New("no input: give a file, - for stdin, or -url")

type App struct {
	cfg       Config
	format    render.Format
	extractor *readable.Extractor
	fetcher   *fetch.Client
	archive   *archive.Store

	stdin  io.Reader
	stdout io.Writer
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	opts := []readable.Option{
		readable.WithDecoder(decode.Decoder{Detect: cfg.DecodeDetect}),
		readable.WithMaxCleanPasses(cfg.MaxCleanPasses),
	}
	if !cfg.Patterns.IsZero() {
		table, err := patterns.Compile(cfg.Patterns)
		if err != nil {
			return nil, fmt.Errorf("compile patterns: %w", err)
		}
		opts = append(opts,
			readable.WithPatterns(table),
			readable.WithSanitizer(sanitize.New(table.VideoPattern())),
		)
	}
	x := readable.New(opts...)

	a := &App{cfg: cfg, format: format, extractor: x, stdin: os.Stdin, stdout: os.Stdout}

	if cfg.URL != "" {
		a.fetcher = a.newFetcher()
	}

	if cfg.ArchivePath != "" {
		store, err := archive.Open(ctx, cfg.ArchivePath)
		if err != nil {
			return nil, err
		}
		a.archive = store
	}
	return a, nil
}

// newFetcher wires the HTTP client, the on-disk cache and robots.txt checks.
func (a *App) newFetcher() *fetch.Client {
	cfg := a.cfg
	httpClient := newHTTPClient(cfg.Timeout)
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	store := a.pageStore()
	client := &fetch.Client{
		HTTPClient:   httpClient,
		UserAgent:    userAgent,
		Attempts:     cfg.Attempts,
		Timeout:      cfg.Timeout,
		Cache:        store,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
	if !cfg.DisableRobots {
		client.Robots = &robots.Manager{
			HTTPClient:        httpClient,
			Cache:             store,
			UserAgent:         userAgent,
			AllowPrivateHosts: cfg.AllowPrivateHosts,
		}
	}
	return client
}

// pageStore opens the on-disk page cache and applies the clear, age and
// size policies. It returns nil when caching is off.
func (a *App) pageStore() *cache.Store {
	cfg := a.cfg
	if cfg.CacheDir == "" {
		return nil
	}
	store := &cache.Store{Dir: cfg.CacheDir, Private: cfg.CacheStrictPerms}
	if cfg.CacheClear {
		if err := store.Clear(); err != nil {
			log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
		}
	}
	if n, err := store.PurgeOlderThan(cfg.CacheMaxAge); err != nil {
		log.Warn().Err(err).Msg("cache purge failed")
	} else if n > 0 {
		log.Debug().Int("removed", n).Msg("purged stale cache entries")
	}
	if n, err := store.Trim(cfg.CacheMaxBytes, 0); err != nil {
		log.Warn().Err(err).Msg("cache trim failed")
	} else if n > 0 {
		log.Debug().Int("removed", n).Int64("max_bytes", cfg.CacheMaxBytes).Msg("trimmed cache")
	}
	return store
}

func (a *App) Close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			log.Warn().Err(err).Msg("archive close failed")
		}
	}
}

// Run performs one extraction: read the input, extract the article, archive
// it when configured and write it in the configured format.
func (a *App) Run(ctx context.Context) error {
	raw, source, err := a.readInput(ctx)
	if err != nil {
		return err
	}
	base := a.cfg.BaseURL
	if base == "" && a.cfg.URL != "" {
		base = source
	}

	start := time.Now()
	art, err := a.extractor.ExtractArticle(raw, base)
	if err != nil {
		return fmt.Errorf("extract %s: %w", source, err)
	}
	log.Info().
		Str("source", source).
		Str("title", art.Title).
		Str("candidate", art.Candidate).
		Bool("fallback", art.Fallback).
		Int("passes", art.Passes).
		Dur("elapsed", time.Since(start)).
		Msg("article extracted")

	if a.archive != nil {
		key := source
		if art.BaseURL != "" {
			key = art.BaseURL
		}
		if _, err := a.archive.Put(ctx, key, art.Title, art.HTML, render.PlainText(art.HTML)); err != nil {
			return err
		}
	}
	return a.writeOutput(art)
}

// readInput returns the raw document and a name for it: the final URL for
// fetched pages, "stdin", or the file path.
func (a *App) readInput(ctx context.Context) ([]byte, string, error) {
	switch {
	case a.cfg.URL != "":
		page, err := a.fetcher.Get(ctx, a.cfg.URL)
		if err != nil {
			return nil, "", fmt.Errorf("fetch: %w", err)
		}
		log.Debug().Str("url", page.URL).Bool("from_cache", page.FromCache).Int("bytes", len(page.Body)).Msg("fetched page")
		return page.Body, page.URL, nil
	case a.cfg.InputPath == "-":
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return b, "stdin", nil
	case strings.TrimSpace(a.cfg.InputPath) != "":
		b, err := os.ReadFile(a.cfg.InputPath)
		if err != nil {
			return nil, "", fmt.Errorf("read input: %w", err)
		}
		return b, a.cfg.InputPath, nil
	default:
		return nil, "", ErrNoInput
	}
}

func (a *App) writeOutput(art *readable.Article) error {
	if a.cfg.OutputPath == "" || a.cfg.OutputPath == "-" {
		return render.Write(a.stdout, art, a.format)
	}
	var buf bytes.Buffer
	if err := render.Write(&buf, art, a.format); err != nil {
		return err
	}
	if err := os.WriteFile(a.cfg.OutputPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("path", a.cfg.OutputPath).Str("format", string(a.format)).Msg("wrote article")
	return nil
}

// Handler returns the HTTP service backed by this app's extractor and archive.
func (a *App) Handler() http.Handler {
	opts := server.Options{
		Extractor:    a.extractor,
		MaxBodyBytes: a.cfg.MaxBodyBytes,
		Version:      BuildVersion,
	}
	if a.archive != nil {
		opts.Archive = a.archive
	}
	return server.New(opts)
}

// Serve runs the HTTP service on cfg.ServeAddr until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.ServeAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.ServeAddr).Str("version", BuildVersion).Msg("serving")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
