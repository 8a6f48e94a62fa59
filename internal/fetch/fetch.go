// Package fetch downloads HTML pages for extraction.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/hyperifyio/goreadable/internal/cache"
)

const (
	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes = 16 << 20
	defaultRedirects    = 5
	retryStep           = 200 * time.Millisecond
	acceptHTML          = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1"
)

var (
	// ErrRobotsDisallowed is returned when robots.txt forbids the URL.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	// ErrUnsupportedContentType is returned for non-HTML responses.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrUnsupportedScheme is returned for URLs other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrBodyTooLarge is returned when a body exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d %s", e.Code, http.StatusText(e.Code))
}

// Permitter decides whether a URL may be fetched.
type Permitter interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
}

// Delayer is implemented by a Permitter that knows a host's Crawl-delay.
// Retries wait at least that long.
type Delayer interface {
	CrawlDelay(ctx context.Context, rawURL string) (time.Duration, error)
}

// Client fetches article pages with bounded retries, optional revalidation
// against a Store and optional robots.txt checks. Concurrent Gets for the
// same URL share one request.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// Attempts includes the first request. Values below 1 mean 1.
	Attempts int
	// Timeout bounds each request.
	Timeout time.Duration
	Cache   *cache.Store
	// Refresh skips revalidation but still stores the response.
	Refresh bool
	Robots  Permitter
	// MaxRedirects caps redirect hops. Zero means 5.
	MaxRedirects int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int64
	// MaxBodyBytes caps the body size; larger bodies fail with
	// ErrBodyTooLarge. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	semOnce  sync.Once
	sem      *semaphore.Weighted
	inflight singleflight.Group
}

// Page is a fetched document.
type Page struct {
	// URL is the final URL after redirects.
	URL         string
	ContentType string
	Body        []byte
	// FromCache is true when a 304 let the stored body stand.
	FromCache bool
}

// Get returns the page at rawURL.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTP(u) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if c.Robots != nil {
		ok, err := c.Robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
		}
	}
	// The shared fetch outlives any one caller; each caller stops waiting
	// when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(rawURL, func() (any, error) {
		return c.fetch(shared, rawURL)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		p := *r.Val.(*Page)
		return &p, nil
	}
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Page, error) {
	var prior *cache.Entry
	if c.Cache != nil && !c.Refresh {
		if e, err := c.Cache.Lookup(ctx, rawURL); err == nil {
			prior = e
		}
	}
	attempts := max(c.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pause(ctx, rawURL, attempt-1)):
			}
		}
		res, err := c.do(ctx, rawURL, prior)
		if err == nil && res.notModified {
			page, cerr := c.revalidated(ctx, rawURL, res.page, prior)
			if cerr == nil {
				return page, nil
			}
			// Validators without a body: ask again unconditionally.
			prior, lastErr = nil, cerr
			continue
		}
		if err == nil {
			c.store(ctx, rawURL, res)
			return res.page, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt).Str("url", rawURL).Msg("fetch failed, retrying")
	}
	return nil, lastErr
}

// pause is the wait before retry n: a linear step, raised to the host's
// Crawl-delay when the robots checker reports one.
func (c *Client) pause(ctx context.Context, rawURL string, n int) time.Duration {
	d := time.Duration(n) * retryStep
	if dl, ok := c.Robots.(Delayer); ok {
		if cd, err := dl.CrawlDelay(ctx, rawURL); err == nil && cd > d {
			d = cd
		}
	}
	return d
}

func (c *Client) revalidated(ctx context.Context, rawURL string, page *Page, prior *cache.Entry) (*Page, error) {
	if c.Cache == nil {
		return nil, errors.New("not modified without a cache")
	}
	body, err := c.Cache.Body(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("not modified but stored body missing: %w", err)
	}
	if page.ContentType == "" && prior != nil {
		page.ContentType = prior.ContentType
	}
	page.Body = body
	page.FromCache = true
	log.Debug().Str("url", rawURL).Msg("not modified, using stored page")
	return page, nil
}

func (c *Client) store(ctx context.Context, rawURL string, res *response) {
	if c.Cache == nil {
		return
	}
	e := cache.Entry{URL: rawURL, ContentType: res.page.ContentType, ETag: res.etag, LastModified: res.lastModified}
	if err := c.Cache.Put(ctx, e, res.page.Body); err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("cache store failed")
	}
}

type response struct {
	page         *Page
	etag         string
	lastModified string
	notModified  bool
}

func (c *Client) do(ctx context.Context, rawURL string, prior *cache.Entry) (*response, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", acceptHTML)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if prior.Conditional() {
		if prior.ETag != "" {
			req.Header.Set("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			req.Header.Set("If-Modified-Since", prior.LastModified)
		}
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &response{
		page:         &Page{URL: resp.Request.URL.String(), ContentType: resp.Header.Get("Content-Type")},
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		notModified:  resp.StatusCode == http.StatusNotModified,
	}
	if res.notModified {
		return res, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit)
	}
	if res.page.ContentType == "" {
		res.page.ContentType = http.DetectContentType(body)
	}
	if !isHTMLType(res.page.ContentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, res.page.ContentType)
	}
	res.page.Body = body
	return res, nil
}

func (c *Client) client() *http.Client {
	hc := &http.Client{Timeout: c.Timeout}
	if c.HTTPClient != nil {
		copied := *c.HTTPClient
		hc = &copied
	}
	hops := c.MaxRedirects
	if hops <= 0 {
		hops = defaultRedirects
	}
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= hops {
			return fmt.Errorf("stopped after %d redirects", hops)
		}
		if !isHTTP(req.URL) {
			return fmt.Errorf("redirect: %w", ErrUnsupportedScheme)
		}
		return nil
	}
	return hc
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.semOnce.Do(func() { c.sem = semaphore.NewWeighted(c.MaxConcurrent) })
	return c.sem.Acquire(ctx, 1)
}

func (c *Client) release() {
	if c.sem != nil {
		c.sem.Release(1)
	}
}

// isTransient reports whether err is worth another attempt: deadlines, 429
// and 5xx.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusTooManyRequests || se.Code >= 500
}

func isHTTP(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isHTMLType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
