// Package robots fetches and evaluates robots.txt before pages are
// downloaded for extraction.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/hyperifyio/goreadable/internal/cache"
)

// Source tells where a rule set came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceRevalidated
)

const (
	maxRobotsBytes = 512 << 10
	defaultTTL     = 30 * time.Minute
)

// ErrPrivateHost is returned for loopback and private addresses unless the
// manager allows them.
var ErrPrivateHost = errors.New("private host not allowed")

// denyAll stands in while a host's robots.txt is unavailable for reasons
// other than absence: 5xx, 401/403 and timeouts.
var denyAll = mustParse("User-agent: *\nDisallow: /\n")

func mustParse(s string) *robotstxt.RobotsData {
	r, err := robotstxt.FromString(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Manager fetches robots.txt once per host and keeps the parsed rules for
// TTL.
type Manager struct {
	HTTPClient *http.Client
	// Cache, when set, lets expired rules be revalidated with a conditional
	// request.
	Cache     *cache.Store
	UserAgent string
	// TTL is how long parsed rules are reused. Zero means 30 minutes.
	TTL               time.Duration
	AllowPrivateHosts bool

	mu    sync.Mutex
	rules map[string]held
	group singleflight.Group
	now   func() time.Time
}

type held struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

type lookup struct {
	data *robotstxt.RobotsData
	src  Source
}

// RobotsURL returns the robots.txt URL for the host of rawURL.
func RobotsURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !isHTTP(u) || u.Host == "" {
		return "", fmt.Errorf("unsupported url: %q", rawURL)
	}
	return (&url.URL{Scheme: strings.ToLower(u.Scheme), Host: u.Host, Path: "/robots.txt"}).String(), nil
}

// Allowed reports whether the manager's user agent may fetch rawURL.
func (m *Manager) Allowed(ctx context.Context, rawURL string) (bool, error) {
	data, err := m.rulesFor(ctx, rawURL)
	if err != nil {
		return false, err
	}
	u, _ := url.Parse(rawURL)
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	ok := data.TestAgent(target, m.token())
	log.Debug().Str("url", rawURL).Bool("allowed", ok).Msg("robots check")
	return ok, nil
}

// CrawlDelay returns the Crawl-delay of the group matching the manager's
// user agent on rawURL's host, or zero.
func (m *Manager) CrawlDelay(ctx context.Context, rawURL string) (time.Duration, error) {
	data, err := m.rulesFor(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	if g := data.FindGroup(m.token()); g != nil {
		return g.CrawlDelay, nil
	}
	return 0, nil
}

func (m *Manager) rulesFor(ctx context.Context, rawURL string) (*robotstxt.RobotsData, error) {
	robotsURL, err := RobotsURL(rawURL)
	if err != nil {
		return nil, err
	}
	data, _, err := m.Get(ctx, robotsURL)
	return data, err
}

// token is the product token of the user agent: "goreadable" for
// "goreadable/1.0 (+https://...)".
func (m *Manager) token() string {
	ua := strings.TrimSpace(m.UserAgent)
	if ua == "" {
		return "*"
	}
	if i := strings.IndexAny(ua, "/ "); i > 0 {
		ua = ua[:i]
	}
	return ua
}

// Get returns the rules at robotsURL from memory, from the cache after a
// 304, or from the network. A missing robots.txt allows everything; server
// errors, 401/403 and timeouts deny everything until the rules expire.
func (m *Manager) Get(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, Source, error) {
	u, err := url.Parse(robotsURL)
	if err != nil {
		return nil, SourceNetwork, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTP(u) {
		return nil, SourceNetwork, fmt.Errorf("unsupported url scheme: %q", robotsURL)
	}
	if host := u.Hostname(); !m.AllowPrivateHosts && isPrivateHost(host) {
		return nil, SourceNetwork, fmt.Errorf("%s: %w", host, ErrPrivateHost)
	}
	if data, ok := m.remembered(robotsURL); ok {
		return data, SourceMemory, nil
	}
	v, err, _ := m.group.Do(robotsURL, func() (any, error) {
		data, src, err := m.download(ctx, robotsURL)
		if err != nil {
			return nil, err
		}
		m.remember(robotsURL, data)
		return lookup{data, src}, nil
	})
	if err != nil {
		return nil, SourceNetwork, err
	}
	l := v.(lookup)
	return l.data, l.src, nil
}

func (m *Manager) download(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, Source, error) {
	var prior *cache.Entry
	if m.Cache != nil {
		if e, err := m.Cache.Lookup(ctx, robotsURL); err == nil {
			prior = e
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, SourceNetwork, fmt.Errorf("new request: %w", err)
	}
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}
	if prior.Conditional() {
		if prior.ETag != "" {
			req.Header.Set("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			req.Header.Set("If-Modified-Since", prior.LastModified)
		}
	}
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Debug().Err(err).Str("url", robotsURL).Msg("robots.txt timed out, denying host")
			return denyAll, SourceNetwork, nil
		}
		return nil, SourceNetwork, err
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusNotModified && m.Cache != nil:
		body, err := m.Cache.Body(ctx, robotsURL)
		if err != nil {
			return nil, SourceRevalidated, fmt.Errorf("load stored robots.txt: %w", err)
		}
		data, err := robotstxt.FromBytes(body)
		if err != nil {
			return nil, SourceRevalidated, fmt.Errorf("parse stored robots.txt: %w", err)
		}
		return data, SourceRevalidated, nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return denyAll, SourceNetwork, nil
	case code >= 200 && code <= 299:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
		if err != nil {
			return nil, SourceNetwork, fmt.Errorf("read robots.txt: %w", err)
		}
		m.keep(ctx, robotsURL, resp.Header, body)
		data, err := robotstxt.FromBytes(body)
		if err != nil {
			return nil, SourceNetwork, fmt.Errorf("parse robots.txt: %w", err)
		}
		return data, SourceNetwork, nil
	default:
		// Other 4xx allow everything, 5xx deny everything.
		data, err := robotstxt.FromStatusAndBytes(code, nil)
		if err != nil {
			return nil, SourceNetwork, fmt.Errorf("robots.txt status %d: %w", code, err)
		}
		return data, SourceNetwork, nil
	}
}

func (m *Manager) keep(ctx context.Context, robotsURL string, h http.Header, body []byte) {
	if m.Cache == nil {
		return
	}
	e := cache.Entry{URL: robotsURL, ContentType: "text/plain", ETag: h.Get("ETag"), LastModified: h.Get("Last-Modified")}
	if err := m.Cache.Put(ctx, e, body); err != nil {
		log.Debug().Err(err).Str("url", robotsURL).Msg("robots.txt cache store failed")
	}
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Manager) remembered(key string) (*robotstxt.RobotsData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.rules[key]
	if !ok || !m.clock().Before(h.expires) {
		return nil, false
	}
	return h.data, true
}

func (m *Manager) remember(key string, data *robotstxt.RobotsData) {
	ttl := m.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rules == nil {
		m.rules = make(map[string]held)
	}
	m.rules[key] = held{data: data, expires: m.clock().Add(ttl)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isHTTP(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isPrivateHost(host string) bool {
	h := strings.Trim(strings.ToLower(strings.TrimSpace(host)), "[]")
	switch h {
	case "localhost", "localhost.localdomain", "::1":
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified())
}
