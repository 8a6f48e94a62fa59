package app

import (
	"time"

	"github.com/hyperifyio/goreadable/internal/patterns"
)

// Defaults shared by the CLI flags and the config file overlay.
const (
	DefaultFormat         = "html"
	DefaultCacheDir       = ".goreadable-cache"
	DefaultUserAgent      = "goreadable/1.0 (+https://github.com/hyperifyio/goreadable)"
	DefaultTimeout        = 15 * time.Second
	DefaultAttempts       = 3
	DefaultMaxCleanPasses = 10
	DefaultMaxBodyBytes   = 16 << 20
)

// Config holds runtime configuration for the application.
type Config struct {
	// InputPath is a file to read, or "-" for stdin.
	InputPath string
	// OutputPath is where the rendered article goes. Empty or "-" is stdout.
	OutputPath string
	// URL is fetched instead of reading InputPath.
	URL string
	// BaseURL resolves relative links. Defaults to the fetched URL.
	BaseURL string
	Format  string
	Verbose bool

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	// CacheMaxBytes trims least recently read pages past this size.
	CacheMaxBytes int64

	// Fetch
	UserAgent         string
	Timeout           time.Duration
	Attempts          int
	DisableRobots     bool
	AllowPrivateHosts bool
	MaxBodyBytes      int64

	// Extraction
	DecodeDetect   bool
	MaxCleanPasses int
	Patterns       patterns.Overrides

	// ArchivePath enables the SQLite article archive.
	ArchivePath string
	// ServeAddr runs the HTTP service instead of a single extraction.
	ServeAddr string
}
