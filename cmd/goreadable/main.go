package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goreadable/internal/app"
	"github.com/hyperifyio/goreadable/internal/readable"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// runMain parses args, runs the app and maps the outcome to an exit code:
// 0 on success, 2 when the document has no body, 1 otherwise.
func runMain(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, showVersion, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}
	if showVersion {
		fmt.Fprintln(stderr, app.VersionString())
		return 0
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		if errors.Is(err, readable.ErrMissingBody) {
			return 2
		}
		return 1
	}
	return 0
}

// parseFlags builds the configuration: flags, then env, then the optional
// config file for anything still unset.
func parseFlags(args []string, stderr io.Writer) (app.Config, bool, error) {
	fs := flag.NewFlagSet("goreadable", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfg         app.Config
		configPath  string
		envFile     string
		showVersion bool
		noRobots    bool
	)
	fs.StringVar(&configPath, "config", os.Getenv("GOREADABLE_CONFIG"), "Path to a YAML or JSON config file")
	fs.StringVar(&envFile, "env", ".env", "Dotenv file loaded before reading the environment")
	fs.StringVar(&cfg.OutputPath, "output", "", "Write the article here instead of stdout")
	fs.StringVar(&cfg.URL, "url", "", "Fetch and extract this URL")
	fs.StringVar(&cfg.BaseURL, "base", "", "Base URL for resolving relative links")
	fs.StringVar(&cfg.Format, "format", app.DefaultFormat, "Output format: html, text, markdown or pdf")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	fs.StringVar(&cfg.CacheDir, "cache.dir", app.DefaultCacheDir, "HTTP cache directory; empty disables")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this (e.g. 24h); 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear the cache directory before the run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.Int64Var(&cfg.CacheMaxBytes, "cache.maxBytes", 0, "Trim least recently read cache entries past this many bytes; 0 disables")
	fs.StringVar(&cfg.UserAgent, "fetch.userAgent", app.DefaultUserAgent, "User-Agent for page and robots.txt requests")
	fs.DurationVar(&cfg.Timeout, "fetch.timeout", app.DefaultTimeout, "Per-request timeout")
	fs.IntVar(&cfg.Attempts, "fetch.attempts", app.DefaultAttempts, "Attempts per fetch, including retries")
	fs.Int64Var(&cfg.MaxBodyBytes, "fetch.maxBodyBytes", app.DefaultMaxBodyBytes, "Largest accepted document in bytes")
	fs.BoolVar(&noRobots, "robots.disable", false, "Do not consult robots.txt")
	fs.BoolVar(&cfg.AllowPrivateHosts, "fetch.allowPrivate", false, "Allow fetching from loopback and private addresses")
	fs.BoolVar(&cfg.DecodeDetect, "decode.detect", false, "Guess the charset when the fixed decode chain fails")
	fs.IntVar(&cfg.MaxCleanPasses, "clean.maxPasses", app.DefaultMaxCleanPasses, "Upper bound on cleaner passes")
	fs.StringVar(&cfg.ArchivePath, "archive", "", "SQLite archive path; empty disables")
	fs.StringVar(&cfg.ServeAddr, "serve", "", "Serve the HTTP API on this address instead of extracting once")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: goreadable [flags] [file|-]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if showVersion {
		return cfg, true, nil
	}
	if fs.NArg() > 1 {
		return cfg, false, fmt.Errorf("expected one input, got %d", fs.NArg())
	}
	cfg.InputPath = fs.Arg(0)
	cfg.DisableRobots = noRobots

	if err := app.LoadEnvFiles(envFile); err != nil {
		return cfg, false, fmt.Errorf("load env: %w", err)
	}
	applyConfigLayers(&cfg, fs, configPath)
	return cfg, false, nil
}

// applyConfigLayers applies the config file and env with precedence
// flags > env > file. Flags the user set explicitly are restored last.
func applyConfigLayers(cfg *app.Config, fs *flag.FlagSet, configPath string) {
	explicit := *cfg
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Warn().Err(err).Str("path", configPath).Msg("config file ignored")
		} else {
			app.ApplyFileConfig(cfg, fc)
		}
	}
	app.ApplyEnvOverrides(cfg)

	restore := map[string]func(){
		"output":             func() { cfg.OutputPath = explicit.OutputPath },
		"url":                func() { cfg.URL = explicit.URL },
		"base":               func() { cfg.BaseURL = explicit.BaseURL },
		"format":             func() { cfg.Format = explicit.Format },
		"v":                  func() { cfg.Verbose = explicit.Verbose },
		"cache.dir":          func() { cfg.CacheDir = explicit.CacheDir },
		"cache.maxAge":       func() { cfg.CacheMaxAge = explicit.CacheMaxAge },
		"cache.clear":        func() { cfg.CacheClear = explicit.CacheClear },
		"cache.strictPerms":  func() { cfg.CacheStrictPerms = explicit.CacheStrictPerms },
		"cache.maxBytes":     func() { cfg.CacheMaxBytes = explicit.CacheMaxBytes },
		"fetch.userAgent":    func() { cfg.UserAgent = explicit.UserAgent },
		"fetch.timeout":      func() { cfg.Timeout = explicit.Timeout },
		"fetch.attempts":     func() { cfg.Attempts = explicit.Attempts },
		"fetch.maxBodyBytes": func() { cfg.MaxBodyBytes = explicit.MaxBodyBytes },
		"robots.disable":     func() { cfg.DisableRobots = explicit.DisableRobots },
		"fetch.allowPrivate": func() { cfg.AllowPrivateHosts = explicit.AllowPrivateHosts },
		"decode.detect":      func() { cfg.DecodeDetect = explicit.DecodeDetect },
		"clean.maxPasses":    func() { cfg.MaxCleanPasses = explicit.MaxCleanPasses },
		"archive":            func() { cfg.ArchivePath = explicit.ArchivePath },
		"serve":              func() { cfg.ServeAddr = explicit.ServeAddr },
	}
	for name := range set {
		if f, ok := restore[name]; ok {
			f()
		}
	}
	if explicit.InputPath != "" {
		cfg.InputPath = explicit.InputPath
	}
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	if cfg.ServeAddr != "" {
		return a.Serve(ctx)
	}
	return a.Run(ctx)
}
