package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.URL == "" {
		cfg.URL = os.Getenv("READABLE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("BASE_URL")
	}
	if cfg.Format == "" {
		cfg.Format = os.Getenv("OUTPUT_FORMAT")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("USER_AGENT")
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = os.Getenv("ARCHIVE_PATH")
	}
	if cfg.ServeAddr == "" {
		cfg.ServeAddr = os.Getenv("SERVE_ADDR")
	}

	if cfg.Attempts == 0 {
		if n, ok := envInt("FETCH_ATTEMPTS"); ok {
			cfg.Attempts = n
		}
	}
	if cfg.MaxCleanPasses == 0 {
		if n, ok := envInt("CLEAN_MAX_PASSES"); ok {
			cfg.MaxCleanPasses = n
		}
	}

	if cfg.CacheMaxBytes == 0 {
		if n, ok := envInt("CACHE_MAX_BYTES"); ok {
			cfg.CacheMaxBytes = int64(n)
		}
	}

	// Optional durations
	if cfg.CacheMaxAge == 0 {
		if d, ok := envDuration("CACHE_MAX_AGE"); ok {
			cfg.CacheMaxAge = d
		}
	}
	if cfg.Timeout == 0 {
		if d, ok := envDuration("FETCH_TIMEOUT"); ok {
			cfg.Timeout = d
		}
	}

	// Booleans
	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			if s == "1" || s == "true" || s == "yes" || s == "on" {
				*dst = true
			}
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.DisableRobots, "ROBOTS_DISABLE")
	setBool(&cfg.AllowPrivateHosts, "ALLOW_PRIVATE_HOSTS")
	setBool(&cfg.DecodeDetect, "DECODE_DETECT")
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment variables
// when the corresponding env vars are set. This lets env take precedence over
// values coming from a config file while flags stay highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if v := os.Getenv("READABLE_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OUTPUT_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("ARCHIVE_PATH"); v != "" {
		cfg.ArchivePath = v
	}
	if v := os.Getenv("SERVE_ADDR"); v != "" {
		cfg.ServeAddr = v
	}
	if n, ok := envInt("FETCH_ATTEMPTS"); ok {
		cfg.Attempts = n
	}
	if n, ok := envInt("CLEAN_MAX_PASSES"); ok {
		cfg.MaxCleanPasses = n
	}
	if n, ok := envInt("CACHE_MAX_BYTES"); ok {
		cfg.CacheMaxBytes = int64(n)
	}
	if d, ok := envDuration("CACHE_MAX_AGE"); ok {
		cfg.CacheMaxAge = d
	}
	if d, ok := envDuration("FETCH_TIMEOUT"); ok {
		cfg.Timeout = d
	}

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, envKey string) {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.DisableRobots, "ROBOTS_DISABLE")
	setBool(&cfg.AllowPrivateHosts, "ALLOW_PRIVATE_HOSTS")
	setBool(&cfg.DecodeDetect, "DECODE_DETECT")
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}
