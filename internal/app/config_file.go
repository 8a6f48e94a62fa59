package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/goreadable/internal/patterns"
	"github.com/hyperifyio/goreadable/internal/render"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags/env.
type FileConfig struct {
	Input   string `yaml:"input" json:"input"`
	Output  string `yaml:"output" json:"output"`
	URL     string `yaml:"url" json:"url"`
	Base    string `yaml:"base" json:"base"`
	Format  string `yaml:"format" json:"format"`
	Verbose bool   `yaml:"verbose" json:"verbose"`

	Cache struct {
		Dir         string   `yaml:"dir" json:"dir"`
		MaxAge      Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool     `yaml:"clear" json:"clear"`
		StrictPerms bool     `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64    `yaml:"maxBytes" json:"maxBytes"`
	} `yaml:"cache" json:"cache"`

	Fetch struct {
		UserAgent    string   `yaml:"userAgent" json:"userAgent"`
		Timeout      Duration `yaml:"timeout" json:"timeout"`
		Attempts     int      `yaml:"attempts" json:"attempts"`
		MaxBodyBytes int64    `yaml:"maxBodyBytes" json:"maxBodyBytes"`
		Robots       *struct {
			Enable *bool `yaml:"enable" json:"enable"`
		} `yaml:"robots" json:"robots"`
		AllowPrivateHosts bool `yaml:"allowPrivateHosts" json:"allowPrivateHosts"`
	} `yaml:"fetch" json:"fetch"`

	Decode struct {
		Detect bool `yaml:"detect" json:"detect"`
	} `yaml:"decode" json:"decode"`

	Clean struct {
		MaxPasses int `yaml:"maxPasses" json:"maxPasses"`
	} `yaml:"clean" json:"clean"`

	Patterns patterns.Overrides `yaml:"patterns" json:"patterns"`

	Archive struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"archive" json:"archive"`

	Serve struct {
		Addr string `yaml:"addr" json:"addr"`
	} `yaml:"serve" json:"serve"`
}

// Duration accepts "90s"-style strings in both YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) set(s string) error {
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset or still at their flag default. Flags should already
// have been parsed; explicit flags are preserved.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}

	if cfg.InputPath == "" && fc.Input != "" {
		cfg.InputPath = fc.Input
	}
	if cfg.OutputPath == "" && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if cfg.URL == "" && fc.URL != "" {
		cfg.URL = fc.URL
	}
	if cfg.BaseURL == "" && fc.Base != "" {
		cfg.BaseURL = fc.Base
	}
	if (cfg.Format == "" || cfg.Format == DefaultFormat) && fc.Format != "" {
		cfg.Format = fc.Format
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = time.Duration(fc.Cache.MaxAge)
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}

	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent) && fc.Fetch.UserAgent != "" {
		cfg.UserAgent = fc.Fetch.UserAgent
	}
	if (cfg.Timeout == 0 || cfg.Timeout == DefaultTimeout) && fc.Fetch.Timeout > 0 {
		cfg.Timeout = time.Duration(fc.Fetch.Timeout)
	}
	if (cfg.Attempts == 0 || cfg.Attempts == DefaultAttempts) && fc.Fetch.Attempts > 0 {
		cfg.Attempts = fc.Fetch.Attempts
	}
	if (cfg.MaxBodyBytes == 0 || cfg.MaxBodyBytes == DefaultMaxBodyBytes) && fc.Fetch.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = fc.Fetch.MaxBodyBytes
	}
	// Robots checks default on; the file may turn them off with enable=false.
	if fc.Fetch.Robots != nil && fc.Fetch.Robots.Enable != nil {
		cfg.DisableRobots = !*fc.Fetch.Robots.Enable
	}
	if !cfg.AllowPrivateHosts && fc.Fetch.AllowPrivateHosts {
		cfg.AllowPrivateHosts = true
	}

	if !cfg.DecodeDetect && fc.Decode.Detect {
		cfg.DecodeDetect = true
	}
	if (cfg.MaxCleanPasses == 0 || cfg.MaxCleanPasses == DefaultMaxCleanPasses) && fc.Clean.MaxPasses > 0 {
		cfg.MaxCleanPasses = fc.Clean.MaxPasses
	}
	if cfg.Patterns.IsZero() && !fc.Patterns.IsZero() {
		cfg.Patterns = fc.Patterns
	}

	if cfg.ArchivePath == "" && fc.Archive.Path != "" {
		cfg.ArchivePath = fc.Archive.Path
	}
	if cfg.ServeAddr == "" && fc.Serve.Addr != "" {
		cfg.ServeAddr = fc.Serve.Addr
	}
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	hasInput := strings.TrimSpace(cfg.InputPath) != ""
	hasURL := strings.TrimSpace(cfg.URL) != ""
	serving := strings.TrimSpace(cfg.ServeAddr) != ""
	if !serving && !hasInput && !hasURL {
		return ErrNoInput
	}
	if hasInput && hasURL {
		return errors.New("config: input and url are mutually exclusive")
	}
	if _, err := render.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Attempts < 0 || cfg.MaxCleanPasses < 0 || cfg.MaxBodyBytes < 0 || cfg.Timeout < 0 || cfg.CacheMaxAge < 0 || cfg.CacheMaxBytes < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
