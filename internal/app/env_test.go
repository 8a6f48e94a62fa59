package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// LoadEnvFiles reads KEY=VALUE pairs, quotes and export prefixes included.
func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	t.Setenv("BAZ", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR=\"beta gamma\"\nBAZ='x=y'\nnot a pair\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	for key, want := range map[string]string{"FOO": "alpha", "BAR": "beta gamma", "BAZ": "x=y"} {
		if got := os.Getenv(key); got != want {
			t.Fatalf("%s=%q, want %q", key, got, want)
		}
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvToConfig_FromEnv(t *testing.T) {
	t.Setenv("CACHE_DIR", "/tmp/goreadable-cache")
	t.Setenv("OUTPUT_FORMAT", "markdown")
	t.Setenv("FETCH_ATTEMPTS", "5")
	t.Setenv("FETCH_TIMEOUT", "2s")
	t.Setenv("CLEAN_MAX_PASSES", "not-a-number")
	t.Setenv("DECODE_DETECT", "yes")
	t.Setenv("CACHE_MAX_BYTES", "4096")

	cfg := Config{UserAgent: "explicit"}
	t.Setenv("USER_AGENT", "from-env")
	ApplyEnvToConfig(&cfg)
	if cfg.CacheDir != "/tmp/goreadable-cache" {
		t.Fatalf("CacheDir=%q", cfg.CacheDir)
	}
	if cfg.Format != "markdown" || cfg.Attempts != 5 || cfg.Timeout != 2*time.Second || cfg.CacheMaxBytes != 4096 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.MaxCleanPasses != 0 {
		t.Fatalf("invalid int should be ignored, got %d", cfg.MaxCleanPasses)
	}
	if !cfg.DecodeDetect {
		t.Fatal("DECODE_DETECT=yes should enable detection")
	}
	if cfg.UserAgent != "explicit" {
		t.Fatalf("explicit value overwritten: %q", cfg.UserAgent)
	}
}

// Env overrides win over file values and can switch booleans off.
func TestApplyEnvOverrides_BeatsFile(t *testing.T) {
	t.Setenv("ROBOTS_DISABLE", "false")
	t.Setenv("ARCHIVE_PATH", "/tmp/env.db")
	cfg := Config{DisableRobots: true, ArchivePath: "/tmp/file.db"}
	ApplyEnvOverrides(&cfg)
	if cfg.DisableRobots {
		t.Fatal("ROBOTS_DISABLE=false should re-enable robots checks")
	}
	if cfg.ArchivePath != "/tmp/env.db" {
		t.Fatalf("ArchivePath=%q", cfg.ArchivePath)
	}
}
