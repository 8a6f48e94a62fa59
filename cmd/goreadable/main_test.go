package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const page = `<html><head><title>CLI</title></head><body><div class="entry">
<p>The first paragraph of the story, with enough words, commas, and detail to score well.</p>
<p>The second paragraph continues the story, adding more words, clauses, and details.</p>
</div></body></html>`

func TestRunMain_FileToFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.html")
	out := filepath.Join(dir, "out.md")
	if err := os.WriteFile(in, []byte(page), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	var stderr bytes.Buffer
	code := runMain(context.Background(), []string{"-env", "", "-format", "markdown", "-output", out, in}, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}
	b, err := os.ReadFile(out)
	if err != nil || !strings.Contains(string(b), "second paragraph") {
		t.Fatalf("expected output file, err=%v content=%q", err, b)
	}
}

func TestRunMain_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"-env", ""}, &stderr); code != 1 {
		t.Fatalf("no input: exit %d, want 1", code)
	}
	if code := runMain(context.Background(), []string{"-env", "", filepath.Join(dir, "missing.html")}, &stderr); code != 1 {
		t.Fatalf("missing file: exit %d, want 1", code)
	}
	if code := runMain(context.Background(), []string{"-version"}, &stderr); code != 0 || !strings.Contains(stderr.String(), "goreadable") {
		t.Fatalf("version: exit %d, output %q", code, stderr.String())
	}
	if code := runMain(context.Background(), []string{"-h"}, &stderr); code != 0 {
		t.Fatalf("help: exit %d", code)
	}
}

// Flags beat env, env beats the config file.
func TestParseFlags_Precedence(t *testing.T) {
	t.Setenv("OUTPUT_FORMAT", "text")
	t.Setenv("FETCH_ATTEMPTS", "")
	cfgPath := filepath.Join(t.TempDir(), "goreadable.yaml")
	content := "format: pdf\nfetch:\n  attempts: 7\narchive:\n  path: /tmp/file.db\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := parseFlags([]string{"-env", "", "-config", cfgPath, "-archive", "/tmp/flag.db", "page.html"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Format != "text" {
		t.Fatalf("env should beat file: format=%q", cfg.Format)
	}
	if cfg.Attempts != 7 {
		t.Fatalf("file should beat flag default: attempts=%d", cfg.Attempts)
	}
	if cfg.ArchivePath != "/tmp/flag.db" {
		t.Fatalf("flag should win: archive=%q", cfg.ArchivePath)
	}
	if cfg.InputPath != "page.html" {
		t.Fatalf("input=%q", cfg.InputPath)
	}
}
