package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := os.WriteFile(path, []byte("  s3cr3t\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_SECRET_KEY", "")
	t.Setenv("TEST_SECRET_KEY_FILE", path)
	readSecret("TEST_SECRET_KEY")
	if got := os.Getenv("TEST_SECRET_KEY"); got != "s3cr3t" {
		t.Errorf("expected trimmed secret, got %q", got)
	}

	t.Setenv("TEST_SECRET_KEY", "direct")
	readSecret("TEST_SECRET_KEY")
	if got := os.Getenv("TEST_SECRET_KEY"); got != "direct" {
		t.Errorf("expected direct value to win, got %q", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" cdn.example.com, ,media.example.com ")
	want := []string{"cdn.example.com", "media.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if splitList("") != nil {
		t.Error("expected nil for empty input")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Render.Locale == "" {
		t.Error("expected a default locale")
	}
	if cfg.Export.StillSecondsPerFrame != 3 {
		t.Errorf("expected 3 seconds per still, got %d", cfg.Export.StillSecondsPerFrame)
	}
	if cfg.Render.FetchRetries <= 0 {
		t.Error("expected positive fetch retries")
	}
}
