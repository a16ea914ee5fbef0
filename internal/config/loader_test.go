package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CF_TEST_HOST", "db.internal")

	cases := []struct {
		in   string
		want string
	}{
		{"host: ${CF_TEST_HOST}", "host: db.internal"},
		{"host: ${CF_TEST_HOST:localhost}", "host: db.internal"},
		{"port: ${CF_TEST_UNSET_PORT:5432}", "port: 5432"},
		{"key: ${CF_TEST_UNSET_KEY:}", "key: "},
		{"raw: ${CF_TEST_UNSET_RAW}", "raw: ${CF_TEST_UNSET_RAW}"},
	}
	for _, tc := range cases {
		if got := expandEnv(tc.in); got != tc.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadFromAppliesDefaultsAndCatalog(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	writeConfig(t, dir, "config.yaml", "app:\n  name: forge\n")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.App.Name != "forge" {
		t.Fatalf("app name = %q", cfg.App.Name)
	}
	if cfg.Generation.Concurrency != 10 {
		t.Fatalf("concurrency = %d, want 10", cfg.Generation.Concurrency)
	}
	if cfg.Ledger.MaxAttempts != 3 || cfg.Ledger.DailyPolicy != "calendar_day" {
		t.Fatalf("ledger = %+v", cfg.Ledger)
	}
	m, ok := cfg.Generation.Model("gemini-2.0-pro-exp-02-05")
	if !ok {
		t.Fatalf("built-in catalog missing pro model")
	}
	if m.RPM != 2 || m.RPD != 50 {
		t.Fatalf("pro limits = %+v", m)
	}
}

func TestLoadFromEnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "staging")
	writeConfig(t, dir, "config.yaml", "generation:\n  concurrency: 10\n")
	writeConfig(t, dir, "config.staging.yaml", "generation:\n  concurrency: 4\n")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Generation.Concurrency != 4 {
		t.Fatalf("concurrency = %d, want 4", cfg.Generation.Concurrency)
	}
}

func TestLoadFromRejectsUnknownDefaultModel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	writeConfig(t, dir, "config.yaml", "generation:\n  default_model: no-such-model\n")

	if _, err := LoadFrom(dir); err == nil {
		t.Fatal("expected validation error for unknown default model")
	}
}

func TestLoadFromMissingBaseFile(t *testing.T) {
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Fatal("expected error when config.yaml is absent")
	}
}
