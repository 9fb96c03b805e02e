package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Driver != DriverMySQL {
		t.Errorf("Driver = %q, want mysql", cfg.Driver)
	}
	if cfg.Defaults.PageSize != 50000 {
		t.Errorf("PageSize = %d, want 50000", cfg.Defaults.PageSize)
	}
	if cfg.Defaults.ReportSampleCap != 30 {
		t.Errorf("ReportSampleCap = %d, want 30", cfg.Defaults.ReportSampleCap)
	}
	if cfg.Defaults.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Defaults.Format)
	}
	if cfg.Defaults.Timeout != "30s" {
		t.Errorf("Timeout = %q, want 30s", cfg.Defaults.Timeout)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// Should return defaults
	if cfg.Defaults.PageSize != 50000 {
		t.Errorf("expected default PageSize=50000, got %d", cfg.Defaults.PageSize)
	}
}

func TestLoad_FromDir(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
driver: postgres
dsn: "postgres://localhost:5432/wp"
schema: blog
charset: UTF8
defaults:
  page_size: 1000
  report_sample_cap: 5
  format: json
  timeout: "60s"
exclude:
  tables:
    - wp_sessions
    - wp_cache
  columns:
    - guid
`)
	if err := os.WriteFile(filepath.Join(dir, FileName), content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Driver != DriverPostgres {
		t.Errorf("Driver = %q", cfg.Driver)
	}
	if cfg.DSN != "postgres://localhost:5432/wp" {
		t.Errorf("DSN = %q", cfg.DSN)
	}
	if cfg.Schema != "blog" || cfg.Charset != "UTF8" {
		t.Errorf("Schema = %q, Charset = %q", cfg.Schema, cfg.Charset)
	}
	if cfg.Defaults.PageSize != 1000 {
		t.Errorf("PageSize = %d, want 1000", cfg.Defaults.PageSize)
	}
	if cfg.Defaults.ReportSampleCap != 5 {
		t.Errorf("ReportSampleCap = %d, want 5", cfg.Defaults.ReportSampleCap)
	}
	if len(cfg.Exclude.Tables) != 2 {
		t.Errorf("Exclude.Tables = %v, want 2 entries", cfg.Exclude.Tables)
	}
	if len(cfg.Exclude.Columns) != 1 {
		t.Errorf("Exclude.Columns = %v, want 1 entry", cfg.Exclude.Columns)
	}
	if cfg.Defaults.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Defaults.Format)
	}
	if cfg.Defaults.Timeout != "60s" {
		t.Errorf("Timeout = %q, want 60s", cfg.Defaults.Timeout)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{{invalid"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("driver: sqlite"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestLoad_HomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.WriteFile(filepath.Join(home, FileName), []byte("dsn: from-home"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DSN != "from-home" {
		t.Errorf("DSN = %q, want from-home", cfg.DSN)
	}
}

func TestResolveDSN(t *testing.T) {
	cfg := Config{DSN: "from-file"}

	t.Setenv(DSNEnv, "")
	if got := cfg.ResolveDSN(""); got != "from-file" {
		t.Errorf("file: got %q", got)
	}

	t.Setenv(DSNEnv, "from-env")
	if got := cfg.ResolveDSN(""); got != "from-env" {
		t.Errorf("env: got %q", got)
	}
	if got := cfg.ResolveDSN("from-flag"); got != "from-flag" {
		t.Errorf("flag: got %q", got)
	}
}

func TestTimeoutDuration(t *testing.T) {
	tests := []struct {
		name    string
		timeout string
		want    time.Duration
	}{
		{"valid 60s", "60s", 60 * time.Second},
		{"valid 2m", "2m", 2 * time.Minute},
		{"empty", "", 30 * time.Second},
		{"invalid", "notaduration", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Defaults: Defaults{Timeout: tt.timeout}}
			got := cfg.TimeoutDuration()
			if got != tt.want {
				t.Errorf("TimeoutDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExists_Found(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("dsn: test"), 0644); err != nil {
		t.Fatal(err)
	}
	if !Exists(dir) {
		t.Error("Exists() = false, want true")
	}
}

func TestExists_NotFound(t *testing.T) {
	if Exists(t.TempDir()) {
		t.Error("Exists() = true, want false")
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	// Only override page_size; other fields keep defaults
	content := []byte(`
defaults:
  page_size: 10
`)
	if err := os.WriteFile(filepath.Join(dir, FileName), content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Defaults.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.Defaults.PageSize)
	}
	if cfg.Defaults.ReportSampleCap != 30 {
		t.Errorf("ReportSampleCap = %d, want default 30", cfg.Defaults.ReportSampleCap)
	}
	if cfg.Driver != DriverMySQL {
		t.Errorf("Driver = %q, want default mysql", cfg.Driver)
	}
}
