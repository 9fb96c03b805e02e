package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

// FileName is the configuration file looked up in the project and home
// directories.
const FileName = ".dbreplace.yml"

// DSNEnv overrides the configured DSN when no --dsn flag is given.
const DSNEnv = "DBREPLACE_DSN"

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds all dbreplace configuration.
type Config struct {
	Driver   string   `yaml:"driver"`
	DSN      string   `yaml:"dsn"`
	Schema   string   `yaml:"schema"`  // postgres only
	Charset  string   `yaml:"charset"` // initial connection charset
	Defaults Defaults `yaml:"defaults"`
	Exclude  Exclude  `yaml:"exclude"`
}

// Defaults holds default CLI flag values.
type Defaults struct {
	PageSize        int64  `yaml:"page_size"`
	ReportSampleCap int    `yaml:"report_sample_cap"`
	Format          string `yaml:"format"`
	Timeout         string `yaml:"timeout"` // parsed as time.Duration
}

// Exclude lists tables and columns never touched by a run.
type Exclude struct {
	Tables  []string `yaml:"tables"`
	Columns []string `yaml:"columns"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Driver: DriverMySQL,
		Defaults: Defaults{
			PageSize:        50000,
			ReportSampleCap: 30,
			Format:          "text",
			Timeout:         "30s",
		},
	}
}

// Load reads configuration from .dbreplace.yml in the given directory,
// falling back to ~/.dbreplace.yml. Returns DefaultConfig if no file found.
func Load(dir string) (Config, error) {
	cfg := DefaultConfig()

	paths := []string{filepath.Join(dir, FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, FileName))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		return cfg, cfg.Validate()
	}

	return cfg, nil
}

// Exists reports whether dir holds a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	switch c.Driver {
	case "", DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unknown driver %q (want %s or %s)", c.Driver, DriverMySQL, DriverPostgres)
	}
	if c.Defaults.PageSize < 0 {
		return fmt.Errorf("defaults.page_size must be positive, got %d", c.Defaults.PageSize)
	}
	return nil
}

// ResolveDSN applies the precedence flag > DBREPLACE_DSN > file.
func (c *Config) ResolveDSN(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(DSNEnv); env != "" {
		return env
	}
	return c.DSN
}

// TimeoutDuration parses the Defaults.Timeout string as a time.Duration.
// Returns 30s if parsing fails.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Defaults.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.Defaults.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
