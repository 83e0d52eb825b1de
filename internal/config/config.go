// Package config loads application configuration from environment variables
// and the optional check-list file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Cache backends selectable with MERGECHECK_CACHE_BACKEND.
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendBadger = "badger"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken  string
	PollInterval time.Duration `validate:"gte=1s"`
	ListenAddr   string        `validate:"required,hostname_port"`
	DBPath       string        `validate:"required"`
	CacheBackend string        `validate:"oneof=sqlite badger"`
	CacheDir     string        // Badger directory; empty runs Badger in memory.
	CacheTTL     time.Duration `validate:"gt=0"`
	ChecksFile   string
	// Checks is the default check order read from ChecksFile. Empty means the
	// built-in order.
	Checks    []string `validate:"dive,required"`
	RateLimit float64  `validate:"gt=0"`
	RateBurst int      `validate:"gte=1"`
}

// HasGitHubCredentials reports whether a GitHub token is configured. Without
// one the service still answers mergeability requests from stored state but
// does not sync.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// MERGECHECK_GITHUB_TOKEN is optional. Optional variables with defaults:
// MERGECHECK_POLL_INTERVAL (1m), MERGECHECK_LISTEN_ADDR (127.0.0.1:8080),
// MERGECHECK_DB_PATH (mergecheck.db), MERGECHECK_CACHE_BACKEND (sqlite),
// MERGECHECK_CACHE_DIR (""), MERGECHECK_CACHE_TTL (6h), MERGECHECK_CHECKS_FILE (""),
// MERGECHECK_RATE_LIMIT (20), MERGECHECK_RATE_BURST (40).
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:  os.Getenv("MERGECHECK_GITHUB_TOKEN"),
		PollInterval: time.Minute,
		ListenAddr:   "127.0.0.1:8080",
		DBPath:       "mergecheck.db",
		CacheBackend: CacheBackendSQLite,
		CacheTTL:     6 * time.Hour,
		RateLimit:    20,
		RateBurst:    40,
	}

	if err := envDuration("MERGECHECK_POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return nil, err
	}
	if err := envDuration("MERGECHECK_CACHE_TTL", &cfg.CacheTTL); err != nil {
		return nil, err
	}
	if err := envFloat("MERGECHECK_RATE_LIMIT", &cfg.RateLimit); err != nil {
		return nil, err
	}
	if err := envInt("MERGECHECK_RATE_BURST", &cfg.RateBurst); err != nil {
		return nil, err
	}

	envString("MERGECHECK_LISTEN_ADDR", &cfg.ListenAddr)
	envString("MERGECHECK_DB_PATH", &cfg.DBPath)
	envString("MERGECHECK_CACHE_BACKEND", &cfg.CacheBackend)
	envString("MERGECHECK_CACHE_DIR", &cfg.CacheDir)
	envString("MERGECHECK_CHECKS_FILE", &cfg.ChecksFile)

	if cfg.ChecksFile != "" {
		checks, err := LoadChecksFile(cfg.ChecksFile)
		if err != nil {
			return nil, err
		}
		cfg.Checks = checks
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid configuration: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// checksFile is the YAML layout of MERGECHECK_CHECKS_FILE.
type checksFile struct {
	Checks []string `yaml:"checks"`
}

// LoadChecksFile reads the default check order from a YAML file of the form
// "checks: [open, draft, ...]". The list must be non-empty and free of duplicates.
func LoadChecksFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checks file: %w", err)
	}

	var file checksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse checks file %s: %w", path, err)
	}

	if len(file.Checks) == 0 {
		return nil, fmt.Errorf("checks file %s lists no checks", path)
	}

	seen := make(map[string]bool, len(file.Checks))
	for _, check := range file.Checks {
		if seen[check] {
			return nil, fmt.Errorf("checks file %s lists %q twice", path, check)
		}
		seen[check] = true
	}

	return file.Checks, nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s has invalid number %q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}
