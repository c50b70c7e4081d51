package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BadgerOps/sbomcheck/internal/glob"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
	"github.com/BadgerOps/sbomcheck/internal/verify"
	"gopkg.in/yaml.v3"
)

// Case matching policies for ignore patterns.
const (
	MatchCaseAuto        = "auto"
	MatchCaseSensitive   = "sensitive"
	MatchCaseInsensitive = "insensitive"
)

// Config is the top-level configuration
type Config struct {
	Verify   VerifyConfig    `yaml:"verify"`
	History  HistoryConfig   `yaml:"history"`
	Products []ProductConfig `yaml:"products"`
}

// VerifyConfig holds verification settings
type VerifyConfig struct {
	Workers         int      `yaml:"workers"`
	MatchCase       string   `yaml:"match_case"`
	Ignore          []string `yaml:"ignore"`
	MaxManifestSize ByteSize `yaml:"max_manifest_size"`
}

// HistoryConfig holds run history settings
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Verify: VerifyConfig{
			Workers:         verify.DefaultWorkers,
			MatchCase:       MatchCaseAuto,
			Ignore:          []string{},
			MaxManifestSize: ByteSize(spdx.DefaultMaxManifestSize),
		},
		History: HistoryConfig{
			Enabled:       false,
			DBPath:        "",
			RetentionDays: 90,
		},
		Products: []ProductConfig{},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"sbomcheck.yaml",
		"/etc/sbomcheck/sbomcheck.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "sbomcheck", "sbomcheck.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// Validate checks values that yaml decoding cannot
func (c *Config) Validate() error {
	if c.Verify.Workers < 0 {
		return fmt.Errorf("verify.workers must not be negative, got %d", c.Verify.Workers)
	}
	if c.Verify.MaxManifestSize < 0 {
		return fmt.Errorf("verify.max_manifest_size must not be negative, got %d", c.Verify.MaxManifestSize)
	}
	if _, err := c.GlobOptions(); err != nil {
		return err
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative, got %d", c.History.RetentionDays)
	}
	return validateProducts(c.Products)
}

// GlobOptions resolves verify.match_case for the host OS
func (c *Config) GlobOptions() (glob.Options, error) {
	return globOptionsFor(c.Verify.MatchCase, runtime.GOOS)
}

func globOptionsFor(matchCase, goos string) (glob.Options, error) {
	switch matchCase {
	case "", MatchCaseAuto:
		return glob.OptionsForOS(goos), nil
	case MatchCaseSensitive:
		return glob.Options{CaseInsensitive: false}, nil
	case MatchCaseInsensitive:
		return glob.Options{CaseInsensitive: true}, nil
	default:
		return glob.Options{}, fmt.Errorf("verify.match_case must be %s, %s or %s, got %q",
			MatchCaseAuto, MatchCaseSensitive, MatchCaseInsensitive, matchCase)
	}
}

// HistoryDBPath returns the configured database path, or a file under the
// user config directory
func (c *Config) HistoryDBPath() string {
	if c.History.DBPath != "" {
		return c.History.DBPath
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sbomcheck", "history.db")
	}
	return "sbomcheck-history.db"
}

// Product returns the configured product with the given name
func (c *Config) Product(name string) (ProductConfig, bool) {
	for _, p := range c.Products {
		if p.Name == name {
			return p, true
		}
	}
	return ProductConfig{}, false
}
