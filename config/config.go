package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds analysis run configuration.
type Config struct {
	// Pacing between consecutive site requests within one query.
	SiteDelay time.Duration
	JitterMin time.Duration
	JitterMax time.Duration

	// Retry policy for one (query, site) fetch.
	MaxAttempts     int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration // caps the doubling schedule

	// Workers bounds concurrent product analyses. Each worker still
	// issues its site requests serially.
	Workers int

	// CacheSize bounds the in-memory query result cache.
	CacheSize int

	OutputFile   string
	OutputFormat string // csv, json, or dual
	MetricsAddr  string
	Verbose      bool

	// Run parameters for the discovery step.
	Prefecture   string
	Municipality string
	Category     string
	ProductCount int
}

// DefaultConfig returns the pacing and retry defaults tuned against the
// five production sites.
func DefaultConfig() *Config {
	return &Config{
		SiteDelay:       2 * time.Second,
		JitterMin:       500 * time.Millisecond,
		JitterMax:       1500 * time.Millisecond,
		MaxAttempts:     3,
		RetryBackoff:    2 * time.Second,
		RetryBackoffMax: 16 * time.Second,
		Workers:         1,
		CacheSize:       128,
		OutputFile:      "output/products.csv",
		OutputFormat:    "csv",
		ProductCount:    10,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SiteDelay < 0 {
		return fmt.Errorf("site delay cannot be negative")
	}
	if c.JitterMin < 0 || c.JitterMax < 0 {
		return fmt.Errorf("jitter bounds cannot be negative")
	}
	if c.JitterMax < c.JitterMin {
		return fmt.Errorf("jitter max (%s) cannot be below jitter min (%s)", c.JitterMax, c.JitterMin)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.ProductCount <= 0 || c.ProductCount > 30 {
		return fmt.Errorf("product count must be between 1 and 30")
	}
	return nil
}

// EnvInt reads an integer environment variable. The second return value
// reports whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable and whether it was set.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
