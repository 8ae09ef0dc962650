package config

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative site delay", func(c *Config) { c.SiteDelay = -time.Second }},
		{"negative jitter", func(c *Config) { c.JitterMin = -time.Second }},
		{"jitter max below min", func(c *Config) { c.JitterMin = 2 * time.Second; c.JitterMax = time.Second }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"negative backoff", func(c *Config) { c.RetryBackoff = -time.Second }},
		{"backoff above max", func(c *Config) { c.RetryBackoff = time.Minute; c.RetryBackoffMax = time.Second }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero cache size", func(c *Config) { c.CacheSize = 0 }},
		{"empty output file", func(c *Config) { c.OutputFile = "" }},
		{"bad format", func(c *Config) { c.OutputFormat = "xml" }},
		{"zero products", func(c *Config) { c.ProductCount = 0 }},
		{"too many products", func(c *Config) { c.ProductCount = 31 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("NICHEFINDER_TEST_INT", "42")
	value, ok, err := EnvInt("NICHEFINDER_TEST_INT")
	if err != nil || !ok || value != 42 {
		t.Fatalf("EnvInt = %d, %v, %v", value, ok, err)
	}

	t.Setenv("NICHEFINDER_TEST_INT", "nope")
	if _, _, err := EnvInt("NICHEFINDER_TEST_INT"); err == nil {
		t.Fatalf("expected parse error")
	}

	if _, ok, err := EnvInt("NICHEFINDER_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset variable should report not ok, got ok=%v err=%v", ok, err)
	}
}

func TestEnvString(t *testing.T) {
	t.Setenv("NICHEFINDER_TEST_STR", "hello")
	if value, ok := EnvString("NICHEFINDER_TEST_STR"); !ok || value != "hello" {
		t.Fatalf("EnvString = %q, %v", value, ok)
	}
	if _, ok := EnvString("NICHEFINDER_TEST_STR_UNSET"); ok {
		t.Fatalf("unset variable should report not ok")
	}
}
