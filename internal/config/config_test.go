package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Lang != "en" || cfg.Cache.Backend != cache.BackendFile {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if filepath.Base(cfg.Cache.Dir) != AppName {
		t.Errorf("Cache.Dir = %q, want it under %s", cfg.Cache.Dir, AppName)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
lang = "de"
timeout = "1m"
workers = 4

[cache]
backend = "sqlite"
max_age = "24h"

[server]
addr = ":9090"
`)
	t.Setenv("BULKSTAT_WORKERS", "2")
	t.Setenv("BULKSTAT_CACHE_CODEC", "cbor")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Lang != "de" || cfg.Timeout != time.Minute {
		t.Errorf("file values not applied: lang=%q timeout=%s", cfg.Lang, cfg.Timeout)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want env override 2", cfg.Workers)
	}
	if cfg.Cache.Backend != cache.BackendSQLite || cfg.Cache.Codec != "cbor" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if p := cfg.Policy(); p.MaxAge == nil || *p.MaxAge != 24*time.Hour {
		t.Errorf("Policy() = %v", p)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		path string
	}{
		{"missing explicit file", filepath.Join(t.TempDir(), "absent.toml")},
		{"malformed", writeConfig(t, "lang = ")},
		{"unknown key", writeConfig(t, "colour = \"blue\"")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
				t.Errorf("Load() err = %v, want CONFIG_ERROR", err)
			}
		})
	}
}

func TestBadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("BULKSTAT_TIMEOUT", "soon")
	if _, err := Load(""); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("Load() err = %v, want CONFIG_ERROR", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"protocol", func(c *Config) { c.Protocol = "gopher" }},
		{"lang", func(c *Config) { c.Lang = "es" }},
		{"timeout", func(c *Config) { c.Timeout = 0 }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"backend", func(c *Config) { c.Cache.Backend = "etcd" }},
		{"codec", func(c *Config) { c.Cache.Codec = "json" }},
		{"max age", func(c *Config) { c.Cache.MaxAge = MaxAgeOf(-time.Second) }},
		{"redis addr", func(c *Config) { c.Cache.Backend = cache.BackendRedis }},
		{"mongo uri", func(c *Config) { c.Cache.Backend = cache.BackendMongo }},
		{"empty base", func(c *Config) { c.BaseURL = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
				t.Errorf("Validate() = %v, want CONFIG_ERROR", err)
			}
		})
	}
}

func TestOptionMapping(t *testing.T) {
	cfg := Default()
	cfg.Protocol = "HTTP"
	cfg.Cache.Dir = "/tmp/x"

	if got := cfg.BulkOptions(); got.Protocol != "http" || got.Workers != cfg.Workers {
		t.Errorf("BulkOptions() = %+v", got)
	}
	if got := cfg.CacheOptions(); got.Dir != "/tmp/x" || got.Backend != cache.BackendFile {
		t.Errorf("CacheOptions() = %+v", got)
	}
	if p := cfg.Policy(); p.MaxAge != nil {
		t.Errorf("unset MaxAge should never expire, got %v", p)
	}
}

func TestExplicitZeroMaxAgeIsAlwaysStale(t *testing.T) {
	stored := time.Now()

	t.Run("file", func(t *testing.T) {
		isolate(t)
		cfg, err := Load(writeConfig(t, "[cache]\nmax_age = \"0s\"\n"))
		if err != nil {
			t.Fatal(err)
		}
		p := cfg.Policy()
		if p.MaxAge == nil || *p.MaxAge != 0 || p.Fresh(stored, stored) {
			t.Errorf("Policy() = %v, want always stale", p)
		}
	})

	t.Run("env", func(t *testing.T) {
		isolate(t)
		t.Setenv("BULKSTAT_CACHE_MAX_AGE", "0")
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if p := cfg.Policy(); p.MaxAge == nil || p.Fresh(stored, stored) {
			t.Errorf("Policy() = %v, want always stale", p)
		}
	})

	t.Run("empty env stays unset", func(t *testing.T) {
		isolate(t)
		t.Setenv("BULKSTAT_CACHE_MAX_AGE", "")
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if p := cfg.Policy(); p.MaxAge != nil {
			t.Errorf("Policy() = %v, want never expires", p)
		}
	})

	t.Run("bad value", func(t *testing.T) {
		isolate(t)
		t.Setenv("BULKSTAT_CACHE_MAX_AGE", "soon")
		if _, err := Load(""); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
			t.Errorf("Load() err = %v, want CONFIG_ERROR", err)
		}
	})
}
