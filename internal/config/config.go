// Package config loads bulkstat settings.
//
// Settings are layered: built-in defaults, then an optional TOML file, then
// BULKSTAT_* environment variables. Command-line flags are applied last by
// the caller. [Config.Validate] rejects values the library would refuse
// later, so misconfiguration surfaces before any network traffic.
//
// Example file:
//
//	lang = "de"
//	timeout = "1m"
//
//	[cache]
//	backend = "sqlite"
//	max_age = "24h"
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/matzehuels/bulkstat/pkg/bulk"
	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/fetch"
	"github.com/matzehuels/bulkstat/pkg/httputil"
	"github.com/matzehuels/bulkstat/pkg/request"
)

// AppName names the config and cache directories.
const AppName = "bulkstat"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BULKSTAT_"

// Config is the complete runtime configuration.
type Config struct {
	BaseURL   string        `toml:"base_url" env:"BASE_URL"`
	Query     string        `toml:"query" env:"QUERY"`
	Protocol  string        `toml:"protocol" env:"PROTOCOL"`
	Lang      string        `toml:"lang" env:"LANG"`
	Timeout   time.Duration `toml:"timeout" env:"TIMEOUT"`
	Workers   int           `toml:"workers" env:"WORKERS"`
	UserAgent string        `toml:"user_agent" env:"USER_AGENT"`

	Cache  CacheConfig  `toml:"cache" envPrefix:"CACHE_"`
	Server ServerConfig `toml:"server" envPrefix:"SERVER_"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend string `toml:"backend" env:"BACKEND"`
	Dir     string `toml:"dir" env:"DIR"`

	// MaxAge bounds entry age. Unset means entries never expire; an
	// explicit "0s" means every entry is stale.
	MaxAge MaxAge `toml:"max_age" env:"MAX_AGE"`

	Codec      string `toml:"codec" env:"CODEC"`
	SQLitePath string `toml:"sqlite_path" env:"SQLITE_PATH"`
	RedisAddr  string `toml:"redis_addr" env:"REDIS_ADDR"`
	MongoURI   string `toml:"mongo_uri" env:"MONGO_URI"`
	MongoDB    string `toml:"mongo_db" env:"MONGO_DB"`
	MemoryMB   int    `toml:"memory_mb" env:"MEMORY_MB"`
}

// MaxAge is a duration that remembers whether it was given, so an explicit
// zero can be told apart from no value.
type MaxAge struct {
	Duration time.Duration
	Set      bool
}

// MaxAgeOf returns a MaxAge explicitly set to d.
func MaxAgeOf(d time.Duration) MaxAge { return MaxAge{Duration: d, Set: true} }

// UnmarshalText parses a Go duration such as "24h". An empty string leaves
// the value unset.
func (m *MaxAge) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*m = MaxAge{}
		return nil
	}
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*m = MaxAgeOf(d)
	return nil
}

// MarshalText renders the duration, or nothing when unset.
func (m MaxAge) MarshalText() ([]byte, error) {
	if !m.Set {
		return nil, nil
	}
	return []byte(m.Duration.String()), nil
}

// ServerConfig configures "bulkstat serve".
type ServerConfig struct {
	Addr string `toml:"addr" env:"ADDR"`

	// Reload re-reads the metabase on this interval. Zero disables it.
	Reload  time.Duration `toml:"reload" env:"RELOAD"`
	Metrics bool          `toml:"metrics" env:"METRICS"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		BaseURL:   bulk.DefaultBase,
		Query:     bulk.DefaultQuery,
		Protocol:  string(request.DefaultProtocol),
		Lang:      bulk.DefaultLang,
		Timeout:   httputil.DefaultTimeout,
		Workers:   fetch.DefaultWorkers,
		UserAgent: AppName,
		Cache: CacheConfig{
			Backend:  cache.BackendFile,
			Codec:    "msgpack",
			MongoDB:  cache.DefaultMongoDatabase,
			MemoryMB: 256,
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: true,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/bulkstat/config.toml, falling back to
// ~/.config.
func DefaultPath() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// CacheDir returns $XDG_CACHE_HOME/bulkstat, falling back to ~/.cache.
func CacheDir() (string, error) {
	if home := os.Getenv("XDG_CACHE_HOME"); home != "" {
		return filepath.Join(home, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

// Load builds a Config from defaults, the TOML file at path and the
// environment. An empty path means DefaultPath, which may be absent; an
// explicit path must exist. Unknown keys in the file are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		case errors.Is(err, fs.ErrNotExist):
			return cfg, bulkerr.Wrap(bulkerr.ErrCodeConfig, err, "config file %s", path)
		case err != nil:
			return cfg, bulkerr.Wrap(bulkerr.ErrCodeConfig, err, "parse config %s", path)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return cfg, bulkerr.New(bulkerr.ErrCodeConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, bulkerr.Wrap(bulkerr.ErrCodeConfig, err, "environment")
	}
	if cfg.Cache.Dir == "" {
		if dir, err := CacheDir(); err == nil {
			cfg.Cache.Dir = dir
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting as CONFIG_ERROR.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return bulkerr.New(bulkerr.ErrCodeConfig, "base_url is empty")
	}
	if _, err := request.ParseProtocol(c.Protocol); err != nil {
		return err
	}
	if !slices.Contains(bulk.Langs, c.Lang) {
		return bulkerr.New(bulkerr.ErrCodeConfig, "lang %q not recognised (want %s)", c.Lang, strings.Join(bulk.Langs, ", "))
	}
	if c.Timeout <= 0 {
		return bulkerr.New(bulkerr.ErrCodeConfig, "timeout must be positive, got %s", c.Timeout)
	}
	if c.Workers < 1 {
		return bulkerr.New(bulkerr.ErrCodeConfig, "workers must be at least 1, got %d", c.Workers)
	}
	if !slices.Contains(cache.Backends, c.Cache.Backend) {
		return bulkerr.New(bulkerr.ErrCodeConfig, "cache backend %q not recognised (want %s)",
			c.Cache.Backend, strings.Join(cache.Backends, ", "))
	}
	if _, err := cache.CodecByName(c.Cache.Codec); err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeConfig, err, "cache codec")
	}
	if c.Cache.MaxAge.Duration < 0 {
		return bulkerr.New(bulkerr.ErrCodeConfig, "cache max_age must not be negative")
	}
	switch c.Cache.Backend {
	case cache.BackendRedis:
		if c.Cache.RedisAddr == "" {
			return bulkerr.New(bulkerr.ErrCodeConfig, "redis backend requires cache.redis_addr")
		}
	case cache.BackendMongo:
		if c.Cache.MongoURI == "" {
			return bulkerr.New(bulkerr.ErrCodeConfig, "mongo backend requires cache.mongo_uri")
		}
	}
	if c.Server.Reload < 0 {
		return bulkerr.New(bulkerr.ErrCodeConfig, "server reload must not be negative")
	}
	return nil
}

// Policy returns the cache policy implied by Cache.MaxAge.
func (c Config) Policy() cache.Policy {
	if c.Cache.MaxAge.Set {
		return cache.WithMaxAge(c.Cache.MaxAge.Duration)
	}
	return cache.Forever()
}

// CacheOptions maps the cache section onto [cache.Open] options.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:    c.Cache.Backend,
		Dir:        c.Cache.Dir,
		Codec:      c.Cache.Codec,
		SQLitePath: c.Cache.SQLitePath,
		RedisAddr:  c.Cache.RedisAddr,
		MongoURI:   c.Cache.MongoURI,
		MongoDB:    c.Cache.MongoDB,
		MemoryMB:   c.Cache.MemoryMB,
	}
}

// BulkOptions maps the service settings onto [bulk.Options].
func (c Config) BulkOptions() bulk.Options {
	return bulk.Options{
		Base:     c.BaseURL,
		Query:    c.Query,
		Protocol: request.Protocol(strings.ToLower(c.Protocol)),
		Lang:     c.Lang,
		Policy:   c.Policy(),
		Workers:  c.Workers,
	}
}
