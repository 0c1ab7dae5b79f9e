package cache

import (
	"context"
	"path/filepath"
	"slices"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// Backend names accepted by [Open].
const (
	BackendFile      = "file"
	BackendMemory    = "memory"
	BackendNone      = "none"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendMongo     = "mongo"
	BackendBigCache  = "bigcache"
	BackendRistretto = "ristretto"
)

// Backends lists every backend name accepted by [Open].
var Backends = []string{
	BackendFile, BackendMemory, BackendNone, BackendSQLite,
	BackendRedis, BackendMongo, BackendBigCache, BackendRistretto,
}

// Options selects and configures a backend.
type Options struct {
	Backend string // One of Backends; empty means BackendFile
	Dir     string // Root for the file backend, default home of the sqlite file
	Codec   string // Envelope codec for byte-oriented backends: msgpack or cbor

	SQLitePath string // Defaults to Dir/cache.db
	RedisAddr  string
	MongoURI   string
	MongoDB    string
	MemoryMB   int // Size bound for bigcache and ristretto
}

// Open creates the store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendFile
	}
	if !slices.Contains(Backends, backend) {
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "unknown cache backend %q", backend)
	}
	codec, err := CodecByName(opts.Codec)
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeConfig, err, "cache codec")
	}

	var s Store
	switch backend {
	case BackendFile:
		if opts.Dir == "" {
			return nil, bulkerr.New(bulkerr.ErrCodeConfig, "file cache requires a directory")
		}
		s = NewFileStore(opts.Dir)
	case BackendMemory:
		s = NewMemoryStore()
	case BackendNone:
		s = NewNullStore()
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			if opts.Dir == "" {
				return nil, bulkerr.New(bulkerr.ErrCodeConfig, "sqlite cache requires a path or directory")
			}
			path = filepath.Join(opts.Dir, "cache.db")
		}
		s, err = NewSQLiteStore(path)
	case BackendRedis:
		s, err = NewRedisStore(ctx, RedisConfig{Addr: opts.RedisAddr, Codec: codec})
	case BackendMongo:
		s, err = NewMongoStore(ctx, MongoConfig{URI: opts.MongoURI, Database: opts.MongoDB})
	case BackendBigCache:
		s, err = NewBigCacheStore(ctx, BigCacheConfig{HardMaxCacheSizeMB: opts.MemoryMB, Codec: codec})
	case BackendRistretto:
		s, err = NewRistrettoStore(RistrettoConfig{MaxCostMB: int64(opts.MemoryMB), Codec: codec})
	}
	if err != nil {
		if bulkerr.GetCode(err) != "" {
			return nil, err
		}
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "open %s cache", backend)
	}
	return s, nil
}
