package cache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"
)

// BigCacheConfig sizes a [BigCacheStore].
type BigCacheConfig struct {
	// LifeWindow evicts entries older than this regardless of Policy.
	// Zero keeps entries for 24 hours.
	LifeWindow time.Duration

	// HardMaxCacheSizeMB caps memory use; 0 means unbounded.
	HardMaxCacheSizeMB int

	Codec Codec
}

// BigCacheStore is an in-process response cache backed by allegro/bigcache.
// It holds many entries with little GC pressure but drops everything on exit.
type BigCacheStore struct {
	framed
}

// NewBigCacheStore creates a bigcache-backed store.
func NewBigCacheStore(ctx context.Context, cfg BigCacheConfig) (*BigCacheStore, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &BigCacheStore{newFramed("bigcache", &bigcacheBlob{c: c}, cfg.Codec)}, nil
}

type bigcacheBlob struct {
	c *bc.BigCache
}

func (b *bigcacheBlob) get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	return v, err == nil, err
}

func (b *bigcacheBlob) set(_ context.Context, key string, value []byte) error {
	return b.c.Set(key, value)
}

func (b *bigcacheBlob) del(_ context.Context, key string) error {
	if err := b.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (b *bigcacheBlob) clear(_ context.Context) (int, error) {
	n := b.c.Len()
	return n, b.c.Reset()
}

func (b *bigcacheBlob) close() error {
	return b.c.Close()
}

var (
	_ Store   = (*BigCacheStore)(nil)
	_ Clearer = (*BigCacheStore)(nil)
)
