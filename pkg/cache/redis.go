package cache

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// DefaultRedisPrefix namespaces keys written by [RedisStore].
const DefaultRedisPrefix = "bulkstat:"

// RedisConfig configures a [RedisStore].
type RedisConfig struct {
	// Client is used as-is when set. Otherwise a client is created for Addr
	// and closed with the store.
	Client goredis.UniversalClient
	Addr   string

	// Prefix is prepended to every key. Empty means DefaultRedisPrefix.
	Prefix string

	Codec Codec
}

// RedisStore shares cached payloads between processes through redis.
type RedisStore struct {
	framed
}

// NewRedisStore connects to redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client, owns := cfg.Client, false
	if client == nil {
		if cfg.Addr == "" {
			return nil, bulkerr.New(bulkerr.ErrCodeConfig, "redis: address required")
		}
		client, owns = goredis.NewClient(&goredis.Options{Addr: cfg.Addr}), true
	}
	if err := client.Ping(ctx).Err(); err != nil {
		if owns {
			client.Close()
		}
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	b := &redisBlob{rdb: client, prefix: prefix, owns: owns}
	return &RedisStore{newFramed("redis", b, cfg.Codec)}, nil
}

type redisBlob struct {
	rdb    goredis.UniversalClient
	prefix string
	owns   bool
}

func (b *redisBlob) get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// set stores without expiry; staleness is decided by Policy on read.
func (b *redisBlob) set(ctx context.Context, key string, value []byte) error {
	return b.rdb.Set(ctx, b.prefix+key, value, 0).Err()
}

func (b *redisBlob) del(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.prefix+key).Err()
}

func (b *redisBlob) clear(ctx context.Context) (int, error) {
	n := 0
	iter := b.rdb.Scan(ctx, 0, b.prefix+"*", 500).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		deleted, err := b.rdb.Del(ctx, batch...).Result()
		n += int(deleted)
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return n, err
	}
	return n, flush()
}

func (b *redisBlob) close() error {
	if !b.owns {
		return nil
	}
	if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Clearer = (*RedisStore)(nil)
)
